package domain

// FieldType categorizes a form column for display and filtering purposes.
type FieldType string

const (
	FieldTypeOptionSingle   FieldType = "OPTION_SINGLE"
	FieldTypeOptionMultiple FieldType = "OPTION_MULTIPLE"
	FieldTypeText           FieldType = "TEXT"
	FieldTypeDate           FieldType = "DATE"
)

// AnswerType describes how a question's value is edited, which is a
// separate concern from how its column is categorized.
type AnswerType string

const (
	AnswerTypeSelectSingle   AnswerType = "SELECT_SINGLE"
	AnswerTypeSelectMultiple AnswerType = "SELECT_MULTIPLE"
	AnswerTypeTextSingleLine AnswerType = "TEXT_SINGLE_LINE"
	AnswerTypeTextMultiLine  AnswerType = "TEXT_MULTI_LINE"
	AnswerTypePercent        AnswerType = "PERCENT"
	AnswerTypeTime           AnswerType = "TIME"
	AnswerTypeCheckbox       AnswerType = "CHECKBOX"
)

// Option is one choice value of a select-type column.
type Option struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Column is one structural field definition of a Form.
type Column struct {
	Name    string    `json:"name"`
	Type    FieldType `json:"type"`
	Options []Option  `json:"options,omitempty"`
}

// AnswerMetadata carries everything the edit surface needs to render and
// validate an answer for one question.
type AnswerMetadata struct {
	Type    AnswerType `json:"type"`
	Options []string   `json:"options,omitempty"`
	Units   []string   `json:"units,omitempty"`
	Expiry  int        `json:"expiry,omitempty"`
}

// OptionalField is a generic key/value/type projection of one source column's
// value on one record. It is how arbitrary provider-specific columns are
// exposed uniformly.
type OptionalField struct {
	Key     string    `json:"key"`
	Type    FieldType `json:"type"`
	Value   []string  `json:"value"`
	Options []string  `json:"options,omitempty"`
}

type QuestionMetadata struct {
	AnswerMetadata AnswerMetadata  `json:"answerMetadata"`
	OptionalFields []OptionalField `json:"optionalFields,omitempty"`
}

// Question is one record of a Form. RecordID is the upstream row identity
// and is distinct from the internal synthetic ID.
type Question struct {
	ID       string           `json:"id"`
	RecordID string           `json:"recordId"`
	Question string           `json:"question"`
	Metadata QuestionMetadata `json:"metadata"`
}

// Form is the normalized projection of one external table. Its identity is
// the provider id assigned at provisioning, never derived from upstream.
// A Form is replaced wholesale on every full refresh.
type Form struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Columns []Column   `json:"columns"`
	Records []Question `json:"records"`
}
