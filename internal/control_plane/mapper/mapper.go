// Package mapper converts the upstream source's loosely-typed field and
// answer descriptors into the internal enumerations. All functions are pure;
// unmappable input is reported as a typed error, never a panic.
package mapper

import (
	"errors"
	"fmt"
	"strconv"

	"formsync-server/internal/control_plane/domain"
	"formsync-server/internal/control_plane/dto"
)

// ExternalTypeRecordLink marks relational links between upstream tables. It
// describes a data-source implementation detail with no internal
// representation and is always excluded from Columns.
const ExternalTypeRecordLink = "multipleRecordLinks"

// Well-known record columns consumed by the question projection.
const (
	fieldKeyID            = "ID"
	fieldKeyQuestion      = "Question"
	fieldKeyAnswerType    = "AnswerType"
	fieldKeyAnswerOptions = "AnswerOptions"
	fieldKeyAnswerUnits   = "AnswerUnits"
	fieldKeyAnswerExpiry  = "AnswerExpiry"
)

// ErrNotQuestion signals that a record carries no answer type at all. Such
// rows are not questions and are skipped without being treated as failures.
var ErrNotQuestion = errors.New("record has no answer type")

var fieldTypes = map[string]domain.FieldType{
	"singleSelect":     domain.FieldTypeOptionSingle,
	"multipleSelects":  domain.FieldTypeOptionMultiple,
	"singleLineText":   domain.FieldTypeText,
	"multilineText":    domain.FieldTypeText,
	"richText":         domain.FieldTypeText,
	"date":             domain.FieldTypeDate,
	"dateTime":         domain.FieldTypeDate,
	"createdTime":      domain.FieldTypeDate,
	"lastModifiedTime": domain.FieldTypeDate,
}

var answerTypes = map[string]domain.AnswerType{
	"singleSelect":    domain.AnswerTypeSelectSingle,
	"multipleSelects": domain.AnswerTypeSelectMultiple,
	"singleLineText":  domain.AnswerTypeTextSingleLine,
	"multilineText":   domain.AnswerTypeTextMultiLine,
	"richText":        domain.AnswerTypeTextMultiLine,
	"percent":         domain.AnswerTypePercent,
	"date":            domain.AnswerTypeTime,
	"dateTime":        domain.AnswerTypeTime,
	"checkbox":        domain.AnswerTypeCheckbox,
}

// FieldType maps an upstream column type name to the internal enumeration.
func FieldType(externalType string) (domain.FieldType, error) {
	mapped, ok := fieldTypes[externalType]
	if !ok {
		return "", &domain.MappingError{ExternalType: externalType}
	}
	return mapped, nil
}

// AnswerType maps an upstream answer type name to the internal enumeration.
func AnswerType(externalType string) (domain.AnswerType, error) {
	mapped, ok := answerTypes[externalType]
	if !ok {
		return "", &domain.MappingError{ExternalType: externalType}
	}
	return mapped, nil
}

// Column converts one upstream field descriptor. Record-link fields and
// unmappable types yield an error so the caller can drop the column.
func Column(field dto.Field) (domain.Column, error) {
	if field.Type == ExternalTypeRecordLink {
		return domain.Column{}, &domain.MappingError{ExternalType: field.Type}
	}

	fieldType, err := FieldType(field.Type)
	if err != nil {
		return domain.Column{}, err
	}

	column := domain.Column{
		Name: field.Name,
		Type: fieldType,
	}
	if field.Options != nil {
		for _, choice := range field.Options.Choices {
			column.Options = append(column.Options, domain.Option{
				Name:  choice.Name,
				Color: choice.Color,
			})
		}
	}

	return column, nil
}

// Question projects one upstream record into the internal question model
// using the (already truncated) schema fields for the optional-field
// projection. ErrNotQuestion is returned when the record has no answer type;
// a MappingError when the answer type is present but unknown.
func Question(record dto.Record, schemaFields []dto.Field) (domain.Question, error) {
	rawType, ok := stringValue(record.Fields[fieldKeyAnswerType])
	if !ok || rawType == "" {
		return domain.Question{}, ErrNotQuestion
	}

	answerType, err := AnswerType(rawType)
	if err != nil {
		return domain.Question{}, err
	}

	id, _ := stringValue(record.Fields[fieldKeyID])
	if id == "" {
		id = record.ID
	}
	questionText, _ := stringValue(record.Fields[fieldKeyQuestion])

	return domain.Question{
		ID:       id,
		RecordID: record.ID,
		Question: questionText,
		Metadata: domain.QuestionMetadata{
			AnswerMetadata: domain.AnswerMetadata{
				Type:    answerType,
				Options: stringSlice(record.Fields[fieldKeyAnswerOptions]),
				Units:   stringSlice(record.Fields[fieldKeyAnswerUnits]),
				Expiry:  intValue(record.Fields[fieldKeyAnswerExpiry]),
			},
			OptionalFields: optionalFields(record, schemaFields),
		},
	}, nil
}

func optionalFields(record dto.Record, schemaFields []dto.Field) []domain.OptionalField {
	var result []domain.OptionalField
	for _, field := range schemaFields {
		if field.Type == ExternalTypeRecordLink {
			continue
		}
		fieldType, err := FieldType(field.Type)
		if err != nil {
			continue
		}
		rawValue, ok := record.Fields[field.Name]
		if !ok {
			continue
		}

		optional := domain.OptionalField{
			Key:   field.Name,
			Type:  fieldType,
			Value: stringSlice(rawValue),
		}
		if field.Options != nil {
			for _, choice := range field.Options.Choices {
				optional.Options = append(optional.Options, choice.Name)
			}
		}
		result = append(result, optional)
	}

	return result
}

func stringValue(raw any) (string, bool) {
	value, ok := raw.(string)
	return value, ok
}

// stringSlice flattens a generic JSON value into the uniform []string
// representation used by optional fields and answer metadata.
func stringSlice(raw any) []string {
	switch value := raw.(type) {
	case nil:
		return nil
	case string:
		return []string{value}
	case bool:
		return []string{strconv.FormatBool(value)}
	case float64:
		return []string{formatNumber(value)}
	case []any:
		result := make([]string, 0, len(value))
		for _, item := range value {
			if flattened := stringSlice(item); flattened != nil {
				result = append(result, flattened...)
			}
		}
		return result
	default:
		return []string{fmt.Sprintf("%v", value)}
	}
}

func intValue(raw any) int {
	value, ok := raw.(float64)
	if !ok {
		return 0
	}
	return int(value)
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
