package usecases

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"formsync-server/internal/control_plane/domain"
)

type YamlProviderConfig struct {
	ID   string
	Name string

	// Exactly one of Endpoint and ResourcePath must be set: the document is
	// either fetched over HTTP or read from the local filesystem.
	Endpoint     string
	ResourcePath string

	Timeout time.Duration
}

func NewYamlProvider(config YamlProviderConfig) (*YamlProvider, error) {
	if (config.Endpoint == "") == (config.ResourcePath == "") {
		return nil, &domain.ConfigurationError{
			Message: fmt.Sprintf("yaml provider %q needs exactly one of endpoint and resource path", config.Name),
		}
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = _defaultTimeout
	}

	return &YamlProvider{
		id:           config.ID,
		name:         config.Name,
		endpoint:     config.Endpoint,
		resourcePath: config.ResourcePath,
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

const _defaultTimeout = 30 * time.Second

var _ FormProvider = (*YamlProvider)(nil)

// YamlProvider serves a Form parsed from a static YAML document. The
// document is the source of truth on every call; there is no TTL cache and
// no webhook identity.
type YamlProvider struct {
	id           string
	name         string
	endpoint     string
	resourcePath string
	httpClient   *http.Client
}

func (p *YamlProvider) ID() string {
	return p.id
}

func (p *YamlProvider) Name() string {
	return p.name
}

func (p *YamlProvider) GetForm(ctx context.Context) (domain.Form, error) {
	document, err := p.loadDocument(ctx)
	if err != nil {
		return domain.Form{}, err
	}
	return p.convert(document), nil
}

func (p *YamlProvider) GetColumns(ctx context.Context) ([]domain.Column, error) {
	form, err := p.GetForm(ctx)
	if err != nil {
		return nil, err
	}
	return form.Columns, nil
}

func (p *YamlProvider) GetQuestion(ctx context.Context, recordID string) (domain.Question, error) {
	form, err := p.GetForm(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	for _, record := range form.Records {
		if record.RecordID == recordID {
			return record, nil
		}
	}
	return domain.Question{}, &domain.NotFoundError{Resource: "question", ID: recordID}
}

func (p *YamlProvider) loadDocument(ctx context.Context) (yamlDocument, error) {
	var body []byte
	var err error
	if p.endpoint != "" {
		body, err = p.fetchEndpoint(ctx)
	} else {
		body, err = os.ReadFile(p.resourcePath)
		if err != nil {
			err = &domain.NotFoundError{Resource: "resource", ID: p.resourcePath}
		}
	}
	if err != nil {
		return yamlDocument{}, err
	}

	var document yamlDocument
	if err := yaml.Unmarshal(body, &document); err != nil {
		return yamlDocument{}, &domain.ConfigurationError{
			Message: fmt.Sprintf("parsing yaml document for provider %q: %v", p.name, err),
		}
	}
	return document, nil
}

func (p *YamlProvider) fetchEndpoint(ctx context.Context) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	response, err := p.httpClient.Do(request)
	if err != nil {
		return nil, &domain.ExternalServiceError{Service: "yaml", Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, &domain.ExternalServiceError{Service: "yaml", StatusCode: response.StatusCode}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &domain.ExternalServiceError{Service: "yaml", StatusCode: response.StatusCode, Err: err}
	}
	return body, nil
}

// convert stamps the provisioned identity onto the parsed document. Every
// record's upstream identity is its own id, since a static document has no
// separate row identity.
func (p *YamlProvider) convert(document yamlDocument) domain.Form {
	form := domain.Form{
		ID:      p.id,
		Name:    document.Name,
		Columns: make([]domain.Column, 0, len(document.Columns)),
		Records: make([]domain.Question, 0, len(document.Records)),
	}
	if form.Name == "" {
		form.Name = p.name
	}

	for _, column := range document.Columns {
		converted := domain.Column{
			Name: column.Name,
			Type: domain.FieldType(column.Type),
		}
		for _, option := range column.Options {
			converted.Options = append(converted.Options, domain.Option{Name: option.Name, Color: option.Color})
		}
		form.Columns = append(form.Columns, converted)
	}

	for _, record := range document.Records {
		converted := domain.Question{
			ID:       record.ID,
			RecordID: record.ID,
			Question: record.Question,
			Metadata: domain.QuestionMetadata{
				AnswerMetadata: domain.AnswerMetadata{
					Type:    domain.AnswerType(record.Metadata.AnswerMetadata.Type),
					Options: record.Metadata.AnswerMetadata.Options,
					Units:   record.Metadata.AnswerMetadata.Units,
					Expiry:  record.Metadata.AnswerMetadata.Expiry,
				},
			},
		}
		for _, field := range record.Metadata.OptionalFields {
			converted.Metadata.OptionalFields = append(converted.Metadata.OptionalFields, domain.OptionalField{
				Key:     field.Key,
				Type:    domain.FieldType(field.Type),
				Value:   field.Value,
				Options: field.Options,
			})
		}
		form.Records = append(form.Records, converted)
	}

	return form
}

type yamlDocument struct {
	Name    string       `yaml:"name"`
	Columns []yamlColumn `yaml:"columns"`
	Records []yamlRecord `yaml:"records"`
}

type yamlColumn struct {
	Name    string       `yaml:"name"`
	Type    string       `yaml:"type"`
	Options []yamlOption `yaml:"options"`
}

type yamlOption struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

type yamlRecord struct {
	ID       string       `yaml:"id"`
	Question string       `yaml:"question"`
	Metadata yamlMetadata `yaml:"metadata"`
}

type yamlMetadata struct {
	AnswerMetadata yamlAnswerMetadata  `yaml:"answerMetadata"`
	OptionalFields []yamlOptionalField `yaml:"optionalFields"`
}

type yamlAnswerMetadata struct {
	Type    string   `yaml:"type"`
	Options []string `yaml:"options"`
	Units   []string `yaml:"units"`
	Expiry  int      `yaml:"expiry"`
}

type yamlOptionalField struct {
	Key     string   `yaml:"key"`
	Type    string   `yaml:"type"`
	Value   []string `yaml:"value"`
	Options []string `yaml:"options"`
}
