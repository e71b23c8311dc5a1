// Package airtable implements the outbound HTTP client for the upstream
// tabular API. It is stateless: every call hits the upstream and no response
// is cached here.
package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"formsync-server/internal/control_plane/domain"
	"formsync-server/internal/control_plane/dto"
	"formsync-server/internal/control_plane/usecases"
)

const (
	_serviceName    = "airtable"
	_defaultTimeout = 30 * time.Second

	// _maxPages bounds the pagination loop so a buggy upstream cursor
	// cannot grow memory without bound.
	_maxPages = 1000

	// _stopFieldName is the sentinel column marking internal-only trailing
	// fields. It and everything after it never surface in the product.
	_stopFieldName = "STOP"
)

type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

func NewClient(config Config) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = _defaultTimeout
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     config.BaseURL,
		accessToken: config.AccessToken,
	}
}

var _ usecases.SchemaFetcher = (*Client)(nil)

type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
}

// GetBases lists the bases visible to the configured token.
func (c *Client) GetBases(ctx context.Context) ([]dto.Base, error) {
	var response dto.BasesResponse
	if err := c.getJSON(ctx, c.baseURL+"/v0/meta/bases", &response); err != nil {
		return nil, err
	}
	return response.Bases, nil
}

// GetBaseSchema fetches the table schemas of a base and truncates each
// table's field list at the STOP sentinel.
func (c *Client) GetBaseSchema(ctx context.Context, baseID string) ([]dto.Table, error) {
	var response dto.SchemaResponse
	endpoint := fmt.Sprintf("%s/v0/meta/bases/%s/tables", c.baseURL, baseID)
	if err := c.getJSON(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	tables := make([]dto.Table, len(response.Tables))
	for i, table := range response.Tables {
		table.Fields = truncateOnStop(table.Fields)
		tables[i] = table
	}
	return tables, nil
}

// GetAllRecords follows the offset cursor until the upstream omits it,
// accumulating every page in order.
func (c *Client) GetAllRecords(ctx context.Context, baseID, tableID, viewID string) ([]dto.Record, error) {
	var records []dto.Record
	offset := ""
	for page := 0; page < _maxPages; page++ {
		response, err := c.getRecordsPage(ctx, baseID, tableID, viewID, offset)
		if err != nil {
			return nil, err
		}
		records = append(records, response.Records...)
		if response.Offset == "" {
			return records, nil
		}
		offset = response.Offset
	}

	return nil, &domain.ExternalServiceError{
		Service: _serviceName,
		Err:     fmt.Errorf("pagination did not terminate within %d pages", _maxPages),
	}
}

// GetRecord fetches a single record, used for targeted refreshes.
func (c *Client) GetRecord(ctx context.Context, baseID, tableID, recordID string) (dto.Record, error) {
	var record dto.Record
	endpoint := fmt.Sprintf("%s/v0/%s/%s/%s", c.baseURL, baseID, tableID, recordID)
	if err := c.getJSON(ctx, endpoint, &record); err != nil {
		return dto.Record{}, err
	}
	return record, nil
}

// RefreshWebhook re-arms the upstream push subscription after a
// notification has been consumed.
func (c *Client) RefreshWebhook(ctx context.Context, baseID, webhookID string) error {
	endpoint := fmt.Sprintf("%s/v0/bases/%s/webhooks/%s/refresh", c.baseURL, baseID, webhookID)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.accessToken)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return &domain.ExternalServiceError{Service: _serviceName, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &domain.ExternalServiceError{Service: _serviceName, StatusCode: response.StatusCode}
	}
	return nil
}

func (c *Client) getRecordsPage(ctx context.Context, baseID, tableID, viewID, offset string) (dto.RecordsPage, error) {
	endpoint := fmt.Sprintf("%s/v0/%s/%s", c.baseURL, baseID, tableID)
	query := url.Values{}
	if viewID != "" {
		query.Set("view", viewID)
	}
	if offset != "" {
		query.Set("offset", offset)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var page dto.RecordsPage
	if err := c.getJSON(ctx, endpoint, &page); err != nil {
		return dto.RecordsPage{}, err
	}
	return page, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, placeholder any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.accessToken)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return &domain.ExternalServiceError{Service: _serviceName, Err: err}
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return &domain.ExternalServiceError{Service: _serviceName, StatusCode: response.StatusCode, Err: err}
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &domain.ExternalServiceError{Service: _serviceName, StatusCode: response.StatusCode}
	}

	if err := json.Unmarshal(body, placeholder); err != nil {
		return &domain.ExternalServiceError{Service: _serviceName, StatusCode: response.StatusCode, Err: fmt.Errorf("unmarshaling response: %w", err)}
	}
	return nil
}

func truncateOnStop(fields []dto.Field) []dto.Field {
	for i, field := range fields {
		if field.Name == _stopFieldName {
			return fields[:i]
		}
	}
	return fields
}
