package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"formsync-server/internal/control_plane/domain"
	"formsync-server/internal/control_plane/dto"
	"formsync-server/internal/control_plane/mapper"
)

const _defaultStaleTime = 5 * time.Minute

type AirTableProviderConfig struct {
	ID      string
	Name    string
	BaseID  string
	TableID string
	ViewID  string

	// WebhookID and WebhookSecret bind this provider to an upstream push
	// subscription. WebhookSecret is base64 encoded at rest.
	WebhookID     string
	WebhookSecret string

	// StaleTime is how long a cache entry is served without consulting
	// upstream. Zero means the 5 minute default.
	StaleTime time.Duration
}

func NewAirTableProvider(config AirTableProviderConfig, fetcher SchemaFetcher, cache FormCacheService) *AirTableProvider {
	staleTime := config.StaleTime
	if staleTime == 0 {
		staleTime = _defaultStaleTime
	}
	return &AirTableProvider{
		id:            config.ID,
		name:          config.Name,
		baseID:        config.BaseID,
		tableID:       config.TableID,
		viewID:        config.ViewID,
		webhookID:     config.WebhookID,
		webhookSecret: config.WebhookSecret,
		staleTime:     staleTime,
		fetcher:       fetcher,
		cache:         cache,
		nowFn:         time.Now,
	}
}

var _ FormProvider = (*AirTableProvider)(nil)

// AirTableProvider projects one upstream table into the internal Form model
// and keeps that projection fresh through its FormCacheService. Concurrent
// refreshes are not deduplicated: each one writes an internally consistent
// snapshot and the last writer wins.
type AirTableProvider struct {
	id            string
	name          string
	baseID        string
	tableID       string
	viewID        string
	webhookID     string
	webhookSecret string
	staleTime     time.Duration
	fetcher       SchemaFetcher
	cache         FormCacheService
	nowFn         func() time.Time
}

func (p *AirTableProvider) ID() string {
	return p.id
}

func (p *AirTableProvider) Name() string {
	return p.name
}

func (p *AirTableProvider) WebhookID() string {
	return p.webhookID
}

func (p *AirTableProvider) WebhookSecret() string {
	return p.webhookSecret
}

func (p *AirTableProvider) GetForm(ctx context.Context) (domain.Form, error) {
	if entry, ok := p.cache.GetForm(ctx, p.id); ok && p.fresh(entry.FetchedAt) {
		return entry.Value, nil
	}
	return p.refreshForm(ctx)
}

func (p *AirTableProvider) GetColumns(ctx context.Context) ([]domain.Column, error) {
	if entry, ok := p.cache.GetColumns(ctx, p.id); ok && p.fresh(entry.FetchedAt) {
		return entry.Value, nil
	}

	table, err := p.tableSchema(ctx)
	if err != nil {
		return nil, err
	}

	columns := p.mapColumns(table.Fields)
	p.cache.PutColumns(ctx, p.id, columns, p.nowFn())
	return columns, nil
}

func (p *AirTableProvider) GetQuestion(ctx context.Context, recordID string) (domain.Question, error) {
	if entry, ok := p.cache.GetQuestion(ctx, recordID); ok && p.fresh(entry.FetchedAt) {
		return entry.Value, nil
	}

	table, err := p.tableSchema(ctx)
	if err != nil {
		return domain.Question{}, err
	}

	record, err := p.fetcher.GetRecord(ctx, p.baseID, p.tableID, recordID)
	if err != nil {
		var externalErr *domain.ExternalServiceError
		if errors.As(err, &externalErr) && externalErr.StatusCode == 404 {
			return domain.Question{}, &domain.NotFoundError{Resource: "record", ID: recordID}
		}
		return domain.Question{}, err
	}

	question, err := mapper.Question(record, table.Fields)
	if err != nil {
		// A row that is not a question cannot be served as one.
		slog.Warn("record could not be served as a question",
			slog.String("provider_id", p.id),
			slog.String("record_id", recordID),
			slog.String("error", err.Error()))
		return domain.Question{}, &domain.NotFoundError{Resource: "question", ID: recordID}
	}

	p.cache.PutQuestion(ctx, p.id, recordID, question, p.nowFn())
	return question, nil
}

// InvalidateAndRefresh is the webhook path: it clears every cache namespace
// of this provider and performs a full refresh regardless of remaining TTL,
// then re-arms the upstream push subscription.
func (p *AirTableProvider) InvalidateAndRefresh(ctx context.Context) error {
	p.cache.InvalidateProvider(ctx, p.id)

	if _, err := p.refreshForm(ctx); err != nil {
		return err
	}

	if p.webhookID != "" {
		if err := p.fetcher.RefreshWebhook(ctx, p.baseID, p.webhookID); err != nil {
			slog.Warn("re-arming upstream webhook failed",
				slog.String("provider_id", p.id),
				slog.String("webhook_id", p.webhookID),
				slog.String("error", err.Error()))
		}
	}

	return nil
}

func (p *AirTableProvider) refreshForm(ctx context.Context) (domain.Form, error) {
	table, err := p.tableSchema(ctx)
	if err != nil {
		return domain.Form{}, err
	}

	records, err := p.fetcher.GetAllRecords(ctx, p.baseID, p.tableID, p.viewID)
	if err != nil {
		return domain.Form{}, err
	}

	form := domain.Form{
		ID:      p.id,
		Name:    p.displayName(ctx, table),
		Columns: p.mapColumns(table.Fields),
		Records: p.mapRecords(records, table.Fields),
	}

	p.cache.PutSnapshot(ctx, p.id, form, p.nowFn())
	return form, nil
}

// tableSchema fetches the base schema and selects this provider's table. A
// table left without fields after truncation is a fatal configuration
// error: a Form with zero columns is not a valid product state.
func (p *AirTableProvider) tableSchema(ctx context.Context) (dto.Table, error) {
	tables, err := p.fetcher.GetBaseSchema(ctx, p.baseID)
	if err != nil {
		return dto.Table{}, err
	}

	for _, table := range tables {
		if table.ID != p.tableID {
			continue
		}
		if len(table.Fields) == 0 {
			return dto.Table{}, &domain.ConfigurationError{
				Message: fmt.Sprintf("table %s has no fields", p.tableID),
			}
		}
		return table, nil
	}

	return dto.Table{}, &domain.NotFoundError{Resource: "table", ID: p.tableID}
}

func (p *AirTableProvider) mapColumns(fields []dto.Field) []domain.Column {
	columns := make([]domain.Column, 0, len(fields))
	for _, field := range fields {
		if field.Type == mapper.ExternalTypeRecordLink {
			continue
		}
		column, err := mapper.Column(field)
		if err != nil {
			slog.Error("field type could not be mapped, skipping column",
				slog.String("provider_id", p.id),
				slog.String("field_name", field.Name),
				slog.String("field_type", field.Type))
			continue
		}
		columns = append(columns, column)
	}
	return columns
}

func (p *AirTableProvider) mapRecords(records []dto.Record, fields []dto.Field) []domain.Question {
	questions := make([]domain.Question, 0, len(records))
	for _, record := range records {
		question, err := mapper.Question(record, fields)
		if errors.Is(err, mapper.ErrNotQuestion) {
			continue
		}
		if err != nil {
			slog.Error("answer type could not be mapped, skipping record",
				slog.String("provider_id", p.id),
				slog.String("record_id", record.ID),
				slog.String("error", err.Error()))
			continue
		}
		questions = append(questions, question)
	}
	return questions
}

// displayName prefers the owning base's name and falls back to the schema
// table name when the base cannot be resolved.
func (p *AirTableProvider) displayName(ctx context.Context, table dto.Table) string {
	bases, err := p.fetcher.GetBases(ctx)
	if err != nil {
		slog.Warn("listing bases for display name failed",
			slog.String("provider_id", p.id),
			slog.String("error", err.Error()))
		return table.Name
	}
	for _, base := range bases {
		if base.ID == p.baseID && base.Name != "" {
			return base.Name
		}
	}
	return table.Name
}

func (p *AirTableProvider) fresh(fetchedAt time.Time) bool {
	return p.nowFn().Sub(fetchedAt) < p.staleTime
}
