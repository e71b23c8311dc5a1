package usecases

import (
	"context"

	"formsync-server/internal/control_plane/domain"
	"formsync-server/internal/control_plane/dto"
)

// FormProvider is the capability set every form source exposes to the rest
// of the application, regardless of what backs it.
type FormProvider interface {
	ID() string
	Name() string
	GetForm(ctx context.Context) (domain.Form, error)
	GetColumns(ctx context.Context) ([]domain.Column, error)
	GetQuestion(ctx context.Context, recordID string) (domain.Question, error)
}

// SchemaFetcher is the outbound port to the upstream tabular API. All
// operations are idempotent reads except RefreshWebhook, which re-arms the
// upstream push subscription.
type SchemaFetcher interface {
	GetBases(ctx context.Context) ([]dto.Base, error)
	GetBaseSchema(ctx context.Context, baseID string) ([]dto.Table, error)
	GetAllRecords(ctx context.Context, baseID, tableID, viewID string) ([]dto.Record, error)
	GetRecord(ctx context.Context, baseID, tableID, recordID string) (dto.Record, error)
	RefreshWebhook(ctx context.Context, baseID, webhookID string) error
}
