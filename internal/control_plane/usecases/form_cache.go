package usecases

import (
	"context"
	"time"

	"formsync-server/internal/control_plane/domain"
)

// Entry is one cached value together with the moment it was fetched from
// upstream. Freshness is always judged by the caller; the store itself
// never expires entries.
type Entry[T any] struct {
	Value     T         `json:"value"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// FormCacheService holds the last-known projection of a provider in three
// namespaces: Form by provider id, Columns by provider id, and individual
// Questions by record id. PutSnapshot populates all three from one fetch so
// they stay mutually consistent at the moment of write.
type FormCacheService interface {
	GetForm(ctx context.Context, providerID string) (Entry[domain.Form], bool)
	GetColumns(ctx context.Context, providerID string) (Entry[[]domain.Column], bool)
	GetQuestion(ctx context.Context, recordID string) (Entry[domain.Question], bool)

	PutSnapshot(ctx context.Context, providerID string, form domain.Form, fetchedAt time.Time)
	PutColumns(ctx context.Context, providerID string, columns []domain.Column, fetchedAt time.Time)
	PutQuestion(ctx context.Context, providerID, recordID string, question domain.Question, fetchedAt time.Time)

	// InvalidateProvider drops the Form and Columns entries of a provider
	// and every Question entry written on its behalf.
	InvalidateProvider(ctx context.Context, providerID string)
}
