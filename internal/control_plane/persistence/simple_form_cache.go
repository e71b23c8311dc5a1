package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"formsync-server/internal/control_plane/domain"
	"formsync-server/internal/control_plane/usecases"
)

// SimpleFormCacheService implements usecases.FormCacheService with plain
// in-process maps. Entries are superseded on write and dropped on
// invalidation, never expired: freshness is the orchestrator's call.
// Not suitable for distributed/multi-instance deployments.
type SimpleFormCacheService struct {
	mu        sync.RWMutex
	forms     map[string]usecases.Entry[domain.Form]
	columns   map[string]usecases.Entry[[]domain.Column]
	questions map[string]usecases.Entry[domain.Question]

	// recordsByProvider tracks which question entries each provider wrote,
	// so InvalidateProvider can clear its slice of the question namespace.
	recordsByProvider map[string]map[string]struct{}
}

func NewSimpleFormCacheService() *SimpleFormCacheService {
	return &SimpleFormCacheService{
		forms:             make(map[string]usecases.Entry[domain.Form]),
		columns:           make(map[string]usecases.Entry[[]domain.Column]),
		questions:         make(map[string]usecases.Entry[domain.Question]),
		recordsByProvider: make(map[string]map[string]struct{}),
	}
}

var _ usecases.FormCacheService = (*SimpleFormCacheService)(nil)

func (s *SimpleFormCacheService) GetForm(ctx context.Context, providerID string) (usecases.Entry[domain.Form], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.forms[providerID]
	return entry, ok
}

func (s *SimpleFormCacheService) GetColumns(ctx context.Context, providerID string) (usecases.Entry[[]domain.Column], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.columns[providerID]
	return entry, ok
}

func (s *SimpleFormCacheService) GetQuestion(ctx context.Context, recordID string) (usecases.Entry[domain.Question], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.questions[recordID]
	return entry, ok
}

func (s *SimpleFormCacheService) PutSnapshot(ctx context.Context, providerID string, form domain.Form, fetchedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.forms[providerID] = usecases.Entry[domain.Form]{Value: form, FetchedAt: fetchedAt}
	s.columns[providerID] = usecases.Entry[[]domain.Column]{Value: form.Columns, FetchedAt: fetchedAt}
	for _, question := range form.Records {
		if question.RecordID == "" {
			continue
		}
		s.questions[question.RecordID] = usecases.Entry[domain.Question]{Value: question, FetchedAt: fetchedAt}
		s.trackRecord(providerID, question.RecordID)
	}

	slog.Debug("form snapshot cached",
		slog.String("provider_id", providerID),
		slog.Int("records", len(form.Records)),
		slog.Int("columns", len(form.Columns)))
}

func (s *SimpleFormCacheService) PutColumns(ctx context.Context, providerID string, columns []domain.Column, fetchedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns[providerID] = usecases.Entry[[]domain.Column]{Value: columns, FetchedAt: fetchedAt}
}

func (s *SimpleFormCacheService) PutQuestion(ctx context.Context, providerID, recordID string, question domain.Question, fetchedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[recordID] = usecases.Entry[domain.Question]{Value: question, FetchedAt: fetchedAt}
	s.trackRecord(providerID, recordID)
}

func (s *SimpleFormCacheService) InvalidateProvider(ctx context.Context, providerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.forms, providerID)
	delete(s.columns, providerID)
	for recordID := range s.recordsByProvider[providerID] {
		delete(s.questions, recordID)
	}
	delete(s.recordsByProvider, providerID)

	slog.Debug("provider cache invalidated", slog.String("provider_id", providerID))
}

func (s *SimpleFormCacheService) trackRecord(providerID, recordID string) {
	records, ok := s.recordsByProvider[providerID]
	if !ok {
		records = make(map[string]struct{})
		s.recordsByProvider[providerID] = records
	}
	records[recordID] = struct{}{}
}
