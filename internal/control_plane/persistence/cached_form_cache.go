package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"formsync-server/internal/control_plane/domain"
	"formsync-server/internal/control_plane/usecases"
	"formsync-server/internal/infra/cache"
)

// CacheBackedFormCacheService implements usecases.FormCacheService on top of
// a generic cache.Cache, which may be the in-process Ristretto backend or
// Redis. Values coming back from Redis are JSON and are re-decoded into the
// typed entry; in-process values come back as-is.
type CacheBackedFormCacheService struct {
	cache      cache.Cache
	keyPrefix  string
	defaultTTL time.Duration

	// recordsByProvider mirrors which question keys each provider wrote.
	// The backend has no cheap namespace scan, so invalidation works off
	// this index.
	mu                sync.Mutex
	recordsByProvider map[string]map[string]struct{}
}

type CacheBackedFormCacheConfig struct {
	Cache     cache.Cache
	KeyPrefix string
	// DefaultTTL is backend hygiene for abandoned keys, not freshness:
	// freshness is still judged by the orchestrator from FetchedAt.
	DefaultTTL time.Duration
}

func DefaultCacheBackedFormCacheConfig() *CacheBackedFormCacheConfig {
	return &CacheBackedFormCacheConfig{
		KeyPrefix:  "formsync:",
		DefaultTTL: 24 * time.Hour,
	}
}

func NewCacheBackedFormCacheService(config *CacheBackedFormCacheConfig) (*CacheBackedFormCacheService, error) {
	if config == nil {
		config = DefaultCacheBackedFormCacheConfig()
	}
	if config.Cache == nil {
		return nil, fmt.Errorf("cache instance is required")
	}

	service := &CacheBackedFormCacheService{
		cache:             config.Cache,
		keyPrefix:         config.KeyPrefix,
		defaultTTL:        config.DefaultTTL,
		recordsByProvider: make(map[string]map[string]struct{}),
	}
	slog.Info("cache-backed form cache service initialized",
		slog.String("key_prefix", config.KeyPrefix),
		slog.Duration("default_ttl", config.DefaultTTL))
	return service, nil
}

var _ usecases.FormCacheService = (*CacheBackedFormCacheService)(nil)

func (s *CacheBackedFormCacheService) GetForm(ctx context.Context, providerID string) (usecases.Entry[domain.Form], bool) {
	return getEntry[domain.Form](ctx, s.cache, s.formKey(providerID))
}

func (s *CacheBackedFormCacheService) GetColumns(ctx context.Context, providerID string) (usecases.Entry[[]domain.Column], bool) {
	return getEntry[[]domain.Column](ctx, s.cache, s.columnsKey(providerID))
}

func (s *CacheBackedFormCacheService) GetQuestion(ctx context.Context, recordID string) (usecases.Entry[domain.Question], bool) {
	return getEntry[domain.Question](ctx, s.cache, s.questionKey(recordID))
}

func (s *CacheBackedFormCacheService) PutSnapshot(ctx context.Context, providerID string, form domain.Form, fetchedAt time.Time) {
	s.cache.Set(ctx, s.formKey(providerID), usecases.Entry[domain.Form]{Value: form, FetchedAt: fetchedAt}, s.defaultTTL)
	s.cache.Set(ctx, s.columnsKey(providerID), usecases.Entry[[]domain.Column]{Value: form.Columns, FetchedAt: fetchedAt}, s.defaultTTL)
	for _, question := range form.Records {
		if question.RecordID == "" {
			continue
		}
		s.cache.Set(ctx, s.questionKey(question.RecordID), usecases.Entry[domain.Question]{Value: question, FetchedAt: fetchedAt}, s.defaultTTL)
		s.trackRecord(providerID, question.RecordID)
	}
}

func (s *CacheBackedFormCacheService) PutColumns(ctx context.Context, providerID string, columns []domain.Column, fetchedAt time.Time) {
	s.cache.Set(ctx, s.columnsKey(providerID), usecases.Entry[[]domain.Column]{Value: columns, FetchedAt: fetchedAt}, s.defaultTTL)
}

func (s *CacheBackedFormCacheService) PutQuestion(ctx context.Context, providerID, recordID string, question domain.Question, fetchedAt time.Time) {
	s.cache.Set(ctx, s.questionKey(recordID), usecases.Entry[domain.Question]{Value: question, FetchedAt: fetchedAt}, s.defaultTTL)
	s.trackRecord(providerID, recordID)
}

func (s *CacheBackedFormCacheService) InvalidateProvider(ctx context.Context, providerID string) {
	s.cache.Delete(ctx, s.formKey(providerID))
	s.cache.Delete(ctx, s.columnsKey(providerID))

	s.mu.Lock()
	records := s.recordsByProvider[providerID]
	delete(s.recordsByProvider, providerID)
	s.mu.Unlock()

	for recordID := range records {
		s.cache.Delete(ctx, s.questionKey(recordID))
	}
}

func (s *CacheBackedFormCacheService) trackRecord(providerID, recordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.recordsByProvider[providerID]
	if !ok {
		records = make(map[string]struct{})
		s.recordsByProvider[providerID] = records
	}
	records[recordID] = struct{}{}
}

func (s *CacheBackedFormCacheService) formKey(providerID string) string {
	return s.keyPrefix + "form:" + providerID
}

func (s *CacheBackedFormCacheService) columnsKey(providerID string) string {
	return s.keyPrefix + "columns:" + providerID
}

func (s *CacheBackedFormCacheService) questionKey(recordID string) string {
	return s.keyPrefix + "question:" + recordID
}

func getEntry[T any](ctx context.Context, store cache.Cache, key string) (usecases.Entry[T], bool) {
	raw, found := store.Get(ctx, key)
	if !found {
		return usecases.Entry[T]{}, false
	}

	switch value := raw.(type) {
	case usecases.Entry[T]:
		return value, true
	case string:
		return decodeEntry[T](key, []byte(value))
	case map[string]any:
		data, err := json.Marshal(value)
		if err != nil {
			slog.Error("re-encoding cached entry failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
			return usecases.Entry[T]{}, false
		}
		return decodeEntry[T](key, data)
	default:
		slog.Error("unexpected value type in cache",
			slog.String("key", key),
			slog.String("type", fmt.Sprintf("%T", raw)))
		return usecases.Entry[T]{}, false
	}
}

func decodeEntry[T any](key string, data []byte) (usecases.Entry[T], bool) {
	var entry usecases.Entry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Error("decoding cached entry failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return usecases.Entry[T]{}, false
	}
	return entry, true
}
