package usecases

import (
	"fmt"
	"log/slog"
	"sync"

	"formsync-server/internal/control_plane/domain"
)

// FormService is the registry of provisioned form providers.
type FormService interface {
	Provider(id string) (FormProvider, error)
	ProviderByName(name string) (FormProvider, error)
	Providers() []FormProvider

	// AirTableProviderByWebhookID resolves the provider owning an upstream
	// push subscription. Only AirTable-backed providers carry a webhook
	// identity.
	AirTableProviderByWebhookID(webhookID string) (*AirTableProvider, error)

	Add(provider FormProvider) error
}

func NewFormService() *SimpleFormService {
	return &SimpleFormService{
		providers: make(map[string]FormProvider),
	}
}

var _ FormService = (*SimpleFormService)(nil)

type SimpleFormService struct {
	mu        sync.RWMutex
	providers map[string]FormProvider
}

func (s *SimpleFormService) Provider(id string) (FormProvider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	provider, ok := s.providers[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "form", ID: id}
	}
	return provider, nil
}

func (s *SimpleFormService) ProviderByName(name string) (FormProvider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, provider := range s.providers {
		if provider.Name() == name {
			return provider, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "form", ID: name}
}

func (s *SimpleFormService) Providers() []FormProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	providers := make([]FormProvider, 0, len(s.providers))
	for _, provider := range s.providers {
		providers = append(providers, provider)
	}
	return providers
}

func (s *SimpleFormService) AirTableProviderByWebhookID(webhookID string) (*AirTableProvider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, provider := range s.providers {
		airtableProvider, ok := provider.(*AirTableProvider)
		if !ok {
			continue
		}
		if airtableProvider.WebhookID() != "" && airtableProvider.WebhookID() == webhookID {
			return airtableProvider, nil
		}
	}
	return nil, &domain.NotFoundError{Resource: "webhook", ID: webhookID}
}

func (s *SimpleFormService) Add(provider FormProvider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.providers[provider.ID()]; exists {
		return fmt.Errorf("provider %q already registered", provider.ID())
	}
	s.providers[provider.ID()] = provider
	slog.Info("form provider registered",
		slog.String("provider_id", provider.ID()),
		slog.String("provider_name", provider.Name()),
		slog.Int("total_providers", len(s.providers)))
	return nil
}
