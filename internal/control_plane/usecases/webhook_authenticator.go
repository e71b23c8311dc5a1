package usecases

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"formsync-server/internal/control_plane/domain"
)

const _signaturePrefix = "hmac-sha256="

// WebhookPayload is the body of an upstream push notification.
type WebhookPayload struct {
	Base struct {
		ID string `json:"id"`
	} `json:"base"`
	Webhook struct {
		ID string `json:"id"`
	} `json:"webhook"`
	Timestamp string `json:"timestamp"`
}

func NewWebhookAuthenticator(forms FormService) *WebhookAuthenticator {
	return &WebhookAuthenticator{forms: forms}
}

// WebhookAuthenticator proves that a push notification originated from the
// legitimate upstream source. The MAC is computed over the exact raw request
// bytes: any re-serialization of the parsed JSON could change byte-for-byte
// layout and invalidate the signature.
type WebhookAuthenticator struct {
	forms FormService
}

// Authenticate resolves the owning provider from the payload's webhook id
// and verifies the presented signature against that provider's secret. The
// provider is resolved before any MAC computation so an unknown webhook id
// costs no crypto work.
func (a *WebhookAuthenticator) Authenticate(rawBody []byte, signatureHeader string) (*AirTableProvider, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("parsing webhook payload: %w", err)
	}

	provider, err := a.forms.AirTableProviderByWebhookID(payload.Webhook.ID)
	if err != nil {
		return nil, err
	}

	if err := a.verify(rawBody, signatureHeader, provider); err != nil {
		return nil, err
	}

	return provider, nil
}

func (a *WebhookAuthenticator) verify(rawBody []byte, signatureHeader string, provider *AirTableProvider) error {
	secret := provider.WebhookSecret()
	if secret == "" {
		slog.Error("webhook secret not configured",
			slog.String("provider_id", provider.ID()),
			slog.String("provider_name", provider.Name()))
		return &domain.AuthorizationError{Message: "webhook authentication not properly configured"}
	}

	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		slog.Error("invalid webhook secret format",
			slog.String("provider_id", provider.ID()),
			slog.String("provider_name", provider.Name()))
		return &domain.AuthorizationError{Message: "invalid webhook secret configuration", Err: err}
	}

	presented, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, _signaturePrefix))
	if err != nil {
		return &domain.AuthorizationError{Message: "invalid signature"}
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(rawBody)
	if !hmac.Equal(mac.Sum(nil), presented) {
		slog.Warn("webhook signature validation failed",
			slog.String("provider_id", provider.ID()))
		return &domain.AuthorizationError{Message: "invalid signature"}
	}

	return nil
}
