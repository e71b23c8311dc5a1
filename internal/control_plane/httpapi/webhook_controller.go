package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"formsync-server/internal/control_plane/domain"
	"formsync-server/internal/control_plane/usecases"
	"formsync-server/internal/infra/httpserver"
)

const _signatureHeader = "X-Airtable-Content-Mac"

func NewWebhookController(authenticator *usecases.WebhookAuthenticator) *WebhookController {
	return &WebhookController{
		authenticator,
	}
}

var _ httpserver.Controller = &WebhookController{}

// WebhookController accepts push notifications from the upstream source.
// The raw body bytes are kept for signature verification; the parsed JSON
// is only used for routing.
type WebhookController struct {
	authenticator *usecases.WebhookAuthenticator
}

func (c *WebhookController) AddRoutes(router *http.ServeMux) {
	router.Handle("POST /webhook", c.handleWebhook())
}

func (c *WebhookController) handleWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		signature := r.Header.Get(_signatureHeader)
		if signature == "" {
			slog.Warn("webhook request without signature header")
			httpserver.ReplyWithError(w, http.StatusUnauthorized, "missing signature")
			return
		}

		rawBody, err := io.ReadAll(r.Body)
		if err != nil {
			httpserver.ReplyWithError(w, http.StatusBadRequest, "reading request body failed")
			return
		}

		var payload usecases.WebhookPayload
		if err := json.Unmarshal(rawBody, &payload); err != nil {
			slog.Warn("webhook request with malformed payload", slog.String("error", err.Error()))
			httpserver.ReplyWithError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}

		provider, err := c.authenticator.Authenticate(rawBody, signature)
		if err != nil {
			replyWebhookError(w, payload.Webhook.ID, err)
			return
		}

		if err := provider.InvalidateAndRefresh(r.Context()); err != nil {
			slog.Error("webhook-triggered refresh failed",
				slog.String("provider_id", provider.ID()),
				slog.String("error", err.Error()))
			httpserver.ReplyWithError(w, http.StatusBadGateway, "failed to process webhook")
			return
		}

		slog.Info("webhook processed",
			slog.String("provider_id", provider.ID()),
			slog.String("webhook_id", payload.Webhook.ID))
		httpserver.ReplyJSONResponse(w, http.StatusOK, nil)
	}
}

func replyWebhookError(w http.ResponseWriter, webhookID string, err error) {
	var notFoundErr *domain.NotFoundError
	var authErr *domain.AuthorizationError

	switch {
	case errors.As(err, &notFoundErr):
		slog.Warn("webhook for unknown provider", slog.String("webhook_id", webhookID))
		httpserver.ReplyWithError(w, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &authErr):
		slog.Warn("webhook authorization failed",
			slog.String("webhook_id", webhookID),
			slog.String("reason", authErr.Error()))
		httpserver.ReplyWithError(w, http.StatusUnauthorized, authErr.Error())
	default:
		slog.Error("webhook processing failed", slog.String("error", err.Error()))
		httpserver.ReplyWithError(w, http.StatusBadRequest, "failed to process webhook")
	}
}
