package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"formsync-server/internal/control_plane/domain"
	"formsync-server/internal/control_plane/httpapi/internal"
	"formsync-server/internal/control_plane/usecases"
	"formsync-server/internal/infra/httpserver"
)

func NewFormController(forms usecases.FormService) *FormController {
	return &FormController{
		forms,
	}
}

var _ httpserver.Controller = &FormController{}

type FormController struct {
	forms usecases.FormService
}

func (c *FormController) AddRoutes(router *http.ServeMux) {
	router.Handle("GET /forms", c.listForms())
	router.Handle("GET /forms/{id}", c.getForm())
	router.Handle("GET /forms/{id}/columns", c.getColumns())
	router.Handle("GET /forms/{id}/questions/{recordId}", c.getQuestion())
}

func (c *FormController) listForms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers := c.forms.Providers()
		result := make([]internal.FormMetadataResponse, 0, len(providers))
		for _, provider := range providers {
			result = append(result, internal.FormMetadataResponse{
				ID:   provider.ID(),
				Name: provider.Name(),
			})
		}

		httpserver.ReplyJSONResponse(w, http.StatusOK, result)
	}
}

func (c *FormController) getForm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := c.forms.Provider(r.PathValue("id"))
		if err != nil {
			replyProviderError(w, err)
			return
		}

		form, err := provider.GetForm(r.Context())
		if err != nil {
			replyProviderError(w, err)
			return
		}

		httpserver.ReplyJSONResponse(w, http.StatusOK, form)
	}
}

func (c *FormController) getColumns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := c.forms.Provider(r.PathValue("id"))
		if err != nil {
			replyProviderError(w, err)
			return
		}

		columns, err := provider.GetColumns(r.Context())
		if err != nil {
			replyProviderError(w, err)
			return
		}

		httpserver.ReplyJSONResponse(w, http.StatusOK, columns)
	}
}

func (c *FormController) getQuestion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, err := c.forms.Provider(r.PathValue("id"))
		if err != nil {
			replyProviderError(w, err)
			return
		}

		question, err := provider.GetQuestion(r.Context(), r.PathValue("recordId"))
		if err != nil {
			replyProviderError(w, err)
			return
		}

		httpserver.ReplyJSONResponse(w, http.StatusOK, question)
	}
}

// replyProviderError translates the core error taxonomy into the externally
// visible status code. The core itself never decides HTTP semantics.
func replyProviderError(w http.ResponseWriter, err error) {
	var notFoundErr *domain.NotFoundError
	var authErr *domain.AuthorizationError
	var externalErr *domain.ExternalServiceError

	switch {
	case errors.As(err, &notFoundErr):
		httpserver.ReplyWithError(w, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &authErr):
		httpserver.ReplyWithError(w, http.StatusUnauthorized, authErr.Error())
	case errors.As(err, &externalErr):
		slog.Error("upstream service failure",
			slog.String("service", externalErr.Service),
			slog.Int("status_code", externalErr.StatusCode))
		httpserver.ReplyWithError(w, http.StatusBadGateway, "upstream service failure")
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		httpserver.ReplyWithError(w, http.StatusInternalServerError, "internal error")
	}
}
