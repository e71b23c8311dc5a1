package httpapi_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"formsync-server/internal/control_plane/domain"
	"formsync-server/internal/control_plane/dto"
	"formsync-server/internal/control_plane/httpapi"
	"formsync-server/internal/control_plane/persistence"
	"formsync-server/internal/control_plane/usecases"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// stubSchemaFetcher serves one fixed table so webhook-triggered refreshes
// succeed without a live upstream.
type stubSchemaFetcher struct {
	schemaErr      error
	refreshedHooks []string
}

var _ usecases.SchemaFetcher = (*stubSchemaFetcher)(nil)

func (f *stubSchemaFetcher) GetBases(ctx context.Context) ([]dto.Base, error) {
	return []dto.Base{{ID: "appBase0000000001", Name: "Compliance"}}, nil
}

func (f *stubSchemaFetcher) GetBaseSchema(ctx context.Context, baseID string) ([]dto.Table, error) {
	if f.schemaErr != nil {
		return nil, f.schemaErr
	}
	return []dto.Table{{
		ID:   "tblTable000000001",
		Name: "Questions",
		Fields: []dto.Field{
			{Name: "ID", Type: "singleLineText"},
			{Name: "Question", Type: "multilineText"},
		},
	}}, nil
}

func (f *stubSchemaFetcher) GetAllRecords(ctx context.Context, baseID, tableID, viewID string) ([]dto.Record, error) {
	return []dto.Record{
		{ID: "rec1", Fields: map[string]any{
			"ID":         "Q-1",
			"Question":   "Is MFA enforced?",
			"AnswerType": "checkbox",
		}},
	}, nil
}

func (f *stubSchemaFetcher) GetRecord(ctx context.Context, baseID, tableID, recordID string) (dto.Record, error) {
	return dto.Record{}, &domain.ExternalServiceError{Service: "airtable", StatusCode: http.StatusNotFound}
}

func (f *stubSchemaFetcher) RefreshWebhook(ctx context.Context, baseID, webhookID string) error {
	f.refreshedHooks = append(f.refreshedHooks, webhookID)
	return nil
}

var _ = ginkgo.Describe("WebhookController", func() {
	const (
		providerID = "0f8c86f7-2f30-4e12-8a3b-111111111111"
		webhookID  = "achWebhook0000001"
	)

	var (
		fetcher   *stubSchemaFetcher
		cache     *persistence.SimpleFormCacheService
		forms     *usecases.SimpleFormService
		router    *http.ServeMux
		secretKey []byte
		rawBody   []byte
	)

	sign := func(body []byte) string {
		mac := hmac.New(sha256.New, secretKey)
		mac.Write(body)
		return "hmac-sha256=" + hex.EncodeToString(mac.Sum(nil))
	}

	doRequest := func(body []byte, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
		if signature != "" {
			req.Header.Set("X-Airtable-Content-Mac", signature)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	ginkgo.BeforeEach(func() {
		secretKey = []byte("super-secret-signing-key")
		fetcher = &stubSchemaFetcher{}
		cache = persistence.NewSimpleFormCacheService()
		forms = usecases.NewFormService()

		provider := usecases.NewAirTableProvider(usecases.AirTableProviderConfig{
			ID:            providerID,
			Name:          "Security Questions",
			BaseID:        "appBase0000000001",
			TableID:       "tblTable000000001",
			WebhookID:     webhookID,
			WebhookSecret: base64.StdEncoding.EncodeToString(secretKey),
		}, fetcher, cache)
		gomega.Expect(forms.Add(provider)).To(gomega.Succeed())

		router = http.NewServeMux()
		authenticator := usecases.NewWebhookAuthenticator(forms)
		httpapi.NewWebhookController(authenticator).AddRoutes(router)

		rawBody = []byte(fmt.Sprintf(
			`{"base":{"id":"appBase0000000001"},"webhook":{"id":%q},"timestamp":"2026-03-14T12:00:00.000Z"}`,
			webhookID))
	})

	ginkgo.When("the notification is authentic", func() {
		ginkgo.It("should refresh the provider and re-arm the subscription", func() {
			rec := doRequest(rawBody, sign(rawBody))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))

			entry, ok := cache.GetForm(context.Background(), providerID)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(entry.Value.Name).To(gomega.Equal("Compliance"))
			gomega.Expect(fetcher.refreshedHooks).To(gomega.ConsistOf(webhookID))
		})
	})

	ginkgo.When("the signature header is missing", func() {
		ginkgo.It("should reply 401 without touching the cache", func() {
			cache.PutSnapshot(context.Background(), providerID, domain.Form{ID: providerID, Name: "Cached"}, time.Now())

			rec := doRequest(rawBody, "")

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))

			entry, _ := cache.GetForm(context.Background(), providerID)
			gomega.Expect(entry.Value.Name).To(gomega.Equal("Cached"))
		})
	})

	ginkgo.When("the signature does not match", func() {
		ginkgo.It("should reply 401", func() {
			tampered := bytes.Replace(rawBody, []byte("2026"), []byte("2027"), 1)

			rec := doRequest(tampered, sign(rawBody))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})

	ginkgo.When("no provider owns the webhook id", func() {
		ginkgo.It("should reply 404", func() {
			unknown := []byte(`{"base":{"id":"appBase0000000001"},"webhook":{"id":"achUnknown0000001"},"timestamp":"2026-03-14T12:00:00.000Z"}`)

			rec := doRequest(unknown, sign(unknown))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNotFound))
		})
	})

	ginkgo.When("the payload is not valid JSON", func() {
		ginkgo.It("should reply 400", func() {
			body := []byte(`{broken`)

			rec := doRequest(body, sign(body))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})

	ginkgo.When("the refresh fails upstream", func() {
		ginkgo.It("should reply 502", func() {
			fetcher.schemaErr = &domain.ExternalServiceError{Service: "airtable", StatusCode: 502}

			rec := doRequest(rawBody, sign(rawBody))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadGateway))
		})
	})
})
