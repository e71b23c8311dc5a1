package httpapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	"formsync-server/internal/control_plane/domain"
	"formsync-server/internal/control_plane/httpapi"
	"formsync-server/internal/control_plane/usecases"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

// stubFormProvider serves canned values through the FormProvider interface.
type stubFormProvider struct {
	id   string
	name string

	form        domain.Form
	formErr     error
	columns     []domain.Column
	columnsErr  error
	question    domain.Question
	questionErr error
}

var _ usecases.FormProvider = (*stubFormProvider)(nil)

func (p *stubFormProvider) ID() string   { return p.id }
func (p *stubFormProvider) Name() string { return p.name }

func (p *stubFormProvider) GetForm(ctx context.Context) (domain.Form, error) {
	return p.form, p.formErr
}

func (p *stubFormProvider) GetColumns(ctx context.Context) ([]domain.Column, error) {
	return p.columns, p.columnsErr
}

func (p *stubFormProvider) GetQuestion(ctx context.Context, recordID string) (domain.Question, error) {
	return p.question, p.questionErr
}

var _ = ginkgo.Describe("FormController", func() {
	const providerID = "0f8c86f7-2f30-4e12-8a3b-111111111111"

	var (
		forms    *usecases.SimpleFormService
		provider *stubFormProvider
		router   *http.ServeMux
	)

	ginkgo.BeforeEach(func() {
		forms = usecases.NewFormService()
		provider = &stubFormProvider{
			id:   providerID,
			name: "Security Questions",
			form: domain.Form{ID: providerID, Name: "Security Questions"},
			columns: []domain.Column{
				{Name: "Question", Type: domain.FieldTypeText},
			},
			question: domain.Question{ID: "Q-1", RecordID: "rec1", Question: "Is MFA enforced?"},
		}
		gomega.Expect(forms.Add(provider)).To(gomega.Succeed())

		router = http.NewServeMux()
		httpapi.NewFormController(forms).AddRoutes(router)
	})

	doRequest := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	ginkgo.Context("GET /forms", func() {
		ginkgo.It("should list the provisioned providers", func() {
			rec := doRequest("/forms")

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Body.String()).To(gomega.MatchJSON(
				`[{"id":"` + providerID + `","name":"Security Questions"}]`))
		})
	})

	ginkgo.Context("GET /forms/{id}", func() {
		ginkgo.It("should serve the provider's form", func() {
			rec := doRequest("/forms/" + providerID)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("Security Questions"))
		})

		ginkgo.When("the provider id is unknown", func() {
			ginkgo.It("should reply 404", func() {
				rec := doRequest("/forms/unknown")

				gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNotFound))
			})
		})

		ginkgo.When("the upstream service fails", func() {
			ginkgo.It("should reply 502 without leaking the upstream error", func() {
				provider.formErr = &domain.ExternalServiceError{Service: "airtable", StatusCode: 503}

				rec := doRequest("/forms/" + providerID)

				gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadGateway))
				gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("upstream service failure"))
				gomega.Expect(rec.Body.String()).NotTo(gomega.ContainSubstring("503"))
			})
		})

		ginkgo.When("the provider fails unexpectedly", func() {
			ginkgo.It("should reply 500", func() {
				provider.formErr = context.DeadlineExceeded

				rec := doRequest("/forms/" + providerID)

				gomega.Expect(rec.Code).To(gomega.Equal(http.StatusInternalServerError))
			})
		})
	})

	ginkgo.Context("GET /forms/{id}/columns", func() {
		ginkgo.It("should serve the provider's columns", func() {
			rec := doRequest("/forms/" + providerID + "/columns")

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("Question"))
		})

		ginkgo.When("the schema is misconfigured", func() {
			ginkgo.It("should reply 500", func() {
				provider.columnsErr = &domain.ConfigurationError{Message: "table has no fields"}

				rec := doRequest("/forms/" + providerID + "/columns")

				gomega.Expect(rec.Code).To(gomega.Equal(http.StatusInternalServerError))
			})
		})
	})

	ginkgo.Context("GET /forms/{id}/questions/{recordId}", func() {
		ginkgo.It("should serve the question", func() {
			rec := doRequest("/forms/" + providerID + "/questions/rec1")

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("Is MFA enforced?"))
		})

		ginkgo.When("the record is unknown", func() {
			ginkgo.It("should reply 404", func() {
				provider.questionErr = &domain.NotFoundError{Resource: "question", ID: "rec9"}

				rec := doRequest("/forms/" + providerID + "/questions/rec9")

				gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNotFound))
			})
		})
	})
})
