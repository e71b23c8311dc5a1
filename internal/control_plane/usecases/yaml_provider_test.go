package usecases

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"formsync-server/internal/control_plane/domain"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

const yamlFixture = `name: Release Checklist
columns:
  - name: Question
    type: TEXT
  - name: Category
    type: OPTION_SINGLE
    options:
      - name: Security
        color: blueBright
records:
  - id: q-1
    question: Is the changelog updated?
    metadata:
      answerMetadata:
        type: CHECKBOX
      optionalFields:
        - key: Category
          type: OPTION_SINGLE
          value:
            - Security
          options:
            - Security
  - id: q-2
    question: How many days until certificate expiry?
    metadata:
      answerMetadata:
        type: PERCENT
        units:
          - days
        expiry: 30
`

var _ = ginkgo.Describe("YamlProvider", func() {
	var ctx context.Context

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
	})

	ginkgo.Context("NewYamlProvider", func() {
		ginkgo.When("both endpoint and resource path are set", func() {
			ginkgo.It("should return a configuration error", func() {
				_, err := NewYamlProvider(YamlProviderConfig{
					ID:           "id-1",
					Name:         "Static",
					Endpoint:     "http://example.com/form.yaml",
					ResourcePath: "/etc/formsync/form.yaml",
				})

				var configErr *domain.ConfigurationError
				gomega.Expect(err).To(gomega.BeAssignableToTypeOf(configErr))
			})
		})

		ginkgo.When("neither endpoint nor resource path is set", func() {
			ginkgo.It("should return a configuration error", func() {
				_, err := NewYamlProvider(YamlProviderConfig{ID: "id-1", Name: "Static"})

				var configErr *domain.ConfigurationError
				gomega.Expect(err).To(gomega.BeAssignableToTypeOf(configErr))
			})
		})
	})

	ginkgo.Context("with a local document", func() {
		var provider *YamlProvider

		ginkgo.BeforeEach(func() {
			path := filepath.Join(ginkgo.GinkgoT().TempDir(), "form.yaml")
			gomega.Expect(os.WriteFile(path, []byte(yamlFixture), 0o600)).To(gomega.Succeed())

			var err error
			provider, err = NewYamlProvider(YamlProviderConfig{
				ID:           "id-1",
				Name:         "Static",
				ResourcePath: path,
			})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		ginkgo.It("should serve the parsed form stamped with the provisioned id", func() {
			form, err := provider.GetForm(ctx)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(form.ID).To(gomega.Equal("id-1"))
			gomega.Expect(form.Name).To(gomega.Equal("Release Checklist"))
			gomega.Expect(form.Columns).To(gomega.HaveLen(2))
			gomega.Expect(form.Columns[1].Options).To(gomega.ConsistOf(domain.Option{Name: "Security", Color: "blueBright"}))
			gomega.Expect(form.Records).To(gomega.HaveLen(2))
		})

		ginkgo.It("should serve columns from the same document", func() {
			columns, err := provider.GetColumns(ctx)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(columns).To(gomega.HaveLen(2))
			gomega.Expect(columns[0].Type).To(gomega.Equal(domain.FieldTypeText))
		})

		ginkgo.It("should resolve a question by record id", func() {
			question, err := provider.GetQuestion(ctx, "q-2")

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(question.Question).To(gomega.Equal("How many days until certificate expiry?"))
			gomega.Expect(question.Metadata.AnswerMetadata.Units).To(gomega.ConsistOf("days"))
			gomega.Expect(question.Metadata.AnswerMetadata.Expiry).To(gomega.Equal(30))
		})

		ginkgo.When("the record id is unknown", func() {
			ginkgo.It("should return a not found error", func() {
				_, err := provider.GetQuestion(ctx, "q-99")

				var notFoundErr *domain.NotFoundError
				gomega.Expect(err).To(gomega.BeAssignableToTypeOf(notFoundErr))
			})
		})
	})

	ginkgo.Context("with a missing local document", func() {
		ginkgo.It("should return a not found error", func() {
			provider, err := NewYamlProvider(YamlProviderConfig{
				ID:           "id-1",
				Name:         "Static",
				ResourcePath: "/nonexistent/form.yaml",
			})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			_, err = provider.GetForm(ctx)

			var notFoundErr *domain.NotFoundError
			gomega.Expect(err).To(gomega.BeAssignableToTypeOf(notFoundErr))
		})
	})

	ginkgo.Context("with a malformed local document", func() {
		ginkgo.It("should return a configuration error", func() {
			path := filepath.Join(ginkgo.GinkgoT().TempDir(), "form.yaml")
			gomega.Expect(os.WriteFile(path, []byte("records: {not: [valid"), 0o600)).To(gomega.Succeed())

			provider, err := NewYamlProvider(YamlProviderConfig{
				ID:           "id-1",
				Name:         "Static",
				ResourcePath: path,
			})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			_, err = provider.GetForm(ctx)

			var configErr *domain.ConfigurationError
			gomega.Expect(err).To(gomega.BeAssignableToTypeOf(configErr))
		})
	})

	ginkgo.Context("with an HTTP endpoint", func() {
		ginkgo.It("should fetch and parse the remote document", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, yamlFixture)
			}))
			ginkgo.DeferCleanup(server.Close)

			provider, err := NewYamlProvider(YamlProviderConfig{
				ID:       "id-1",
				Name:     "Static",
				Endpoint: server.URL,
			})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			form, err := provider.GetForm(ctx)

			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(form.Records).To(gomega.HaveLen(2))
		})

		ginkgo.When("the endpoint responds with an error status", func() {
			ginkgo.It("should return an external service error", func() {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusInternalServerError)
				}))
				ginkgo.DeferCleanup(server.Close)

				provider, err := NewYamlProvider(YamlProviderConfig{
					ID:       "id-1",
					Name:     "Static",
					Endpoint: server.URL,
				})
				gomega.Expect(err).NotTo(gomega.HaveOccurred())

				_, err = provider.GetForm(ctx)

				var externalErr *domain.ExternalServiceError
				gomega.Expect(err).To(gomega.BeAssignableToTypeOf(externalErr))
			})
		})
	})
})
