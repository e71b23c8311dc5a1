package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var _ = ginkgo.Describe("HTTPServer", func() {
	var (
		tp *trace.TracerProvider
	)

	ginkgo.BeforeEach(func() {
		tp = trace.NewTracerProvider(
			trace.WithSpanProcessor(tracetest.NewSpanRecorder()),
		)
		otel.SetTracerProvider(tp)
	})

	ginkgo.AfterEach(func() {
		tp.Shutdown(context.Background())
	})

	ginkgo.Context("TracingMiddleware", func() {
		ginkgo.When("handling a request", func() {
			ginkgo.It("should add a span to the request context", func() {
				testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					span := GetSpanFromContext(r)
					gomega.Expect(span).NotTo(gomega.BeNil())
					gomega.Expect(span.SpanContext().HasSpanID()).To(gomega.BeTrue())

					w.WriteHeader(http.StatusOK)
				})

				middleware := createTracingMiddleware()
				wrappedHandler := middleware(testHandler)

				req := httptest.NewRequest("GET", "/forms", nil)
				rec := httptest.NewRecorder()

				wrappedHandler.ServeHTTP(rec, req)

				gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			})
		})
	})

	ginkgo.Context("GetSpanFromContext", func() {
		ginkgo.When("no span is in context", func() {
			ginkgo.It("should return a no-op span", func() {
				req := httptest.NewRequest("GET", "/forms", nil)
				span := GetSpanFromContext(req)

				gomega.Expect(span).NotTo(gomega.BeNil())
			})
		})
	})

	ginkgo.Context("UserHeaderMiddleware", func() {
		ginkgo.When("identity headers are present", func() {
			ginkgo.It("should serve the request with span attributes set", func() {
				testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					span := GetSpanFromContext(r)
					gomega.Expect(span.SpanContext().HasSpanID()).To(gomega.BeTrue())

					w.WriteHeader(http.StatusOK)
				})

				tracingMiddleware := createTracingMiddleware()
				userHeaderMiddleware := createUserHeaderMiddleware()
				wrappedHandler := tracingMiddleware(userHeaderMiddleware(testHandler))

				req := httptest.NewRequest("GET", "/forms", nil)
				req.Header.Set("X-User-ID", "user123")
				req.Header.Set("X-User-Name", "Kim Hansen")
				req.Header.Set("X-User-Email", "kim.hansen@example.com")
				rec := httptest.NewRecorder()

				wrappedHandler.ServeHTTP(rec, req)

				gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			})
		})

		ginkgo.When("identity headers are absent", func() {
			ginkgo.It("should serve the request unchanged", func() {
				testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				})

				tracingMiddleware := createTracingMiddleware()
				userHeaderMiddleware := createUserHeaderMiddleware()
				wrappedHandler := tracingMiddleware(userHeaderMiddleware(testHandler))

				req := httptest.NewRequest("GET", "/forms", nil)
				rec := httptest.NewRecorder()

				wrappedHandler.ServeHTTP(rec, req)

				gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			})
		})
	})
})
