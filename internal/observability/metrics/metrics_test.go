package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/intellidocs/internal/core/domain"
)

func TestSharedRegistryExposesPipelineAndHTTPMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	pipeline := NewPipelineMetrics("api", registry)
	httpMetrics := NewHTTPServerMetrics("api", registry)

	pipeline.StartDocument()
	pipeline.FinishDocument(domain.StatusFailed, domain.ErrorKindStorage, 0.2)
	pipeline.ObserveClassification(true)
	pipeline.ObserveBreakerState("openai.chat_completion", gobreaker.StateClosed, gobreaker.StateOpen)

	handler := httpMetrics.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/documents/abc", nil))

	rec := httptest.NewRecorder()
	pipeline.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`intellidocs_pipeline_document_process_total{error_kind="storage",service="api",status="failed"} 1`,
		`intellidocs_classifier_classifications_total{service="api",source="fallback"} 1`,
		`intellidocs_resilience_circuit_breaker_state{operation="openai.chat_completion",service="api"} 2`,
		`intellidocs_http_requests_total{method="GET",path="/v1/documents/{document_id}",service="api",status="404"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in metrics output:\n%s", want, body)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/v1/documents/123":    "/v1/documents/{document_id}",
		"/v1/documents/export": "/v1/documents/export",
		"/healthz":             "/healthz",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
