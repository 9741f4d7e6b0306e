package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/intellidocs/internal/core/domain"
	"github.com/kirillkom/intellidocs/internal/core/ports"
	"github.com/kirillkom/intellidocs/internal/infrastructure/resilience"
)

func TestCompleteSendsGenerateRequest(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":" {\"summary\":\"ok\"} "}`))
	}))
	defer server.Close()

	client := New(server.URL+"/", "llama3", time.Second, nil)
	out, err := client.Complete(context.Background(), ports.CompletionRequest{
		System:      "Always respond with valid JSON only.",
		Prompt:      "classify me",
		Temperature: 0.3,
		MaxTokens:   500,
		JSON:        true,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != `{"summary":"ok"}` {
		t.Fatalf("Complete() = %q", out)
	}
	if captured.Model != "llama3" || captured.Format != "json" || captured.Stream {
		t.Fatalf("unexpected request: %+v", captured)
	}
	if captured.Options.Temperature != 0.3 || captured.Options.NumPredict != 500 {
		t.Fatalf("unexpected options: %+v", captured.Options)
	}
	if captured.System == "" || captured.Prompt != "classify me" {
		t.Fatalf("unexpected prompt fields: %+v", captured)
	}
}

func TestCompleteIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "gen", time.Second, nil)
	_, err := client.Complete(context.Background(), ports.CompletionRequest{Prompt: "hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error for 502, got %v", err)
	}
}

func TestCompleteRetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":"done"}`))
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})
	client := New(server.URL, "gen", time.Second, executor)
	out, err := client.Complete(context.Background(), ports.CompletionRequest{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "done" || calls.Load() != 2 {
		t.Fatalf("out=%q calls=%d", out, calls.Load())
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3, RetryInitialBackoff: time.Millisecond})
	client := New(server.URL, "gen", time.Second, executor)
	_, err := client.Complete(context.Background(), ports.CompletionRequest{Prompt: "hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("400 must not be temporary: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single attempt, got %d", calls.Load())
	}
}

func TestCompleteRejectsEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"   "}`))
	}))
	defer server.Close()

	if _, err := New(server.URL, "gen", time.Second, nil).Complete(context.Background(), ports.CompletionRequest{}); err == nil {
		t.Fatalf("expected error for empty response")
	}
}

func TestCompleteReportsMissingModelWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"llama9\" not found, try pulling it first"}`))
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3, RetryInitialBackoff: time.Millisecond})
	_, err := New(server.URL, "llama9", time.Second, executor).Complete(context.Background(), ports.CompletionRequest{Prompt: "hi"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || !strings.HasPrefix(apiErr.Message, `model "llama9" not found`) {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if domain.IsKind(err, domain.ErrTemporary) || calls.Load() != 1 {
		t.Fatalf("missing model must fail once without retry: err=%v calls=%d", err, calls.Load())
	}
}

func TestClassifyModelCallError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"canceled", context.Canceled, false, false},
		{"overloaded", &APIError{Operation: "generate", StatusCode: http.StatusServiceUnavailable}, true, true},
		{"rate limited", &APIError{Operation: "generate", StatusCode: http.StatusTooManyRequests}, true, true},
		{"not implemented", &APIError{Operation: "generate", StatusCode: http.StatusNotImplemented}, false, false},
		{"bad request", &APIError{Operation: "generate", StatusCode: http.StatusBadRequest}, false, false},
		{"decode", errors.New("decode generate response: unexpected EOF"), false, true},
	}
	for _, tc := range cases {
		got := classifyModelCallError(tc.err)
		if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
			t.Fatalf("%s: got %+v", tc.name, got)
		}
	}
}
