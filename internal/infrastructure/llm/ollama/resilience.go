package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/kirillkom/intellidocs/internal/core/domain"
	"github.com/kirillkom/intellidocs/internal/infrastructure/resilience"
)

// APIError is a non-2xx answer from the Ollama server. Message holds the
// "error" field of the JSON body, or the raw body when it is not JSON.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ollama %s: http %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("ollama %s: http %d: %s", e.Operation, e.StatusCode, e.Message)
}

// Temporary reports whether the server may answer differently on a later
// attempt. A missing model or a malformed prompt never will.
func (e *APIError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	case http.StatusNotImplemented:
		return false
	}
	return e.StatusCode >= http.StatusInternalServerError
}

var (
	retryAndCount = resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	countOnly     = resilience.ErrorClassification{RecordFailure: true}
	ignore        = resilience.ErrorClassification{}
)

// classifyModelCallError decides retry and breaker accounting for a
// generate call. Caller cancellation is neither retried nor counted.
func classifyModelCallError(err error) resilience.ErrorClassification {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ignore
	}
	if resilience.IsCircuitOpen(err) {
		return retryAndCount
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Temporary() {
			return retryAndCount
		}
		return ignore
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return retryAndCount
	}
	return countOnly
}

// asTemporary tags errors worth another try later so the pipeline can
// tell them from bad input.
func asTemporary(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyModelCallError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
