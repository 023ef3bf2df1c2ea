package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/semester-scan/internal/core/domain"
	"github.com/kirillkom/semester-scan/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Provider   string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "provider status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s %s status: %s", e.Provider, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Provider, e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// NewHTTPStatusError keeps at most 2 KiB of the response body.
func NewHTTPStatusError(provider, operation string, resp *http.Response) *HTTPStatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Provider:   provider,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

// WrapProviderError attaches the domain kind: 429 is quota exhaustion,
// 401/403 a credential problem, anything else a failed classification.
func WrapProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{domain.ErrNotDispatched, domain.ErrQuotaExhausted, domain.ErrUnauthorized, domain.ErrRemoteClassification} {
		if domain.IsKind(err, kind) {
			return err
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return domain.WrapError(domain.ErrQuotaExhausted, provider, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.WrapError(domain.ErrUnauthorized, provider, err)
		}
	}
	return domain.WrapError(domain.ErrRemoteClassification, provider, err)
}

// MissingKey is returned by providers constructed without a credential.
func MissingKey(provider string) error {
	return domain.WrapError(domain.ErrNotDispatched, provider, domain.ErrMissingRemoteSettings)
}

// ClassifyError tells the breaker which failures count against the
// provider. Calls are never retried: one attempt per item.
func ClassifyError(err error) resilience.ErrorClassification {
	if err == nil || errors.Is(err, context.Canceled) || domain.IsKind(err, domain.ErrNotDispatched) {
		return resilience.ErrorClassification{}
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return resilience.ErrorClassification{RecordFailure: isServerStatus(statusErr.StatusCode)}
	}
	// Network failures, timeouts and undecodable envelopes.
	return resilience.ErrorClassification{RecordFailure: true}
}

func isServerStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
