package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + strings.TrimSpace(e.Message)
}

// InvocationError is the unified model-invocation failure. Summary is safe to
// show to an operator; Detail holds provider payloads and is for logs only.
type InvocationError struct {
	ProviderName string
	Summary      string
	Detail       string
	Status       int
	CanRetry     bool
}

func (e *InvocationError) Error() string {
	s := strings.TrimSpace(e.Summary)
	if s == "" {
		s = "model invocation failed"
	}
	return s
}

func (e *InvocationError) Provider() string { return e.ProviderName }
func (e *InvocationError) StatusCode() int  { return e.Status }
func (e *InvocationError) Retryable() bool  { return e.CanRetry }

// ErrorFromHTTPStatus classifies a provider HTTP failure. Timeouts, rate
// limits and server errors are retryable; client errors are not.
func ErrorFromHTTPStatus(provider string, status int, detail string) *InvocationError {
	retryable := false
	switch {
	case status == 408 || status == 429:
		retryable = true
	case status >= 500:
		retryable = true
	}
	return &InvocationError{
		ProviderName: provider,
		Summary:      fmt.Sprintf("%s request failed (status=%d)", provider, status),
		Detail:       detail,
		Status:       status,
		CanRetry:     retryable,
	}
}

// WrapTransportError normalizes transport-level failures (DNS, refused
// connections, context deadlines) into the unified error shape.
func WrapTransportError(provider string, err error) *InvocationError {
	summary := fmt.Sprintf("%s request failed", provider)
	if errors.Is(err, context.DeadlineExceeded) {
		summary = fmt.Sprintf("%s request timed out", provider)
	} else if errors.Is(err, context.Canceled) {
		summary = fmt.Sprintf("%s request canceled", provider)
	}
	return &InvocationError{
		ProviderName: provider,
		Summary:      summary,
		Detail:       err.Error(),
	}
}

func IsRetryable(err error) bool {
	var e *InvocationError
	return errors.As(err, &e) && e.CanRetry
}
