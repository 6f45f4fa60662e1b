package llm

import (
	"context"
	"strings"
)

// Request is the provider-agnostic completion request. System and User are
// plain text; provider-specific response shapes never cross this boundary.
type Request struct {
	System   string
	User     string
	Metadata map[string]any
}

// Response carries the extracted assistant text plus the raw decoded payload
// for diagnostics. Callers must not interpret Raw.
type Response struct {
	Text string
	Raw  map[string]any
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.System) == "" && strings.TrimSpace(r.User) == "" {
		return &ConfigurationError{Message: "request has neither system nor user text"}
	}
	return nil
}

// Adapter is implemented by every provider backend. Complete blocks until the
// provider responds or fails; deadlines are the adapter's responsibility.
type Adapter interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}
