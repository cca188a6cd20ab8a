package llm

import "fmt"

// The sentinel error types an LLM Client is contractually required to
// return. The agent's recovery policy dispatches on these
// via errors.As, never on string-matching the provider's raw message
// (except where the provider's own error text must be pattern-matched —
// see pkg/agent/recovery.go for the one place that applies).

// RateLimitError indicates the provider rejected the request for exceeding
// a rate limit.
type RateLimitError struct {
	Provider string
	Message  string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited: %s", e.Provider, e.Message)
}

// APIError is a generic provider-side error not otherwise classified.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: api error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// APIConnectionError indicates the request never reached the provider
// (DNS, TCP, TLS, timeout).
type APIConnectionError struct {
	Provider string
	Message  string
}

func (e *APIConnectionError) Error() string {
	return fmt.Sprintf("%s: connection error: %s", e.Provider, e.Message)
}

// BadRequestError indicates the provider rejected the request shape.
// Message is the provider's own text — the agent's recovery policy pattern
// matches it (see pkg/agent/recovery.go) because the shape of the fix
// (drop temperature, repair tool history, ...) is determined by what the
// provider is complaining about, not by a type the provider emits.
type BadRequestError struct {
	Provider string
	Message  string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("%s: bad request: %s", e.Provider, e.Message)
}

// ServiceUnavailableError indicates the provider is temporarily down.
type ServiceUnavailableError struct {
	Provider string
	Message  string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s: service unavailable: %s", e.Provider, e.Message)
}

// NotFoundError indicates the requested model name is unknown to the
// provider.
type NotFoundError struct {
	Provider string
	Model    string
	Message  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: model %q not found: %s", e.Provider, e.Model, e.Message)
}

// InternalServerError indicates a 5xx from the provider not otherwise
// classified as ServiceUnavailable.
type InternalServerError struct {
	Provider string
	Message  string
}

func (e *InternalServerError) Error() string {
	return fmt.Sprintf("%s: internal server error: %s", e.Provider, e.Message)
}

// ClassifyStatus maps an HTTP status code (and, where needed, the response
// body) to one of the sentinel error types above. Grounded on
// llms/anthropic.go's isRetryableError status table.
func ClassifyStatus(provider string, statusCode int, body string) error {
	switch {
	case statusCode == 429:
		return &RateLimitError{Provider: provider, Message: body}
	case statusCode == 400:
		return &BadRequestError{Provider: provider, Message: body}
	case statusCode == 404:
		return &NotFoundError{Provider: provider, Message: body}
	case statusCode == 503:
		return &ServiceUnavailableError{Provider: provider, Message: body}
	case statusCode == 500, statusCode == 502, statusCode == 504:
		return &InternalServerError{Provider: provider, Message: body}
	case statusCode >= 400:
		return &APIError{Provider: provider, StatusCode: statusCode, Message: body}
	default:
		return &APIError{Provider: provider, StatusCode: statusCode, Message: body}
	}
}

// IsRetryable reports whether err represents a condition worth an inline
// retry (rate limit, connection, service-unavailable, internal-server) as
// opposed to a permanent rejection (bad request, not found).
func IsRetryable(err error) bool {
	switch err.(type) {
	case *RateLimitError, *APIConnectionError, *ServiceUnavailableError, *InternalServerError:
		return true
	default:
		return false
	}
}
