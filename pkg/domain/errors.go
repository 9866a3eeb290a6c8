package domain

import "fmt"

// UpstreamError normalizes a failure from an external service (LLM, speech,
// identity provider) into a message plus HTTP-ish status code. Raw provider
// error shapes never travel past the call site.
type UpstreamError struct {
	Message string
	Status  int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Message)
}

// NewUpstreamError builds an UpstreamError, falling back to a generic
// message and status 500 when the upstream gave us nothing structured.
func NewUpstreamError(message string, status int) *UpstreamError {
	if message == "" {
		message = "Unknown upstream error"
	}
	if status == 0 {
		status = 500
	}
	return &UpstreamError{Message: message, Status: status}
}
