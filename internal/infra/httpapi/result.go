package httpapi

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// Result is a completed HTTP response with its body fully read.
type Result struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON response body into v. A 204 response decodes
// into nothing.
func (r *Result) Decode(v any) error {
	if r.Status == http.StatusNoContent || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// Text returns the response body as a string.
func (r *Result) Text() string {
	return string(r.Body)
}

// StatusError is returned when a request terminally fails with an HTTP
// error status. It wraps the executor's classified error.
type StatusError struct {
	Code int
	Body []byte
	err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d", e.Code)
}

func (e *StatusError) Unwrap() error { return e.err }
