package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the contents API. Body holds the raw
// response so callers can log it; it is never meant for end users.
type APIError struct {
	StatusCode       int
	Message          string
	DocumentationURL string
	Body             string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("github: HTTP %d: %s", e.StatusCode, e.Message)
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var wire struct {
		Message          string `json:"message"`
		DocumentationURL string `json:"documentation_url"`
	}
	if json.Unmarshal(body, &wire) == nil {
		apiErr.Message = wire.Message
		apiErr.DocumentationURL = wire.DocumentationURL
	}
	return apiErr
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not an *APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404; for contents reads this means the file does not exist yet.
func IsNotFound(err error) bool { return StatusCode(err) == http.StatusNotFound }

// IsUnauthorized reports whether the token was rejected.
func IsUnauthorized(err error) bool { return StatusCode(err) == http.StatusUnauthorized }

// IsConflict reports whether a write was rejected because the presented sha
// no longer matches the file (409), which happens when two writers race.
func IsConflict(err error) bool { return StatusCode(err) == http.StatusConflict }
