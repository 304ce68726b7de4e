package outlook

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("outlook: %s (status %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("outlook: status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a provider 404. Deleting an already
// deleted event surfaces as one of these and callers treat it as success.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// errorResponse is the provider's error envelope.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
