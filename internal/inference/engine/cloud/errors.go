package cloud

import (
	"fmt"
	"net/http"
	"strings"
)

// apiError is the upstream error body plus the HTTP status.
type apiError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("cloud API error (status %d, %s): %s", e.StatusCode, e.Status, e.Message)
}

func (e *apiError) HTTPStatusCode() int { return e.StatusCode }

func (e *apiError) isRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED"
}

// isAuth covers 401/403 and the 400 the API returns for a malformed key.
func (e *apiError) isAuth() bool {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return true
	}
	if e.Status == "UNAUTHENTICATED" || e.Status == "PERMISSION_DENIED" {
		return true
	}
	return e.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(e.Message), "api key")
}
