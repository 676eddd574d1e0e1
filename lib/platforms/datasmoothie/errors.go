package datasmoothie

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

var (
	// ErrAuthentication matches an *APIError caused by a missing or invalid
	// api key.
	ErrAuthentication = errors.New("authentication failed")
	// ErrNotFound matches an *APIError for a 404 response.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidOption is returned before any request is made when the
	// arguments of an operation are incomplete.
	ErrInvalidOption = errors.New("invalid option")
)

// APIError is a request that reached the server but was not accepted.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	// Detail is the "detail" field of the error body, if any.
	Detail string
	Body   []byte
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, truncate(string(e.Body), 200))
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.StatusCode == http.StatusUnauthorized ||
			e.StatusCode == http.StatusForbidden ||
			isTokenDetail(e.Detail)
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

func isTokenDetail(detail string) bool {
	detail = strings.ToLower(detail)
	return strings.Contains(detail, "invalid token") ||
		strings.Contains(detail, "authentication credentials were not provided")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func errorDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Detail
}

func invalidOption(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOption, fmt.Sprintf(format, args...))
}
