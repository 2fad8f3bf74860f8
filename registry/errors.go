package registry

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/albertocavalcante/go-modman/mod"
)

var (
	// ErrUpstreamDown marks server errors, transport failures and an open
	// circuit breaker.
	ErrUpstreamDown = errors.New("registry unavailable")

	// ErrRateLimited matches every RateLimitedError.
	ErrRateLimited = errors.New("rate limited by registry")
)

// HTTPError represents an unexpected HTTP response.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// Is maps 404 to mod.ErrNotFound and 5xx to ErrUpstreamDown.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case mod.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUpstreamDown:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// RateLimitedError is returned while the registry's request budget is
// exhausted.
type RateLimitedError struct {
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by registry until %s", e.ResetAt.Format(time.RFC3339))
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }
