package registry

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Rate limit headers sent by Modrinth.
const (
	HeaderRateLimit     = "X-Ratelimit-Limit"
	HeaderRateRemaining = "X-Ratelimit-Remaining"
	HeaderRateReset     = "X-Ratelimit-Reset"
)

// DefaultRateLimit is Modrinth's documented budget per minute.
const DefaultRateLimit = 300

// RateLimiter tracks the request budget the registry reports. It never
// delays requests; callers check Limited and fail fast.
type RateLimiter struct {
	mu        sync.Mutex
	limit     int
	remaining int
	reset     time.Duration
	lastHit   time.Time
	now       func() time.Time
}

// NewRateLimiter creates a limiter with a full budget of limit requests.
func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{limit: limit, remaining: limit, now: time.Now}
}

// Sync updates the limiter from response headers. Missing or malformed
// headers leave the matching field alone.
func (r *RateLimiter) Sync(h http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := headerInt(h, HeaderRateLimit); ok {
		r.limit = n
	}
	if n, ok := headerInt(h, HeaderRateRemaining); ok {
		r.remaining = n
	}
	if n, ok := headerInt(h, HeaderRateReset); ok {
		r.reset = time.Duration(n) * time.Second
	}
	r.lastHit = r.now()
}

// ResetAt returns when the current window ends.
func (r *RateLimiter) ResetAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastHit.Add(r.reset)
}

// Limited reports whether the budget is exhausted, and until when.
func (r *RateLimiter) Limited() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resetAt := r.lastHit.Add(r.reset)
	return resetAt, r.remaining == 0 && !resetAt.Before(r.now())
}

// Remaining returns the requests left in the current window.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}

// Limit returns the size of the window.
func (r *RateLimiter) Limit() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limit
}

func headerInt(h http.Header, key string) (int, bool) {
	v := h.Get(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
