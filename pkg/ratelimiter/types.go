package ratelimiter

import (
	"fmt"
	"time"
)

// Config defines a fixed burst window.
type Config struct {
	Window      time.Duration // Length of the window
	MaxRequests int           // Requests allowed per window
}

// Validate reports whether the configuration can be enforced.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %v", ErrInvalidConfig, c.Window)
	}
	if c.MaxRequests <= 0 {
		return fmt.Errorf("%w: max requests must be positive, got %d", ErrInvalidConfig, c.MaxRequests)
	}
	return nil
}

// Window is the state of a single burst window.
type Window struct {
	Count       int       // Requests seen in the current window, including denied ones
	WindowStart time.Time // When the current window opened
}

// Result contains the result of a burst check.
type Result struct {
	Allowed   bool
	Limit     int           // Requests allowed per window
	Count     int           // Requests seen in the current window
	Remaining int           // Requests left in the current window, never negative
	ResetIn   time.Duration // Time until the window resets, never negative
	ResetAt   time.Time     // When the window resets
}

// RetryAfter returns how long to wait before the next request.
// Returns 0 if the request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	return r.ResetIn
}
