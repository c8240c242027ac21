package ratelimiter

import (
	"context"
	"time"
)

// Store holds burst window state.
type Store interface {
	// Hit atomically applies one request to the window for key and returns the updated window.
	// If the key has no window, or now - WindowStart >= config.Window, the window restarts
	// at now with a count of 1. Otherwise the count is incremented.
	Hit(ctx context.Context, key string, config Config, now time.Time) (Window, error)

	// Reset clears the window for the given key.
	Reset(ctx context.Context, key string) error
}
