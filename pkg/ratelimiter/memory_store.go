package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// window is the in-memory state of a burst window.
type window struct {
	count       int
	windowStart time.Time
	expiresAt   time.Time // Used by cleanup to identify expired windows
}

// MemoryStore implements Store using in-memory storage.
//
// State is per process: with several instances behind a load balancer each one
// enforces its own window, so the effective ceiling is MaxRequests times the
// instance count. Use RedisStore when a shared ceiling is required.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets the cleanup interval for removing expired windows.
// Set to 0 to disable automatic cleanup.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.cleanupInterval = interval
	}
}

// NewMemoryStore creates a new in-memory store with optional cleanup.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		windows:         make(map[string]*window),
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ms)
	}

	if ms.cleanupInterval > 0 {
		go ms.cleanup()
	}

	return ms
}

// Hit applies one request to the window for key.
func (ms *MemoryStore) Hit(ctx context.Context, key string, config Config, now time.Time) (Window, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	w, exists := ms.windows[key]
	if !exists || now.Sub(w.windowStart) >= config.Window {
		w = &window{count: 1, windowStart: now}
		ms.windows[key] = w
	} else {
		w.count++
	}
	w.expiresAt = w.windowStart.Add(config.Window)

	return Window{Count: w.count, WindowStart: w.windowStart}, nil
}

func (ms *MemoryStore) Reset(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.windows, key)
	return nil
}

// Len returns the number of tracked windows.
func (ms *MemoryStore) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.windows)
}

// cleanup runs periodically to remove expired windows.
func (ms *MemoryStore) cleanup() {
	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.RemoveExpired(time.Now())
		case <-ms.stopCleanup:
			return
		}
	}
}

// RemoveExpired drops windows that ended before now and returns how many were removed.
// An expired window restarts on its next hit anyway, so dropping it changes no decision.
func (ms *MemoryStore) RemoveExpired(now time.Time) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	removed := 0
	for key, w := range ms.windows {
		if !now.Before(w.expiresAt) {
			delete(ms.windows, key)
			removed++
		}
	}
	return removed
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (ms *MemoryStore) Close() {
	ms.closeOnce.Do(func() {
		close(ms.stopCleanup)
	})
}
