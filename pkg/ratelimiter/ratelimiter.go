package ratelimiter

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"time"
)

// maxKeyLength is the maximum allowed length for a rate limit key
// to prevent excessively long storage keys.
const maxKeyLength = 64

// Limiter enforces fixed burst windows. The window configuration is passed
// per call so that one limiter can serve action classes with different ceilings.
type Limiter struct {
	store Store
	now   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a burst limiter backed by store.
func New(store Store, opts ...Option) *Limiter {
	if store == nil {
		panic("ratelimiter: store is required")
	}
	l := &Limiter{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndConsume records one request for key and reports whether it fits in the window.
// Denied requests still count towards the window.
func (l *Limiter) CheckAndConsume(ctx context.Context, key string, config Config) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	now := l.now()
	w, err := l.store.Hit(ctx, key, config, now)
	if err != nil {
		return nil, err
	}

	resetAt := w.WindowStart.Add(config.Window)
	return &Result{
		Allowed:   w.Count <= config.MaxRequests,
		Limit:     config.MaxRequests,
		Count:     w.Count,
		Remaining: max(0, config.MaxRequests-w.Count),
		ResetIn:   max(0, resetAt.Sub(now)),
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the window for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return l.store.Reset(ctx, key)
}

// Key builds a composite key from an action class and an identity, e.g. "ai_plans:<user-id>".
// Keys longer than 64 characters are hashed using FNV-1a.
func Key(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}

	combined := strings.Join(nonEmpty, ":")
	if len(combined) <= maxKeyLength {
		return combined
	}

	h := fnv.New64a()
	h.Write([]byte(combined))
	// Base36 encoding for compact output (~13 chars)
	return strconv.FormatUint(h.Sum64(), 36)
}
