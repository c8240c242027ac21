package ratelimiter

import "errors"

// Package-level error definitions for rate limiter operations.
var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrKeyRequired indicates that an empty key was supplied.
	ErrKeyRequired = errors.New("rate limit key is required")

	// ErrStoreUnavailable indicates that the store backend is unavailable.
	ErrStoreUnavailable = errors.New("store unavailable")
)
