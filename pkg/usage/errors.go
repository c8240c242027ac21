package usage

import "errors"

var (
	ErrInvalidAction   = errors.New("usage: invalid action")
	ErrInvalidUserID   = errors.New("usage: invalid user id")
	ErrStoreRequired   = errors.New("usage: store is required")
	ErrReadFailed      = errors.New("usage: failed to read counter")
	ErrIncrementFailed = errors.New("usage: failed to increment counter")
	ErrPurgeFailed     = errors.New("usage: failed to purge counters")
)
