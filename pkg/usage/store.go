package usage

import (
	"context"

	"github.com/google/uuid"
)

// Store persists monthly usage counters.
//
// Get returns 0 and a nil error when no counter exists for the key: absence is
// the normal state at the start of every month.
//
// Increment must be a single atomic insert-or-increment keyed on
// (userID, monthKey, action). Implementations must never read-modify-write at
// the application layer, because concurrent increments would lose updates.
type Store interface {
	Get(ctx context.Context, userID uuid.UUID, monthKey string, action Action) (int64, error)
	Increment(ctx context.Context, userID uuid.UUID, monthKey string, action Action) (int64, error)
}
