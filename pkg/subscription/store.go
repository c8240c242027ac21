package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Store defines subscription persistence.
// UserID is the primary key: each user has exactly zero or one subscription.
type Store interface {
	// Get retrieves a subscription by user ID.
	// Returns ErrSubscriptionNotFound if no subscription exists.
	Get(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// Save creates or updates a subscription.
	Save(ctx context.Context, subscription *Subscription) error
}
