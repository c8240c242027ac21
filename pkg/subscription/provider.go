package subscription

import (
	"context"
	"time"
)

// BillingProvider turns signed webhook deliveries into normalised events.
// Implementations must verify the signature before trusting the payload.
type BillingProvider interface {
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// WebhookEvent represents a normalized webhook event from the billing provider.
type WebhookEvent struct {
	Type              EventType
	ProviderEvent     string // Original provider event name
	SubscriptionID    string // Provider's subscription ID
	UserID            string // Our user ID from the checkout custom data
	Status            string // Provider subscription status
	PriceID           string // Price the user subscribed to
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	OccurredAt        time.Time
}

// EventType represents the normalized billing event type.
type EventType string

const (
	EventSubscriptionCreated  EventType = "subscription_created"
	EventSubscriptionUpdated  EventType = "subscription_updated"
	EventSubscriptionCanceled EventType = "subscription_canceled"
	EventSubscriptionResumed  EventType = "subscription_resumed"
	EventPaymentFailed        EventType = "payment_failed"
)
