package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitmeter/pkg/logger"
)

// TierResolver maps a provider price ID to a tier.
type TierResolver func(priceID string) Tier

// PriceTiers returns a TierResolver granting pro for the listed price IDs and free otherwise.
func PriceTiers(proPriceIDs ...string) TierResolver {
	ids := slices.Clone(proPriceIDs)
	return func(priceID string) Tier {
		if slices.Contains(ids, priceID) {
			return TierPro
		}
		return TierFree
	}
}

// Service keeps the subscription table in sync with billing provider webhooks.
// It is the only writer of subscription rows; the entitlement resolver only reads them.
type Service struct {
	provider BillingProvider
	store    Store
	tierFor  TierResolver
	log      *slog.Logger
	now      func() time.Time
}

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithTierResolver sets how price IDs map to tiers. Defaults to treating every paid price as pro.
func WithTierResolver(fn TierResolver) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.tierFor = fn
		}
	}
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService creates a webhook-driven subscription service.
// Panics if provider or store are nil to fail fast during initialization.
func NewService(provider BillingProvider, store Store, opts ...ServiceOption) *Service {
	if provider == nil {
		panic("subscription: BillingProvider is required")
	}
	if store == nil {
		panic("subscription: Store is required")
	}

	s := &Service{
		provider: provider,
		store:    store,
		tierFor: func(priceID string) Tier {
			if priceID == "" {
				return TierFree
			}
			return TierPro
		},
		log: slog.Default(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the stored subscription for userID.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.store.Get(ctx, userID)
}

// HandleWebhook verifies and applies a billing provider webhook.
// Unknown event types are acknowledged and ignored. Events older than the stored
// row are ignored too, since providers do not guarantee delivery order.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		return err
	}

	switch event.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionResumed,
		EventSubscriptionCanceled, EventPaymentFailed:
	default:
		s.log.DebugContext(ctx, "ignoring billing event", logger.EventType(event.ProviderEvent))
		return nil
	}

	if event.UserID == "" {
		return ErrMissingUserID
	}
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return errors.Join(ErrInvalidWebhookPayload, fmt.Errorf("parse user ID %q: %w", event.UserID, err))
	}

	current, err := s.store.Get(ctx, userID)
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		current = nil
	case err != nil:
		return err
	}

	occurredAt := event.OccurredAt.UTC()
	if occurredAt.IsZero() {
		occurredAt = s.now().UTC()
	}
	if current != nil && current.UpdatedAt.After(occurredAt) {
		s.log.InfoContext(ctx, "skipping out-of-order billing event",
			logger.EventType(event.ProviderEvent),
			logger.UserID(userID),
		)
		return nil
	}

	next := s.apply(current, event, userID, occurredAt)
	if next == nil {
		return nil
	}
	if err := s.store.Save(ctx, next); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "subscription updated from billing event",
		logger.EventType(event.ProviderEvent),
		logger.UserID(userID),
		logger.Tier(string(next.Tier)),
		slog.String("status", string(next.Status)),
	)
	return nil
}

// apply computes the subscription after event. Returns nil when nothing should be stored.
func (s *Service) apply(current *Subscription, event *WebhookEvent, userID uuid.UUID, at time.Time) *Subscription {
	next := Free(userID)
	if current != nil {
		c := *current
		next = &c
	}
	next.UpdatedAt = at

	switch event.Type {
	case EventPaymentFailed:
		// A failed renewal of an unknown subscription carries nothing to store.
		if current == nil {
			return nil
		}
		next.Status = StatusPastDue
		return next

	case EventSubscriptionCanceled:
		next.Status = StatusCanceled
		next.CancelAtPeriodEnd = false
	default:
		next.Status = ParseStatus(event.Status)
		next.CancelAtPeriodEnd = event.CancelAtPeriodEnd
	}

	if event.SubscriptionID != "" {
		next.ProviderSubID = event.SubscriptionID
	}
	if event.PriceID != "" {
		next.Tier = s.tierFor(event.PriceID)
	}
	if event.CurrentPeriodEnd != nil {
		next.CurrentPeriodEnd = event.CurrentPeriodEnd
	}
	return next
}
