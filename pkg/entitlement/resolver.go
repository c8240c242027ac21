package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitmeter/pkg/logger"
	"github.com/dmitrymomot/fitmeter/pkg/subscription"
	"github.com/dmitrymomot/fitmeter/pkg/usage"
)

// SubscriptionReader reads the billing state of a user.
// It must return subscription.ErrSubscriptionNotFound for users without a subscription.
type SubscriptionReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error)
}

// UsageReader reads monthly usage. Implementations decide how read failures degrade;
// usage.Counter reports zero.
type UsageReader interface {
	CountFor(ctx context.Context, userID uuid.UUID, monthKey string, action usage.Action) int64
}

// Observer is notified when a subscription lookup fails and the free tier is assumed.
type Observer interface {
	SubscriptionLookupFailed()
}

// Resolver turns subscription state, quota configuration and usage into decisions.
// It never writes.
type Resolver struct {
	// Treated as immutable after construction.
	plans    map[subscription.Tier]Plan
	subs     SubscriptionReader
	counter  UsageReader
	log      *slog.Logger
	now      func() time.Time
	observer Observer
}

// Option configures a Resolver.
type Option func(*Resolver)

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock overrides the time source used to derive the month key.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func WithObserver(o Observer) Option {
	return func(r *Resolver) {
		r.observer = o
	}
}

// NewResolver loads plans from src and validates them.
func NewResolver(ctx context.Context, src Source, subs SubscriptionReader, counter UsageReader, opts ...Option) (*Resolver, error) {
	if subs == nil || counter == nil {
		panic("entitlement: subscription reader and usage reader are required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	r := &Resolver{
		plans:   plans,
		subs:    subs,
		counter: counter,
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Plan returns the configured plan for tier.
func (r *Resolver) Plan(tier subscription.Tier) (Plan, error) {
	plan, ok := r.plans[tier]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return plan.clone(), nil
}

// Tier returns the tier whose quotas currently apply to userID.
// Missing subscriptions and lookup failures both resolve to the free tier;
// only failures are logged.
func (r *Resolver) Tier(ctx context.Context, userID uuid.UUID) subscription.Tier {
	sub, err := r.subs.Get(ctx, userID)
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		return subscription.TierFree
	case err != nil:
		r.log.ErrorContext(ctx, "subscription lookup failed, applying free tier",
			logger.UserID(userID),
			logger.Error(err),
		)
		if r.observer != nil {
			r.observer.SubscriptionLookupFailed()
		}
		return subscription.TierFree
	}

	tier := sub.EffectiveTier()
	if _, ok := r.plans[tier]; !ok {
		return subscription.TierFree
	}
	return tier
}

// Resolve decides whether userID may perform action in the current month.
// A decision with Allowed=false is a normal outcome, not an error.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID, action usage.Action) Decision {
	tier := r.Tier(ctx, userID)
	return r.resolve(ctx, userID, tier, action, r.now())
}

// ResolveAll resolves every action the user's plan lists, using a single subscription lookup.
func (r *Resolver) ResolveAll(ctx context.Context, userID uuid.UUID) map[usage.Action]Decision {
	tier := r.Tier(ctx, userID)
	now := r.now()

	actions := make([]usage.Action, 0, len(r.plans[tier].Limits))
	for action := range r.plans[tier].Limits {
		actions = append(actions, action)
	}
	slices.Sort(actions)

	out := make(map[usage.Action]Decision, len(actions))
	for _, action := range actions {
		out[action] = r.resolve(ctx, userID, tier, action, now)
	}
	return out
}

// HasFeature reports whether the user's current plan enables feature.
func (r *Resolver) HasFeature(ctx context.Context, userID uuid.UUID, feature Feature) bool {
	return r.plans[r.Tier(ctx, userID)].HasFeature(feature)
}

func (r *Resolver) resolve(ctx context.Context, userID uuid.UUID, tier subscription.Tier, action usage.Action, now time.Time) Decision {
	limit := r.plans[tier].Limit(action)
	monthKey := usage.MonthKey(now)
	used := r.counter.CountFor(ctx, userID, monthKey, action)

	d := Decision{
		Action:   action,
		Tier:     tier,
		Used:     used,
		Limit:    limit,
		MonthKey: monthKey,
		ResetsAt: usage.NextReset(now),
	}

	if limit == Unlimited {
		d.Allowed = true
		d.Remaining = Unlimited
		return d
	}

	d.Remaining = max(0, limit-used)
	d.Allowed = used < limit
	if !d.Allowed {
		d.Reason = denyReason(tier, limit)
	}
	return d
}

func denyReason(tier subscription.Tier, limit int64) string {
	switch {
	case limit == 0 && tier == subscription.TierFree:
		return ReasonNotOnFreePlan
	case limit == 0:
		return ReasonNotOnPlan
	case tier == subscription.TierFree:
		return ReasonUpgrade
	default:
		return ReasonLimitReached
	}
}
