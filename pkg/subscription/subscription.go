package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Subscription is the billing state of a user as last reported by the billing provider.
// Each user has at most one subscription row.
type Subscription struct {
	UserID            uuid.UUID
	Tier              Tier
	Status            Status
	ProviderSubID     string // Provider's subscription ID (empty for free users)
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	UpdatedAt         time.Time
}

// IsEntitledTier reports whether the status grants the subscribed tier.
// Only active and trialing subscriptions do; past_due and canceled fall back to free.
func (s *Subscription) IsEntitledTier() bool {
	if s == nil {
		return false
	}
	return s.Status == StatusActive || s.Status == StatusTrialing
}

// EffectiveTier returns the tier whose quotas apply right now.
func (s *Subscription) EffectiveTier() Tier {
	if s.IsEntitledTier() && s.Tier == TierPro {
		return TierPro
	}
	return TierFree
}

// Free returns the implicit subscription of a user the billing provider has never reported.
func Free(userID uuid.UUID) *Subscription {
	return &Subscription{
		UserID: userID,
		Tier:   TierFree,
		Status: StatusInactive,
	}
}
