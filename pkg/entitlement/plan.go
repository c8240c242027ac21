package entitlement

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/dmitrymomot/fitmeter/pkg/subscription"
	"github.com/dmitrymomot/fitmeter/pkg/usage"
)

// Plan describes the monthly quotas and feature flags of a subscription tier.
type Plan struct {
	ID       subscription.Tier      `yaml:"-"`
	Name     string                 `yaml:"name"`
	Limits   map[usage.Action]int64 `yaml:"limits"`   // Monthly limit per action, Unlimited for no cap
	Features []Feature              `yaml:"features"` // Feature flags enabled for this plan
}

// Limit returns the monthly limit for action. Actions the plan does not list have a limit of 0.
func (p Plan) Limit(action usage.Action) int64 {
	limit, ok := p.Limits[action]
	if !ok {
		return 0
	}
	return limit
}

// HasFeature reports whether the plan enables feature.
func (p Plan) HasFeature(feature Feature) bool {
	return slices.Contains(p.Features, feature)
}

func (p Plan) clone() Plan {
	return Plan{
		ID:       p.ID,
		Name:     p.Name,
		Limits:   maps.Clone(p.Limits),
		Features: slices.Clone(p.Features),
	}
}

// DefaultPlans returns the built-in quota table.
func DefaultPlans() map[subscription.Tier]Plan {
	return map[subscription.Tier]Plan{
		subscription.TierFree: {
			ID:   subscription.TierFree,
			Name: "Free",
			Limits: map[usage.Action]int64{
				usage.ActionWorkouts: 45,
				usage.ActionAIPlans:  0,
			},
		},
		subscription.TierPro: {
			ID:   subscription.TierPro,
			Name: "Pro",
			Limits: map[usage.Action]int64{
				usage.ActionWorkouts: 90,
				usage.ActionAIPlans:  3,
			},
			Features: []Feature{FeatureAICoach, FeatureAdvancedProgress},
		},
	}
}

// validatePlans checks plan configurations for validity.
// The free plan is mandatory because every failed or missing subscription lookup lands on it.
func validatePlans(plans map[subscription.Tier]Plan) error {
	if _, ok := plans[subscription.TierFree]; !ok {
		return ErrFreePlanRequired
	}
	for tier, plan := range plans {
		if !tier.Valid() {
			return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("unknown tier %q", tier))
		}
		for action, limit := range plan.Limits {
			if !action.Valid() {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s has unknown action %q", tier, action))
			}
			if limit < Unlimited {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s has negative limit for %s: %d", tier, action, limit))
			}
		}
	}
	return nil
}
