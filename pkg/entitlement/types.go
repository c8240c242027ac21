package entitlement

import (
	"time"

	"github.com/dmitrymomot/fitmeter/pkg/subscription"
	"github.com/dmitrymomot/fitmeter/pkg/usage"
)

// Unlimited marks an action without a monthly cap.
const Unlimited int64 = -1

// Feature is a plan-specific feature flag.
type Feature string

const (
	FeatureAICoach          Feature = "ai_coach"          // Conversational coaching on top of AI plans
	FeatureAdvancedProgress Feature = "advanced_progress" // Volume trends and per-muscle breakdowns
)

// Reasons reported on denied decisions.
const (
	ReasonLimitReached  = "monthly limit reached"
	ReasonUpgrade       = "upgrade to pro"
	ReasonNotOnFreePlan = "not available on free plan"
	ReasonNotOnPlan     = "not available on current plan"
)

// Decision is the outcome of an entitlement check. It is computed on demand and never stored.
type Decision struct {
	Allowed   bool              `json:"allowed"`
	Action    usage.Action      `json:"action"`
	Tier      subscription.Tier `json:"tier"`
	Used      int64             `json:"used"`
	Limit     int64             `json:"limit"`
	Remaining int64             `json:"remaining"` // -1 when the limit is Unlimited
	Reason    string            `json:"reason,omitempty"`
	MonthKey  string            `json:"month"`
	ResetsAt  time.Time         `json:"resets_at"`
}

// UsagePercentage returns usage as a percentage of the limit (0-100, or -1 for unlimited).
// A zero limit reports 100 since nothing is left to use.
func UsagePercentage(d Decision) int {
	switch {
	case d.Limit == Unlimited:
		return -1
	case d.Limit <= 0:
		return 100
	}
	return int(min((d.Used*100)/d.Limit, 100))
}
