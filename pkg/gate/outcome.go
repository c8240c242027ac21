package gate

import (
	"time"

	"github.com/dmitrymomot/fitmeter/pkg/entitlement"
	"github.com/dmitrymomot/fitmeter/pkg/ratelimiter"
)

// Outcome is the gate's verdict for a single request.
type Outcome int

const (
	OutcomeAllowed Outcome = iota
	OutcomeBurstRejected
	OutcomeQuotaRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllowed:
		return "allowed"
	case OutcomeBurstRejected:
		return "burst_rejected"
	case OutcomeQuotaRejected:
		return "quota_rejected"
	default:
		return "unknown"
	}
}

// Result describes a gate check.
// ResetIn is set for burst rejections; Decision is set whenever the quota layer ran.
type Result struct {
	Outcome  Outcome
	ResetIn  time.Duration
	Decision entitlement.Decision
	Burst    *ratelimiter.Result // nil when the burst layer was skipped
}

// Allowed reports whether the guarded action may proceed.
func (r Result) Allowed() bool {
	return r.Outcome == OutcomeAllowed
}
