package subscription

import "strings"

// Tier is the subscription level that selects a quota table.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPro
}

// Status represents the billing state of a subscription.
type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusInactive Status = "inactive"
)

// ParseStatus normalises provider status strings. Unknown values map to StatusInactive,
// which never grants the paid tier.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StatusActive
	case "trialing":
		return StatusTrialing
	case "past_due":
		return StatusPastDue
	case "canceled", "cancelled":
		return StatusCanceled
	default:
		// paused, expired, incomplete and anything new
		return StatusInactive
	}
}
