package usage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action identifies a metered operation.
type Action string

const (
	ActionWorkouts Action = "workouts"
	ActionAIPlans  Action = "ai_plans"
	ActionAPI      Action = "api" // Burst class only, never counted monthly
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionWorkouts, ActionAIPlans, ActionAPI:
		return true
	}
	return false
}

// Metered reports whether a has a monthly counter.
func (a Action) Metered() bool {
	return a == ActionWorkouts || a == ActionAIPlans
}

func (a Action) String() string { return string(a) }

// ParseMeteredAction is ParseAction restricted to actions with a monthly counter.
func ParseMeteredAction(s string) (Action, error) {
	a, err := ParseAction(s)
	if err != nil {
		return "", err
	}
	if !a.Metered() {
		return "", fmt.Errorf("%w: %q is not metered monthly", ErrInvalidAction, s)
	}
	return a, nil
}

// ParseAction converts s into a known Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
	return a, nil
}

// Record is a persisted monthly usage counter row.
// At most one record exists per (UserID, MonthKey, Action).
type Record struct {
	UserID    uuid.UUID
	MonthKey  string
	Action    Action
	Count     int64
	UpdatedAt time.Time
}

// MonthlyUsage is a single month's count, used for usage history.
type MonthlyUsage struct {
	MonthKey string `json:"month"`
	Count    int64  `json:"count"`
}
