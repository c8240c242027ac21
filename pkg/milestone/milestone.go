package milestone

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// DefaultThreshold is the number of qualifying workouts that unlocks progress tracking.
const DefaultThreshold int64 = 10

// ErrCountFailed wraps failures of the qualifying record counter.
var ErrCountFailed = errors.New("milestone: failed to count qualifying records")

// CounterFunc returns the lifetime number of qualifying records for a user.
type CounterFunc func(ctx context.Context, userID uuid.UUID) (int64, error)

// State is the derived unlock state. It is recomputed on every call and never stored.
type State struct {
	Unlocked      bool  `json:"unlocked"`
	ProgressCount int64 `json:"progress_count"`
	Threshold     int64 `json:"threshold"`
}

// Remaining returns how many more qualifying records are needed to unlock.
func (s State) Remaining() int64 {
	return max(0, s.Threshold-s.ProgressCount)
}

// Evaluator derives the progress-unlocked entitlement from a live count.
// Because the count is live, deleting records can lock the feature again.
type Evaluator struct {
	count     CounterFunc
	threshold int64
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithThreshold overrides DefaultThreshold. Non-positive values are ignored.
func WithThreshold(n int64) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.threshold = n
		}
	}
}

// NewEvaluator creates an Evaluator backed by count.
func NewEvaluator(count CounterFunc, opts ...Option) *Evaluator {
	if count == nil {
		panic("milestone: counter function is required")
	}
	e := &Evaluator{count: count, threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold returns the configured unlock threshold.
func (e *Evaluator) Threshold() int64 {
	return e.threshold
}

// IsUnlocked evaluates the milestone for userID.
// Counter errors are returned instead of guessing a state.
func (e *Evaluator) IsUnlocked(ctx context.Context, userID uuid.UUID) (State, error) {
	n, err := e.count(ctx, userID)
	if err != nil {
		return State{Threshold: e.threshold}, errors.Join(ErrCountFailed, err)
	}
	return State{
		Unlocked:      n >= e.threshold,
		ProgressCount: n,
		Threshold:     e.threshold,
	}, nil
}
