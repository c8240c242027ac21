package usage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitmeter/pkg/logger"
)

// Degradation operations reported to an Observer.
const (
	OpRead      = "read"
	OpIncrement = "increment"
)

// Observer is notified whenever the counter degrades a failed store call.
type Observer interface {
	Degraded(op string, action Action)
}

// Counter is the monthly usage adapter used by the entitlement resolver and the request gate.
//
// Reads fail open: a store error is logged and treated as zero usage.
// Increments never fail the caller: the metered action already happened when
// Increment runs, so a store error is logged and dropped.
type Counter struct {
	store    Store
	log      *slog.Logger
	now      func() time.Time
	observer Observer
}

// CounterOption configures a Counter.
type CounterOption func(*Counter)

func WithLogger(l *slog.Logger) CounterOption {
	return func(c *Counter) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock overrides the time source used to derive month keys.
func WithClock(now func() time.Time) CounterOption {
	return func(c *Counter) {
		if now != nil {
			c.now = now
		}
	}
}

func WithObserver(o Observer) CounterOption {
	return func(c *Counter) {
		c.observer = o
	}
}

// NewCounter wraps a Store with the degradation policy described on Counter.
func NewCounter(store Store, opts ...CounterOption) *Counter {
	if store == nil {
		panic(ErrStoreRequired)
	}
	c := &Counter{
		store: store,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the counter's current time.
func (c *Counter) Now() time.Time {
	return c.now()
}

// Count returns the caller's usage of action in the current UTC month.
func (c *Counter) Count(ctx context.Context, userID uuid.UUID, action Action) int64 {
	return c.CountFor(ctx, userID, MonthKey(c.now()), action)
}

// CountFor returns usage for an explicit month key with the same fail-open policy as Count.
func (c *Counter) CountFor(ctx context.Context, userID uuid.UUID, monthKey string, action Action) int64 {
	n, err := c.store.Get(ctx, userID, monthKey, action)
	if err != nil {
		c.log.WarnContext(ctx, "usage counter read degraded, assuming zero usage",
			logger.UserID(userID),
			logger.Action(string(action)),
			slog.String("month_key", monthKey),
			logger.Error(err),
		)
		c.degraded(OpRead, action)
		return 0
	}
	return n
}

// Increment records one use of action for the current UTC month.
// Call it only after the metered action has succeeded.
func (c *Counter) Increment(ctx context.Context, userID uuid.UUID, action Action) {
	monthKey := MonthKey(c.now())
	if _, err := c.store.Increment(ctx, userID, monthKey, action); err != nil {
		c.log.WarnContext(ctx, "usage counter increment failed, usage not recorded",
			logger.UserID(userID),
			logger.Action(string(action)),
			slog.String("month_key", monthKey),
			logger.Error(err),
		)
		c.degraded(OpIncrement, action)
	}
}

// History returns usage for the last months (newest first), including the current one.
// Unlike Count it reports store errors, since it backs dashboards rather than decisions.
func (c *Counter) History(ctx context.Context, userID uuid.UUID, action Action, months int) ([]MonthlyUsage, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidUserID
	}
	if !action.Valid() {
		return nil, ErrInvalidAction
	}
	keys := PreviousMonthKeys(c.now(), months)
	history := make([]MonthlyUsage, 0, len(keys))
	for _, key := range keys {
		n, err := c.store.Get(ctx, userID, key, action)
		if err != nil {
			return nil, errors.Join(ErrReadFailed, err)
		}
		history = append(history, MonthlyUsage{MonthKey: key, Count: n})
	}
	return history, nil
}

func (c *Counter) degraded(op string, action Action) {
	if c.observer != nil {
		c.observer.Degraded(op, action)
	}
}
