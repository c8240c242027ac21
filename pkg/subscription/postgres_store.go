package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/fitmeter/pkg/pg"
)

type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore implements Store on the subscriptions table.
type PostgresStore struct {
	db pgxQuerier
}

func NewPostgresStore(db pgxQuerier) *PostgresStore {
	if db == nil {
		panic("subscription: postgres connection is required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	var (
		sub    Subscription
		tier   string
		status string
	)
	err := s.db.QueryRow(ctx, `
		SELECT user_id, tier, status, provider_sub_id, current_period_end, cancel_at_period_end, updated_at
		FROM subscriptions
		WHERE user_id = $1`, userID,
	).Scan(&sub.UserID, &tier, &status, &sub.ProviderSubID, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd, &sub.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrLookupFailed, err)
	}

	sub.Tier = Tier(tier)
	sub.Status = ParseStatus(status)
	return &sub, nil
}

func (s *PostgresStore) Save(ctx context.Context, sub *Subscription) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO subscriptions (user_id, tier, status, provider_sub_id, current_period_end, cancel_at_period_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			tier = excluded.tier,
			status = excluded.status,
			provider_sub_id = excluded.provider_sub_id,
			current_period_end = excluded.current_period_end,
			cancel_at_period_end = excluded.cancel_at_period_end,
			updated_at = excluded.updated_at`,
		sub.UserID, string(sub.Tier), string(sub.Status), sub.ProviderSubID,
		sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, sub.UpdatedAt,
	)
	if err != nil {
		return errors.Join(ErrSaveFailed, fmt.Errorf("upsert subscription %s: %w", sub.UserID, err))
	}
	return nil
}
