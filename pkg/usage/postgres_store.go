package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/fitmeter/pkg/pg"
)

// pgxQuerier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	getCounterQuery = `
		SELECT count FROM usage_counters
		WHERE user_id = $1 AND month_key = $2 AND action = $3`

	// Single statement upsert; the unique constraint on
	// (user_id, month_key, action) serialises concurrent increments.
	incrementCounterQuery = `
		INSERT INTO usage_counters (user_id, month_key, action, count, updated_at)
		VALUES ($1, $2, $3, 1, now())
		ON CONFLICT (user_id, month_key, action)
		DO UPDATE SET count = usage_counters.count + 1, updated_at = now()
		RETURNING count`
)

// PostgresStore implements Store on top of the usage_counters table.
type PostgresStore struct {
	db pgxQuerier
}

// NewPostgresStore creates a Postgres-backed counter store.
func NewPostgresStore(db pgxQuerier) *PostgresStore {
	if db == nil {
		panic("usage: postgres connection is required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID uuid.UUID, monthKey string, action Action) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, getCounterQuery, userID, monthKey, string(action)).Scan(&count)
	if pg.IsNotFoundError(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Join(ErrReadFailed, fmt.Errorf("get usage counter: %w", err))
	}
	return count, nil
}

func (s *PostgresStore) Increment(ctx context.Context, userID uuid.UUID, monthKey string, action Action) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, incrementCounterQuery, userID, monthKey, string(action)).Scan(&count); err != nil {
		return 0, errors.Join(ErrIncrementFailed, fmt.Errorf("increment usage counter: %w", err))
	}
	return count, nil
}

// Purge deletes counters for months strictly before monthKey and returns the number of removed rows.
// Month keys sort lexicographically in chronological order.
func (s *PostgresStore) Purge(ctx context.Context, beforeMonthKey string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM usage_counters WHERE month_key < $1`, beforeMonthKey)
	if err != nil {
		return 0, errors.Join(ErrPurgeFailed, fmt.Errorf("purge usage counters before %s: %w", beforeMonthKey, err))
	}
	return tag.RowsAffected(), nil
}
