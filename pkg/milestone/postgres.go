package milestone

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DefaultTable holds the user's workout records.
const DefaultTable = "workouts"

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresCounter counts records in table whose status is completed or in_progress.
// The table name is interpolated into SQL, so it must be a plain (optionally schema-qualified) identifier.
func PostgresCounter(db rowQuerier, table string) (CounterFunc, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("milestone: invalid table name %q", table)
	}

	query := fmt.Sprintf(
		`SELECT count(*) FROM %s WHERE user_id = $1 AND status IN ('completed', 'in_progress')`,
		table,
	)

	return func(ctx context.Context, userID uuid.UUID) (int64, error) {
		var n int64
		if err := db.QueryRow(ctx, query, userID).Scan(&n); err != nil {
			return 0, fmt.Errorf("count qualifying records for %s: %w", userID, err)
		}
		return n, nil
	}, nil
}
