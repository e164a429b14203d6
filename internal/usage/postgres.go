package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verba-platform/verba/internal/plans"
)

// PostgresLedger stores usage events in the append-only usage_events table.
// Each Record is a single INSERT, so concurrent commits never overwrite each
// other; InWindow sums events newer than the window start.
type PostgresLedger struct {
	pool   *pgxpool.Pool
	window time.Duration
}

// NewPostgresLedger creates a ledger with the given rolling window size.
func NewPostgresLedger(pool *pgxpool.Pool, window time.Duration) *PostgresLedger {
	return &PostgresLedger{pool: pool, window: window}
}

// InWindow sums units recorded within the trailing window ending now.
func (l *PostgresLedger) InWindow(ctx context.Context, userID uuid.UUID, capability plans.Capability) (int, error) {
	if err := validateCapability(capability); err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-l.window)

	var total int
	err := l.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(units), 0)
		 FROM usage_events
		 WHERE user_id = $1 AND capability = $2 AND occurred_at > $3`,
		userID, string(capability), cutoff,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing usage in window: %w", err)
	}
	return total, nil
}

// Record appends one usage event stamped now.
func (l *PostgresLedger) Record(ctx context.Context, userID uuid.UUID, capability plans.Capability, units int) error {
	if err := validateCapability(capability); err != nil {
		return err
	}
	if units <= 0 {
		return fmt.Errorf("units must be positive, got %d", units)
	}

	_, err := l.pool.Exec(ctx,
		`INSERT INTO usage_events (id, user_id, capability, units, occurred_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New(), userID, string(capability), units)
	if err != nil {
		return fmt.Errorf("inserting usage event: %w", err)
	}
	return nil
}
