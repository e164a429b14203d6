package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	// GetByUserID returns the user's subscription, or (nil, nil) when the
	// user has none. Any other outcome is a storage error.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// Upsert writes the user's subscription in one atomic statement keyed on
	// the user_id uniqueness constraint. Concurrent grants for the same user
	// cannot produce two rows; the last writer wins.
	Upsert(ctx context.Context, userID, planID uuid.UUID, expiresAt time.Time) (*Subscription, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	query := `SELECT id, user_id, plan_id, status, expires_at, created_at, updated_at
	          FROM subscriptions WHERE user_id = $1`

	sub := &Subscription{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.Status, &sub.ExpiresAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying subscription by user: %w", err)
	}
	return sub, nil
}

func (r *postgresRepository) Upsert(ctx context.Context, userID, planID uuid.UUID, expiresAt time.Time) (*Subscription, error) {
	query := `
		INSERT INTO subscriptions (id, user_id, plan_id, status, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
		RETURNING id, user_id, plan_id, status, expires_at, created_at, updated_at`

	sub := &Subscription{}
	err := r.pool.QueryRow(ctx, query, uuid.New(), userID, planID, StatusActive, expiresAt).Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.Status, &sub.ExpiresAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upserting subscription: %w", err)
	}
	return sub, nil
}
