package plans

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads plan reference data. Plans are provisioned by operators,
// never mutated by request traffic, so there is no write API here.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	GetByName(ctx context.Context, name string) (*Plan, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const planColumns = `id, name, chat_limit, tts_limit, stt_limit, s2s_limit, created_at, updated_at`

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id), "querying plan by id")
}

func (r *postgresRepository) GetByName(ctx context.Context, name string) (*Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE name = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, name), "querying plan by name")
}

func (r *postgresRepository) scanOne(row pgx.Row, op string) (*Plan, error) {
	plan := &Plan{}
	err := row.Scan(&plan.ID, &plan.Name,
		&plan.Limits.Chat, &plan.Limits.TTS, &plan.Limits.STT, &plan.Limits.S2S,
		&plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plan, nil
}
