package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	CreateChat(ctx context.Context, chat *Chat) error
	GetChat(ctx context.Context, id, userID uuid.UUID) (*Chat, error)
	ListChats(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Chat, int64, error)
	TouchChat(ctx context.Context, id uuid.UUID) error
	DeleteChat(ctx context.Context, id, userID uuid.UUID) (bool, error)
	AppendMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, chatID uuid.UUID) ([]Message, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) CreateChat(ctx context.Context, chat *Chat) error {
	query := `
		INSERT INTO chats (id, user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		chat.ID, chat.UserID, chat.Title, chat.CreatedAt, chat.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting chat: %w", err)
	}
	return nil
}

// GetChat returns a chat only if it belongs to userID; (nil, nil) otherwise.
func (r *postgresRepository) GetChat(ctx context.Context, id, userID uuid.UUID) (*Chat, error) {
	query := `SELECT id, user_id, title, created_at, updated_at FROM chats WHERE id = $1 AND user_id = $2`

	chat := &Chat{}
	err := r.pool.QueryRow(ctx, query, id, userID).Scan(
		&chat.ID, &chat.UserID, &chat.Title, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying chat: %w", err)
	}
	return chat, nil
}

func (r *postgresRepository) ListChats(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Chat, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chats WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting chats: %w", err)
	}

	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM chats WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("querying chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning chat: %w", err)
		}
		chats = append(chats, c)
	}

	return chats, total, nil
}

func (r *postgresRepository) TouchChat(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE chats SET updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touching chat: %w", err)
	}
	return nil
}

// DeleteChat removes a chat and, via ON DELETE CASCADE, its messages. Returns
// false when no chat matched.
func (r *postgresRepository) DeleteChat(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM chats WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("deleting chat: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *postgresRepository) AppendMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (id, chat_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.ChatID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListMessages(ctx context.Context, chatID uuid.UUID) ([]Message, error) {
	query := `
		SELECT id, chat_id, role, content, created_at
		FROM messages WHERE chat_id = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, nil
}
