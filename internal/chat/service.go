package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/verba-platform/verba/internal/plans"
	"github.com/verba-platform/verba/internal/provider"
	"github.com/verba-platform/verba/internal/quota"
)

// ErrChatNotFound reports a chat that does not exist or belongs to another
// user. The two cases are deliberately indistinguishable.
var ErrChatNotFound = errors.New("chat not found")

const titleMaxLen = 80

// QuotaGuard is the slice of the quota engine the chat flow needs.
type QuotaGuard interface {
	Check(ctx context.Context, userID uuid.UUID, capability plans.Capability) (*quota.Decision, error)
	Commit(ctx context.Context, userID uuid.UUID, capability plans.Capability) error
}

type Service struct {
	repo     Repository
	guard    QuotaGuard
	provider provider.ChatProvider
}

func NewService(repo Repository, guard QuotaGuard, chatProvider provider.ChatProvider) *Service {
	return &Service{
		repo:     repo,
		guard:    guard,
		provider: chatProvider,
	}
}

// SendResult carries everything the handler returns for one sent message.
type SendResult struct {
	Chat      *Chat    `json:"chat"`
	Reply     *Message `json:"reply"`
	Remaining int      `json:"remaining"`
}

// SendMessage runs one metered chat turn: admit, call the model, persist both
// sides of the exchange, then commit one unit of usage. A nil chatID starts a
// new thread.
//
// Usage is committed only after the provider replied; a provider failure
// leaves the ledger untouched. A commit failure after a successful reply is
// logged but does not fail the request, since the provider work is already
// done.
func (s *Service) SendMessage(ctx context.Context, userID uuid.UUID, chatID *uuid.UUID, content string) (*SendResult, error) {
	decision, err := s.guard.Check(ctx, userID, plans.CapabilityChat)
	if err != nil {
		return nil, err
	}

	chat, history, err := s.resolveChat(ctx, userID, chatID, content)
	if err != nil {
		return nil, err
	}

	convo := make([]provider.Message, 0, len(history)+1)
	for _, m := range history {
		convo = append(convo, provider.Message{Role: m.Role, Content: m.Content})
	}
	convo = append(convo, provider.Message{Role: provider.RoleUser, Content: content})

	replyText, err := s.provider.Complete(ctx, convo)
	if err != nil {
		return nil, fmt.Errorf("completing chat: %w", err)
	}

	now := time.Now()
	userMsg := &Message{ID: uuid.New(), ChatID: chat.ID, Role: provider.RoleUser, Content: content, CreatedAt: now}
	reply := &Message{ID: uuid.New(), ChatID: chat.ID, Role: provider.RoleAssistant, Content: replyText, CreatedAt: now.Add(time.Millisecond)}

	if err := s.repo.AppendMessage(ctx, userMsg); err != nil {
		return nil, err
	}
	if err := s.repo.AppendMessage(ctx, reply); err != nil {
		return nil, err
	}
	if err := s.repo.TouchChat(ctx, chat.ID); err != nil {
		slog.Warn("touching chat", "chat_id", chat.ID, "error", err)
	}

	if err := s.guard.Commit(ctx, userID, plans.CapabilityChat); err != nil {
		slog.Error("committing chat usage", "user_id", userID, "chat_id", chat.ID, "error", err)
	}

	return &SendResult{Chat: chat, Reply: reply, Remaining: decision.Remaining}, nil
}

func (s *Service) resolveChat(ctx context.Context, userID uuid.UUID, chatID *uuid.UUID, content string) (*Chat, []Message, error) {
	if chatID == nil {
		now := time.Now()
		chat := &Chat{
			ID:        uuid.New(),
			UserID:    userID,
			Title:     deriveTitle(content),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.CreateChat(ctx, chat); err != nil {
			return nil, nil, err
		}
		return chat, nil, nil
	}

	chat, err := s.repo.GetChat(ctx, *chatID, userID)
	if err != nil {
		return nil, nil, err
	}
	if chat == nil {
		return nil, nil, ErrChatNotFound
	}

	history, err := s.repo.ListMessages(ctx, chat.ID)
	if err != nil {
		return nil, nil, err
	}
	return chat, history, nil
}

func (s *Service) ListChats(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Chat, int64, error) {
	return s.repo.ListChats(ctx, userID, page, pageSize)
}

// GetChatWithMessages returns a thread and its full history.
func (s *Service) GetChatWithMessages(ctx context.Context, id, userID uuid.UUID) (*Chat, []Message, error) {
	chat, err := s.repo.GetChat(ctx, id, userID)
	if err != nil {
		return nil, nil, err
	}
	if chat == nil {
		return nil, nil, ErrChatNotFound
	}

	messages, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return chat, messages, nil
}

func (s *Service) DeleteChat(ctx context.Context, id, userID uuid.UUID) error {
	deleted, err := s.repo.DeleteChat(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrChatNotFound
	}
	return nil
}

func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxLen {
		return content
	}
	return string(runes[:titleMaxLen])
}
