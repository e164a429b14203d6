package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verba-platform/verba/internal/plans"
	"github.com/verba-platform/verba/internal/provider"
	"github.com/verba-platform/verba/internal/quota"
)

type fakeRepo struct {
	chats    map[uuid.UUID]*Chat
	messages map[uuid.UUID][]Message
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		chats:    make(map[uuid.UUID]*Chat),
		messages: make(map[uuid.UUID][]Message),
	}
}

func (f *fakeRepo) CreateChat(_ context.Context, chat *Chat) error {
	f.chats[chat.ID] = chat
	return nil
}

func (f *fakeRepo) GetChat(_ context.Context, id, userID uuid.UUID) (*Chat, error) {
	c, ok := f.chats[id]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	return c, nil
}

func (f *fakeRepo) ListChats(_ context.Context, userID uuid.UUID, _, _ int) ([]Chat, int64, error) {
	var out []Chat
	for _, c := range f.chats {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeRepo) TouchChat(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeRepo) DeleteChat(_ context.Context, id, userID uuid.UUID) (bool, error) {
	c, ok := f.chats[id]
	if !ok || c.UserID != userID {
		return false, nil
	}
	delete(f.chats, id)
	delete(f.messages, id)
	return true, nil
}

func (f *fakeRepo) AppendMessage(_ context.Context, msg *Message) error {
	f.messages[msg.ChatID] = append(f.messages[msg.ChatID], *msg)
	return nil
}

func (f *fakeRepo) ListMessages(_ context.Context, chatID uuid.UUID) ([]Message, error) {
	return f.messages[chatID], nil
}

type fakeGuard struct {
	checkErr error
	checks   int
	commits  int
}

func (f *fakeGuard) Check(_ context.Context, _ uuid.UUID, _ plans.Capability) (*quota.Decision, error) {
	f.checks++
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return &quota.Decision{Capability: plans.CapabilityChat, Limit: 10, Used: 2, Remaining: 7}, nil
}

func (f *fakeGuard) Commit(_ context.Context, _ uuid.UUID, _ plans.Capability) error {
	f.commits++
	return nil
}

type fakeChatProvider struct {
	reply string
	err   error
	seen  []provider.Message
	calls int
}

func (f *fakeChatProvider) Complete(_ context.Context, messages []provider.Message) (string, error) {
	f.calls++
	f.seen = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestSendMessage_NewChat(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	guard := &fakeGuard{}
	prov := &fakeChatProvider{reply: "hello there"}
	svc := NewService(repo, guard, prov)

	userID := uuid.New()
	result, err := svc.SendMessage(ctx, userID, nil, "hi")
	require.NoError(t, err)

	assert.Equal(t, userID, result.Chat.UserID)
	assert.Equal(t, "hi", result.Chat.Title)
	assert.Equal(t, "hello there", result.Reply.Content)
	assert.Equal(t, 7, result.Remaining)

	msgs := repo.messages[result.Chat.ID]
	require.Len(t, msgs, 2)
	assert.Equal(t, provider.RoleUser, msgs[0].Role)
	assert.Equal(t, provider.RoleAssistant, msgs[1].Role)

	assert.Equal(t, 1, guard.checks)
	assert.Equal(t, 1, guard.commits)
}

func TestSendMessage_ExistingChatPassesHistory(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	guard := &fakeGuard{}
	prov := &fakeChatProvider{reply: "sure"}
	svc := NewService(repo, guard, prov)

	userID := uuid.New()
	first, err := svc.SendMessage(ctx, userID, nil, "first question")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, userID, &first.Chat.ID, "follow up")
	require.NoError(t, err)

	// history (2 turns) plus the new user message
	require.Len(t, prov.seen, 3)
	assert.Equal(t, "first question", prov.seen[0].Content)
	assert.Equal(t, "follow up", prov.seen[2].Content)
}

func TestSendMessage_RejectedCheckSkipsProvider(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	guard := &fakeGuard{checkErr: &quota.ExceededError{Capability: plans.CapabilityChat, Limit: 10, Used: 10}}
	prov := &fakeChatProvider{reply: "nope"}
	svc := NewService(repo, guard, prov)

	_, err := svc.SendMessage(ctx, uuid.New(), nil, "hi")

	var exceeded *quota.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 0, prov.calls, "provider must not be called on rejection")
	assert.Empty(t, repo.chats)
	assert.Equal(t, 0, guard.commits)
}

func TestSendMessage_ProviderFailureCommitsNothing(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	guard := &fakeGuard{}
	prov := &fakeChatProvider{err: errors.New("upstream down")}
	svc := NewService(repo, guard, prov)

	userID := uuid.New()
	_, err := svc.SendMessage(ctx, userID, nil, "hi")
	require.Error(t, err)

	assert.Equal(t, 0, guard.commits, "no usage committed for failed provider call")
	for _, msgs := range repo.messages {
		assert.Empty(t, msgs, "no messages persisted for failed provider call")
	}
}

func TestSendMessage_OtherUsersChat(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	guard := &fakeGuard{}
	prov := &fakeChatProvider{reply: "ok"}
	svc := NewService(repo, guard, prov)

	owner := uuid.New()
	first, err := svc.SendMessage(ctx, owner, nil, "mine")
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, uuid.New(), &first.Chat.ID, "theirs")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestDeleteChat(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	guard := &fakeGuard{}
	prov := &fakeChatProvider{reply: "ok"}
	svc := NewService(repo, guard, prov)

	userID := uuid.New()
	result, err := svc.SendMessage(ctx, userID, nil, "hello")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteChat(ctx, result.Chat.ID, userID))
	assert.ErrorIs(t, svc.DeleteChat(ctx, result.Chat.ID, userID), ErrChatNotFound)
}
