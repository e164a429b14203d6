package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verba-platform/verba/internal/users"
)

type fakeUserRepo struct {
	byEmail map[string]*users.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*users.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *users.User) error {
	if _, ok := r.byEmail[user.Email]; ok {
		return users.ErrEmailTaken
	}
	r.byEmail[user.Email] = user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.byEmail[email], nil
}

func (r *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := r.byEmail[email]
	return ok, nil
}

type fakeGranter struct {
	granted []uuid.UUID
	err     error
}

func (g *fakeGranter) GrantDefault(ctx context.Context, userID uuid.UUID) error {
	if g.err != nil {
		return g.err
	}
	g.granted = append(g.granted, userID)
	return nil
}

func newTestHandler(t *testing.T, granter PlanGranter) (*Handler, *fakeUserRepo) {
	t.Helper()
	svc, _ := newTestService(t)
	repo := newFakeUserRepo()
	return NewHandler(svc, users.NewService(repo), granter), repo
}

func register(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Register(rec, req)
	return rec
}

func TestHandler_RegisterGrantsDefaultPlan(t *testing.T) {
	granter := &fakeGranter{}
	h, repo := newTestHandler(t, granter)

	rec := register(t, h, `{"email":"new@example.com","password":"password123"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, granter.granted, 1)

	user := repo.byEmail["new@example.com"]
	require.NotNil(t, user)
	assert.Equal(t, user.ID, granter.granted[0])
	assert.Contains(t, rec.Body.String(), "access_token")
}

func TestHandler_RegisterFailsWhenGrantFails(t *testing.T) {
	granter := &fakeGranter{err: errors.New("plans table unreachable")}
	h, _ := newTestHandler(t, granter)

	rec := register(t, h, `{"email":"new@example.com","password":"password123"}`)

	// An account without an entitlement is unmeterable, so registration
	// must not hand out tokens when the grant fails.
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "access_token")
}

func TestHandler_RegisterDuplicateEmail(t *testing.T) {
	granter := &fakeGranter{}
	h, _ := newTestHandler(t, granter)

	require.Equal(t, http.StatusCreated,
		register(t, h, `{"email":"dup@example.com","password":"password123"}`).Code)

	rec := register(t, h, `{"email":"dup@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, granter.granted, 1)
}
