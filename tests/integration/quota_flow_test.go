//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queryUserID(t *testing.T, env *TestEnv, email string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := env.Pool.QueryRow(context.Background(),
		`SELECT id FROM users WHERE email = $1`, email).Scan(&id)
	require.NoError(t, err)
	return id
}

func usageByCapability(t *testing.T, env *TestEnv, token string) map[string]map[string]float64 {
	t.Helper()
	resp := DoRequest(t, env, "GET", "/api/v1/usage", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := ParseResponse(t, resp)

	data := result["data"].(map[string]any)
	out := make(map[string]map[string]float64)
	for _, raw := range data["capabilities"].([]any) {
		row := raw.(map[string]any)
		out[row["capability"].(string)] = map[string]float64{
			"used":      row["used"].(float64),
			"limit":     row["limit"].(float64),
			"remaining": row["remaining"].(float64),
		}
	}
	return out
}

func TestRegisterGrantsFreePlan(t *testing.T) {
	env := SetupTestEnv(t)
	token := RegisterUser(t, env, "free-tier@example.com", "password123")

	resp := DoRequest(t, env, "GET", "/api/v1/subscription", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := ParseResponse(t, resp)

	data := result["data"].(map[string]any)
	assert.Equal(t, "free", data["plan"])
	assert.Equal(t, true, data["active"])

	caps := usageByCapability(t, env, token)
	require.Len(t, caps, 4)
	for name, row := range caps {
		assert.Equal(t, float64(0), row["used"], name)
		assert.Equal(t, float64(10), row["limit"], name)
		assert.Equal(t, float64(10), row["remaining"], name)
	}
}

func TestChatMeteredToLimit(t *testing.T) {
	env := SetupTestEnv(t)
	token := RegisterUser(t, env, "chat-limit@example.com", "password123")

	for i := 0; i < 10; i++ {
		resp := DoRequest(t, env, "POST", "/api/v1/chat",
			map[string]string{"content": fmt.Sprintf("message %d", i)}, token)
		require.Equal(t, http.StatusOK, resp.StatusCode, "message %d should be admitted", i)
		resp.Body.Close()
	}

	// 11th unit in the window is rejected
	resp := DoRequest(t, env, "POST", "/api/v1/chat",
		map[string]string{"content": "one too many"}, token)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()

	caps := usageByCapability(t, env, token)
	assert.Equal(t, float64(10), caps["chat"]["used"])
	assert.Equal(t, float64(0), caps["chat"]["remaining"])

	// other capabilities are unaffected
	assert.Equal(t, float64(0), caps["tts"]["used"])
	resp = DoRequest(t, env, "POST", "/api/v1/tts",
		map[string]string{"text": "still works"}, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestPlanUpgradeRaisesCeilings(t *testing.T) {
	env := SetupTestEnv(t)
	token := RegisterUser(t, env, "upgrade@example.com", "password123")
	userID := queryUserID(t, env, "upgrade@example.com")

	_, err := env.SubSvc.GrantPlanByName(context.Background(), userID, "pro", 30)
	require.NoError(t, err)

	caps := usageByCapability(t, env, token)
	assert.Equal(t, float64(3000), caps["chat"]["limit"])

	resp := DoRequest(t, env, "GET", "/api/v1/subscription", nil, token)
	data := ParseResponse(t, resp)["data"].(map[string]any)
	assert.Equal(t, "pro", data["plan"])
	assert.Equal(t, true, data["active"])
}

func TestUnlimitedPlanNeverRejects(t *testing.T) {
	env := SetupTestEnv(t)
	token := RegisterUser(t, env, "enterprise@example.com", "password123")
	userID := queryUserID(t, env, "enterprise@example.com")

	_, err := env.SubSvc.GrantPlanByName(context.Background(), userID, "enterprise", 30)
	require.NoError(t, err)

	caps := usageByCapability(t, env, token)
	assert.Equal(t, float64(-1), caps["chat"]["limit"])
	assert.Equal(t, float64(-1), caps["chat"]["remaining"])

	for i := 0; i < 15; i++ {
		resp := DoRequest(t, env, "POST", "/api/v1/chat",
			map[string]string{"content": "unlimited"}, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestExpiredSubscriptionDegradesToFree(t *testing.T) {
	env := SetupTestEnv(t)
	token := RegisterUser(t, env, "expired@example.com", "password123")
	userID := queryUserID(t, env, "expired@example.com")

	// negative duration puts expiry in the past
	_, err := env.SubSvc.GrantPlanByName(context.Background(), userID, "pro", -1)
	require.NoError(t, err)

	resp := DoRequest(t, env, "GET", "/api/v1/subscription", nil, token)
	data := ParseResponse(t, resp)["data"].(map[string]any)
	assert.Equal(t, "free", data["plan"])
	assert.Equal(t, false, data["active"])

	// degraded, not locked out: free-tier ceilings still admit
	r := DoRequest(t, env, "POST", "/api/v1/chat",
		map[string]string{"content": "still here"}, token)
	assert.Equal(t, http.StatusOK, r.StatusCode)
	r.Body.Close()
}

func TestTranslateIsUnmetered(t *testing.T) {
	env := SetupTestEnv(t)
	token := RegisterUser(t, env, "translator@example.com", "password123")

	for i := 0; i < 12; i++ {
		resp := DoRequest(t, env, "POST", "/api/v1/translate",
			map[string]string{"text": "bonjour", "target_lang": "english"}, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	caps := usageByCapability(t, env, token)
	for name, row := range caps {
		assert.Equal(t, float64(0), row["used"], name)
	}
}

func TestS2SBilledAsOneUnit(t *testing.T) {
	env := SetupTestEnv(t)
	token := RegisterUser(t, env, "s2s-units@example.com", "password123")
	userID := queryUserID(t, env, "s2s-units@example.com")

	ctx := context.Background()
	_, err := env.Guard.Check(ctx, userID, "s2s")
	require.NoError(t, err)
	require.NoError(t, env.Guard.Commit(ctx, userID, "s2s"))

	caps := usageByCapability(t, env, token)
	assert.Equal(t, float64(1), caps["s2s"]["used"])
	assert.Equal(t, float64(0), caps["stt"]["used"])
	assert.Equal(t, float64(0), caps["tts"]["used"])
	assert.Equal(t, float64(0), caps["chat"]["used"])
}
