//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlutterwaveWebhookGrantsPlan(t *testing.T) {
	env := SetupTestEnv(t)
	token := RegisterUser(t, env, "webhook@example.com", "password123")
	userID := queryUserID(t, env, "webhook@example.com")

	basic, err := env.PlanRepo.GetByName(context.Background(), "basic")
	require.NoError(t, err)
	require.NotNil(t, basic)

	event := map[string]any{
		"event": "charge.completed",
		"data": map[string]any{
			"status": "successful",
			"tx_ref": "flw-int-1",
			"meta": map[string]any{
				"user_id":       userID.String(),
				"plan_id":       basic.ID.String(),
				"duration_days": 30,
			},
		},
	}

	// missing hash is rejected before any grant
	resp := DoRequest(t, env, "POST", "/api/v1/payments/webhook/flutterwave", event, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// correct hash applies the grant
	resp = DoRequestWithHeaders(t, env, "POST", "/api/v1/payments/webhook/flutterwave", event,
		map[string]string{"verif-hash": flutterwaveHash})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	sub := DoRequest(t, env, "GET", "/api/v1/subscription", nil, token)
	data := ParseResponse(t, sub)["data"].(map[string]any)
	assert.Equal(t, "basic", data["plan"])
	assert.Equal(t, true, data["active"])
}

func TestFlutterwaveWebhookUnknownPlanRedelivers(t *testing.T) {
	env := SetupTestEnv(t)
	RegisterUser(t, env, "webhook-redeliver@example.com", "password123")
	userID := queryUserID(t, env, "webhook-redeliver@example.com")

	event := map[string]any{
		"event": "charge.completed",
		"data": map[string]any{
			"status": "successful",
			"tx_ref": "flw-int-2",
			"meta": map[string]any{
				"user_id":       userID.String(),
				"plan_id":       "00000000-0000-0000-0000-000000000001",
				"duration_days": 30,
			},
		},
	}

	resp := DoRequestWithHeaders(t, env, "POST", "/api/v1/payments/webhook/flutterwave", event,
		map[string]string{"verif-hash": flutterwaveHash})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode,
		"grant failures must be non-2xx so the provider redelivers")
	resp.Body.Close()
}

func TestInitializeCheckoutRejectsFreePlan(t *testing.T) {
	env := SetupTestEnv(t)
	token := RegisterUser(t, env, "checkout@example.com", "password123")

	resp := DoRequest(t, env, "POST", "/api/v1/payments/initialize",
		map[string]string{"plan": "free"}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
