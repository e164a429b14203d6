//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/verba-platform/verba/internal/api"
	"github.com/verba-platform/verba/internal/auth"
	"github.com/verba-platform/verba/internal/chat"
	"github.com/verba-platform/verba/internal/payments"
	"github.com/verba-platform/verba/internal/plans"
	"github.com/verba-platform/verba/internal/provider"
	"github.com/verba-platform/verba/internal/quota"
	"github.com/verba-platform/verba/internal/speech"
	"github.com/verba-platform/verba/internal/subscriptions"
	"github.com/verba-platform/verba/internal/translate"
	"github.com/verba-platform/verba/internal/usage"
	"github.com/verba-platform/verba/internal/users"
)

const flutterwaveHash = "test-verif-hash"

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	PlanRepo    plans.Repository
	SubSvc      *subscriptions.Service
	Guard       *quota.Guard
}

var testEnv *TestEnv

// stubProvider answers every capability with canned content, so the metering
// paths can be exercised without an upstream account.
// signupGranter adapts the subscriptions service to the registration flow.
type signupGranter struct {
	subs *subscriptions.Service
}

func (g signupGranter) GrantDefault(ctx context.Context, userID uuid.UUID) error {
	_, err := g.subs.GrantDefault(ctx, userID)
	return err
}

type stubProvider struct{}

func (stubProvider) Complete(_ context.Context, _ []provider.Message) (string, error) {
	return "stub reply", nil
}

func (stubProvider) Synthesize(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte("stub-audio"))), nil
}

func (stubProvider) Transcribe(_ context.Context, _ io.Reader, _ string) (string, error) {
	return "stub transcript", nil
}

func (stubProvider) Translate(_ context.Context, text, _ string) (string, error) {
	return "translated: " + text, nil
}

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "verba_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/verba_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	m, err := migrate.New(fmt.Sprintf("file://%s", getMigrationsPath()), dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Auth
	jwtManager := auth.NewJWTManager("test-access-secret-32-chars-long!", "test-refresh-secret-32-chars-lng!", 15*time.Minute, 7*24*time.Hour)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)

	// Plans and subscriptions
	planRepo := plans.NewRepository(pool)
	subSvc := subscriptions.NewService(subscriptions.NewRepository(pool), planRepo, nil)
	authHandler := auth.NewHandler(authSvc, userSvc, signupGranter{subs: subSvc})

	// Quota guard over the Redis ledger
	ledger := usage.NewRedisLedger(redisClient, 24*time.Hour)
	guard := quota.NewGuard(subSvc, ledger, nil)
	quotaHandler := quota.NewHandler(guard)
	subHandler := subscriptions.NewHandler(subSvc)

	// Metered capabilities against the stub provider
	stub := stubProvider{}
	chatSvc := chat.NewService(chat.NewRepository(pool), guard, stub)
	chatHandler := chat.NewHandler(chatSvc)
	speechSvc := speech.NewService(guard, stub, stub, stub)
	speechHandler := speech.NewHandler(speechSvc)
	translateHandler := translate.NewHandler(stub)

	// Payments: only the webhook path is exercised; Paystack is not stubbed.
	paymentSvc := payments.NewService(payments.NewPaystackClient("sk_test", "http://paystack.invalid"), planRepo, subSvc, 30)
	paymentHandler := payments.NewHandler(paymentSvc, flutterwaveHash)

	router := api.NewRouter(pool, nil, api.RouterConfig{}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		SendMessage: chatHandler.Send,
		ListChats:   chatHandler.List,
		GetChat:     chatHandler.Get,
		DeleteChat:  chatHandler.Delete,

		Synthesize:     speechHandler.Synthesize,
		Transcribe:     speechHandler.Transcribe,
		SpeechToSpeech: speechHandler.SpeechToSpeech,

		Translate: translateHandler.Translate,

		InitializePayment: paymentHandler.Initialize,
		VerifyPayment:     paymentHandler.Verify,
		PaymentWebhook:    paymentHandler.FlutterwaveWebhook,
		GetSubscription:   subHandler.Get,
		GetUsage:          quotaHandler.GetStatus,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		PlanRepo:    planRepo,
		SubSvc:      subSvc,
		Guard:       guard,
	}

	return testEnv
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

func RegisterUser(t *testing.T, env *TestEnv, email, password string) string {
	t.Helper()
	body := map[string]string{"email": email, "password": password}
	resp := DoRequest(t, env, "POST", "/api/v1/auth/register", body, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["access_token"].(string)
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func DoRequestWithHeaders(t *testing.T, env *TestEnv, method, path string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
