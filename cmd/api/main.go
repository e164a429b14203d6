package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/verba-platform/verba/internal/api"
	"github.com/verba-platform/verba/internal/audit"
	"github.com/verba-platform/verba/internal/auth"
	"github.com/verba-platform/verba/internal/chat"
	"github.com/verba-platform/verba/internal/config"
	"github.com/verba-platform/verba/internal/database"
	"github.com/verba-platform/verba/internal/events"
	"github.com/verba-platform/verba/internal/middleware"
	"github.com/verba-platform/verba/internal/payments"
	"github.com/verba-platform/verba/internal/plans"
	"github.com/verba-platform/verba/internal/provider"
	"github.com/verba-platform/verba/internal/quota"
	iredis "github.com/verba-platform/verba/internal/redis"
	"github.com/verba-platform/verba/internal/server"
	"github.com/verba-platform/verba/internal/speech"
	"github.com/verba-platform/verba/internal/subscriptions"
	"github.com/verba-platform/verba/internal/translate"
	"github.com/verba-platform/verba/internal/usage"
	"github.com/verba-platform/verba/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Migrations
	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS (optional; audit trail degrades to logs when disabled)
	var eventsClient *events.Client
	var auditPublisher *events.Publisher
	if cfg.NATS.Enabled {
		eventsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer eventsClient.Close()
		auditPublisher = events.NewPublisher(eventsClient.JetStream())
	}

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)

	// Plans and subscriptions
	planRepo := plans.NewRepository(pool)
	var subAudit subscriptions.AuditPublisher
	if auditPublisher != nil {
		subAudit = auditPublisher
	}
	subSvc := subscriptions.NewService(subscriptions.NewRepository(pool), planRepo, subAudit)
	authHandler := auth.NewHandler(authSvc, userSvc, defaultPlanGranter{subs: subSvc})

	// Usage ledger
	var ledger usage.Ledger
	switch cfg.Quota.Ledger {
	case "postgres":
		ledger = usage.NewPostgresLedger(pool, cfg.Quota.Window)
	default:
		ledger = usage.NewRedisLedger(redisClient, cfg.Quota.Window)
	}

	// Quota guard
	var quotaAudit quota.AuditPublisher
	if auditPublisher != nil {
		quotaAudit = auditPublisher
	}
	guard := quota.NewGuard(subSvc, ledger, quotaAudit)
	quotaHandler := quota.NewHandler(guard)
	subHandler := subscriptions.NewHandler(subSvc)

	// Providers
	openAI := provider.NewOpenAIProvider(cfg.Provider)

	// Chat
	chatSvc := chat.NewService(chat.NewRepository(pool), guard, openAI)
	chatHandler := chat.NewHandler(chatSvc)

	// Speech
	speechSvc := speech.NewService(guard, openAI, openAI, openAI)
	speechHandler := speech.NewHandler(speechSvc)

	// Translation
	translateHandler := translate.NewHandler(openAI)

	// Payments
	paystack := payments.NewPaystackClient(cfg.Payments.PaystackSecret, cfg.Payments.PaystackBaseURL)
	paymentSvc := payments.NewService(paystack, planRepo, subSvc, cfg.Payments.DefaultDurationDays)
	paymentHandler := payments.NewHandler(paymentSvc, cfg.Payments.FlutterwaveHash)

	// Audit trail
	auditRepo := audit.NewRepository(pool)
	auditHandler := audit.NewHandler(auditRepo)
	if eventsClient != nil {
		consumer := audit.NewConsumer(auditRepo, events.NewConsumerManager(eventsClient.JetStream()))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	// Auth endpoint rate limiting
	authLimiter := middleware.NewRateLimiter(redisClient, cfg.Quota.AuthRateLimitPerMinute, 60)

	// Router
	router := api.NewRouter(pool, eventsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		AuthRateLimiter:    authLimiter.Middleware,
	}, api.HandlerSet{
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
		ListAuditLogs:     auditHandler.List,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// defaultPlanGranter adapts the subscriptions service to the signup flow,
// which only needs to know whether the grant succeeded.
type defaultPlanGranter struct {
	subs *subscriptions.Service
}

func (g defaultPlanGranter) GrantDefault(ctx context.Context, userID uuid.UUID) error {
	_, err := g.subs.GrantDefault(ctx, userID)
	return err
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
