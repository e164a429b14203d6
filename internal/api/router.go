package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verba-platform/verba/internal/database"
	"github.com/verba-platform/verba/internal/events"
	mw "github.com/verba-platform/verba/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// Chat handlers
	SendMessage http.HandlerFunc
	ListChats   http.HandlerFunc
	GetChat     http.HandlerFunc
	DeleteChat  http.HandlerFunc

	// Speech handlers
	Synthesize     http.HandlerFunc
	Transcribe     http.HandlerFunc
	SpeechToSpeech http.HandlerFunc

	// Translation
	Translate http.HandlerFunc

	// Billing and entitlement handlers
	InitializePayment http.HandlerFunc
	VerifyPayment     http.HandlerFunc
	PaymentWebhook    http.HandlerFunc
	GetSubscription   http.HandlerFunc
	GetUsage          http.HandlerFunc
	ListAuditLogs     http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, eventsClient *events.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe: always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe: checks DB and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if eventsClient != nil && !eventsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if eventsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public), optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Payment webhooks are authenticated by provider hash, not JWT
		r.Post("/payments/webhook/flutterwave", h.PaymentWebhook)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			// Metered capabilities
			r.Post("/chat", h.SendMessage)
			r.Post("/tts", h.Synthesize)
			r.Post("/stt", h.Transcribe)
			r.Post("/s2s", h.SpeechToSpeech)

			// Unmetered capability
			r.Post("/translate", h.Translate)

			// Chat threads
			r.Route("/chats", func(r chi.Router) {
				r.Get("/", h.ListChats)
				r.Route("/{chatID}", func(r chi.Router) {
					r.Get("/", h.GetChat)
					r.Delete("/", h.DeleteChat)
				})
			})

			// Billing
			r.Route("/payments", func(r chi.Router) {
				r.Post("/initialize", h.InitializePayment)
				r.Get("/verify/{reference}", h.VerifyPayment)
			})

			// Entitlement and usage
			r.Get("/subscription", h.GetSubscription)
			r.Get("/usage", h.GetUsage)
			r.Get("/audit", h.ListAuditLogs)
		})
	})

	return r
}
