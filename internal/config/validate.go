package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secrets
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if len(c.JWT.RefreshSecret) < 32 {
		errs = append(errs, "JWT_REFRESH_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessSecret != "" && c.JWT.RefreshSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	// Quota engine
	if c.Quota.Window < time.Minute {
		errs = append(errs, fmt.Sprintf("QUOTA_WINDOW must be at least 1m, got %s", c.Quota.Window))
	}
	if c.Quota.Ledger != "redis" && c.Quota.Ledger != "postgres" {
		errs = append(errs, fmt.Sprintf("QUOTA_LEDGER must be redis or postgres, got %q", c.Quota.Ledger))
	}

	// Provider and payments keys: warn only, the server can run without them
	// for local development.
	if c.Provider.OpenAIKey == "" {
		slog.Warn("OPENAI_API_KEY is empty, capability endpoints will fail")
	}
	if c.Payments.PaystackSecret == "" {
		slog.Warn("PAYSTACK_SECRET_KEY is empty, payment initialization is disabled")
	}
	if c.Payments.FlutterwaveHash == "" {
		slog.Warn("FLW_SECRET_HASH is empty, webhook verification will reject all deliveries")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
