package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Redis    RedisConfig
	NATS     NATSConfig
	JWT      JWTConfig
	Quota    QuotaConfig
	Provider ProviderConfig
	Payments PaymentsConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL     string
	Enabled bool
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// QuotaConfig controls the usage ledger and admission window.
type QuotaConfig struct {
	// Window is the rolling usage window; consumption is summed over the
	// trailing Window ending at the moment of each check.
	Window time.Duration
	// Ledger selects the backing store: "redis" or "postgres".
	Ledger string
	// AuthRateLimitPerMinute caps unauthenticated auth-endpoint hits per IP.
	AuthRateLimitPerMinute int
}

type ProviderConfig struct {
	OpenAIKey     string
	OpenAIBaseURL string
	ChatModel     string
	TTSModel      string
	TTSVoice      string
	STTModel      string
}

type PaymentsConfig struct {
	PaystackSecret      string
	PaystackBaseURL     string
	FlutterwaveHash     string
	DefaultDurationDays int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               k.String("server.host"),
			Port:               k.Int("server.port"),
			CORSAllowedOrigins: k.Strings("server.cors.origins"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL:     k.String("nats.url"),
			Enabled: k.Bool("nats.enabled"),
		},
		JWT: JWTConfig{
			AccessSecret:  k.String("jwt.access.secret"),
			RefreshSecret: k.String("jwt.refresh.secret"),
		},
		Quota: QuotaConfig{
			Ledger:                 k.String("quota.ledger"),
			AuthRateLimitPerMinute: k.Int("quota.auth.ratelimit"),
		},
		Provider: ProviderConfig{
			OpenAIKey:     k.String("openai.api.key"),
			OpenAIBaseURL: k.String("openai.base.url"),
			ChatModel:     k.String("openai.chat.model"),
			TTSModel:      k.String("openai.tts.model"),
			TTSVoice:      k.String("openai.tts.voice"),
			STTModel:      k.String("openai.stt.model"),
		},
		Payments: PaymentsConfig{
			PaystackSecret:      k.String("paystack.secret.key"),
			PaystackBaseURL:     k.String("paystack.base.url"),
			FlutterwaveHash:     k.String("flw.secret.hash"),
			DefaultDurationDays: k.Int("payments.duration.days"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "verba"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "verba"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Quota.Ledger == "" {
		cfg.Quota.Ledger = "redis"
	}
	if cfg.Quota.AuthRateLimitPerMinute == 0 {
		cfg.Quota.AuthRateLimitPerMinute = 20
	}
	if cfg.Provider.ChatModel == "" {
		cfg.Provider.ChatModel = "gpt-4o-mini"
	}
	if cfg.Provider.TTSModel == "" {
		cfg.Provider.TTSModel = "tts-1"
	}
	if cfg.Provider.TTSVoice == "" {
		cfg.Provider.TTSVoice = "alloy"
	}
	if cfg.Provider.STTModel == "" {
		cfg.Provider.STTModel = "whisper-1"
	}
	if cfg.Payments.PaystackBaseURL == "" {
		cfg.Payments.PaystackBaseURL = "https://api.paystack.co"
	}
	if cfg.Payments.DefaultDurationDays == 0 {
		cfg.Payments.DefaultDurationDays = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	accessExpStr := k.String("jwt.access.expiry")
	if accessExpStr == "" {
		accessExpStr = "15m"
	}
	cfg.JWT.AccessExpiry, err = time.ParseDuration(accessExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt access expiry: %w", err)
	}

	refreshExpStr := k.String("jwt.refresh.expiry")
	if refreshExpStr == "" {
		refreshExpStr = "168h"
	}
	cfg.JWT.RefreshExpiry, err = time.ParseDuration(refreshExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt refresh expiry: %w", err)
	}

	windowStr := k.String("quota.window")
	if windowStr == "" {
		windowStr = "24h"
	}
	cfg.Quota.Window, err = time.ParseDuration(windowStr)
	if err != nil {
		return nil, fmt.Errorf("parsing quota window: %w", err)
	}

	return cfg, nil
}
