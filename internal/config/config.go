// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Token store backends accepted by TOKEN_STORE.
const (
	TokenStorePostgres = "postgres"
	TokenStoreRedis    = "redis"
	TokenStoreMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the REST API listens on (e.g. :8000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health endpoint; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. Required unless TOKEN_STORE=memory and APP_ENV=development.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is the Redis URL (redis://host:6379/0); required when TOKEN_STORE=redis.
	RedisURL string `mapstructure:"REDIS_URL"`
	// TokenStore selects where verification and reset tokens live: postgres, redis or memory.
	TokenStore string `mapstructure:"TOKEN_STORE"`

	// JWTSecret is the HMAC key for HS256 tokens. Ignored when JWT_PRIVATE_KEY is set.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; switches signing to RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`

	// VerificationTokenTTL is how long an email verification token stays valid (e.g. "24h").
	VerificationTokenTTL string `mapstructure:"VERIFICATION_TOKEN_TTL"`
	// ResetTokenTTL is how long a password reset token stays valid (e.g. "1h").
	ResetTokenTTL string `mapstructure:"RESET_TOKEN_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 10.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// VerificationLink is the base URL of the email verification page; id and token are appended as query params.
	VerificationLink string `mapstructure:"VERIFICATION_LINK"`
	// PasswordResetLink is the base URL of the password reset page.
	PasswordResetLink string `mapstructure:"PASSWORD_RESET_LINK"`

	// MailAPIURL is the HTTP mail API endpoint. Empty keeps mail in the in-process outbox (development only).
	MailAPIURL string `mapstructure:"MAIL_API_URL"`
	// MailAPIToken is the bearer token for the mail API.
	MailAPIToken string `mapstructure:"MAIL_API_TOKEN"`
	// MailFromVerification is the sender of verification mail.
	MailFromVerification string `mapstructure:"MAIL_FROM_VERIFICATION"`
	// MailFromSecurity is the sender of reset and password-changed mail.
	MailFromSecurity string `mapstructure:"MAIL_FROM_SECURITY"`

	// OTLPEndpoint is the OpenTelemetry collector endpoint; empty installs no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext gRPC to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// KafkaBrokers is a comma-separated list of Kafka brokers for auth events; empty disables publishing.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuthEventsTopic is the Kafka topic for auth events.
	AuthEventsTopic string `mapstructure:"AUTH_EVENTS_TOPIC"`
	// KafkaGroupID is the consumer group the worker uses to relay auth events.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is the Loki base URL the worker pushes relayed auth events to; empty disables the relay.
	LokiURL string `mapstructure:"LOKI_URL"`

	// VerifiedOnlyRoutes is a comma-separated list of route names that require a verified account.
	VerifiedOnlyRoutes string `mapstructure:"VERIFIED_ONLY_ROUTES"`
	// RateLimitPerMinute caps credential endpoint calls per client IP; 0 disables limiting.
	RateLimitPerMinute int `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	// PurgeInterval is how often the worker deletes expired single-use tokens (e.g. "10m").
	PurgeInterval string `mapstructure:"PURGE_INTERVAL"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("TOKEN_STORE", TokenStorePostgres)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "market-auth")
	v.SetDefault("JWT_AUDIENCE", "market-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("VERIFICATION_TOKEN_TTL", "24h")
	v.SetDefault("RESET_TOKEN_TTL", "1h")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("VERIFICATION_LINK", "http://localhost:8000/verify.html")
	v.SetDefault("PASSWORD_RESET_LINK", "http://localhost:8000/reset-pass.html")
	v.SetDefault("MAIL_API_URL", "")
	v.SetDefault("MAIL_API_TOKEN", "")
	v.SetDefault("MAIL_FROM_VERIFICATION", "verification@myapp.com")
	v.SetDefault("MAIL_FROM_SECURITY", "security@myapp.com")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUTH_EVENTS_TOPIC", "market-auth-events")
	v.SetDefault("KAFKA_GROUP_ID", "market-auth-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("VERIFIED_ONLY_ROUTES", "")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("PURGE_INTERVAL", "10m")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.JWTSecret == "" && cfg.JWTPrivateKey == "" {
		return nil, errors.New("config: JWT_SECRET or JWT_PRIVATE_KEY must be set")
	}
	if cfg.JWTPrivateKey != "" && cfg.JWTPublicKey == "" {
		return nil, errors.New("config: JWT_PUBLIC_KEY must be set with JWT_PRIVATE_KEY")
	}

	cfg.TokenStore = strings.ToLower(strings.TrimSpace(cfg.TokenStore))
	switch cfg.TokenStore {
	case TokenStorePostgres, TokenStoreRedis:
	case TokenStoreMemory:
		if cfg.Env == "production" {
			return nil, errors.New("config: TOKEN_STORE=memory must not be used when APP_ENV=production")
		}
	default:
		return nil, errors.New("config: TOKEN_STORE must be postgres, redis or memory")
	}
	if cfg.TokenStore == TokenStoreRedis && cfg.RedisURL == "" {
		return nil, errors.New("config: REDIS_URL must be set when TOKEN_STORE=redis")
	}
	if cfg.MailAPIURL == "" && cfg.Env == "production" {
		return nil, errors.New("config: MAIL_API_URL must be set when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 10
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.RateLimitPerMinute < 0 {
		return nil, errors.New("config: RATE_LIMIT_PER_MINUTE must not be negative")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 15*time.Minute)
}

// VerificationTTL returns the verification token lifetime. Returns 24h if unset or invalid.
func (c *Config) VerificationTTL() time.Duration {
	return parseDuration(c.VerificationTokenTTL, 24*time.Hour)
}

// ResetTTL returns the password reset token lifetime. Returns 1h if unset or invalid.
func (c *Config) ResetTTL() time.Duration {
	return parseDuration(c.ResetTokenTTL, time.Hour)
}

// PurgeEvery returns the expired-token purge interval. Returns 10m if unset or invalid.
func (c *Config) PurgeEvery() time.Duration {
	return parseDuration(c.PurgeInterval, 10*time.Minute)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list means auth events are not published to Kafka.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// VerifiedOnlyRouteList returns the route names gated on a verified account.
func (c *Config) VerifiedOnlyRouteList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.VerifiedOnlyRoutes)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
