// Package config loads service configuration from the environment once at
// startup. The resulting Config is passed around by value and never
// mutated, so every component sees the same settings for the lifetime of
// the process.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "meridian/pkg/platform/strings"
)

const envPrefix = "MERIDIAN_"

// Config aggregates all service settings.
type Config struct {
	Server    ServerConfig
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	JWT       JWTConfig
	SMTP      SMTPConfig
	Kafka     KafkaConfig
	Tracing   TracingConfig
	Seed      SeedConfig
	Log       LogConfig
}

// ServerConfig covers the HTTP listener.
type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

// HTTPConfig covers the middleware pipeline.
type HTTPConfig struct {
	CORSOrigins    []string
	TrustedHosts   []string
	TrustedProxies []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// DatabaseConfig covers the Postgres pool.
type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	ConnTimeout     time.Duration
	MaxConnLifetime time.Duration
}

// RedisConfig covers the optional Redis backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateLimitConfig holds both rate limit policies. Reads get the lenient
// policy; writes (POST/PUT/PATCH/DELETE) get the strict one.
type RateLimitConfig struct {
	Enabled         bool
	Backend         string // "memory" or "redis"
	ReadMax         int
	ReadWindow      time.Duration
	WriteMax        int
	WriteWindow     time.Duration
	CleanupInterval time.Duration
}

// JWTConfig covers access token issuing.
type JWTConfig struct {
	SigningKey string
	TokenTTL   time.Duration
}

// SMTPConfig covers outbound email. Email sending is disabled unless a
// host is configured.
type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// KafkaConfig covers the audit event stream.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// TracingConfig controls span emission around store and service I/O.
// When disabled, services run with a no-op tracer.
type TracingConfig struct {
	Enabled bool
}

// SeedConfig controls demo data seeding at startup.
type SeedConfig struct {
	Enabled bool
}

// LogConfig covers structured logging.
type LogConfig struct {
	Level string
}

// FromEnv builds the full Config from MERIDIAN_* environment variables,
// applying development-friendly defaults for anything unset.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Addr:            envString("ADDR", ":8000"),
			Env:             envString("ENV", "development"),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		HTTP: HTTPConfig{
			CORSOrigins:    envList("CORS_ORIGINS", []string{"http://localhost:3000"}),
			TrustedHosts:   envList("TRUSTED_HOSTS", []string{"*"}),
			TrustedProxies: envList("TRUSTED_PROXIES", nil),
			RequestTimeout: envDuration("REQUEST_TIMEOUT", 30*time.Second),
			MaxBodyBytes:   int64(envInt("MAX_BODY_BYTES", 1<<20)),
		},
		Database: DatabaseConfig{
			URL:             envString("DATABASE_URL", ""),
			MaxConns:        int32(envInt("DB_MAX_CONNS", 20)),
			ConnTimeout:     envDuration("DB_CONN_TIMEOUT", 30*time.Second),
			MaxConnLifetime: envDuration("DB_MAX_CONN_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			URL:          envString("REDIS_URL", ""),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:         envBool("RATE_LIMIT_ENABLED", true),
			Backend:         envString("RATE_LIMIT_BACKEND", "memory"),
			ReadMax:         envInt("RATE_LIMIT_READ_MAX", 100),
			ReadWindow:      envDuration("RATE_LIMIT_READ_WINDOW", time.Minute),
			WriteMax:        envInt("RATE_LIMIT_WRITE_MAX", 20),
			WriteWindow:     envDuration("RATE_LIMIT_WRITE_WINDOW", time.Minute),
			CleanupInterval: envDuration("RATE_LIMIT_CLEANUP_INTERVAL", time.Minute),
		},
		JWT: JWTConfig{
			SigningKey: envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			TokenTTL:   envDuration("JWT_TOKEN_TTL", 8*24*time.Hour),
		},
		SMTP: SMTPConfig{
			Enabled:  envString("SMTP_HOST", "") != "",
			Host:     envString("SMTP_HOST", ""),
			Port:     envInt("SMTP_PORT", 587),
			Username: envString("SMTP_USER", ""),
			Password: envString("SMTP_PASSWORD", ""),
			From:     envString("SMTP_FROM", "noreply@meridian.local"),
		},
		Kafka: KafkaConfig{
			Enabled: len(envList("KAFKA_BROKERS", nil)) > 0,
			Brokers: envList("KAFKA_BROKERS", nil),
			Topic:   envString("KAFKA_AUDIT_TOPIC", "meridian.audit.events"),
		},
		Tracing: TracingConfig{
			Enabled: envBool("TRACING_ENABLED", false),
		},
		Seed: SeedConfig{
			Enabled: envBool("SEED_DEMO_DATA", false),
		},
		Log: LogConfig{
			Level: envString("LOG_LEVEL", "info"),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback
	}
	out := pstrings.DedupeAndTrim(strings.Split(v, ","))
	if len(out) == 0 {
		return fallback
	}
	return out
}
