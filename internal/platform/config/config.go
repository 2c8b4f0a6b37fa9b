package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration for the opsdeck core.
type Server struct {
	Addr          string
	BaseHost      string
	LoginURL      string
	JWTSigningKey string
	SecureCookies bool

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	SessionTTL      time.Duration

	// ExternalCallTimeout bounds every auth/tenant store round trip so a
	// slow backend degrades to anonymous instead of stalling the request.
	ExternalCallTimeout time.Duration

	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// PostgresConfig configures the pgx pool. An empty DSN means the process
// runs on in-memory stores (dev, tests).
type PostgresConfig struct {
	DSN string
}

// RedisConfig configures the session cache client. An empty URL means
// sessions live in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit publisher. No brokers means audit events
// stay on the in-memory store.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := envOr("OPSDECK_ADDR", ":8080")

	jwtSigningKey := os.Getenv("OPSDECK_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	brokers := []string(nil)
	if raw := os.Getenv("OPSDECK_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:                addr,
		BaseHost:            envOr("OPSDECK_BASE_HOST", "opsdeck.local"),
		LoginURL:            envOr("OPSDECK_LOGIN_URL", "/login"),
		JWTSigningKey:       jwtSigningKey,
		SecureCookies:       os.Getenv("OPSDECK_INSECURE_COOKIES") != "true",
		AccessTokenTTL:      envDuration("OPSDECK_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:     envDuration("OPSDECK_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		SessionTTL:          envDuration("OPSDECK_SESSION_TTL", 30*24*time.Hour),
		ExternalCallTimeout: envDuration("OPSDECK_EXTERNAL_CALL_TIMEOUT", 3*time.Second),
		Postgres: PostgresConfig{
			DSN: os.Getenv("OPSDECK_POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("OPSDECK_REDIS_URL"),
			PoolSize:     envInt("OPSDECK_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("OPSDECK_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("OPSDECK_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("OPSDECK_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("OPSDECK_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   envOr("OPSDECK_KAFKA_AUDIT_TOPIC", "opsdeck.audit"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
