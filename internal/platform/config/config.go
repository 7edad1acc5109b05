package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr            string
	DatabaseURL     string
	MigrationsDir   string
	Redis           RedisConfig
	Kafka           KafkaConfig
	EscrowTTL       time.Duration
	IdempotencyTTL  time.Duration
	ExpirySweepSpec string
	PurgeSweepSpec  string
	Currency        string
	ShutdownTimeout time.Duration
}

// RedisConfig controls the optional Redis-backed idempotency store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig controls the optional post-commit event publisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:          envOr("GIFTVAULT_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("GIFTVAULT_DATABASE_URL"),
		MigrationsDir: envOr("GIFTVAULT_MIGRATIONS_DIR", "migrations"),
		Redis: RedisConfig{
			URL:          os.Getenv("GIFTVAULT_REDIS_URL"),
			PoolSize:     envInt("GIFTVAULT_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("GIFTVAULT_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("GIFTVAULT_KAFKA_BROKERS")),
			Topic:   envOr("GIFTVAULT_KAFKA_TOPIC", "giftvault.escrow.events"),
		},
		EscrowTTL:       envDuration("GIFTVAULT_ESCROW_TTL", 168*time.Hour),
		IdempotencyTTL:  envDuration("GIFTVAULT_IDEMPOTENCY_TTL", 30*24*time.Hour),
		ExpirySweepSpec: envOr("GIFTVAULT_EXPIRY_SWEEP", "@every 1m"),
		PurgeSweepSpec:  envOr("GIFTVAULT_PURGE_SWEEP", "@every 1h"),
		Currency:        envOr("GIFTVAULT_CURRENCY", "USD"),
		ShutdownTimeout: 10 * time.Second,
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
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
