// Package config builds runtime configuration from the environment so main
// stays lean. Missing optional backends (Postgres, Redis, Kafka) leave their
// URL empty; main falls back to in-memory adapters.
package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the server needs at boot.
type Config struct {
	Addr            string
	DatabaseURL     string
	RedisURL        string
	KafkaBrokers    []string
	AuditTopic      string
	RefdataChannel  string
	JWTSigningKey   string
	TokenTTL        time.Duration
	ShutdownTimeout time.Duration
}

// FromEnv reads configuration from environment variables, applying defaults
// suitable for local development.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("CIVREG_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("CIVREG_DATABASE_URL"),
		RedisURL:        os.Getenv("CIVREG_REDIS_URL"),
		AuditTopic:      envOr("CIVREG_AUDIT_TOPIC", "civreg.audit"),
		RefdataChannel:  envOr("CIVREG_REFDATA_CHANNEL", "civreg.refdata.reload"),
		JWTSigningKey:   envOr("CIVREG_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenTTL:        durationOr("CIVREG_TOKEN_TTL", 15*time.Minute),
		ShutdownTimeout: durationOr("CIVREG_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if brokers := os.Getenv("CIVREG_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
