package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mindwell/internal/platform/fieldcrypt"
)

// Config captures everything the process needs from the environment. Secrets
// have no compiled-in defaults; Validate fails hard on missing or placeholder
// values so a misconfigured deployment never starts.
type Config struct {
	Addr string
	Env  string

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string

	InsightURL     string
	InsightTimeout time.Duration

	AccessTokenSecret     string
	RefreshTokenSecret    string
	FieldEncryptionSecret string
	ShareCodeSecret       string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	LockoutThreshold int
	LockoutWindow    time.Duration

	// DoctorAutoVerify marks newly registered clinicians as verified without
	// review. Development convenience only; Validate rejects it in production.
	DoctorAutoVerify bool
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:                  envOr("MINDWELL_ADDR", ":8080"),
		Env:                   envOr("MINDWELL_ENV", "development"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisURL:              os.Getenv("REDIS_URL"),
		InsightURL:            os.Getenv("INSIGHT_SERVICE_URL"),
		InsightTimeout:        envDuration("INSIGHT_TIMEOUT", 5*time.Second),
		AccessTokenSecret:     os.Getenv("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret:    os.Getenv("REFRESH_TOKEN_SECRET"),
		FieldEncryptionSecret: os.Getenv("FIELD_ENCRYPTION_SECRET"),
		ShareCodeSecret:       os.Getenv("SHARE_CODE_SECRET"),
		AccessTokenTTL:        envDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:       envDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		LockoutThreshold:      envInt("LOGIN_LOCKOUT_THRESHOLD", 5),
		LockoutWindow:         envDuration("LOGIN_LOCKOUT_WINDOW", 15*time.Minute),
		DoctorAutoVerify:      os.Getenv("DOCTOR_AUTO_VERIFY") == "true",
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

// Validate enforces the no-default-secret invariant for every secret the
// process uses, independently, and rejects development-only toggles outside
// development.
func (c Config) Validate() error {
	secrets := []struct {
		name  string
		value string
	}{
		{"ACCESS_TOKEN_SECRET", c.AccessTokenSecret},
		{"REFRESH_TOKEN_SECRET", c.RefreshTokenSecret},
		{"FIELD_ENCRYPTION_SECRET", c.FieldEncryptionSecret},
		{"SHARE_CODE_SECRET", c.ShareCodeSecret},
	}
	for _, s := range secrets {
		if err := fieldcrypt.CheckSecret(s.value); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	if c.DoctorAutoVerify && c.Env == "production" {
		return fmt.Errorf("DOCTOR_AUTO_VERIFY must not be enabled in production")
	}
	if c.LockoutThreshold < 1 {
		return fmt.Errorf("LOGIN_LOCKOUT_THRESHOLD must be at least 1")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
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

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
