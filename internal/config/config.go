package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	HTTPAddr string

	RedisURL    string
	DatabaseURL string

	JWTSecret string
	JWTIssuer string

	SessionTTL       time.Duration
	WSAllowedOrigins []string
	RelayOutboxSize  int

	EngineCloudURL string
	EngineTimeout  time.Duration

	// EngineUCIPath enables the local engine suggester when set.
	EngineUCIPath     string
	EngineUCIMoveTime time.Duration
	EngineUCIPoolSize int

	MessagesDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:        ":8080",
		SessionTTL:      24 * time.Hour,
		RelayOutboxSize: 64,
		EngineCloudURL:  "https://lichess.org",
		EngineTimeout:   3 * time.Second,

		EngineUCIMoveTime: 200 * time.Millisecond,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.JWTSecret = strings.TrimSpace(os.Getenv("AUTH_JWT_SECRET"))
	cfg.JWTIssuer = strings.TrimSpace(os.Getenv("AUTH_JWT_ISSUER"))

	if v := strings.TrimSpace(os.Getenv("SESSION_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTL = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("WS_ALLOWED_ORIGINS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.WSAllowedOrigins = append(cfg.WSAllowedOrigins, s)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("RELAY_OUTBOX_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RelayOutboxSize = n
		}
	}

	// "off" disables cloud suggestions
	if v := strings.TrimSpace(os.Getenv("ENGINE_CLOUD_URL")); v != "" {
		cfg.EngineCloudURL = v
	}
	if strings.EqualFold(cfg.EngineCloudURL, "off") {
		cfg.EngineCloudURL = ""
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineTimeout = time.Duration(n) * time.Millisecond
		}
	}

	cfg.EngineUCIPath = strings.TrimSpace(os.Getenv("ENGINE_UCI_PATH"))
	if v := strings.TrimSpace(os.Getenv("ENGINE_UCI_MOVETIME_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineUCIMoveTime = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_UCI_POOL_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineUCIPoolSize = n
		}
	}

	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if cfg.JWTSecret == "" {
		return nil, errors.New("AUTH_JWT_SECRET is required")
	}
	return cfg, nil
}
