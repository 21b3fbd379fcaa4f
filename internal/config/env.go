package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with STALLBOOK_* environment variables. A .env
// file in the working directory is loaded first if present; real
// environment variables win over .env entries (godotenv does not override).
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("STALLBOOK_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("STALLBOOK_REMOTE_ENDPOINT"); v != "" {
		cfg.RemoteEndpoint = v
	}
	if v := os.Getenv("STALLBOOK_REMOTE_API_KEY"); v != "" {
		cfg.RemoteAPIKey = v
	}
	if v := os.Getenv("STALLBOOK_AUTH_SIGNING_KEY"); v != "" {
		cfg.AuthSigningKey = v
	}
	if v := os.Getenv("STALLBOOK_TIMEZONE"); v != "" {
		cfg.TimeZone = v
	}
	if v := os.Getenv("STALLBOOK_ONLINE_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.OnlineCheckInterval = d
		}
	}
	if v := os.Getenv("STALLBOOK_SYNC_PUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SyncPushInterval = d
		}
	}
	if v := os.Getenv("STALLBOOK_LIFECYCLE_TRIGGERS"); v != "" {
		cfg.LifecycleTriggerTimes = strings.Split(v, ",")
	}
}
