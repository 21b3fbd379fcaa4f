// Package config holds runtime settings for the stallbook core and the
// layered loader that populates them: defaults, then a .env file, then a
// JSON file, then command-line flags, later sources taking precedence.
package config

import "time"

// Config holds runtime settings.
//
// Fields:
//   - DatabasePath: filesystem path of the local SQLite database.
//   - RemoteEndpoint: base URL of the remote document store.
//   - RemoteAPIKey: bearer token for the remote document store.
//   - RemoteTimeout: per-request timeout on remote calls.
//   - AuthSigningKey: HMAC key of the external auth provider's JWTs.
//   - TimeZone: fixed named zone all wall-clock rules evaluate in.
//   - OnlineCheckInterval: how often the connectivity monitor probes.
//   - SyncPushInterval: inter-record delay while flushing dirty records.
//   - LifecycleTriggerTimes: daily "HH:MM" instants for the automaton.
type Config struct {
	DatabasePath          string
	RemoteEndpoint        string
	RemoteAPIKey          string
	RemoteTimeout         time.Duration
	AuthSigningKey        string
	TimeZone              string
	OnlineCheckInterval   time.Duration
	SyncPushInterval      time.Duration
	LifecycleTriggerTimes []string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "stallbook.db"
	c.RemoteEndpoint = "http://127.0.0.1:8090"
	c.RemoteTimeout = 10 * time.Second
	c.TimeZone = "Europe/Madrid"
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncPushInterval = 200 * time.Millisecond
	// one run just after midnight picks up today's events, one just after
	// the 05:00 window close settles yesterday's
	c.LifecycleTriggerTimes = []string{"00:05", "05:05"}
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from the environment (.env supported), a JSON file and command-line
// flags, in that order.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
