package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/stallbook/stallbook/internal/flagx"
	"github.com/stallbook/stallbook/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so intervals can be given either as strings like "3s" or
// as integer nanoseconds.
type JsonConfig struct {
	DatabasePath          string         `json:"database_path"`
	RemoteEndpoint        string         `json:"remote_endpoint"`
	RemoteAPIKey          string         `json:"remote_api_key"`
	RemoteTimeout         timex.Duration `json:"remote_timeout"`
	AuthSigningKey        string         `json:"auth_signing_key"`
	TimeZone              string         `json:"time_zone"`
	OnlineCheckInterval   timex.Duration `json:"online_check_interval"`
	SyncPushInterval      timex.Duration `json:"sync_push_interval"`
	LifecycleTriggerTimes string         `json:"lifecycle_trigger_times"` // comma-separated "HH:MM"
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flag. Absent file path means no JSON is loaded. Only
// fields present in the file override.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.RemoteEndpoint != "" {
		cfg.RemoteEndpoint = jc.RemoteEndpoint
	}
	if jc.RemoteAPIKey != "" {
		cfg.RemoteAPIKey = jc.RemoteAPIKey
	}
	if jc.RemoteTimeout.Duration != 0 {
		cfg.RemoteTimeout = jc.RemoteTimeout.Duration
	}
	if jc.AuthSigningKey != "" {
		cfg.AuthSigningKey = jc.AuthSigningKey
	}
	if jc.TimeZone != "" {
		cfg.TimeZone = jc.TimeZone
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.SyncPushInterval.Duration != 0 {
		cfg.SyncPushInterval = jc.SyncPushInterval.Duration
	}
	if jc.LifecycleTriggerTimes != "" {
		cfg.LifecycleTriggerTimes = strings.Split(jc.LifecycleTriggerTimes, ",")
	}
}
