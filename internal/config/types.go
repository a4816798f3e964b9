package config

import (
	"bytes"
	"encoding/json"
)

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Engine controls the job scheduling engine (interval bounds, retry
	// policy, shutdown drain).
	Engine EngineConfig `json:"engine"`

	// History controls per-attempt execution persistence. Nil means disabled.
	History *HistoryConfig `json:"history,omitempty"`

	// Runnables configures the builtin recurring jobs by name
	// (e.g. "heartbeat", "netprobe", "prune").
	Runnables map[string]RunnableConfigRaw `json:"runnables"`
}

// EngineConfig controls the job engine.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - min_interval: "1s"
//   - max_interval: "24h"
//   - retry_base: "5s"
//   - retry_max_delay: "5m"
//   - retry_max: 3
//   - shutdown_timeout: "5s"
//   - timezone: local
type EngineConfig struct {
	MinInterval string `json:"min_interval,omitempty"`
	MaxInterval string `json:"max_interval,omitempty"`

	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`

	// ShutdownTimeout bounds how long Close waits for in-flight executions.
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`

	// Timezone for cron schedules (IANA name, e.g. "Europe/Amsterdam").
	Timezone string `json:"timezone,omitempty"`
}

// HistoryConfig controls the optional execution-history store.
//
// Example:
//
//	"history": { "driver": "file", "path": "./jobmill_history.jsonl" }
type HistoryConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	// Retention bounds how far back the prune job keeps entries.
	// "0s" or omitted means keep everything.
	Retention string `json:"retention,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type RunnableConfigRaw struct {
	Enabled bool            `json:"enabled"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON disallows unknown fields so removed or misspelled keys are
// caught early during config reload.
func (r *RunnableConfigRaw) UnmarshalJSON(b []byte) error {
	type tmp struct {
		Enabled bool            `json:"enabled"`
		Config  json.RawMessage `json:"config,omitempty"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var t tmp
	if err := dec.Decode(&t); err != nil {
		return err
	}
	*r = RunnableConfigRaw{Enabled: t.Enabled, Config: t.Config}
	return nil
}
