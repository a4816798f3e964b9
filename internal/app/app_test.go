package app

import (
	"encoding/json"
	"testing"
	"time"

	"jobmill/internal/config"
	"jobmill/internal/job"
	logx "jobmill/pkg/logx"
)

func TestMapEngineConfig(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Engine: config.EngineConfig{
		MinInterval:     "2s",
		MaxInterval:     "1h",
		RetryBase:       "1s",
		RetryMaxDelay:   "30s",
		RetryMax:        5,
		ShutdownTimeout: "3s",
		Timezone:        "UTC",
	}}
	got, err := mapEngineConfig(cfg)
	if err != nil {
		t.Fatalf("mapEngineConfig: %v", err)
	}
	want := job.Config{
		MinInterval:       2 * time.Second,
		MaxInterval:       time.Hour,
		RetryBase:         time.Second,
		RetryMaxDelay:     30 * time.Second,
		DefaultMaxRetries: 5,
		ShutdownTimeout:   3 * time.Second,
		Timezone:          "UTC",
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestMapEngineConfigRejectsBadValues(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		eng  config.EngineConfig
	}{
		{"bad duration", config.EngineConfig{MinInterval: "soon"}},
		{"negative retry max", config.EngineConfig{RetryMax: -1}},
		{"bad timezone", config.EngineConfig{Timezone: "Mars/Olympus"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := mapEngineConfig(&config.Config{Engine: tc.eng}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBuildRunnables(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		History: &config.HistoryConfig{Driver: "file", Path: "h.jsonl", Retention: "72h"},
		Runnables: map[string]config.RunnableConfigRaw{
			"heartbeat": {Enabled: true, Config: json.RawMessage(`{"interval": "20s"}`)},
			"netprobe":  {Enabled: false},
			"prune":     {Enabled: true, Config: json.RawMessage(`{"interval": "1h"}`)},
		},
	}
	got, err := buildRunnables(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("buildRunnables: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (netprobe disabled)", len(got))
	}
	names := map[string]time.Duration{}
	for _, r := range got {
		n, ok := r.(job.Named)
		if !ok {
			t.Fatalf("runnable %T is not Named", r)
		}
		names[n.Name()] = r.Frequency()
	}
	if names["heartbeat"] != 20*time.Second {
		t.Fatalf("heartbeat frequency = %v", names["heartbeat"])
	}
	if names["prune"] != time.Hour {
		t.Fatalf("prune frequency = %v", names["prune"])
	}
}

func TestBuildRunnablesRejectsUnknown(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Runnables: map[string]config.RunnableConfigRaw{
		"mystery": {Enabled: true},
	}}
	if _, err := buildRunnables(cfg, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown runnable")
	}
}

func TestBuildRunnablesRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Runnables: map[string]config.RunnableConfigRaw{
		"heartbeat": {Enabled: true, Config: json.RawMessage(`{"intervall": "20s"}`)},
	}}
	if _, err := buildRunnables(cfg, logx.Nop()); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}
