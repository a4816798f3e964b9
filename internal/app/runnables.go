package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"jobmill/internal/config"
	"jobmill/internal/job"
	"jobmill/internal/runnable"
	logx "jobmill/pkg/logx"
)

// buildRunnables constructs the enabled builtin runnables from config.
// Unknown runnable names and malformed per-runnable config are errors, so a
// typo can't silently disable a job across a hot reload.
func buildRunnables(cfg *config.Config, log logx.Logger) ([]job.Runnable, error) {
	names := make([]string, 0, len(cfg.Runnables))
	for name := range cfg.Runnables {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]job.Runnable, 0, len(names))
	for _, name := range names {
		raw := cfg.Runnables[name]
		if !raw.Enabled {
			continue
		}
		r, err := buildRunnable(name, raw.Config, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("runnables.%s: %w", name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func buildRunnable(name string, raw json.RawMessage, cfg *config.Config, log logx.Logger) (job.Runnable, error) {
	switch name {
	case "heartbeat":
		var rc struct {
			Interval string `json:"interval,omitempty"`
		}
		if err := decodeRunnableConfig(raw, &rc); err != nil {
			return nil, err
		}
		interval, err := config.ParseDurationField("interval", rc.Interval)
		if err != nil {
			return nil, err
		}
		if interval <= 0 {
			// Under systemd, schedule at half the watchdog deadline.
			if wd, err := runnable.WatchdogInterval(); err == nil && wd > 0 {
				interval = wd / 2
			}
		}
		return runnable.NewHeartbeat(interval, log.With(logx.String("comp", "heartbeat"))), nil

	case "netprobe":
		var rc struct {
			Interval    string `json:"interval,omitempty"`
			ServerCount int    `json:"server_count,omitempty"`
			FullTest    bool   `json:"full_test,omitempty"`
		}
		if err := decodeRunnableConfig(raw, &rc); err != nil {
			return nil, err
		}
		interval, err := config.ParseDurationField("interval", rc.Interval)
		if err != nil {
			return nil, err
		}
		if rc.ServerCount < 0 {
			return nil, fmt.Errorf("server_count must be >= 0")
		}
		return runnable.NewNetProbe(runnable.NetProbeConfig{
			Interval:    interval,
			ServerCount: rc.ServerCount,
			FullTest:    rc.FullTest,
		}, log.With(logx.String("comp", "netprobe"))), nil

	case "prune":
		var rc struct {
			Interval string `json:"interval,omitempty"`
		}
		if err := decodeRunnableConfig(raw, &rc); err != nil {
			return nil, err
		}
		interval, err := config.ParseDurationField("interval", rc.Interval)
		if err != nil {
			return nil, err
		}
		hcfg, err := mapHistoryConfig(cfg)
		if err != nil {
			return nil, err
		}
		return runnable.NewPrune(interval, hcfg.Retention, log.With(logx.String("comp", "prune"))), nil

	default:
		return nil, fmt.Errorf("unknown builtin runnable")
	}
}

func decodeRunnableConfig(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}
