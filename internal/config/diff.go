package config

import (
	"reflect"
	"sort"
	"strings"

	logx "jobmill/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) structured attrs for logging, and (3) the names of runnables whose
// enable flag or config changed.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Engine
	if oldCfg.Engine != newCfg.Engine {
		changed = append(changed, "engine")
		attrs = append(attrs,
			logx.String("engine.min_interval", strings.TrimSpace(newCfg.Engine.MinInterval)),
			logx.String("engine.max_interval", strings.TrimSpace(newCfg.Engine.MaxInterval)),
			logx.String("engine.retry_base", strings.TrimSpace(newCfg.Engine.RetryBase)),
			logx.String("engine.retry_max_delay", strings.TrimSpace(newCfg.Engine.RetryMaxDelay)),
			logx.Int("engine.retry_max", newCfg.Engine.RetryMax),
			logx.String("engine.shutdown_timeout", strings.TrimSpace(newCfg.Engine.ShutdownTimeout)),
			logx.String("engine.timezone", strings.TrimSpace(newCfg.Engine.Timezone)),
		)
	}

	// History. Nil means disabled.
	oldH := oldCfg.History
	newH := newCfg.History
	if (oldH == nil) != (newH == nil) || (oldH != nil && newH != nil && !reflect.DeepEqual(*oldH, *newH)) {
		changed = append(changed, "history")
		var driver, retention string
		var pathSet bool
		if newH != nil {
			driver = strings.TrimSpace(newH.Driver)
			retention = strings.TrimSpace(newH.Retention)
			pathSet = strings.TrimSpace(newH.Path) != ""
		}
		attrs = append(attrs,
			logx.String("history.driver", driver),
			logx.Bool("history.path_set", pathSet),
			logx.String("history.retention", retention),
		)
	}

	// Runnables (summarize only; details at debug)
	runnableChanged := diffRunnables(oldCfg.Runnables, newCfg.Runnables)
	if len(runnableChanged) > 0 {
		changed = append(changed, "runnables")
		attrs = append(attrs,
			logx.Int("runnables.changed_count", len(runnableChanged)),
			logx.Int("runnables.enabled_count", countEnabled(newCfg.Runnables)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, runnableChanged
}

func countEnabled(m map[string]RunnableConfigRaw) int {
	n := 0
	for _, v := range m {
		if v.Enabled {
			n++
		}
	}
	return n
}

func diffRunnables(oldM, newM map[string]RunnableConfigRaw) []string {
	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		o := oldM[name]
		n := newM[name]
		if o.Enabled != n.Enabled {
			out = append(out, name)
			continue
		}
		if canonicalHashJSON(o.Config) != canonicalHashJSON(n.Config) {
			out = append(out, name)
			continue
		}
	}
	sort.Strings(out)
	return out
}
