// Package app wires the daemon together: config, logging, event bus,
// history persistence, the job engine and the builtin runnables.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobmill/internal/config"
	"jobmill/internal/eventbus"
	"jobmill/internal/history"
	"jobmill/internal/job"
	"jobmill/internal/runnable"
	"jobmill/internal/runtime/supervisor"
	logx "jobmill/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store    history.Store
	recorder *history.Recorder

	mgr *job.Manager
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// History (optional)
	hcfg, err := mapHistoryConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := history.Open(hcfg, log.With(logx.String("comp", "history")))
	if err != nil {
		return nil, err
	}
	if store != nil {
		log.Info("history enabled", logx.String("driver", hcfg.Driver))
	}
	recorder := history.NewRecorder(store, bus, log.With(logx.String("comp", "history")))

	// Dependency resolver handed to every job body.
	deps := newDepMap()
	if store != nil {
		deps.set(runnable.DepHistoryStore, store)
	}

	engCfg, err := mapEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	mgr, err := job.New(engCfg, deps, log.With(logx.String("comp", "engine")), bus)
	if err != nil {
		return nil, err
	}

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		recorder: recorder,
		mgr:      mgr,
	}, nil
}

// Manager exposes the job engine, mainly for tests and future surfaces.
func (a *App) Manager() *job.Manager { return a.mgr }

// Done is closed when the app run context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapEngineConfig(cfg); err != nil {
			return err
		}
		if _, err := mapHistoryConfig(cfg); err != nil {
			return err
		}
		if _, err := buildRunnables(cfg, logx.Nop()); err != nil {
			return err
		}
		return nil
	})

	a.recorder.Start(a.sup.Context())

	// Builtin runnables per config.
	cfg := a.cfgm.Get()
	runnables, err := buildRunnables(cfg, a.log)
	if err != nil {
		return err
	}
	if n := a.mgr.StartRunnableJobs(runnables...); n > 0 {
		a.log.Info("builtin runnables registered", logx.Int("count", n))
	}

	// Debug visibility into the lifecycle event stream.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// Hot reload config fan-out.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs, runnablesChanged := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogConfig(newCfg))
		case "engine", "history":
			// The engine's bounds and the store are fixed at construction.
			a.log.Warn("config change requires restart to take effect",
				logx.String("section", s))
		case "runnables":
			a.applyRunnables(newCfg, runnablesChanged)
		}
	}

	a.log.Info("config reloaded", logx.String("changed", strings.Join(sections, ",")))
}

// applyRunnables re-registers changed builtin runnables: cancel the old job,
// register the new definition. Unknown names are ignored (the validator
// already warned at parse time).
func (a *App) applyRunnables(cfg *config.Config, changed []string) {
	all, err := buildRunnables(cfg, a.log)
	if err != nil {
		a.log.Warn("invalid runnables config; keeping previous", logx.Err(err))
		return
	}
	byName := make(map[string]job.Runnable, len(all))
	for _, r := range all {
		if n, ok := r.(job.Named); ok {
			byName[n.Name()] = r
		}
	}
	for _, name := range changed {
		id := job.RunnableID(name)
		if a.mgr.CancelJob(id) {
			a.log.Info("runnable deregistered via config", logx.String("name", name))
		}
		if r, ok := byName[name]; ok {
			if a.mgr.StartRunnableJobs(r) > 0 {
				a.log.Info("runnable registered via config", logx.String("name", name))
			}
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// The engine owns its drain budget (ShutdownTimeout); give the whole
	// stop sequence an upper bound regardless.
	stopCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		stopCtx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	a.mgr.Close(stopCtx)
	a.recorder.Stop()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("history close failed", logx.Err(err))
		}
	}

	if err := a.sup.Wait(stopCtx); err != nil {
		a.log.Warn("shutdown incomplete", logx.Err(err))
	}

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// depMap is the Resolver implementation handed to job bodies.
type depMap struct {
	m map[string]any
}

func newDepMap() *depMap { return &depMap{m: map[string]any{}} }

func (d *depMap) set(name string, v any) { d.m[name] = v }

func (d *depMap) Resolve(name string) (any, bool) {
	v, ok := d.m[name]
	return v, ok
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapEngineConfig(cfg *config.Config) (job.Config, error) {
	e := cfg.Engine

	minIv, err := config.ParseDurationField("engine.min_interval", e.MinInterval)
	if err != nil {
		return job.Config{}, err
	}
	maxIv, err := config.ParseDurationField("engine.max_interval", e.MaxInterval)
	if err != nil {
		return job.Config{}, err
	}
	retryBase, err := config.ParseDurationField("engine.retry_base", e.RetryBase)
	if err != nil {
		return job.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("engine.retry_max_delay", e.RetryMaxDelay)
	if err != nil {
		return job.Config{}, err
	}
	shutdown, err := config.ParseDurationField("engine.shutdown_timeout", e.ShutdownTimeout)
	if err != nil {
		return job.Config{}, err
	}
	if e.RetryMax < 0 {
		return job.Config{}, fmt.Errorf("engine.retry_max must be >= 0")
	}
	if tz := strings.TrimSpace(e.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return job.Config{}, fmt.Errorf("engine.timezone: invalid %q: %w", tz, err)
		}
	}

	return job.Config{
		MinInterval:       minIv,
		MaxInterval:       maxIv,
		RetryBase:         retryBase,
		RetryMaxDelay:     retryMaxDelay,
		DefaultMaxRetries: e.RetryMax,
		ShutdownTimeout:   shutdown,
		Timezone:          strings.TrimSpace(e.Timezone),
	}, nil
}

func mapHistoryConfig(cfg *config.Config) (history.Config, error) {
	if cfg.History == nil {
		return history.Config{}, nil
	}
	h := cfg.History
	busy, err := config.ParseDurationField("history.busy_timeout", h.BusyTimeout)
	if err != nil {
		return history.Config{}, err
	}
	retention, err := config.ParseDurationField("history.retention", h.Retention)
	if err != nil {
		return history.Config{}, err
	}
	return history.Config{
		Driver:      strings.TrimSpace(h.Driver),
		Path:        strings.TrimSpace(h.Path),
		BusyTimeout: busy,
		Retention:   retention,
	}, nil
}
