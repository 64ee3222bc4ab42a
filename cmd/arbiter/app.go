package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"nsc-hq/arbiter/pkg/cli"
	"nsc-hq/arbiter/pkg/config"
	"nsc-hq/arbiter/pkg/store"
	"nsc-hq/arbiter/pkg/supervisor"
	"nsc-hq/arbiter/pkg/telemetry/logging"
	"nsc-hq/arbiter/pkg/telemetry/tracing"
)

// app holds the components one command invocation works with.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	tracer   *tracing.Tracer
	sup      *supervisor.Supervisor
	store    *store.Store

	mu      sync.RWMutex
	builder supervisor.Builder

	// stopBackground cancels the watcher and scheduler contexts.
	stopBackground []context.CancelFunc
	wg             sync.WaitGroup
}

// newApp loads the configuration and builds the logger, metrics, tracer,
// supervisor and store. Logs go to logw.
func newApp(logw io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	return newAppWithConfig(cfg, logw)
}

func newAppWithConfig(cfg *config.Config, logw io.Writer) (*app, error) {
	logCfg := cfg.Telemetry.Logging
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg, logw)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		builder: cfg.Builder.NewBuilder(),
	}

	var (
		supMetrics   *supervisor.Metrics
		storeMetrics *store.Metrics
	)
	if cfg.Telemetry.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		supMetrics = supervisor.NewMetrics(a.registry)
		storeMetrics = store.NewMetrics(a.registry)
	}

	a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, tracing.WithVersion(Version))
	if err != nil {
		return nil, cli.NewConfigError("telemetry.tracing", err.Error())
	}

	a.sup, err = cfg.NewSupervisor(
		supervisor.WithLogger(logger),
		supervisor.WithMetrics(supMetrics),
		supervisor.WithTracer(a.tracer.Named("supervisor")),
	)
	if err != nil {
		return nil, cli.NewConfigError("supervisor.overrides", err.Error())
	}

	a.store, err = store.Open(&cfg.Store, store.WithLogger(logger), store.WithMetrics(storeMetrics))
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	return a, nil
}

// recover restores the supervisor from the newest stored generation. An
// empty store is not an error.
func (a *app) recover(ctx context.Context) error {
	_, _, err := a.store.Recover(ctx, a.sup, false)
	if errors.Is(err, store.ErrNotFound) {
		a.logger.DebugContext(ctx, "no stored generation, starting empty")
		return nil
	}
	return err
}

// currentBuilder returns the evidence builder of the active configuration.
func (a *app) currentBuilder() supervisor.Builder {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.builder
}

func (a *app) background(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	a.stopBackground = append(a.stopBackground, cancel)
	return ctx
}

// startPruner runs the configured prune schedule until ctx is done or the
// app is closed.
func (a *app) startPruner(ctx context.Context) error {
	pruner := store.NewPruner(a.store, a.cfg.Store.KeepGenerations)
	return store.NewScheduler(pruner, a.cfg.Store.PruneSchedule).Start(a.background(ctx))
}

// watchConfig reloads path on change and applies it to the supervisor
// until ctx is done or the app is closed.
func (a *app) watchConfig(ctx context.Context, path string) {
	w := config.NewWatcher(path, config.DefaultDebounceInterval, a.logger)
	ctx = a.background(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		err := w.Watch(ctx, func(cfg *config.Config) {
			if err := cfg.Apply(a.sup); err != nil {
				a.logger.Error("config reload rejected", "error", err)
				return
			}
			a.mu.Lock()
			a.builder = cfg.Builder.NewBuilder()
			a.mu.Unlock()
			a.logger.Info("config applied to supervisor", "path", path)
		})
		if err != nil {
			a.logger.Error("config watcher stopped", "error", err)
		}
	}()
}

// Close waits for background work, writes the metrics textfile if
// configured, and releases the store and tracer.
func (a *app) Close(ctx context.Context) error {
	for _, cancel := range a.stopBackground {
		cancel()
	}
	a.wg.Wait()

	var errs []error
	if path := a.cfg.Telemetry.Metrics.TextfilePath; a.registry != nil && path != "" {
		if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
