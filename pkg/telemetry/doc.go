// Package telemetry groups the arbiter's observability packages.
//
// # Components
//
//   - logging: slog logger with intent, batch and trace fields from the context
//   - tracing: OpenTelemetry tracer provider with configurable sampling and no exporter
//   - health: concurrent component checks with per-check timeouts
//
// Prometheus metrics are defined next to the code they measure, in
// pkg/supervisor and pkg/store, and registered on a caller-supplied
// prometheus.Registerer.
//
// # Usage
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stderr)
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithVersion(version))
//	defer tracer.Shutdown(ctx)
//
//	sup := supervisor.New(shards, arbiter.DefaultConfig(),
//	    supervisor.WithLogger(logger),
//	    supervisor.WithTracer(tracer.Named("supervisor")),
//	)
package telemetry
