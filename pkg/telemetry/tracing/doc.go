// Package tracing provides OpenTelemetry spans for the arbiter.
//
// New builds an SDK tracer provider with the configured sampler and the
// arbiter service resource. No exporter is created here; an embedding
// process that wants spans delivered attaches its own processor:
//
//	t, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithSpanProcessor(p))
//	defer t.Shutdown(ctx)
//	sup := supervisor.New(n, cfg.Arbiter, supervisor.WithTracer(t.Named("supervisor")))
//
// # Sampling Strategies
//
//   - always: sample every trace
//   - never: sample nothing
//   - ratio: sample a fraction of traces by trace ID
//
// Every strategy respects the parent span's decision.
//
// When tracing is disabled the provider is a noop and span creation costs
// almost nothing.
package tracing
