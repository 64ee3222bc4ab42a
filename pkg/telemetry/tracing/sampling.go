package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Values of telemetry.tracing.sampler.
const (
	SamplerAlways = "always"
	SamplerNever  = "never"

	// SamplerRatio keeps telemetry.tracing.sample_ratio of root traces,
	// chosen by trace id.
	SamplerRatio = "ratio"
)

// createSampler builds the root sampler for the supervisor's Ingest, Export
// and Import spans. It is wrapped in ParentBased, so when the arbiter is
// embedded under a caller's span the caller's sampling decision wins.
func createSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	var root sdktrace.Sampler
	switch strategy {
	case SamplerAlways:
		root = sdktrace.AlwaysSample()
	case SamplerNever:
		root = sdktrace.NeverSample()
	case SamplerRatio:
		if !(ratio >= 0 && ratio <= 1) {
			return nil, fmt.Errorf("sample_ratio %v outside [0, 1]", ratio)
		}
		root = sdktrace.TraceIDRatioBased(ratio)
	default:
		return nil, fmt.Errorf("unknown sampler %q (want %s, %s or %s)",
			strategy, SamplerAlways, SamplerNever, SamplerRatio)
	}
	return sdktrace.ParentBased(root), nil
}
