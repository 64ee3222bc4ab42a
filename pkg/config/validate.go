package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/robfig/cron/v3"

	"nsc-hq/arbiter/pkg/arbiter"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "arbiter.tau_e").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// HasField reports whether any error refers to field.
func (e ValidationError) HasField(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateArbiter("arbiter", &cfg.Arbiter)...)
	errs = append(errs, validateSupervisor(cfg)...)
	errs = append(errs, validateBuilder(&cfg.Builder)...)
	errs = append(errs, validateOddity(&cfg.Oddity)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateArbiter rejects thresholds that are not finite. Any finite value
// is accepted, including ones that make an alarm unreachable.
func validateArbiter(prefix string, cfg *arbiter.Config) []FieldError {
	var errs []FieldError

	for _, f := range []struct {
		name string
		val  float32
	}{
		{"tau_e", cfg.TauE},
		{"tau_s", cfg.TauS},
		{"tau_gate", cfg.TauGate},
	} {
		if !finite(f.val) {
			errs = append(errs, FieldError{
				Field:   prefix + "." + f.name,
				Message: "threshold must be a finite number",
			})
		}
	}

	return errs
}

// validateSupervisor validates supervisor configuration, including every
// per-intent override.
func validateSupervisor(cfg *Config) []FieldError {
	var errs []FieldError
	sc := &cfg.Supervisor

	if sc.Shards < 1 {
		errs = append(errs, FieldError{
			Field:   "supervisor.shards",
			Message: "shard count must be at least 1",
		})
	}
	if sc.BatchSize < 1 {
		errs = append(errs, FieldError{
			Field:   "supervisor.batch_size",
			Message: "batch size must be at least 1",
		})
	}

	for name, p := range sc.SourceProfiles {
		if !p.Valid() {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("supervisor.source_profiles.%s", name),
				Message: "profile requires finite weights with min_weight <= max_weight",
			})
		}
	}

	for intentID, node := range sc.Overrides {
		field := fmt.Sprintf("supervisor.overrides.%s", intentID)
		resolved := cfg.Arbiter.Clone()
		if err := node.Decode(&resolved); err != nil {
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("invalid override: %v", err),
			})
			continue
		}
		errs = append(errs, validateArbiter(field, &resolved)...)
	}

	return errs
}

// validateBuilder validates evidence builder configuration.
func validateBuilder(cfg *BuilderConfig) []FieldError {
	var errs []FieldError

	if !finite(cfg.Normalizer.EntropyMax) || cfg.Normalizer.EntropyMax < 0 {
		errs = append(errs, FieldError{
			Field:   "builder.normalizer.entropy_max",
			Message: "entropy max must be a non-negative finite number",
		})
	}
	if !finite(cfg.Normalizer.GateShiftMax) || cfg.Normalizer.GateShiftMax < 0 {
		errs = append(errs, FieldError{
			Field:   "builder.normalizer.gate_shift_max",
			Message: "gate shift max must be a non-negative finite number",
		})
	}

	return errs
}

// validateOddity validates oddity configuration. Only enabled scoring is
// checked.
func validateOddity(cfg *OddityConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	p := cfg.Params
	if !finite(p.ZThresh) || p.ZThresh < 0 {
		errs = append(errs, FieldError{
			Field:   "oddity.params.z_thresh",
			Message: "z threshold must be a non-negative finite number",
		})
	}
	if !finite(p.Alpha) || p.Alpha < 0 || p.Alpha > 1 {
		errs = append(errs, FieldError{
			Field:   "oddity.params.alpha",
			Message: "alpha must be between 0 and 1",
		})
	}
	if !finite(p.MagScale) || p.MagScale <= 0 {
		errs = append(errs, FieldError{
			Field:   "oddity.params.mag_scale",
			Message: "magnitude scale must be positive",
		})
	}

	b := cfg.Baselines
	for _, f := range []struct {
		name string
		val  float32
	}{
		{"gate_shift_mu", b.GateShiftMu},
		{"gate_shift_sigma", b.GateShiftSigma},
		{"entropy_mu", b.EntropyMu},
		{"entropy_sigma", b.EntropySigma},
		{"cos_dist_mu", b.CosDistMu},
		{"cos_dist_sigma", b.CosDistSigma},
	} {
		if !finite(f.val) {
			errs = append(errs, FieldError{
				Field:   "oddity.baselines." + f.name,
				Message: "baseline must be a finite number",
			})
		}
	}

	return errs
}

// validateStore validates snapshot store configuration.
func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	validBackends := map[string]bool{
		"memory": true,
		"sqlite": true,
	}
	if !validBackends[cfg.Backend] {
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("invalid backend %q (must be 'memory' or 'sqlite')", cfg.Backend),
		})
	}

	if cfg.Namespace == "" {
		errs = append(errs, FieldError{
			Field:   "store.namespace",
			Message: "namespace is required",
		})
	}

	if cfg.KeepGenerations < 0 {
		errs = append(errs, FieldError{
			Field:   "store.keep_generations",
			Message: "keep generations must be non-negative",
		})
	}

	if cfg.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "store.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	if cfg.Backend == "sqlite" {
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q (must be 'sqlite' or 'sqlite3')", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.path",
				Message: "database path is required when backend is sqlite",
			})
		}
		if cfg.SQLite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.max_open_conns",
				Message: "max open connections must be at least 1",
			})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.busy_timeout",
				Message: "busy timeout must be non-negative",
			})
		}
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{
		"json":    true,
		"text":    true,
		"console": true,
	}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json, text, or console)", cfg.Logging.Format),
		})
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never":
		case "ratio":
			if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 || math.IsNaN(cfg.Tracing.SampleRatio) {
				errs = append(errs, FieldError{
					Field:   "telemetry.tracing.sample_ratio",
					Message: "sample ratio must be between 0 and 1",
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (must be always, never, or ratio)", cfg.Tracing.Sampler),
			})
		}
	}

	return errs
}

func finite(x float32) bool {
	return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
}
