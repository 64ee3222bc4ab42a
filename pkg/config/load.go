package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of Default(), then defaults are applied and the
// result is validated. Environment variables are ignored; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML data on top of Default() and applies defaults. It does
// not validate.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention ARBITER_SECTION_FIELD (e.g., ARBITER_SUPERVISOR_SHARDS) and
// always take precedence over the file.
//
// The loading sequence is:
// 1. Decode YAML on top of the defaults
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// FromEnv returns the defaults with environment overrides applied. It is
// used when no configuration file is given.
func FromEnv() (*Config, error) {
	cfg := Default()
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Unparseable values are ignored.
func applyEnvOverrides(cfg *Config) {
	// Arbiter overrides
	envFloat32("ARBITER_TAU_E", &cfg.Arbiter.TauE)
	envFloat32("ARBITER_TAU_S", &cfg.Arbiter.TauS)
	envUint32("ARBITER_TAU_REP", &cfg.Arbiter.TauRep)
	envUint32("ARBITER_TAU_STALL", &cfg.Arbiter.TauStall)
	envFloat32("ARBITER_TAU_GATE", &cfg.Arbiter.TauGate)
	envBool("ARBITER_HYST_DISABLE", &cfg.Arbiter.HystDisable)
	if val := os.Getenv("ARBITER_FORCED_RULE_HITS"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			cfg.Arbiter = cfg.Arbiter.WithForcedRuleHits(uint32(n))
		}
	}

	// Supervisor overrides
	envInt("ARBITER_SUPERVISOR_SHARDS", &cfg.Supervisor.Shards)
	envInt("ARBITER_SUPERVISOR_BATCH_SIZE", &cfg.Supervisor.BatchSize)
	envBool("ARBITER_SUPERVISOR_USE_DEFAULT_PROFILES", &cfg.Supervisor.UseDefaultProfiles)

	// Oddity overrides
	envBool("ARBITER_ODDITY_ENABLED", &cfg.Oddity.Enabled)

	// Store overrides
	if val := os.Getenv("ARBITER_STORE_BACKEND"); val != "" {
		cfg.Store.Backend = val
	}
	if val := os.Getenv("ARBITER_STORE_NAMESPACE"); val != "" {
		cfg.Store.Namespace = val
	}
	envInt("ARBITER_STORE_KEEP_GENERATIONS", &cfg.Store.KeepGenerations)
	if val, ok := os.LookupEnv("ARBITER_STORE_PRUNE_SCHEDULE"); ok {
		cfg.Store.PruneSchedule = val
	}
	if val := os.Getenv("ARBITER_STORE_SQLITE_DRIVER"); val != "" {
		cfg.Store.SQLite.Driver = val
	}
	if val := os.Getenv("ARBITER_STORE_SQLITE_PATH"); val != "" {
		cfg.Store.SQLite.Path = val
	}
	if val := os.Getenv("ARBITER_STORE_SQLITE_BUSY_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Store.SQLite.BusyTimeout = d
		}
	}

	// Telemetry overrides
	if val := os.Getenv("ARBITER_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("ARBITER_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	envBool("ARBITER_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	if val := os.Getenv("ARBITER_TELEMETRY_METRICS_TEXTFILE_PATH"); val != "" {
		cfg.Telemetry.Metrics.TextfilePath = val
	}
	envBool("ARBITER_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	if val := os.Getenv("ARBITER_TELEMETRY_TRACING_SAMPLER"); val != "" {
		cfg.Telemetry.Tracing.Sampler = val
	}
	if val := os.Getenv("ARBITER_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envUint32(key string, dst *uint32) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func envFloat32(key string, dst *float32) {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 32); err == nil {
			*dst = float32(f)
		}
	}
}
