package config

import (
	"time"

	"nsc-hq/arbiter/pkg/arbiter"
	"nsc-hq/arbiter/pkg/supervisor"
)

// Default values for configuration fields.
const (
	// Supervisor defaults
	DefaultShards             = 16
	DefaultBatchSize          = 256
	DefaultUseDefaultProfiles = true

	// Store defaults
	DefaultStoreBackend       = "memory"
	DefaultStoreNamespace     = "default"
	DefaultKeepGenerations    = 10
	DefaultPruneSchedule      = "*/15 * * * *"
	DefaultSQLiteDriver       = "sqlite"
	DefaultSQLitePath         = "data/arbiter.db"
	DefaultSQLiteMaxOpenConns = 1
	DefaultSQLiteBusyTimeout  = 5 * time.Second
	DefaultSQLiteWALMode      = true

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultMetricsEnabled = true
	DefaultTracingEnabled = false
	DefaultTracingSampler = "always"
	DefaultTracingRatio   = 1.0
)

// Default returns a fully populated configuration. LoadConfig decodes YAML
// on top of it, so keys absent from the file keep these values while
// explicit zeros are preserved.
func Default() *Config {
	return &Config{
		Arbiter: arbiter.DefaultConfig(),
		Supervisor: SupervisorConfig{
			Shards:             DefaultShards,
			BatchSize:          DefaultBatchSize,
			UseDefaultProfiles: DefaultUseDefaultProfiles,
		},
		Builder: BuilderConfig{
			Normalizer: supervisor.DefaultNormalizer(),
			Keys:       supervisor.DefaultScalarKeys(),
		},
		Oddity: OddityConfig{
			Params: arbiter.DefaultOddityParams(),
		},
		Store: StoreConfig{
			Backend:         DefaultStoreBackend,
			Namespace:       DefaultStoreNamespace,
			KeepGenerations: DefaultKeepGenerations,
			PruneSchedule:   DefaultPruneSchedule,
			SQLite: SQLiteConfig{
				Driver:       DefaultSQLiteDriver,
				Path:         DefaultSQLitePath,
				MaxOpenConns: DefaultSQLiteMaxOpenConns,
				BusyTimeout:  DefaultSQLiteBusyTimeout,
				WALMode:      DefaultSQLiteWALMode,
			},
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:  DefaultLoggingLevel,
				Format: DefaultLoggingFormat,
			},
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
			},
			Tracing: TracingConfig{
				Enabled:     DefaultTracingEnabled,
				Sampler:     DefaultTracingSampler,
				SampleRatio: DefaultTracingRatio,
			},
		},
	}
}

// ApplyDefaults fills fields that can never legitimately be empty. Numeric
// thresholds are left alone: a zero there is a deliberate setting.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Supervisor defaults
	if cfg.Supervisor.Shards == 0 {
		cfg.Supervisor.Shards = DefaultShards
	}
	if cfg.Supervisor.BatchSize == 0 {
		cfg.Supervisor.BatchSize = DefaultBatchSize
	}

	// Builder defaults
	keys := supervisor.DefaultScalarKeys()
	if cfg.Builder.Keys.Entropy == "" {
		cfg.Builder.Keys.Entropy = keys.Entropy
	}
	if cfg.Builder.Keys.Cosine == "" {
		cfg.Builder.Keys.Cosine = keys.Cosine
	}
	if cfg.Builder.Keys.GateShift == "" {
		cfg.Builder.Keys.GateShift = keys.GateShift
	}
	if cfg.Builder.Keys.Weight == "" {
		cfg.Builder.Keys.Weight = keys.Weight
	}

	// Store defaults
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.Namespace == "" {
		cfg.Store.Namespace = DefaultStoreNamespace
	}
	if cfg.Store.SQLite.Driver == "" {
		cfg.Store.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Store.SQLite.MaxOpenConns == 0 {
		cfg.Store.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Store.SQLite.BusyTimeout == 0 {
		cfg.Store.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
}
