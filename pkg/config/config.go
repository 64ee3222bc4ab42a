package config

import (
	"fmt"
	"maps"
	"time"

	"gopkg.in/yaml.v3"

	"nsc-hq/arbiter/pkg/arbiter"
	"nsc-hq/arbiter/pkg/supervisor"
)

// Config is the root configuration structure for the arbiter.
// It contains the decision thresholds, supervisor layout, evidence builder
// settings, optional oddity scoring, snapshot storage and telemetry.
type Config struct {
	// Arbiter contains the global decision thresholds. Intents without an
	// override in Supervisor.Overrides use these.
	Arbiter arbiter.Config `yaml:"arbiter"`

	// Supervisor contains sharding, source profiles and per-intent overrides.
	Supervisor SupervisorConfig `yaml:"supervisor"`

	// Builder configures how raw signal scalars become evidence.
	Builder BuilderConfig `yaml:"builder"`

	// Oddity configures the auxiliary oddity score attached to actions.
	Oddity OddityConfig `yaml:"oddity"`

	// Store configures where snapshot generations are persisted.
	Store StoreConfig `yaml:"store"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SupervisorConfig contains configuration for the sharded supervisor.
type SupervisorConfig struct {
	// Shards is the number of independently locked state partitions.
	// Default: 16
	Shards int `yaml:"shards"`

	// BatchSize is the number of signals the CLI ingests per batch.
	// Default: 256
	BatchSize int `yaml:"batch_size"`

	// UseDefaultProfiles seeds the profile table with the built-in sources
	// (llm, stt, health, meta_onnx, video_gen, audio_gen, vendor).
	// Default: true
	UseDefaultProfiles bool `yaml:"use_default_profiles"`

	// SourceProfiles adds or replaces per-source weight profiles.
	SourceProfiles map[string]arbiter.SourceProfile `yaml:"source_profiles"`

	// Overrides holds per-intent threshold overrides. Each entry is decoded
	// on top of the global Arbiter section, so only the changed keys need
	// to be listed.
	Overrides map[string]yaml.Node `yaml:"overrides"`
}

// Profiles returns the effective source profile table, or nil when no
// profiles are configured.
func (c *SupervisorConfig) Profiles() arbiter.SourceProfiles {
	var out arbiter.SourceProfiles
	if c.UseDefaultProfiles {
		out = arbiter.DefaultSourceProfiles()
	}
	if len(c.SourceProfiles) > 0 {
		if out == nil {
			out = make(arbiter.SourceProfiles, len(c.SourceProfiles))
		}
		maps.Copy(out, c.SourceProfiles)
	}
	return out
}

// ResolveOverrides decodes every override on top of base.
func (c *SupervisorConfig) ResolveOverrides(base arbiter.Config) (map[string]arbiter.Config, error) {
	out := make(map[string]arbiter.Config, len(c.Overrides))
	for intentID, node := range c.Overrides {
		cfg := base.Clone()
		if err := node.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("override for intent %q: %w", intentID, err)
		}
		out[intentID] = cfg
	}
	return out, nil
}

// BuilderConfig contains configuration for the basic evidence builder.
type BuilderConfig struct {
	// Normalizer bounds raw scalars.
	Normalizer supervisor.Normalizer `yaml:"normalizer"`

	// Keys names the scalars read from each signal.
	Keys supervisor.ScalarKeys `yaml:"keys"`
}

// NewBuilder returns a BasicBuilder with this configuration.
func (c *BuilderConfig) NewBuilder() *supervisor.BasicBuilder {
	return &supervisor.BasicBuilder{
		Normalizer: c.Normalizer,
		Keys:       c.Keys,
	}
}

// OddityConfig contains configuration for the auxiliary oddity score.
type OddityConfig struct {
	// Enabled attaches an oddity score to every action.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Params are the scoring knobs.
	// Default: z_thresh 1.5, alpha 0.66, mag_scale 2.0
	Params arbiter.OddityParams `yaml:"params"`

	// Baselines are the persona means and sigmas scores are relative to.
	Baselines arbiter.PersonaBaselines `yaml:"baselines"`
}

// StoreConfig contains configuration for snapshot persistence.
type StoreConfig struct {
	// Backend selects the storage backend: "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Namespace groups generations so several supervisors can share one
	// database.
	// Default: "default"
	Namespace string `yaml:"namespace"`

	// KeepGenerations is how many snapshot generations the pruner retains
	// per namespace. 0 keeps everything.
	// Default: 10
	KeepGenerations int `yaml:"keep_generations"`

	// PruneSchedule is a standard cron expression for background pruning.
	// Empty disables scheduled pruning.
	// Default: "*/15 * * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// SQLite contains settings for the "sqlite" backend.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains configuration for the SQLite store.
type SQLiteConfig struct {
	// Driver is the database/sql driver: "sqlite" (pure Go) or "sqlite3"
	// (cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file path.
	// Default: "data/arbiter.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 1
	MaxOpenConns int `yaml:"max_open_conns"`

	// BusyTimeout is how long to wait for database locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json", "text" or "console".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes the source file and line in each record.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled registers the supervisor and store collectors.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// TextfilePath, when set, makes the CLI write all metrics in the text
	// exposition format to this file before exiting.
	TextfilePath string `yaml:"textfile_path"`
}

// TracingConfig contains span sampling configuration. Spans are never
// exported by this module; an embedding process supplies processors.
type TracingConfig struct {
	// Enabled turns on the SDK tracer provider.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler is "always", "never" or "ratio".
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces kept by the "ratio" sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`
}
