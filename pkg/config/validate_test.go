package config

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"nsc-hq/arbiter/pkg/arbiter"
)

func TestValidate(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name       string
		mutate     func(*Config)
		wantFields []string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name: "unreachable but finite thresholds are valid",
			mutate: func(c *Config) {
				c.Arbiter.TauE = -100
				c.Arbiter.TauS = 5
				c.Arbiter.TauRep = 0
			},
		},
		{
			name: "non-finite thresholds",
			mutate: func(c *Config) {
				c.Arbiter.TauE = nan
				c.Arbiter.TauGate = inf
			},
			wantFields: []string{"arbiter.tau_e", "arbiter.tau_gate"},
		},
		{
			name: "supervisor sizes",
			mutate: func(c *Config) {
				c.Supervisor.Shards = 0
				c.Supervisor.BatchSize = -1
			},
			wantFields: []string{"supervisor.shards", "supervisor.batch_size"},
		},
		{
			name: "inverted source profile",
			mutate: func(c *Config) {
				c.Supervisor.SourceProfiles = map[string]arbiter.SourceProfile{
					"bad": arbiter.NewSourceProfile(1, 2, 1),
				}
			},
			wantFields: []string{"supervisor.source_profiles.bad"},
		},
		{
			name: "negative normalizer bound",
			mutate: func(c *Config) {
				c.Builder.Normalizer.EntropyMax = -1
			},
			wantFields: []string{"builder.normalizer.entropy_max"},
		},
		{
			name: "disabled oddity is not checked",
			mutate: func(c *Config) {
				c.Oddity.Params.Alpha = 7
			},
		},
		{
			name: "enabled oddity",
			mutate: func(c *Config) {
				c.Oddity.Enabled = true
				c.Oddity.Params.Alpha = 7
				c.Oddity.Params.MagScale = 0
				c.Oddity.Baselines.EntropySigma = nan
			},
			wantFields: []string{"oddity.params.alpha", "oddity.params.mag_scale", "oddity.baselines.entropy_sigma"},
		},
		{
			name: "store",
			mutate: func(c *Config) {
				c.Store.Backend = "s3"
				c.Store.Namespace = ""
				c.Store.KeepGenerations = -1
				c.Store.PruneSchedule = "every tuesday"
			},
			wantFields: []string{"store.backend", "store.namespace", "store.keep_generations", "store.prune_schedule"},
		},
		{
			name: "sqlite",
			mutate: func(c *Config) {
				c.Store.Backend = "sqlite"
				c.Store.SQLite.Driver = "postgres"
				c.Store.SQLite.Path = ""
				c.Store.SQLite.MaxOpenConns = 0
			},
			wantFields: []string{"store.sqlite.driver", "store.sqlite.path", "store.sqlite.max_open_conns"},
		},
		{
			name: "sqlite settings ignored for memory backend",
			mutate: func(c *Config) {
				c.Store.SQLite.Driver = "postgres"
			},
		},
		{
			name: "telemetry",
			mutate: func(c *Config) {
				c.Telemetry.Logging.Level = "trace"
				c.Telemetry.Logging.Format = "xml"
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.Sampler = "sometimes"
			},
			wantFields: []string{"telemetry.logging.level", "telemetry.logging.format", "telemetry.tracing.sampler"},
		},
		{
			name: "ratio out of range",
			mutate: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.Sampler = "ratio"
				c.Telemetry.Tracing.SampleRatio = 1.5
			},
			wantFields: []string{"telemetry.tracing.sample_ratio"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if len(verr.Errors) != len(tt.wantFields) {
				t.Errorf("got %d errors, want %d: %v", len(verr.Errors), len(tt.wantFields), verr)
			}
			for _, field := range tt.wantFields {
				if !verr.HasField(field) {
					t.Errorf("missing error for %s in %v", field, verr)
				}
			}
		})
	}
}

func TestValidate_Overrides(t *testing.T) {
	var doc struct {
		Overrides map[string]yaml.Node `yaml:"overrides"`
	}
	src := `
overrides:
  ok:
    tau_e: 1.0
  broken:
    tau_rep: "lots"
  nan:
    tau_s: .nan
`
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}

	cfg := Default()
	cfg.Supervisor.Overrides = doc.Overrides

	var verr ValidationError
	if !errors.As(Validate(cfg), &verr) {
		t.Fatal("expected ValidationError")
	}
	if len(verr.Errors) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(verr.Errors), verr)
	}
	if !verr.HasField("supervisor.overrides.broken") || !verr.HasField("supervisor.overrides.nan.tau_s") {
		t.Errorf("unexpected errors %v", verr)
	}
}

func TestValidationError_Error(t *testing.T) {
	if got := (ValidationError{}).Error(); got != "configuration validation failed" {
		t.Errorf("empty Error() = %q", got)
	}

	one := ValidationError{Errors: []FieldError{{Field: "a.b", Message: "bad"}}}
	if got := one.Error(); got != "configuration validation failed: a.b: bad" {
		t.Errorf("single Error() = %q", got)
	}

	two := ValidationError{Errors: []FieldError{{Field: "a", Message: "x"}, {Field: "b", Message: "y"}}}
	got := two.Error()
	if !strings.HasPrefix(got, "configuration validation failed with 2 errors:") ||
		!strings.Contains(got, "  - a: x\n") || !strings.Contains(got, "  - b: y\n") {
		t.Errorf("multi Error() = %q", got)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	first := cfg
	ApplyDefaults(&cfg)

	if diff := cmp.Diff(first, cfg); diff != "" {
		t.Errorf("second ApplyDefaults changed the config (-first +second):\n%s", diff)
	}
	if cfg.Supervisor.Shards != DefaultShards || cfg.Supervisor.BatchSize != DefaultBatchSize {
		t.Errorf("supervisor defaults not applied: %+v", cfg.Supervisor)
	}
	if cfg.Store.Backend != DefaultStoreBackend || cfg.Store.SQLite.Driver != DefaultSQLiteDriver {
		t.Errorf("store defaults not applied: %+v", cfg.Store)
	}
	if cfg.Builder.Keys.Entropy != "entropy" {
		t.Errorf("builder keys not applied: %+v", cfg.Builder.Keys)
	}
	if cfg.Store.KeepGenerations != 0 {
		t.Errorf("ApplyDefaults filled keep_generations: %d", cfg.Store.KeepGenerations)
	}
}
