package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"nsc-hq/arbiter/pkg/arbiter"
)

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
arbiter:
  tau_e: 3.0
  tau_rep: 2
  hyst_disable: true

supervisor:
  shards: 8
  use_default_profiles: false
  source_profiles:
    custom:
      base_weight: 0.7
      min_weight: 0.1
      max_weight: 0.9
  overrides:
    intent-7:
      tau_s: 0.5
      forced_rule_hits: 3

oddity:
  enabled: true
  baselines:
    entropy_mu: 1.0
    entropy_sigma: 0.5

store:
  backend: "sqlite"
  keep_generations: 0
  sqlite:
    driver: "sqlite3"
    path: "./arbiter-test.db"
    busy_timeout: "2s"

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	wantArbiter := arbiter.Config{TauE: 3.0, TauS: 0.76, TauRep: 2, TauStall: 1, TauGate: 2.0, HystDisable: true}
	if diff := cmp.Diff(wantArbiter, cfg.Arbiter); diff != "" {
		t.Errorf("arbiter mismatch (-want +got):\n%s", diff)
	}
	if cfg.Supervisor.Shards != 8 {
		t.Errorf("expected 8 shards, got %d", cfg.Supervisor.Shards)
	}
	if cfg.Supervisor.BatchSize != DefaultBatchSize {
		t.Errorf("expected default batch size, got %d", cfg.Supervisor.BatchSize)
	}
	if cfg.Store.KeepGenerations != 0 {
		t.Errorf("explicit keep_generations 0 was replaced with %d", cfg.Store.KeepGenerations)
	}
	if cfg.Store.SQLite.BusyTimeout != 2*time.Second {
		t.Errorf("expected busy timeout 2s, got %v", cfg.Store.SQLite.BusyTimeout)
	}
	if cfg.Store.SQLite.MaxOpenConns != DefaultSQLiteMaxOpenConns {
		t.Errorf("expected default max open conns, got %d", cfg.Store.SQLite.MaxOpenConns)
	}
	if !cfg.Oddity.Enabled || cfg.Oddity.Params != arbiter.DefaultOddityParams() {
		t.Errorf("unexpected oddity config %+v", cfg.Oddity)
	}

	profiles := cfg.Supervisor.Profiles()
	if len(profiles) != 1 || profiles["custom"] != arbiter.NewSourceProfile(0.7, 0.1, 0.9) {
		t.Errorf("unexpected profiles %+v", profiles)
	}

	overrides, err := cfg.Supervisor.ResolveOverrides(cfg.Arbiter)
	if err != nil {
		t.Fatalf("ResolveOverrides() error = %v", err)
	}
	wantOverride := wantArbiter.WithForcedRuleHits(3)
	wantOverride.TauS = 0.5
	if diff := cmp.Diff(map[string]arbiter.Config{"intent-7": wantOverride}, overrides); diff != "" {
		t.Errorf("overrides mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if len(cfg.Supervisor.Profiles()) != len(arbiter.DefaultSourceProfiles()) {
		t.Error("default profiles were not seeded")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "arbiter:\n  tau_e: [unclosed\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
supervisor:
  shards: -2
store:
  backend: "postgres"
`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	for _, field := range []string{"supervisor.shards", "store.backend"} {
		if !verr.HasField(field) {
			t.Errorf("expected error for %s in %v", field, verr)
		}
	}
}

func TestLoadConfigWithEnvOverrides_BasicOverrides(t *testing.T) {
	path := writeConfig(t, `
arbiter:
  tau_e: 3.0
supervisor:
  shards: 4
`)

	t.Setenv("ARBITER_TAU_E", "1.5")
	t.Setenv("ARBITER_TAU_STALL", "5")
	t.Setenv("ARBITER_FORCED_RULE_HITS", "2")
	t.Setenv("ARBITER_SUPERVISOR_SHARDS", "32")
	t.Setenv("ARBITER_ODDITY_ENABLED", "true")
	t.Setenv("ARBITER_STORE_BACKEND", "sqlite")
	t.Setenv("ARBITER_STORE_SQLITE_BUSY_TIMEOUT", "250ms")
	t.Setenv("ARBITER_STORE_PRUNE_SCHEDULE", "")
	t.Setenv("ARBITER_TELEMETRY_LOGGING_LEVEL", "warn")
	t.Setenv("ARBITER_TELEMETRY_TRACING_SAMPLE_RATIO", "0.5")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Arbiter.TauE != 1.5 {
		t.Errorf("expected tau_e 1.5, got %v", cfg.Arbiter.TauE)
	}
	if cfg.Arbiter.TauStall != 5 {
		t.Errorf("expected tau_stall 5, got %d", cfg.Arbiter.TauStall)
	}
	if cfg.Arbiter.ForcedRuleHits == nil || *cfg.Arbiter.ForcedRuleHits != 2 {
		t.Errorf("expected forced rule hits 2, got %v", cfg.Arbiter.ForcedRuleHits)
	}
	if cfg.Supervisor.Shards != 32 {
		t.Errorf("expected 32 shards, got %d", cfg.Supervisor.Shards)
	}
	if !cfg.Oddity.Enabled {
		t.Error("expected oddity enabled")
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %q", cfg.Store.Backend)
	}
	if cfg.Store.SQLite.BusyTimeout != 250*time.Millisecond {
		t.Errorf("expected busy timeout 250ms, got %v", cfg.Store.SQLite.BusyTimeout)
	}
	if cfg.Store.PruneSchedule != "" {
		t.Errorf("expected prune schedule cleared, got %q", cfg.Store.PruneSchedule)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected level warn, got %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.5 {
		t.Errorf("expected sample ratio 0.5, got %v", cfg.Telemetry.Tracing.SampleRatio)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidEnvValues(t *testing.T) {
	path := writeConfig(t, "supervisor:\n  shards: 4\n")

	t.Setenv("ARBITER_SUPERVISOR_SHARDS", "many")
	t.Setenv("ARBITER_TAU_E", "hot")
	t.Setenv("ARBITER_ODDITY_ENABLED", "maybe")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Supervisor.Shards != 4 {
		t.Errorf("invalid env value replaced shards: got %d", cfg.Supervisor.Shards)
	}
	if cfg.Arbiter.TauE != arbiter.DefaultConfig().TauE {
		t.Errorf("invalid env value replaced tau_e: got %v", cfg.Arbiter.TauE)
	}
	if cfg.Oddity.Enabled {
		t.Error("invalid env value enabled oddity")
	}
}

func TestLoadConfigWithEnvOverrides_ValidationAfterOverride(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("ARBITER_STORE_BACKEND", "s3")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Fatal("expected validation error after override")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ARBITER_SUPERVISOR_BATCH_SIZE", "9")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Supervisor.BatchSize != 9 {
		t.Errorf("expected batch size 9, got %d", cfg.Supervisor.BatchSize)
	}
}

func BenchmarkLoadConfig(b *testing.B) {
	path := writeConfig(b, `
arbiter:
  tau_e: 2.5
supervisor:
  shards: 32
  overrides:
    a: {tau_e: 1.0}
    b: {tau_s: 0.5}
store:
  backend: "sqlite"
`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := LoadConfig(path); err != nil {
			b.Fatal(err)
		}
	}
}
