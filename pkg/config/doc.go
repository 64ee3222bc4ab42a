// Package config provides configuration management for the arbiter.
//
// Configuration is read from a YAML file, decoded on top of Default(), and
// validated. Keys missing from the file keep their default, and explicit
// zeros (for example keep_generations: 0 or tau_rep: 0) are preserved.
//
//	cfg, err := config.LoadConfig("arbiter.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("arbiter.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention ARBITER_SECTION_FIELD
// and take precedence over the file:
//
//   - ARBITER_TAU_E overrides arbiter.tau_e
//   - ARBITER_SUPERVISOR_SHARDS overrides supervisor.shards
//   - ARBITER_STORE_SQLITE_PATH overrides store.sqlite.path
//   - ARBITER_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Values that fail to parse are ignored.
//
// # Per-Intent Overrides
//
// supervisor.overrides maps an intent id to a partial arbiter section. Each
// entry is decoded on top of the global thresholds:
//
//	arbiter:
//	  tau_e: 2.2
//	supervisor:
//	  overrides:
//	    checkout-flow:
//	      tau_e: 1.5
//
// # Reloading
//
// Watcher observes the file and delivers every valid new Config. Apply
// pushes thresholds, overrides, source profiles and oddity settings into a
// running supervisor. The shard count cannot change without a restart.
package config
