package config

import (
	"fmt"

	"nsc-hq/arbiter/pkg/supervisor"
)

// SupervisorOptions returns the supervisor options implied by cfg. extra
// options are appended after them.
func (c *Config) SupervisorOptions(extra ...supervisor.Option) []supervisor.Option {
	var opts []supervisor.Option
	if profiles := c.Supervisor.Profiles(); profiles != nil {
		opts = append(opts, supervisor.WithSourceProfiles(profiles))
	}
	if c.Oddity.Enabled {
		opts = append(opts, supervisor.WithOddity(c.Oddity.Baselines, c.Oddity.Params))
	}
	return append(opts, extra...)
}

// NewSupervisor builds a supervisor with the configured shard count,
// thresholds, profiles, oddity scoring and per-intent overrides.
func (c *Config) NewSupervisor(extra ...supervisor.Option) (*supervisor.Supervisor, error) {
	overrides, err := c.Supervisor.ResolveOverrides(c.Arbiter)
	if err != nil {
		return nil, err
	}
	sup := supervisor.New(c.Supervisor.Shards, c.Arbiter, c.SupervisorOptions(extra...)...)
	sup.ReplaceConfigOverrides(overrides)
	return sup, nil
}

// Apply pushes the reloadable settings of c into a running supervisor.
// The shard count is fixed at construction and is not changed.
func (c *Config) Apply(sup *supervisor.Supervisor) error {
	overrides, err := c.Supervisor.ResolveOverrides(c.Arbiter)
	if err != nil {
		return err
	}
	if c.Supervisor.Shards != sup.ShardCount() {
		return fmt.Errorf("shard count changed from %d to %d; restart required", sup.ShardCount(), c.Supervisor.Shards)
	}

	sup.SetConfig(c.Arbiter)
	sup.ReplaceConfigOverrides(overrides)
	sup.SetSourceProfiles(c.Supervisor.Profiles())
	if c.Oddity.Enabled {
		sup.SetOddity(c.Oddity.Baselines, c.Oddity.Params)
	} else {
		sup.ClearOddity()
	}
	return nil
}
