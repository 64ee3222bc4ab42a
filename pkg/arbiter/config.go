package arbiter

// Config holds the decision thresholds. A Config is immutable for the
// duration of a decision call and may be overridden per intent.
type Config struct {
	// TauE is the entropy alarm threshold (strictly greater fires).
	TauE float32 `yaml:"tau_e" json:"tau_e"`

	// TauS is the cosine similarity alarm threshold (strictly less fires).
	TauS float32 `yaml:"tau_s" json:"tau_s"`

	// TauRep is the repetition hysteresis threshold.
	TauRep uint32 `yaml:"tau_rep" json:"tau_rep"`

	// TauStall is the stall hysteresis threshold.
	TauStall uint32 `yaml:"tau_stall" json:"tau_stall"`

	// TauGate is the gate shift alarm threshold (strictly greater fires).
	TauGate float32 `yaml:"tau_gate" json:"tau_gate"`

	// HystDisable stops freeze flags from bumping the counters and makes
	// the decision treat both counters as zero.
	HystDisable bool `yaml:"hyst_disable" json:"hyst_disable"`

	// ForcedRuleHits, when set, replaces the aggregated rule hit count.
	ForcedRuleHits *uint32 `yaml:"forced_rule_hits,omitempty" json:"forced_rule_hits,omitempty"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		TauE:     2.2,
		TauS:     0.76,
		TauRep:   1,
		TauStall: 1,
		TauGate:  2.0,
	}
}

// WithForcedRuleHits returns a copy of c with ForcedRuleHits set to n.
func (c Config) WithForcedRuleHits(n uint32) Config {
	c.ForcedRuleHits = &n
	return c
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	if c.ForcedRuleHits != nil {
		n := *c.ForcedRuleHits
		c.ForcedRuleHits = &n
	}
	return c
}

// ruleHits resolves the rule hit count used by the rules alarm.
func (c *Config) ruleHits(u Uncertainty) uint32 {
	if c.ForcedRuleHits != nil {
		return *c.ForcedRuleHits
	}
	return u.RuleHits
}
