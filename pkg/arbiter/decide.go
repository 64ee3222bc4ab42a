package arbiter

import "fmt"

// Escalation is the decision engine's output tier.
type Escalation int32

const (
	// EscalationNone leaves the intent's output as is.
	EscalationNone Escalation = 0

	// EscalationCritiquePass runs a one-shot critique over the output.
	EscalationCritiquePass Escalation = 1

	// EscalationSecondOpinion asks an independent model for review. It is
	// part of the output vocabulary but Decide never produces it.
	EscalationSecondOpinion Escalation = 2
)

// String returns the snake_case name of the tier.
func (e Escalation) String() string {
	switch e {
	case EscalationNone:
		return "none"
	case EscalationCritiquePass:
		return "critique_pass"
	case EscalationSecondOpinion:
		return "second_opinion"
	default:
		return fmt.Sprintf("escalation(%d)", int32(e))
	}
}

// ParseEscalation parses the String form of a tier.
func ParseEscalation(s string) (Escalation, error) {
	switch s {
	case "none":
		return EscalationNone, nil
	case "critique_pass":
		return EscalationCritiquePass, nil
	case "second_opinion":
		return EscalationSecondOpinion, nil
	default:
		return EscalationNone, fmt.Errorf("unknown escalation %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e Escalation) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Escalation) UnmarshalText(b []byte) error {
	v, err := ParseEscalation(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Alarms are the four independent per-tick alarm predicates.
type Alarms struct {
	HighEntropy   bool `json:"high_entropy"`
	LowSimilarity bool `json:"low_similarity"`
	RulesTripped  bool `json:"rules_tripped"`
	GateShifted   bool `json:"gate_shifted"`
}

// Any reports whether at least one alarm fired.
func (a Alarms) Any() bool {
	return a.HighEntropy || a.LowSimilarity || a.RulesTripped || a.GateShifted
}

// EvaluateAlarms computes the alarms for u under cfg. Non-finite metrics
// never fire an alarm on their own.
func EvaluateAlarms(u Uncertainty, cfg *Config) Alarms {
	return Alarms{
		HighEntropy:   isFinite32(u.AvgEntropy) && u.AvgEntropy > cfg.TauE,
		LowSimilarity: isFinite32(u.CosineSim) && u.CosineSim < cfg.TauS,
		RulesTripped:  cfg.ruleHits(u) > 0,
		GateShifted:   isFinite32(u.GateShift) && u.GateShift > cfg.TauGate,
	}
}

// Decide maps an aggregated uncertainty and the intent's hysteresis state
// to an escalation tier.
//
// A tick with no alarm resets state and returns EscalationNone, however
// high the counters were. Otherwise the counters are read (as zero when
// hysteresis is disabled) and CritiquePass is returned when any alarm fired
// or either counter reached its threshold.
func Decide(u Uncertainty, cfg *Config, state *HysteresisState) Escalation {
	alarms := EvaluateAlarms(u, cfg)
	if !alarms.Any() {
		state.Reset()
		return EscalationNone
	}

	var repCount, stallCount uint32
	if !cfg.HystDisable {
		repCount = state.HystRep
		stallCount = state.HystStall
	}

	// The alarm terms already hold on this path; the counter terms are kept
	// so threshold-only configurations stay expressible.
	if alarms.Any() || repCount >= cfg.TauRep || stallCount >= cfg.TauStall {
		return EscalationCritiquePass
	}
	return EscalationNone
}

// Outcome is the result of one tick.
type Outcome struct {
	Escalation  Escalation  `json:"escalation"`
	Uncertainty Uncertainty `json:"uncertainty"`
}

// Evaluate runs one tick: bump the counters from flags (when present),
// aggregate the view, then decide. Bumping first lets a freshly bumped
// counter satisfy its threshold within the same tick.
func Evaluate(view *EvidenceView, flags *FreezeFlags, cfg *Config, state *HysteresisState) Outcome {
	if flags != nil {
		state.Bump(*flags, cfg.HystDisable)
	}
	u := view.Aggregate()
	return Outcome{
		Escalation:  Decide(u, cfg, state),
		Uncertainty: u,
	}
}

// Tick is Evaluate without the uncertainty telemetry.
func Tick(view *EvidenceView, flags *FreezeFlags, cfg *Config, state *HysteresisState) Escalation {
	return Evaluate(view, flags, cfg, state).Escalation
}

// DecideFromView decides statelessly with default thresholds and a fresh
// state. Use Tick with a persistent state for hysteresis across ticks.
func DecideFromView(view *EvidenceView) Escalation {
	cfg := DefaultConfig()
	var state HysteresisState
	return Decide(view.Aggregate(), &cfg, &state)
}
