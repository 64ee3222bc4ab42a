package boundary

import (
	"unicode/utf8"

	"nsc-hq/arbiter/pkg/arbiter"
	"nsc-hq/arbiter/pkg/supervisor"
)

// ABIVersion identifies the layout of the records in this file. Bump it
// when a record field or a registry method signature changes.
const ABIVersion uint32 = 1

// Version returns ABIVersion.
func Version() uint32 {
	return ABIVersion
}

// ConfigRecord is the flat decision config passed in by foreign callers.
type ConfigRecord struct {
	TauE        float32
	TauS        float32
	TauRep      uint32
	TauStall    uint32
	TauGate     float32
	HystDisable uint8

	// ForcedRuleHits is -1 for none.
	ForcedRuleHits int32
}

// DefaultConfigRecord returns the record for arbiter.DefaultConfig.
func DefaultConfigRecord() ConfigRecord {
	return ConfigRecordFrom(arbiter.DefaultConfig())
}

// ConfigRecordFrom flattens cfg. Forced rule hits above MaxInt32 are
// clamped.
func ConfigRecordFrom(cfg arbiter.Config) ConfigRecord {
	rec := ConfigRecord{
		TauE:           cfg.TauE,
		TauS:           cfg.TauS,
		TauRep:         cfg.TauRep,
		TauStall:       cfg.TauStall,
		TauGate:        cfg.TauGate,
		ForcedRuleHits: -1,
	}
	if cfg.HystDisable {
		rec.HystDisable = 1
	}
	if cfg.ForcedRuleHits != nil {
		n := *cfg.ForcedRuleHits
		if n > 1<<31-1 {
			n = 1<<31 - 1
		}
		rec.ForcedRuleHits = int32(n)
	}
	return rec
}

// Config converts the record. Any negative ForcedRuleHits means none.
func (c ConfigRecord) Config() arbiter.Config {
	cfg := arbiter.Config{
		TauE:        c.TauE,
		TauS:        c.TauS,
		TauRep:      c.TauRep,
		TauStall:    c.TauStall,
		TauGate:     c.TauGate,
		HystDisable: c.HystDisable != 0,
	}
	if c.ForcedRuleHits >= 0 {
		cfg = cfg.WithForcedRuleHits(uint32(c.ForcedRuleHits))
	}
	return cfg
}

// ScalarKV is one named scalar of an event.
type ScalarKV struct {
	Key []byte
	Val float32
}

// Event is a signal as raw byte strings. A nil field stands for a null
// pointer on the foreign side.
type Event struct {
	IntentID []byte
	SourceID []byte
	Origin   []byte

	// Text is optional. Nil, empty or invalid UTF-8 all mean no text.
	Text []byte

	Scalars  []ScalarKV
	RuleHits uint32
}

// toSignal converts e, reporting false when an identifying field is null
// or not valid UTF-8. Scalars with unusable keys are dropped.
func (e *Event) toSignal() (supervisor.Signal, bool) {
	intentID, ok := str(e.IntentID)
	if !ok {
		return supervisor.Signal{}, false
	}
	sourceID, ok := str(e.SourceID)
	if !ok {
		return supervisor.Signal{}, false
	}
	origin, ok := str(e.Origin)
	if !ok {
		return supervisor.Signal{}, false
	}

	sig := supervisor.NewSignal(intentID, sourceID, origin)
	sig.RuleHits = e.RuleHits

	if text, ok := str(e.Text); ok && text != "" {
		sig.Text = &text
	}

	if len(e.Scalars) > 0 {
		sig.Scalars = make(map[string]float32, len(e.Scalars))
		for _, kv := range e.Scalars {
			if key, ok := str(kv.Key); ok {
				sig.Scalars[key] = kv.Val
			}
		}
	}
	return sig, true
}

func str(b []byte) (string, bool) {
	if b == nil || !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

// ActionRecord is a flat Action. Freeze flags are 0 or 1, all 0 when the
// intent carried no text.
type ActionRecord struct {
	IntentID   string
	Escalation int32

	AvgEntropy float32
	CosineSim  float32
	GateShift  float32
	RuleHits   uint32

	FFRep3p  uint8
	FFStall  uint8
	FFAITell uint8
}

func actionRecord(a *supervisor.Action) ActionRecord {
	rec := ActionRecord{
		IntentID:   a.IntentID,
		Escalation: int32(a.Escalation),
		AvgEntropy: a.Uncertainty.AvgEntropy,
		CosineSim:  a.Uncertainty.CosineSim,
		GateShift:  a.Uncertainty.GateShift,
		RuleHits:   a.Uncertainty.RuleHits,
	}
	if ff := a.FreezeFlags; ff != nil {
		rec.FFRep3p = flag(ff.Rep3p)
		rec.FFStall = flag(ff.Stall)
		rec.FFAITell = flag(ff.AITell)
	}
	return rec
}

func flag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// RestoreResult is the outcome of a restore call.
type RestoreResult struct {
	Applied     uint32
	Overwritten uint32
	Code        Status
}
