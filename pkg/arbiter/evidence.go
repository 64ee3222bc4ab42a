package arbiter

import "math"

// Evidence is a single source's measurement contributing to an intent's
// aggregated uncertainty.
type Evidence struct {
	// SourceID identifies the emitting source ("llm", "stt", "vendor", ...).
	// Source profiles are resolved by this key.
	SourceID string `json:"source_id"`

	// IntentID is the supervised entity this evidence belongs to.
	IntentID string `json:"intent_id"`

	// Origin is a free-form subsystem tag ("decoder", "prosody", ...).
	Origin string `json:"origin"`

	AvgEntropy float32 `json:"avg_entropy"`
	CosineSim  float32 `json:"cosine_sim"`
	GateShift  float32 `json:"gate_shift"`
	RuleHits   uint32  `json:"rule_hits"`

	// Weight is advisory. Source profiles may rewrite it and negative
	// weights are treated as zero during aggregation.
	Weight float32 `json:"weight"`
}

// Uncertainty is the aggregated summary the decision engine consumes.
type Uncertainty struct {
	AvgEntropy float32 `json:"avg_entropy"`
	CosineSim  float32 `json:"cosine_sim"`
	RuleHits   uint32  `json:"rule_hits"`
	GateShift  float32 `json:"gate_shift"`
}

// EmptyUncertainty is the aggregate of a view with no evidence. Cosine
// similarity is reported as 1.0 (maximally similar).
func EmptyUncertainty() Uncertainty {
	return Uncertainty{CosineSim: 1.0}
}

// EvidenceView is the ordered, append-only list of evidence for one intent.
// Views are built fresh per batch and never persisted.
type EvidenceView struct {
	IntentID string     `json:"intent_id"`
	Evidence []Evidence `json:"evidence"`
}

// NewEvidenceView creates an empty view for intentID.
func NewEvidenceView(intentID string) *EvidenceView {
	return &EvidenceView{IntentID: intentID}
}

// Push appends ev to the view.
func (v *EvidenceView) Push(ev Evidence) {
	v.Evidence = append(v.Evidence, ev)
}

// Len returns the number of evidence records in the view.
func (v *EvidenceView) Len() int {
	if v == nil {
		return 0
	}
	return len(v.Evidence)
}

// Aggregate reduces the view into a single Uncertainty.
//
// Entropy, cosine similarity and gate shift are weighted means using
// max(weight, 0). Records with zero effective weight are skipped entirely,
// including from the denominator. Rule hits are the weighted mean rounded
// half away from zero. When every record has zero effective weight the
// zero-initialized accumulators are returned unchanged.
func (v *EvidenceView) Aggregate() Uncertainty {
	if v.Len() == 0 {
		return EmptyUncertainty()
	}

	var sumEntropy, sumCos, sumRules, sumGate, sumW float32
	for i := range v.Evidence {
		ev := &v.Evidence[i]
		w := ev.Weight
		// Also rejects NaN weights.
		if !(w > 0) {
			continue
		}
		sumEntropy += ev.AvgEntropy * w
		sumCos += ev.CosineSim * w
		sumRules += float32(ev.RuleHits) * w
		sumGate += ev.GateShift * w
		sumW += w
	}

	if sumW > 0 {
		sumEntropy /= sumW
		sumCos /= sumW
		sumRules /= sumW
		sumGate /= sumW
	}

	return Uncertainty{
		AvgEntropy: sumEntropy,
		CosineSim:  sumCos,
		RuleHits:   roundHits(sumRules),
		GateShift:  sumGate,
	}
}

// roundHits rounds half away from zero and saturates into the uint32 range.
func roundHits(x float32) uint32 {
	r := math.Round(float64(x))
	switch {
	case math.IsNaN(r), r <= 0:
		return 0
	case r >= math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(r)
	}
}

func isFinite32(x float32) bool {
	f := float64(x)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
