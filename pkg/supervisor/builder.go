package supervisor

import (
	"math"

	"nsc-hq/arbiter/pkg/arbiter"
)

// Builder converts one signal into zero or more evidence records.
//
// Implementations must be pure per signal: Ingest may be called
// concurrently from several goroutines with the same Builder.
type Builder interface {
	Build(sig Signal) []arbiter.Evidence
}

// BuilderFunc adapts a function to the Builder interface.
type BuilderFunc func(sig Signal) []arbiter.Evidence

// Build calls f(sig).
func (f BuilderFunc) Build(sig Signal) []arbiter.Evidence {
	return f(sig)
}

// Normalizer clamps raw scalars into comparable ranges. It imposes no
// policy beyond that.
type Normalizer struct {
	// EntropyMax truncates entropy above this value. Default: 10
	EntropyMax float32 `yaml:"entropy_max" json:"entropy_max"`

	// GateShiftMax truncates gate shift above this value. Default: 10
	GateShiftMax float32 `yaml:"gate_shift_max" json:"gate_shift_max"`

	// ClampCosine clamps cosine similarity into [-1, 1]. Default: true
	ClampCosine bool `yaml:"clamp_cosine" json:"clamp_cosine"`
}

// DefaultNormalizer returns the stock normalizer.
func DefaultNormalizer() Normalizer {
	return Normalizer{
		EntropyMax:   10.0,
		GateShiftMax: 10.0,
		ClampCosine:  true,
	}
}

// Normalize clamps the standard scalars. Entropy and gate shift land in
// [0, max] with non-finite values mapped to 0. Cosine is clamped to [-1, 1]
// when enabled. A non-finite or non-positive weight becomes 1.
func (n Normalizer) Normalize(entropy, cosine, gateShift, weight float32) (float32, float32, float32, float32) {
	entropy = clampRange(entropy, n.EntropyMax)
	gateShift = clampRange(gateShift, n.GateShiftMax)
	if n.ClampCosine {
		cosine = clampCosine(cosine)
	}
	if !finite(weight) || weight <= 0 {
		weight = 1.0
	}
	return entropy, cosine, gateShift, weight
}

func clampRange(x, max float32) float32 {
	switch {
	case !finite(x):
		return 0
	case x < 0:
		return 0
	case x > max:
		return max
	default:
		return x
	}
}

func clampCosine(x float32) float32 {
	switch {
	case !finite(x):
		return 0
	case x < -1:
		return -1
	case x > 1:
		return 1
	default:
		return x
	}
}

func finite(x float32) bool {
	f := float64(x)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ScalarKeys names the scalar keys BasicBuilder reads.
type ScalarKeys struct {
	Entropy   string `yaml:"entropy" json:"entropy"`
	Cosine    string `yaml:"cosine" json:"cosine"`
	GateShift string `yaml:"gate_shift" json:"gate_shift"`
	Weight    string `yaml:"weight" json:"weight"`
}

// DefaultScalarKeys returns "entropy", "cosine", "gate_shift" and "weight".
func DefaultScalarKeys() ScalarKeys {
	return ScalarKeys{
		Entropy:   "entropy",
		Cosine:    "cosine",
		GateShift: "gate_shift",
		Weight:    "weight",
	}
}

// BasicBuilder emits exactly one evidence record per signal from its
// scalars. Missing scalars default to 0, except weight which defaults to 1.
type BasicBuilder struct {
	Normalizer Normalizer
	Keys       ScalarKeys
}

// NewBasicBuilder returns a BasicBuilder with default normalizer and keys.
func NewBasicBuilder() *BasicBuilder {
	return &BasicBuilder{
		Normalizer: DefaultNormalizer(),
		Keys:       DefaultScalarKeys(),
	}
}

// Build implements Builder.
func (b *BasicBuilder) Build(sig Signal) []arbiter.Evidence {
	entropy := scalarOr(sig.Scalars, b.Keys.Entropy, 0)
	cosine := scalarOr(sig.Scalars, b.Keys.Cosine, 0)
	gateShift := scalarOr(sig.Scalars, b.Keys.GateShift, 0)
	weight := scalarOr(sig.Scalars, b.Keys.Weight, 1)

	entropy, cosine, gateShift, weight = b.Normalizer.Normalize(entropy, cosine, gateShift, weight)

	return []arbiter.Evidence{{
		SourceID:   sig.SourceID,
		IntentID:   sig.IntentID,
		Origin:     sig.Origin,
		GateShift:  gateShift,
		AvgEntropy: entropy,
		CosineSim:  cosine,
		RuleHits:   sig.RuleHits,
		Weight:     weight,
	}}
}

func scalarOr(m map[string]float32, key string, def float32) float32 {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

// BuildBatch runs builder over every signal and concatenates the results in
// input order.
func BuildBatch(builder Builder, signals []Signal) []arbiter.Evidence {
	out := make([]arbiter.Evidence, 0, len(signals))
	for i := range signals {
		out = append(out, builder.Build(signals[i])...)
	}
	return out
}
