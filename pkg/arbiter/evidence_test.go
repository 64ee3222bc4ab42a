package arbiter

import (
	"math"
	"math/rand/v2"
	"testing"
)

func approxEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-6
}

func TestEvidenceView_WeightedAggregation(t *testing.T) {
	view := NewEvidenceView("intent-1")
	view.Push(Evidence{
		SourceID:   "llm",
		IntentID:   "intent-1",
		Origin:     "decoder",
		GateShift:  1.0,
		AvgEntropy: 1.0,
		CosineSim:  1.0,
		RuleHits:   0,
		Weight:     1.0,
	})
	view.Push(Evidence{
		SourceID:   "stt",
		IntentID:   "intent-1",
		Origin:     "prosody",
		GateShift:  3.0,
		AvgEntropy: 3.0,
		CosineSim:  0.0,
		RuleHits:   2,
		Weight:     1.0,
	})

	u := view.Aggregate()

	if !approxEqual(u.AvgEntropy, 2.0) {
		t.Errorf("AvgEntropy = %v, want 2.0", u.AvgEntropy)
	}
	if !approxEqual(u.CosineSim, 0.5) {
		t.Errorf("CosineSim = %v, want 0.5", u.CosineSim)
	}
	if !approxEqual(u.GateShift, 2.0) {
		t.Errorf("GateShift = %v, want 2.0", u.GateShift)
	}
	if u.RuleHits != 1 {
		t.Errorf("RuleHits = %d, want 1", u.RuleHits)
	}
}

func TestEvidenceView_AggregateEmpty(t *testing.T) {
	want := Uncertainty{AvgEntropy: 0, CosineSim: 1.0, RuleHits: 0, GateShift: 0}

	if got := NewEvidenceView("empty").Aggregate(); got != want {
		t.Errorf("Aggregate() = %+v, want %+v", got, want)
	}

	var nilView *EvidenceView
	if got := nilView.Aggregate(); got != want {
		t.Errorf("nil view Aggregate() = %+v, want %+v", got, want)
	}
}

func TestEvidenceView_AggregateZeroEffectiveWeights(t *testing.T) {
	tests := []struct {
		name   string
		weight float32
	}{
		{name: "zero", weight: 0},
		{name: "negative", weight: -2.5},
		{name: "nan", weight: float32(math.NaN())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := NewEvidenceView("i")
			view.Push(Evidence{AvgEntropy: 9, CosineSim: 0.1, GateShift: 4, RuleHits: 3, Weight: tt.weight})

			got := view.Aggregate()
			if got != (Uncertainty{}) {
				t.Errorf("Aggregate() = %+v, want zero value", got)
			}
		})
	}
}

func TestEvidenceView_SkipsZeroWeightFromDenominator(t *testing.T) {
	view := NewEvidenceView("i")
	view.Push(Evidence{AvgEntropy: 4, CosineSim: 0.8, Weight: 2})
	view.Push(Evidence{AvgEntropy: 100, CosineSim: -1, Weight: -1})
	view.Push(Evidence{AvgEntropy: 100, CosineSim: -1, Weight: 0})

	u := view.Aggregate()
	if !approxEqual(u.AvgEntropy, 4) {
		t.Errorf("AvgEntropy = %v, want 4", u.AvgEntropy)
	}
	if !approxEqual(u.CosineSim, 0.8) {
		t.Errorf("CosineSim = %v, want 0.8", u.CosineSim)
	}
}

func TestEvidenceView_RuleHitsRounding(t *testing.T) {
	tests := []struct {
		name  string
		hits  []uint32
		wts   []float32
		wantR uint32
	}{
		{name: "half rounds away from zero", hits: []uint32{1, 2}, wts: []float32{1, 1}, wantR: 2},
		{name: "below half rounds down", hits: []uint32{0, 1}, wts: []float32{3, 1}, wantR: 0},
		{name: "above half rounds up", hits: []uint32{0, 1}, wts: []float32{1, 3}, wantR: 1},
		{name: "single record", hits: []uint32{7}, wts: []float32{0.3}, wantR: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := NewEvidenceView("i")
			for i := range tt.hits {
				view.Push(Evidence{RuleHits: tt.hits[i], Weight: tt.wts[i]})
			}
			if got := view.Aggregate().RuleHits; got != tt.wantR {
				t.Errorf("RuleHits = %d, want %d", got, tt.wantR)
			}
		})
	}
}

func TestApplySourceProfiles_KnownAndUnknown(t *testing.T) {
	profiles := DefaultSourceProfiles()

	view := NewEvidenceView("i")
	view.Push(Evidence{SourceID: "llm", Weight: 0, AvgEntropy: 1.5, Origin: "decoder"})
	view.Push(Evidence{SourceID: "llm", Weight: 0.2})
	view.Push(Evidence{SourceID: "mystery", Weight: 0})
	view.Push(Evidence{SourceID: "mystery", Weight: 5})
	view.Push(Evidence{SourceID: "mystery", Weight: 0.05})
	view.Push(Evidence{SourceID: "vendor", Weight: 0.5})

	ApplySourceProfiles(view, profiles)

	want := []float32{1.0, 0.5, 0.2, 0.4, 0.1, 0.5}
	for i, w := range want {
		if got := view.Evidence[i].Weight; !approxEqual(got, w) {
			t.Errorf("Evidence[%d].Weight = %v, want %v", i, got, w)
		}
	}

	first := view.Evidence[0]
	if first.AvgEntropy != 1.5 || first.Origin != "decoder" || first.SourceID != "llm" {
		t.Errorf("non-weight fields changed: %+v", first)
	}
}

func TestSourceProfile_ClampBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	profiles := DefaultSourceProfiles()
	profiles["fallback-check"] = FallbackSourceProfile()

	for id, p := range profiles {
		for i := 0; i < 500; i++ {
			requested := float32(rng.NormFloat64() * 3)
			if i%10 == 0 {
				requested = 0
			}
			got := p.Clamp(requested)
			if got < p.MinWeight || got > p.MaxWeight {
				t.Fatalf("%s: Clamp(%v) = %v, outside [%v, %v]", id, requested, got, p.MinWeight, p.MaxWeight)
			}
			if requested == 0 {
				want := p.BaseWeight
				if want < p.MinWeight {
					want = p.MinWeight
				}
				if want > p.MaxWeight {
					want = p.MaxWeight
				}
				if got != want {
					t.Fatalf("%s: Clamp(0) = %v, want base-derived %v", id, got, want)
				}
			}
		}
	}
}

func TestSourceProfile_ClampNaN(t *testing.T) {
	p := NewSourceProfile(0.7, 0.2, 0.9)
	if got := p.Clamp(float32(math.NaN())); got != 0.7 {
		t.Errorf("Clamp(NaN) = %v, want base weight 0.7", got)
	}
}

func TestSourceProfile_Valid(t *testing.T) {
	if !NewSourceProfile(0.5, 0.1, 0.9).Valid() {
		t.Error("expected well-formed profile to be valid")
	}
	if NewSourceProfile(0.5, 0.9, 0.1).Valid() {
		t.Error("expected inverted band to be invalid")
	}
	if NewSourceProfile(float32(math.Inf(1)), 0.1, 0.9).Valid() {
		t.Error("expected infinite base weight to be invalid")
	}
}
