package arbiter

import "math"

// SourceProfile is a trust band bounding how much weight one evidence
// source may contribute.
type SourceProfile struct {
	// BaseWeight is substituted when evidence requests a weight of exactly 0.
	BaseWeight float32 `yaml:"base_weight" json:"base_weight"`

	// MinWeight is the lower bound of the band.
	MinWeight float32 `yaml:"min_weight" json:"min_weight"`

	// MaxWeight is the upper bound of the band.
	MaxWeight float32 `yaml:"max_weight" json:"max_weight"`
}

// SourceProfiles maps source_id to its profile.
type SourceProfiles map[string]SourceProfile

// NewSourceProfile creates a profile with the given band.
func NewSourceProfile(base, min, max float32) SourceProfile {
	return SourceProfile{BaseWeight: base, MinWeight: min, MaxWeight: max}
}

// FallbackSourceProfile is applied to evidence from sources with no
// configured profile: permissive but low trust.
func FallbackSourceProfile() SourceProfile {
	return NewSourceProfile(0.2, 0.1, 0.4)
}

// Clamp resolves a requested weight into the profile band. A request of
// exactly 0 (or NaN) resolves to BaseWeight before clamping.
func (p SourceProfile) Clamp(requested float32) float32 {
	w := requested
	if w == 0 || math.IsNaN(float64(w)) {
		w = p.BaseWeight
	}
	if w < p.MinWeight {
		return p.MinWeight
	}
	if w > p.MaxWeight {
		return p.MaxWeight
	}
	return w
}

// Valid reports whether the band is well formed: finite bounds with
// min <= max.
func (p SourceProfile) Valid() bool {
	return isFinite32(p.BaseWeight) && isFinite32(p.MinWeight) && isFinite32(p.MaxWeight) &&
		p.MinWeight <= p.MaxWeight
}

// Lookup returns the profile for sourceID, or the fallback profile when the
// source is unknown.
func (ps SourceProfiles) Lookup(sourceID string) SourceProfile {
	if p, ok := ps[sourceID]; ok {
		return p
	}
	return FallbackSourceProfile()
}

// ApplySourceProfiles rewrites the Weight of every evidence record in view
// according to its source profile. No other field is touched.
func ApplySourceProfiles(view *EvidenceView, profiles SourceProfiles) {
	if view == nil {
		return
	}
	for i := range view.Evidence {
		ev := &view.Evidence[i]
		ev.Weight = profiles.Lookup(ev.SourceID).Clamp(ev.Weight)
	}
}

// DefaultSourceProfiles returns the built-in relative trust table.
func DefaultSourceProfiles() SourceProfiles {
	return SourceProfiles{
		// Primary LLM reasoning source.
		"llm": NewSourceProfile(1.0, 0.5, 1.0),
		// Speech recognition: important but secondary.
		"stt": NewSourceProfile(0.8, 0.3, 0.9),
		// Health and vitals are noisy.
		"health":    NewSourceProfile(0.7, 0.2, 0.9),
		"meta_onnx": NewSourceProfile(0.7, 0.3, 0.9),
		"video_gen": NewSourceProfile(0.6, 0.2, 0.8),
		"audio_gen": NewSourceProfile(0.6, 0.2, 0.8),
		// Generic vendor and external classifiers.
		"vendor": NewSourceProfile(0.4, 0.1, 0.6),
	}
}
