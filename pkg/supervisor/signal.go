package supervisor

// Signal is a raw event from the outside world: a decoder step, an STT
// segment, a classifier verdict. The supervisor never interprets these
// fields itself; a Builder turns them into evidence.
type Signal struct {
	// IntentID is the supervised entity key.
	IntentID string `json:"intent_id"`

	// SourceID is the originating source key (probe, feed, model).
	SourceID string `json:"source_id"`

	// Origin is a subsystem tag ("decoder", "kafka", "imu", ...).
	Origin string `json:"origin"`

	// Text is an optional payload. When present, freeze flags are computed
	// from it and OR-combined per intent across the batch.
	Text *string `json:"text,omitempty"`

	// Scalars are raw, possibly unnormalized, domain values. Common keys are
	// "entropy", "cosine", "gate_shift" and "weight".
	Scalars map[string]float32 `json:"scalars,omitempty"`

	// RuleHits counts guardrail trips reported by the domain.
	RuleHits uint32 `json:"rule_hits,omitempty"`
}

// NewSignal creates a signal with no scalars and no text.
func NewSignal(intentID, sourceID, origin string) Signal {
	return Signal{
		IntentID: intentID,
		SourceID: sourceID,
		Origin:   origin,
	}
}

// WithScalar returns a copy of s with key set to value.
func (s Signal) WithScalar(key string, value float32) Signal {
	scalars := make(map[string]float32, len(s.Scalars)+1)
	for k, v := range s.Scalars {
		scalars[k] = v
	}
	scalars[key] = value
	s.Scalars = scalars
	return s
}

// WithText returns a copy of s carrying text.
func (s Signal) WithText(text string) Signal {
	s.Text = &text
	return s
}

// WithRuleHits returns a copy of s with RuleHits set.
func (s Signal) WithRuleHits(hits uint32) Signal {
	s.RuleHits = hits
	return s
}

// HasText reports whether the signal carries a text payload.
func (s Signal) HasText() bool {
	return s.Text != nil
}
