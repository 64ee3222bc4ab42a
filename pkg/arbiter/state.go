package arbiter

import "math"

// HysteresisState is the only state persisted per intent: counters of
// consecutive anomalous ticks.
type HysteresisState struct {
	HystRep   uint32 `json:"hyst_rep"`
	HystStall uint32 `json:"hyst_stall"`
}

// Bump increments HystRep when Rep3p is set and HystStall when Stall is set.
// Counters saturate at the uint32 range. It is a no-op when disabled.
func (s *HysteresisState) Bump(ff FreezeFlags, disabled bool) {
	if disabled {
		return
	}
	if ff.Rep3p && s.HystRep < math.MaxUint32 {
		s.HystRep++
	}
	if ff.Stall && s.HystStall < math.MaxUint32 {
		s.HystStall++
	}
}

// Reset clears both counters.
func (s *HysteresisState) Reset() {
	s.HystRep = 0
	s.HystStall = 0
}

// IsZero reports whether both counters are zero.
func (s HysteresisState) IsZero() bool {
	return s.HystRep == 0 && s.HystStall == 0
}
