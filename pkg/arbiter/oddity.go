package arbiter

import "math"

// sigmaFloor keeps degenerate baselines from blowing up z-scores.
const sigmaFloor float32 = 1e-3

// PersonaBaselines holds per-persona mean and sigma for the metrics the
// oddity scorer compares against. Baselines are caller supplied and never
// mutated here.
type PersonaBaselines struct {
	GateShiftMu    float32 `yaml:"gate_shift_mu" json:"gate_shift_mu"`
	GateShiftSigma float32 `yaml:"gate_shift_sigma" json:"gate_shift_sigma"`

	EntropyMu    float32 `yaml:"entropy_mu" json:"entropy_mu"`
	EntropySigma float32 `yaml:"entropy_sigma" json:"entropy_sigma"`

	// CosDistMu and CosDistSigma describe cosine distance (1 - cosine_sim).
	CosDistMu    float32 `yaml:"cos_dist_mu" json:"cos_dist_mu"`
	CosDistSigma float32 `yaml:"cos_dist_sigma" json:"cos_dist_sigma"`
}

// OddityParams controls how per-metric z-scores fold into one score.
type OddityParams struct {
	// ZThresh is the z-score at which a metric counts as surprising.
	ZThresh float32 `yaml:"z_thresh" json:"z_thresh"`

	// Alpha weights the surprising-fraction term against the magnitude term.
	// It is clamped to [0, 1] at use.
	Alpha float32 `yaml:"alpha" json:"alpha"`

	// MagScale divides the mean squared z-score inside the exponential.
	MagScale float32 `yaml:"mag_scale" json:"mag_scale"`
}

// DefaultOddityParams returns z_thresh 1.5, alpha 0.66, mag_scale 2.0.
func DefaultOddityParams() OddityParams {
	return OddityParams{
		ZThresh:  1.5,
		Alpha:    0.66,
		MagScale: 2.0,
	}
}

// ComputeOddity scores how unusual the view is relative to the persona
// baselines, in [0, 1]. An empty view scores 0.
//
// Per evidence record three z-scores are taken: gate shift (two-sided),
// entropy (one-sided, high is odd) and cosine distance (one-sided, high is
// odd). The score is
//
//	alpha*(surprising/total) + (1-alpha)*(1 - exp(-mean(z^2)/mag_scale))
//
// The result is auxiliary: the decision engine never reads it.
func ComputeOddity(view *EvidenceView, baselines PersonaBaselines, params OddityParams) float32 {
	if view.Len() == 0 {
		return 0
	}

	gateSigma := floorSigma(baselines.GateShiftSigma)
	entSigma := floorSigma(baselines.EntropySigma)
	cosSigma := floorSigma(baselines.CosDistSigma)

	var surprising, total int
	var sumZ2 float32
	for i := range view.Evidence {
		ev := &view.Evidence[i]

		zGate := (ev.GateShift - baselines.GateShiftMu) / gateSigma
		total++
		if abs32(zGate) >= params.ZThresh {
			surprising++
		}
		sumZ2 += zGate * zGate

		zEnt := (ev.AvgEntropy - baselines.EntropyMu) / entSigma
		total++
		if zEnt >= params.ZThresh {
			surprising++
		}
		sumZ2 += zEnt * zEnt

		zCos := ((1 - ev.CosineSim) - baselines.CosDistMu) / cosSigma
		total++
		if zCos >= params.ZThresh {
			surprising++
		}
		sumZ2 += zCos * zCos
	}

	fraction := clamp01(float32(surprising) / float32(total))
	meanZ2 := sumZ2 / float32(total)
	magnitude := 1 - float32(math.Exp(float64(-meanZ2/params.MagScale)))
	alpha := clamp01(params.Alpha)

	score := alpha*fraction + (1-alpha)*magnitude
	if math.IsNaN(float64(score)) {
		return 0
	}
	return clamp01(score)
}

func floorSigma(sigma float32) float32 {
	s := abs32(sigma)
	if !(s >= sigmaFloor) {
		return sigmaFloor
	}
	return s
}

func abs32(x float32) float32 {
	return float32(math.Abs(float64(x)))
}

func clamp01(x float32) float32 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
