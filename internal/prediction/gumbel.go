package prediction

import (
	"fmt"
	"math"
)

const (
	GumbelLocation = 85.0 // μ
	GumbelScale    = 22.5 // β

	// DefaultReturnPeriod is advisory metadata only.
	DefaultReturnPeriod = 10

	gumbelRiskFactor = 1.5

	GumbelHighThreshold   = 0.7
	GumbelMediumThreshold = 0.4
)

// PredictGumbel scores flood risk from rainfall alone using the Gumbel
// Type-I CDF. The return period does not affect the computation.
func PredictGumbel(rainfall float64, returnPeriod int) Assessment {
	if err := checkFinite("rainfall", rainfall); err != nil {
		return errorAssessment(MethodGumbel, err)
	}

	z := (rainfall - GumbelLocation) / GumbelScale
	probability := math.Exp(-math.Exp(-z))
	risk := math.Min(1.0, probability*gumbelRiskFactor)
	if err := checkFinite("probability", probability); err != nil {
		return errorAssessment(MethodGumbel, err)
	}

	return Assessment{
		Method:    MethodGumbel,
		RiskLevel: round(risk, 3),
		Status:    ClassifyGumbel(risk),
		Message:   fmt.Sprintf("Gumbel distribution: probability %.1f%%", probability*100),
		Gumbel: &GumbelDetails{
			Probability:  round(probability, 4),
			Location:     GumbelLocation,
			Scale:        GumbelScale,
			ReturnPeriod: returnPeriod,
		},
	}
}

// ClassifyGumbel maps a Gumbel risk level to its status. The thresholds are
// lower than the logistic scorer's.
func ClassifyGumbel(risk float64) Status {
	switch {
	case risk >= GumbelHighThreshold:
		return StatusHigh
	case risk >= GumbelMediumThreshold:
		return StatusMedium
	default:
		return StatusLow
	}
}

// GumbelParameters returns the fixed constants of the Gumbel scorer.
func GumbelParameters() ModelParameters {
	return ModelParameters{
		Name:        "Gumbel Type I (extreme value)",
		Description: "CDF of rainfall against a fixed location and scale, scaled by 1.5",
		Constants: map[string]string{
			"mu_location": fmt.Sprintf("%.1f", GumbelLocation),
			"beta_scale":  fmt.Sprintf("%.1f", GumbelScale),
			"risk_factor": fmt.Sprintf("%.1f", gumbelRiskFactor),
			"thresholds":  fmt.Sprintf("HIGH>=%.1f MEDIUM>=%.1f", GumbelHighThreshold, GumbelMediumThreshold),
		},
	}
}
