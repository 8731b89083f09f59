// Package prediction implements the two closed-form flood risk models: a
// hand-tuned logistic scorer (presented to users as "ANN") and a Gumbel
// Type-I extreme value probability.
//
// Both scorers are pure functions. They never return errors: a failed
// computation produces an Assessment with Status ERROR and zero risk.
package prediction

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Status is the risk classification of an assessment
type Status string

const (
	StatusHigh   Status = "HIGH"
	StatusMedium Status = "MEDIUM"
	StatusLow    Status = "LOW"
	StatusError  Status = "ERROR"
)

// Method names the model that produced an assessment
type Method string

const (
	MethodANN    Method = "ann"
	MethodGumbel Method = "gumbel"
)

// Assessment is the result of one scoring call
type Assessment struct {
	Method    Method
	RiskLevel float64
	Status    Status
	Message   string

	ANN    *ANNDetails    // Set for MethodANN
	Gumbel *GumbelDetails // Set for MethodGumbel
}

// ANNDetails carries the constants and inputs used by the logistic scorer
type ANNDetails struct {
	Weights              [4]float64
	NormalizationFactors [4]float64
	Inputs               Inputs
	NormalizedFeatures   [4]float64
	TemperatureRange     *TemperatureRange
}

// Inputs are the four weather features fed to the logistic scorer
type Inputs struct {
	Rainfall    float64 // mm
	WaterLevel  float64 // mdpl
	Humidity    float64 // %
	Temperature float64 // °C
}

// TemperatureRange records the min/max pair averaged into one temperature
type TemperatureRange struct {
	Min     float64
	Max     float64
	Average float64
}

// GumbelDetails carries the distribution parameters and raw probability
type GumbelDetails struct {
	Probability  float64
	Location     float64
	Scale        float64
	ReturnPeriod int
}

func errorAssessment(method Method, err error) Assessment {
	return Assessment{
		Method:    method,
		RiskLevel: 0,
		Status:    StatusError,
		Message:   fmt.Sprintf("%s prediction error: %v", method, err),
	}
}

func checkFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s is not a finite number", name)
	}
	return nil
}

// round rounds half away from zero to the given number of decimal places.
func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
