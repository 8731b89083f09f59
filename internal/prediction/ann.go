package prediction

import (
	"fmt"
	"math"
)

// Fixed model constants, in feature order rainfall, water level, humidity, temperature.
var (
	annWeights              = [4]float64{0.50, 0.25, 0.15, 0.10}
	annNormalizationFactors = [4]float64{300.0, 150.0, 100.0, 35.0}
)

const (
	annSteepness = 6.0
	annBaseline  = 0.1

	ANNHighThreshold   = 0.8
	ANNMediumThreshold = 0.5
)

const (
	annHighMessage   = "Alert! Critical conditions - high flood potential"
	annMediumMessage = "Standby! Keep monitoring the situation"
	annLowMessage    = "Safe, stay alert"
)

// PredictANN scores flood risk from rainfall (mm), water level (mdpl),
// humidity (%) and temperature (°C).
func PredictANN(rainfall, waterLevel, humidity, temperature float64) Assessment {
	in := Inputs{
		Rainfall:    rainfall,
		WaterLevel:  waterLevel,
		Humidity:    humidity,
		Temperature: temperature,
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"rainfall", rainfall},
		{"water level", waterLevel},
		{"humidity", humidity},
		{"temperature", temperature},
	} {
		if err := checkFinite(f.name, f.v); err != nil {
			return errorAssessment(MethodANN, err)
		}
	}

	features := [4]float64{rainfall, waterLevel, humidity, temperature}
	var normalized [4]float64
	weightedSum := 0.0
	for i, v := range features {
		normalized[i] = v / annNormalizationFactors[i]
		weightedSum += normalized[i] * annWeights[i]
	}

	risk := 1 / (1 + math.Exp(-weightedSum*annSteepness))

	switch {
	case rainfall > 200:
		risk = math.Min(1.0, risk*1.4)
	case rainfall > 100:
		risk = math.Min(1.0, risk*1.2)
	}
	switch {
	case waterLevel > 130:
		risk = math.Min(1.0, risk*1.3)
	case waterLevel > 110:
		risk = math.Min(1.0, risk*1.1)
	}

	risk = math.Max(annBaseline, risk)
	if err := checkFinite("risk level", risk); err != nil {
		return errorAssessment(MethodANN, err)
	}

	status, message := ClassifyANN(risk)
	return Assessment{
		Method:    MethodANN,
		RiskLevel: round(risk, 3),
		Status:    status,
		Message:   message,
		ANN: &ANNDetails{
			Weights:              annWeights,
			NormalizationFactors: annNormalizationFactors,
			Inputs:               in,
			NormalizedFeatures:   normalized,
		},
	}
}

// PredictANNWithTempRange averages a minimum and maximum temperature and
// scores with the average.
func PredictANNWithTempRange(rainfall, waterLevel, humidity, tempMin, tempMax float64) Assessment {
	avg := (tempMin + tempMax) / 2
	result := PredictANN(rainfall, waterLevel, humidity, avg)
	if result.ANN != nil {
		result.ANN.TemperatureRange = &TemperatureRange{
			Min:     tempMin,
			Max:     tempMax,
			Average: round(avg, 1),
		}
	}
	return result
}

// ClassifyANN maps a logistic risk level to its status and message.
func ClassifyANN(risk float64) (Status, string) {
	switch {
	case risk >= ANNHighThreshold:
		return StatusHigh, annHighMessage
	case risk >= ANNMediumThreshold:
		return StatusMedium, annMediumMessage
	default:
		return StatusLow, annLowMessage
	}
}

// ModelParameters describes a scorer for the "technical details" output
type ModelParameters struct {
	Name        string
	Description string
	Constants   map[string]string
}

// ANNParameters returns the fixed constants of the logistic scorer.
func ANNParameters() ModelParameters {
	return ModelParameters{
		Name:        "ANN (logistic heuristic)",
		Description: "Normalized weighted sum through a sigmoid, escalated for heavy rain and high water",
		Constants: map[string]string{
			"weights":               fmt.Sprintf("%v", annWeights),
			"normalization_factors": fmt.Sprintf("%v", annNormalizationFactors),
			"activation":            "sigmoid",
			"steepness":             fmt.Sprintf("%.0f", annSteepness),
			"baseline":              fmt.Sprintf("%.1f", annBaseline),
			"thresholds":            fmt.Sprintf("HIGH>=%.1f MEDIUM>=%.1f", ANNHighThreshold, ANNMediumThreshold),
		},
	}
}

// ClassifyWaterLevel labels a gauge elevation using the same breakpoints the
// logistic scorer escalates on.
func ClassifyWaterLevel(level float64) Status {
	switch {
	case level > 130:
		return StatusHigh
	case level > 110:
		return StatusMedium
	default:
		return StatusLow
	}
}
