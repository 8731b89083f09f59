package entities

import "time"

// StationReading is one gauge station observation from the basin feed
type StationReading struct {
	Location   string
	WaterLevel float64 // Water surface elevation in mdpl
	Rainfall   float64 // Rainfall in mm
	LastUpdate string  // HH:MM as published by the source
	Source     string
}

// StationPrediction is a station reading scored by both risk models
type StationPrediction struct {
	ID int64
	StationReading

	ANNRisk       float64
	ANNStatus     string
	ANNMessage    string
	GumbelRisk    float64
	GumbelStatus  string
	GumbelMessage string
	WaterStatus   string

	FetchedAt time.Time
}
