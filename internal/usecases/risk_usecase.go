package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/abelzeko/flood-watch/internal/entities"
	"github.com/abelzeko/flood-watch/internal/integration"
	"github.com/abelzeko/flood-watch/internal/observability"
	"github.com/abelzeko/flood-watch/internal/prediction"
	"github.com/abelzeko/flood-watch/internal/repository"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// OverallNoData is the overall status when there are no predictions.
const OverallNoData = "NO DATA"

// StationFeed supplies gauge readings. The bool result is true when the
// readings are built-in fallback values rather than live data.
type StationFeed interface {
	FetchReadings(ctx context.Context) ([]entities.StationReading, bool)
}

// RiskUseCase scores manual what-if input and the station feed
type RiskUseCase struct {
	stations    repository.StationRepository
	feed        StationFeed
	humidity    float64
	temperature float64
	clock       clockwork.Clock
	metrics     *observability.Metrics
	logger      logrus.FieldLogger
}

// NewRiskUseCase creates a new risk use case. humidity and temperature are
// used for feed readings, which carry neither.
func NewRiskUseCase(
	stations repository.StationRepository,
	feed StationFeed,
	humidity, temperature float64,
	clock clockwork.Clock,
	metrics *observability.Metrics,
	logger logrus.FieldLogger,
) *RiskUseCase {
	return &RiskUseCase{
		stations:    stations,
		feed:        feed,
		humidity:    humidity,
		temperature: temperature,
		clock:       clock,
		metrics:     metrics,
		logger:      logger,
	}
}

// PredictManual scores user supplied conditions with the logistic model
func (uc *RiskUseCase) PredictManual(rainfall, waterLevel, humidity, temperature float64) prediction.Assessment {
	return uc.record(prediction.PredictANN(rainfall, waterLevel, humidity, temperature))
}

// PredictManualRange scores user supplied conditions with a min/max temperature pair
func (uc *RiskUseCase) PredictManualRange(rainfall, waterLevel, humidity, tempMin, tempMax float64) prediction.Assessment {
	return uc.record(prediction.PredictANNWithTempRange(rainfall, waterLevel, humidity, tempMin, tempMax))
}

// PredictGumbel scores rainfall with the Gumbel model
func (uc *RiskUseCase) PredictGumbel(rainfall float64, returnPeriod int) prediction.Assessment {
	return uc.record(prediction.PredictGumbel(rainfall, returnPeriod))
}

func (uc *RiskUseCase) record(a prediction.Assessment) prediction.Assessment {
	uc.metrics.Assessments.WithLabelValues(string(a.Method), string(a.Status)).Inc()
	uc.logger.WithFields(logrus.Fields{
		"method": a.Method,
		"risk":   a.RiskLevel,
		"status": a.Status,
	}).Debug("Risk assessed")
	return a
}

// ScoreReading applies both models to one gauge reading
func (uc *RiskUseCase) ScoreReading(r entities.StationReading, fetchedAt time.Time) entities.StationPrediction {
	ann := uc.record(prediction.PredictANN(r.Rainfall, r.WaterLevel, uc.humidity, uc.temperature))
	gumbel := uc.record(prediction.PredictGumbel(r.Rainfall, prediction.DefaultReturnPeriod))

	return entities.StationPrediction{
		StationReading: r,
		ANNRisk:        ann.RiskLevel,
		ANNStatus:      string(ann.Status),
		ANNMessage:     ann.Message,
		GumbelRisk:     gumbel.RiskLevel,
		GumbelStatus:   string(gumbel.Status),
		GumbelMessage:  gumbel.Message,
		WaterStatus:    string(prediction.ClassifyWaterLevel(r.WaterLevel)),
		FetchedAt:      fetchedAt,
	}
}

func (uc *RiskUseCase) scoreAll(readings []entities.StationReading) []entities.StationPrediction {
	fetchedAt := uc.clock.Now().UTC().Truncate(time.Second)
	predictions := make([]entities.StationPrediction, 0, len(readings))
	for _, r := range readings {
		predictions = append(predictions, uc.ScoreReading(r, fetchedAt))
	}
	return predictions
}

// RefreshStationData fetches the feed, scores every reading and stores the batch.
// The bool result reports whether fallback readings were used.
func (uc *RiskUseCase) RefreshStationData(ctx context.Context) ([]entities.StationPrediction, bool, error) {
	uc.logger.Info("Starting station data refresh")
	start := uc.clock.Now()
	defer func() {
		uc.metrics.FeedRefreshDuration.Observe(uc.clock.Since(start).Seconds())
	}()

	readings, fallback := uc.feed.FetchReadings(ctx)
	predictions := uc.scoreAll(readings)

	if err := uc.stations.SavePredictions(ctx, predictions); err != nil {
		uc.metrics.FeedRefreshes.WithLabelValues("error").Inc()
		return nil, fallback, fmt.Errorf("failed to save station predictions: %w", err)
	}

	outcome := "live"
	if fallback {
		outcome = "fallback"
	}
	uc.metrics.FeedRefreshes.WithLabelValues(outcome).Inc()
	uc.logger.WithFields(logrus.Fields{
		"stations": len(predictions),
		"fallback": fallback,
	}).Info("Station data refreshed")
	return predictions, fallback, nil
}

// GetLatestPredictions returns the latest stored batch. When nothing is stored
// or the store fails, the built-in readings are scored instead and the bool
// result is true.
func (uc *RiskUseCase) GetLatestPredictions(ctx context.Context) ([]entities.StationPrediction, bool) {
	predictions, err := uc.stations.GetLatestPredictions(ctx)
	if err != nil {
		uc.logger.WithError(err).Error("Failed to load station predictions, scoring fallback readings")
		return uc.scoreAll(integration.FallbackReadings()), true
	}
	if len(predictions) == 0 {
		uc.logger.Info("No station predictions stored yet, scoring fallback readings")
		return uc.scoreAll(integration.FallbackReadings()), true
	}
	return predictions, false
}

// OverallRiskStatus summarizes a batch: any HIGH station makes it HIGH,
// MEDIUM needs more than half of the stations.
func OverallRiskStatus(predictions []entities.StationPrediction) string {
	if len(predictions) == 0 {
		return OverallNoData
	}

	high, medium := 0, 0
	for _, p := range predictions {
		switch prediction.Status(p.ANNStatus) {
		case prediction.StatusHigh:
			high++
		case prediction.StatusMedium:
			medium++
		}
	}

	switch {
	case high > 0:
		return string(prediction.StatusHigh)
	case float64(medium) > float64(len(predictions))*0.5:
		return string(prediction.StatusMedium)
	default:
		return string(prediction.StatusLow)
	}
}
