package usecases

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/abelzeko/flood-watch/internal/entities"
	"github.com/abelzeko/flood-watch/internal/observability"
	"github.com/abelzeko/flood-watch/internal/prediction"
	"github.com/abelzeko/flood-watch/internal/repository"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeed struct {
	readings []entities.StationReading
	fallback bool
}

func (f *fakeFeed) FetchReadings(context.Context) ([]entities.StationReading, bool) {
	return f.readings, f.fallback
}

type failingStations struct {
	repository.StationRepository
}

func (failingStations) SavePredictions(context.Context, []entities.StationPrediction) error {
	return errors.New("database is locked")
}

func (failingStations) GetLatestPredictions(context.Context) ([]entities.StationPrediction, error) {
	return nil, errors.New("database is locked")
}

func newStationRepo(t *testing.T) repository.StationRepository {
	t.Helper()
	db, err := repository.OpenDatabase(filepath.Join(t.TempDir(), "stations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo, err := repository.NewSQLiteStationRepository(db, nullLogger())
	require.NoError(t, err)
	return repo
}

var feedNow = time.Date(2026, 10, 18, 3, 15, 42, 500_000_000, time.UTC)

func newRiskUseCase(stations repository.StationRepository, feed StationFeed) (*RiskUseCase, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	uc := NewRiskUseCase(stations, feed, 75, 27, clockwork.NewFakeClockAt(feedNow), metrics, nullLogger())
	return uc, metrics
}

func TestRefreshStationData(t *testing.T) {
	ctx := context.Background()
	stations := newStationRepo(t)
	feed := &fakeFeed{readings: []entities.StationReading{
		{Location: "Ngadipiro (S. keduang)", WaterLevel: 143.74, Rainfall: 45.5, LastUpdate: "07:00", Source: "BBWS Bengawan Solo"},
		{Location: "Jurug", WaterLevel: 85.2, Rainfall: 120, LastUpdate: "07:00", Source: "BBWS Bengawan Solo"},
	}}
	uc, metrics := newRiskUseCase(stations, feed)

	predictions, fallback, err := uc.RefreshStationData(ctx)
	require.NoError(t, err)
	assert.False(t, fallback)
	require.Len(t, predictions, 2)

	p := predictions[0]
	assert.Equal(t, 1.0, p.ANNRisk)
	assert.Equal(t, "HIGH", p.ANNStatus)
	assert.Equal(t, 0.005, p.GumbelRisk)
	assert.Equal(t, "LOW", p.GumbelStatus)
	assert.Equal(t, "HIGH", p.WaterStatus)
	assert.True(t, p.FetchedAt.Equal(feedNow.Truncate(time.Second)))

	assert.Equal(t, "LOW", predictions[1].WaterStatus)
	assert.Equal(t, "HIGH", predictions[1].GumbelStatus)

	stored, fallback := uc.GetLatestPredictions(ctx)
	assert.False(t, fallback)
	require.Len(t, stored, 2)
	assert.Equal(t, "Ngadipiro (S. keduang)", stored[0].Location)
	assert.Equal(t, p.ANNMessage, stored[0].ANNMessage)
	assert.True(t, stored[0].FetchedAt.Equal(p.FetchedAt))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedRefreshes.WithLabelValues("live")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Assessments.WithLabelValues("ann", "HIGH")))
}

func TestRefreshStationData_FallbackAndErrors(t *testing.T) {
	ctx := context.Background()

	uc, metrics := newRiskUseCase(newStationRepo(t), &fakeFeed{readings: []entities.StationReading{
		{Location: "Colo Weir (S. bengawan solo)", WaterLevel: 108.29, Rainfall: 28.5},
	}, fallback: true})
	_, fallback, err := uc.RefreshStationData(ctx)
	require.NoError(t, err)
	assert.True(t, fallback)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedRefreshes.WithLabelValues("fallback")))

	uc, metrics = newRiskUseCase(failingStations{}, &fakeFeed{})
	_, _, err = uc.RefreshStationData(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedRefreshes.WithLabelValues("error")))
}

func TestGetLatestPredictions_Fallback(t *testing.T) {
	for name, stations := range map[string]repository.StationRepository{
		"empty store":   newStationRepo(t),
		"store failure": failingStations{},
	} {
		t.Run(name, func(t *testing.T) {
			uc, _ := newRiskUseCase(stations, &fakeFeed{})

			predictions, fallback := uc.GetLatestPredictions(context.Background())
			assert.True(t, fallback)
			require.Len(t, predictions, 3)
			assert.Equal(t, "Ngadipiro (S. keduang)", predictions[0].Location)
			assert.Equal(t, 143.74, predictions[0].WaterLevel)
			assert.Equal(t, "HIGH", predictions[0].WaterStatus)
			assert.Equal(t, "LOW", predictions[2].WaterStatus)
			assert.Equal(t, "HIGH", OverallRiskStatus(predictions))
		})
	}
}

func TestOverallRiskStatus(t *testing.T) {
	batch := func(statuses ...string) []entities.StationPrediction {
		out := make([]entities.StationPrediction, len(statuses))
		for i, s := range statuses {
			out[i].ANNStatus = s
		}
		return out
	}

	cases := []struct {
		name  string
		batch []entities.StationPrediction
		want  string
	}{
		{"no predictions", nil, OverallNoData},
		{"any high", batch("LOW", "LOW", "HIGH"), "HIGH"},
		{"medium majority", batch("MEDIUM", "MEDIUM", "LOW"), "MEDIUM"},
		{"medium exactly half", batch("MEDIUM", "LOW"), "LOW"},
		{"all low", batch("LOW", "LOW"), "LOW"},
		{"errors count as low", batch("ERROR", "ERROR"), "LOW"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, OverallRiskStatus(tc.batch))
		})
	}
}

func TestPredictManual(t *testing.T) {
	uc, metrics := newRiskUseCase(newStationRepo(t), &fakeFeed{})

	a := uc.PredictManual(250, 140, 90, 30)
	assert.Equal(t, prediction.StatusHigh, a.Status)
	assert.Equal(t, 1.0, a.RiskLevel)

	a = uc.PredictManualRange(0, 60, 0, -60, -40)
	assert.Equal(t, prediction.StatusLow, a.Status)
	require.NotNil(t, a.ANN.TemperatureRange)
	assert.Equal(t, -50.0, a.ANN.TemperatureRange.Average)

	g := uc.PredictGumbel(85, prediction.DefaultReturnPeriod)
	assert.Equal(t, prediction.MethodGumbel, g.Method)
	assert.Equal(t, prediction.StatusMedium, g.Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Assessments.WithLabelValues("ann", "HIGH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Assessments.WithLabelValues("ann", "LOW")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Assessments.WithLabelValues("gumbel", "MEDIUM")))
}
