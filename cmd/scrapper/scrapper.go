package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/abelzeko/flood-watch/internal/api"
	"github.com/abelzeko/flood-watch/internal/config"
	"github.com/abelzeko/flood-watch/internal/integration"
	"github.com/abelzeko/flood-watch/internal/observability"
	"github.com/abelzeko/flood-watch/internal/repository"
	"github.com/abelzeko/flood-watch/internal/usecases"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := config.NewLogger(cfg)
	logger.Info("Starting Flood Watch station scraper...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.OpenDatabase(cfg.DBPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	stationRepo, err := repository.NewSQLiteStationRepository(db, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize station repository")
	}

	scraper := integration.NewBBWSScraper(cfg.FeedBaseURL, cfg.FeedTimeout, logger)
	risk := usecases.NewRiskUseCase(stationRepo, scraper, cfg.FeedHumidity, cfg.FeedTemperature,
		clockwork.NewRealClock(), observability.NewMetrics(), logger)

	refresh := func() {
		if _, _, err := risk.RefreshStationData(ctx); err != nil {
			logger.WithError(err).Error("Station data refresh failed")
		}
	}

	// Run immediately on startup
	refresh()

	c := cron.New()
	if _, err := c.AddFunc(cfg.RefreshSchedule, refresh); err != nil {
		logger.WithError(err).WithField("schedule", cfg.RefreshSchedule).Fatal("Failed to set up cron job")
	}
	c.Start()
	logger.WithField("schedule", cfg.RefreshSchedule).Info("Station refresh scheduled")

	ops := api.NewOpsServer(cfg.HTTPAddr, stationRepo, logger)
	go func() {
		if err := ops.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Ops HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down...")
	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Ops HTTP server shutdown failed")
	}
	logger.Info("Station scraper stopped")
}
