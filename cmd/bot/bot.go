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
	"github.com/abelzeko/flood-watch/internal/integration/openai"
	"github.com/abelzeko/flood-watch/internal/integration/sheets"
	"github.com/abelzeko/flood-watch/internal/observability"
	"github.com/abelzeko/flood-watch/internal/repository"
	"github.com/abelzeko/flood-watch/internal/usecases"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.RequireTelegram(); err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	logger := config.NewLogger(cfg)
	logger.Info("Starting Flood Watch bot...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	db, err := repository.OpenDatabase(cfg.DBPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	reportRepo, err := repository.NewSQLiteReportRepository(db, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize report repository")
	}
	stationRepo, err := repository.NewSQLiteStationRepository(db, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize station repository")
	}
	photoRepo, err := repository.NewFilePhotoRepository(cfg.UploadDir, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize photo storage")
	}

	// Spreadsheet mirror is optional
	var mirror usecases.ReportMirror
	if cfg.SheetsEnabled {
		opts, err := sheets.CredentialOptions(cfg.SheetsCredentialsJSON, cfg.SheetsCredentialsFile)
		if err != nil {
			logger.WithError(err).Fatal("Invalid Google Sheets credentials")
		}
		m, err := sheets.NewMirror(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsWorksheet, logger, opts...)
		if err != nil {
			logger.WithError(err).Warn("Google Sheets mirror unavailable, continuing without it")
		} else {
			mirror = m
		}
	} else {
		logger.Info("Google Sheets mirror disabled")
	}

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

	scraper := integration.NewBBWSScraper(cfg.FeedBaseURL, cfg.FeedTimeout, logger)

	reports := usecases.NewReportUseCase(reportRepo, photoRepo, mirror, cfg.SheetsTimeout, clock, metrics, logger)
	risk := usecases.NewRiskUseCase(stationRepo, scraper, cfg.FeedHumidity, cfg.FeedTemperature, clock, metrics, logger)

	var assistant *usecases.AssistantUseCase
	if cfg.OpenAIAPIKey != "" {
		openAIService, err := openai.NewOpenAIService(cfg.OpenAIAPIKey, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize OpenAI service")
		}
		assistant = usecases.NewAssistantUseCase(openAIService, reports, risk, logger)
	} else {
		logger.Info("OPENAI_API_KEY not set, natural language assistant disabled")
	}

	telegramBot, err := api.NewTelegramBot(cfg.TelegramBotToken, reports, risk, assistant, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize Telegram bot")
	}

	ops := api.NewOpsServer(cfg.HTTPAddr, reportRepo, logger)
	go func() {
		if err := ops.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Ops HTTP server failed")
			stop()
		}
	}()

	telegramBot.Start(ctx)

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Ops HTTP server shutdown failed")
	}
	logger.Info("Flood Watch bot stopped")
}
