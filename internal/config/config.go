// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	TelegramBotToken string
	DBPath           string
	UploadDir        string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	// Google Sheets mirror configuration.
	SheetsEnabled         bool
	SheetsSpreadsheetID   string
	SheetsWorksheet       string
	SheetsCredentialsJSON string
	SheetsCredentialsFile string
	SheetsTimeout         time.Duration

	OpenAIAPIKey string

	// Station feed configuration.
	FeedBaseURL     string
	FeedTimeout     time.Duration
	FeedHumidity    float64
	FeedTemperature float64
	RefreshSchedule string
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first if present; variables
// already set in the environment take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	sheetsTimeout, err := parseDuration("SHEETS_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	feedTimeout, err := parseDuration("FEED_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	humidity, err := parseFloat("FEED_HUMIDITY", 75)
	if err != nil {
		return nil, err
	}
	temperature, err := parseFloat("FEED_TEMPERATURE", 27)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DBPath:           envOrDefault("DB_PATH", "data/flood_system.db"),
		UploadDir:        envOrDefault("UPLOAD_DIR", "uploads"),
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,

		SheetsSpreadsheetID:   os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"),
		SheetsWorksheet:       envOrDefault("GOOGLE_SHEETS_WORKSHEET", "flood_reports"),
		SheetsCredentialsJSON: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_JSON"),
		SheetsCredentialsFile: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_FILE"),
		SheetsTimeout:         sheetsTimeout,

		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),

		FeedBaseURL:     strings.TrimRight(envOrDefault("FEED_BASE_URL", "https://hidrologi.bbws-bsolo.net"), "/"),
		FeedTimeout:     feedTimeout,
		FeedHumidity:    humidity,
		FeedTemperature: temperature,
		RefreshSchedule: envOrDefault("REFRESH_SCHEDULE", "0 * * * *"),
	}

	cfg.SheetsEnabled = cfg.SheetsSpreadsheetID != "" &&
		(cfg.SheetsCredentialsJSON != "" || cfg.SheetsCredentialsFile != "")
	if v := os.Getenv("GOOGLE_SHEETS_ENABLED"); v != "" {
		cfg.SheetsEnabled = v == "true"
	}

	if cfg.SheetsEnabled && cfg.SheetsSpreadsheetID == "" {
		return nil, errors.New("GOOGLE_SHEETS_ENABLED is true but GOOGLE_SHEETS_SPREADSHEET_ID is not set")
	}
	if cfg.SheetsEnabled && cfg.SheetsCredentialsJSON == "" && cfg.SheetsCredentialsFile == "" {
		return nil, errors.New("GOOGLE_SHEETS_ENABLED is true but no credentials are set")
	}
	if cfg.FeedHumidity < 0 || cfg.FeedHumidity > 100 {
		return nil, errors.New("FEED_HUMIDITY must be between 0 and 100")
	}

	return cfg, nil
}

// RequireTelegram returns an error when the bot token is missing.
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}
