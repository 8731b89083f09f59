package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/abelzeko/flood-watch/internal/entities"
	"github.com/sirupsen/logrus"
)

// StationRepository defines the interface for scored station feed persistence
type StationRepository interface {
	SavePredictions(ctx context.Context, predictions []entities.StationPrediction) error
	GetLatestPredictions(ctx context.Context) ([]entities.StationPrediction, error)
	GetLastUpdateTime(ctx context.Context) (time.Time, error)
}

// SQLiteStationRepository implements StationRepository using SQLite
type SQLiteStationRepository struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

const fetchedAtLayout = time.RFC3339

// NewSQLiteStationRepository creates the station_predictions table if needed
func NewSQLiteStationRepository(db *sql.DB, logger logrus.FieldLogger) (*SQLiteStationRepository, error) {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS station_predictions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		location TEXT NOT NULL,
		source TEXT,
		water_level REAL NOT NULL,
		rainfall REAL NOT NULL,
		last_update TEXT,
		ann_risk REAL NOT NULL,
		ann_status TEXT NOT NULL,
		ann_message TEXT,
		gumbel_risk REAL NOT NULL,
		gumbel_status TEXT NOT NULL,
		gumbel_message TEXT,
		water_status TEXT,
		fetched_at TEXT NOT NULL,
		UNIQUE(location, fetched_at)
	);
	CREATE INDEX IF NOT EXISTS idx_station_fetched_at ON station_predictions(fetched_at);`

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create station_predictions table: %w", err)
	}
	return &SQLiteStationRepository{db: db, logger: logger}, nil
}

// Ping checks that the database is reachable
func (r *SQLiteStationRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SavePredictions stores one batch of scored readings
func (r *SQLiteStationRepository) SavePredictions(ctx context.Context, predictions []entities.StationPrediction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO station_predictions(location, source, water_level, rainfall, last_update,
			ann_risk, ann_status, ann_message, gumbel_risk, gumbel_status, gumbel_message,
			water_status, fetched_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location, fetched_at) DO UPDATE SET
		water_level=excluded.water_level,
		rainfall=excluded.rainfall,
		ann_risk=excluded.ann_risk,
		ann_status=excluded.ann_status,
		gumbel_risk=excluded.gumbel_risk,
		gumbel_status=excluded.gumbel_status
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range predictions {
		_, err := stmt.ExecContext(ctx,
			p.Location,
			p.Source,
			p.WaterLevel,
			p.Rainfall,
			p.LastUpdate,
			p.ANNRisk,
			p.ANNStatus,
			p.ANNMessage,
			p.GumbelRisk,
			p.GumbelStatus,
			p.GumbelMessage,
			p.WaterStatus,
			p.FetchedAt.UTC().Format(fetchedAtLayout),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert prediction for %s: %w", p.Location, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.WithField("count", len(predictions)).Info("Station predictions saved")
	return nil
}

// GetLatestPredictions returns the most recent batch in feed order
func (r *SQLiteStationRepository) GetLatestPredictions(ctx context.Context) ([]entities.StationPrediction, error) {
	query := `
		SELECT id, location, source, water_level, rainfall, last_update,
			ann_risk, ann_status, ann_message, gumbel_risk, gumbel_status, gumbel_message,
			water_status, fetched_at
		FROM station_predictions
		WHERE fetched_at = (SELECT MAX(fetched_at) FROM station_predictions)
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query station predictions: %w", err)
	}
	defer rows.Close()

	var result []entities.StationPrediction
	for rows.Next() {
		var (
			p                                     entities.StationPrediction
			source, lastUpdate, annMsg, gumbelMsg sql.NullString
			waterStatus                           sql.NullString
			fetchedAt                             string
		)
		if err := rows.Scan(
			&p.ID,
			&p.Location,
			&source,
			&p.WaterLevel,
			&p.Rainfall,
			&lastUpdate,
			&p.ANNRisk,
			&p.ANNStatus,
			&annMsg,
			&p.GumbelRisk,
			&p.GumbelStatus,
			&gumbelMsg,
			&waterStatus,
			&fetchedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		p.Source = source.String
		p.LastUpdate = lastUpdate.String
		p.ANNMessage = annMsg.String
		p.GumbelMessage = gumbelMsg.String
		p.WaterStatus = waterStatus.String
		p.FetchedAt, err = time.Parse(fetchedAtLayout, fetchedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fetched_at '%s': %w", fetchedAt, err)
		}
		result = append(result, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// GetLastUpdateTime returns the fetch time of the latest batch, or zero time if none
func (r *SQLiteStationRepository) GetLastUpdateTime(ctx context.Context) (time.Time, error) {
	var fetchedAt sql.NullString
	err := r.db.QueryRowContext(ctx, "SELECT MAX(fetched_at) FROM station_predictions").Scan(&fetchedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last update time: %w", err)
	}
	if !fetchedAt.Valid || fetchedAt.String == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(fetchedAtLayout, fetchedAt.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", fetchedAt.String, err)
	}
	return t, nil
}
