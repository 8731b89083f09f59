package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abelzeko/flood-watch/internal/entities"
	"github.com/sirupsen/logrus"
)

// ErrInvalidReport is returned when a report is missing a required field.
var ErrInvalidReport = errors.New("invalid flood report")

// ReportRepository defines the interface for flood report persistence operations
type ReportRepository interface {
	SaveReport(ctx context.Context, report *entities.FloodReport) (int64, error)
	CountBySubmitterOnDate(ctx context.Context, submitterID, date string) (int, error)
	GetReportsByDate(ctx context.Context, date string) ([]entities.FloodReport, error)
	GetReportsByMonth(ctx context.Context, yearMonth string) ([]entities.FloodReport, error)
	GetAllReports(ctx context.Context) ([]entities.FloodReport, error)
	CountByMonth(ctx context.Context, yearMonth string) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// SQLiteReportRepository implements ReportRepository using SQLite
type SQLiteReportRepository struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

const createReportsTableSQL = `
	CREATE TABLE IF NOT EXISTS flood_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		address TEXT NOT NULL CHECK (length(trim(address)) > 0),
		flood_height TEXT NOT NULL CHECK (length(trim(flood_height)) > 0),
		reporter_name TEXT NOT NULL CHECK (length(trim(reporter_name)) > 0),
		reporter_phone TEXT,
		ip_address TEXT NOT NULL,
		photo_url TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		report_date TEXT NOT NULL,
		report_time TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_reports_date ON flood_reports(report_date);
	CREATE INDEX IF NOT EXISTS idx_reports_ip_date ON flood_reports(ip_address, report_date);`

const selectReportColumns = `
	SELECT id, timestamp, address, flood_height, reporter_name, reporter_phone,
		ip_address, photo_url, status, report_date, report_time
	FROM flood_reports`

// NewSQLiteReportRepository creates the flood_reports table if needed
func NewSQLiteReportRepository(db *sql.DB, logger logrus.FieldLogger) (*SQLiteReportRepository, error) {
	if _, err := db.Exec(createReportsTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create flood_reports table: %w", err)
	}
	return &SQLiteReportRepository{db: db, logger: logger}, nil
}

// Close closes the database connection
func (r *SQLiteReportRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable
func (r *SQLiteReportRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveReport inserts a report and returns its assigned identifier
func (r *SQLiteReportRepository) SaveReport(ctx context.Context, report *entities.FloodReport) (int64, error) {
	if strings.TrimSpace(report.Address) == "" ||
		strings.TrimSpace(string(report.FloodHeight)) == "" ||
		strings.TrimSpace(report.ReporterName) == "" {
		return 0, ErrInvalidReport
	}

	submitter := report.SubmitterID
	if submitter == "" {
		submitter = "unknown"
	}
	status := report.Status
	if status == "" {
		status = entities.StatusPending
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO flood_reports(timestamp, address, flood_height, reporter_name, reporter_phone,
			ip_address, photo_url, status, report_date, report_time, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.Timestamp.In(entities.Location).Format(entities.TimestampLayout),
		report.Address,
		string(report.FloodHeight),
		report.ReporterName,
		nullString(report.ReporterPhone),
		submitter,
		nullString(report.PhotoURL),
		status,
		report.ReportDate,
		report.ReportTime,
		time.Now().UTC().Format(entities.TimestampLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert flood report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read report id: %w", err)
	}

	report.ID = id
	report.SubmitterID = submitter
	report.Status = status
	r.logger.WithFields(logrus.Fields{"report_id": id, "report_date": report.ReportDate}).Info("Flood report saved")
	return id, nil
}

// CountBySubmitterOnDate counts the reports one submitter made on a date
func (r *SQLiteReportRepository) CountBySubmitterOnDate(ctx context.Context, submitterID, date string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM flood_reports WHERE ip_address = ? AND report_date = ?`,
		submitterID, date,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reports for %s on %s: %w", submitterID, date, err)
	}
	return count, nil
}

// GetReportsByDate returns the reports of one calendar date, newest first
func (r *SQLiteReportRepository) GetReportsByDate(ctx context.Context, date string) ([]entities.FloodReport, error) {
	return r.queryReports(ctx, selectReportColumns+`
		WHERE report_date = ?
		ORDER BY timestamp DESC, id DESC`, date)
}

// GetReportsByMonth returns the reports of one YYYY-MM month, newest first
func (r *SQLiteReportRepository) GetReportsByMonth(ctx context.Context, yearMonth string) ([]entities.FloodReport, error) {
	return r.queryReports(ctx, selectReportColumns+`
		WHERE strftime('%Y-%m', report_date) = ?
		ORDER BY timestamp DESC, id DESC`, yearMonth)
}

// GetAllReports returns every report, newest first
func (r *SQLiteReportRepository) GetAllReports(ctx context.Context) ([]entities.FloodReport, error) {
	return r.queryReports(ctx, selectReportColumns+`
		ORDER BY timestamp DESC, id DESC`)
}

// CountByMonth counts the reports whose report_date falls in a YYYY-MM month
func (r *SQLiteReportRepository) CountByMonth(ctx context.Context, yearMonth string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM flood_reports WHERE strftime('%Y-%m', report_date) = ?`,
		yearMonth,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reports for %s: %w", yearMonth, err)
	}
	return count, nil
}

func (r *SQLiteReportRepository) queryReports(ctx context.Context, query string, args ...any) ([]entities.FloodReport, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flood reports: %w", err)
	}
	defer rows.Close()

	var result []entities.FloodReport
	for rows.Next() {
		var (
			rep       entities.FloodReport
			timestamp string
			height    string
			phone     sql.NullString
			photo     sql.NullString
		)
		if err := rows.Scan(
			&rep.ID,
			&timestamp,
			&rep.Address,
			&height,
			&rep.ReporterName,
			&phone,
			&rep.SubmitterID,
			&photo,
			&rep.Status,
			&rep.ReportDate,
			&rep.ReportTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rep.Timestamp, err = time.ParseInLocation(entities.TimestampLayout, timestamp, entities.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp '%s' of report %d: %w", timestamp, rep.ID, err)
		}
		rep.FloodHeight = entities.FloodHeight(height)
		rep.ReporterPhone = phone.String
		rep.PhotoURL = photo.String
		result = append(result, rep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
