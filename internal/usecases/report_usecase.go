// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abelzeko/flood-watch/internal/entities"
	"github.com/abelzeko/flood-watch/internal/observability"
	"github.com/abelzeko/flood-watch/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DailyReportLimit is the number of reports one submitter may make per local calendar date.
const DailyReportLimit = 10

// DefaultMirrorTimeout bounds a single spreadsheet mirror call.
const DefaultMirrorTimeout = 5 * time.Second

// yearlyBuckets is the number of 30-day buckets in the yearly histogram.
const yearlyBuckets = 12

// User-facing submission messages.
const (
	MsgSubmitted        = "Your report has been sent! Thank you for reporting."
	MsgDailyLimit       = "Sorry, the daily report limit has been reached. Please come back tomorrow."
	MsgSystemError      = "Failed to save your report because of a system error. Please try again later."
	msgMirrorSuffixOK   = " (also saved to Google Sheets)"
	msgMirrorSuffixFail = " (Google Sheets sync failed)"
)

// MirrorStatus reports what happened to the spreadsheet copy of a submission.
type MirrorStatus string

const (
	MirrorSkipped  MirrorStatus = "skipped"
	MirrorMirrored MirrorStatus = "mirrored"
	MirrorFailed   MirrorStatus = "failed"
)

// ReportMirror receives a copy of every persisted report
type ReportMirror interface {
	AppendReport(ctx context.Context, report entities.FloodReport) error
}

// PhotoUpload is a photo attached to a submission
type PhotoUpload struct {
	Filename string
	Data     []byte
}

// SubmitRequest carries one flood report submission. SubmitterID is the
// opaque identifier the daily quota is counted against.
type SubmitRequest struct {
	Address       string               `validate:"required"`
	FloodHeight   entities.FloodHeight `validate:"required,oneof=ankle calf knee above-knee"`
	ReporterName  string               `validate:"required"`
	ReporterPhone string               `validate:"omitempty,max=32"`
	SubmitterID   string
	Photo         *PhotoUpload
}

// SubmitResult is the outcome of SubmitReport. Mirror is only meaningful when Success is true.
type SubmitResult struct {
	Success  bool
	Message  string
	ReportID int64
	Mirror   MirrorStatus
}

// ReportUseCase handles flood report submission and aggregation
type ReportUseCase struct {
	repo          repository.ReportRepository
	photos        repository.PhotoRepository
	mirror        ReportMirror
	mirrorTimeout time.Duration
	clock         clockwork.Clock
	metrics       *observability.Metrics
	logger        logrus.FieldLogger
	validate      *validator.Validate
}

// NewReportUseCase creates a new report use case. mirror may be nil.
func NewReportUseCase(
	repo repository.ReportRepository,
	photos repository.PhotoRepository,
	mirror ReportMirror,
	mirrorTimeout time.Duration,
	clock clockwork.Clock,
	metrics *observability.Metrics,
	logger logrus.FieldLogger,
) *ReportUseCase {
	if mirrorTimeout <= 0 {
		mirrorTimeout = DefaultMirrorTimeout
	}
	return &ReportUseCase{
		repo:          repo,
		photos:        photos,
		mirror:        mirror,
		mirrorTimeout: mirrorTimeout,
		clock:         clock,
		metrics:       metrics,
		logger:        logger,
		validate:      validator.New(),
	}
}

// SubmitReport validates, rate limits and stores one report, then mirrors it
// best-effort. Rejections are reported through SubmitResult, never as errors.
func (uc *ReportUseCase) SubmitReport(ctx context.Context, req SubmitRequest) SubmitResult {
	req.Address = strings.TrimSpace(req.Address)
	req.FloodHeight = entities.ParseFloodHeight(string(req.FloodHeight))
	req.ReporterName = strings.TrimSpace(req.ReporterName)
	req.ReporterPhone = strings.TrimSpace(req.ReporterPhone)
	req.SubmitterID = strings.TrimSpace(req.SubmitterID)

	log := uc.logger.WithField("submitter", req.SubmitterID)
	log.Info("Handling flood report submission")

	if msg := uc.validationMessage(req); msg != "" {
		log.WithField("reason", msg).Info("Report rejected by validation")
		uc.metrics.ReportsRejected.WithLabelValues("validation").Inc()
		return SubmitResult{Message: msg}
	}

	if count := uc.DailyQuota(ctx, req.SubmitterID); count >= DailyReportLimit {
		log.WithField("count", count).Info("Report rejected, daily limit reached")
		uc.metrics.ReportsRejected.WithLabelValues("quota").Inc()
		return SubmitResult{Message: MsgDailyLimit}
	}

	if req.Photo != nil && !repository.IsAllowedPhoto(req.Photo.Filename) {
		log.WithField("filename", req.Photo.Filename).Info("Report rejected, unsupported photo format")
		uc.metrics.ReportsRejected.WithLabelValues("photo_format").Inc()
		return SubmitResult{Message: unsupportedPhotoMessage()}
	}

	report := entities.NewFloodReport(uc.clock.Now())
	report.Address = req.Address
	report.FloodHeight = req.FloodHeight
	report.ReporterName = req.ReporterName
	report.ReporterPhone = req.ReporterPhone
	report.SubmitterID = req.SubmitterID

	if req.Photo != nil {
		path, err := uc.photos.Save(req.Photo.Filename, req.Photo.Data)
		if err != nil {
			log.WithError(err).Warn("Failed to save photo, continuing without it")
		} else {
			report.PhotoURL = path
		}
	}

	id, err := uc.repo.SaveReport(ctx, &report)
	if err != nil {
		log.WithError(err).Error("Failed to persist flood report")
		if report.PhotoURL != "" {
			if rmErr := uc.photos.Remove(report.PhotoURL); rmErr != nil {
				log.WithError(rmErr).Error("Failed to remove photo of unsaved report")
			}
		}
		uc.metrics.ReportsRejected.WithLabelValues("storage").Inc()
		return SubmitResult{Message: MsgSystemError}
	}
	uc.metrics.ReportsSubmitted.Inc()

	status := uc.mirrorReport(ctx, report)
	msg := MsgSubmitted
	switch status {
	case MirrorMirrored:
		msg += msgMirrorSuffixOK
	case MirrorFailed:
		msg += msgMirrorSuffixFail
	}

	log.WithFields(logrus.Fields{"report_id": id, "mirror": status}).Info("Flood report accepted")
	return SubmitResult{Success: true, Message: msg, ReportID: id, Mirror: status}
}

func (uc *ReportUseCase) mirrorReport(ctx context.Context, report entities.FloodReport) MirrorStatus {
	if uc.mirror == nil {
		uc.metrics.MirrorWrites.WithLabelValues(string(MirrorSkipped)).Inc()
		return MirrorSkipped
	}

	mctx, cancel := context.WithTimeout(ctx, uc.mirrorTimeout)
	defer cancel()

	if err := uc.mirror.AppendReport(mctx, report); err != nil {
		uc.logger.WithError(err).WithField("report_id", report.ID).Warn("Spreadsheet mirror failed")
		uc.metrics.MirrorWrites.WithLabelValues(string(MirrorFailed)).Inc()
		return MirrorFailed
	}
	uc.metrics.MirrorWrites.WithLabelValues(string(MirrorMirrored)).Inc()
	return MirrorMirrored
}

// validationMessage returns a human readable rejection for the first invalid
// field, or "" when the request is valid.
func (uc *ReportUseCase) validationMessage(req SubmitRequest) string {
	err := uc.validate.Struct(req)
	if err == nil {
		return ""
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "The report could not be validated."
	}

	switch fe := verrs[0]; fe.Field() {
	case "Address":
		return "Address is required."
	case "FloodHeight":
		return "Please choose a flood height: ankle, calf, knee or above-knee."
	case "ReporterName":
		return "Reporter name is required."
	case "ReporterPhone":
		return "Phone number is too long."
	default:
		return fmt.Sprintf("Invalid value for %s.", fe.Field())
	}
}

func unsupportedPhotoMessage() string {
	return "Unsupported file format. Use: " + strings.Join(repository.AllowedPhotoExtensions, ", ")
}

// DailyQuota returns how many reports the submitter made today. Store errors
// are logged and reported as 0 so submissions are never blocked by them.
func (uc *ReportUseCase) DailyQuota(ctx context.Context, submitterID string) int {
	if submitterID == "" {
		submitterID = "unknown"
	}
	today := uc.now().Format(entities.DateLayout)
	count, err := uc.repo.CountBySubmitterOnDate(ctx, submitterID, today)
	if err != nil {
		uc.logger.WithError(err).WithField("submitter", submitterID).Warn("Daily quota check failed, allowing submission")
		return 0
	}
	uc.logger.WithFields(logrus.Fields{"submitter": submitterID, "count": count}).Debug("Daily quota checked")
	return count
}

// GetTodayReports returns today's reports, newest first
func (uc *ReportUseCase) GetTodayReports(ctx context.Context) ([]entities.FloodReport, error) {
	today := uc.now().Format(entities.DateLayout)
	uc.logger.WithField("date", today).Debug("Retrieving today's reports")
	return uc.repo.GetReportsByDate(ctx, today)
}

// GetMonthReports returns this month's reports, newest first
func (uc *ReportUseCase) GetMonthReports(ctx context.Context) ([]entities.FloodReport, error) {
	month := uc.now().Format(entities.MonthLayout)
	uc.logger.WithField("month", month).Debug("Retrieving this month's reports")
	return uc.repo.GetReportsByMonth(ctx, month)
}

// GetAllReports returns every report, newest first
func (uc *ReportUseCase) GetAllReports(ctx context.Context) ([]entities.FloodReport, error) {
	uc.logger.Debug("Retrieving all reports")
	return uc.repo.GetAllReports(ctx)
}

// GetMonthlyStatistics counts this month's reports
func (uc *ReportUseCase) GetMonthlyStatistics(ctx context.Context) entities.MonthlyStatistics {
	month := uc.now().Format(entities.MonthLayout)
	count, err := uc.repo.CountByMonth(ctx, month)
	if err != nil {
		uc.logger.WithError(err).Error("Failed to compute monthly statistics")
		return entities.MonthlyStatistics{}
	}
	return entities.MonthlyStatistics{TotalReports: count, Month: month}
}

// GetYearlyStatistics builds the trailing histogram. Bucket i is the
// year-month of now minus 30*i days, so a calendar month can appear twice
// (on the 31st) or be skipped.
func (uc *ReportUseCase) GetYearlyStatistics(ctx context.Context) entities.YearlyStatistics {
	now := uc.now()
	current := now.Format(entities.MonthLayout)

	months := make([]entities.MonthHistogramEntry, 0, yearlyBuckets)
	total := 0
	for i := yearlyBuckets - 1; i >= 0; i-- {
		at := now.AddDate(0, 0, -30*i)
		ym := at.Format(entities.MonthLayout)

		count, err := uc.repo.CountByMonth(ctx, ym)
		if err != nil {
			uc.logger.WithError(err).WithField("month", ym).Error("Failed to compute yearly statistics")
			return entities.YearlyStatistics{PeakMonth: "Error"}
		}

		months = append(months, entities.MonthHistogramEntry{
			YearMonth:   ym,
			MonthName:   at.Format("Jan"),
			ReportCount: count,
			IsCurrent:   ym == current,
		})
		total += count
	}

	stats := entities.YearlyStatistics{
		Months:           months,
		TotalReports:     total,
		CurrentYearMonth: current,
	}
	stats.AveragePerMonth = decimal.NewFromInt(int64(total)).
		Div(decimal.NewFromInt(int64(len(months)))).
		Round(1).
		InexactFloat64()

	peak := months[0]
	for _, m := range months[1:] {
		if m.ReportCount > peak.ReportCount {
			peak = m
		}
	}
	stats.PeakMonth = peak.MonthName
	stats.PeakCount = peak.ReportCount

	return stats
}

func (uc *ReportUseCase) now() time.Time {
	return uc.clock.Now().In(entities.Location)
}
