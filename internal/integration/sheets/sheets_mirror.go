// Package sheets mirrors accepted flood reports into a Google Sheets worksheet.
package sheets

import (
	"context"
	"errors"
	"fmt"

	"github.com/abelzeko/flood-watch/internal/entities"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// Mirror appends report rows to one worksheet
type Mirror struct {
	service       *gsheets.Service
	spreadsheetID string
	worksheet     string
	logger        logrus.FieldLogger
}

// CredentialOptions returns the client option for inline JSON credentials or a
// credentials file, preferring the inline JSON.
func CredentialOptions(credentialsJSON, credentialsFile string) ([]option.ClientOption, error) {
	switch {
	case credentialsJSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credentialsJSON))}, nil
	case credentialsFile != "":
		return []option.ClientOption{option.WithCredentialsFile(credentialsFile)}, nil
	default:
		return nil, errors.New("no Google Sheets credentials configured")
	}
}

// NewMirror creates the Sheets client. opts carry credentials or, in tests,
// an endpoint override.
func NewMirror(ctx context.Context, spreadsheetID, worksheet string, logger logrus.FieldLogger, opts ...option.ClientOption) (*Mirror, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	if worksheet == "" {
		worksheet = "flood_reports"
	}

	opts = append([]option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}, opts...)
	service, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Mirror{
		service:       service,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
		logger:        logger,
	}, nil
}

// AppendReport appends one report row after the last filled row of the worksheet
func (m *Mirror) AppendReport(ctx context.Context, report entities.FloodReport) error {
	row := report.Row()
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}

	_, err := m.service.Spreadsheets.Values.
		Append(m.spreadsheetID, m.worksheet+"!A1", &gsheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append report %d to sheet: %w", report.ID, err)
	}

	m.logger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"worksheet": m.worksheet,
	}).Info("Report mirrored to spreadsheet")
	return nil
}
