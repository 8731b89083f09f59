package usecases

import (
	"context"
	"fmt"

	"github.com/abelzeko/flood-watch/internal/entities"
	"github.com/xuri/excelize/v2"
)

// ExportScope selects the report window of an export.
type ExportScope string

const (
	ScopeToday ExportScope = "today"
	ScopeMonth ExportScope = "month"
	ScopeAll   ExportScope = "all"
)

const exportSheet = "Reports"

// ParseExportScope maps user input to a scope, defaulting to this month.
func ParseExportScope(s string) (ExportScope, error) {
	switch ExportScope(s) {
	case "":
		return ScopeMonth, nil
	case ScopeToday, ScopeMonth, ScopeAll:
		return ExportScope(s), nil
	default:
		return "", fmt.Errorf("unknown export scope %q, use today, month or all", s)
	}
}

// ExportFilename returns the workbook name for a scope at the current time.
func (uc *ReportUseCase) ExportFilename(scope ExportScope) string {
	return fmt.Sprintf("flood_reports_%s_%s.xlsx", scope, uc.now().Format("20060102"))
}

// ExportReports renders the reports of a window as an XLSX workbook
func (uc *ReportUseCase) ExportReports(ctx context.Context, scope ExportScope) ([]byte, error) {
	var (
		reports []entities.FloodReport
		err     error
	)
	switch scope {
	case ScopeToday:
		reports, err = uc.GetTodayReports(ctx)
	case ScopeMonth:
		reports, err = uc.GetMonthReports(ctx)
	case ScopeAll:
		reports, err = uc.GetAllReports(ctx)
	default:
		return nil, fmt.Errorf("unknown export scope %q", scope)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reports for export: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(entities.ReportColumns))
	for i, c := range entities.ReportColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range reports {
		row := r.Row()
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write report %d: %w", r.ID, err)
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	uc.logger.WithField("scope", scope).WithField("rows", len(reports)).Info("Reports exported")
	return buf.Bytes(), nil
}
