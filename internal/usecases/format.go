package usecases

import (
	"fmt"
	"sort"
	"strings"

	"github.com/abelzeko/flood-watch/internal/entities"
	"github.com/abelzeko/flood-watch/internal/prediction"
)

// maxListedReports keeps report listings under the Telegram message size limit.
const maxListedReports = 20

// FormatReports formats a report listing for display
func FormatReports(title string, reports []entities.FloodReport) string {
	if len(reports) == 0 {
		return fmt.Sprintf("%s\n\nNo reports yet.", title)
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s (%d)\n\n", title, len(reports)))

	for i, r := range reports {
		if i == maxListedReports {
			result.WriteString(fmt.Sprintf("...and %d more. Use /export for the full list.\n", len(reports)-maxListedReports))
			break
		}
		result.WriteString(fmt.Sprintf("📍 %s\n", r.Address))
		result.WriteString(fmt.Sprintf("🌊 %s\n", r.FloodHeight.Label()))
		result.WriteString(fmt.Sprintf("👤 %s\n", r.ReporterName))
		if r.PhotoURL != "" {
			result.WriteString("📷 Photo attached\n")
		}
		result.WriteString(fmt.Sprintf("🕒 %s %s WIB\n\n", r.ReportDate, r.ReportTime))
	}

	return strings.TrimRight(result.String(), "\n")
}

// FormatMonthlyStatistics formats the current month's report count
func FormatMonthlyStatistics(stats entities.MonthlyStatistics) string {
	if stats.Month == "" {
		return "Monthly statistics are not available right now."
	}
	return fmt.Sprintf("📅 %s: %d flood reports this month", stats.Month, stats.TotalReports)
}

// FormatYearlyStatistics formats the trailing twelve-bucket histogram
func FormatYearlyStatistics(stats entities.YearlyStatistics) string {
	if len(stats.Months) == 0 {
		return "Yearly statistics are not available right now."
	}

	maxCount := stats.PeakCount
	var result strings.Builder
	result.WriteString("📊 Reports over the last 12 months\n\n")
	for _, m := range stats.Months {
		marker := ""
		if m.IsCurrent {
			marker = " ◀"
		}
		result.WriteString(fmt.Sprintf("%s %s %s %d%s\n", m.MonthName, m.YearMonth[:4], bar(m.ReportCount, maxCount), m.ReportCount, marker))
	}
	result.WriteString(fmt.Sprintf("\nTotal: %d\n", stats.TotalReports))
	result.WriteString(fmt.Sprintf("Average per month: %.1f\n", stats.AveragePerMonth))
	result.WriteString(fmt.Sprintf("Peak: %s (%d)", stats.PeakMonth, stats.PeakCount))
	return result.String()
}

func bar(count, maxCount int) string {
	const width = 10
	if maxCount == 0 || count == 0 {
		return ""
	}
	n := count * width / maxCount
	if n == 0 {
		n = 1
	}
	return strings.Repeat("█", n)
}

// FormatAssessment formats a single risk assessment
func FormatAssessment(a prediction.Assessment) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s %s risk: %.3f (%s)\n", statusIcon(a.Status), methodName(a.Method), a.RiskLevel, a.Status))
	result.WriteString(a.Message)

	if a.ANN != nil && a.ANN.TemperatureRange != nil {
		tr := a.ANN.TemperatureRange
		result.WriteString(fmt.Sprintf("\nTemperature %.1f–%.1f °C, average %.1f °C", tr.Min, tr.Max, tr.Average))
	}
	if a.Gumbel != nil {
		result.WriteString(fmt.Sprintf("\nReturn period: %d years", a.Gumbel.ReturnPeriod))
	}
	return result.String()
}

// FormatPredictions formats the station feed with the overall status
func FormatPredictions(predictions []entities.StationPrediction, overall string, fallback bool) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("Overall risk: %s\n\n", overall))

	for _, p := range predictions {
		result.WriteString(fmt.Sprintf("📍 %s\n", p.Location))
		result.WriteString(fmt.Sprintf("💧 Water level: %.2f mdpl (%s)\n", p.WaterLevel, p.WaterStatus))
		result.WriteString(fmt.Sprintf("🌧 Rainfall: %.1f mm\n", p.Rainfall))
		result.WriteString(fmt.Sprintf("ANN: %.3f %s\n", p.ANNRisk, p.ANNStatus))
		result.WriteString(fmt.Sprintf("Gumbel: %.3f %s\n", p.GumbelRisk, p.GumbelStatus))
		if p.LastUpdate != "" {
			result.WriteString(fmt.Sprintf("🕒 %s\n", p.LastUpdate))
		}
		result.WriteString("\n")
	}

	if fallback {
		result.WriteString("⚠️ Live feed unavailable, showing built-in readings.")
	} else if len(predictions) > 0 && !predictions[0].FetchedAt.IsZero() {
		result.WriteString(fmt.Sprintf("Fetched %s", predictions[0].FetchedAt.In(entities.Location).Format("2006-01-02 15:04 MST")))
	}
	return strings.TrimRight(result.String(), "\n")
}

// FormatModelParameters formats the fixed constants of a scoring model
func FormatModelParameters(p prediction.ModelParameters) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s\n%s\n", p.Name, p.Description))
	for _, k := range sortedKeys(p.Constants) {
		result.WriteString(fmt.Sprintf("• %s: %s\n", k, p.Constants[k]))
	}
	return strings.TrimRight(result.String(), "\n")
}

func statusIcon(s prediction.Status) string {
	switch s {
	case prediction.StatusHigh:
		return "🔴"
	case prediction.StatusMedium:
		return "🟠"
	case prediction.StatusLow:
		return "🟢"
	default:
		return "⚪"
	}
}

func methodName(m prediction.Method) string {
	if m == prediction.MethodGumbel {
		return "Gumbel"
	}
	return "ANN"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
