package entities

// MonthlyStatistics holds the number of reports for one calendar month
type MonthlyStatistics struct {
	TotalReports int
	Month        string // YYYY-MM
}

// MonthHistogramEntry is one of the twelve buckets of the yearly histogram
type MonthHistogramEntry struct {
	YearMonth   string // YYYY-MM
	MonthName   string // Jan, Feb, ...
	ReportCount int
	IsCurrent   bool
}

// YearlyStatistics summarizes the trailing twelve buckets
type YearlyStatistics struct {
	Months           []MonthHistogramEntry
	TotalReports     int
	AveragePerMonth  float64
	PeakMonth        string
	PeakCount        int
	CurrentYearMonth string
}
