// Package entities contains the core domain objects for the flood-watch application
package entities

import (
	"strings"
	"time"
)

// Location is the fixed local civil time zone (WIB, UTC+7) used for every
// report timestamp and calendar window.
var Location = time.FixedZone("WIB", 7*60*60)

// Date and time layouts used for report rows.
const (
	TimestampLayout = "2006-01-02 15:04:05"
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04:05"
	MonthLayout     = "2006-01"
)

// StatusPending is the only status a report ever has.
const StatusPending = "pending"

// FloodHeight is the observed water height category of a report
type FloodHeight string

const (
	FloodHeightAnkle     FloodHeight = "ankle"
	FloodHeightCalf      FloodHeight = "calf"
	FloodHeightKnee      FloodHeight = "knee"
	FloodHeightAboveKnee FloodHeight = "above-knee"

	// FloodHeightPlaceholder is the unselected value offered by forms.
	FloodHeightPlaceholder FloodHeight = "choose a value"
)

// FloodHeights lists the valid categories in ascending order.
var FloodHeights = []FloodHeight{
	FloodHeightAnkle,
	FloodHeightCalf,
	FloodHeightKnee,
	FloodHeightAboveKnee,
}

// Valid reports whether h is one of the four selectable categories.
func (h FloodHeight) Valid() bool {
	for _, v := range FloodHeights {
		if h == v {
			return true
		}
	}
	return false
}

// Label returns a human readable description of the category.
func (h FloodHeight) Label() string {
	switch h {
	case FloodHeightAnkle:
		return "Ankle deep"
	case FloodHeightCalf:
		return "Calf deep"
	case FloodHeightKnee:
		return "Knee deep"
	case FloodHeightAboveKnee:
		return "Above the knee"
	default:
		return string(h)
	}
}

// ParseFloodHeight normalizes user input into a FloodHeight.
// Unknown input is returned as-is so validation can reject it.
func ParseFloodHeight(s string) FloodHeight {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "above knee", "aboveknee", "above_knee":
		return FloodHeightAboveKnee
	}
	return FloodHeight(v)
}

// FloodReport represents a single citizen-submitted flood sighting
type FloodReport struct {
	ID            int64
	Timestamp     time.Time   // Submission time in the WIB zone
	Address       string      // Where the flood was seen
	FloodHeight   FloodHeight // Observed water height
	ReporterName  string
	ReporterPhone string // Optional
	SubmitterID   string // Opaque identifier used for the daily quota
	PhotoURL      string // Local path of the uploaded photo, empty if none
	Status        string
	ReportDate    string // YYYY-MM-DD in the WIB zone
	ReportTime    string // HH:MM:SS in the WIB zone
}

// NewFloodReport stamps a report with the given time converted to the WIB zone.
func NewFloodReport(now time.Time) FloodReport {
	local := now.In(Location)
	return FloodReport{
		Timestamp:  local.Truncate(time.Second),
		Status:     StatusPending,
		ReportDate: local.Format(DateLayout),
		ReportTime: local.Format(TimeLayout),
	}
}

// ReportColumns is the column layout shared by the spreadsheet mirror and exports.
var ReportColumns = []string{
	"Timestamp",
	"Address",
	"Flood Height",
	"Reporter Name",
	"Reporter Phone",
	"Submitter",
	"Photo",
	"Status",
}

// Row returns the report's values in ReportColumns order.
func (r FloodReport) Row() []string {
	return []string{
		r.Timestamp.In(Location).Format(TimestampLayout),
		r.Address,
		string(r.FloodHeight),
		r.ReporterName,
		r.ReporterPhone,
		r.SubmitterID,
		r.PhotoURL,
		r.Status,
	}
}
