package models

import (
	"fmt"
	"math"
	"time"
)

// Metric pairs the latest open-field and agrivoltaic values of one field.
// Values are nil when the source cell was empty.
type Metric struct {
	Field              Field    `json:"field"`
	Label              string   `json:"label"`
	Unit               string   `json:"unit"`
	OpenField          *float64 `json:"open_field"`
	Agrivoltaic        *float64 `json:"agrivoltaic"`
	Difference         *float64 `json:"difference"`
	OpenFieldDisplay   string   `json:"open_field_display"`
	AgrivoltaicDisplay string   `json:"agrivoltaic_display"`
	DifferenceDisplay  string   `json:"difference_display"`
}

// SeriesPoint is one (timestamp, value, variant) triple of a long-format series
type SeriesPoint struct {
	Time    time.Time `json:"time"`
	Value   *float64  `json:"value"`
	Variant string    `json:"variant"`
}

// ComparisonSeries is the long-format chart input for one field
type ComparisonSeries struct {
	Field     Field         `json:"field"`
	ValueName string        `json:"value_name"`
	Points    []SeriesPoint `json:"points"`
}

// PlaybackView is the render state of a playback session
type PlaybackView struct {
	SessionID   string             `json:"session_id"`
	Cursor      int                `json:"cursor"`
	TotalRows   int                `json:"total_rows"`
	CurrentTime time.Time          `json:"current_time"`
	Metrics     []Metric           `json:"metrics"`
	Series      []ComparisonSeries `json:"series"`
	Notice      string             `json:"notice,omitempty"`
}

// AdvanceResult reports the outcome of one playback step
type AdvanceResult struct {
	SessionID string `json:"session_id"`
	Cursor    int    `json:"cursor"`
	TotalRows int    `json:"total_rows"`
	Completed bool   `json:"completed"`
}

// FilterView is the render state of a date-range selection
type FilterView struct {
	Requested DateRange          `json:"requested"`
	Effective *DateRange         `json:"effective,omitempty"`
	Bounds    DateRange          `json:"bounds"`
	RowCount  int                `json:"row_count"`
	Metrics   []Metric           `json:"metrics,omitempty"`
	Series    []ComparisonSeries `json:"series"`
}

// SiteSummary describes one loaded site table
type SiteSummary struct {
	Site    Site     `json:"site"`
	Label   string   `json:"label"`
	Columns []string `json:"columns"`
	Version string   `json:"version"`
}

// DatasetSummary describes the loaded dataset
type DatasetSummary struct {
	RowCount  int           `json:"row_count"`
	FirstTime time.Time     `json:"first_time"`
	LastTime  time.Time     `json:"last_time"`
	Bounds    DateRange     `json:"bounds"`
	Sites     []SiteSummary `json:"sites"`
}

// PlaybackFinishedNotice is shown once after the cursor wraps around
const PlaybackFinishedNotice = "Simulation finished! All data points have been displayed. Simulation has been reset."

// FloatPtr returns nil for NaN and infinities, which have no JSON
// encoding, so they encode as null
func FloatPtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FormatValue formats a metric value to two decimal places
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%.2f", v)
}
