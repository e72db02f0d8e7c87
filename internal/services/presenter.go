package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"

	"agrivoltaic-dashboard/internal/models"
	"agrivoltaic-dashboard/pkg/logging"
	"agrivoltaic-dashboard/pkg/metrics"
)

// timeLayout is used for timestamps in reports and messages
const timeLayout = "2006-01-02 15:04:05-07:00"

// Report download settings
const (
	ReportFileName    = "agrivoltaic_report.csv"
	ReportContentType = "text/csv; charset=utf-8"
)

// Presenter turns a selected dataset into metrics, chart series and reports
type Presenter struct {
	reports *lru.Cache[string, []byte]
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPresenter creates a presenter whose report cache holds up to
// cacheSize entries. Zero disables report caching.
func NewPresenter(cacheSize int, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Presenter {
	p := &Presenter{
		logger:  logger,
		metrics: metricsCollector,
	}
	if cacheSize > 0 {
		// lru.New only fails for a non-positive size
		p.reports, _ = lru.New[string, []byte](cacheSize)
	}
	return p
}

// ComputeMetrics pairs the last row of each site table for every tracked
// field. It returns nil without error when either table is empty.
func ComputeMetrics(view *models.Dataset) ([]models.Metric, error) {
	if view.OpenField.Empty() || view.Agrivoltaic.Empty() {
		return nil, nil
	}

	out := make([]models.Metric, 0, len(models.Fields))
	for _, field := range models.Fields {
		open, err := latestValue(view, models.SiteOpenField, field)
		if err != nil {
			return nil, err
		}
		agri, err := latestValue(view, models.SiteAgrivoltaic, field)
		if err != nil {
			return nil, err
		}
		diff := open - agri

		out = append(out, models.Metric{
			Field:              field,
			Label:              field.DisplayName(),
			Unit:               field.Unit(),
			OpenField:          models.FloatPtr(open),
			Agrivoltaic:        models.FloatPtr(agri),
			Difference:         models.FloatPtr(diff),
			OpenFieldDisplay:   models.FormatValue(open),
			AgrivoltaicDisplay: models.FormatValue(agri),
			DifferenceDisplay:  models.FormatValue(diff),
		})
	}
	return out, nil
}

func latestValue(view *models.Dataset, site models.Site, field models.Field) (float64, error) {
	table := view.Table(site)
	column, err := fieldColumn(view, site, field)
	if err != nil {
		return math.NaN(), err
	}
	v, _ := table.Value(table.Len()-1, column)
	return v, nil
}

func fieldColumn(view *models.Dataset, site models.Site, field models.Field) (string, error) {
	spec := view.Spec(site)
	column, ok := spec.Column(field)
	if !ok {
		return "", &models.ValidationError{
			Field:   string(field),
			Message: fmt.Sprintf("site %s has no column configured for %s", site, field),
		}
	}
	if _, ok := view.Table(site).ColumnIndex(column); !ok {
		return "", &models.ValidationError{
			Field:   column,
			Message: fmt.Sprintf("site %s is missing required column %q", site, column),
		}
	}
	return column, nil
}

// BuildSeries reshapes one field of both tables into a long-format series:
// every open-field row, then every agrivoltaic row, each tagged with its
// site label
func BuildSeries(view *models.Dataset, field models.Field) (models.ComparisonSeries, error) {
	series := models.ComparisonSeries{
		Field:     field,
		ValueName: field.DisplayName(),
		Points:    make([]models.SeriesPoint, 0, view.OpenField.Len()+view.Agrivoltaic.Len()),
	}

	for _, site := range models.Sites {
		table := view.Table(site)
		column, err := fieldColumn(view, site, field)
		if err != nil {
			return models.ComparisonSeries{}, err
		}
		idx, _ := table.ColumnIndex(column)
		variant := view.Spec(site).DisplayLabel()

		for _, row := range table.Rows {
			series.Points = append(series.Points, models.SeriesPoint{
				Time:    row.Time,
				Value:   models.FloatPtr(row.Values[idx]),
				Variant: variant,
			})
		}
	}
	return series, nil
}

// BuildAllSeries builds a series for each field, defaulting to every
// tracked field
func BuildAllSeries(view *models.Dataset, fields []models.Field) ([]models.ComparisonSeries, error) {
	if len(fields) == 0 {
		fields = models.Fields
	}
	out := make([]models.ComparisonSeries, 0, len(fields))
	for _, field := range fields {
		series, err := BuildSeries(view, field)
		if err != nil {
			return nil, err
		}
		out = append(out, series)
	}
	return out, nil
}

// WriteReport writes both tables side by side: a Time column, every
// open-field column, then every agrivoltaic column. Missing cells are left
// empty.
func WriteReport(w io.Writer, view *models.Dataset) error {
	open, agri := view.OpenField, view.Agrivoltaic
	if open.Len() != agri.Len() {
		return &models.AlignmentError{
			Row:    -1,
			Reason: fmt.Sprintf("open field selection has %d rows, agrivoltaic has %d", open.Len(), agri.Len()),
		}
	}

	writer := csv.NewWriter(w)

	header := make([]string, 0, 1+len(open.Columns)+len(agri.Columns))
	header = append(header, "Time")
	header = append(header, open.Columns...)
	header = append(header, agri.Columns...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(header))
	for i := range open.Rows {
		record = record[:0]
		record = append(record, open.Rows[i].Time.Format(timeLayout))
		for _, v := range open.Rows[i].Values {
			record = append(record, formatCell(v))
		}
		for _, v := range agri.Rows[i].Values {
			record = append(record, formatCell(v))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ExportCSV renders the report of view, reusing an earlier rendering of the
// same selection when one is cached
func (p *Presenter) ExportCSV(ctx context.Context, view *models.Dataset) ([]byte, error) {
	key := reportKey(view)

	if p.reports != nil {
		if data, ok := p.reports.Get(key); ok {
			p.metrics.RecordExportLookup(true)
			return data, nil
		}
		p.metrics.RecordExportLookup(false)
	}

	var buf bytes.Buffer
	if err := WriteReport(&buf, view); err != nil {
		return nil, err
	}
	data := buf.Bytes()

	if p.reports != nil {
		p.reports.Add(key, data)
	}
	p.metrics.ExportBytes.Observe(float64(len(data)))

	p.logger.Debug(ctx, "[REPORT_EXPORT] Report rendered", logging.Fields{
		"rows":  view.OpenField.Len(),
		"bytes": len(data),
	})

	return data, nil
}

// reportKey identifies a selection by the versions of its source tables
// and its position within them
func reportKey(view *models.Dataset) string {
	return fmt.Sprintf("%s|%s|%d|%d|%d|%d",
		view.OpenField.Version, view.Agrivoltaic.Version,
		view.OpenField.Offset, view.OpenField.Len(),
		view.Agrivoltaic.Offset, view.Agrivoltaic.Len(),
	)
}
