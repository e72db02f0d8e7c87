package repository

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"agrivoltaic-dashboard/internal/models"
	"agrivoltaic-dashboard/pkg/logging"
	"agrivoltaic-dashboard/pkg/metrics"
)

// ObservationSource provides the observation table of a site
type ObservationSource interface {
	LoadTable(ctx context.Context, spec models.SiteSpec) (*models.Table, error)
}

// timestampLayouts are tried in order against the first column
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// CSVRepository loads site tables from CSV exports and memoizes them by
// site and path for the lifetime of the process
type CSVRepository struct {
	mu      sync.Mutex
	cache   map[string]*models.Table
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCSVRepository creates a new CSV-backed observation source
func NewCSVRepository(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *CSVRepository {
	return &CSVRepository{
		cache:   make(map[string]*models.Table),
		logger:  logger,
		metrics: metricsCollector,
	}
}

// LoadTable returns the parsed table at spec.Path, reading the file only on
// the first call for that site and path
func (r *CSVRepository) LoadTable(ctx context.Context, spec models.SiteSpec) (*models.Table, error) {
	key := string(spec.Site) + "\x00" + filepath.Clean(spec.Path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if table, ok := r.cache[key]; ok {
		r.metrics.RecordCacheLookup(true)
		return table, nil
	}
	r.metrics.RecordCacheLookup(false)

	timer := r.metrics.NewTimer(r.metrics.LoaderDuration.WithLabelValues("csv"))
	table, err := ReadCSVFile(spec.Site, spec.Path)
	duration := timer.ObserveDuration()
	if err != nil {
		return nil, err
	}

	r.cache[key] = table
	r.metrics.LoaderRowsTotal.WithLabelValues(string(spec.Site)).Add(float64(table.Len()))

	r.logger.Info(ctx, "[LOADER_CSV] Observation table loaded", logging.Fields{
		"site":        spec.Site,
		"path":        spec.Path,
		"rows":        table.Len(),
		"columns":     len(table.Columns),
		"version":     table.Version,
		"duration_ms": duration.Milliseconds(),
	})

	return table, nil
}

// ReadCSVFile reads and parses a site table from disk
func ReadCSVFile(site models.Site, path string) (*models.Table, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-provided data path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &models.NotFoundError{
				Resource: models.ResourceObservationFile,
				ID:       path,
			}
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	table, err := ParseCSV(site, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return table, nil
}

// ParseCSV parses CSV content whose first column is a timestamp and whose
// remaining columns are numeric. Empty cells become NaN.
func ParseCSV(site models.Site, data []byte) (*models.Table, error) {
	sum := sha256.Sum256(data)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &models.ValidationError{
			Field:   "header",
			Message: "file is empty, expected a header row",
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) < 2 {
		return nil, &models.ValidationError{
			Field:   "header",
			Value:   strings.Join(header, ","),
			Message: "expected a timestamp column followed by at least one value column",
		}
	}

	table := &models.Table{
		Site:       site,
		TimeColumn: strings.TrimPrefix(strings.TrimSpace(header[0]), "\ufeff"),
		Columns:    make([]string, len(header)-1),
		Version:    hex.EncodeToString(sum[:]),
	}
	for i, name := range header[1:] {
		table.Columns[i] = strings.TrimSpace(name)
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		ts, err := ParseTimestamp(record[0])
		if err != nil {
			return nil, &models.ValidationError{
				Field:   table.TimeColumn,
				Value:   record[0],
				Message: fmt.Sprintf("line %d: unrecognised timestamp %q", line, record[0]),
			}
		}
		if n := len(table.Rows); n > 0 && !ts.After(table.Rows[n-1].Time) {
			return nil, &models.ValidationError{
				Field:   table.TimeColumn,
				Value:   record[0],
				Message: fmt.Sprintf("line %d: timestamps must be strictly ascending", line),
			}
		}

		values := make([]float64, len(record)-1)
		for i, cell := range record[1:] {
			v, err := parseValue(cell)
			if err != nil {
				problem := "is not numeric"
				if errors.Is(err, errNotFinite) {
					problem = "must be finite"
				}
				return nil, &models.ValidationError{
					Field:   table.Columns[i],
					Value:   cell,
					Message: fmt.Sprintf("line %d: column %q %s", line, table.Columns[i], problem),
				}
			}
			values[i] = v
		}

		table.Rows = append(table.Rows, models.Observation{Time: ts, Values: values})
	}

	if table.Empty() {
		return nil, &models.ValidationError{
			Field:   "rows",
			Message: "file contains no observations",
		}
	}

	return table, nil
}

// ParseTimestamp accepts the ISO-like layouts produced by common dataframe
// exports. Values without an offset are taken as UTC and every result is
// normalized to UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

var errNotFinite = errors.New("value is not finite")

// parseValue reads one numeric cell. Empty cells are NaN; infinities are
// rejected since they have no JSON encoding.
func parseValue(cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}
