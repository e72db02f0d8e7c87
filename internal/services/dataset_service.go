package services

import (
	"context"
	"fmt"
	"sort"

	"agrivoltaic-dashboard/internal/models"
	"agrivoltaic-dashboard/internal/repository"
	"agrivoltaic-dashboard/pkg/logging"
	"agrivoltaic-dashboard/pkg/metrics"
)

// DatasetService loads both site tables and checks that they can be
// compared row by row
type DatasetService struct {
	source  repository.ObservationSource
	specs   map[models.Site]models.SiteSpec
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewDatasetService creates a new dataset service
func NewDatasetService(source repository.ObservationSource, specs map[models.Site]models.SiteSpec, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *DatasetService {
	return &DatasetService{
		source:  source,
		specs:   specs,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Specs returns the site specs the service loads from
func (s *DatasetService) Specs() map[models.Site]models.SiteSpec {
	return s.specs
}

// Load returns the aligned dataset. Any error halts the pipeline: no
// partial dataset is ever returned.
func (s *DatasetService) Load(ctx context.Context) (*models.Dataset, error) {
	ds := &models.Dataset{Specs: s.specs}

	for _, site := range models.Sites {
		spec, ok := s.specs[site]
		if !ok {
			return nil, fmt.Errorf("site %s is not configured", site)
		}
		spec.Site = site

		table, err := s.source.LoadTable(ctx, spec)
		if err != nil {
			s.logger.Error(ctx, "[DATASET_LOAD_ERROR] Failed to load site table", logging.Fields{
				"site": site,
				"path": spec.Path,
			}, err)
			return nil, err
		}

		if err := RequireColumns(table, spec); err != nil {
			return nil, err
		}

		switch site {
		case models.SiteOpenField:
			ds.OpenField = table
		case models.SiteAgrivoltaic:
			ds.Agrivoltaic = table
		}
	}

	if err := CheckAlignment(ds.OpenField, ds.Agrivoltaic); err != nil {
		s.logger.Error(ctx, "[DATASET_ALIGNMENT_ERROR] Site tables are not aligned", logging.Fields{
			"open_field_rows":  ds.OpenField.Len(),
			"agrivoltaic_rows": ds.Agrivoltaic.Len(),
		}, err)
		return nil, err
	}

	return ds, nil
}

// RequireColumns checks that table holds a column for every tracked field
func RequireColumns(table *models.Table, spec models.SiteSpec) error {
	for _, field := range models.Fields {
		column, ok := spec.Column(field)
		if !ok {
			return &models.ValidationError{
				Field:   string(field),
				Message: fmt.Sprintf("site %s has no column configured for %s", spec.Site, field),
			}
		}
		if _, ok := table.ColumnIndex(column); !ok {
			return &models.ValidationError{
				Field:   column,
				Message: fmt.Sprintf("site %s is missing required column %q", spec.Site, column),
			}
		}
	}
	return nil
}

// CheckAlignment requires equal row counts and equal timestamps at every
// position. Mismatches are rejected, never interpolated.
func CheckAlignment(openField, agrivoltaic *models.Table) error {
	if openField.Len() != agrivoltaic.Len() {
		return &models.AlignmentError{
			Row:    -1,
			Reason: fmt.Sprintf("open field has %d rows, agrivoltaic has %d", openField.Len(), agrivoltaic.Len()),
		}
	}
	for i := range openField.Rows {
		a, b := openField.Rows[i].Time, agrivoltaic.Rows[i].Time
		if !a.Equal(b) {
			return &models.AlignmentError{
				Row:    i,
				Reason: fmt.Sprintf("open field time %s differs from agrivoltaic time %s", a.Format(timeLayout), b.Format(timeLayout)),
			}
		}
	}
	return nil
}

// DataBounds returns the calendar dates of the first and last rows
func DataBounds(ds *models.Dataset) (models.DateRange, bool) {
	first, last, ok := ds.OpenField.Bounds()
	if !ok {
		return models.DateRange{}, false
	}
	return models.DateRange{Start: models.DateOf(first), End: models.DateOf(last)}, true
}

// Summarize describes a loaded dataset
func Summarize(ds *models.Dataset) models.DatasetSummary {
	summary := models.DatasetSummary{RowCount: ds.Len()}
	if first, last, ok := ds.OpenField.Bounds(); ok {
		summary.FirstTime = first
		summary.LastTime = last
	}
	summary.Bounds, _ = DataBounds(ds)

	for _, site := range models.Sites {
		table := ds.Table(site)
		spec := ds.Spec(site)
		summary.Sites = append(summary.Sites, models.SiteSummary{
			Site:    site,
			Label:   spec.DisplayLabel(),
			Columns: table.Columns,
			Version: table.Version,
		})
	}
	sort.SliceStable(summary.Sites, func(i, j int) bool {
		return siteOrder(summary.Sites[i].Site) < siteOrder(summary.Sites[j].Site)
	})
	return summary
}

func siteOrder(s models.Site) int {
	for i, site := range models.Sites {
		if site == s {
			return i
		}
	}
	return len(models.Sites)
}
