package services

import (
	"context"
	"fmt"
	"time"

	"agrivoltaic-dashboard/internal/models"
	"agrivoltaic-dashboard/internal/repository"
	"agrivoltaic-dashboard/pkg/logging"
	"agrivoltaic-dashboard/pkg/metrics"
)

// TableWriter persists both site tables of a dataset atomically
type TableWriter interface {
	SaveTables(ctx context.Context, ds *models.Dataset) error
}

// IngestionService copies site tables from CSV exports into a TableWriter
type IngestionService struct {
	source  repository.ObservationSource
	writer  TableWriter
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	Sites     []SiteIngestion
	TotalRows int
	Duration  time.Duration
}

// SiteIngestion describes one stored table
type SiteIngestion struct {
	Site    models.Site
	Path    string
	Rows    int
	Columns int
	Version string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(source repository.ObservationSource, writer TableWriter, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		source:  source,
		writer:  writer,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestSites parses every site's CSV and stores the tables. Nothing is
// written unless both tables parse, carry the tracked columns and align.
func (s *IngestionService) IngestSites(ctx context.Context, specs map[models.Site]models.SiteSpec) (*IngestionResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting site table ingestion", logging.Fields{
		"sites": len(specs),
		"stage": "INITIALIZATION",
	})

	ds := &models.Dataset{Specs: specs}
	for _, site := range models.Sites {
		spec, ok := specs[site]
		if !ok {
			return nil, fmt.Errorf("site %s is not configured", site)
		}
		spec.Site = site

		table, err := s.source.LoadTable(ctx, spec)
		if err != nil {
			s.metrics.RecordIngestionError("parse_error")
			s.logger.Error(ctx, "[INGEST_FILE_ERROR] Site file could not be parsed", logging.Fields{
				"site":  site,
				"path":  spec.Path,
				"stage": "FILE_PROCESSING",
			}, err)
			return nil, fmt.Errorf("failed to load %s: %w", site, err)
		}
		if err := RequireColumns(table, spec); err != nil {
			s.metrics.RecordIngestionError("column_error")
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
		s.metrics.RecordIngestionError("alignment_error")
		return nil, err
	}

	if err := s.writer.SaveTables(ctx, ds); err != nil {
		s.metrics.RecordIngestionError("store_error")
		s.logger.Error(ctx, "[INGEST_STORE_ERROR] Site tables could not be stored", logging.Fields{
			"stage": "DATABASE_INSERT",
		}, err)
		return nil, fmt.Errorf("failed to store site tables: %w", err)
	}

	result := &IngestionResult{}
	for _, site := range models.Sites {
		spec := ds.Spec(site)
		table := ds.Table(site)

		result.Sites = append(result.Sites, SiteIngestion{
			Site:    site,
			Path:    spec.Path,
			Rows:    table.Len(),
			Columns: len(table.Columns),
			Version: table.Version,
		})
		result.TotalRows += table.Len()

		s.logger.WithFields(logging.Fields{"site": site, "path": spec.Path}).Info(ctx, "[INGEST_FILE_SUCCESS] Site table stored", logging.Fields{
			"rows":    table.Len(),
			"version": table.Version,
			"stage":   "FILE_COMPLETE",
		})
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Site table ingestion completed", logging.Fields{
		"sites":            len(result.Sites),
		"total_rows":       result.TotalRows,
		"duration_seconds": result.Duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return result, nil
}
