package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"agrivoltaic-dashboard/internal/models"
	"agrivoltaic-dashboard/pkg/database"
	"agrivoltaic-dashboard/pkg/logging"
	"agrivoltaic-dashboard/pkg/metrics"
)

// ObservationRepository stores site tables in PostgreSQL
type ObservationRepository interface {
	ObservationSource

	// SaveTables replaces the stored tables of every site in ds. Either
	// all sites are written or none are.
	SaveTables(ctx context.Context, ds *models.Dataset) error

	// HealthCheck pings the backing database
	HealthCheck(ctx context.Context) error
}

// tableHeader is a row of observation_tables
type tableHeader struct {
	Site       string         `db:"site"`
	Label      string         `db:"label"`
	TimeColumn string         `db:"time_column"`
	Columns    pq.StringArray `db:"columns"`
	Version    string         `db:"version"`
	SourcePath string         `db:"source_path"`
	RowCount   int            `db:"row_count"`
	LoadedAt   time.Time      `db:"loaded_at"`
}

// observationRow is a row of observations
type observationRow struct {
	ObservedAt time.Time       `db:"observed_at"`
	Values     pq.Float64Array `db:"vals"`
}

// observationRepository implements ObservationRepository
type observationRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector

	mu    sync.Mutex
	cache map[models.Site]*models.Table
}

// NewObservationRepository creates a new PostgreSQL observation repository
func NewObservationRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ObservationRepository {
	return &observationRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
		cache:   make(map[models.Site]*models.Table),
	}
}

// LoadTable reads a site table. Rows are re-read only when the stored
// version differs from the cached one.
func (r *observationRepository) LoadTable(ctx context.Context, spec models.SiteSpec) (*models.Table, error) {
	query := `
		SELECT site, label, time_column, columns, version, source_path, row_count, loaded_at
		FROM observation_tables
		WHERE site = $1
	`

	var header tableHeader
	err := r.db.GetContext(ctx, "get_observation_table", &header, query, string(spec.Site))
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{
			Resource: models.ResourceObservationTable,
			ID:       string(spec.Site),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get observation table: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache[spec.Site]; ok && cached.Version == header.Version {
		r.metrics.RecordCacheLookup(true)
		return cached, nil
	}
	r.metrics.RecordCacheLookup(false)

	timer := r.metrics.NewTimer(r.metrics.LoaderDuration.WithLabelValues("postgres"))

	var rows []observationRow
	err = r.db.SelectContext(ctx, "list_observations", &rows, `
		SELECT observed_at, vals
		FROM observations
		WHERE site = $1
		ORDER BY row_index
	`, string(spec.Site))
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}

	table, err := buildTable(spec.Site, header, rows)
	if err != nil {
		return nil, err
	}
	duration := timer.ObserveDuration()

	r.cache[spec.Site] = table
	r.metrics.LoaderRowsTotal.WithLabelValues(string(spec.Site)).Add(float64(table.Len()))

	r.logger.Info(ctx, "[LOADER_POSTGRES] Observation table loaded", logging.Fields{
		"site":        spec.Site,
		"rows":        table.Len(),
		"version":     table.Version,
		"loaded_at":   header.LoadedAt,
		"duration_ms": duration.Milliseconds(),
	})

	return table, nil
}

// buildTable converts stored rows into a table, checking them against the header
func buildTable(site models.Site, header tableHeader, rows []observationRow) (*models.Table, error) {
	if len(rows) != header.RowCount {
		return nil, &models.ValidationError{
			Field:   "row_count",
			Value:   fmt.Sprint(len(rows)),
			Message: fmt.Sprintf("stored table %s has %d rows, header records %d", site, len(rows), header.RowCount),
		}
	}
	if len(rows) == 0 {
		return nil, &models.ValidationError{
			Field:   "rows",
			Message: fmt.Sprintf("stored table %s contains no observations", site),
		}
	}

	table := &models.Table{
		Site:       site,
		TimeColumn: header.TimeColumn,
		Columns:    []string(header.Columns),
		Version:    header.Version,
		Rows:       make([]models.Observation, len(rows)),
	}
	for i, row := range rows {
		if len(row.Values) != len(table.Columns) {
			return nil, &models.ValidationError{
				Field:   "vals",
				Value:   fmt.Sprint(len(row.Values)),
				Message: fmt.Sprintf("stored row %d of %s has %d values, expected %d", i, site, len(row.Values), len(table.Columns)),
			}
		}
		table.Rows[i] = models.Observation{
			Time:   row.ObservedAt.UTC(),
			Values: []float64(row.Values),
		}
	}
	return table, nil
}

// SaveTables replaces the header and rows of every site in one transaction
func (r *observationRepository) SaveTables(ctx context.Context, ds *models.Dataset) error {
	timer := time.Now()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, site := range models.Sites {
		table := ds.Table(site)
		if table == nil {
			return fmt.Errorf("no table for site %s", site)
		}
		if err := saveTable(ctx, tx, ds.Spec(site), table); err != nil {
			return fmt.Errorf("failed to store %s: %w", site, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_SAVE_TABLES] Site tables stored", logging.Fields{
		"rows":        ds.Len(),
		"duration_ms": time.Since(timer).Milliseconds(),
	})
	return nil
}

// saveTable upserts one site's header and replaces its rows inside tx
func saveTable(ctx context.Context, tx *sqlx.Tx, spec models.SiteSpec, table *models.Table) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO observation_tables (
			site, label, time_column, columns, version, source_path, row_count, loaded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (site) DO UPDATE SET
			label = EXCLUDED.label,
			time_column = EXCLUDED.time_column,
			columns = EXCLUDED.columns,
			version = EXCLUDED.version,
			source_path = EXCLUDED.source_path,
			row_count = EXCLUDED.row_count,
			loaded_at = EXCLUDED.loaded_at
	`,
		string(spec.Site),
		spec.DisplayLabel(),
		table.TimeColumn,
		pq.StringArray(table.Columns),
		table.Version,
		spec.Path,
		table.Len(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert observation table: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM observations WHERE site = $1`, string(spec.Site)); err != nil {
		return fmt.Errorf("failed to clear observations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (site, row_index, observed_at, vals)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, row := range table.Rows {
		if _, err := stmt.ExecContext(ctx, string(spec.Site), i, row.Time, pq.Float64Array(row.Values)); err != nil {
			return fmt.Errorf("failed to insert observation %d: %w", i, err)
		}
	}
	return nil
}

// HealthCheck performs a repository health check
func (r *observationRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
