package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"agrivoltaic-dashboard/internal/config"
	"agrivoltaic-dashboard/internal/models"
	"agrivoltaic-dashboard/internal/repository"
	"agrivoltaic-dashboard/internal/services"
	"agrivoltaic-dashboard/pkg/database"
	"agrivoltaic-dashboard/pkg/logging"
	"agrivoltaic-dashboard/pkg/metrics"
)

func main() {
	sitesFile := flag.String("sites-file", "", "YAML file describing site CSV paths and columns (overrides DATA_SITES_FILE)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *sitesFile != "" {
		if err := config.ApplySitesFile(cfg.Data.Sites, *sitesFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load sites file: %v\n", err)
			os.Exit(1)
		}
	}

	// the ingester always reads CSV, whatever the server is configured to serve
	cfg.Data.Source = config.DataSourceCSV
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("agrivoltaic-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting observation ingestion", logging.Fields{
		"version":     "1.0.0",
		"sites_file":  *sitesFile,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
		"open_field":  cfg.Data.Sites[models.SiteOpenField].Path,
		"agrivoltaic": cfg.Data.Sites[models.SiteAgrivoltaic].Path,
	})

	metricsCollector := metrics.NewCollector("agrivoltaic_ingester", nil)

	db, err := database.NewPostgresDB(ctx, cfg.Database.ConnConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	csvRepo := repository.NewCSVRepository(logger, metricsCollector)
	observationRepo := repository.NewObservationRepository(db, logger, metricsCollector)

	ingestionService := services.NewIngestionService(csvRepo, observationRepo, logger, metricsCollector)

	result, err := ingestionService.IngestSites(ctx, cfg.Data.Sites)
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	for _, site := range result.Sites {
		fmt.Printf("%-12s %6d rows  %2d columns  version %s\n", site.Site, site.Rows, site.Columns, site.Version)
		fmt.Printf("             %s\n", site.Path)
	}
	fmt.Printf("Total Rows:         %d\n", result.TotalRows)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Rows/Second:        %.2f\n", float64(result.TotalRows)/secs)
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{
		"total_rows":       result.TotalRows,
		"duration_seconds": result.Duration.Seconds(),
	})
}
