package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"agrivoltaic-dashboard/internal/config"
	"agrivoltaic-dashboard/migrations"
	"agrivoltaic-dashboard/pkg/database"
	"agrivoltaic-dashboard/pkg/logging"
	"agrivoltaic-dashboard/pkg/metrics"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	scripts, err := migrations.Scripts(migrations.Direction(*direction))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("agrivoltaic-migrate", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	metricsCollector := metrics.NewCollector("agrivoltaic_migrate", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.NewPostgresDB(ctx, cfg.Database.ConnConfig(), logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Connected to database successfully")

	for _, script := range scripts {
		fmt.Printf("Running migration: %s\n", script.Name)

		if _, err := db.ExecContext(ctx, "migrate", script.SQL); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to execute migration %s: %v\n", script.Name, err)
			db.Close()
			os.Exit(1)
		}
	}

	fmt.Println("Migration completed successfully")
}
