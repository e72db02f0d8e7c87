package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"agrivoltaic-dashboard/internal/config"
	"agrivoltaic-dashboard/internal/events"
	"agrivoltaic-dashboard/internal/handlers"
	"agrivoltaic-dashboard/internal/repository"
	"agrivoltaic-dashboard/internal/services"
	"agrivoltaic-dashboard/internal/session"
	"agrivoltaic-dashboard/pkg/database"
	"agrivoltaic-dashboard/pkg/logging"
	"agrivoltaic-dashboard/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("agrivoltaic-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting agrivoltaic dashboard API server", logging.Fields{
		"version":         version,
		"server_host":     cfg.Server.Host,
		"server_port":     cfg.Server.Port,
		"data_source":     cfg.Data.Source,
		"session_backend": cfg.Session.Backend,
		"kafka_enabled":   cfg.Kafka.Enabled(),
	})

	metricsCollector := metrics.NewCollector("agrivoltaic", nil)

	// Observation source
	var source repository.ObservationSource
	switch cfg.Data.Source {
	case config.DataSourcePostgres:
		db, err := database.NewPostgresDB(ctx, cfg.Database.ConnConfig(), logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
		}
		defer db.Close()
		source = repository.NewObservationRepository(db, logger, metricsCollector)
	default:
		source = repository.NewCSVRepository(logger, metricsCollector)
	}

	// Playback session store
	var store session.Store
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to Redis", logging.Fields{
				"addr": cfg.Redis.Addr,
			}, err)
		}
		defer redisClient.Close()
		store = session.NewRedisStore(redisClient, cfg.Session.TTL)
	default:
		memoryStore := session.NewMemoryStore(cfg.Session.TTL)
		if err := metricsCollector.ObserveActiveSessions(memoryStore.Len); err != nil {
			logger.Warn(ctx, "[STARTUP] Active session gauge not registered", logging.Fields{
				"error": err.Error(),
			})
		}
		store = memoryStore
	}

	// Playback event feed
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled() {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPlayback)
		logger.Info(ctx, "[STARTUP] Publishing playback events", logging.Fields{
			"brokers": cfg.Kafka.Brokers,
			"topic":   cfg.Kafka.TopicPlayback,
		})
	}
	defer publisher.Close()

	// Initialize services
	datasetService := services.NewDatasetService(source, cfg.Data.Sites, logger, metricsCollector)
	playbackService := services.NewPlaybackService(datasetService, store, publisher, logger, metricsCollector)
	presenter := services.NewPresenter(cfg.Data.ExportCacheSize, logger, metricsCollector)
	filterService := services.NewFilterService(datasetService, presenter, logger, metricsCollector)

	// Both tables must load before the server accepts requests
	ds, err := datasetService.Load(ctx)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load observation data", logging.Fields{}, err)
	}
	summary := services.Summarize(ds)
	logger.Info(ctx, "[STARTUP] Observation data loaded", logging.Fields{
		"rows":   summary.RowCount,
		"bounds": summary.Bounds.String(),
	})

	dashboardHandler := handlers.NewDashboardHandler(datasetService, playbackService, filterService, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()
	router.Use(handlers.RequestID)

	dashboardHandler.RegisterRoutes(router)
	handlers.RegisterDocs(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
