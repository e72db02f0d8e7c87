package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"agrivoltaic-dashboard/internal/models"
	"agrivoltaic-dashboard/pkg/database"
)

// Data sources for observation tables
const (
	DataSourceCSV      = "csv"
	DataSourcePostgres = "postgres"
)

// Session backends for playback cursors
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Logging  LoggingConfig
	Data     DataConfig
	Session  SessionConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ConnConfig converts the settings into a database.Config
func (d DatabaseConfig) ConnConfig() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig controls the playback event feed; no brokers disables it
type KafkaConfig struct {
	Brokers       []string
	TopicPlayback string
}

// Enabled reports whether any broker is configured
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type LoggingConfig struct {
	Level string
}

type DataConfig struct {
	Source          string
	SitesFile       string
	Sites           map[models.Site]models.SiteSpec
	ExportCacheSize int
}

type SessionConfig struct {
	Backend string
	TTL     time.Duration
}

// LoadConfig builds the configuration from the environment, a .env file if
// present, and the optional YAML site file named by DATA_SITES_FILE
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "agrivoltaic"),
			Password:        getEnv("DB_PASSWORD", "agrivoltaic"),
			Database:        getEnv("DB_NAME", "agrivoltaic"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvAsList("KAFKA_BROKERS"),
			TopicPlayback: getEnv("KAFKA_TOPIC_PLAYBACK", "agrivoltaic.playback"),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
		Data: DataConfig{
			Source:          strings.ToLower(getEnv("DATA_SOURCE", DataSourceCSV)),
			SitesFile:       getEnv("DATA_SITES_FILE", ""),
			Sites:           models.DefaultSiteSpecs(),
			ExportCacheSize: getEnvAsInt("EXPORT_CACHE_SIZE", 32),
		},
		Session: SessionConfig{
			Backend: strings.ToLower(getEnv("SESSION_BACKEND", SessionBackendMemory)),
			TTL:     getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		},
	}

	if cfg.Data.SitesFile != "" {
		if err := ApplySitesFile(cfg.Data.Sites, cfg.Data.SitesFile); err != nil {
			return nil, fmt.Errorf("failed to load sites file: %w", err)
		}
	}

	// explicit paths win over the sites file
	overridePath(cfg.Data.Sites, models.SiteOpenField, getEnv("OPEN_FIELD_CSV", ""))
	overridePath(cfg.Data.Sites, models.SiteAgrivoltaic, getEnv("AGRIVOLTAIC_CSV", ""))

	return cfg, nil
}

// Validate checks the configuration for values the services cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Data.Source {
	case DataSourceCSV, DataSourcePostgres:
	default:
		return fmt.Errorf("invalid data source %q, expected %q or %q", c.Data.Source, DataSourceCSV, DataSourcePostgres)
	}

	switch c.Session.Backend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return fmt.Errorf("invalid session backend %q, expected %q or %q", c.Session.Backend, SessionBackendMemory, SessionBackendRedis)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", c.Session.TTL)
	}

	if c.Data.ExportCacheSize < 0 {
		return fmt.Errorf("export cache size must not be negative, got %d", c.Data.ExportCacheSize)
	}

	for _, site := range models.Sites {
		spec, ok := c.Data.Sites[site]
		if !ok {
			return fmt.Errorf("site %s is not configured", site)
		}
		if c.Data.Source == DataSourceCSV && spec.Path == "" {
			return fmt.Errorf("site %s has no CSV path", site)
		}
		for _, field := range models.Fields {
			if _, ok := spec.Column(field); !ok {
				return fmt.Errorf("site %s has no column for field %s", site, field)
			}
		}
	}

	return nil
}

func overridePath(sites map[models.Site]models.SiteSpec, site models.Site, path string) {
	if path == "" {
		return
	}
	spec := sites[site]
	spec.Site = site
	spec.Path = path
	sites[site] = spec
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
