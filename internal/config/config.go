package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreFile     = "file"
	StoreMemory   = "memory"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Catalog  CatalogConfig
	Output   OutputConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type ScraperConfig struct {
	ConcurrentLimit int
	Timeout         time.Duration
	ContentionDelay time.Duration
	UserAgent       string
}

type StorageConfig struct {
	Backend    string
	SQLitePath string
	Table      string
	FilePath   string
	RedisKey   string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	Stream       string
	StreamMaxLen int64
}

type CatalogConfig struct {
	TemplatePath    string
	Vendor          string
	CustomLabel     string
	AttributePrefix string
}

type OutputConfig struct {
	Format  string
	Path    string
	Publish bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first; variables already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 10*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Scraper: ScraperConfig{
			ConcurrentLimit: getIntOrDefault("SCRAPER_CONCURRENT_LIMIT", 4),
			Timeout:         getDurationOrDefault("SCRAPER_TIMEOUT", 120*time.Second),
			ContentionDelay: getDurationOrDefault("SCRAPER_CONTENTION_DELAY", time.Second),
			UserAgent:       getEnvOrDefault("SCRAPER_USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64)"),
		},
		Storage: StorageConfig{
			Backend:    strings.ToLower(getEnvOrDefault("RAW_STORE", StoreSQLite)),
			SQLitePath: getEnvOrDefault("RAW_STORE_SQLITE_PATH", "redcat.db"),
			Table:      getEnvOrDefault("RAW_STORE_TABLE", "products_src"),
			FilePath:   getEnvOrDefault("RAW_STORE_FILE_PATH", "raw_pages.json"),
			RedisKey:   getEnvOrDefault("RAW_STORE_REDIS_KEY", "catalog:raw_pages"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "catalog_scraper"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 4)),
		},
		Redis: RedisConfig{
			Addr:         getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:     getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:           getIntOrDefault("REDIS_DB", 0),
			Stream:       getEnvOrDefault("REDIS_STREAM", "stream:catalog_records"),
			StreamMaxLen: int64(getIntOrDefault("REDIS_STREAM_MAXLEN", 0)),
		},
		Catalog: CatalogConfig{
			TemplatePath:    getEnvOrDefault("CATALOG_TEMPLATE", ""),
			Vendor:          getEnvOrDefault("CATALOG_VENDOR", "Redcat"),
			CustomLabel:     getEnvOrDefault("CATALOG_CUSTOM_LABEL", "Redcat"),
			AttributePrefix: getEnvOrDefault("CATALOG_ATTRIBUTE_PREFIX", "data"),
		},
		Output: OutputConfig{
			Format:  strings.ToLower(getEnvOrDefault("OUTPUT_FORMAT", "csv")),
			Path:    getEnvOrDefault("OUTPUT_PATH", "products.csv"),
			Publish: getBoolOrDefault("OUTPUT_PUBLISH", false),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.ConcurrentLimit < 1 {
		return fmt.Errorf("SCRAPER_CONCURRENT_LIMIT must be at least 1")
	}

	if c.Scraper.Timeout <= 0 {
		return fmt.Errorf("SCRAPER_TIMEOUT must be positive")
	}

	if c.Scraper.ContentionDelay < 0 {
		return fmt.Errorf("SCRAPER_CONTENTION_DELAY cannot be negative")
	}

	switch c.Storage.Backend {
	case StoreSQLite, StorePostgres, StoreRedis, StoreFile, StoreMemory:
	default:
		return fmt.Errorf("unknown RAW_STORE %q", c.Storage.Backend)
	}

	if c.Storage.Backend == StorePostgres && c.Database.DBName == "" {
		return fmt.Errorf("DB_NAME is required for the postgres raw store")
	}

	switch c.Output.Format {
	case "csv", "json":
	default:
		return fmt.Errorf("unknown OUTPUT_FORMAT %q", c.Output.Format)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
