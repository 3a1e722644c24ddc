// Package config loads the milk bank server configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Prefix namespaces every environment variable read by Load.
const Prefix = "MILKBANK_"

// Storage drivers accepted by MILKBANK_STORAGE_DRIVER.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageMongo    = "mongo"
)

// Blob drivers accepted by MILKBANK_BLOB_DRIVER.
const (
	BlobFilesystem = "fs"
	BlobS3         = "s3"
	BlobMemory     = "memory"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Storage   Storage
	Blob      Blob
	Log       LogConfig
	Lifecycle LifecycleConfig
	Archive   ArchiveConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Addr string
}

// Storage selects and configures the persistent store backend.
type Storage struct {
	Driver        string
	SQLitePath    string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	MongoURI      string
	MongoDB       string
}

// Blob selects and configures the archive blob store.
type Blob struct {
	Driver      string
	FSRoot      string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string
	Format string
}

// LifecycleConfig holds the clinical policy knobs.
type LifecycleConfig struct {
	ShelfLifeDays                int
	BodyModificationWindowMonths int
}

// ArchiveConfig holds the traceability archive schedule. Retain bounds the
// number of archives kept; zero keeps all of them.
type ArchiveConfig struct {
	Schedule string
	Prefix   string
	Retain   int
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		_ = godotenv.Load()
	}

	redisDB, err := getenvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	shelfLife, err := getenvInt("SHELF_LIFE_DAYS", 180)
	if err != nil {
		return nil, err
	}
	window, err := getenvInt("BODY_MODIFICATION_WINDOW_MONTHS", 0)
	if err != nil {
		return nil, err
	}
	pathStyle, err := getenvBool("BLOB_S3_PATH_STYLE", false)
	if err != nil {
		return nil, err
	}
	retain, err := getenvInt("ARCHIVE_RETAIN", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr: getenvWithDefault("HTTP_ADDR", ":8080"),
		},
		Storage: Storage{
			Driver:        strings.ToLower(getenvWithDefault("STORAGE_DRIVER", StorageSQLite)),
			SQLitePath:    getenvWithDefault("SQLITE_PATH", "./milkbank.db"),
			PostgresDSN:   getenv("POSTGRES_DSN"),
			RedisAddr:     getenvWithDefault("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getenv("REDIS_PASSWORD"),
			RedisDB:       redisDB,
			RedisPrefix:   getenvWithDefault("REDIS_PREFIX", "milkbank:"),
			MongoURI:      getenvWithDefault("MONGO_URI", "mongodb://localhost:27017"),
			MongoDB:       getenvWithDefault("MONGO_DB", "milkbank"),
		},
		Blob: Blob{
			Driver:      strings.ToLower(getenvWithDefault("BLOB_DRIVER", BlobFilesystem)),
			FSRoot:      getenvWithDefault("BLOB_FS_ROOT", "./blobdata"),
			S3Bucket:    getenv("BLOB_S3_BUCKET"),
			S3Region:    getenvWithDefault("BLOB_S3_REGION", "us-east-1"),
			S3Endpoint:  getenv("BLOB_S3_ENDPOINT"),
			S3PathStyle: pathStyle,
		},
		Log: LogConfig{
			Level:  strings.ToLower(getenvWithDefault("LOG_LEVEL", "info")),
			Format: strings.ToLower(getenvWithDefault("LOG_FORMAT", "json")),
		},
		Lifecycle: LifecycleConfig{
			ShelfLifeDays:                shelfLife,
			BodyModificationWindowMonths: window,
		},
		Archive: ArchiveConfig{
			Schedule: getenvWithDefault("ARCHIVE_SCHEDULE", "@daily"),
			Prefix:   getenvWithDefault("ARCHIVE_PREFIX", "archive/"),
			Retain:   retain,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures that required configuration fields are populated and
// driver names are known.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Server.Addr == "" {
		return errors.New(Prefix + "HTTP_ADDR must not be empty")
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New(Prefix + "SQLITE_PATH must be provided")
		}
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New(Prefix + "POSTGRES_DSN must be provided")
		}
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New(Prefix + "REDIS_ADDR must be provided")
		}
	case StorageMongo:
		if c.Storage.MongoURI == "" {
			return errors.New(Prefix + "MONGO_URI must be provided")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Blob.Driver {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if c.Blob.S3Bucket == "" {
			return errors.New(Prefix + "BLOB_S3_BUCKET must be provided")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}

	if c.Lifecycle.ShelfLifeDays <= 0 {
		return errors.New(Prefix + "SHELF_LIFE_DAYS must be positive")
	}
	if c.Lifecycle.BodyModificationWindowMonths < 0 {
		return errors.New(Prefix + "BODY_MODIFICATION_WINDOW_MONTHS must not be negative")
	}
	if c.Archive.Schedule == "" {
		return errors.New(Prefix + "ARCHIVE_SCHEDULE must be provided")
	}
	if c.Archive.Retain < 0 {
		return errors.New(Prefix + "ARCHIVE_RETAIN must not be negative")
	}
	return nil
}

func getenv(key string) string {
	return os.Getenv(Prefix + key)
}

func getenvWithDefault(key, fallback string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s%s must be an integer: %w", Prefix, key, err)
	}
	return v, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	raw := getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s%s must be a boolean: %w", Prefix, key, err)
	}
	return v, nil
}
