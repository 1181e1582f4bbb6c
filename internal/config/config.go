// Package config loads runtime configuration from the environment, with an
// optional .env file for local runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Record store backends.
const (
	RecordStoreFirestore = "firestore"
	RecordStoreBadger    = "badger"
	RecordStorePostgres  = "postgres"
)

// Object storage backends.
const (
	StorageGCS   = "gcs"
	StorageS3    = "s3"
	StorageLocal = "local"
)

type Config struct {
	RecordStore string
	// RecordTable is the Firestore collection, the badger directory or the
	// postgres table prefix, depending on RecordStore.
	RecordTable string

	StorageBackend   string
	StorageContainer string
	// StorageRoot is the base directory of the local storage backend.
	StorageRoot string

	ProjectID    string
	DatabaseURL  string
	AwsRegion    string
	AwsAccessKey string
	AwsSecretKey string

	WorkflowID       string
	WorkflowLocation string

	SectionWriteConcurrency int
	IngestTimeout           time.Duration
	DocumentType            string

	LogLevel  string
	LogFormat string
	Port      string
}

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := GetEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not an integer", key, v)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := GetEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a duration", key, v)
	}
	return d, nil
}

// Load reads the configuration and validates that every variable required by
// the selected backends is set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		RecordStore:      GetEnv("RECORD_STORE", RecordStoreFirestore),
		RecordTable:      GetEnv("RECORD_TABLE", ""),
		StorageBackend:   GetEnv("STORAGE_BACKEND", StorageGCS),
		StorageContainer: GetEnv("STORAGE_CONTAINER", ""),
		StorageRoot:      GetEnv("STORAGE_ROOT", "."),
		ProjectID:        GetEnv("PROJECT_ID", ""),
		DatabaseURL:      GetEnv("DATABASE_URL", ""),
		AwsRegion:        GetEnv("AWS_REGION", "us-east-2"),
		AwsAccessKey:     GetEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:     GetEnv("AWS_SECRET_KEY", ""),
		WorkflowID:       GetEnv("WORKFLOW_ID", ""),
		WorkflowLocation: GetEnv("WORKFLOW_LOCATION", "us-central1"),
		DocumentType:     GetEnv("DOCUMENT_TYPE", "Policy"),
		LogLevel:         GetEnv("LOG_LEVEL", "info"),
		LogFormat:        GetEnv("LOG_FORMAT", "json"),
		Port:             GetEnv("PORT", "8080"),
	}

	var err error
	if cfg.SectionWriteConcurrency, err = getEnvInt("SECTION_WRITE_CONCURRENCY", 10); err != nil {
		return nil, err
	}
	if cfg.IngestTimeout, err = getEnvDuration("INGEST_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RecordTable == "" {
		cfg.RecordTable = defaultRecordTable(cfg.RecordStore)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultRecordTable(store string) string {
	switch store {
	case RecordStoreBadger:
		return "data/records"
	case RecordStorePostgres:
		return ""
	default:
		return "documents"
	}
}

// Validate fails fast on a missing or unknown setting.
func (c *Config) Validate() error {
	switch c.RecordStore {
	case RecordStoreFirestore:
		if c.ProjectID == "" {
			return fmt.Errorf("PROJECT_ID environment variable must be set for RECORD_STORE=%s", c.RecordStore)
		}
	case RecordStorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable must be set for RECORD_STORE=%s", c.RecordStore)
		}
	case RecordStoreBadger:
	default:
		return fmt.Errorf("unknown RECORD_STORE %q", c.RecordStore)
	}

	switch c.StorageBackend {
	case StorageGCS, StorageLocal:
	case StorageS3:
		if c.AwsRegion == "" {
			return fmt.Errorf("AWS_REGION environment variable must be set for STORAGE_BACKEND=%s", c.StorageBackend)
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.WorkflowID != "" && c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set when WORKFLOW_ID is set")
	}
	if c.SectionWriteConcurrency <= 0 {
		return fmt.Errorf("SECTION_WRITE_CONCURRENCY must be positive, got %d", c.SectionWriteConcurrency)
	}
	return nil
}
