// Package config loads stockledger deployment settings from a YAML file with
// environment overrides. Precedence, lowest to highest: built-in defaults,
// config file, STOCKLEDGER_* environment variables.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"stockledger/internal/blob"
	"stockledger/internal/core"
	"stockledger/pkg/domain"
)

// StorageConfig selects and parameterizes the persistent store.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// S3Config parameterizes the S3 blob driver.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// BlobConfig selects and parameterizes the blob backend.
type BlobConfig struct {
	Driver string   `yaml:"driver"`
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// Config is the full deployment configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
}

// Default returns the built-in configuration: sqlite storage, filesystem blobs.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Driver:     string(core.StorageSQLite),
			SQLitePath: "stockledger.db",
		},
		Blob: BlobConfig{
			Driver: string(blob.DriverFilesystem),
			FSRoot: "blobdata",
		},
	}
}

// Load reads the optional config file at path, then applies environment
// overrides. An empty path skips the file step.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnvironment()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	clean := filepath.Clean(path)
	ext := filepath.Ext(clean)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s", ext)
	}
	data, err := os.ReadFile(clean) // #nosec G304 -- operator-supplied path
	if err != nil {
		return fmt.Errorf("read config file %s: %w", clean, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", clean, err)
	}
	return nil
}

func (c *Config) applyEnvironment() {
	if v := os.Getenv("STOCKLEDGER_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("STOCKLEDGER_SQLITE_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
	if v := os.Getenv("STOCKLEDGER_POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("STOCKLEDGER_BLOB_DRIVER"); v != "" {
		c.Blob.Driver = v
	}
	if v := os.Getenv("STOCKLEDGER_BLOB_FS_ROOT"); v != "" {
		c.Blob.FSRoot = v
	}
	if v := os.Getenv("STOCKLEDGER_BLOB_S3_BUCKET"); v != "" {
		c.Blob.S3.Bucket = v
	}
	if v := os.Getenv("STOCKLEDGER_BLOB_S3_REGION"); v != "" {
		c.Blob.S3.Region = v
	}
	if v := os.Getenv("STOCKLEDGER_BLOB_S3_ENDPOINT"); v != "" {
		c.Blob.S3.Endpoint = v
	}
	if v := os.Getenv("STOCKLEDGER_BLOB_S3_PATH_STYLE"); v == "true" {
		c.Blob.S3.PathStyle = true
	}
}

// Validate rejects configurations that cannot be opened.
func (c Config) Validate() error {
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverS3, blob.DriverMemory:
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if blob.Driver(c.Blob.Driver) == blob.DriverS3 && c.Blob.S3.Bucket == "" {
		return fmt.Errorf("s3 blob driver requires a bucket")
	}
	return nil
}

// OpenStorage constructs the configured persistent store.
func (c Config) OpenStorage(engine *domain.RulesEngine) (domain.PersistentStore, error) {
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory:
		return core.NewMemoryPersistentStore(engine), nil
	case core.StorageSQLite:
		return core.NewSQLiteStore(c.Storage.SQLitePath, engine)
	case core.StoragePostgres:
		return core.NewPostgresStore(c.Storage.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
}

// OpenBlobStore constructs the configured blob backend.
func (c Config) OpenBlobStore(ctx context.Context) (blob.Store, error) {
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem:
		return blob.NewFilesystem(c.Blob.FSRoot)
	case blob.DriverS3:
		return blob.NewS3(ctx, blob.S3Config{
			Bucket:    c.Blob.S3.Bucket,
			Region:    c.Blob.S3.Region,
			Endpoint:  c.Blob.S3.Endpoint,
			PathStyle: c.Blob.S3.PathStyle,
		})
	case blob.DriverMemory:
		return blob.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
}
