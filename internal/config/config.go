// Package config provides unified configuration for all geotweets tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/geotweets/geotweets/internal/label"
	"github.com/geotweets/geotweets/internal/storage"
)

// Config holds the unified configuration for the geotweets toolkit.
type Config struct {
	// DataDir is the base directory for all derived data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Chunk configuration
	Chunk ChunkConfig `json:"chunk" yaml:"chunk"`

	// Flatten (CSV export) configuration
	Flatten FlattenConfig `json:"flatten" yaml:"flatten"`

	// Store (SQLite load) configuration
	Store StoreConfig `json:"store" yaml:"store"`

	// Recover (legacy archive conversion) configuration
	Recover RecoverConfig `json:"recover" yaml:"recover"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// ChunkConfig holds repartitioning configuration.
type ChunkConfig struct {
	// OutputDir receives the merged chunk files
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// WorkDir holds per-worker partition directories during a run
	WorkDir string `json:"work_dir" yaml:"work_dir"`

	// Jobs is the worker count (default 1)
	Jobs int `json:"jobs" yaml:"jobs"`

	// Label selects and configures the labeling strategy
	Label label.Config `json:"label" yaml:"label"`

	// KeepPartitions leaves partition directories in place after the merge
	KeepPartitions bool `json:"keep_partitions" yaml:"keep_partitions"`

	// PublishPrefix, when set with an s3 storage type, uploads merged
	// chunks under this key prefix
	PublishPrefix string `json:"publish_prefix" yaml:"publish_prefix"`
}

// FlattenConfig holds CSV export configuration.
type FlattenConfig struct {
	// OutputDir receives the flattened CSV files
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Overwrite regenerates CSV files that already exist
	Overwrite bool `json:"overwrite" yaml:"overwrite"`

	// GeometryCacheSize bounds the place-geometry WKB cache (entries)
	GeometryCacheSize int `json:"geometry_cache_size" yaml:"geometry_cache_size"`
}

// StoreConfig holds SQLite load configuration.
type StoreConfig struct {
	// DatabasePath is the SQLite database file
	DatabasePath string `json:"database_path" yaml:"database_path"`

	// BatchSize is the number of records per insert transaction
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// BuildIndexes creates search and spatial indexes after loading
	BuildIndexes bool `json:"build_indexes" yaml:"build_indexes"`
}

// RecoverConfig holds legacy archive conversion configuration.
type RecoverConfig struct {
	// OutputDir receives the converted .json.gz files
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// KeepOriginals leaves the legacy archives in place after conversion
	KeepOriginals bool `json:"keep_originals" yaml:"keep_originals"`

	// Failsafe scans raw archive bytes for record boundaries instead of
	// trusting the serialized stream, recovering around corrupt segments
	Failsafe bool `json:"failsafe" yaml:"failsafe"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// Bucket is the S3 bucket name (for s3 type)
	Bucket string `json:"bucket" yaml:"bucket"`

	// S3 holds client settings (for s3 type)
	S3 storage.S3Config `json:"s3" yaml:"s3"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/geotweets",
		Chunk: ChunkConfig{
			OutputDir: ".",
			WorkDir:   "geotweets-chunker-temp",
			Jobs:      1,
			Label: label.Config{
				Strategy:   label.StrategyDay,
				HashLength: label.DefaultHashLength,
			},
		},
		Flatten: FlattenConfig{
			GeometryCacheSize: 4096,
		},
		Store: StoreConfig{
			BatchSize:    500,
			BuildIndexes: true,
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}
}

// Resolve sets path defaults based on DataDir. Flatten.OutputDir,
// Recover.OutputDir, and Chunk.WorkDir stay empty when unset: empty means
// "next to each input" for the first two and a run-scoped temp directory for
// the work dir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/geotweets"
	}

	if c.Chunk.OutputDir == "" {
		c.Chunk.OutputDir = "."
	}
	if c.Store.DatabasePath == "" {
		c.Store.DatabasePath = filepath.Join(c.DataDir, "tweets.db")
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Chunk.Jobs < 1 {
		return fmt.Errorf("chunk.jobs must be >= 1, got %d", c.Chunk.Jobs)
	}

	switch c.Chunk.Label.Strategy {
	case label.StrategyDay, label.StrategyHash, "":
	default:
		return fmt.Errorf("invalid label strategy: %s (must be day or hash)", c.Chunk.Label.Strategy)
	}

	if c.Flatten.GeometryCacheSize < 1 {
		return fmt.Errorf("flatten.geometry_cache_size must be >= 1, got %d", c.Flatten.GeometryCacheSize)
	}

	if c.Store.BatchSize < 1 {
		return fmt.Errorf("store.batch_size must be >= 1, got %d", c.Store.BatchSize)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage type is s3")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the GEOTWEETS_ prefix. A .env file in the
// working directory is honored when present.
func LoadFromEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("GEOTWEETS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Chunk configuration
	if v := os.Getenv("GEOTWEETS_CHUNK_OUTPUT_DIR"); v != "" {
		cfg.Chunk.OutputDir = v
	}
	if v := os.Getenv("GEOTWEETS_CHUNK_WORK_DIR"); v != "" {
		cfg.Chunk.WorkDir = v
	}
	if v := os.Getenv("GEOTWEETS_CHUNK_JOBS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Chunk.Jobs)
	}
	if v := os.Getenv("GEOTWEETS_CHUNK_STRATEGY"); v != "" {
		cfg.Chunk.Label.Strategy = label.Strategy(v)
	}
	if v := os.Getenv("GEOTWEETS_CHUNK_HASH_LENGTH"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Chunk.Label.HashLength)
	}

	// Flatten configuration
	if v := os.Getenv("GEOTWEETS_FLATTEN_OUTPUT_DIR"); v != "" {
		cfg.Flatten.OutputDir = v
	}
	if v := os.Getenv("GEOTWEETS_FLATTEN_OVERWRITE"); v != "" {
		cfg.Flatten.Overwrite = v == "true" || v == "1"
	}

	// Store configuration
	if v := os.Getenv("GEOTWEETS_STORE_DATABASE"); v != "" {
		cfg.Store.DatabasePath = v
	}
	if v := os.Getenv("GEOTWEETS_STORE_BATCH_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Store.BatchSize)
	}

	// Recover configuration
	if v := os.Getenv("GEOTWEETS_RECOVER_OUTPUT_DIR"); v != "" {
		cfg.Recover.OutputDir = v
	}

	// Storage configuration
	if v := os.Getenv("GEOTWEETS_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("GEOTWEETS_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("GEOTWEETS_S3_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("GEOTWEETS_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("GEOTWEETS_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// Load builds the effective configuration: defaults, then the optional
// config file, then environment overrides, then path resolution and
// validation.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	LoadFromEnv(cfg)
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnsureDirectories creates all configured directories. Empty entries
// (output next to each input, run-scoped work dir) are skipped.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Chunk.OutputDir,
		c.Chunk.WorkDir,
		c.Flatten.OutputDir,
		c.Recover.OutputDir,
		filepath.Dir(c.Store.DatabasePath),
	}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
