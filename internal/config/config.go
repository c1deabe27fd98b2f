// Package config provides unified configuration for the evolve CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything the CLI needs to run an evolution: where the
// declared schema and authored evolutions live, where history is kept,
// which database to execute against, and optional archival.
type Config struct {
	// DataDir is the base directory for locally kept state
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Project locates the declared schema and evolution files
	Project ProjectConfig `json:"project" yaml:"project"`

	// History configures the applied-version store
	History HistoryConfig `json:"history" yaml:"history"`

	// Database configures the target database statements run against
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Archive configures snapshot and run-report archival
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// TrustUnsimulated executes raw SQL without signature validation
	TrustUnsimulated bool `json:"trust_unsimulated" yaml:"trust_unsimulated"`
}

// ProjectConfig locates the project's schema declaration and evolutions.
type ProjectConfig struct {
	// SignaturePath is the declared target schema file (YAML or JSON)
	SignaturePath string `json:"signature_path" yaml:"signature_path"`

	// EvolutionsDir is the root directory of authored evolution files
	EvolutionsDir string `json:"evolutions_dir" yaml:"evolutions_dir"`
}

// HistoryConfig configures the applied-version store.
type HistoryConfig struct {
	// Backend is the store backend: sqlite, postgres
	Backend string `json:"backend" yaml:"backend"`

	// Path is the SQLite database path (for sqlite backend)
	Path string `json:"path" yaml:"path"`

	// URL is the connection string (for postgres backend)
	URL string `json:"url" yaml:"url"`
}

// DatabaseConfig configures the target database. An empty driver means
// statements are generated but never executed.
type DatabaseConfig struct {
	// Driver is the database/sql driver name: sqlite3, pgx
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the driver-specific connection string
	DSN string `json:"dsn" yaml:"dsn"`
}

// ArchiveConfig configures snapshot and run-report archival.
type ArchiveConfig struct {
	// Enabled controls whether runs are archived at all
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Type is the archive backend: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local archive directory (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 archival configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./.evolve",
		Project: ProjectConfig{
			SignaturePath: "./schema.yaml",
			EvolutionsDir: "./evolutions",
		},
		History: HistoryConfig{
			Backend: "sqlite",
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Type:    "local",
		},
	}
}

// Resolve fills in paths derived from DataDir that were left empty.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./.evolve"
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.DataDir, "history.db")
	}
	if c.Archive.Path == "" {
		c.Archive.Path = filepath.Join(c.DataDir, "archive")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.History.Backend {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid history backend: %s (must be sqlite or postgres)", c.History.Backend)
	}
	if c.History.Backend == "postgres" && c.History.URL == "" {
		return fmt.Errorf("history.url is required when history backend is postgres")
	}

	switch c.Database.Driver {
	case "", "sqlite3", "pgx":
	default:
		return fmt.Errorf("invalid database driver: %s (must be sqlite3 or pgx)", c.Database.Driver)
	}
	if c.Database.Driver != "" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when database.driver is set")
	}

	if c.Archive.Type != "local" && c.Archive.Type != "s3" {
		return fmt.Errorf("invalid archive type: %s (must be local or s3)", c.Archive.Type)
	}
	if c.Archive.Enabled && c.Archive.Type == "s3" && c.Archive.S3.Bucket == "" {
		return fmt.Errorf("archive.s3.bucket is required when archive type is s3")
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
// Environment variables use the EVOLVE_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("EVOLVE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("EVOLVE_SIGNATURE_PATH"); v != "" {
		cfg.Project.SignaturePath = v
	}
	if v := os.Getenv("EVOLVE_EVOLUTIONS_DIR"); v != "" {
		cfg.Project.EvolutionsDir = v
	}

	// History configuration
	if v := os.Getenv("EVOLVE_HISTORY_BACKEND"); v != "" {
		cfg.History.Backend = v
	}
	if v := os.Getenv("EVOLVE_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("EVOLVE_HISTORY_URL"); v != "" {
		cfg.History.URL = v
	}

	// Database configuration
	if v := os.Getenv("EVOLVE_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("EVOLVE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Archive configuration
	if v := os.Getenv("EVOLVE_ARCHIVE_ENABLED"); v != "" {
		cfg.Archive.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("EVOLVE_ARCHIVE_TYPE"); v != "" {
		cfg.Archive.Type = v
	}
	if v := os.Getenv("EVOLVE_ARCHIVE_PATH"); v != "" {
		cfg.Archive.Path = v
	}
	if v := os.Getenv("EVOLVE_S3_BUCKET"); v != "" {
		cfg.Archive.S3.Bucket = v
	}
	if v := os.Getenv("EVOLVE_S3_REGION"); v != "" {
		cfg.Archive.S3.Region = v
	}
	if v := os.Getenv("EVOLVE_S3_ENDPOINT"); v != "" {
		cfg.Archive.S3.Endpoint = v
	}
	if v := os.Getenv("EVOLVE_S3_PATH_STYLE"); v != "" {
		cfg.Archive.S3.UsePathStyle = v == "true" || v == "1"
	}

	if v := os.Getenv("EVOLVE_TRUST_UNSIMULATED"); v != "" {
		cfg.TrustUnsimulated = v == "true" || v == "1"
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.Archive.Enabled && c.Archive.Type == "local" {
		dirs = append(dirs, c.Archive.Path)
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
