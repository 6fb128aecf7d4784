// Package config loads the suggestd configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. Config file (suggestd.yaml in the config dir)
//  3. Environment variables (SUGGESTD_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete suggestd configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Suggest SuggestConfig `yaml:"suggest" json:"suggest"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Port the HTTP listener binds to.
	Port int `yaml:"port" json:"port"`
	// JWTSecret verifies bearer tokens issued by the auth service.
	// Only settable via SUGGESTD_JWT_SECRET; never read from the file.
	JWTSecret string `yaml:"-" json:"-"`
	// RequestTimeout bounds every request; backend calls inherit it
	// through the request context.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// StorageConfig configures the SQLite store shared by catalog and history.
type StorageConfig struct {
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path" json:"db_path"`
}

// IndexConfig configures the full-text product index.
type IndexConfig struct {
	// Path is the bleve index directory. Empty means in-memory (tests).
	Path string `yaml:"path" json:"path"`
	// QueueSize bounds the write-behind replication queue.
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// SuggestConfig configures ranking and merge behavior.
type SuggestConfig struct {
	// SimilarityThreshold is the minimum trigram similarity for the
	// relational fallback and the history filter.
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
	// MinQueryLen short-circuits shorter queries to an empty result.
	MinQueryLen int `yaml:"min_query_len" json:"min_query_len"`
	// ProductLimit is the default limit for catalog-only suggestions.
	ProductLimit int `yaml:"product_limit" json:"product_limit"`
	// SourceLimit is the per-source fetch limit in the merged path.
	SourceLimit int `yaml:"source_limit" json:"source_limit"`
	// MergedLimit is the default limit for merged suggestions.
	MergedLimit int `yaml:"merged_limit" json:"merged_limit"`
	// FrequentMinCount is the minimum purchase count for the
	// frequent-items list suggestion.
	FrequentMinCount int `yaml:"frequent_min_count" json:"frequent_min_count"`
	// FrequentLimit caps the frequent-items list suggestion.
	FrequentLimit int `yaml:"frequent_limit" json:"frequent_limit"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8084,
			RequestTimeout: 10 * time.Second,
			LogLevel:       "info",
		},
		Storage: StorageConfig{
			DBPath: filepath.Join("data", "suggestd.db"),
		},
		Index: IndexConfig{
			Path:      filepath.Join("data", "products.bleve"),
			QueueSize: 256,
		},
		Suggest: SuggestConfig{
			SimilarityThreshold: 0.2,
			MinQueryLen:         2,
			ProductLimit:        10,
			SourceLimit:         5,
			MergedLimit:         8,
			FrequentMinCount:    2,
			FrequentLimit:       15,
		},
	}
}

// Load loads configuration from the specified directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from suggestd.yaml or .yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{"suggestd.yaml", "suggestd.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.RequestTimeout != 0 {
		c.Server.RequestTimeout = other.Server.RequestTimeout
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Storage.DBPath != "" {
		c.Storage.DBPath = other.Storage.DBPath
	}
	if other.Index.Path != "" {
		c.Index.Path = other.Index.Path
	}
	if other.Index.QueueSize != 0 {
		c.Index.QueueSize = other.Index.QueueSize
	}
	if other.Suggest.SimilarityThreshold != 0 {
		c.Suggest.SimilarityThreshold = other.Suggest.SimilarityThreshold
	}
	if other.Suggest.MinQueryLen != 0 {
		c.Suggest.MinQueryLen = other.Suggest.MinQueryLen
	}
	if other.Suggest.ProductLimit != 0 {
		c.Suggest.ProductLimit = other.Suggest.ProductLimit
	}
	if other.Suggest.SourceLimit != 0 {
		c.Suggest.SourceLimit = other.Suggest.SourceLimit
	}
	if other.Suggest.MergedLimit != 0 {
		c.Suggest.MergedLimit = other.Suggest.MergedLimit
	}
	if other.Suggest.FrequentMinCount != 0 {
		c.Suggest.FrequentMinCount = other.Suggest.FrequentMinCount
	}
	if other.Suggest.FrequentLimit != 0 {
		c.Suggest.FrequentLimit = other.Suggest.FrequentLimit
	}
}

// applyEnvOverrides applies SUGGESTD_* environment variables.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SUGGESTD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SUGGESTD_JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("SUGGESTD_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Server.RequestTimeout = d
		}
	}
	if v := os.Getenv("SUGGESTD_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("SUGGESTD_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("SUGGESTD_INDEX_PATH"); v != "" {
		c.Index.Path = v
	}
	if v := os.Getenv("SUGGESTD_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Suggest.SimilarityThreshold = f
		}
	}
}

// Validate checks the final configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %s", c.Server.RequestTimeout)
	}
	if c.Suggest.SimilarityThreshold < 0 || c.Suggest.SimilarityThreshold > 1 {
		return fmt.Errorf("suggest.similarity_threshold must be in 0-1, got %g", c.Suggest.SimilarityThreshold)
	}
	if c.Suggest.MinQueryLen < 1 {
		return fmt.Errorf("suggest.min_query_len must be at least 1, got %d", c.Suggest.MinQueryLen)
	}
	if c.Suggest.SourceLimit < 1 || c.Suggest.MergedLimit < 1 || c.Suggest.ProductLimit < 1 {
		return fmt.Errorf("suggest limits must be positive")
	}
	if c.Index.QueueSize < 1 {
		return fmt.Errorf("index.queue_size must be positive, got %d", c.Index.QueueSize)
	}
	return nil
}
