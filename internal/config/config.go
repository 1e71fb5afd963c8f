package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/ajramos/convview/internal/conversation"
	"github.com/ajramos/convview/internal/host"
	"github.com/ajramos/convview/internal/imageload"
	"github.com/ajramos/convview/internal/layout"
)

// ImagesConfig controls remote image fetching
type ImagesConfig struct {
	Workers   int    `json:"workers"`
	Timeout   string `json:"timeout"`
	MaxBytes  int64  `json:"max_bytes"`
	UserAgent string `json:"user_agent"`
	// CacheSizes keeps the size of fetched images in the database
	CacheSizes bool `json:"cache_sizes"`
}

// Config holds all configuration for convview
type Config struct {
	// Storage
	DatabasePath string `json:"database_path"`

	// Logging
	LogFile string `json:"log_file"`

	// Conventions overrides, YAML (relative to config dir or absolute)
	ConventionsFile string `json:"conventions_file"`

	// Content view
	Layout  layout.Metrics      `json:"layout"`
	Heights host.Heights        `json:"heights"`
	Policy  conversation.Policy `json:"images_policy"`
	Images  ImagesConfig        `json:"images"`

	// Inspector colors
	Colors *ColorsConfig `json:"colors,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DatabasePath: "",
		LogFile:      "",
		Layout:       layout.DefaultMetrics(),
		Heights:      host.DefaultHeights(),
		Policy:       conversation.DefaultPolicy(),
		Images:       DefaultImagesConfig(),
		Colors:       DefaultColors(),
	}
}

// DefaultImagesConfig returns default image fetch settings
func DefaultImagesConfig() ImagesConfig {
	d := imageload.DefaultConfig()
	return ImagesConfig{
		Workers:    d.Workers,
		Timeout:    d.Timeout.String(),
		MaxBytes:   d.MaxBytes,
		UserAgent:  d.UserAgent,
		CacheSizes: true,
	}
}

// LoadConfig loads configuration from file. A missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	return cfg, nil
}

// DefaultConfigDir returns the directory holding convview's files
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "convview")
}

// DefaultConfigPath returns the configuration file path, honouring CONVVIEW_CONFIG
func DefaultConfigPath() string {
	if p := os.Getenv("CONVVIEW_CONFIG"); p != "" {
		return p
	}
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.json")
}

// DefaultDatabasePath returns the default conversation database path
func DefaultDatabasePath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "conversations.db")
}

// DefaultLogDir returns the default log directory path
func DefaultLogDir() string {
	return DefaultConfigDir()
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ResolvedDatabasePath returns the configured database path or the default one
func (c *Config) ResolvedDatabasePath() string {
	if c.DatabasePath != "" {
		return expandPath(c.DatabasePath)
	}
	return DefaultDatabasePath()
}

// ResolvedConventionsFile returns the conventions file path made absolute against the config dir
func (c *Config) ResolvedConventionsFile() string {
	if c.ConventionsFile == "" {
		return ""
	}
	p := expandPath(c.ConventionsFile)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(DefaultConfigPath()), p)
}

// GetImageTimeout returns the parsed image fetch timeout
func (c *Config) GetImageTimeout() time.Duration {
	if c.Images.Timeout != "" {
		if d, err := time.ParseDuration(c.Images.Timeout); err == nil {
			return d
		}
	}
	return imageload.DefaultConfig().Timeout
}

// LoaderConfig converts the image settings for the image loader
func (c *Config) LoaderConfig() *imageload.Config {
	return &imageload.Config{
		Workers:   c.Images.Workers,
		Timeout:   c.GetImageTimeout(),
		MaxBytes:  c.Images.MaxBytes,
		UserAgent: c.Images.UserAgent,
	}
}

func expandPath(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
