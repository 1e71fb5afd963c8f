package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ajramos/convview/internal/layout"
)

// Manager provides centralized configuration management with validation and watching
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	watchers []func(*Config)

	// File watching
	configPath   string
	lastModTime  time.Time
	watchCancel  context.CancelFunc
	watchRunning bool
	interval     time.Duration
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config:   DefaultConfig(),
		watchers: make([]func(*Config), 0),
		interval: time.Second,
	}
}

// LoadFromFile loads configuration from a file with validation
func (m *Manager) LoadFromFile(configPath string) error {
	configPath = expandPath(configPath)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	m.applyDefaults(cfg)
	if err := m.validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	m.configPath = configPath
	if stat, err := os.Stat(configPath); err == nil {
		m.lastModTime = stat.ModTime()
	}
	watchers := append([]func(*Config){}, m.watchers...)
	m.mu.Unlock()

	notify(watchers, cfg)
	return nil
}

// GetConfig returns a copy of the current configuration
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyConfig(m.config)
}

// UpdateConfig replaces the configuration after validation
func (m *Manager) UpdateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	m.applyDefaults(cfg)
	if err := m.validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	watchers := append([]func(*Config){}, m.watchers...)
	m.mu.Unlock()

	notify(watchers, cfg)
	return nil
}

// SaveToFile saves the current configuration to a file
func (m *Manager) SaveToFile(filePath string) error {
	m.mu.RLock()
	cfg := copyConfig(m.config)
	m.mu.RUnlock()

	if err := cfg.SaveConfig(filePath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// AddWatcher adds a configuration change watcher. Watchers run synchronously after a change.
func (m *Manager) AddWatcher(watcher func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers = append(m.watchers, watcher)
}

// Watch polls the configuration file and reloads it when it changes
func (m *Manager) Watch(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.configPath == "" {
		return fmt.Errorf("no config file path set")
	}
	if m.watchRunning {
		return fmt.Errorf("already watching configuration file")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.watchCancel = func() {
		cancel()
		<-done
	}
	m.watchRunning = true

	go func() {
		defer close(done)
		m.watchConfigFile(watchCtx)
	}()
	return nil
}

// StopWatching stops watching the configuration file and waits for the watcher to exit
func (m *Manager) StopWatching() {
	m.mu.Lock()
	stop := m.watchCancel
	m.watchCancel = nil
	m.watchRunning = false
	m.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (m *Manager) validateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if cfg.Layout.ViewportWidth <= 0 || cfg.Layout.ViewportHeight <= 0 {
		return fmt.Errorf("invalid viewport dimensions")
	}
	if cfg.Layout.CharWidth <= 0 || cfg.Layout.LineHeight <= 0 {
		return fmt.Errorf("invalid text metrics")
	}
	if cfg.Images.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Images.Timeout); err != nil {
			return fmt.Errorf("invalid image timeout: %w", err)
		}
	}
	if cfg.Images.Workers < 0 {
		return fmt.Errorf("invalid image workers: %d", cfg.Images.Workers)
	}
	return nil
}

func (m *Manager) applyDefaults(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Layout == (layout.Metrics{}) {
		cfg.Layout = defaults.Layout
	}
	if len(cfg.Policy.AllowedSchemes) == 0 {
		cfg.Policy.AllowedSchemes = defaults.Policy.AllowedSchemes
	}
	if cfg.Colors == nil {
		cfg.Colors = defaults.Colors
	}
}

func copyConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	c := *cfg
	c.Policy.AllowedSchemes = append([]string(nil), cfg.Policy.AllowedSchemes...)
	if cfg.Colors != nil {
		colors := *cfg.Colors
		c.Colors = &colors
	}
	return &c
}

func notify(watchers []func(*Config), cfg *Config) {
	for _, watcher := range watchers {
		watcher(copyConfig(cfg))
	}
}

func (m *Manager) watchConfigFile(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkConfigFileChanges()
		}
	}
}

func (m *Manager) checkConfigFileChanges() {
	m.mu.RLock()
	configPath := m.configPath
	lastModTime := m.lastModTime
	m.mu.RUnlock()

	if configPath == "" {
		return
	}
	stat, err := os.Stat(configPath)
	if err != nil {
		return
	}
	if stat.ModTime().After(lastModTime) {
		// File has been modified, reload it
		_ = m.LoadFromFile(configPath)
	}
}
