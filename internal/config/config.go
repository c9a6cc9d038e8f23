// Package config loads the JSON configuration file and carries the
// proactive-usage thresholds that the heuristic engine reads. The engine
// itself lives outside this module; it pushes updated values in through the
// setters here.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/endlessblink/Like-I-Said-memory-mcp-server-sub006/internal/storage"
)

// Config represents the memory store configuration.
type Config struct {
	DataDir   string          `json:"data_dir,omitempty"`
	Storage   StorageConfig   `json:"storage"`
	Vector    VectorConfig    `json:"vector,omitempty"`
	Proactive ProactiveConfig `json:"proactive,omitempty"`
}

// StorageConfig contains storage backend settings.
type StorageConfig struct {
	// Path is the target database path (derived from the data dir if empty).
	Path string `json:"path,omitempty"`

	// ForceVariant pins one backend variant, disabling fallback.
	// One of "native-binary", "embedded-engine", "flat-file".
	ForceVariant string `json:"force_variant,omitempty"`
}

// VectorConfig holds settings for the similarity index.
type VectorConfig struct {
	IndexDir  string `json:"index_dir,omitempty"`  // Snapshot directory (derived from data dir if empty)
	EmbedDims int    `json:"embed_dims,omitempty"` // Hashing embedder dimensions (default 512)
}

// ProactiveConfig carries the trigger thresholds read by the external
// proactive-usage heuristic engine.
type ProactiveConfig struct {
	Enabled          bool    `json:"enabled"`
	Aggressiveness   string  `json:"aggressiveness,omitempty"`    // "conservative", "balanced", "aggressive"
	TriggerThreshold float64 `json:"trigger_threshold,omitempty"` // 0..1, minimum relevance before surfacing
	CooldownSeconds  int     `json:"cooldown_seconds,omitempty"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Vector: VectorConfig{EmbedDims: 512},
		Proactive: ProactiveConfig{
			Enabled:          true,
			Aggressiveness:   "balanced",
			TriggerThreshold: 0.3,
			CooldownSeconds:  60,
		},
	}
}

// Load loads configuration from a file, creating a default one when the
// file does not exist. ${ENV_VAR} placeholders and a leading ~ in path
// fields are expanded.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration to a file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch v := storage.Variant(c.Storage.ForceVariant); v {
	case "", storage.VariantNative, storage.VariantEmbedded, storage.VariantFlatFile:
	default:
		return fmt.Errorf("unknown storage variant %q", c.Storage.ForceVariant)
	}
	if c.Vector.EmbedDims < 0 {
		return fmt.Errorf("embed_dims must not be negative")
	}
	if t := c.Proactive.TriggerThreshold; t < 0 || t > 1 {
		return fmt.Errorf("trigger_threshold must be within [0, 1]")
	}
	return nil
}

// expandPaths expands ${ENV_VAR} placeholders and a leading tilde in all
// path-valued fields.
func (c *Config) expandPaths() {
	c.DataDir = expandPath(c.DataDir)
	c.Storage.Path = expandPath(c.Storage.Path)
	c.Vector.IndexDir = expandPath(c.Vector.IndexDir)
}

func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(p, "~"), "/"))
		}
	}
	return p
}

// Thresholds is the live, mutable view of the proactive settings. The
// external config collaborator pushes updates in; readers use the getters.
type Thresholds struct {
	mu  sync.RWMutex
	cfg ProactiveConfig
}

// NewThresholds seeds the live thresholds from the loaded configuration.
func NewThresholds(cfg ProactiveConfig) *Thresholds {
	return &Thresholds{cfg: cfg}
}

// Get returns the current proactive settings.
func (t *Thresholds) Get() ProactiveConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// Set replaces the proactive settings.
func (t *Thresholds) Set(cfg ProactiveConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = cfg
}

// SetTriggerThreshold updates just the trigger threshold.
func (t *Thresholds) SetTriggerThreshold(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg.TriggerThreshold = v
}
