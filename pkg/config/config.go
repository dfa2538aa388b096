// Package config handles loading and saving settree configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/settree/config.yaml (and overrides.yaml)
//   - State:   ~/.local/state/settree/ (history database, tree state)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "settree"

// UIConfig holds UI preference settings.
type UIConfig struct {
	FilterDelayMS int     `yaml:"filter_delay_ms,omitempty"` // Refilter debounce after a keystroke
	SplitRatio    float64 `yaml:"split_ratio,omitempty"`     // Tree pane share of the width (0.2-0.8)
	PreviewWidth  int     `yaml:"preview_width,omitempty"`   // Word wrap for rendered descriptions
}

// HistoryConfig controls the recent locations store.
type HistoryConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
	Limit   int   `yaml:"limit,omitempty"` // Places shown in the popup
	Keep    int   `yaml:"keep,omitempty"`  // Visits kept on disk
}

// Config is the top-level configuration for settree.
type Config struct {
	Definitions []string      `yaml:"definitions,omitempty"` // Files or directories loaded by default
	Overrides   string        `yaml:"overrides,omitempty"`   // Saved option values
	UI          UIConfig      `yaml:"ui,omitempty"`
	History     HistoryConfig `yaml:"history,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		UI: UIConfig{
			FilterDelayMS: 300,
			SplitRatio:    0.4,
			PreviewWidth:  60,
		},
		History: HistoryConfig{
			Limit: 50,
			Keep:  500,
		},
	}
}

// ConfigDir returns the XDG config directory for settree.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// StateDir returns the XDG state directory for settree.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// HistoryPath returns the history database path inside stateDir, or the
// default state directory when stateDir is empty.
func HistoryPath(stateDir string) string {
	if stateDir == "" {
		stateDir = StateDir()
	}
	return filepath.Join(stateDir, "history.db")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	for i := range cfg.Definitions {
		cfg.Definitions[i] = expandHome(cfg.Definitions[i])
	}
	cfg.Overrides = expandHome(cfg.Overrides)
	cfg.clamp()

	return cfg, nil
}

// clamp pulls out-of-range values back to their defaults.
func (c *Config) clamp() {
	def := DefaultConfig()
	if c.UI.FilterDelayMS < 0 {
		c.UI.FilterDelayMS = def.UI.FilterDelayMS
	}
	if c.UI.SplitRatio < 0.2 || c.UI.SplitRatio > 0.8 {
		c.UI.SplitRatio = def.UI.SplitRatio
	}
	if c.UI.PreviewWidth <= 0 {
		c.UI.PreviewWidth = def.UI.PreviewWidth
	}
	if c.History.Limit <= 0 {
		c.History.Limit = def.History.Limit
	}
	if c.History.Keep < c.History.Limit {
		c.History.Keep = c.History.Limit
	}
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// FilterDelay returns the refilter debounce as a duration.
func (c Config) FilterDelay() time.Duration {
	return time.Duration(c.UI.FilterDelayMS) * time.Millisecond
}

// HistoryEnabled reports whether visits are recorded. Defaults to true.
func (c Config) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}

// OverridesPath returns the configured overrides file, or overrides.yaml
// next to config.yaml.
func (c Config) OverridesPath() string {
	if c.Overrides != "" {
		return c.Overrides
	}
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "overrides.yaml")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
