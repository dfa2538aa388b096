// Package hooks runs user commands around saving the overrides file.
// Hooks are configured in hooks.yaml next to config.yaml and run at two
// points: before the file is written (pre-save) and after (post-save).
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Phase represents when a hook runs
type Phase string

const (
	// PreSave runs before the overrides file is written. Failure cancels the save.
	PreSave Phase = "pre-save"
	// PostSave runs after the file is written. Failure is reported but the save stands.
	PostSave Phase = "post-save"
)

// OnError values.
const (
	OnErrorFail     = "fail"
	OnErrorContinue = "continue"
)

// FileName is the hooks file inside the config directory.
const FileName = "hooks.yaml"

// Hook defines a single hook configuration
type Hook struct {
	Name    string            `yaml:"name" json:"name"`                             // Human-readable name
	Command string            `yaml:"command" json:"command"`                       // Shell command to run
	Timeout time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`   // Execution timeout (default: 30s)
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`           // Additional environment variables
	OnError string            `yaml:"on_error,omitempty" json:"on_error,omitempty"` // "fail" (default for pre) or "continue" (default for post)
}

// Config holds all hook configurations
type Config struct {
	Hooks ByPhase `yaml:"hooks" json:"hooks"`
}

// ByPhase organizes hooks by their execution phase
type ByPhase struct {
	PreSave  []Hook `yaml:"pre-save,omitempty" json:"pre-save,omitempty"`
	PostSave []Hook `yaml:"post-save,omitempty" json:"post-save,omitempty"`
}

// Empty reports whether no hook is configured.
func (c *Config) Empty() bool {
	return c == nil || len(c.Hooks.PreSave)+len(c.Hooks.PostSave) == 0
}

// SaveContext is passed to hooks via environment variables.
type SaveContext struct {
	OverridesPath string    // SETTREE_OVERRIDES: file being written
	ModifiedPages []string  // SETTREE_MODIFIED_PAGES: comma-separated page IDs
	Timestamp     time.Time // SETTREE_TIMESTAMP: RFC3339
}

// ToEnv converts the save context to environment variables
func (c SaveContext) ToEnv() []string {
	return []string{
		"SETTREE_OVERRIDES=" + c.OverridesPath,
		"SETTREE_MODIFIED_PAGES=" + strings.Join(c.ModifiedPages, ","),
		fmt.Sprintf("SETTREE_PAGE_COUNT=%d", len(c.ModifiedPages)),
		"SETTREE_TIMESTAMP=" + c.Timestamp.Format(time.RFC3339),
	}
}

// DefaultTimeout is the default hook execution timeout
const DefaultTimeout = 30 * time.Second

// Loader loads hook configuration from hooks.yaml
type Loader struct {
	dir      string
	config   *Config
	warnings []string
}

// LoaderOption configures the loader
type LoaderOption func(*Loader)

// WithDir sets the directory holding hooks.yaml.
func WithDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.dir = dir
	}
}

// NewLoader creates a new hook loader with options
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the hooks file location, or "" without a directory.
func (l *Loader) Path() string {
	if l.dir == "" {
		return ""
	}
	return filepath.Join(l.dir, FileName)
}

// Load reads hooks.yaml. A missing file means no hooks.
func (l *Loader) Load() error {
	path := l.Path()
	if path == "" {
		l.config = &Config{}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.config = &Config{}
			return nil
		}
		return fmt.Errorf("reading hooks config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	config.Hooks.PreSave, l.warnings = normalizeHooks(config.Hooks.PreSave, PreSave, l.warnings)
	config.Hooks.PostSave, l.warnings = normalizeHooks(config.Hooks.PostSave, PostSave, l.warnings)

	l.config = &config
	return nil
}

// normalizeHooks applies defaults, drops empty commands, and accumulates warnings.
func normalizeHooks(hooks []Hook, phase Phase, warnings []string) ([]Hook, []string) {
	var out []Hook
	for i := range hooks {
		hook := hooks[i]
		if strings.TrimSpace(hook.Command) == "" {
			warnings = append(warnings, fmt.Sprintf("%s hook %d has empty command; skipping", phase, i+1))
			continue
		}
		if hook.Timeout <= 0 {
			hook.Timeout = DefaultTimeout
		}
		switch hook.OnError {
		case OnErrorFail, OnErrorContinue:
		case "":
			if phase == PreSave {
				hook.OnError = OnErrorFail
			} else {
				hook.OnError = OnErrorContinue
			}
		default:
			warnings = append(warnings, fmt.Sprintf("%s hook %d: unknown on_error %q; using %q", phase, i+1, hook.OnError, OnErrorFail))
			hook.OnError = OnErrorFail
		}
		if hook.Name == "" {
			hook.Name = fmt.Sprintf("%s-%d", phase, i+1)
		}
		out = append(out, hook)
	}
	return out, warnings
}

// Config returns the loaded configuration (or empty if not loaded)
func (l *Loader) Config() *Config {
	if l.config == nil {
		return &Config{}
	}
	return l.config
}

// Warnings returns any warnings from loading
func (l *Loader) Warnings() []string {
	return l.warnings
}

// LoadDir creates a loader for dir and loads it.
func LoadDir(dir string) (*Loader, error) {
	l := NewLoader(WithDir(dir))
	if err := l.Load(); err != nil {
		return nil, err
	}
	return l, nil
}

// UnmarshalYAML accepts timeouts as durations ("5s") or plain seconds.
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	// Must mirror Hook, except Timeout is a string.
	type hookDTO struct {
		Name    string            `yaml:"name"`
		Command string            `yaml:"command"`
		Timeout string            `yaml:"timeout,omitempty"`
		Env     map[string]string `yaml:"env,omitempty"`
		OnError string            `yaml:"on_error,omitempty"`
	}

	var dto hookDTO
	if err := node.Decode(&dto); err != nil {
		return err
	}

	h.Name = dto.Name
	h.Command = dto.Command
	h.Env = dto.Env
	h.OnError = dto.OnError

	if dto.Timeout != "" {
		d, err := time.ParseDuration(dto.Timeout)
		if err == nil {
			h.Timeout = d
		} else {
			var seconds float64
			if _, scanErr := fmt.Sscanf(dto.Timeout, "%f", &seconds); scanErr == nil {
				h.Timeout = time.Duration(seconds * float64(time.Second))
			} else {
				return fmt.Errorf("invalid timeout %q: %w", dto.Timeout, err)
			}
		}
	}

	return nil
}
