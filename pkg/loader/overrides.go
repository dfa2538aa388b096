package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/settree/pkg/settings"
)

// LoadOverrides reads saved option values. A missing file yields an empty
// set.
func LoadOverrides(path string) (settings.Overrides, error) {
	ov := make(settings.Overrides)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ov, nil
		}
		return ov, fmt.Errorf("reading overrides: %w", err)
	}
	if err := yaml.Unmarshal(stripBOM(data), &ov); err != nil {
		return make(settings.Overrides), fmt.Errorf("parsing overrides: %w", err)
	}
	if ov == nil {
		ov = make(settings.Overrides)
	}
	return ov, nil
}

// SaveOverrides writes ov to path atomically, creating the directory.
func SaveOverrides(path string, ov settings.Overrides) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating overrides directory: %w", err)
	}

	data, err := yaml.Marshal(ov)
	if err != nil {
		return fmt.Errorf("marshaling overrides: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".overrides-*.yaml")
	if err != nil {
		return fmt.Errorf("writing overrides: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing overrides: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing overrides: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing overrides: %w", err)
	}
	return nil
}
