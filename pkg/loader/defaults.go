package loader

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/vanderheijden86/settree/pkg/settings"
)

//go:embed defaults.yaml
var defaultDefinitions []byte

// DefaultDefinitions returns the built-in sample pages, used when no
// definition file is configured.
func DefaultDefinitions() ([]*settings.Group, error) {
	groups, err := Parse(bytes.NewReader(defaultDefinitions), ParseOptions{})
	if err != nil {
		return nil, fmt.Errorf("built-in definitions: %w", err)
	}
	return groups, nil
}
