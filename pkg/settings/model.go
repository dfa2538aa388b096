// Package settings holds the configuration page hierarchy shown by settree:
// groups of pages, their options, and the mutable edit session on top.
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrDuplicateID is returned when two nodes in one tree share an ID.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrUnknownPage is returned for lookups of a page that does not exist.
	ErrUnknownPage = errors.New("unknown page")
	// ErrUnknownOption is returned when a page has no option with the given key.
	ErrUnknownOption = errors.New("unknown option")
	// ErrInvalidValue is returned when a value does not fit its option's kind.
	ErrInvalidValue = errors.New("invalid value")
)

// Scope says where a page's values are stored.
type Scope string

const (
	ScopeApplication Scope = "application"
	ScopeProject     Scope = "project"
)

// IsValid returns true if the scope is a recognized value.
func (s Scope) IsValid() bool {
	switch s {
	case ScopeApplication, ScopeProject, "":
		return true
	}
	return false
}

// Kind is the value type of an option.
type Kind string

const (
	KindBool   Kind = "bool"
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindChoice Kind = "choice"
)

// IsValid returns true if the kind is a recognized value.
func (k Kind) IsValid() bool {
	switch k {
	case KindBool, KindString, KindInt, KindChoice:
		return true
	}
	return false
}

// Option is a single configurable value on a page.
type Option struct {
	Key     string   `yaml:"key" json:"key"`
	Label   string   `yaml:"label" json:"label"`
	Kind    Kind     `yaml:"kind" json:"kind"`
	Choices []string `yaml:"choices,omitempty" json:"choices,omitempty"`
	Default string   `yaml:"default,omitempty" json:"default,omitempty"`
	Value   string   `yaml:"value,omitempty" json:"value,omitempty"`
}

// Effective returns the current value, falling back to the default.
func (o Option) Effective() string {
	if o.Value != "" {
		return o.Value
	}
	return o.Default
}

// Validate checks the option definition itself.
func (o Option) Validate() error {
	if strings.TrimSpace(o.Key) == "" {
		return fmt.Errorf("option key cannot be empty")
	}
	if !o.Kind.IsValid() {
		return fmt.Errorf("option %s: invalid kind %q", o.Key, o.Kind)
	}
	if o.Kind == KindChoice && len(o.Choices) == 0 {
		return fmt.Errorf("option %s: choice option needs choices", o.Key)
	}
	if o.Default != "" {
		if _, err := o.Normalize(o.Default); err != nil {
			return fmt.Errorf("option %s default: %w", o.Key, err)
		}
	}
	return nil
}

// Normalize validates raw against the option's kind and returns its
// canonical form.
func (o Option) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch o.Kind {
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, raw)
		}
		return strconv.FormatBool(b), nil
	case KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, raw)
		}
		return strconv.Itoa(n), nil
	case KindChoice:
		for _, c := range o.Choices {
			if strings.EqualFold(c, raw) {
				return c, nil
			}
		}
		return "", fmt.Errorf("%w: %q is not one of %s", ErrInvalidValue, raw, strings.Join(o.Choices, ", "))
	default:
		return raw, nil
	}
}

// Page is a configurable page. Pages nest through Children.
type Page struct {
	ID          string   `yaml:"id" json:"id"`
	DisplayName string   `yaml:"name" json:"name"`
	Keywords    []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Scope       Scope    `yaml:"scope,omitempty" json:"scope,omitempty"`
	Project     string   `yaml:"project,omitempty" json:"project,omitempty"`
	Options     []Option `yaml:"options,omitempty" json:"options,omitempty"`
	Children    []*Page  `yaml:"children,omitempty" json:"children,omitempty"`
}

// Option returns the option with the given key.
func (p *Page) Option(key string) (*Option, bool) {
	for i := range p.Options {
		if p.Options[i].Key == key {
			return &p.Options[i], true
		}
	}
	return nil, false
}

// Group is a top-level composite of pages.
type Group struct {
	ID          string  `yaml:"id" json:"id"`
	DisplayName string  `yaml:"name" json:"name"`
	Pages       []*Page `yaml:"pages" json:"pages"`
}

// DisplayName normalizes a node label for a single tree row: newlines
// become spaces, and an empty name shows the id in braces.
func DisplayName(name, id string) string {
	name = strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(name))
	if name == "" {
		return "{ " + id + " }"
	}
	return name
}
