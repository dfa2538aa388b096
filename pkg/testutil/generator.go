// Package testutil generates settings definitions for tests and benchmarks.
// All generators produce deterministic output for reproducible tests.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/settree/pkg/loader"
	"github.com/vanderheijden86/settree/pkg/settings"
)

// GeneratorConfig controls definition generation.
type GeneratorConfig struct {
	Seed           int64  // Random seed for determinism (0 = 42)
	IDPrefix       string // Prefix for group IDs (default: "g")
	IncludeOptions bool   // Give every page a few options
	IncludeKeyword bool   // Give pages random search keywords
	ProjectEvery   int    // Every Nth page gets project scope (0 = never)
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:           42,
		IDPrefix:       "g",
		IncludeOptions: true,
		IncludeKeyword: true,
	}
}

// Generator creates settings hierarchies of various shapes.
type Generator struct {
	cfg   GeneratorConfig
	rng   *rand.Rand
	pages int
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "g"
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with DefaultConfig.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

var keywordPool = []string{
	"color", "font", "proxy", "shell", "indent", "encoding", "cache",
	"update", "plugin", "keymap", "lint", "format", "network", "debug",
}

// Tree creates groups whose pages nest depth levels deep, each page
// having breadth children.
func (g *Generator) Tree(groups, depth, breadth int) []*settings.Group {
	groups = max(groups, 1)
	depth = max(depth, 1)
	breadth = max(breadth, 1)

	out := make([]*settings.Group, 0, groups)
	for i := 0; i < groups; i++ {
		id := fmt.Sprintf("%s%d", g.cfg.IDPrefix, i)
		grp := &settings.Group{ID: id, DisplayName: fmt.Sprintf("Group %d", i)}
		for b := 0; b < breadth; b++ {
			grp.Pages = append(grp.Pages, g.page(fmt.Sprintf("%s.%d", id, b), depth-1, breadth))
		}
		out = append(out, grp)
	}
	return out
}

// Chain creates one group holding a single path of depth nested pages.
func (g *Generator) Chain(depth int) []*settings.Group {
	return g.Tree(1, depth, 1)
}

// Wide creates one group with n flat pages.
func (g *Generator) Wide(n int) []*settings.Group {
	n = max(n, 1)
	id := g.cfg.IDPrefix + "0"
	grp := &settings.Group{ID: id, DisplayName: "Group 0"}
	for i := 0; i < n; i++ {
		grp.Pages = append(grp.Pages, g.page(fmt.Sprintf("%s.%d", id, i), 0, 0))
	}
	return []*settings.Group{grp}
}

func (g *Generator) page(id string, depth, breadth int) *settings.Page {
	g.pages++
	p := &settings.Page{
		ID:          id,
		DisplayName: "Page " + strings.ReplaceAll(id, ".", " "),
	}
	if g.cfg.IncludeKeyword {
		p.Keywords = []string{keywordPool[g.rng.Intn(len(keywordPool))]}
	}
	if g.cfg.ProjectEvery > 0 && g.pages%g.cfg.ProjectEvery == 0 {
		p.Scope = settings.ScopeProject
		p.Project = "demo"
	}
	if g.cfg.IncludeOptions {
		p.Options = g.options()
	}
	for b := 0; depth > 0 && b < breadth; b++ {
		p.Children = append(p.Children, g.page(fmt.Sprintf("%s.%d", id, b), depth-1, breadth))
	}
	return p
}

func (g *Generator) options() []settings.Option {
	opts := []settings.Option{
		{Key: "enabled", Label: "Enabled", Kind: settings.KindBool, Default: "true"},
	}
	switch g.rng.Intn(3) {
	case 0:
		opts = append(opts, settings.Option{Key: "size", Label: "Size", Kind: settings.KindInt, Default: fmt.Sprint(g.rng.Intn(32) + 1)})
	case 1:
		opts = append(opts, settings.Option{Key: "mode", Label: "Mode", Kind: settings.KindChoice, Choices: []string{"auto", "manual", "off"}, Default: "auto"})
	default:
		opts = append(opts, settings.Option{Key: "path", Label: "Path", Kind: settings.KindString})
	}
	return opts
}

// CountPages returns the number of pages under groups, nested ones included.
func CountPages(groups []*settings.Group) int {
	var count func([]*settings.Page) int
	count = func(pages []*settings.Page) int {
		n := len(pages)
		for _, p := range pages {
			n += count(p.Children)
		}
		return n
	}
	total := 0
	for _, grp := range groups {
		total += count(grp.Pages)
	}
	return total
}

// ToYAML renders groups as a definition file.
func ToYAML(groups []*settings.Group) (string, error) {
	data, err := yaml.Marshal(loader.File{Groups: groups})
	if err != nil {
		return "", fmt.Errorf("marshal definitions: %w", err)
	}
	return string(data), nil
}

// QuickTree is Tree with DefaultConfig.
func QuickTree(groups, depth, breadth int) []*settings.Group {
	return NewDefault().Tree(groups, depth, breadth)
}
