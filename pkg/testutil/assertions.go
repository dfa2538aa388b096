package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/settree/pkg/settings"
)

// WriteDefinitions writes groups as name in dir and returns the path.
func WriteDefinitions(t testing.TB, dir, name string, groups []*settings.Group) string {
	t.Helper()

	data, err := ToYAML(groups)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write definitions: %v", err)
	}
	return path
}

// BuildTree builds a settings tree or fails the test.
func BuildTree(t testing.TB, groups []*settings.Group) *settings.Tree {
	t.Helper()

	tree, err := settings.NewTree(groups)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	return tree
}

// AssertNoDuplicateIDs checks that every group and page ID is unique.
func AssertNoDuplicateIDs(t testing.TB, groups []*settings.Group) {
	t.Helper()

	seen := make(map[string]bool)
	var walk func([]*settings.Page)
	walk = func(pages []*settings.Page) {
		for _, p := range pages {
			if seen[p.ID] {
				t.Errorf("duplicate ID: %s", p.ID)
			}
			seen[p.ID] = true
			walk(p.Children)
		}
	}
	for _, g := range groups {
		if seen[g.ID] {
			t.Errorf("duplicate ID: %s", g.ID)
		}
		seen[g.ID] = true
		walk(g.Pages)
	}
}

// GoldenFile compares output against a file under testdata.
type GoldenFile struct {
	t      testing.TB
	dir    string
	name   string
	update bool
}

// NewGoldenFile creates a golden file helper.
// If GENERATE_GOLDEN env var is set, golden files will be updated.
func NewGoldenFile(t testing.TB, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{
		t:      t,
		dir:    dir,
		name:   name,
		update: os.Getenv("GENERATE_GOLDEN") != "",
	}
}

// Path returns the full path to the golden file.
func (g *GoldenFile) Path() string {
	return filepath.Join(g.dir, g.name)
}

// Assert compares actual content against the golden file.
// If GENERATE_GOLDEN is set, updates the golden file instead.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()

	path := g.Path()
	if g.update {
		if err := os.MkdirAll(g.dir, 0o755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0o644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		g.t.Logf("updated golden file: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			g.t.Fatalf("golden file does not exist: %s\nRun with GENERATE_GOLDEN=1 to create it", path)
		}
		g.t.Fatalf("failed to read golden file: %v", err)
	}
	if string(expected) == actual {
		return
	}

	expectedLines := strings.Split(string(expected), "\n")
	actualLines := strings.Split(actual, "\n")
	for i := 0; i < len(expectedLines) || i < len(actualLines); i++ {
		var expLine, actLine string
		if i < len(expectedLines) {
			expLine = expectedLines[i]
		}
		if i < len(actualLines) {
			actLine = actualLines[i]
		}
		if expLine != actLine {
			g.t.Errorf("golden file mismatch at line %d:\nexpected: %s\nactual:   %s", i+1, expLine, actLine)
			return
		}
	}
}

// AssertJSON compares actual value as JSON against the golden file.
func (g *GoldenFile) AssertJSON(actual any) {
	g.t.Helper()

	data, err := json.MarshalIndent(actual, "", "  ")
	if err != nil {
		g.t.Fatalf("failed to marshal actual value: %v", err)
	}
	g.Assert(string(data))
}
