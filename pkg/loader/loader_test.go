package loader_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/settree/pkg/loader"
	"github.com/vanderheijden86/settree/pkg/settings"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const editorDefs = `
groups:
  - id: editor
    name: Editor
    pages:
      - id: editor.general
        name: General
        scope: Project
        project: demo
        options:
          - {key: wrap, label: Soft wrap, kind: BOOL, default: "true"}
          - {key: broken, label: Broken, kind: float}
          - {key: mode, label: Mode, kind: choice}
        children:
          - id: editor.general.tabs
            name: Tabs
          - name: no id here
`

// =============================================================================
// Parse Tests
// =============================================================================

func TestParse_SkipsInvalidEntries(t *testing.T) {
	var warnings []string
	groups, err := loader.Parse(strings.NewReader(editorDefs), loader.ParseOptions{
		WarningHandler: func(msg string) { warnings = append(warnings, msg) },
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(groups) != 1 || len(groups[0].Pages) != 1 {
		t.Fatalf("expected one group with one page, got %+v", groups)
	}
	page := groups[0].Pages[0]
	if len(page.Options) != 1 || page.Options[0].Kind != settings.KindBool {
		t.Errorf("expected only the normalized bool option to survive, got %+v", page.Options)
	}
	if page.Scope != settings.ScopeProject {
		t.Errorf("scope should be normalized, got %q", page.Scope)
	}
	if len(page.Children) != 1 {
		t.Errorf("child without id should be dropped, got %d children", len(page.Children))
	}
	if child := page.Children[0]; child.Scope != settings.ScopeProject || child.Project != "demo" {
		t.Errorf("child should inherit scope and project, got %q/%q", child.Scope, child.Project)
	}
	if len(warnings) != 3 {
		t.Errorf("expected 3 warnings, got %d: %v", len(warnings), warnings)
	}
}

func TestParse_StripsBOM(t *testing.T) {
	data := "\xEF\xBB\xBFgroups:\n  - id: g\n    name: G\n"
	groups, err := loader.Parse(strings.NewReader(data), loader.ParseOptions{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != "g" {
		t.Errorf("unexpected groups %+v", groups)
	}
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := loader.Parse(strings.NewReader("groups: [\n"), loader.ParseOptions{})
	if err == nil || !strings.Contains(err.Error(), "parsing definitions") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

// =============================================================================
// LoadFiles Tests
// =============================================================================

func TestLoadFiles_MergesGroupsInOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", `
groups:
  - id: editor
    name: Editor
    pages:
      - {id: editor.a, name: A}
  - id: tools
    name: Tools
`)
	b := writeFile(t, dir, "b.yaml", `
groups:
  - id: editor
    pages:
      - {id: editor.b, name: B}
`)

	groups, err := loader.LoadFiles(context.Background(), loader.ParseOptions{}, a, b)
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if len(groups) != 2 || groups[0].ID != "editor" || groups[1].ID != "tools" {
		t.Fatalf("unexpected merge result %+v", groups)
	}
	pages := groups[0].Pages
	if len(pages) != 2 || pages[0].ID != "editor.a" || pages[1].ID != "editor.b" {
		t.Errorf("pages should be appended in argument order, got %+v", pages)
	}
	if groups[0].DisplayName != "Editor" {
		t.Errorf("first non-empty name should win, got %q", groups[0].DisplayName)
	}
}

func TestLoadFiles_ReportsPerFileErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", "groups:\n  - id: g\n")
	bad := writeFile(t, dir, "bad.yaml", "groups: [\n")
	missing := filepath.Join(dir, "missing.yaml")

	groups, err := loader.LoadFiles(context.Background(), loader.ParseOptions{}, good, bad, missing)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "bad.yaml") || !strings.Contains(err.Error(), "missing.yaml") {
		t.Errorf("error should name both failing files: %v", err)
	}
	if len(groups) != 1 {
		t.Errorf("good file should still load, got %d groups", len(groups))
	}
}

func TestLoadFiles_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.yaml", "groups:\n  - id: g\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.LoadFiles(ctx, loader.ParseOptions{}, path)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// =============================================================================
// Discovery Tests
// =============================================================================

func TestFindDefinitionFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", "groups: []")
	writeFile(t, dir, "a.yml", "groups: []")
	writeFile(t, dir, "a.yaml.orig", "")
	writeFile(t, dir, "c.backup.yaml", "")
	writeFile(t, dir, "readme.txt", "")

	files, err := loader.FindDefinitionFiles(dir)
	if err != nil {
		t.Fatalf("FindDefinitionFiles: %v", err)
	}
	want := []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}
	if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
		t.Errorf("got %v, want %v", files, want)
	}
}

func TestFindDefinitionFiles_Empty(t *testing.T) {
	_, err := loader.FindDefinitionFiles(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no definition files") {
		t.Errorf("expected empty-dir error, got %v", err)
	}
}

func TestResolveFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "defs")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	inner := writeFile(t, sub, "x.yaml", "groups: []")
	single := writeFile(t, dir, "single.yaml", "groups: []")

	files, err := loader.ResolveFiles([]string{single, sub}, nil)
	if err != nil {
		t.Fatalf("ResolveFiles: %v", err)
	}
	if len(files) != 2 || files[0] != single || files[1] != inner {
		t.Errorf("unexpected files %v", files)
	}

	t.Setenv(loader.DefinitionsDirEnvVar, sub)
	files, err = loader.ResolveFiles(nil, []string{single})
	if err != nil || len(files) != 1 || files[0] != inner {
		t.Errorf("env dir should win over fallback, got %v (%v)", files, err)
	}
}

// =============================================================================
// Defaults and Overrides
// =============================================================================

func TestDefaultDefinitionsBuildATree(t *testing.T) {
	groups, err := loader.DefaultDefinitions()
	if err != nil {
		t.Fatalf("DefaultDefinitions: %v", err)
	}
	tree, err := settings.NewTree(groups)
	if err != nil {
		t.Fatalf("built-in definitions should form a valid tree: %v", err)
	}
	if tree.FirstPage() == nil {
		t.Error("expected at least one page")
	}
	if _, ok := tree.FindByID("editor.codestyle.go"); !ok {
		t.Error("expected nested code style page")
	}
}

func TestOverridesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "overrides.yaml")

	ov, err := loader.LoadOverrides(path)
	if err != nil || len(ov) != 0 {
		t.Fatalf("missing file should load empty, got %v (%v)", ov, err)
	}

	want := settings.Overrides{"editor.general": {"caret_blink": "600", "soft_wrap": "*.go"}}
	if err := loader.SaveOverrides(path, want); err != nil {
		t.Fatalf("SaveOverrides: %v", err)
	}
	got, err := loader.LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	if got["editor.general"]["caret_blink"] != "600" || got["editor.general"]["soft_wrap"] != "*.go" {
		t.Errorf("round trip lost values: %v", got)
	}
}

func TestLoadOverrides_Invalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "o.yaml", "- not a map\n")
	if _, err := loader.LoadOverrides(path); err == nil {
		t.Error("expected parse error")
	}
}
