// Package loader reads settings page definitions and saved option values
// from YAML files.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/settree/pkg/debug"
	"github.com/vanderheijden86/settree/pkg/metrics"
	"github.com/vanderheijden86/settree/pkg/settings"
)

// DefinitionsDirEnvVar names a directory whose definition files are loaded
// when no files are given explicitly.
const DefinitionsDirEnvVar = "SETTREE_DEFINITIONS"

// MaxParallelLoads bounds how many definition files are read at once.
const MaxParallelLoads = 8

// File is the on-disk shape of a definition file.
type File struct {
	Groups []*settings.Group `yaml:"groups"`
}

// ParseOptions configures parsing of definition files.
type ParseOptions struct {
	// WarningHandler is called for entries that are skipped (invalid pages
	// or options). If nil, warnings go to the debug log.
	WarningHandler func(string)
}

func (o ParseOptions) warn(msg string) {
	if o.WarningHandler != nil {
		o.WarningHandler(msg)
		return
	}
	debug.Warn("loader: %s", msg)
}

// FindDefinitionFiles lists the .yaml/.yml files in dir in name order,
// skipping backups and merge artifacts.
func FindDefinitionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if strings.Contains(name, ".backup") ||
			strings.Contains(name, ".orig") ||
			strings.Contains(name, ".merge") ||
			strings.HasPrefix(name, ".") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no definition files found in %s", dir)
	}
	return files, nil
}

// LoadFile reads and parses one definition file.
func LoadFile(path string, opts ParseOptions) ([]*settings.Group, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no definitions found at %s", path)
		}
		return nil, fmt.Errorf("failed to open definitions file: %w", err)
	}
	defer f.Close()

	prev := opts.WarningHandler
	opts.WarningHandler = func(msg string) {
		if prev != nil {
			prev(path + ": " + msg)
			return
		}
		debug.Warn("loader: %s: %s", path, msg)
	}
	return Parse(f, opts)
}

// Parse decodes a definition file from r. Pages and options that fail
// validation are skipped with a warning; a syntax error fails the whole
// file.
func Parse(r io.Reader, opts ParseOptions) ([]*settings.Group, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading definitions: %w", err)
	}
	data = stripBOM(data)

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing definitions: %w", err)
	}

	groups := make([]*settings.Group, 0, len(file.Groups))
	for i, g := range file.Groups {
		if g == nil || strings.TrimSpace(g.ID) == "" {
			opts.warn(fmt.Sprintf("skipping group %d: missing id", i+1))
			continue
		}
		g.Pages = cleanPages(g.Pages, settings.ScopeApplication, "", opts)
		groups = append(groups, g)
	}
	return groups, nil
}

// cleanPages drops invalid pages and options, normalizes kinds, and lets
// children inherit the parent's scope when they declare none.
func cleanPages(pages []*settings.Page, scope settings.Scope, project string, opts ParseOptions) []*settings.Page {
	out := pages[:0]
	for _, p := range pages {
		if p == nil {
			continue
		}
		if strings.TrimSpace(p.ID) == "" {
			opts.warn(fmt.Sprintf("skipping page %q: missing id", p.DisplayName))
			continue
		}
		p.Scope = settings.Scope(strings.ToLower(strings.TrimSpace(string(p.Scope))))
		if !p.Scope.IsValid() {
			opts.warn(fmt.Sprintf("skipping page %s: invalid scope %q", p.ID, p.Scope))
			continue
		}
		if p.Scope == "" {
			p.Scope = scope
			if p.Project == "" {
				p.Project = project
			}
		}

		valid := p.Options[:0]
		for _, o := range p.Options {
			o.Kind = normalizeKind(o.Kind)
			if err := o.Validate(); err != nil {
				opts.warn(fmt.Sprintf("page %s: skipping option: %v", p.ID, err))
				continue
			}
			valid = append(valid, o)
		}
		p.Options = valid
		p.Children = cleanPages(p.Children, p.Scope, p.Project, opts)
		out = append(out, p)
	}
	return out
}

func normalizeKind(k settings.Kind) settings.Kind {
	trimmed := strings.ToLower(strings.TrimSpace(string(k)))
	if trimmed == "" {
		return settings.KindString
	}
	return settings.Kind(trimmed)
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}

// LoadFiles reads every path concurrently and merges the results in
// argument order. Groups with the same ID are combined; the first non-empty
// display name wins. The returned error joins every per-file failure.
func LoadFiles(ctx context.Context, opts ParseOptions, paths ...string) ([]*settings.Group, error) {
	defer metrics.Timer(metrics.Load)()
	start := time.Now()

	results := make([][]*settings.Group, len(paths))
	errs := make([]error, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxParallelLoads)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			groups, err := LoadFile(path, opts)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", path, err)
				return nil
			}
			results[i] = groups
			return nil
		})
	}
	_ = g.Wait()

	merged := Merge(results...)
	debug.LogTiming(fmt.Sprintf("loader: %d files, %d groups", len(paths), len(merged)), time.Since(start))
	return merged, errors.Join(errs...)
}

// Merge combines group lists in order. Pages of a repeated group are
// appended to the first occurrence.
func Merge(lists ...[]*settings.Group) []*settings.Group {
	var out []*settings.Group
	byID := make(map[string]*settings.Group)
	for _, list := range lists {
		for _, g := range list {
			if existing, ok := byID[g.ID]; ok {
				if existing.DisplayName == "" {
					existing.DisplayName = g.DisplayName
				}
				existing.Pages = append(existing.Pages, g.Pages...)
				continue
			}
			cp := *g
			cp.Pages = append([]*settings.Page(nil), g.Pages...)
			byID[g.ID] = &cp
			out = append(out, &cp)
		}
	}
	return out
}

// ResolveFiles expands the command-line arguments into definition files.
// Directories are scanned with FindDefinitionFiles. With no arguments the
// SETTREE_DEFINITIONS directory is used, then fallback.
func ResolveFiles(args []string, fallback []string) ([]string, error) {
	if len(args) == 0 {
		if dir := os.Getenv(DefinitionsDirEnvVar); dir != "" {
			return FindDefinitionFiles(dir)
		}
		args = fallback
	}

	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("definitions %s: %w", arg, err)
		}
		if info.IsDir() {
			found, err := FindDefinitionFiles(arg)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
			continue
		}
		files = append(files, arg)
	}
	return files, nil
}
