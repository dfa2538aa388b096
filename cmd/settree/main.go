package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vanderheijden86/settree/pkg/config"
	"github.com/vanderheijden86/settree/pkg/debug"
	"github.com/vanderheijden86/settree/pkg/history"
	"github.com/vanderheijden86/settree/pkg/hooks"
	"github.com/vanderheijden86/settree/pkg/loader"
	"github.com/vanderheijden86/settree/pkg/metrics"
	"github.com/vanderheijden86/settree/pkg/settings"
	"github.com/vanderheijden86/settree/pkg/ui"
	"github.com/vanderheijden86/settree/pkg/watcher"
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	stateDir   string
	debug      bool
}

// config loads the config file named by --config, or the XDG one.
func (o *globalOptions) config() (config.Config, error) {
	if o.configPath != "" {
		return config.LoadFrom(o.configPath)
	}
	return config.Load()
}

// state returns the directory for history and tree state.
func (o *globalOptions) state() string {
	if o.stateDir != "" {
		return o.stateDir
	}
	return config.StateDir()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		opts          globalOptions
		overridesPath string
		noHistory     bool
	)

	cmd := &cobra.Command{
		Use:   "settree [files...]",
		Short: "Browse and edit settings pages in the terminal",
		Long: `settree shows settings pages defined in YAML files as a tree.

Filter with /, open recent locations with ctrl+e, edit a page with e and
save with ctrl+s. Without files, the definitions from the config file or
the SETTREE_DEFINITIONS directory are used, then built-in sample pages.`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.debug {
				debug.SetEnabled(true)
				metrics.SetEnabled(true)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), &opts, args, overridesPath, noHistory)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/settree/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.stateDir, "state-dir", "", "Directory for history and tree state (default $XDG_STATE_HOME/settree)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging and print timing metrics on exit")
	cmd.Flags().StringVar(&overridesPath, "overrides", "", "Overrides file to load and save (default from config)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record or show recent locations")

	cmd.AddCommand(
		newTreeCmd(&opts),
		newRecentCmd(&opts),
		newValidateCmd(&opts),
		newVersionCmd(),
	)
	return cmd
}

// loadTree resolves args into definition files and builds the tree. With
// nothing to load it falls back to the built-in sample pages, and files is
// empty.
func loadTree(ctx context.Context, cfg config.Config, args []string, warn func(string)) (tree *settings.Tree, files []string, err error) {
	files, err = loader.ResolveFiles(args, cfg.Definitions)
	if err != nil {
		return nil, nil, err
	}

	var groups []*settings.Group
	if len(files) == 0 {
		groups, err = loader.DefaultDefinitions()
	} else {
		groups, err = loader.LoadFiles(ctx, loader.ParseOptions{WarningHandler: warn}, files...)
	}
	if err != nil {
		return nil, files, err
	}
	tree, err = settings.NewTree(groups)
	if err != nil {
		return nil, files, err
	}
	return tree, files, nil
}

func runTUI(ctx context.Context, opts *globalOptions, args []string, overridesPath string, noHistory bool) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("settree needs a terminal; use 'settree tree' for plain output")
	}

	stateDir := opts.state()
	setupTUILog(stateDir)

	cfg, err := opts.config()
	if err != nil {
		debug.Warn("config: %v", err)
	}

	tree, files, err := loadTree(ctx, cfg, args, nil)
	if err != nil {
		return err
	}

	edits := settings.NewContext(tree)
	if overridesPath == "" {
		overridesPath = cfg.OverridesPath()
	}
	if overridesPath != "" {
		ov, err := loader.LoadOverrides(overridesPath)
		if err != nil {
			debug.Warn("overrides: %v", err)
		}
		for _, e := range edits.Apply(ov) {
			debug.Warn("overrides: %v", e)
		}
	}

	var store *history.Store
	if cfg.HistoryEnabled() && !noHistory {
		store, err = history.Open(ctx, config.HistoryPath(stateDir))
		if err != nil {
			debug.Warn("history disabled: %v", err)
			store = nil
		} else {
			defer store.Close()
			if n, err := store.Prune(ctx, cfg.History.Keep); err != nil {
				debug.Warn("history: prune: %v", err)
			} else if n > 0 {
				debug.Log("history: pruned %d visits", n)
			}
		}
	}

	hl, err := hooks.LoadDir(config.ConfigDir())
	if err != nil {
		debug.Warn("hooks disabled: %v", err)
		hl = hooks.NewLoader()
	}
	for _, msg := range hl.Warnings() {
		debug.Warn("hooks: %s", msg)
	}

	w := startWatcher(files, overridesPath)
	if w != nil {
		defer w.Stop()
	}

	var reload func(context.Context) (*settings.Tree, error)
	if len(files) > 0 {
		reload = func(ctx context.Context) (*settings.Tree, error) {
			groups, err := loader.LoadFiles(ctx, loader.ParseOptions{}, files...)
			if err != nil {
				return nil, err
			}
			return settings.NewTree(groups)
		}
	}

	m := ui.NewModel(ui.Options{
		Tree:          tree,
		Edits:         edits,
		History:       store,
		HistoryLimit:  cfg.History.Limit,
		Watcher:       w,
		Reload:        reload,
		OverridesPath: overridesPath,
		StateDir:      stateDir,
		FilterDelay:   cfg.FilterDelay(),
		SplitRatio:    cfg.UI.SplitRatio,
		PreviewWidth:  cfg.UI.PreviewWidth,
		Hooks:         hl.Config(),
	})

	err = runTUIProgram(m)
	if opts.debug {
		dumpMetrics(os.Stderr)
	}
	return err
}

// setupTUILog keeps log output off the alternate screen: it goes to
// settree.log in the state directory, or nowhere.
func setupTUILog(stateDir string) {
	if os.Getenv("SETTREE_DEBUG_FILE") != "" {
		return
	}
	if stateDir != "" && os.MkdirAll(stateDir, 0o755) == nil {
		if err := debug.SetOutputFile(filepath.Join(stateDir, "settree.log")); err == nil {
			return
		}
	}
	debug.SetOutput(io.Discard)
}

// startWatcher watches the definition files and the overrides file. The
// overrides file is only watched when its directory exists.
func startWatcher(files []string, overridesPath string) *watcher.Watcher {
	paths := append([]string(nil), files...)
	if overridesPath != "" {
		if info, err := os.Stat(filepath.Dir(overridesPath)); err == nil && info.IsDir() {
			paths = append(paths, overridesPath)
		}
	}
	if len(paths) == 0 {
		return nil
	}

	w, err := watcher.NewWatcher(paths,
		watcher.WithOnError(func(err error) { debug.Warn("watcher: %v", err) }),
	)
	if err != nil {
		debug.Warn("live reload disabled: %v", err)
		return nil
	}
	if err := w.Start(); err != nil {
		debug.Warn("live reload disabled: %v", err)
		return nil
	}
	return w
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set SETTREE_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("SETTREE_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}

// dumpMetrics prints the recorded timings.
func dumpMetrics(w io.Writer) {
	stats := metrics.AllTimingStats()
	if len(stats) == 0 {
		return
	}
	fmt.Fprintln(w, "timings:")
	for _, s := range stats {
		if s.Count == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-14s n=%-5d avg=%.2fms max=%.2fms total=%.2fms\n",
			s.Name, s.Count, s.AvgMs, s.MaxMs, s.TotalMs)
	}
}
