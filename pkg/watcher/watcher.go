// Package watcher reloads settree when its definition or overrides files
// change on disk. It uses fsnotify where it can and falls back to polling
// on network filesystems or when SETTREE_FORCE_POLL is set.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/settree/pkg/debug"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// ForcePollEnvVar forces polling mode when set to a true value.
const ForcePollEnvVar = "SETTREE_FORCE_POLL"

// Common errors.
var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
	ErrNoPaths        = errors.New("no files to watch")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnChange sets the callback invoked with the changed paths once a
// burst of events settles.
func WithOnChange(fn func(paths []string)) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// fileState is what polling compares against.
type fileState struct {
	mtime time.Time
	size  int64
}

// Watcher monitors a set of files for changes.
type Watcher struct {
	paths            []string
	targets          map[string]bool
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func([]string)
	onError          func(error)
	forcePoll        bool
	fsType           FilesystemType

	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool
	states      map[string]fileState
	pending     map[string]bool // seen, not yet delivered
	unread      map[string]bool // delivered, not yet taken

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan struct{}
}

// NewWatcher creates a watcher for paths. Duplicate paths are collapsed.
func NewWatcher(paths []string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		targets:          make(map[string]bool),
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func([]string) {},
		onError:          func(error) {},
		states:           make(map[string]fileState),
		pending:          make(map[string]bool),
		unread:           make(map[string]bool),
		changeCh:         make(chan struct{}, 1),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		if w.targets[abs] {
			continue
		}
		w.targets[abs] = true
		w.paths = append(w.paths, abs)
	}
	if len(w.paths) == 0 {
		return nil, ErrNoPaths
	}

	for _, opt := range opts {
		opt(w)
	}

	w.debouncer = NewDebouncer(w.debounceDuration)

	return w, nil
}

// Start begins watching the files for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())

	// Reset per-start state.
	w.useFallback = false
	w.fsType = FSTypeUnknown
	w.pending = make(map[string]bool)
	w.unread = make(map[string]bool)

	// The first remote filesystem found decides for all files.
	for _, p := range w.paths {
		t := DetectFilesystemType(p)
		if w.fsType == FSTypeUnknown || isRemoteFilesystem(t) {
			w.fsType = t
		}
		if isRemoteFilesystem(t) {
			w.useFallback = true
			break
		}
	}

	forcePoll := w.forcePoll || envBool(ForcePollEnvVar)
	if forcePoll {
		w.useFallback = true
	}

	for _, p := range w.paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsPermission(err) {
				w.cancel()
				return fmt.Errorf("%s: %w", p, ErrPermission)
			}
			// File might not exist yet, that's okay
			w.states[p] = fileState{}
			continue
		}
		w.states[p] = fileState{mtime: info.ModTime(), size: info.Size()}
	}

	if !w.useFallback {
		if err := w.startFsnotify(); err != nil {
			debug.Log("watcher: fsnotify unavailable, polling: %v", err)
			w.useFallback = true
		}
	}

	if w.useFallback {
		go w.watchPolling()
	}

	debug.Log("watcher: watching %d files (polling=%v, fs=%s)", len(w.paths), w.useFallback, w.fsType)
	w.started = true
	return nil
}

// startFsnotify watches every parent directory, which survives the
// write-to-temp-then-rename saves most editors do.
func (w *Watcher) startFsnotify() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := make(map[string]bool)
	for _, p := range w.paths {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return err
		}
	}
	w.fsWatcher = fsw
	go w.watchFsnotify()
	return nil
}

// Stop stops watching.
// The change channel stays open: WatchFileCmd may still be blocked on it,
// and a closed channel would make it fire in a loop.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}

	if w.cancel != nil {
		w.cancel()
	}

	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}

	w.debouncer.Cancel()
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed returns a channel that receives when a watched file changes.
// Use TakeChanged to learn which.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// TakeChanged returns the paths reported since the last call, sorted.
func (w *Watcher) TakeChanged() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := sortedKeys(w.unread)
	w.unread = make(map[string]bool)
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Paths returns the watched absolute paths.
func (w *Watcher) Paths() []string {
	return append([]string(nil), w.paths...)
}

// FilesystemType returns the best-effort filesystem classification.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the polling interval used when polling mode is active.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// watchFsnotify monitors using fsnotify events.
func (w *Watcher) watchFsnotify() {
	// Capture channel references to avoid race with Stop() setting fsWatcher to nil
	w.mu.RLock()
	if w.fsWatcher == nil {
		w.mu.RUnlock()
		return
	}
	events := w.fsWatcher.Events
	errs := w.fsWatcher.Errors
	ctx := w.ctx
	w.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			name := filepath.Clean(event.Name)
			if !w.targets[name] {
				continue
			}

			switch {
			case event.Op&fsnotify.Remove != 0:
				w.onError(fmt.Errorf("%s: %w", name, ErrFileRemoved))

			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				w.markChanged(name)
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

// watchPolling monitors using periodic stat checks.
func (w *Watcher) watchPolling() {
	w.mu.RLock()
	ctx := w.ctx
	interval := w.pollInterval
	w.mu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			for _, p := range w.paths {
				w.pollOne(p)
			}
		}
	}
}

func (w *Watcher) pollOne(p string) {
	info, err := os.Stat(p)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			// Only report if file existed before
			w.mu.Lock()
			hadFile := !w.states[p].mtime.IsZero()
			w.states[p] = fileState{}
			w.mu.Unlock()
			if hadFile {
				w.onError(fmt.Errorf("%s: %w", p, ErrFileRemoved))
			}
		case os.IsPermission(err):
			w.onError(fmt.Errorf("%s: %w", p, ErrPermission))
		default:
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	prev := w.states[p]
	changed := info.ModTime().After(prev.mtime) || info.Size() != prev.size
	if changed {
		w.states[p] = fileState{mtime: info.ModTime(), size: info.Size()}
	}
	w.mu.Unlock()

	if changed {
		w.markChanged(p)
	}
}

func (w *Watcher) markChanged(p string) {
	w.mu.Lock()
	w.pending[p] = true
	w.mu.Unlock()
	w.debouncer.Trigger(w.notifyChange)
}

// notifyChange invokes the onChange callback and signals the change channel.
func (w *Watcher) notifyChange() {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()

	// Best effort: a callback may still slip through right after Stop.
	if !started {
		return
	}

	w.mu.Lock()
	changed := sortedKeys(w.pending)
	w.pending = make(map[string]bool)
	for _, p := range changed {
		w.unread[p] = true
	}
	w.mu.Unlock()

	debug.Log("watcher: %d files changed", len(changed))
	w.onChange(changed)

	// Non-blocking send to change channel
	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}
