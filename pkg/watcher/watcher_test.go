package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var callCount atomic.Int32

	// Trigger rapidly 10 times
	for i := 0; i < 10; i++ {
		d.Trigger(func() {
			callCount.Add(1)
		})
		time.Sleep(10 * time.Millisecond)
	}

	// Wait for debounce to complete
	time.Sleep(150 * time.Millisecond)

	if count := callCount.Load(); count != 1 {
		t.Errorf("expected 1 callback invocation, got %d", count)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var called atomic.Bool

	d.Trigger(func() {
		called.Store(true)
	})

	// Cancel before debounce completes
	d.Cancel()

	time.Sleep(100 * time.Millisecond)

	if called.Load() {
		t.Error("callback should not have been invoked after cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	d := NewDebouncer(0)
	if d.Duration() != DefaultDebounceDuration {
		t.Errorf("expected default duration %v, got %v", DefaultDebounceDuration, d.Duration())
	}
}

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// changeRecorder collects onChange callbacks.
type changeRecorder struct {
	mu    sync.Mutex
	paths [][]string
}

func (r *changeRecorder) record(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, paths)
}

func (r *changeRecorder) all() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.paths...)
}

func TestWatcher_DetectsFileChange(t *testing.T) {
	tmpDir := t.TempDir()
	defs := writeTemp(t, tmpDir, "defs.yaml", "groups: []")

	var rec changeRecorder
	w, err := NewWatcher([]string{defs},
		WithDebounceDuration(50*time.Millisecond),
		WithOnChange(rec.record),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Give watcher time to initialize
	time.Sleep(100 * time.Millisecond)

	writeTemp(t, tmpDir, "defs.yaml", "groups:\n  - id: g\n")

	// Wait for change detection
	time.Sleep(300 * time.Millisecond)

	got := rec.all()
	if len(got) == 0 {
		t.Fatal("expected change to be detected")
	}
	if !reflect.DeepEqual(got[0], []string{defs}) {
		t.Errorf("expected %v reported, got %v", defs, got[0])
	}
}

func TestWatcher_IgnoresUnwatchedSiblings(t *testing.T) {
	tmpDir := t.TempDir()
	defs := writeTemp(t, tmpDir, "defs.yaml", "groups: []")

	var rec changeRecorder
	w, err := NewWatcher([]string{defs},
		WithDebounceDuration(30*time.Millisecond),
		WithOnChange(rec.record),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if w.IsPolling() {
		t.Skip("fsnotify not available")
	}

	time.Sleep(50 * time.Millisecond)
	writeTemp(t, tmpDir, "other.yaml", "x")
	time.Sleep(200 * time.Millisecond)

	if got := rec.all(); len(got) != 0 {
		t.Errorf("sibling write should be ignored, got %v", got)
	}
}

func TestWatcher_PollingFallbackMultipleFiles(t *testing.T) {
	tmpDir := t.TempDir()
	a := writeTemp(t, tmpDir, "a.yaml", "initial")
	b := writeTemp(t, tmpDir, "b.yaml", "initial")

	var rec changeRecorder
	w, err := NewWatcher([]string{a, b, a},
		WithDebounceDuration(80*time.Millisecond),
		WithPollInterval(20*time.Millisecond),
		WithForcePoll(true),
		WithOnChange(rec.record),
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Paths()) != 2 {
		t.Fatalf("duplicate path should collapse, got %v", w.Paths())
	}

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Error("expected watcher to be in polling mode")
	}

	time.Sleep(30 * time.Millisecond)
	writeTemp(t, tmpDir, "a.yaml", "modified a")
	writeTemp(t, tmpDir, "b.yaml", "modified b!")

	time.Sleep(400 * time.Millisecond)

	got := rec.all()
	if len(got) == 0 {
		t.Fatal("expected change to be detected via polling")
	}
	seen := map[string]bool{}
	for _, batch := range got {
		for _, p := range batch {
			seen[p] = true
		}
	}
	if !seen[a] || !seen[b] {
		t.Errorf("expected both files reported, got %v", got)
	}
}

func TestWatcher_ChangedChannelAndTakeChanged(t *testing.T) {
	tmpDir := t.TempDir()
	defs := writeTemp(t, tmpDir, "defs.yaml", "initial")

	w, err := NewWatcher([]string{defs},
		WithDebounceDuration(50*time.Millisecond),
		WithPollInterval(100*time.Millisecond),
		WithForcePoll(true),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(defs, []byte("new content"), 0o644)
	}()

	select {
	case <-w.Changed():
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for change notification")
	}

	if got := w.TakeChanged(); !reflect.DeepEqual(got, []string{defs}) {
		t.Errorf("TakeChanged = %v", got)
	}
	if got := w.TakeChanged(); len(got) != 0 {
		t.Errorf("second TakeChanged should be empty, got %v", got)
	}
}

func TestWatcher_EnvForcePoll(t *testing.T) {
	t.Setenv(ForcePollEnvVar, "1")

	defs := writeTemp(t, t.TempDir(), "defs.yaml", "initial")
	w, err := NewWatcher([]string{defs},
		WithDebounceDuration(10*time.Millisecond),
		WithPollInterval(25*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatalf("expected watcher to be in polling mode when %s is set", ForcePollEnvVar)
	}
}

func TestWatcher_RemoteFilesystem_UsesPolling(t *testing.T) {
	defs := writeTemp(t, t.TempDir(), "defs.yaml", "initial")

	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(string) FilesystemType { return FSTypeNFS }
	t.Cleanup(func() { detectFilesystemTypeFunc = orig })

	w, err := NewWatcher([]string{defs},
		WithDebounceDuration(10*time.Millisecond),
		WithPollInterval(25*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected watcher to use polling on remote filesystem")
	}
	if got := w.FilesystemType(); got != FSTypeNFS {
		t.Fatalf("expected filesystem type %v, got %v", FSTypeNFS, got)
	}
}

func TestWatcher_FileRemoved(t *testing.T) {
	defs := writeTemp(t, t.TempDir(), "defs.yaml", "initial")

	var (
		errMu    sync.Mutex
		gotError error
	)

	w, err := NewWatcher([]string{defs},
		WithDebounceDuration(50*time.Millisecond),
		WithPollInterval(50*time.Millisecond),
		WithForcePoll(true),
		WithOnError(func(err error) {
			errMu.Lock()
			gotError = err
			errMu.Unlock()
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)

	if err := os.Remove(defs); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)

	errMu.Lock()
	receivedError := gotError
	errMu.Unlock()

	if !errors.Is(receivedError, ErrFileRemoved) {
		t.Errorf("expected ErrFileRemoved, got %v", receivedError)
	}
}

func TestWatcher_StartStop(t *testing.T) {
	defs := writeTemp(t, t.TempDir(), "defs.yaml", "initial")

	w, err := NewWatcher([]string{defs})
	if err != nil {
		t.Fatal(err)
	}

	if w.IsStarted() {
		t.Error("watcher should not be started initially")
	}

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	if !w.IsStarted() {
		t.Error("watcher should be started after Start()")
	}

	// Double start should error
	if err := w.Start(); err != ErrAlreadyStarted {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	w.Stop()

	if w.IsStarted() {
		t.Error("watcher should not be started after Stop()")
	}

	// Double stop should be safe
	w.Stop()
}

func TestNewWatcher_NoPaths(t *testing.T) {
	if _, err := NewWatcher(nil); !errors.Is(err, ErrNoPaths) {
		t.Errorf("expected ErrNoPaths, got %v", err)
	}
}

func TestWatcher_PathsAreAbsolute(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeTemp(t, dir, "defs.yaml", "initial")

	w, err := NewWatcher([]string{"defs.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	absPath, _ := filepath.Abs("defs.yaml")
	if got := w.Paths(); len(got) != 1 || got[0] != absPath {
		t.Errorf("expected [%s], got %v", absPath, got)
	}
}

func TestWatcher_PollInterval(t *testing.T) {
	defs := writeTemp(t, t.TempDir(), "defs.yaml", "initial")

	customInterval := 500 * time.Millisecond
	w, err := NewWatcher([]string{defs}, WithPollInterval(customInterval))
	if err != nil {
		t.Fatal(err)
	}

	if got := w.PollInterval(); got != customInterval {
		t.Errorf("expected poll interval %v, got %v", customInterval, got)
	}
}

func TestFilesystemType_String(t *testing.T) {
	tests := []struct {
		fsType   FilesystemType
		expected string
	}{
		{FSTypeUnknown, "unknown"},
		{FSTypeLocal, "local"},
		{FSTypeNFS, "nfs"},
		{FSTypeSMB, "smb"},
		{FSTypeSSHFS, "sshfs"},
		{FSTypeFUSE, "fuse"},
		{FilesystemType(99), "unknown"}, // invalid type
	}

	for _, tc := range tests {
		if got := tc.fsType.String(); got != tc.expected {
			t.Errorf("FilesystemType(%d).String() = %q, expected %q", tc.fsType, got, tc.expected)
		}
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"y", true},
		{"on", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"", false},
		{"invalid", false},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("TEST_ENV_BOOL", tc.value)
			if got := envBool("TEST_ENV_BOOL"); got != tc.expected {
				t.Errorf("envBool(%q) = %v, expected %v", tc.value, got, tc.expected)
			}
		})
	}
}

func TestDetectFilesystemType_EmptyPath(t *testing.T) {
	if got := DetectFilesystemType(""); got != FSTypeUnknown {
		t.Errorf("DetectFilesystemType(\"\") = %v, expected FSTypeUnknown", got)
	}
}

func TestDetectFilesystemType_NonExistentPath(t *testing.T) {
	var seen string
	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(p string) FilesystemType {
		seen = p
		return FSTypeLocal
	}
	t.Cleanup(func() { detectFilesystemTypeFunc = orig })

	tmpDir := t.TempDir()
	nonExistent := filepath.Join(tmpDir, "missing", "defs.yaml")
	if got := DetectFilesystemType(nonExistent); got != FSTypeLocal {
		t.Errorf("expected FSTypeLocal, got %v", got)
	}
	if seen != tmpDir {
		t.Errorf("expected detection on nearest existing parent %s, got %s", tmpDir, seen)
	}
}
