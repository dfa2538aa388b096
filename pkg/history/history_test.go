package history

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), MemoryPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(t *testing.T, s *Store, id string, changed bool, at time.Time) {
	t.Helper()
	if err := s.Record(context.Background(), Place{PageID: id, Changed: changed, At: at}); err != nil {
		t.Fatalf("Record(%s): %v", id, err)
	}
}

func pageIDs(places []Place) []string {
	out := make([]string, len(places))
	for i, p := range places {
		out[i] = p.PageID
	}
	return out
}

func TestPlacesNewestFirstDeduplicated(t *testing.T) {
	s := openMemory(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	record(t, s, "editor.general", false, base)
	record(t, s, "vcs.git", true, base.Add(time.Minute))
	record(t, s, "editor.general", false, base.Add(2*time.Minute))
	record(t, s, "tools.terminal", false, base.Add(3*time.Minute))

	places, err := s.Places(context.Background(), false, 0)
	if err != nil {
		t.Fatalf("Places: %v", err)
	}
	got := strings.Join(pageIDs(places), ",")
	if got != "tools.terminal,editor.general,vcs.git" {
		t.Errorf("unexpected order %s", got)
	}
	if !places[1].At.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("expected latest visit time, got %v", places[1].At)
	}
}

func TestPlacesChangedOnlyAndLimit(t *testing.T) {
	s := openMemory(t)
	base := time.Now().Add(-time.Hour)

	record(t, s, "a", true, base)
	record(t, s, "b", false, base.Add(time.Second))
	record(t, s, "c", true, base.Add(2*time.Second))
	record(t, s, "d", true, base.Add(3*time.Second))

	changed, err := s.Places(context.Background(), true, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(pageIDs(changed), ","); got != "d,c,a" {
		t.Errorf("changed only = %s", got)
	}
	for _, p := range changed {
		if !p.Changed {
			t.Errorf("%s should be marked changed", p.PageID)
		}
	}

	limited, err := s.Places(context.Background(), false, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(pageIDs(limited), ","); got != "d,c" {
		t.Errorf("limited = %s", got)
	}
}

func TestSameTimestampOrdersByInsertion(t *testing.T) {
	s := openMemory(t)
	at := time.Now()
	record(t, s, "first", false, at)
	record(t, s, "second", false, at)

	places, err := s.Places(context.Background(), false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(places) != 2 || places[0].PageID != "second" {
		t.Errorf("later insert should come first, got %v", pageIDs(places))
	}
}

func TestPruneAndForget(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		record(t, s, id, false, base.Add(time.Duration(i)*time.Second))
	}

	n, err := s.Prune(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows pruned, got %d", n)
	}
	if err := s.Forget(ctx, "d"); err != nil {
		t.Fatal(err)
	}
	places, _ := s.Places(ctx, false, 0)
	if got := strings.Join(pageIDs(places), ","); got != "e,c" {
		t.Errorf("after prune and forget = %s", got)
	}
}

func TestRecordValidation(t *testing.T) {
	s := openMemory(t)
	if err := s.Record(context.Background(), Place{}); err == nil {
		t.Error("expected error for empty page id")
	}
	if err := s.Record(context.Background(), Place{PageID: "x"}); err != nil {
		t.Fatalf("zero time should be stamped, got %v", err)
	}
	places, _ := s.Places(context.Background(), false, 0)
	if len(places) != 1 || places[0].At.IsZero() {
		t.Errorf("expected stamped place, got %+v", places)
	}
}

func TestClosedStore(t *testing.T) {
	s, err := Open(context.Background(), MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(context.Background(), Place{PageID: "x"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "history.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	record(t, s, "keymap.main", true, time.Now())
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	places, err := s2.Places(ctx, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(places) != 1 || places[0].PageID != "keymap.main" || !places[0].Changed {
		t.Errorf("expected persisted place, got %+v", places)
	}
}

func TestBreadcrumbs(t *testing.T) {
	tests := []struct {
		name     string
		names    []string
		fallback string
		want     string
	}{
		{"empty uses fallback", nil, "page.id", "page.id"},
		{"single", []string{"Editor"}, "", "Editor"},
		{"joined", []string{"Editor", "Code Style", "Go"}, "", "Editor > Code Style > Go"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Breadcrumbs(tt.names, tt.fallback); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBreadcrumbsShortened(t *testing.T) {
	names := []string{"Build, Execution, Deployment", "Build Tools", "Gradle", "Runner", "Advanced"}
	got := Breadcrumbs(names, "")
	if w := runewidth.StringWidth(got); w != BreadcrumbWidth {
		t.Errorf("expected width %d, got %d (%q)", BreadcrumbWidth, w, got)
	}
	if !strings.HasSuffix(got, "…") || !strings.HasPrefix(got, "Build, Execution") {
		t.Errorf("expected prefix kept and ellipsis appended, got %q", got)
	}
}
