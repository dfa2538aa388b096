// Package history records the settings pages a user visits and edits, so
// the recent locations popup can offer them again.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/settree/pkg/debug"
	"github.com/vanderheijden86/settree/pkg/metrics"
)

// MemoryPath opens a private in-memory store.
const MemoryPath = ":memory:"

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("history store closed")

// Place is one visit to a page.
type Place struct {
	PageID string
	// Changed is set when the visit edited a value on the page.
	Changed bool
	At      time.Time
}

// IsSame reports whether two places point at the same page.
func (p Place) IsSame(other Place) bool {
	return p.PageID == other.PageID
}

const schema = `
CREATE TABLE IF NOT EXISTS places (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	page_id TEXT    NOT NULL,
	changed INTEGER NOT NULL DEFAULT 0,
	at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS places_page ON places(page_id);
CREATE INDEX IF NOT EXISTS places_at ON places(at DESC);
`

// Store is a SQLite-backed history of visited places.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the history database at path. Use
// MemoryPath for a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	var dsn string
	if path == MemoryPath || path == "" {
		dsn = "file::memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open history database: %w", err)
	}
	// One connection: in-memory databases are per connection, and the TUI
	// is the only writer anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	debug.Log("history: opened %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Record appends a visit. A zero At is stamped with the current time.
func (s *Store) Record(ctx context.Context, p Place) error {
	if s.db == nil {
		return ErrClosed
	}
	if p.PageID == "" {
		return fmt.Errorf("recording place: empty page id")
	}
	if p.At.IsZero() {
		p.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO places (page_id, changed, at) VALUES (?, ?, ?)`,
		p.PageID, boolToInt(p.Changed), p.At.UnixNano())
	if err != nil {
		return fmt.Errorf("recording place: %w", err)
	}
	return nil
}

// Places returns the most recent distinct pages, newest first. With
// changedOnly, only visits that edited something count. A limit <= 0
// returns every page.
func (s *Store) Places(ctx context.Context, changedOnly bool, limit int) ([]Place, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	defer metrics.Timer(metrics.HistoryQuery)()

	query := `
		SELECT page_id, MAX(changed), MAX(at) AS last, MAX(id) AS last_id
		FROM places
		WHERE (? = 0 OR changed = 1)
		GROUP BY page_id
		ORDER BY last DESC, last_id DESC
		LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, query, boolToInt(changedOnly), limit)
	if err != nil {
		return nil, fmt.Errorf("querying places: %w", err)
	}
	defer rows.Close()

	var places []Place
	for rows.Next() {
		var (
			p       Place
			changed int
			at      int64
			lastID  int64
		)
		if err := rows.Scan(&p.PageID, &changed, &at, &lastID); err != nil {
			return nil, fmt.Errorf("scanning place: %w", err)
		}
		p.Changed = changed != 0
		p.At = time.Unix(0, at)
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying places: %w", err)
	}
	return places, nil
}

// Prune keeps the newest keep visits and deletes the rest. It returns the
// number of rows removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if s.db == nil {
		return 0, ErrClosed
	}
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM places
		WHERE id NOT IN (SELECT id FROM places ORDER BY at DESC, id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	n, _ := res.RowsAffected()
	debug.LogIf(n > 0, "history: pruned %d rows", n)
	return n, nil
}

// Forget removes every visit to pageID, used when a page disappears from
// the definitions.
func (s *Store) Forget(ctx context.Context, pageID string) error {
	if s.db == nil {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM places WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("forgetting %s: %w", pageID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
