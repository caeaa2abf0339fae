// Package history records completed generations in a sqlite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for an unknown item id.
var ErrNotFound = errors.New("history item not found")

// PreviewType says how Preview.Data is to be read.
type PreviewType string

const (
	PreviewImage      PreviewType = "image"
	PreviewVideo      PreviewType = "video"
	PreviewText       PreviewType = "text"
	PreviewStoryboard PreviewType = "storyboard"
)

// Preview is the short representation shown in listings: base64 for
// images, a path or media id for videos, text otherwise.
type Preview struct {
	Type PreviewType `json:"type"`
	Data string      `json:"data"`
}

// Item is one recorded generation. State holds the request that produced it.
type Item struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      string          `json:"kind"`
	Preview   Preview         `json:"preview"`
	State     json.RawMessage `json:"state,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at   INTEGER NOT NULL,
	kind         TEXT    NOT NULL,
	preview_type TEXT    NOT NULL,
	preview_data TEXT    NOT NULL,
	state        TEXT
);
CREATE INDEX IF NOT EXISTS history_created_at ON history (created_at DESC);
`

// Store is a history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure history db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Add records item and returns it with its id and timestamp set.
func (s *Store) Add(ctx context.Context, item Item) (Item, error) {
	if item.Kind == "" {
		return Item{}, errors.New("history item kind is required")
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = s.now()
	}

	var state any
	if len(item.State) > 0 {
		state = string(item.State)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO history (created_at, kind, preview_type, preview_data, state) VALUES (?, ?, ?, ?, ?)`,
		item.Timestamp.UnixMilli(), item.Kind, string(item.Preview.Type), item.Preview.Data, state)
	if err != nil {
		return Item{}, fmt.Errorf("insert history item: %w", err)
	}

	if item.ID, err = res.LastInsertId(); err != nil {
		return Item{}, fmt.Errorf("history item id: %w", err)
	}
	return item, nil
}

// List returns up to limit items, newest first. A limit <= 0 returns all.
// A non-empty kind filters by kind.
func (s *Store) List(ctx context.Context, kind string, limit int) ([]Item, error) {
	query := `SELECT id, created_at, kind, preview_type, preview_data, state FROM history`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Get returns one item.
func (s *Store) Get(ctx context.Context, id int64) (Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, kind, preview_type, preview_data, state FROM history WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

// Delete removes one item.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete history item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every item and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner) (Item, error) {
	var (
		it      Item
		created int64
		ptype   string
		state   sql.NullString
	)
	if err := sc.Scan(&it.ID, &created, &it.Kind, &ptype, &it.Preview.Data, &state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, err
		}
		return Item{}, fmt.Errorf("scan history item: %w", err)
	}
	it.Timestamp = time.UnixMilli(created)
	it.Preview.Type = PreviewType(ptype)
	if state.Valid {
		it.State = json.RawMessage(state.String)
	}
	return it, nil
}
