package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"PixelBoard/internal/state"
)

// Schema for the pixels table. updated_at holds Unix nanoseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS pixels (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	x           INTEGER NOT NULL,
	y           INTEGER NOT NULL,
	color       TEXT    NOT NULL,
	inserted_by TEXT    NOT NULL DEFAULT 'Anonymous',
	updated_at  INTEGER NOT NULL DEFAULT (CAST((julianday('now') - 2440587.5) * 86400000000000 AS INTEGER)),
	UNIQUE(x, y)
);
CREATE INDEX IF NOT EXISTS idx_pixels_coordinates ON pixels(x, y);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=10000",
	"PRAGMA synchronous=NORMAL",
}

// SQLiteStore persists the grid in a single SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// OpenSQLite opens (and if needed creates) the database at path. Use
// ":memory:" for a throwaway database.
func OpenSQLite(path string, opts ...Option) (*SQLiteStore, error) {
	o := defaults()
	for _, fn := range opts {
		fn(&o)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &SQLiteStore{db: db, opts: o}, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", state.ErrStorageUnavailable, op, err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCell(row scanner) (state.Cell, error) {
	var (
		c  state.Cell
		ns int64
	)
	if err := row.Scan(&c.X, &c.Y, &c.Color, &c.InsertedBy, &ns); err != nil {
		return state.Cell{}, err
	}
	c.UpdatedAt = time.Unix(0, ns).UTC()
	return c, nil
}

func (s *SQLiteStore) All(ctx context.Context) ([]state.Cell, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT x, y, color, inserted_by, updated_at
		FROM pixels
		ORDER BY updated_at ASC, id ASC`)
	if err != nil {
		return nil, unavailable("all", err)
	}
	defer rows.Close()

	cells := []state.Cell{}
	for rows.Next() {
		c, err := scanCell(rows)
		if err != nil {
			return nil, unavailable("all", err)
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("all", err)
	}
	return cells, nil
}

func (s *SQLiteStore) Get(ctx context.Context, x, y int) (state.Cell, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT x, y, color, inserted_by, updated_at
		FROM pixels WHERE x = ? AND y = ?`, x, y)
	c, err := scanCell(row)
	if errors.Is(err, sql.ErrNoRows) {
		return state.Cell{}, state.ErrNotFound
	}
	if err != nil {
		return state.Cell{}, unavailable("get", err)
	}
	return c, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, x, y int, color, author string) (state.Cell, error) {
	now := s.opts.now().UnixNano()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO pixels (x, y, color, inserted_by, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(x, y) DO UPDATE SET
			color       = excluded.color,
			inserted_by = excluded.inserted_by,
			updated_at  = MAX(pixels.updated_at, excluded.updated_at)
		RETURNING x, y, color, inserted_by, updated_at`,
		x, y, color, state.NormalizeAuthor(author), now)
	c, err := scanCell(row)
	if err != nil {
		return state.Cell{}, unavailable("upsert", err)
	}
	return c, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, x, y int) (state.Cell, error) {
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM pixels WHERE x = ? AND y = ?
		RETURNING x, y, color, inserted_by, updated_at`, x, y)
	c, err := scanCell(row)
	if errors.Is(err, sql.ErrNoRows) {
		return state.Cell{}, state.ErrNotFound
	}
	if err != nil {
		return state.Cell{}, unavailable("delete", err)
	}
	return c, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pixels`).Scan(&n); err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

func (s *SQLiteStore) TopPainters(ctx context.Context, limit int) ([]state.PainterCount, error) {
	if limit <= 0 {
		limit = -1 // no LIMIT in SQLite
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT inserted_by, COUNT(*) AS cells
		FROM pixels
		GROUP BY inserted_by
		ORDER BY cells DESC, inserted_by ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, unavailable("top painters", err)
	}
	defer rows.Close()

	out := []state.PainterCount{}
	for rows.Next() {
		var pc state.PainterCount
		if err := rows.Scan(&pc.Label, &pc.Cells); err != nil {
			return nil, unavailable("top painters", err)
		}
		out = append(out, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("top painters", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
