package localcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// FileSlot stores the value as <dir>/<name>.json.
type FileSlot struct {
	path string
}

func NewFileSlot(dir, name string) (*FileSlot, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("localcache: create dir: %w", err)
	}
	return &FileSlot{path: filepath.Join(dir, name+".json")}, nil
}

func (s *FileSlot) Load(ctx context.Context) ([]byte, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return b, err
}

func (s *FileSlot) Store(ctx context.Context, value []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".slot-*")
	if err != nil {
		return fmt.Errorf("localcache: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("localcache: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("localcache: close: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

const slotSchema = `CREATE TABLE IF NOT EXISTS slots (
	name  TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// SQLiteSlot keeps the value in a row of the slots table.
type SQLiteSlot struct {
	db   *sql.DB
	name string
}

func OpenSQLiteSlot(path, name string) (*SQLiteSlot, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("localcache: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("localcache: create dir: %w", err)
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("localcache: open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("localcache: ping sqlite db: %w", err)
	}
	if _, err := db.Exec(slotSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("localcache: create slots table: %w", err)
	}
	return &SQLiteSlot{db: db, name: name}, nil
}

func (s *SQLiteSlot) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteSlot) Load(ctx context.Context) ([]byte, error) {
	var b []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE name = ?`, s.name).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("localcache: load slot: %w", err)
	}
	return b, nil
}

func (s *SQLiteSlot) Store(ctx context.Context, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO slots (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`, s.name, value)
	if err != nil {
		return fmt.Errorf("localcache: store slot: %w", err)
	}
	return nil
}

type MemorySlot struct {
	mu    sync.Mutex
	value []byte
}

func (s *MemorySlot) Load(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.value...), nil
}

func (s *MemorySlot) Store(_ context.Context, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = append([]byte(nil), value...)
	return nil
}
