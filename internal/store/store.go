// Package store provides SQLite persistence for Soundprints.
//
// It keeps the small amount of state that must outlive a session: user
// preferences (the filter selection) and a local history of uploads.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abelbrown/soundprints/internal/sound"
)

// Store handles SQLite persistence. Concrete type, no interface.
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Upload is one locally recorded upload.
type Upload struct {
	ID        string
	Name      string
	Category  sound.Category
	Lat       float64
	Lon       float64
	Duration  time.Duration
	CreatedAt time.Time
}

// Open creates a new Store with the given database path and creates the
// tables if they don't exist. File-based databases use WAL mode.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		lat REAL,
		lon REAL,
		duration_ms INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_uploads_created ON uploads(created_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// GetPreference returns the stored value for key. The bool is false when
// the key has never been written.
func (s *Store) GetPreference(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %q: %w", key, err)
	}
	return value, true, nil
}

// SetPreference writes value for key, replacing any previous value.
func (s *Store) SetPreference(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("set preference %q: %w", key, err)
	}
	return nil
}

// DeletePreference removes key. Deleting a missing key is not an error.
func (s *Store) DeletePreference(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete preference %q: %w", key, err)
	}
	return nil
}

// RecordUpload stores an uploaded item. Re-recording the same id
// overwrites the earlier row.
func (s *Store) RecordUpload(item sound.Item) error {
	if item.ID == "" {
		return errors.New("record upload: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var lat, lon sql.NullFloat64
	if item.Location != nil {
		lat = sql.NullFloat64{Float64: item.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: item.Location.Lon, Valid: true}
	}
	created := item.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO uploads (id, name, category, lat, lon, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.Name, string(item.Category), lat, lon, item.Duration.Milliseconds(), created)
	if err != nil {
		return fmt.Errorf("record upload %s: %w", item.ID, err)
	}
	return nil
}

// RecentUploads returns up to limit uploads, newest first.
func (s *Store) RecentUploads(limit int) ([]Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, name, category, lat, lon, duration_ms, created_at
		FROM uploads ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query uploads: %w", err)
	}
	defer rows.Close()

	var out []Upload
	for rows.Next() {
		var (
			u        Upload
			category string
			lat, lon sql.NullFloat64
			durMs    int64
		)
		if err := rows.Scan(&u.ID, &u.Name, &category, &lat, &lon, &durMs, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		u.Category = sound.Category(category)
		u.Lat, u.Lon = lat.Float64, lon.Float64
		u.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, u)
	}
	return out, rows.Err()
}
