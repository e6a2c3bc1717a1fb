package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage keeps the network in a single-row SQLite table as a CBOR
// blob.
type SQLiteStorage struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStorage opens (or creates) the database at path. Use ":memory:"
// for a throwaway database.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: configure database: %w", err)
	}

	s := &SQLiteStorage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS network (
		id INTEGER PRIMARY KEY CHECK (id = 0),
		data BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`)
	return err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// LoadNetwork returns the stored network or ErrNotFound.
func (s *SQLiteStorage) LoadNetwork() (*Network, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.QueryRow(`SELECT data FROM network WHERE id = 0`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load network: %w", err)
	}
	return DecodeNetwork(data)
}

// SaveNetwork replaces the stored network.
func (s *SQLiteStorage) SaveNetwork(n *Network) error {
	data, err := EncodeNetwork(n)
	if err != nil {
		return fmt.Errorf("storage: encode network: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO network (id, data, updated_at) VALUES (0, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage: save network: %w", err)
	}
	return nil
}

// ClearNetwork deletes the stored network.
func (s *SQLiteStorage) ClearNetwork() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM network WHERE id = 0`); err != nil {
		return fmt.Errorf("storage: clear network: %w", err)
	}
	return nil
}

var _ Storage = (*SQLiteStorage)(nil)
