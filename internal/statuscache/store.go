// Package statuscache persists import job status payloads with a fixed
// time-to-live. Entries survive process restarts; expiry is handled lazily
// on read, so an expired entry is indistinguishable from one never set.
package statuscache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
	CREATE TABLE IF NOT EXISTS job_status (
		key        TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		expires_at TIMESTAMP NOT NULL
	)
`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if necessary) the status database at path. The
// path can be ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open status database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping status database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create status table: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores payload under key, replacing any prior entry and resetting
// the expiry clock.
func (s *Store) Put(key, payload string, ttl time.Duration) error {
	query := `
		INSERT INTO job_status (key, payload, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at
	`
	_, err := s.db.Exec(query, key, payload, s.now().Add(ttl))
	if err != nil {
		return fmt.Errorf("failed to store status: %w", err)
	}
	return nil
}

// Get returns the payload stored under key. The second return is false
// when the key is absent or its entry has expired.
func (s *Store) Get(key string) (string, bool, error) {
	query := `
		SELECT payload, expires_at FROM job_status WHERE key = ?
	`
	var (
		payload   string
		expiresAt time.Time
	)
	err := s.db.QueryRow(query, key).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query status: %w", err)
	}
	if !s.now().Before(expiresAt) {
		// Lazy expiry: drop the stale row so the table does not grow.
		s.db.Exec(`DELETE FROM job_status WHERE key = ?`, key)
		return "", false, nil
	}
	return payload, true, nil
}

// Remove deletes the entry under key. Removing an absent key is not an
// error.
func (s *Store) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM job_status WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove status: %w", err)
	}
	return nil
}
