// Package prefs persists operator preferences (last tab, filter state) in
// a small SQLite key/value table.
package prefs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/order-desk/console/internal/filter"
	"github.com/order-desk/console/internal/order"
)

const (
	keyTab    = "dashboard.tab"
	keyFilter = "dashboard.filter"
)

// Store wraps the SQLite database connection.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the preferences database.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open prefs: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate prefs: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS prefs (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	return err
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) put(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// get returns the stored value; ok is false when the key is absent.
func (s *Store) get(key string) (value string, ok bool, err error) {
	err = s.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load %s: %w", key, err)
	}
	return value, true, nil
}

// SaveTab records the active tab.
func (s *Store) SaveTab(b order.Bucket) error {
	return s.put(keyTab, b.Key())
}

// LoadTab returns the last saved tab.
func (s *Store) LoadTab() (order.Bucket, bool, error) {
	v, ok, err := s.get(keyTab)
	if err != nil || !ok {
		return 0, false, err
	}
	b, ok := order.ParseBucket(v)
	if !ok || !b.Tracked() {
		return 0, false, nil
	}
	return b, true, nil
}

// SaveFilter records the filter state.
func (s *Store) SaveFilter(st filter.State) error {
	buf, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode filter: %w", err)
	}
	return s.put(keyFilter, string(buf))
}

// LoadFilter returns the saved filter state. A corrupt value is treated
// as absent.
func (s *Store) LoadFilter() (filter.State, bool, error) {
	v, ok, err := s.get(keyFilter)
	if err != nil || !ok {
		return filter.DefaultState(), false, err
	}
	st := filter.DefaultState()
	if err := json.Unmarshal([]byte(v), &st); err != nil {
		return filter.DefaultState(), false, nil
	}
	return st, true, nil
}

// ResetFilter forgets the saved filter state.
func (s *Store) ResetFilter() error {
	if _, err := s.db.Exec(`DELETE FROM prefs WHERE key = ?`, keyFilter); err != nil {
		return fmt.Errorf("reset filter: %w", err)
	}
	return nil
}
