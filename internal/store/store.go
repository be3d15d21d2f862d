package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Keys for the values the SDK persists between runs.
const (
	keyDeviceID   = "device_id"
	keySavedLogin = "saved_login"
	keyReferral   = "referral"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("value not found")

// Store is the SDK's local persisted state: a small key-value table in a
// sqlite file, holding the device id, the saved login, and the referral
// account. Session-scoped game state never lands here.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (and if needed initializes) the store at the given path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored value for key, or ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}

// Set stores the value under key, replacing any existing value.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes the value under key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// DeviceID returns the stable per-install identifier, creating it on first
// use.
func (s *Store) DeviceID() (string, error) {
	id, err := s.Get(keyDeviceID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	id = "mdid_" + uuid.NewString()
	if err := s.Set(keyDeviceID, id); err != nil {
		return "", err
	}
	s.logger.Info("created device id", zap.String("device_id", id))
	return id, nil
}

// SavedLogin returns the remembered player name, or ErrNotFound.
func (s *Store) SavedLogin() (string, error) {
	return s.Get(keySavedLogin)
}

// SaveLogin remembers the player name for the next run.
func (s *Store) SaveLogin(name string) error {
	return s.Set(keySavedLogin, name)
}

// ClearLogin forgets the remembered player.
func (s *Store) ClearLogin() error {
	return s.Delete(keySavedLogin)
}

// Referral returns the stored referral account, or ErrNotFound.
func (s *Store) Referral() (string, error) {
	return s.Get(keyReferral)
}

// SetReferral stores the referral account.
func (s *Store) SetReferral(account string) error {
	return s.Set(keyReferral, account)
}
