package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Keys persisted in the client's local state database.
const (
	PrefActiveFamily = "active_family_id"
	PrefSessionToken = "session_token"
	PrefServerURL    = "server_url"
)

// PrefsStore is the client's on-device key-value store. It backs the
// active-family selection and the session token across restarts.
type PrefsStore struct {
	db *sql.DB
}

func NewPrefsStore(db *sql.DB) *PrefsStore {
	return &PrefsStore{db: db}
}

// Get returns the value for key and whether it was present.
func (s *PrefsStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get pref %q: %w", key, err)
	}
	return value, true, nil
}

func (s *PrefsStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set pref %q: %w", key, err)
	}
	return nil
}

func (s *PrefsStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM prefs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete pref %q: %w", key, err)
	}
	return nil
}

// LoadSelection returns the persisted active family, or "" when unset.
func (s *PrefsStore) LoadSelection(ctx context.Context) (string, error) {
	v, _, err := s.Get(ctx, PrefActiveFamily)
	return v, err
}

// SaveSelection persists the active family. An empty id clears it.
func (s *PrefsStore) SaveSelection(ctx context.Context, familyID string) error {
	if familyID == "" {
		return s.Delete(ctx, PrefActiveFamily)
	}
	return s.Set(ctx, PrefActiveFamily, familyID)
}
