// Package preference stores per-user display preferences.
package preference

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gymdesk/internal/adapters/storage"
)

// ErrNotFound is returned when the user has no stored preference.
var ErrNotFound = errors.New("preference not found")

// Store persists each user's preferred locale.
type Store interface {
	GetLocale(ctx context.Context, userID string) (string, error)
	SetLocale(ctx context.Context, userID, locale string) error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new preference store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetLocale returns the stored locale for userID.
func (s *SQLiteStore) GetLocale(ctx context.Context, userID string) (string, error) {
	var locale string
	err := s.db.QueryRowContext(ctx, "SELECT locale FROM locale_preference WHERE user_id = ?", userID).Scan(&locale)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return locale, err
}

// SetLocale stores locale for userID.
func (s *SQLiteStore) SetLocale(ctx context.Context, userID, locale string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO locale_preference (user_id, locale, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET locale=excluded.locale, updated_at=excluded.updated_at`,
		userID, locale, time.Now().UTC().Format(time.RFC3339))
	return err
}
