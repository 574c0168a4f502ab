package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymdesk/internal/adapters/storage"
	domain "gymdesk/internal/domain/session"
)

const columns = `token, user_id, email, name, role, tenant_id,
	access_token, refresh_token, id_token, token_expiry, created_at, expires_at`

// SQLiteStore implements Store using SQLite, so sessions survive restarts.
type SQLiteStore struct {
	db  storage.SQLDB
	now func() time.Time
}

// NewSQLiteStore creates a new session store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Save inserts or replaces a session.
// PRE: s.Validate() == nil
func (s *SQLiteStore) Save(ctx context.Context, sess domain.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	var expiry any
	if !sess.TokenExpiry.IsZero() {
		expiry = formatTime(sess.TokenExpiry)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO session (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			email=excluded.email,
			name=excluded.name,
			role=excluded.role,
			tenant_id=excluded.tenant_id,
			access_token=excluded.access_token,
			refresh_token=excluded.refresh_token,
			id_token=excluded.id_token,
			token_expiry=excluded.token_expiry,
			expires_at=excluded.expires_at`,
		sess.Token, sess.UserID, sess.Email, sess.Name, sess.Role, sess.TenantID,
		sess.AccessToken, sess.RefreshToken, sess.IDToken, expiry,
		formatTime(sess.CreatedAt), formatTime(sess.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get returns the live session for token.
// POST: domain.ErrNotFound for unknown or expired tokens
func (s *SQLiteStore) Get(ctx context.Context, token string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM session WHERE token = ?", token)

	var sess domain.Session
	var expiry sql.NullString
	var created, expires string
	err := row.Scan(&sess.Token, &sess.UserID, &sess.Email, &sess.Name, &sess.Role, &sess.TenantID,
		&sess.AccessToken, &sess.RefreshToken, &sess.IDToken, &expiry, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	sess.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expires)
	if expiry.Valid {
		sess.TokenExpiry, _ = time.Parse(time.RFC3339Nano, expiry.String)
	}
	if sess.IsExpired(s.now()) {
		return domain.Session{}, domain.ErrNotFound
	}
	return sess, nil
}

// Delete removes a session. Unknown tokens are not an error.
func (s *SQLiteStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM session WHERE token = ?", token)
	return err
}

// DeleteExpired purges sessions past their expiry and returns how many went.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM session WHERE expires_at <= ?", formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// formatTime uses a fixed-width UTC layout so expires_at compares correctly as text.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
