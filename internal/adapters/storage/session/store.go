package session

import (
	"context"
	"time"

	domain "gymdesk/internal/domain/session"
)

// Store persists login sessions.
type Store interface {
	Save(ctx context.Context, s domain.Session) error
	Get(ctx context.Context, token string) (domain.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
