package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gymdesk/internal/adapters/storage/account"
	domain "gymdesk/internal/domain/account"
	"gymdesk/internal/domain/identity"
)

// AccountStoreForSeed defines the store interface needed by SeedDevAdmin.
type AccountStoreForSeed interface {
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	Save(ctx context.Context, a domain.Account) error
}

// SeedDevAdminInput carries the bootstrap credentials.
type SeedDevAdminInput struct {
	Email    string
	Password string
	Name     string
}

// SeedDevAdminDeps holds dependencies for SeedDevAdmin.
type SeedDevAdminDeps struct {
	AccountStore AccountStoreForSeed
	GenerateID   func() string
	Now          func() time.Time
}

// ExecuteSeedDevAdmin creates the first local admin account when it does not exist.
// Used only when no identity provider is configured.
// PRE: Email and Password are non-empty
// POST: an admin account with Email exists; an existing account is left unchanged
func ExecuteSeedDevAdmin(ctx context.Context, input SeedDevAdminInput, deps SeedDevAdminDeps) (bool, error) {
	if input.Email == "" || input.Password == "" {
		return false, nil
	}
	_, err := deps.AccountStore.GetByEmail(ctx, input.Email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, account.ErrNotFound) {
		return false, err
	}

	a := domain.Account{
		ID:        deps.GenerateID(),
		Email:     input.Email,
		Name:      input.Name,
		Role:      identity.RoleAdmin,
		CreatedAt: deps.Now(),
	}
	if err := a.Validate(); err != nil {
		return false, err
	}
	if err := a.SetPassword(input.Password); err != nil {
		return false, err
	}
	if err := deps.AccountStore.Save(ctx, a); err != nil {
		return false, err
	}
	slog.Info("auth_event", "event", "dev_admin_seeded", "email", a.Email)
	return true, nil
}
