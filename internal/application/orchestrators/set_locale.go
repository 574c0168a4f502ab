package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"gymdesk/internal/adapters/i18n"
)

// ErrUnsupportedLocale is returned for locales without a catalog.
var ErrUnsupportedLocale = errors.New("unsupported locale")

// LocalePreferenceSetter persists a user's locale.
type LocalePreferenceSetter interface {
	SetLocale(ctx context.Context, userID, locale string) error
}

// SetLocaleInput carries input for SetLocale.
type SetLocaleInput struct {
	UserID    string // empty for anonymous visitors
	Current   string
	Requested string // empty toggles between the two locales
}

// ExecuteSetLocale picks the new locale and stores it for signed-in users.
// POST: returns a supported locale; a failed preference write is logged, not returned
func ExecuteSetLocale(ctx context.Context, input SetLocaleInput, prefs LocalePreferenceSetter) (string, error) {
	locale := input.Requested
	if locale == "" {
		locale = i18n.Toggle(input.Current)
	}
	if !i18n.IsSupported(locale) {
		return "", ErrUnsupportedLocale
	}
	if input.UserID != "" && prefs != nil {
		if err := prefs.SetLocale(ctx, input.UserID, locale); err != nil {
			slog.Error("locale_preference_save_failed", "user_id", input.UserID, "error", err)
		}
	}
	return locale, nil
}
