package middleware

import (
	"context"
	"net/http"

	"gymdesk/internal/adapters/i18n"
)

// LocalePreferences looks up a user's stored locale.
type LocalePreferences interface {
	GetLocale(ctx context.Context, userID string) (string, error)
}

// Locale resolves the request locale and stores it in the context.
// Order: locale cookie, stored preference of the signed-in user,
// Accept-Language, default. Must run after Auth.
func Locale(prefs LocalePreferences) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := resolveLocale(r, prefs)
			next.ServeHTTP(w, r.WithContext(i18n.WithLocale(r.Context(), locale)))
		})
	}
}

func resolveLocale(r *http.Request, prefs LocalePreferences) string {
	if c, err := r.Cookie(i18n.CookieName); err == nil && i18n.IsSupported(c.Value) {
		return c.Value
	}
	if prefs != nil {
		if user, ok := GetUserFromContext(r.Context()); ok {
			if l, err := prefs.GetLocale(r.Context(), user.ID); err == nil && i18n.IsSupported(l) {
				return l
			}
		}
	}
	return i18n.Match(r.Header.Get("Accept-Language"))
}

// SetLocaleCookie persists the chosen locale for a year.
func SetLocaleCookie(w http.ResponseWriter, locale string) {
	http.SetCookie(w, &http.Cookie{
		Name:     i18n.CookieName,
		Value:    locale,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
