// Package config reads the server settings from GYM_* environment variables.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"gymdesk/internal/adapters/backend"
	"gymdesk/internal/adapters/keycloak"
	"gymdesk/internal/adapters/realtime"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is everything cmd/server needs to start.
type Config struct {
	Addr     string
	Env      string
	LogLevel slog.Level
	DBPath   string

	CSRFKey        []byte
	SecureCookies  bool
	TrustedOrigins []string

	Endpoints     backend.Endpoints
	BackendCookie string
	Timeout       time.Duration
	// DevToken is sent upstream for local accounts.
	DevToken string

	Keycloak  keycloak.Config
	Firestore realtime.FirestoreConfig

	ResendKey  string
	ResendFrom string

	AdminEmail    string
	AdminPassword string
}

// IsProduction reports whether Env is production.
func (c Config) IsProduction() bool { return c.Env == EnvProduction }

// Getenv looks up an environment variable. os.Getenv satisfies it.
type Getenv func(key string) string

// Load reads the configuration.
// POST: in production the CSRF key and either Keycloak or a dev token are
// required; in development a missing CSRF key is generated
func Load(getenv Getenv) (Config, error) {
	env := func(key, fallback string) string { return envOrDefault(getenv, key, fallback) }

	c := Config{
		Addr:          env("GYM_ADDR", ":8080"),
		Env:           env("GYM_ENV", EnvDevelopment),
		DBPath:        env("GYM_DB_PATH", "gymdesk.db"),
		BackendCookie: env("GYM_BACKEND_COOKIE", backend.DefaultSessionCookie),
		DevToken:      getenv("GYM_DEV_TOKEN"),
		ResendKey:     getenv("GYM_RESEND_KEY"),
		ResendFrom:    env("GYM_RESEND_FROM", "Gym <no-reply@gym.local>"),
		AdminEmail:    env("GYM_ADMIN_EMAIL", "admin@gym.local"),
		AdminPassword: getenv("GYM_ADMIN_PASSWORD"),
	}

	level, err := parseLevel(env("GYM_LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}
	c.LogLevel = level

	c.Timeout, err = time.ParseDuration(env("GYM_BACKEND_TIMEOUT", backend.DefaultTimeout.String()))
	if err != nil {
		return Config{}, fmt.Errorf("GYM_BACKEND_TIMEOUT: %w", err)
	}

	c.SecureCookies, err = strconv.ParseBool(env("GYM_SECURE_COOKIES", strconv.FormatBool(c.IsProduction())))
	if err != nil {
		return Config{}, fmt.Errorf("GYM_SECURE_COOKIES: %w", err)
	}
	c.TrustedOrigins = splitList(getenv("GYM_TRUSTED_ORIGINS"))

	gateway := strings.TrimRight(getenv("GYM_GATEWAY_URL"), "/")
	service := func(key string) string { return strings.TrimRight(env(key, gateway), "/") }
	c.Endpoints = backend.Endpoints{
		Members:         service("GYM_MEMBERS_URL"),
		Classes:         service("GYM_CLASSES_URL"),
		Plans:           service("GYM_PLANS_URL"),
		Products:        service("GYM_PRODUCTS_URL"),
		Promotions:      service("GYM_PROMOTIONS_URL"),
		Personal:        service("GYM_PERSONAL_URL"),
		Reservations:    service("GYM_RESERVATIONS_URL"),
		UserMemberships: service("GYM_USER_MEMBERSHIPS_URL"),
		NFC:             service("GYM_NFC_URL"),
		Auth:            service("GYM_AUTH_URL"),
	}
	if missing := c.missingEndpoints(); len(missing) > 0 {
		return Config{}, fmt.Errorf("no URL for %s: set GYM_GATEWAY_URL or the per-service variables", strings.Join(missing, ", "))
	}

	c.Keycloak = keycloak.Config{
		RealmURL:              strings.TrimRight(getenv("GYM_KEYCLOAK_REALM_URL"), "/"),
		ClientID:              getenv("GYM_KEYCLOAK_CLIENT_ID"),
		ClientSecret:          getenv("GYM_KEYCLOAK_CLIENT_SECRET"),
		RedirectURL:           getenv("GYM_KEYCLOAK_REDIRECT_URL"),
		PostLogoutRedirectURL: getenv("GYM_KEYCLOAK_POST_LOGOUT_URL"),
		SigningMethods:        splitList(getenv("GYM_KEYCLOAK_SIGNING_METHODS")),
	}

	c.Firestore = realtime.FirestoreConfig{
		ProjectID:       getenv("GYM_FIRESTORE_PROJECT"),
		CredentialsFile: getenv("GYM_FIRESTORE_CREDENTIALS"),
		Collection:      env("GYM_FIRESTORE_COLLECTION", "gyms/"+realtime.TenantPlaceholder+"/metrics"),
		Document:        env("GYM_FIRESTORE_DOCUMENT", "dashboard"),
	}
	if c.Firestore.Enabled() {
		if err := c.Firestore.Validate(); err != nil {
			return Config{}, fmt.Errorf("GYM_FIRESTORE_COLLECTION: %w", err)
		}
	}

	c.CSRFKey, err = csrfKey(getenv("GYM_CSRF_KEY"), c.IsProduction())
	if err != nil {
		return Config{}, err
	}

	if c.IsProduction() && !c.Keycloak.Enabled() && c.DevToken == "" {
		return Config{}, errors.New("production requires GYM_KEYCLOAK_REALM_URL and GYM_KEYCLOAK_CLIENT_ID")
	}
	return c, nil
}

func (c Config) missingEndpoints() []string {
	var missing []string
	for name, url := range map[string]string{
		"members":          c.Endpoints.Members,
		"classes":          c.Endpoints.Classes,
		"plans":            c.Endpoints.Plans,
		"products":         c.Endpoints.Products,
		"promotions":       c.Endpoints.Promotions,
		"personal":         c.Endpoints.Personal,
		"reservations":     c.Endpoints.Reservations,
		"user memberships": c.Endpoints.UserMemberships,
		"nfc":              c.Endpoints.NFC,
		"auth":             c.Endpoints.Auth,
	} {
		if url == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// csrfKey decodes a 64 character hex key. Outside production an empty value
// yields a random key, which invalidates forms on every restart.
func csrfKey(raw string, production bool) ([]byte, error) {
	if raw == "" {
		if production {
			return nil, errors.New("GYM_CSRF_KEY is required in production")
		}
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate CSRF key: %w", err)
		}
		return key, nil
	}
	key, err := hex.DecodeString(raw)
	if err != nil || len(key) != 32 {
		return nil, errors.New("GYM_CSRF_KEY must be 64 hex characters")
	}
	return key, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("GYM_LOG_LEVEL: %w", err)
	}
	return level, nil
}

func envOrDefault(getenv Getenv, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
