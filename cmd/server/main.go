package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gymdesk/internal/adapters/backend"
	"gymdesk/internal/adapters/email"
	web "gymdesk/internal/adapters/http"
	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/adapters/http/perf"
	"gymdesk/internal/adapters/i18n"
	"gymdesk/internal/adapters/keycloak"
	"gymdesk/internal/adapters/metrics"
	"gymdesk/internal/adapters/realtime"
	"gymdesk/internal/adapters/storage"
	accountStore "gymdesk/internal/adapters/storage/account"
	"gymdesk/internal/adapters/storage/preference"
	sessionStore "gymdesk/internal/adapters/storage/session"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

const (
	sessionSweepInterval = 15 * time.Minute
	shutdownTimeout      = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("server_exit", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// WAL mode, busy timeout and synchronous=NORMAL for concurrent request handlers.
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	if err := storage.MigrateDB(db, cfg.DBPath); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector)
	sessions := sessionStore.NewSQLiteStore(timedDB)
	prefs := preference.NewSQLiteStore(timedDB)

	translator, err := i18n.New()
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}

	m := metrics.New()
	httpClient := &http.Client{Timeout: cfg.Timeout}
	client := backend.NewClient(httpClient, m, collector)
	services := backend.NewServices(client, cfg.Endpoints)
	bridge := backend.NewSessionBridge(httpClient, cfg.Endpoints.Auth, cfg.BackendCookie, m, collector)

	deps := web.Deps{
		Services:       services,
		Sessions:       sessions,
		Preferences:    prefs,
		Bridge:         bridge,
		Metrics:        m,
		Perf:           collector,
		Translator:     translator,
		CSRFKey:        cfg.CSRFKey,
		SecureCookies:  cfg.SecureCookies,
		TrustedOrigins: cfg.TrustedOrigins,
		DevToken:       cfg.DevToken,
		Limiter:        middleware.NewRateLimiter(web.DefaultRateLimitPerSecond, time.Second),
	}

	if cfg.Keycloak.Enabled() {
		provider, err := keycloak.New(ctx, cfg.Keycloak)
		if err != nil {
			return err
		}
		deps.Provider = provider
		slog.Info("auth_configured", "provider", "keycloak", "realm", cfg.Keycloak.RealmURL)
	} else {
		accounts := accountStore.NewSQLiteStore(timedDB)
		deps.Accounts = accounts
		seeded, err := orchestrators.ExecuteSeedDevAdmin(ctx, orchestrators.SeedDevAdminInput{
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
			Name:     "Admin",
		}, orchestrators.SeedDevAdminDeps{
			AccountStore: accounts,
			GenerateID:   uuid.NewString,
			Now:          time.Now,
		})
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		slog.Info("auth_configured", "provider", "local", "admin_seeded", seeded, "dev_token", cfg.DevToken != "")
	}

	if cfg.Firestore.Enabled() {
		src, err := realtime.NewFirestoreSource(ctx, cfg.Firestore)
		if err != nil {
			return err
		}
		defer src.Close()
		hub := realtime.NewHub(realtime.HubDeps{Source: src})
		go hub.Run(ctx)
		deps.Live = hub
		slog.Info("realtime_configured", "project", cfg.Firestore.ProjectID, "document_template", cfg.Firestore.Collection+"/"+cfg.Firestore.Document)
	}

	if cfg.ResendKey != "" {
		deps.Sender = email.NewResendSender(cfg.ResendKey, cfg.ResendFrom)
	} else {
		deps.Sender = email.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("email_disabled", "reason", "GYM_RESEND_KEY is not set")
		}
	}

	handler, err := web.NewMux(deps)
	if err != nil {
		return err
	}

	go deps.Limiter.RunCleanup(ctx)
	go sweepSessions(ctx, sessions)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_start", "version", version, "addr", cfg.Addr, "env", cfg.Env, "schema", storage.LatestSchemaVersion())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("server_stop", "reason", "signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// sweepSessions removes expired sessions until ctx is cancelled.
func sweepSessions(ctx context.Context, store *sessionStore.SQLiteStore) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx, time.Now())
			if err != nil {
				slog.Error("session_sweep_failed", "error", err.Error())
				continue
			}
			if n > 0 {
				slog.Info("session_sweep", "deleted", n)
			}
		}
	}
}
