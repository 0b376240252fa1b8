// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

// Command api is the entry point for the Superbasic HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Load key material (token hash keyring, JWT signing keystore).
//  7. Wire repositories, services, and HTTP handlers.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/superbasicman/superbasic/internal/api"
	"github.com/superbasicman/superbasic/internal/auth/audit"
	"github.com/superbasicman/superbasic/internal/auth/oauth"
	"github.com/superbasicman/superbasic/internal/auth/pat"
	"github.com/superbasicman/superbasic/internal/auth/resolver"
	"github.com/superbasicman/superbasic/internal/auth/session"
	"github.com/superbasicman/superbasic/internal/auth/signing"
	"github.com/superbasicman/superbasic/internal/auth/sso"
	"github.com/superbasicman/superbasic/internal/auth/token"
	"github.com/superbasicman/superbasic/internal/platform/config"
	"github.com/superbasicman/superbasic/internal/platform/constants"
	"github.com/superbasicman/superbasic/internal/platform/migration"
	pgstore "github.com/superbasicman/superbasic/internal/platform/postgres"
	redisstore "github.com/superbasicman/superbasic/internal/platform/redis"
	"github.com/superbasicman/superbasic/internal/users/account"
	"github.com/superbasicman/superbasic/internal/workspace"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "superbasic"))
	slog.SetDefault(log)

	log.Info("[Superbasic] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "superbasic"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("issuer", cfg.Issuer),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Long-lived context for background middleware workers (rate limiter
	// cleanup). Canceled when main returns.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Key Material ───────────────────────────────────────────────────
	keyring, err := token.ParseKeyring(cfg.TokenHashKeys)
	must(log, err, "parse token hash keyring")

	retiredKeys, err := signing.ParseRetiredSpec(cfg.JWTRetiredKeys)
	must(log, err, "parse retired jwt keys")

	keystore, err := signing.NewKeystore(signing.Options{
		PrivateKeyPath:  cfg.JWTPrivKeyPath,
		PublicKeyPath:   cfg.JWTPubKeyPath,
		KeyID:           cfg.JWTKeyID,
		RetiredKeyPaths: retiredKeys,
		Issuer:          cfg.Issuer,
	})
	must(log, err, "initialize jwt keystore")

	codec := token.NewCodec()

	// ── 7. Audit Trail ────────────────────────────────────────────────────
	// Closed after server shutdown so every security event of an in-flight
	// request is flushed before the process exits.
	recorder := audit.NewRecorder(log, cfg.AuditBuffer)
	defer recorder.Close()

	// ── 8. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 9. Repositories ───────────────────────────────────────────────────
	accountRepository := account.NewAccountRepository(pool)
	sessionRepository := session.NewSessionRepository(pool)
	refreshRepository := session.NewRefreshTokenRepository(pool)
	tokenRepository := pat.NewTokenRepository(pool)
	clientRepository := oauth.NewClientRepository(pool)
	codeRepository := oauth.NewCodeRepository(pool)
	pendingRepository := oauth.NewPendingRepository(rdb)
	linkRepository := sso.NewLinkRepository(pool)
	replayGuard := sso.NewReplayGuard(rdb)
	workspaceRepository := workspace.NewPostgresRepository(pool)

	// ── 10. Services ──────────────────────────────────────────────────────
	policy := session.DefaultPolicy()
	policy.AccessTokenTTL = cfg.AccessTokenTTL
	policy.RefreshTokenTTL = cfg.RefreshTokenTTL
	policy.ReuseGrace = cfg.RefreshReuseGrace

	accountService := account.NewService(accountRepository, recorder, log)
	sessionService := session.NewService(
		sessionRepository,
		refreshRepository,
		accountRepository,
		codec,
		keyring,
		keystore,
		recorder,
		log,
		policy,
	).WithIdentityLinker(linkRepository)
	patService := pat.NewService(tokenRepository, accountRepository, codec, keyring, recorder, log)
	ssoService := sso.NewService(linkRepository, sessionRepository, refreshRepository, replayGuard, recorder, log)
	oauthService := oauth.NewService(
		clientRepository,
		codeRepository,
		pendingRepository,
		sessionRepository,
		refreshRepository,
		sessionService,
		keystore,
		keyring,
		codec,
		recorder,
		log,
	)
	workspaceService := workspace.NewService(workspaceRepository, log)

	// The resolver authenticates every request; workspace memberships feed
	// its role resolution, and the token service verifies "pat_" bearers.
	principalResolver := resolver.NewResolver(
		keystore,
		keyring,
		sessionRepository,
		accountRepository,
		workspaceRepository,
		patService,
		log,
	)

	// ── 11. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Session:   session.NewHandler(sessionService, accountService),
		SSO:       sso.NewHandler(ssoService, cfg.SSOWebhookSecret),
		Account:   account.NewHandler(accountService),
		Token:     pat.NewHandler(patService),
		Workspace: workspace.NewHandler(workspaceService),
		OAuth:     oauth.NewHandler(oauthService, log),
	}

	server := api.NewServer(appCtx, cfg, log, principalResolver, handlers)

	// ── 12. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
