// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/superbasicman/superbasic/internal/auth/oauth"
	"github.com/superbasicman/superbasic/internal/auth/pat"
	"github.com/superbasicman/superbasic/internal/auth/session"
	"github.com/superbasicman/superbasic/internal/auth/sso"
	"github.com/superbasicman/superbasic/internal/platform/config"
	"github.com/superbasicman/superbasic/internal/platform/constants"
	"github.com/superbasicman/superbasic/internal/platform/middleware"
	"github.com/superbasicman/superbasic/internal/users/account"
	"github.com/superbasicman/superbasic/internal/workspace"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
//
// # Usage
//
// New domains add a field here — no other change to server.go is required.
type Handlers struct {
	// Liveness is the /health handler — always returns 200 if process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler — returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Session handles login, refresh rotation, logout, and session listing.
	Session *session.Handler

	// SSO handles the IdP back-channel logout webhook.
	SSO *sso.Handler

	// Account serves the caller's own profile.
	Account *account.Handler

	// Token manages personal access tokens.
	Token *pat.Handler

	// Workspace manages workspaces and membership rosters.
	Workspace *workspace.Handler

	// OAuth is the authorization server (authorize, token, revoke,
	// introspect, discovery).
	OAuth *oauth.Handler
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(context context.Context, cfg *config.Config, log *slog.Logger, resolver middleware.PrincipalResolver, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(context))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.Authenticate(resolver))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)

	// # Authorization Server
	// RFC-mandated paths live at the root, outside the versioned prefix.
	r.Get("/.well-known/oauth-authorization-server", h.OAuth.Metadata)
	r.Mount("/oauth", h.OAuth.Routes())

	// # Application API
	// Domain-specific route groups mounted under versioned prefix.
	r.Route("/v1", func(api chi.Router) {
		api.Mount("/auth/sso", h.SSO.Routes())
		api.Mount("/auth", h.Session.Routes())
		api.Mount("/tokens", h.Token.Routes())
		api.Mount("/workspaces", h.Workspace.Routes())
		api.Mount("/", h.Account.Routes())
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
