// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package resolver turns raw request credentials into a caller principal.

It is the single authentication seam the HTTP middleware consumes, composed
of two deliberately separate code paths:

  - Session credentials: a bearer access JWT (verified against the signing
    keystore, then resolved through the session row its sid claim names) or
    an opaque session cookie (parsed and verified against the stored hash
    envelope). Both yield an interactive session principal.
  - Personal access tokens: "pat_" bearer values are declined by the session
    path and delegated to the token service's own verify path, which yields
    a scope-limited token principal.

Keeping the paths apart means session-derived full access can never leak
onto a scoped credential through a shared branch.

# Liveness over claims

Authorization state is read from rows, not claims: the session row decides
MFA level, auth time, and client type, and both the session and the user
must still be live. Revocation therefore takes effect on the next request,
not when the access token expires.

# Failure behavior

Resolution never returns an error. Every failure - malformed value, unknown
id, wrong secret, revoked session, disabled user, storage trouble - yields a
nil principal; the middleware decides between 401 and anonymous passage.
*/
package resolver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/auth/session"
	"github.com/superbasicman/superbasic/internal/auth/signing"
	"github.com/superbasicman/superbasic/internal/auth/token"
	"github.com/superbasicman/superbasic/internal/platform/constants"
	"github.com/superbasicman/superbasic/internal/users/account"
)

// # Contracts & Types

// SessionDirectory is the slice of session storage the resolver reads.
type SessionDirectory interface {
	FindByID(context context.Context, id string) (*session.Session, error)
}

// UserDirectory serves the account-liveness check.
type UserDirectory interface {
	FindByID(context context.Context, id string) (*account.Account, error)
}

// MembershipDirectory resolves the caller's roles inside one workspace.
// An empty slice means no membership.
type MembershipDirectory interface {
	RolesForUser(context context.Context, workspaceID, userID string) ([]authz.Role, error)
}

// TokenVerifier authenticates "pat_" bearer values (the personal access
// token service's verify path).
type TokenVerifier interface {
	Verify(context context.Context, rawValue string) (*authz.Principal, error)
}

// Resolver implements [middleware.PrincipalResolver] for every credential
// shape the platform accepts.
type Resolver struct {
	keystore      *signing.Keystore
	keyring       *token.Keyring
	sessions      SessionDirectory
	users         UserDirectory
	memberships   MembershipDirectory
	tokenVerifier TokenVerifier
	logger        *slog.Logger
	clock         func() time.Time
}

// NewResolver constructs a new [Resolver] with its dependencies.
func NewResolver(
	keystore *signing.Keystore,
	keyring *token.Keyring,
	sessions SessionDirectory,
	users UserDirectory,
	memberships MembershipDirectory,
	tokenVerifier TokenVerifier,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		keystore:      keystore,
		keyring:       keyring,
		sessions:      sessions,
		users:         users,
		memberships:   memberships,
		tokenVerifier: tokenVerifier,
		logger:        logger,
		clock:         time.Now,
	}
}

// WithClock replaces the time source for deterministic tests.
func (resolver *Resolver) WithClock(clock func() time.Time) *Resolver {
	resolver.clock = clock
	return resolver
}

// # Request Resolution

/*
VerifyRequest authenticates one HTTP request.

Description: Tries, in order, the bearer token (PAT-prefixed values are
routed to the token verify path, everything else is treated as an access
JWT) and the opaque session cookie. The first credential present decides the
outcome; there is no fallback from a bad bearer value to a cookie, so a
broken token never degrades into a differently-authenticated request.

Parameters:
  - request: *http.Request

Returns:
  - *authz.Principal: Resolved caller, or nil on any failure
*/
func (resolver *Resolver) VerifyRequest(request *http.Request) *authz.Principal {
	ctx := request.Context()

	if raw, ok := bearerValue(request); ok {
		if token.HasKind(raw, token.KindPersonal) {
			principal, err := resolver.tokenVerifier.Verify(ctx, raw)
			if err != nil {
				return nil
			}
			return resolver.resolveWorkspace(ctx, request, principal)
		}
		return resolver.resolveAccessToken(ctx, request, raw)
	}

	if cookie, err := request.Cookie(constants.SessionCookieName); err == nil && cookie.Value != "" {
		return resolver.resolveSessionCookie(ctx, request, cookie.Value)
	}

	return nil
}

// bearerValue extracts the credential from an Authorization: Bearer header.
func bearerValue(request *http.Request) (string, bool) {
	header := request.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	value = strings.TrimSpace(value)
	return value, value != ""
}

// resolveAccessToken verifies a signed access JWT and resolves the session
// row its sid claim names.
func (resolver *Resolver) resolveAccessToken(ctx context.Context, request *http.Request, raw string) *authz.Principal {
	claims, err := resolver.keystore.VerifyAccess(raw)
	if err != nil || claims.SessionID == "" {
		return nil
	}

	live, err := resolver.sessions.FindByID(ctx, claims.SessionID)
	if err != nil {
		return nil
	}

	// The token must belong to the session it points at.
	if claims.Subject != live.UserID {
		return nil
	}

	return resolver.finishSession(ctx, request, live)
}

// resolveSessionCookie verifies an opaque session cookie against the stored
// hash envelope.
func (resolver *Resolver) resolveSessionCookie(ctx context.Context, request *http.Request, raw string) *authz.Principal {
	parsed := token.Parse(raw, token.ParseOptions{Kind: token.KindSession, AllowLegacy: true})
	if parsed == nil {
		return nil
	}

	live, err := resolver.sessions.FindByID(ctx, parsed.ID)
	if err != nil {
		return nil
	}

	// Cookie-backed sessions always carry an envelope; a row without one
	// cannot be authenticated by cookie.
	if live.TokenHash == nil || !resolver.keyring.Verify(parsed.Secret, live.TokenHash) {
		return nil
	}

	return resolver.finishSession(ctx, request, live)
}

// finishSession runs the checks shared by both session paths: session and
// user liveness, then workspace resolution. MFA level and auth time come
// from the session row so revocations and step-downs apply immediately.
func (resolver *Resolver) finishSession(ctx context.Context, request *http.Request, live *session.Session) *authz.Principal {
	if !live.IsActive(resolver.clock()) {
		return nil
	}

	user, err := resolver.users.FindByID(ctx, live.UserID)
	if err != nil || !user.IsActive() {
		return nil
	}

	principal := authz.NewSessionPrincipal(authz.Context{
		UserID:          user.ID,
		ProfileID:       user.ProfileID,
		SessionID:       live.ID,
		ClientType:      live.ClientType,
		MFALevel:        live.MFALevel,
		AuthenticatedAt: live.AuthenticatedAt,
	})

	return resolver.resolveWorkspace(ctx, request, principal)
}

// resolveWorkspace applies the X-Workspace-Id hint. A hint that does not
// match an active membership leaves the principal without a workspace
// rather than failing the request; roles and derived scopes are attached
// only on a real membership. Storage trouble fails closed.
func (resolver *Resolver) resolveWorkspace(ctx context.Context, request *http.Request, principal *authz.Principal) *authz.Principal {
	workspaceID := strings.TrimSpace(request.Header.Get(constants.WorkspaceHeader))
	if workspaceID == "" {
		return principal
	}

	roles, err := resolver.memberships.RolesForUser(ctx, workspaceID, principal.Context.UserID)
	if err != nil {
		resolver.logger.Warn("workspace_resolution_failed",
			slog.String("workspace_id", workspaceID),
			slog.String("user_id", principal.Context.UserID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if len(roles) == 0 {
		return principal
	}

	principal.Context.WorkspaceID = workspaceID
	principal.Context.Roles = roles

	// Sessions inherit the scopes their roles derive. Token principals keep
	// the scopes minted onto them: roles inform RequireRole, but a
	// delegated credential's scope boundary never widens through a header.
	if principal.Kind == authz.KindSession {
		principal.Context.Scopes = authz.ScopeSet(roles)
	}

	return principal
}
