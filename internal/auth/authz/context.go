// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package authz

import (
	"time"

	"github.com/superbasicman/superbasic/internal/platform/apperr"
)

// MFALevel grades how strongly a session's user was authenticated.
// Levels are ordered: none < mfa < phishing_resistant.
type MFALevel string

const (
	// MFALevelNone means single-factor (password only).
	MFALevelNone MFALevel = "none"
	// MFALevelMFA means a second factor was presented (e.g. TOTP).
	MFALevelMFA MFALevel = "mfa"
	// MFALevelPhishingResistant means a phishing-resistant factor was
	// asserted, today only by an upstream identity provider.
	MFALevelPhishingResistant MFALevel = "phishing_resistant"
)

// ordinal places a level on the ladder. Unknown levels are -1 so they can
// never satisfy a minimum.
func (l MFALevel) ordinal() int {
	switch l {
	case MFALevelNone:
		return 0
	case MFALevelMFA:
		return 1
	case MFALevelPhishingResistant:
		return 2
	default:
		return -1
	}
}

// IsValid reports whether l is a defined level.
func (l MFALevel) IsValid() bool {
	return l.ordinal() >= 0
}

// AtLeast reports whether l meets min. Invalid values on either side fail.
func (l MFALevel) AtLeast(min MFALevel) bool {
	if !l.IsValid() || !min.IsValid() {
		return false
	}
	return l.ordinal() >= min.ordinal()
}

// ClientType records which surface a session serves.
type ClientType string

const (
	ClientTypeWeb    ClientType = "web"
	ClientTypeAPI    ClientType = "api"
	ClientTypeMobile ClientType = "mobile"
)

// IsValid reports whether c is a defined client type.
func (c ClientType) IsValid() bool {
	switch c {
	case ClientTypeWeb, ClientTypeAPI, ClientTypeMobile:
		return true
	default:
		return false
	}
}

// Context is everything downstream handlers may know about the caller.
//
// MFALevel and AuthenticatedAt always come from the session row, never from
// token claims, so revocation and step-downs take effect immediately.
type Context struct {
	UserID    string
	ProfileID string

	// SessionID is empty for personal-access-token principals.
	SessionID  string
	ClientType ClientType

	// WorkspaceID is the resolved workspace hint; empty when the request
	// did not target a workspace or the caller is not a member.
	WorkspaceID string
	// Roles the caller holds in WorkspaceID (empty when no workspace).
	Roles []Role

	// Scopes bound token principals and describe session principals.
	Scopes []Scope

	MFALevel        MFALevel
	AuthenticatedAt time.Time
}

// Kind tags the two principal variants.
type Kind string

const (
	// KindSession marks an interactive session (cookie or access token).
	KindSession Kind = "session"
	// KindToken marks a delegated credential (PAT or OAuth access token)
	// whose power is bounded by its scopes.
	KindToken Kind = "token"
)

// Principal is the resolved caller: a tagged union of an interactive
// session and a scope-limited token. Code that authorizes an operation
// switches on Kind with deny as the default arm, so an unhandled variant
// can never widen access.
type Principal struct {
	Kind    Kind
	Context Context
}

// NewSessionPrincipal wraps a context as an interactive session principal.
func NewSessionPrincipal(ctx Context) *Principal {
	return &Principal{Kind: KindSession, Context: ctx}
}

// NewTokenPrincipal wraps a context as a scope-limited token principal.
func NewTokenPrincipal(ctx Context) *Principal {
	return &Principal{Kind: KindToken, Context: ctx}
}

// HasScope reports literal scope membership on the principal's context.
func (p *Principal) HasScope(s Scope) bool {
	return ContainsScope(p.Context.Scopes, s)
}

// RequireScope authorizes one scoped operation.
//
// Session principals pass: scopes limit delegated credentials, not the
// person at the keyboard. Token principals must hold the scope itself or
// the system [ScopeAdmin].
func RequireScope(p *Principal, required Scope) error {
	if p == nil {
		return apperr.Unauthorized("Authentication required")
	}

	switch p.Kind {
	case KindSession:
		return nil
	case KindToken:
		if p.HasScope(required) || p.HasScope(ScopeAdmin) {
			return nil
		}
		return apperr.Forbidden("Token is missing the required scope: " + string(required))
	default:
		return apperr.Forbidden("Access denied")
	}
}

// RequireRole authorizes against the caller's workspace role ladder. It
// applies to sessions and tokens alike: delegated credentials never exceed
// the standing of the user who minted them.
func RequireRole(p *Principal, min Role) error {
	if p == nil {
		return apperr.Unauthorized("Authentication required")
	}

	for _, r := range p.Context.Roles {
		if r.AtLeast(min) {
			return nil
		}
	}

	return apperr.Forbidden("Requires " + string(min) + " access to this workspace")
}

// DefaultStepUpWindow is how recently a session must have authenticated to
// pass [RequireRecentAuth] on sensitive operations.
const DefaultStepUpWindow = 5 * time.Minute

// RequireRecentAuth guards sensitive operations behind a step-up check: the
// session must have authenticated within the given window AND at or above
// the given MFA level.
//
// Token principals always fail it. A delegated credential has no
// authentication instant of its own and must never unlock operations
// reserved for a present user.
func RequireRecentAuth(p *Principal, now time.Time, within time.Duration, min MFALevel) error {
	if p == nil {
		return apperr.Unauthorized("Authentication required")
	}

	if p.Kind != KindSession {
		return apperr.Forbidden("This operation requires an interactive session")
	}

	authedAt := p.Context.AuthenticatedAt
	if authedAt.IsZero() || now.Sub(authedAt) > within {
		return apperr.StepUpRequired("Recent authentication required")
	}

	if !p.Context.MFALevel.AtLeast(min) {
		return apperr.StepUpRequired("A stronger authentication factor is required")
	}

	return nil
}
