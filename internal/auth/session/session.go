// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package session implements the authenticated-session and refresh-token
lifecycle.

It defines the core domain entities (Session, RefreshToken) and the rotation
state machine: every refresh token belongs to a family rooted at the first
token issued for its session, rotation atomically retires the predecessor and
issues a successor in the same family, and presenting a retired token outside
a short grace window burns the whole family together with its session.

# Architecture

This layer is the "Truth" of authentication state. Entities defined here have
no transport dependencies and encapsulate all liveness rules for sessions and
refresh credentials.
*/
package session

import (
	"time"

	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/auth/token"
)

// # Domain Entities

// Session represents an authenticated presence of one user on one client.
//
// TokenHash is set only for cookie-backed web sessions, where the browser
// carries an opaque session credential; API and mobile clients prove their
// session through the access JWT's sid claim instead.
type Session struct {
	ID                string           `json:"id"`
	UserID            string           `json:"user_id"`
	TokenHash         *token.Envelope  `json:"-"` // Hash of the opaque session secret. Omitted for security.
	ClientType        authz.ClientType `json:"client_type"`
	MFALevel          authz.MFALevel   `json:"mfa_level"`
	AuthenticatedAt   time.Time        `json:"authenticated_at"`
	LastSeenAt        time.Time        `json:"last_seen_at"`
	IPAddress         string           `json:"ip_address,omitempty"`
	UserAgent         string           `json:"user_agent,omitempty"`
	RememberMe        bool             `json:"-"`
	CreatedAt         time.Time        `json:"created_at"`
	ExpiresAt         time.Time        `json:"expires_at"`
	AbsoluteExpiresAt time.Time        `json:"-"`
	RevokedAt         *time.Time       `json:"-"`
}

// IsActive reports whether the session is live at the given instant: not
// revoked and within both the sliding and absolute expiry.
func (s *Session) IsActive(at time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return at.Before(s.ExpiresAt) && at.Before(s.AbsoluteExpiresAt)
}

// RefreshToken represents one link in a rotation family.
//
// The first token of a family has FamilyID == ID; every successor inherits
// the FamilyID so reuse detection can burn the whole lineage at once.
type RefreshToken struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	FamilyID   string         `json:"family_id"`
	TokenHash  token.Envelope `json:"-"` // Omitted for security.
	Last4      string         `json:"last4"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
	LastUsedAt *time.Time     `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time     `json:"-"`
}

// IsLive reports whether the token can still be rotated at the given instant.
func (t *RefreshToken) IsLive(at time.Time) bool {
	return t.RevokedAt == nil && at.Before(t.ExpiresAt)
}

// SessionInfo provides a safety-mapped view of an active session for the
// device-management surface. It omits all hash material.
type SessionInfo struct {
	ID         string    `json:"id"`
	ClientType string    `json:"client_type"`
	MFALevel   string    `json:"mfa_level"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	IsCurrent  bool      `json:"is_current"` // True if this session belongs to the current request
}

// # Revocation Outcomes

// RevocationStatus reports what a revoke call actually did.
type RevocationStatus string

const (
	// RevocationStatusRevoked means a live session transitioned to revoked.
	RevocationStatusRevoked RevocationStatus = "revoked"
	// RevocationStatusNotFound means no matching live session existed. The
	// operation is still considered successful (idempotent revoke).
	RevocationStatusNotFound RevocationStatus = "not_found"
)

// # Field Identifiers

// Global field names for validation and identity mapping in the session domain.
const (
	FieldEmail        = "email"
	FieldPassword     = "password"
	FieldTOTPCode     = "totp_code"
	FieldRefreshToken = "refresh_token"
	FieldRememberMe   = "remember_me"
	FieldAccessToken  = "access_token"
	FieldTokenType    = "token_type"
	FieldExpiresIn    = "expires_in"
	FieldSession      = "session"
	FieldMessage      = "message"
)
