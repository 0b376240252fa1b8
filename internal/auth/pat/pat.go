// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package pat implements personal access tokens: long-lived delegated
credentials a user mints for scripts and integrations.

A personal access token is an opaque credential ("pat_<uuid>.<secret>")
whose secret is stored only as a salted hash envelope. Its power is bounded
twice: by the scopes chosen at mint time, and by the liveness of the owning
account. Verification produces a token principal, never a session principal,
so scope checks always apply.

# Architecture

This layer owns the token lifecycle (mint, rename, revoke, list) and the
verify path the request resolver delegates to for "pat_" bearer values.
*/
package pat

import (
	"time"

	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/auth/token"
)

// # Domain Entities

// PersonalToken represents one delegated credential owned by a user.
//
// The raw secret exists only in the mint response; TokenHash is all that is
// ever stored, and Last4 is the only displayable remnant of the secret.
type PersonalToken struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Name       string         `json:"name"`
	TokenHash  token.Envelope `json:"-"` // Omitted for security.
	Last4      string         `json:"last4"`
	Scopes     []authz.Scope  `json:"scopes"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	LastUsedAt *time.Time     `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time     `json:"-"`
}

// IsLive reports whether the token can still authenticate at the given
// instant: not revoked and, when an expiry is set, not expired.
func (t *PersonalToken) IsLive(at time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	if t.ExpiresAt != nil && !at.Before(*t.ExpiresAt) {
		return false
	}
	return true
}

// # Limits

const (
	// MaxNameLen bounds the display name of a token.
	MaxNameLen = 100

	// MaxTokensPerUser caps how many live tokens one user may hold.
	MaxTokensPerUser = 50
)

// # Field Identifiers

const (
	FieldName      = "name"
	FieldScopes    = "scopes"
	FieldExpiresAt = "expires_at"
	FieldToken     = "token"
)
