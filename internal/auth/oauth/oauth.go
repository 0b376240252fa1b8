// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package oauth implements the authorization-code + PKCE provider.

It lets registered clients (first-party apps, the CLI, third-party
integrations) obtain session-backed token pairs without ever seeing a user
password. The flow is the OAuth 2.1 profile of RFC 6749: authorization codes
are single-use, short-lived, and bound to a PKCE challenge so a leaked code
alone cannot be redeemed.

# Flow

 1. GET /oauth/authorize validates the client and redirect pair, then mints
    a one-time code bound to the caller's session. Unauthenticated users
    are bounced to login with the request stashed in Redis.
 2. POST /oauth/token exchanges the code (after client auth, envelope
    verification, atomic consumption, and PKCE proof) for an access JWT and
    a refresh-token family rooted in a fresh session.
 3. POST /oauth/revoke and POST /oauth/introspect follow RFC 7009/7662.

# Error discipline

Everything before the redirect pair is validated answers with a direct 400;
once the pair is known, errors travel back on the client's own redirect_uri
as error/error_description query parameters (RFC 6749 §4.1.2.1). The token
endpoint collapses code-not-found, code-consumed, and bad-verifier into one
indistinguishable invalid_grant.
*/
package oauth

import (
	"time"

	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/auth/token"
)

// # Lifetimes

const (
	// AuthorizationCodeTTL is the fixed lifetime of a minted code. RFC 6749
	// recommends a maximum of ten minutes.
	AuthorizationCodeTTL = 10 * time.Minute

	// PendingAuthorizationTTL bounds how long a stashed authorize request
	// survives while the user completes login.
	PendingAuthorizationTTL = 10 * time.Minute

	// IDTokenTTL is the lifetime of ID tokens issued alongside the access
	// token when the openid scope was granted.
	IDTokenTTL = 15 * time.Minute
)

// # Domain Entities

// Client is a registered OAuth application.
//
// Confidential clients carry a SecretHash and must authenticate at the
// token endpoint; public clients (SPAs, CLIs) have a nil SecretHash and
// compensate with a mandatory PKCE challenge.
type Client struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	SecretHash   *token.Envelope `json:"-"` // Omitted for security.
	RedirectURIs []string        `json:"redirect_uris"`
	Scopes       []authz.Scope   `json:"scopes"`
	Public       bool            `json:"public"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Confidential reports whether the client must prove a secret.
func (c *Client) Confidential() bool {
	return !c.Public && c.SecretHash != nil
}

// AllowsRedirect reports whether uri is registered for this client. The
// comparison is byte-exact: no scheme normalization, no prefix matching,
// no port fuzzing.
func (c *Client) AllowsRedirect(uri string) bool {
	if uri == "" {
		return false
	}
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AuthorizationCode is one single-use grant minted at /oauth/authorize.
//
// The row stores only the hash envelope of the code's secret half; the wire
// value ("ac_<uuid>.<secret>") exists exactly once, inside the redirect
// back to the client. ConsumedAt flips atomically during exchange so a
// replayed or raced exchange cannot win twice.
type AuthorizationCode struct {
	ID                  string         `json:"id"`
	ClientID            string         `json:"client_id"`
	UserID              string         `json:"user_id"`
	SessionID           string         `json:"session_id"`
	RedirectURI         string         `json:"redirect_uri"`
	Scope               string         `json:"scope"`
	Nonce               string         `json:"nonce,omitempty"`
	CodeChallenge       string         `json:"-"`
	CodeChallengeMethod string         `json:"-"`
	CodeHash            token.Envelope `json:"-"` // Omitted for security.
	CreatedAt           time.Time      `json:"created_at"`
	ExpiresAt           time.Time      `json:"expires_at"`
	ConsumedAt          *time.Time     `json:"-"`
}

// IsExpired reports whether the code's fixed TTL has passed.
func (code *AuthorizationCode) IsExpired(at time.Time) bool {
	return !at.Before(code.ExpiresAt)
}

// PendingAuthorization is a stashed /oauth/authorize request, parked in
// Redis while an unauthenticated user completes login. The login flow
// returns the browser to the authorize endpoint with the pending id, and
// the original parameters resume untouched.
type PendingAuthorization struct {
	ClientID            string    `json:"client_id"`
	RedirectURI         string    `json:"redirect_uri"`
	Scope               string    `json:"scope,omitempty"`
	State               string    `json:"state,omitempty"`
	Nonce               string    `json:"nonce,omitempty"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}
