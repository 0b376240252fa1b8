// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package signing manages the RSA key material behind every JWT the platform
issues: short-lived access tokens and OAuth ID tokens.

# Key rotation

The keystore holds exactly one active signing key plus any number of retired
verification keys, addressed by kid. New tokens are signed under the active
kid; verification resolves the key from the token header, so rotating keys is
a config change and outstanding tokens stay valid until they expire. A kid
the store does not know fails verification outright.

# Claims stay thin

Access tokens carry identity pointers only (subject, session id, client
type). Authorization state such as roles, MFA level, and auth time is
deliberately NOT embedded: the request resolver re-reads the session row on
every call, which is what makes revocation immediate instead of
eventually-consistent with token expiry.
*/
package signing

import (
	"crypto/rsa"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	jwt.RegisteredClaims

	// SessionID binds the token to a revocable session row.
	SessionID string `json:"sid"`
	// ClientType records the surface the session was created for.
	ClientType string `json:"cty"`
}

// IDClaims is the payload of an OAuth ID token (openid scope).
type IDClaims struct {
	jwt.RegisteredClaims

	Nonce    string `json:"nonce,omitempty"`
	AuthTime int64  `json:"auth_time"`
}

// Options configures a [Keystore].
type Options struct {
	// PrivateKeyPath and PublicKeyPath locate the active key pair (PEM).
	PrivateKeyPath string
	PublicKeyPath  string

	// KeyID is the kid stamped into headers of newly signed tokens.
	KeyID string

	// RetiredKeyPaths maps old kids to their public key PEM paths. Tokens
	// signed under these still verify; nothing new is signed with them.
	RetiredKeyPaths map[string]string

	// Issuer is the iss claim on signed tokens and is enforced on verify.
	Issuer string
}

// Keystore signs and verifies the platform's JWTs using RS256.
type Keystore struct {
	issuer     string
	activeKid  string
	privateKey *rsa.PrivateKey
	verifyKeys map[string]*rsa.PublicKey
}

// NewKeystore loads the active key pair and all retired public keys from
// disk. It fails fast on unreadable or malformed PEM material so a
// misconfigured deployment never starts.
func NewKeystore(opts Options) (*Keystore, error) {
	if opts.KeyID == "" {
		return nil, fmt.Errorf("signing: key id is required")
	}

	privatePEM, err := os.ReadFile(opts.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("signing: failed to read private key from %s: %w", opts.PrivateKeyPath, err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("signing: failed to parse private key: %w", err)
	}

	publicPEM, err := os.ReadFile(opts.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("signing: failed to read public key from %s: %w", opts.PublicKeyPath, err)
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("signing: failed to parse public key: %w", err)
	}

	verifyKeys := map[string]*rsa.PublicKey{opts.KeyID: publicKey}

	for kid, path := range opts.RetiredKeyPaths {
		if kid == opts.KeyID {
			return nil, fmt.Errorf("signing: retired kid %s collides with the active kid", kid)
		}

		pemData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("signing: failed to read retired key %s from %s: %w", kid, path, err)
		}

		retired, err := jwt.ParseRSAPublicKeyFromPEM(pemData)
		if err != nil {
			return nil, fmt.Errorf("signing: failed to parse retired key %s: %w", kid, err)
		}

		verifyKeys[kid] = retired
	}

	return &Keystore{
		issuer:     opts.Issuer,
		activeKid:  opts.KeyID,
		privateKey: privateKey,
		verifyKeys: verifyKeys,
	}, nil
}

// ParseRetiredSpec parses the JWT_RETIRED_KEYS config format:
//
//	kid=path/to/public.pem,kid2=path2
func ParseRetiredSpec(spec string) (map[string]string, error) {
	paths := make(map[string]string)

	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		kid, path, ok := strings.Cut(entry, "=")
		if !ok || kid == "" || path == "" {
			return nil, fmt.Errorf("signing: malformed retired key entry %q", entry)
		}

		paths[kid] = path
	}

	return paths, nil
}

// ActiveKeyID returns the kid new tokens are signed under.
func (store *Keystore) ActiveKeyID() string {
	return store.activeKid
}

// Issuer returns the iss value stamped on signed tokens.
func (store *Keystore) Issuer() string {
	return store.issuer
}

// SignAccess signs an access token for a session.
func (store *Keystore) SignAccess(userID, sessionID, clientType string, issuedAt time.Time, timeToLive time.Duration) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    store.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(timeToLive)),
		},
		SessionID:  sessionID,
		ClientType: clientType,
	}

	return store.sign(claims)
}

// IDTokenInput carries everything an ID token asserts about a login.
type IDTokenInput struct {
	UserID     string
	ClientID   string
	Nonce      string
	AuthTime   time.Time
	IssuedAt   time.Time
	TimeToLive time.Duration
}

// SignID signs an OAuth ID token for the authorization-code flow.
func (store *Keystore) SignID(input IDTokenInput) (string, error) {
	claims := IDClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   input.UserID,
			Issuer:    store.issuer,
			Audience:  jwt.ClaimStrings{input.ClientID},
			IssuedAt:  jwt.NewNumericDate(input.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(input.IssuedAt.Add(input.TimeToLive)),
		},
		Nonce:    input.Nonce,
		AuthTime: input.AuthTime.Unix(),
	}

	return store.sign(claims)
}

func (store *Keystore) sign(claims jwt.Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = store.activeKid

	signed, err := tok.SignedString(store.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing: failed to sign token: %w", err)
	}

	return signed, nil
}

// VerifyAccess checks signature, kid, algorithm, expiry, and issuer of an
// access token. Every failure mode comes back as the same wrapped error so
// callers cannot leak why a token was rejected.
func (store *Keystore) VerifyAccess(raw string) (*AccessClaims, error) {
	tok, err := jwt.ParseWithClaims(raw, &AccessClaims{}, store.resolveKey)
	if err != nil {
		return nil, fmt.Errorf("signing: invalid token: %w", err)
	}

	claims, ok := tok.Claims.(*AccessClaims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("signing: invalid token claims")
	}

	if claims.Issuer != store.issuer {
		return nil, fmt.Errorf("signing: invalid token issuer")
	}

	return claims, nil
}

// resolveKey is the jwt keyfunc: enforce RS256 and resolve the public key
// by the kid header. Unknown or missing kid is a hard failure.
func (store *Keystore) resolveKey(tok *jwt.Token) (interface{}, error) {
	if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("signing: unexpected signing method: %v", tok.Header["alg"])
	}

	kid, ok := tok.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, fmt.Errorf("signing: token has no kid header")
	}

	key, ok := store.verifyKeys[kid]
	if !ok {
		return nil, fmt.Errorf("signing: unknown kid")
	}

	return key, nil
}
