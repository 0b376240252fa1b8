// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package token implements the opaque credential format shared by every
non-JWT secret the platform hands out: refresh tokens, session cookies,
personal access tokens, authorization codes and verification links.

# Wire format

	<prefix>_<id>.<secret>

  - prefix: short string namespacing the credential kind (e.g. "rt", "pat").
  - id: UUIDv7, the database primary key of the credential row. Safe to log.
  - secret: 32 random bytes, base64url without padding. Never stored, never
    logged; only its hash envelope is persisted.

Splitting id and secret lets verification do a primary-key lookup first and a
constant-time hash comparison second, instead of scanning hash columns.

# Parsing contract

[Parse] is meant for untrusted input. It never panics and never returns an
error: any malformed value yields nil, so callers translate every failure
into the same generic 401 without branching on parse details.
*/
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Kind is the credential namespace encoded in the token prefix.
type Kind string

const (
	// KindSession prefixes opaque browser session credentials (cookie value).
	KindSession Kind = "sess"
	// KindRefresh prefixes refresh tokens.
	KindRefresh Kind = "rt"
	// KindPersonal prefixes personal access tokens.
	KindPersonal Kind = "pat"
	// KindAuthorizationCode prefixes OAuth2 authorization codes.
	KindAuthorizationCode Kind = "ac"
	// KindEmailVerification is reserved for emailed verification links.
	KindEmailVerification Kind = "ev"
)

const (
	// secretLen is the number of random bytes behind the secret part.
	secretLen = 32

	// maxValueLen bounds untrusted input before any parsing work happens.
	maxValueLen = 512
)

// Token is one minted or parsed opaque credential.
type Token struct {
	Kind   Kind
	ID     string // row id, UUIDv7 (except legacy values, see ParseOptions)
	Secret string // base64url secret part, no padding
	Value  string // full wire form
}

// Last4 returns the trailing four characters of the secret, used as a
// display hint next to stored credentials ("…a1b2"). Empty when the secret
// is too short to hint safely.
func (t *Token) Last4() string {
	if len(t.Secret) < 8 {
		return ""
	}
	return t.Secret[len(t.Secret)-4:]
}

// Codec mints opaque credentials. The zero value is not usable; construct
// with [NewCodec]. Randomness is injectable so tests can be deterministic.
type Codec struct {
	rand io.Reader
}

// NewCodec returns a codec backed by the OS random source.
func NewCodec() *Codec {
	return &Codec{rand: rand.Reader}
}

// NewCodecWithRand returns a codec drawing from r instead of crypto/rand.
func NewCodecWithRand(r io.Reader) *Codec {
	return &Codec{rand: r}
}

// Mint draws a fresh id and a fresh secret for the given kind and assembles
// the wire value. It fails only when the random source does.
func (c *Codec) Mint(kind Kind) (*Token, error) {
	id, err := uuid.NewV7FromReader(c.rand)
	if err != nil {
		return nil, fmt.Errorf("token_mint_id_failed: %w", err)
	}

	raw := make([]byte, secretLen)
	if _, err := io.ReadFull(c.rand, raw); err != nil {
		return nil, fmt.Errorf("token_mint_secret_failed: %w", err)
	}

	secret := base64.RawURLEncoding.EncodeToString(raw)

	return &Token{
		Kind:   kind,
		ID:     id.String(),
		Secret: secret,
		Value:  string(kind) + "_" + id.String() + "." + secret,
	}, nil
}

// ParseOptions narrows what [Parse] accepts.
type ParseOptions struct {
	// Kind is the required prefix. Values of any other kind yield nil.
	Kind Kind

	// AllowLegacy accepts ids that are not UUID-shaped. Pre-migration
	// session cookies carried opaque ids; every other kind is strict.
	AllowLegacy bool
}

// Parse splits an untrusted wire value into its parts.
//
// It returns nil for anything malformed: wrong prefix, missing separator,
// empty parts, oversized input, an id that is not a UUID (unless
// AllowLegacy), or a secret that is not base64url. It never returns an
// error and never panics, regardless of input.
func Parse(value string, opts ParseOptions) *Token {
	if value == "" || len(value) > maxValueLen {
		return nil
	}

	rest, ok := strings.CutPrefix(value, string(opts.Kind)+"_")
	if !ok {
		return nil
	}

	id, secret, ok := strings.Cut(rest, ".")
	if !ok || id == "" || secret == "" {
		return nil
	}

	if !opts.AllowLegacy {
		if _, err := uuid.Parse(id); err != nil {
			return nil
		}
	} else if strings.ContainsAny(id, " \t\r\n") {
		return nil
	}

	if _, err := base64.RawURLEncoding.DecodeString(secret); err != nil {
		return nil
	}

	return &Token{
		Kind:   opts.Kind,
		ID:     id,
		Secret: secret,
		Value:  value,
	}
}

// HasKind reports whether an untrusted value carries the given kind's
// prefix, without validating the rest. Used by the request resolver to
// decline personal-access-token values before full parsing.
func HasKind(value string, kind Kind) bool {
	return strings.HasPrefix(value, string(kind)+"_")
}
