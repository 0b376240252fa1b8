// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EnvelopeAlgorithm is the only hash algorithm currently minted. Old
// envelopes keep whatever algorithm string they were written with, which is
// how a future algorithm migration stays verifiable.
const EnvelopeAlgorithm = "hmac-sha256"

const saltLen = 16

// Envelope is the stored form of a token secret. It carries everything
// needed to re-derive and compare the hash later, so key rotation never
// requires rewriting rows: new secrets seal under the active key, old
// envelopes verify under the key their kid names.
//
// The struct round-trips through a jsonb column; it implements
// [driver.Valuer] and sql.Scanner so stores can bind it directly.
type Envelope struct {
	Algorithm string    `json:"algorithm"`
	KeyID     string    `json:"keyId"`
	Salt      string    `json:"salt"` // base64url, no padding
	Hash      string    `json:"hash"` // base64url, no padding
	IssuedAt  time.Time `json:"issuedAt"`
}

// Value marshals the envelope for a jsonb parameter.
func (e Envelope) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan unmarshals the envelope from a jsonb column.
func (e *Envelope) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*e = Envelope{}
		return nil
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		return fmt.Errorf("token_envelope_scan_unsupported_type: %T", src)
	}
}

// Keyring holds the named HMAC master keys used to seal and verify token
// secrets. Exactly one key is active for sealing; all keys remain available
// for verification so rotation is a config change, not a data migration.
type Keyring struct {
	active string
	keys   map[string][]byte
}

// NewKeyring builds a keyring from named key material. The active id must
// be present in keys and every key must be non-empty.
func NewKeyring(active string, keys map[string][]byte) (*Keyring, error) {
	if active == "" {
		return nil, fmt.Errorf("token_keyring_active_key_required")
	}
	if _, ok := keys[active]; !ok {
		return nil, fmt.Errorf("token_keyring_active_key_missing: %s", active)
	}

	held := make(map[string][]byte, len(keys))
	for kid, key := range keys {
		if kid == "" || len(key) == 0 {
			return nil, fmt.Errorf("token_keyring_empty_entry")
		}
		held[kid] = key
	}

	return &Keyring{active: active, keys: held}, nil
}

// ParseKeyring parses the TOKEN_HASH_KEYS config format:
//
//	kid:base64secret,kid2:base64secret
//
// The first entry becomes the active sealing key; the rest verify only.
func ParseKeyring(spec string) (*Keyring, error) {
	entries := strings.Split(spec, ",")
	keys := make(map[string][]byte, len(entries))
	active := ""

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		kid, encoded, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("token_keyring_malformed_entry: %q", entry)
		}

		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("token_keyring_bad_key_material: %s: %w", kid, err)
		}

		keys[kid] = key
		if active == "" {
			active = kid
		}
	}

	if active == "" {
		return nil, fmt.Errorf("token_keyring_no_entries")
	}

	return NewKeyring(active, keys)
}

// ActiveKeyID returns the kid new envelopes are sealed under.
func (k *Keyring) ActiveKeyID() string {
	return k.active
}

// Seal hashes a secret under the active key with a fresh salt.
//
// Two envelopes of the same secret differ (the salt is random) but both
// verify. The per-envelope key is derived as HMAC(master, salt) so a stolen
// table of envelopes gives an attacker nothing reusable across rows.
func (k *Keyring) Seal(secret string) (*Envelope, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("token_envelope_salt_failed: %w", err)
	}

	sum := k.compute(k.keys[k.active], salt, secret)

	return &Envelope{
		Algorithm: EnvelopeAlgorithm,
		KeyID:     k.active,
		Salt:      base64.RawURLEncoding.EncodeToString(salt),
		Hash:      base64.RawURLEncoding.EncodeToString(sum),
		IssuedAt:  time.Now().UTC(),
	}, nil
}

// Verify reports whether secret matches the envelope. It fails closed: a
// nil envelope, an unknown algorithm or key id, undecodable fields, or any
// mismatch all return false. It never returns an error because callers must
// not be able to distinguish why verification failed.
//
// The comparison is length-checked first, then constant-time over every
// byte.
func (k *Keyring) Verify(secret string, env *Envelope) bool {
	if env == nil || env.Algorithm != EnvelopeAlgorithm {
		return false
	}

	master, ok := k.keys[env.KeyID]
	if !ok {
		return false
	}

	salt, err := base64.RawURLEncoding.DecodeString(env.Salt)
	if err != nil || len(salt) == 0 {
		return false
	}

	want, err := base64.RawURLEncoding.DecodeString(env.Hash)
	if err != nil {
		return false
	}

	got := k.compute(master, salt, secret)
	if len(got) != len(want) {
		return false
	}

	return subtle.ConstantTimeCompare(got, want) == 1
}

// compute derives the per-envelope key from (master, salt) and MACs the
// secret under it.
func (k *Keyring) compute(master, salt []byte, secret string) []byte {
	kdf := hmac.New(sha256.New, master)
	kdf.Write(salt)
	derived := kdf.Sum(nil)

	mac := hmac.New(sha256.New, derived)
	mac.Write([]byte(secret))
	return mac.Sum(nil)
}
