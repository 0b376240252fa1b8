// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package oauth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// # PKCE (RFC 7636)

// ChallengeMethod names a code-challenge transformation.
type ChallengeMethod string

const (
	// ChallengeMethodS256 hashes the verifier: challenge =
	// base64url(sha256(verifier)), no padding. The default and the only
	// method new clients should use.
	ChallengeMethodS256 ChallengeMethod = "S256"

	// ChallengeMethodPlain compares the verifier literally. Accepted for
	// legacy clients that cannot hash; S256 is preferred.
	ChallengeMethodPlain ChallengeMethod = "plain"
)

const (
	// verifierMinLen and verifierMaxLen bound code_verifier per RFC 7636 §4.1.
	verifierMinLen = 43
	verifierMaxLen = 128
)

// NormalizeChallengeMethod maps the raw code_challenge_method parameter to
// a supported method. An absent value defaults to S256; anything else is
// rejected.
func NormalizeChallengeMethod(raw string) (ChallengeMethod, bool) {
	switch raw {
	case "", string(ChallengeMethodS256):
		return ChallengeMethodS256, true
	case string(ChallengeMethodPlain):
		return ChallengeMethodPlain, true
	default:
		return "", false
	}
}

// S256Challenge derives the S256 challenge for a verifier.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

/*
VerifyChallenge reports whether verifier reproduces the stored challenge
under the stored method.

Description: Comparison is constant-time in both modes. A verifier outside
the RFC 7636 length bounds fails outright, so a single-character mutation of
a valid verifier can never be accepted.

Parameters:
  - verifier: string (the code_verifier presented at the token endpoint)
  - challenge: string (stored verbatim at authorize time)
  - method: ChallengeMethod

Returns:
  - bool: true only when the proof holds
*/
func VerifyChallenge(verifier, challenge string, method ChallengeMethod) bool {
	if challenge == "" || len(verifier) < verifierMinLen || len(verifier) > verifierMaxLen {
		return false
	}

	switch method {
	case ChallengeMethodS256:
		derived := S256Challenge(verifier)
		return subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) == 1
	case ChallengeMethodPlain:
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	default:
		return false
	}
}
