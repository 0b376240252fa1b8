// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package mfa implements RFC 6238 time-based one-time passwords, the second
factor behind the "mfa" authentication level.

One fixed profile is supported: SHA-1, 6 digits, 30-second steps, one step
of clock skew in both directions. That is what every mainstream
authenticator app generates by default, and a single profile keeps stored
secrets interchangeable.
*/
package mfa

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// Digits is the code length.
	Digits = 6
	// Period is the time step.
	Period = 30 * time.Second
	// Skew is how many adjacent steps are accepted around "now".
	Skew = 1

	secretBytes = 20
)

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret returns a fresh base32-encoded (no padding) shared secret.
func GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("mfa_secret_generation_failed: %w", err)
	}

	return base32NoPad.EncodeToString(raw), nil
}

// ProvisionURI renders the otpauth:// URI that authenticator apps import,
// shown exactly once at enrollment.
func ProvisionURI(secret, account, issuer string) string {
	label := url.PathEscape(issuer + ":" + account)

	params := url.Values{}
	params.Set("secret", secret)
	params.Set("issuer", issuer)
	params.Set("algorithm", "SHA1")
	params.Set("digits", "6")
	params.Set("period", "30")

	return "otpauth://totp/" + label + "?" + params.Encode()
}

// Verify reports whether code is valid for the secret at the given instant.
// It fails closed: malformed secrets, wrong-length or non-numeric codes,
// and plain mismatches all return false. Comparison is constant-time per
// candidate window.
func Verify(secret, code string, at time.Time) bool {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != Digits || !isDigits(trimmed) {
		return false
	}

	key, err := base32NoPad.DecodeString(strings.ToUpper(strings.TrimRight(secret, "=")))
	if err != nil || len(key) == 0 {
		return false
	}

	baseCounter := at.Unix() / int64(Period/time.Second)
	for step := -Skew; step <= Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}

		if subtle.ConstantTimeCompare([]byte(hotp(key, counter)), []byte(trimmed)) == 1 {
			return true
		}
	}

	return false
}

// hotp computes the RFC 4226 truncated code for one counter value.
func hotp(key []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	return fmt.Sprintf("%06d", bin%1000000)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
