// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package signing_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superbasicman/superbasic/internal/auth/signing"
)

// writeKeyPair generates an RSA key pair and writes both halves as PEM
// files under dir, returning their paths.
func writeKeyPair(t *testing.T, dir, name string) (string, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPath := filepath.Join(dir, name+".pem")
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	pubPath := filepath.Join(dir, name+".pub.pem")
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o600))

	return privPath, pubPath
}

func newTestKeystore(t *testing.T, kid string, retired map[string]string) *signing.Keystore {
	t.Helper()

	dir := t.TempDir()
	privPath, pubPath := writeKeyPair(t, dir, kid)

	store, err := signing.NewKeystore(signing.Options{
		PrivateKeyPath:  privPath,
		PublicKeyPath:   pubPath,
		KeyID:           kid,
		RetiredKeyPaths: retired,
		Issuer:          "superbasic.test",
	})
	require.NoError(t, err)

	return store
}

/*
TestKeystore_SignVerifyAccess verifies the access token round trip and that
claims stay limited to identity pointers.
*/
func TestKeystore_SignVerifyAccess(t *testing.T) {
	store := newTestKeystore(t, "k1", nil)

	now := time.Now()
	raw, err := store.SignAccess("user-1", "session-1", "web", now, 15*time.Minute)
	require.NoError(t, err)

	claims, err := store.VerifyAccess(raw)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "session-1", claims.SessionID)
	assert.Equal(t, "web", claims.ClientType)
	assert.Equal(t, "superbasic.test", claims.Issuer)
	assert.WithinDuration(t, now.Add(15*time.Minute), claims.ExpiresAt.Time, 2*time.Second)
}

/*
TestKeystore_RetiredKeyVerifies verifies that tokens signed under a retired
kid keep verifying after rotation, while new tokens carry the active kid.
*/
func TestKeystore_RetiredKeyVerifies(t *testing.T) {
	oldDir := t.TempDir()
	oldPriv, oldPub := writeKeyPair(t, oldDir, "k1")

	oldStore, err := signing.NewKeystore(signing.Options{
		PrivateKeyPath: oldPriv,
		PublicKeyPath:  oldPub,
		KeyID:          "k1",
		Issuer:         "superbasic.test",
	})
	require.NoError(t, err)

	oldToken, err := oldStore.SignAccess("user-1", "session-1", "web", time.Now(), time.Hour)
	require.NoError(t, err)

	newDir := t.TempDir()
	newPriv, newPub := writeKeyPair(t, newDir, "k2")

	rotated, err := signing.NewKeystore(signing.Options{
		PrivateKeyPath:  newPriv,
		PublicKeyPath:   newPub,
		KeyID:           "k2",
		RetiredKeyPaths: map[string]string{"k1": oldPub},
		Issuer:          "superbasic.test",
	})
	require.NoError(t, err)

	claims, err := rotated.VerifyAccess(oldToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)

	assert.Equal(t, "k2", rotated.ActiveKeyID())
}

/*
TestKeystore_UnknownKid verifies that a token signed under a kid the store
never held is rejected.
*/
func TestKeystore_UnknownKid(t *testing.T) {
	foreign := newTestKeystore(t, "k9", nil)
	store := newTestKeystore(t, "k1", nil)

	raw, err := foreign.SignAccess("user-1", "session-1", "web", time.Now(), time.Hour)
	require.NoError(t, err)

	_, err = store.VerifyAccess(raw)
	assert.Error(t, err)
}

/*
TestKeystore_Expired verifies expiry enforcement.
*/
func TestKeystore_Expired(t *testing.T) {
	store := newTestKeystore(t, "k1", nil)

	raw, err := store.SignAccess("user-1", "session-1", "web", time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)

	_, err = store.VerifyAccess(raw)
	assert.Error(t, err)
}

/*
TestKeystore_RejectsForeignAlgorithms verifies that HMAC-signed and
kid-less tokens are rejected even when their payload looks right.
*/
func TestKeystore_RejectsForeignAlgorithms(t *testing.T) {
	store := newTestKeystore(t, "k1", nil)

	claims := signing.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "superbasic.test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		SessionID:  "session-1",
		ClientType: "web",
	}

	hmacToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	hmacToken.Header["kid"] = "k1"
	rawHMAC, err := hmacToken.SignedString([]byte("not-an-rsa-key"))
	require.NoError(t, err)

	_, err = store.VerifyAccess(rawHMAC)
	assert.Error(t, err)

	// Same RSA family but no kid header at all.
	dir := t.TempDir()
	privPath, pubPath := writeKeyPair(t, dir, "bare")
	bare, err := signing.NewKeystore(signing.Options{
		PrivateKeyPath: privPath,
		PublicKeyPath:  pubPath,
		KeyID:          "bare",
		Issuer:         "superbasic.test",
	})
	require.NoError(t, err)
	_ = bare

	privPEM, err := os.ReadFile(privPath)
	require.NoError(t, err)
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	require.NoError(t, err)

	noKid := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	delete(noKid.Header, "kid")
	rawNoKid, err := noKid.SignedString(privKey)
	require.NoError(t, err)

	_, err = bare.VerifyAccess(rawNoKid)
	assert.Error(t, err)
}

/*
TestKeystore_WrongIssuer verifies that a structurally valid token from a
different issuer fails verification.
*/
func TestKeystore_WrongIssuer(t *testing.T) {
	dir := t.TempDir()
	privPath, pubPath := writeKeyPair(t, dir, "shared")

	signer, err := signing.NewKeystore(signing.Options{
		PrivateKeyPath: privPath,
		PublicKeyPath:  pubPath,
		KeyID:          "shared",
		Issuer:         "other.test",
	})
	require.NoError(t, err)

	verifier, err := signing.NewKeystore(signing.Options{
		PrivateKeyPath: privPath,
		PublicKeyPath:  pubPath,
		KeyID:          "shared",
		Issuer:         "superbasic.test",
	})
	require.NoError(t, err)

	raw, err := signer.SignAccess("user-1", "session-1", "web", time.Now(), time.Hour)
	require.NoError(t, err)

	_, err = verifier.VerifyAccess(raw)
	assert.Error(t, err)
}

/*
TestKeystore_IDToken verifies ID token claims: audience, nonce, auth_time.
*/
func TestKeystore_IDToken(t *testing.T) {
	dir := t.TempDir()
	privPath, pubPath := writeKeyPair(t, dir, "k1")

	store, err := signing.NewKeystore(signing.Options{
		PrivateKeyPath: privPath,
		PublicKeyPath:  pubPath,
		KeyID:          "k1",
		Issuer:         "superbasic.test",
	})
	require.NoError(t, err)

	authTime := time.Now().Add(-5 * time.Minute).Truncate(time.Second)
	raw, err := store.SignID(signing.IDTokenInput{
		UserID:     "user-1",
		ClientID:   "client-abc",
		Nonce:      "n-0S6_WzA2Mj",
		AuthTime:   authTime,
		IssuedAt:   time.Now(),
		TimeToLive: 10 * time.Minute,
	})
	require.NoError(t, err)

	pubPEM, err := os.ReadFile(pubPath)
	require.NoError(t, err)
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	require.NoError(t, err)

	var claims signing.IDClaims
	_, err = jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return pubKey, nil
	})
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, jwt.ClaimStrings{"client-abc"}, claims.Audience)
	assert.Equal(t, "n-0S6_WzA2Mj", claims.Nonce)
	assert.Equal(t, authTime.Unix(), claims.AuthTime)
}

/*
TestParseRetiredSpec verifies the config format for retired key paths.
*/
func TestParseRetiredSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "two entries",
			spec: "k1=/keys/k1.pub.pem, k2=/keys/k2.pub.pem",
			want: map[string]string{"k1": "/keys/k1.pub.pem", "k2": "/keys/k2.pub.pem"},
		},
		{
			name: "empty spec",
			spec: "",
			want: map[string]string{},
		},
		{
			name:    "missing separator",
			spec:    "k1/keys/k1.pub.pem",
			wantErr: true,
		},
		{
			name:    "empty kid",
			spec:    "=/keys/k1.pub.pem",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := signing.ParseRetiredSpec(tc.spec)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

/*
TestNewKeystore_Errors verifies fail-fast behavior on bad key material.
*/
func TestNewKeystore_Errors(t *testing.T) {
	dir := t.TempDir()
	privPath, pubPath := writeKeyPair(t, dir, "k1")

	_, err := signing.NewKeystore(signing.Options{
		PrivateKeyPath: filepath.Join(dir, "missing.pem"),
		PublicKeyPath:  pubPath,
		KeyID:          "k1",
		Issuer:         "superbasic.test",
	})
	assert.Error(t, err)

	_, err = signing.NewKeystore(signing.Options{
		PrivateKeyPath: privPath,
		PublicKeyPath:  pubPath,
		KeyID:          "",
		Issuer:         "superbasic.test",
	})
	assert.Error(t, err)

	_, err = signing.NewKeystore(signing.Options{
		PrivateKeyPath:  privPath,
		PublicKeyPath:   pubPath,
		KeyID:           "k1",
		RetiredKeyPaths: map[string]string{"k1": pubPath},
		Issuer:          "superbasic.test",
	})
	assert.Error(t, err, "retired kid colliding with active kid")
}
