// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package pat_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superbasicman/superbasic/internal/auth/audit"
	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/auth/pat"
	"github.com/superbasicman/superbasic/internal/auth/token"
	"github.com/superbasicman/superbasic/internal/platform/apperr"
	"github.com/superbasicman/superbasic/internal/users/account"
)

// fakeTokenRepository is an in-memory TokenRepository for service tests.
type fakeTokenRepository struct {
	byID map[string]*pat.PersonalToken
}

func newFakeTokenRepository() *fakeTokenRepository {
	return &fakeTokenRepository{byID: map[string]*pat.PersonalToken{}}
}

func (f *fakeTokenRepository) Create(_ context.Context, personalToken *pat.PersonalToken) error {
	clone := *personalToken
	f.byID[personalToken.ID] = &clone
	return nil
}

func (f *fakeTokenRepository) FindByID(_ context.Context, id string) (*pat.PersonalToken, error) {
	stored, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("Personal access token")
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeTokenRepository) ListByUserID(_ context.Context, userID string) ([]pat.PersonalToken, error) {
	var tokens []pat.PersonalToken
	for _, stored := range f.byID {
		if stored.UserID == userID && stored.RevokedAt == nil {
			tokens = append(tokens, *stored)
		}
	}
	return tokens, nil
}

func (f *fakeTokenRepository) CountLiveByUserID(_ context.Context, userID string) (int, error) {
	count := 0
	for _, stored := range f.byID {
		if stored.UserID == userID && stored.IsLive(time.Now()) {
			count++
		}
	}
	return count, nil
}

func (f *fakeTokenRepository) Rename(_ context.Context, id, userID, name string) (bool, error) {
	stored, ok := f.byID[id]
	if !ok || stored.UserID != userID || stored.RevokedAt != nil {
		return false, nil
	}
	stored.Name = name
	return true, nil
}

func (f *fakeTokenRepository) Revoke(_ context.Context, id, userID string) (bool, error) {
	stored, ok := f.byID[id]
	if !ok || stored.UserID != userID || stored.RevokedAt != nil {
		return false, nil
	}
	now := time.Now()
	stored.RevokedAt = &now
	return true, nil
}

func (f *fakeTokenRepository) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	if stored, ok := f.byID[id]; ok {
		stored.LastUsedAt = &at
	}
	return nil
}

// fakeUserDirectory serves the owner-liveness check of Verify.
type fakeUserDirectory struct {
	users map[string]*account.Account
}

func (f *fakeUserDirectory) FindByID(_ context.Context, id string) (*account.Account, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	return user, nil
}

func newTestService(t *testing.T, repo pat.TokenRepository, users pat.UserDirectory) *pat.Service {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := audit.NewRecorder(logger, 16)
	t.Cleanup(recorder.Close)

	ring, err := token.NewKeyring("v1", map[string][]byte{
		"v1": []byte("pat-test-master-key-material-0123"),
	})
	require.NoError(t, err)

	return pat.NewService(repo, users, token.NewCodec(), ring, recorder, logger)
}

func activeUser(id string) *account.Account {
	return &account.Account{ID: id, ProfileID: "profile-" + id, Status: account.StatusActive}
}

/*
TestService_Mint verifies scope filtering, the single raw-value handoff, and
that only a hash envelope is stored.
*/
func TestService_Mint(t *testing.T) {
	repo := newFakeTokenRepository()
	users := &fakeUserDirectory{users: map[string]*account.Account{"user-1": activeUser("user-1")}}
	service := newTestService(t, repo, users)

	minted, err := service.Mint(context.Background(), pat.MintInput{
		UserID: "user-1",
		Name:   "  CI deploy key ",
		Scopes: []string{"workspace:read", "made:up", "profile"},
	})
	require.NoError(t, err)
	require.NotNil(t, minted)

	assert.Equal(t, "CI deploy key", minted.Token.Name)
	assert.Equal(t, []authz.Scope{authz.ScopeWorkspaceRead, authz.ScopeProfile}, minted.Token.Scopes,
		"unknown scopes are dropped silently, known ones kept in request order")

	// The wire value parses as a pat credential and points at the stored row.
	parsed := token.Parse(minted.Value, token.ParseOptions{Kind: token.KindPersonal})
	require.NotNil(t, parsed)
	assert.Equal(t, minted.Token.ID, parsed.ID)

	stored, err := repo.FindByID(context.Background(), minted.Token.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.TokenHash.Hash, "only the envelope is persisted")
	assert.Equal(t, parsed.Secret[len(parsed.Secret)-4:], stored.Last4)
}

/*
TestService_Mint_NoValidScopes verifies that a request whose scopes all fall
outside the catalog is rejected instead of minting an unscoped token.
*/
func TestService_Mint_NoValidScopes(t *testing.T) {
	repo := newFakeTokenRepository()
	users := &fakeUserDirectory{users: map[string]*account.Account{"user-1": activeUser("user-1")}}
	service := newTestService(t, repo, users)

	_, err := service.Mint(context.Background(), pat.MintInput{
		UserID: "user-1",
		Name:   "useless",
		Scopes: []string{"nope", "also:nope"},
	})
	require.Error(t, err)
	require.NotNil(t, apperr.As(err))
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
}

/*
TestService_Verify covers the resolver-delegated verify path: a freshly
minted value yields a scope-limited token principal, and LastUsedAt is
stamped.
*/
func TestService_Verify(t *testing.T) {
	repo := newFakeTokenRepository()
	users := &fakeUserDirectory{users: map[string]*account.Account{"user-1": activeUser("user-1")}}
	service := newTestService(t, repo, users)

	minted, err := service.Mint(context.Background(), pat.MintInput{
		UserID: "user-1",
		Name:   "reader",
		Scopes: []string{"workspace:read"},
	})
	require.NoError(t, err)

	principal, err := service.Verify(context.Background(), minted.Value)
	require.NoError(t, err)
	require.NotNil(t, principal)

	assert.Equal(t, authz.KindToken, principal.Kind)
	assert.Equal(t, "user-1", principal.Context.UserID)
	assert.Equal(t, "profile-user-1", principal.Context.ProfileID)
	assert.Empty(t, principal.Context.SessionID, "token principals have no session")
	assert.True(t, principal.HasScope(authz.ScopeWorkspaceRead))
	assert.False(t, principal.HasScope(authz.ScopeWorkspaceWrite))

	stored, err := repo.FindByID(context.Background(), minted.Token.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastUsedAt)
}

/*
TestService_Verify_Rejections walks the failure paths: malformed value,
wrong secret, revoked token, expired token, disabled owner. Every one
answers with the same unauthorized error.
*/
func TestService_Verify_Rejections(t *testing.T) {
	repo := newFakeTokenRepository()
	owner := activeUser("user-1")
	users := &fakeUserDirectory{users: map[string]*account.Account{"user-1": owner}}
	service := newTestService(t, repo, users)

	minted, err := service.Mint(context.Background(), pat.MintInput{
		UserID: "user-1",
		Name:   "target",
		Scopes: []string{"profile"},
	})
	require.NoError(t, err)

	expectUnauthorized := func(t *testing.T, raw string) {
		t.Helper()
		principal, err := service.Verify(context.Background(), raw)
		require.Error(t, err)
		assert.Nil(t, principal)
		require.NotNil(t, apperr.As(err))
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	}

	t.Run("malformed", func(t *testing.T) {
		expectUnauthorized(t, "pat_not-a-uuid.secret")
		expectUnauthorized(t, "sess_"+minted.Token.ID+".c2VjcmV0")
		expectUnauthorized(t, "")
	})

	t.Run("wrong secret", func(t *testing.T) {
		expectUnauthorized(t, "pat_"+minted.Token.ID+".d3Jvbmctc2VjcmV0")
	})

	t.Run("revoked", func(t *testing.T) {
		require.NoError(t, service.Revoke(context.Background(), "user-1", minted.Token.ID))
		expectUnauthorized(t, minted.Value)
	})

	t.Run("expired", func(t *testing.T) {
		soon := time.Now().Add(time.Minute)
		short, err := service.Mint(context.Background(), pat.MintInput{
			UserID:    "user-1",
			Name:      "short-lived",
			Scopes:    []string{"profile"},
			ExpiresAt: &soon,
		})
		require.NoError(t, err)

		service.WithClock(func() time.Time { return time.Now().Add(2 * time.Minute) })
		expectUnauthorized(t, short.Value)
		service.WithClock(time.Now)
	})

	t.Run("disabled owner", func(t *testing.T) {
		fresh, err := service.Mint(context.Background(), pat.MintInput{
			UserID: "user-1",
			Name:   "orphaned",
			Scopes: []string{"profile"},
		})
		require.NoError(t, err)

		owner.Status = account.StatusDisabled
		expectUnauthorized(t, fresh.Value)
		owner.Status = account.StatusActive
	})
}

/*
TestService_Revoke_Idempotent verifies that revoking twice, or revoking a
token that never existed, is not an error.
*/
func TestService_Revoke_Idempotent(t *testing.T) {
	repo := newFakeTokenRepository()
	users := &fakeUserDirectory{users: map[string]*account.Account{"user-1": activeUser("user-1")}}
	service := newTestService(t, repo, users)

	minted, err := service.Mint(context.Background(), pat.MintInput{
		UserID: "user-1",
		Name:   "disposable",
		Scopes: []string{"profile"},
	})
	require.NoError(t, err)

	require.NoError(t, service.Revoke(context.Background(), "user-1", minted.Token.ID))
	require.NoError(t, service.Revoke(context.Background(), "user-1", minted.Token.ID))
	require.NoError(t, service.Revoke(context.Background(), "user-1", "00000000-0000-0000-0000-000000000000"))
}

/*
TestService_Rename verifies ownership enforcement: renaming a foreign token
reports not found.
*/
func TestService_Rename(t *testing.T) {
	repo := newFakeTokenRepository()
	users := &fakeUserDirectory{users: map[string]*account.Account{"user-1": activeUser("user-1")}}
	service := newTestService(t, repo, users)

	minted, err := service.Mint(context.Background(), pat.MintInput{
		UserID: "user-1",
		Name:   "old name",
		Scopes: []string{"profile"},
	})
	require.NoError(t, err)

	require.NoError(t, service.Rename(context.Background(), "user-1", minted.Token.ID, "new name"))

	stored, err := repo.FindByID(context.Background(), minted.Token.ID)
	require.NoError(t, err)
	assert.Equal(t, "new name", stored.Name)

	err = service.Rename(context.Background(), "someone-else", minted.Token.ID, "stolen")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}
