// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package account_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superbasicman/superbasic/internal/auth/audit"
	"github.com/superbasicman/superbasic/internal/platform/apperr"
	"github.com/superbasicman/superbasic/internal/platform/sec"
	"github.com/superbasicman/superbasic/internal/users/account"
)

// fakeAccountRepository is an in-memory AccountRepository for service tests.
type fakeAccountRepository struct {
	byID    map[string]*account.Account
	byEmail map[string]*account.Account
}

func newFakeAccountRepository() *fakeAccountRepository {
	return &fakeAccountRepository{
		byID:    map[string]*account.Account{},
		byEmail: map[string]*account.Account{},
	}
}

func (f *fakeAccountRepository) Create(_ context.Context, acct *account.Account) error {
	if _, ok := f.byEmail[acct.Email]; ok {
		return apperr.Conflict("Email is already registered")
	}
	clone := *acct
	f.byID[acct.ID] = &clone
	f.byEmail[acct.Email] = &clone
	return nil
}

func (f *fakeAccountRepository) FindByID(_ context.Context, id string) (*account.Account, error) {
	acct, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	clone := *acct
	return &clone, nil
}

func (f *fakeAccountRepository) FindByEmail(_ context.Context, email string) (*account.Account, error) {
	acct, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	clone := *acct
	return &clone, nil
}

func (f *fakeAccountRepository) Update(_ context.Context, acct *account.Account) error {
	stored, ok := f.byID[acct.ID]
	if !ok {
		return apperr.NotFound("Account")
	}
	stored.DisplayName = acct.DisplayName
	stored.AvatarURL = acct.AvatarURL
	stored.Bio = acct.Bio
	return nil
}

func (f *fakeAccountRepository) SetTOTPSecret(_ context.Context, id string, secret *string) error {
	stored, ok := f.byID[id]
	if !ok {
		return apperr.NotFound("Account")
	}
	stored.TOTPSecret = secret
	return nil
}

func newTestService(t *testing.T, repo account.AccountRepository) *account.Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := audit.NewRecorder(logger, 16)
	t.Cleanup(recorder.Close)
	return account.NewService(repo, recorder, logger)
}

/*
TestService_Register covers account creation: email normalization, password
hashing, and the duplicate-email conflict.
*/
func TestService_Register(t *testing.T) {
	repo := newFakeAccountRepository()
	service := newTestService(t, repo)

	acct, err := service.Register(context.Background(), account.RegisterInput{
		Email:       "  Reader@Example.COM ",
		Password:    "correct horse battery",
		DisplayName: "Reader",
	})
	require.NoError(t, err)
	require.NotNil(t, acct)

	assert.Equal(t, "reader@example.com", acct.Email)
	assert.NotEmpty(t, acct.ID)
	assert.NotEmpty(t, acct.ProfileID)
	assert.NotEqual(t, acct.ID, acct.ProfileID)
	assert.Equal(t, account.StatusActive, acct.Status)

	// The stored hash must verify the original password and never equal it.
	assert.NotEqual(t, "correct horse battery", acct.PasswordHash)
	assert.True(t, sec.CheckPasswordHash("correct horse battery", acct.PasswordHash))

	// A second registration with the same email (any casing) conflicts.
	_, err = service.Register(context.Background(), account.RegisterInput{
		Email:       "reader@example.com",
		Password:    "another password!!",
		DisplayName: "Imposter",
	})
	require.Error(t, err)
	require.NotNil(t, apperr.As(err))
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)
}

/*
TestService_UpdateProfile verifies that only provided fields change.
*/
func TestService_UpdateProfile(t *testing.T) {
	repo := newFakeAccountRepository()
	service := newTestService(t, repo)

	acct, err := service.Register(context.Background(), account.RegisterInput{
		Email:       "artist@example.com",
		Password:    "a long enough pass",
		DisplayName: "Artist",
	})
	require.NoError(t, err)

	bio := "Draws things."
	updated, err := service.UpdateProfile(context.Background(), acct.ID, account.UpdateProfileInput{
		Bio: &bio,
	})
	require.NoError(t, err)

	assert.Equal(t, "Artist", updated.DisplayName, "untouched field must survive a partial update")
	assert.Equal(t, "Draws things.", updated.Bio)

	_, err = service.UpdateProfile(context.Background(), "missing-id", account.UpdateProfileInput{Bio: &bio})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

/*
TestService_EnrollTOTP verifies enrollment stores a usable secret and that a
second enrollment is refused while one is active.
*/
func TestService_EnrollTOTP(t *testing.T) {
	repo := newFakeAccountRepository()
	service := newTestService(t, repo)

	acct, err := service.Register(context.Background(), account.RegisterInput{
		Email:       "secure@example.com",
		Password:    "a long enough pass",
		DisplayName: "Secure",
	})
	require.NoError(t, err)

	enrollment, err := service.EnrollTOTP(context.Background(), acct.ID)
	require.NoError(t, err)
	require.NotNil(t, enrollment)

	assert.NotEmpty(t, enrollment.Secret)
	assert.Contains(t, enrollment.ProvisioningURI, "otpauth://totp/")
	assert.Contains(t, enrollment.ProvisioningURI, "secure@example.com")

	stored, err := repo.FindByID(context.Background(), acct.ID)
	require.NoError(t, err)
	require.True(t, stored.MFAEnrolled())
	assert.Equal(t, enrollment.Secret, *stored.TOTPSecret)

	// Re-enrollment while active is a conflict.
	_, err = service.EnrollTOTP(context.Background(), acct.ID)
	require.Error(t, err)
	require.NotNil(t, apperr.As(err))
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)
}
