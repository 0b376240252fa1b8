// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/superbasicman/superbasic/internal/auth/audit"
	"github.com/superbasicman/superbasic/internal/auth/mfa"
	"github.com/superbasicman/superbasic/internal/platform/apperr"
	"github.com/superbasicman/superbasic/internal/platform/constants"
	"github.com/superbasicman/superbasic/internal/platform/sec"
	"github.com/superbasicman/superbasic/pkg/uuidv7"
)

// # Service Layer

// Service orchestrates business logic for user accounts.
//
// It owns registration, profile updates, and TOTP enrollment. Session
// issuance lives in the session package and consults this package only
// through its repository.
type Service struct {
	accountRepository AccountRepository
	auditRecorder     *audit.Recorder
	logger            *slog.Logger
}

// NewService constructs a new [Service] with its dependencies.
func NewService(accountRepo AccountRepository, recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		accountRepository: accountRepo,
		auditRecorder:     recorder,
		logger:            logger,
	}
}

// # Registration

// RegisterInput carries the fields required to create an account.
type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

/*
Register creates a new user account with a bcrypt-hashed password.

Description: Verifies email uniqueness before inserting; the unique index on
users.account(email) backstops concurrent registrations.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *Account: The created account
  - error: apperr.Conflict on duplicate email, hashing or storage failures
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*Account, error) {

	email := strings.ToLower(strings.TrimSpace(input.Email))

	// Verify email uniqueness. Return a client-safe Conflict err.
	_, err := service.accountRepository.FindByEmail(context, email)
	if err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}
	if !apperr.IsNotFound(err) {
		return nil, fmt.Errorf("account_service_register_lookup_failed: %w", err)
	}

	passwordHash, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("account_service_register_hash_failed: %w", err)
	}

	now := time.Now()
	acct := &Account{
		ID:           uuidv7.New(),
		ProfileID:    uuidv7.New(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  input.DisplayName,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := service.accountRepository.Create(context, acct); err != nil {
		return nil, err
	}

	service.auditRecorder.Emit(audit.Event{
		Name:   audit.EventAccountRegistered,
		UserID: acct.ID,
	})
	service.logger.Info("account_registered", slog.String("user_id", acct.ID))

	return acct, nil
}

// # Profile Management

/*
Get retrieves the full private identity of a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *Account: The hydrated account
  - error: Not found or execution failures
*/
func (service *Service) Get(context context.Context, userID string) (*Account, error) {
	acct, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// UpdateProfileInput defines the mutable subset of account profile fields.
type UpdateProfileInput struct {
	DisplayName *string
	AvatarURL   *string
	Bio         *string
}

/*
UpdateProfile applies a partial set of changes to a user's account metadata.

Description: Fetches the existing account state, overrides provided fields,
and synchronizes the change to persistent storage.

Parameters:
  - context: context.Context
  - userID: string
  - input: UpdateProfileInput

Returns:
  - *Account: The updated account
  - error: Update or storage failures
*/
func (service *Service) UpdateProfile(context context.Context, userID string, input UpdateProfileInput) (*Account, error) {

	acct, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_update_lookup_failed: %w", err)
	}

	// Apply delta updates
	if input.DisplayName != nil {
		acct.DisplayName = *input.DisplayName
	}

	// Apply delta updates
	if input.AvatarURL != nil {
		acct.AvatarURL = *input.AvatarURL
	}

	// Apply delta updates
	if input.Bio != nil {
		acct.Bio = *input.Bio
	}

	// Persist changes
	if err := service.accountRepository.Update(context, acct); err != nil {
		return nil, fmt.Errorf("account_service_update_failed: %w", err)
	}

	service.logger.Info("account_profile_updated", slog.String("user_id", userID))

	return acct, nil
}

// # Two-Factor Enrollment

// TOTPEnrollment carries the one-time provisioning material for an
// authenticator app. The secret is shown exactly once.
type TOTPEnrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

/*
EnrollTOTP generates and stores a TOTP shared secret for the account.

Description: Enrollment is refused while a secret is already active so a
stolen session cannot silently swap the second factor. Subsequent logins
verify a code and stamp the session's MFA level.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *TOTPEnrollment: Secret and otpauth:// URI for the authenticator app
  - error: apperr.Conflict when already enrolled, storage failures
*/
func (service *Service) EnrollTOTP(context context.Context, userID string) (*TOTPEnrollment, error) {

	acct, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_totp_lookup_failed: %w", err)
	}
	if acct.MFAEnrolled() {
		return nil, apperr.Conflict("Two-factor authentication is already enabled")
	}

	secret, err := mfa.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("account_service_totp_generate_failed: %w", err)
	}

	if err := service.accountRepository.SetTOTPSecret(context, userID, &secret); err != nil {
		return nil, fmt.Errorf("account_service_totp_store_failed: %w", err)
	}

	service.auditRecorder.Emit(audit.Event{
		Name:   audit.EventMFAEnrolled,
		UserID: userID,
	})
	service.logger.Info("account_totp_enrolled", slog.String("user_id", userID))

	return &TOTPEnrollment{
		Secret:          secret,
		ProvisioningURI: mfa.ProvisionURI(secret, acct.Email, constants.AppDisplayName),
	}, nil
}
