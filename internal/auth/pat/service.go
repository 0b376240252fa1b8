// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package pat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/superbasicman/superbasic/internal/auth/audit"
	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/auth/token"
	"github.com/superbasicman/superbasic/internal/platform/apperr"
	"github.com/superbasicman/superbasic/internal/platform/validate"
	"github.com/superbasicman/superbasic/internal/users/account"
)

// # Contracts & Types

// UserDirectory is the slice of the account store this package consumes:
// liveness checks on verification.
type UserDirectory interface {
	FindByID(context context.Context, id string) (*account.Account, error)
}

// Service implements the personal-access-token lifecycle and verify path.
type Service struct {
	tokenRepository TokenRepository
	userDirectory   UserDirectory
	codec           *token.Codec
	keyring         *token.Keyring
	auditRecorder   *audit.Recorder
	logger          *slog.Logger
	clock           func() time.Time
}

// NewService constructs a new [Service] with its dependencies.
func NewService(
	tokenRepo TokenRepository,
	users UserDirectory,
	codec *token.Codec,
	keyring *token.Keyring,
	recorder *audit.Recorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		tokenRepository: tokenRepo,
		userDirectory:   users,
		codec:           codec,
		keyring:         keyring,
		auditRecorder:   recorder,
		logger:          logger,
		clock:           time.Now,
	}
}

// WithClock replaces the time source for deterministic tests.
func (service *Service) WithClock(clock func() time.Time) *Service {
	service.clock = clock
	return service
}

// # Minting

// MintInput carries the parameters of a new token.
type MintInput struct {
	UserID string
	Name   string

	// Scopes are the requested scope names. Unknown names are silently
	// dropped; at least one known scope must remain.
	Scopes []string

	// ExpiresAt optionally bounds the token's lifetime. Nil means the token
	// lives until revoked.
	ExpiresAt *time.Time
}

// MintedToken is the mint response. Value carries the raw credential and
// exists here exactly once; it is never reconstructable afterwards.
type MintedToken struct {
	Token *PersonalToken `json:"token"`
	Value string         `json:"value"`
}

/*
Mint creates a personal access token for a user.

Description: Validates the name, filters requested scopes to the known
catalog (unknowns dropped without error), enforces the per-user cap, and
stores only the hash envelope of the minted secret.

Parameters:
  - context: context.Context
  - input: MintInput

Returns:
  - *MintedToken: Metadata plus the raw value, returned exactly once
  - error: Validation or storage failures
*/
func (service *Service) Mint(context context.Context, input MintInput) (*MintedToken, error) {
	name := strings.TrimSpace(input.Name)

	validator := &validate.Validator{}
	validator.Required(FieldName, name).MaxLen(FieldName, name, MaxNameLen)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	scopes := authz.FilterKnown(input.Scopes)
	if len(scopes) == 0 {
		return nil, validate.RequiredError(FieldScopes, "At least one valid scope is required")
	}

	now := service.clock()
	if input.ExpiresAt != nil && !input.ExpiresAt.After(now) {
		return nil, validate.RequiredError(FieldExpiresAt, "Expiry must be in the future")
	}

	liveCount, err := service.tokenRepository.CountLiveByUserID(context, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("pat_service_count_failed: %w", err)
	}
	if liveCount >= MaxTokensPerUser {
		return nil, apperr.Unprocessable("Personal access token limit reached")
	}

	minted, err := service.codec.Mint(token.KindPersonal)
	if err != nil {
		return nil, fmt.Errorf("pat_service_mint_failed: %w", err)
	}
	envelope, err := service.keyring.Seal(minted.Secret)
	if err != nil {
		return nil, fmt.Errorf("pat_service_seal_failed: %w", err)
	}

	personalToken := &PersonalToken{
		ID:        minted.ID,
		UserID:    input.UserID,
		Name:      name,
		TokenHash: *envelope,
		Last4:     minted.Last4(),
		Scopes:    scopes,
		CreatedAt: now,
		ExpiresAt: input.ExpiresAt,
	}

	if err := service.tokenRepository.Create(context, personalToken); err != nil {
		return nil, fmt.Errorf("pat_service_persist_failed: %w", err)
	}

	service.auditRecorder.Emit(audit.Event{
		Name:   audit.EventTokenMinted,
		UserID: input.UserID,
		Detail: map[string]string{
			"token_id": personalToken.ID,
			"scopes":   authz.JoinScopes(scopes),
		},
	})

	return &MintedToken{Token: personalToken, Value: minted.Value}, nil
}

// # Management

/*
List returns the user's non-revoked tokens, newest first, safety-mapped.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []PersonalToken: Token metadata without hash material
  - error: Retrieval failures
*/
func (service *Service) List(context context.Context, userID string) ([]PersonalToken, error) {
	tokens, err := service.tokenRepository.ListByUserID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("pat_service_list_failed: %w", err)
	}

	// Strip envelopes before the slice leaves the domain layer.
	for i := range tokens {
		tokens[i].TokenHash = token.Envelope{}
	}

	return tokens, nil
}

/*
Rename updates a token's display name.

Parameters:
  - context: context.Context
  - userID: string (owner)
  - tokenID: string
  - name: string

Returns:
  - error: apperr.NotFound when no live owned row matches, validation or
    storage failures
*/
func (service *Service) Rename(context context.Context, userID, tokenID, name string) error {
	name = strings.TrimSpace(name)

	validator := &validate.Validator{}
	validator.Required(FieldName, name).MaxLen(FieldName, name, MaxNameLen)
	if err := validator.Err(); err != nil {
		return err
	}

	renamed, err := service.tokenRepository.Rename(context, tokenID, userID, name)
	if err != nil {
		return fmt.Errorf("pat_service_rename_failed: %w", err)
	}
	if !renamed {
		return apperr.NotFound("Personal access token")
	}

	return nil
}

/*
Revoke marks a token revoked.

Description: Idempotent. Revoking an unknown, foreign, or already-revoked
token is not an error and not distinguishable from the outside.

Parameters:
  - context: context.Context
  - userID: string (owner)
  - tokenID: string

Returns:
  - error: Storage failures
*/
func (service *Service) Revoke(context context.Context, userID, tokenID string) error {
	revoked, err := service.tokenRepository.Revoke(context, tokenID, userID)
	if err != nil {
		return fmt.Errorf("pat_service_revoke_failed: %w", err)
	}

	if revoked {
		service.auditRecorder.Emit(audit.Event{
			Name:   audit.EventTokenRevoked,
			UserID: userID,
			Detail: map[string]string{"token_id": tokenID},
		})
	}

	return nil
}

// # Verification

// errInvalidToken is the uniform answer for every verification failure.
func errInvalidToken() *apperr.AppError {
	return apperr.Unauthorized("Invalid or expired token")
}

/*
Verify authenticates a raw "pat_" bearer value.

Description: Parses the wire form, loads the row by id, verifies the secret
against the hash envelope in constant time, and checks token and owner
liveness. Success produces a scope-limited token principal; LastUsedAt is
stamped best-effort and never fails the request.

Parameters:
  - context: context.Context
  - rawValue: string (wire form "pat_<uuid>.<secret>")

Returns:
  - *authz.Principal: Token principal bound to the stored scopes
  - error: apperr.Unauthorized for every credential failure
*/
func (service *Service) Verify(context context.Context, rawValue string) (*authz.Principal, error) {
	presented := token.Parse(rawValue, token.ParseOptions{Kind: token.KindPersonal})
	if presented == nil {
		return nil, errInvalidToken()
	}

	record, err := service.tokenRepository.FindByID(context, presented.ID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, errInvalidToken()
		}
		return nil, fmt.Errorf("pat_service_verify_lookup_failed: %w", err)
	}

	if !service.keyring.Verify(presented.Secret, &record.TokenHash) {
		return nil, errInvalidToken()
	}

	now := service.clock()
	if !record.IsLive(now) {
		return nil, errInvalidToken()
	}

	user, err := service.userDirectory.FindByID(context, record.UserID)
	if err != nil || !user.IsActive() {
		return nil, errInvalidToken()
	}

	if err := service.tokenRepository.TouchLastUsed(context, record.ID, now); err != nil {
		service.logger.Warn("pat_touch_last_used_failed",
			slog.String("token_id", record.ID),
			slog.String("error", err.Error()),
		)
	}

	return authz.NewTokenPrincipal(authz.Context{
		UserID:     user.ID,
		ProfileID:  user.ProfileID,
		ClientType: authz.ClientTypeAPI,
		Scopes:     record.Scopes,
		MFALevel:   authz.MFALevelNone,
	}), nil
}
