// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package account manages user accounts: registration, profile data, and the
credential material the authentication layer verifies against.

# Architecture

  - Entities: Account (identity and profile in one row).
  - Domain: This package owns the users.account table. The session and
    resolver layers consume it through narrow directory interfaces.
  - Security: Password hashes and TOTP secrets never appear in API responses.
*/
package account

import (
	"context"
	"time"
)

// # Domain Entities

// Status is the lifecycle state of an account.
type Status string

const (
	// StatusActive accounts can authenticate.
	StatusActive Status = "active"
	// StatusDisabled accounts resolve to anonymous on every surface; their
	// existing sessions stop working at the next request.
	StatusDisabled Status = "disabled"
)

// IsValid reports whether s is a defined status.
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusDisabled
}

// Account represents a registered user.
//
// ProfileID is the identifier handed to database exec-context imprinting and
// public surfaces. It is distinct from ID so the authentication identity can
// rotate independently of anything other rows reference.
type Account struct {
	ID           string    `json:"id"`
	ProfileID    string    `json:"profile_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Explicitly omitted from JSON for security.
	DisplayName  string    `json:"display_name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	TOTPSecret   *string   `json:"-"` // Base32 shared secret. Omitted for security.
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsActive reports whether the account may authenticate.
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// MFAEnrolled reports whether a TOTP second factor is configured.
func (a *Account) MFAEnrolled() bool {
	return a.TOTPSecret != nil && *a.TOTPSecret != ""
}

// # Field Identifiers

// Global field names for validation and identity mapping in the account domain.
const (
	FieldEmail       = "email"
	FieldPassword    = "password"
	FieldDisplayName = "display_name"
	FieldAvatarURL   = "avatar_url"
	FieldBio         = "bio"
)

// Limits enforced at the edge.
const (
	MinPasswordLength = 10
	MaxDisplayNameLen = 80
	MaxBioLen         = 500
	MaxAvatarURLLen   = 512
	MaxEmailLen       = 254
)

// # Repository Contracts

// AccountRepository defines the persistence contract for user accounts.
type AccountRepository interface {
	/*
		Create persists a new account row.

		Parameters:
		  - context: context.Context
		  - account: *Account (Hydrated entity; ID, ProfileID and timestamps set by caller)

		Returns:
		  - error: apperr.Conflict on duplicate email, storage failures
	*/
	Create(context context.Context, account *Account) error

	/*
		FindByID retrieves an account by its unique ID.

		Parameters:
		  - context: context.Context
		  - id: string (UUID)

		Returns:
		  - *Account: Loaded account entity
		  - error: apperr.NotFound or storage failures
	*/
	FindByID(context context.Context, id string) (*Account, error)

	/*
		FindByEmail retrieves an account by its unique email address.

		Parameters:
		  - context: context.Context
		  - email: string (Case-insensitive match)

		Returns:
		  - *Account: Loaded account entity
		  - error: apperr.NotFound or storage failures
	*/
	FindByEmail(context context.Context, email string) (*Account, error)

	/*
		Update modifies the mutable profile fields of an existing account.

		Parameters:
		  - context: context.Context
		  - account: *Account (Hydrated entity with changes)

		Returns:
		  - error: apperr.NotFound if the row vanished, storage failures
	*/
	Update(context context.Context, account *Account) error

	/*
		SetTOTPSecret stores or clears the TOTP shared secret for an account.

		Parameters:
		  - context: context.Context
		  - id: string
		  - secret: *string (nil clears enrollment)

		Returns:
		  - error: apperr.NotFound or storage failures
	*/
	SetTOTPSecret(context context.Context, id string, secret *string) error
}
