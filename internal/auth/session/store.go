// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package session

import (
	"context"
	"errors"
	"time"

	"github.com/superbasicman/superbasic/internal/users/account"
)

// ErrAlreadyRotated is returned by RotateWithinFamily when the predecessor
// was no longer live inside the rotation transaction. The caller lost a
// rotation race; the revocation it observed is by construction fresh.
var ErrAlreadyRotated = errors.New("refresh token already rotated")

// # Session Data Access

// SessionRepository defines the persistence contract for sessions.
type SessionRepository interface {

	/*
		Create persists a new session row.

		Parameters:
		  - context: context.Context
		  - session: *Session (ID and timestamps assigned by caller)

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, session *Session) error

	/*
		FindByID returns the session with the given ID, live or not.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *Session: Hydrated entity
		  - error: apperr.NotFound or retrieval failures
	*/
	FindByID(context context.Context, id string) (*Session, error)

	/*
		ExtendExpiry pushes the sliding expiry forward after a rotation.
		The caller has already capped expiresAt by the absolute limit.

		Parameters:
		  - context: context.Context
		  - id: string
		  - expiresAt: time.Time
		  - lastSeenAt: time.Time

		Returns:
		  - error: Persistence failures
	*/
	ExtendExpiry(context context.Context, id string, expiresAt, lastSeenAt time.Time) error

	/*
		Revoke marks the user's session revoked. Already-revoked and missing
		sessions report not_found; revoking twice is not an error.

		Parameters:
		  - context: context.Context
		  - sessionID: string
		  - userID: string (ownership constraint)

		Returns:
		  - RevocationStatus: revoked or not_found
		  - error: Persistence failures
	*/
	Revoke(context context.Context, sessionID, userID string) (RevocationStatus, error)

	/*
		RevokeByID marks a session revoked without an ownership constraint.
		Used by reuse burns and SSO back-channel logout, which act on
		sessions the current caller does not own.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - error: Persistence failures
	*/
	RevokeByID(context context.Context, sessionID string) error

	/*
		RevokeAllForUser revokes every live session of one user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	RevokeAllForUser(context context.Context, userID string) error

	/*
		FindActiveByUserID lists the user's live sessions, newest first.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []Session: Live sessions
		  - error: Retrieval failures
	*/
	FindActiveByUserID(context context.Context, userID string) ([]Session, error)

	/*
		FindActiveByUserIDs lists live sessions across several users. Used
		by the SSO logout planner.

		Parameters:
		  - context: context.Context
		  - userIDs: []string

		Returns:
		  - []Session: Live sessions for all listed users
		  - error: Retrieval failures
	*/
	FindActiveByUserIDs(context context.Context, userIDs []string) ([]Session, error)
}

// # Refresh Token Data Access

// RefreshTokenRepository defines the persistence contract for refresh-token
// families.
type RefreshTokenRepository interface {

	/*
		Create persists the root token of a new family.

		Parameters:
		  - context: context.Context
		  - refreshToken: *RefreshToken

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, refreshToken *RefreshToken) error

	/*
		FindByID returns the token with the given ID, live or not. Revoked
		rows are required for reuse detection.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *RefreshToken: Hydrated entity
		  - error: apperr.NotFound or retrieval failures
	*/
	FindByID(context context.Context, id string) (*RefreshToken, error)

	/*
		RotateWithinFamily revokes the predecessor and inserts the successor
		in ONE transaction. The revoke targets only live rows; when zero rows
		transition the transaction rolls back and ErrAlreadyRotated is
		returned, so concurrent rotations of the same token can never both
		succeed.

		Parameters:
		  - context: context.Context
		  - predecessorID: string
		  - successor: *RefreshToken (same FamilyID and SessionID)

		Returns:
		  - error: ErrAlreadyRotated on a lost race, persistence failures
	*/
	RotateWithinFamily(context context.Context, predecessorID string, successor *RefreshToken) error

	/*
		RevokeFamily revokes every live token sharing the familyID.

		Parameters:
		  - context: context.Context
		  - familyID: string

		Returns:
		  - error: Persistence failures
	*/
	RevokeFamily(context context.Context, familyID string) error

	/*
		RevokeBySessionID revokes every live token bound to a session.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - error: Persistence failures
	*/
	RevokeBySessionID(context context.Context, sessionID string) error

	/*
		RevokeAllForUser revokes every live token of one user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	RevokeAllForUser(context context.Context, userID string) error
}

// # User Directory

// UserDirectory is the narrow slice of the account store this package
// consumes: credential lookup for login and liveness checks on rotation.
type UserDirectory interface {
	FindByEmail(context context.Context, email string) (*account.Account, error)
	FindByID(context context.Context, id string) (*account.Account, error)
}

// IdentityLinker records an external IdP identity for a user when a session
// is created through a federated login. Optional; nil skips linking.
type IdentityLinker interface {
	EnsureLink(context context.Context, userID, provider, subject string) error
}
