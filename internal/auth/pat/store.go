// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package pat

import (
	"context"
	"time"
)

// # Personal Token Data Access

// TokenRepository defines the persistence contract for personal access
// tokens.
type TokenRepository interface {

	/*
		Create persists a new token row.

		Parameters:
		  - context: context.Context
		  - personalToken: *PersonalToken

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, personalToken *PersonalToken) error

	/*
		FindByID returns the token with the given ID, live or not.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *PersonalToken: Hydrated entity
		  - error: apperr.NotFound or retrieval failures
	*/
	FindByID(context context.Context, id string) (*PersonalToken, error)

	/*
		ListByUserID lists all non-revoked tokens of one user, newest first.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []PersonalToken: Token metadata (hashes included; callers map them away)
		  - error: Retrieval failures
	*/
	ListByUserID(context context.Context, userID string) ([]PersonalToken, error)

	/*
		CountLiveByUserID counts the user's live tokens, enforcing the
		per-user cap at mint time.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - int: Number of live tokens
		  - error: Retrieval failures
	*/
	CountLiveByUserID(context context.Context, userID string) (int, error)

	/*
		Rename updates the display name of the user's token.

		Parameters:
		  - context: context.Context
		  - id: string
		  - userID: string (ownership constraint)
		  - name: string

		Returns:
		  - bool: True when a live row was renamed
		  - error: Persistence failures
	*/
	Rename(context context.Context, id, userID, name string) (bool, error)

	/*
		Revoke marks the user's token revoked. Missing and already-revoked
		rows report false; revoking twice is not an error.

		Parameters:
		  - context: context.Context
		  - id: string
		  - userID: string (ownership constraint)

		Returns:
		  - bool: True when a live row transitioned
		  - error: Persistence failures
	*/
	Revoke(context context.Context, id, userID string) (bool, error)

	/*
		TouchLastUsed stamps the token's last successful verification. Best
		effort from the caller's point of view; failures must not break the
		request that authenticated.

		Parameters:
		  - context: context.Context
		  - id: string
		  - at: time.Time

		Returns:
		  - error: Persistence failures
	*/
	TouchLastUsed(context context.Context, id string, at time.Time) error
}
