// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package oauth

import (
	"context"
	"time"
)

// # Storage Contracts

// ClientRepository resolves registered OAuth clients. Registration itself
// happens out of band (migration seeds, admin tooling); the flow only reads.
type ClientRepository interface {

	/*
		FindByID retrieves one client by its public client_id.

		Parameters:
		  - context: context.Context
		  - clientID: string

		Returns:
		  - *Client: The registered client
		  - error: apperr.NotFound when unknown, storage failures otherwise
	*/
	FindByID(context context.Context, clientID string) (*Client, error)
}

// CodeRepository persists authorization codes for the window between
// authorize and token.
type CodeRepository interface {

	/*
		Create persists a freshly minted code.

		Parameters:
		  - context: context.Context
		  - code: *AuthorizationCode

		Returns:
		  - error: Storage failures
	*/
	Create(context context.Context, code *AuthorizationCode) error

	/*
		FindByID retrieves a code by id, consumed rows included. Liveness
		decisions belong to the service.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *AuthorizationCode: The stored code
		  - error: apperr.NotFound when absent, storage failures otherwise
	*/
	FindByID(context context.Context, id string) (*AuthorizationCode, error)

	/*
		Consume atomically marks a code consumed. Exactly one caller can
		win: the update matches only rows whose consumedat is still NULL,
		so a concurrent or replayed exchange observes consumed=false.

		Parameters:
		  - context: context.Context
		  - id: string
		  - at: time.Time (stamped as consumedat)

		Returns:
		  - bool: true when this call performed the consumption
		  - error: Storage failures
	*/
	Consume(context context.Context, id string, at time.Time) (bool, error)
}

// PendingRepository parks authorize requests while the user logs in. The
// backing store must expire entries on its own (Redis TTL).
type PendingRepository interface {

	/*
		Put stores a pending authorization under an opaque id.

		Parameters:
		  - context: context.Context
		  - id: string
		  - pending: *PendingAuthorization
		  - ttl: time.Duration

		Returns:
		  - error: Storage failures
	*/
	Put(context context.Context, id string, pending *PendingAuthorization, ttl time.Duration) error

	/*
		Take retrieves and deletes a pending authorization. Each stash can
		be resumed at most once.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *PendingAuthorization: The stashed request
		  - error: apperr.NotFound when absent or expired, storage failures otherwise
	*/
	Take(context context.Context, id string) (*PendingAuthorization, error)
}
