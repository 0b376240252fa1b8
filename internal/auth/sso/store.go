// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package sso

import (
	"context"
	"time"
)

// # Identity Link Data Access

// LinkRepository defines the persistence contract for identity links.
type LinkRepository interface {

	/*
		EnsureLink records that userID owns the external identity, creating
		the row when absent. Calling it again with the same triple is a
		no-op, so federated logins can assert the link on every session.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - provider: string
		  - subject: string

		Returns:
		  - error: Persistence failures
	*/
	EnsureLink(context context.Context, userID, provider, subject string) error

	/*
		FindByProviderSubject returns every link matching the pair, oldest
		first. A missing pair returns an empty slice, not an error.

		Parameters:
		  - context: context.Context
		  - provider: string
		  - subject: string

		Returns:
		  - []IdentityLink: Matching links
		  - error: Retrieval failures
	*/
	FindByProviderSubject(context context.Context, provider, subject string) ([]IdentityLink, error)
}

// # Replay Protection

// ReplayGuard remembers logout event ids so a redelivered webhook is
// processed at most once.
type ReplayGuard interface {

	/*
		Register claims the event id.

		Parameters:
		  - context: context.Context
		  - eventID: string
		  - ttl: time.Duration (how long the claim is remembered)

		Returns:
		  - bool: true when this call claimed the id, false when it was
		    already claimed
		  - error: Storage failures
	*/
	Register(context context.Context, eventID string, ttl time.Duration) (bool, error)
}
