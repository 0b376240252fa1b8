// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package sso implements IdP-initiated back-channel logout.

When an upstream identity provider terminates a user upstream, it delivers a
signed webhook naming the (provider, subject) pair that logged out. This
package resolves that pair to local users through the identity-link table,
computes the full set of sessions to revoke, and revokes them. Revocation
failures here are surfaced, never swallowed: a logout the IdP believes
happened must not leave live credentials behind.

# Architecture

The planning step is a pure function ([PlanLogout]) so the revocation set is
testable without any store. The [Service] wraps it with the I/O: link lookup,
active-session loading, replay protection, and the actual revoke calls.
*/
package sso

import (
	"time"

	"github.com/superbasicman/superbasic/internal/auth/session"
)

// # Domain Entities

// IdentityLink ties a local user to one external identity. A user may carry
// several links (one per provider); a provider subject normally maps to a
// single user.
type IdentityLink struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Provider        string    `json:"provider"`
	ProviderSubject string    `json:"provider_subject"`
	CreatedAt       time.Time `json:"created_at"`
}

// # Logout Planning

// PlanInput describes one back-channel logout event.
type PlanInput struct {
	// Provider and ProviderSubject identify who logged out at the IdP.
	Provider        string
	ProviderSubject string

	// ExplicitSessionIDs are session ids the IdP names directly. They are
	// trusted verbatim and enter the plan even when no matching active
	// session is known locally; the IdP may know a session is logically
	// gone before our store does.
	ExplicitSessionIDs []string

	// At is the planning instant used for session liveness. The zero value
	// precedes every expiry, so a zero At filters on revocation only.
	At time.Time
}

// Plan is the revocation set computed for one logout event.
type Plan struct {
	// UserIDs whose identity matched the event, in first-appearance order.
	UserIDs []string
	// SessionIDs to revoke: every active session of the matched users,
	// then the explicitly named ids. Deduplicated, order preserved.
	SessionIDs []string
}

/*
PlanLogout computes the sessions to revoke for one IdP logout event.

Description: Pure function, no I/O. Matches links on (provider, subject)
equality, collects the owning users, selects their sessions that are still
active at input.At, and unions the explicitly supplied session ids. An
unknown subject with no explicit ids yields an empty plan, which makes
logout idempotent across repeated deliveries.

Parameters:
  - input: PlanInput
  - links: []IdentityLink (candidate identity links; non-matching rows are ignored)
  - sessions: []session.Session (candidate sessions; foreign or inactive rows are ignored)

Returns:
  - Plan: Deterministic revocation set with no duplicates
*/
func PlanLogout(input PlanInput, links []IdentityLink, sessions []session.Session) Plan {
	plan := Plan{}

	affected := make(map[string]bool, len(links))
	for _, link := range links {
		if link.Provider != input.Provider || link.ProviderSubject != input.ProviderSubject {
			continue
		}
		if affected[link.UserID] {
			continue
		}
		affected[link.UserID] = true
		plan.UserIDs = append(plan.UserIDs, link.UserID)
	}

	seen := make(map[string]bool, len(sessions)+len(input.ExplicitSessionIDs))
	for index := range sessions {
		candidate := &sessions[index]
		if !affected[candidate.UserID] || seen[candidate.ID] {
			continue
		}
		if !candidate.IsActive(input.At) {
			continue
		}
		seen[candidate.ID] = true
		plan.SessionIDs = append(plan.SessionIDs, candidate.ID)
	}

	// Explicit ids are appended last so locally-known sessions keep their
	// input order.
	for _, id := range input.ExplicitSessionIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		plan.SessionIDs = append(plan.SessionIDs, id)
	}

	return plan
}

// IsEmpty reports whether the plan revokes nothing.
func (p Plan) IsEmpty() bool {
	return len(p.UserIDs) == 0 && len(p.SessionIDs) == 0
}
