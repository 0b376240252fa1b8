// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package authz holds the authorization vocabulary shared by the whole
platform: scopes, workspace roles, MFA levels, and the principal resolved
for each request.

# Scopes gate tokens, roles gate people

Interactive sessions act with the full power of the user's workspace role;
scopes exist to LIMIT delegated credentials (personal access tokens, OAuth
grants) to a subset of that power. [RequireScope] therefore passes session
principals through unconditionally and checks token principals against their
granted set. Role checks ([RequireRole]) apply to both.
*/
package authz

import "strings"

// Scope names one delegable permission.
type Scope string

const (
	// ScopeOpenID asks for an ID token in the OAuth code flow.
	ScopeOpenID Scope = "openid"
	// ScopeProfile grants read/write access to the caller's own profile.
	ScopeProfile Scope = "profile"
	// ScopeWorkspaceRead grants read access to workspace data.
	ScopeWorkspaceRead Scope = "workspace:read"
	// ScopeWorkspaceWrite grants write access to workspace records.
	ScopeWorkspaceWrite Scope = "workspace:write"
	// ScopeWorkspaceManage grants workspace administration (members, settings).
	ScopeWorkspaceManage Scope = "workspace:manage"
	// ScopeAdmin is the system-wide scope. Only workspace owners derive it;
	// a token holding it passes every scope check.
	ScopeAdmin Scope = "admin"
)

// catalog is the closed set of scopes this deployment understands, in
// display order.
var catalog = []Scope{
	ScopeOpenID,
	ScopeProfile,
	ScopeWorkspaceRead,
	ScopeWorkspaceWrite,
	ScopeWorkspaceManage,
	ScopeAdmin,
}

// KnownScopes returns the full scope catalog (copy, display order).
func KnownScopes() []Scope {
	out := make([]Scope, len(catalog))
	copy(out, catalog)
	return out
}

// IsKnown reports whether s is part of the catalog.
func (s Scope) IsKnown() bool {
	for _, known := range catalog {
		if s == known {
			return true
		}
	}
	return false
}

// SplitScopes splits a space-separated OAuth scope parameter into names.
// Empty input yields nil.
func SplitScopes(raw string) []string {
	return strings.Fields(raw)
}

// FilterKnown maps requested scope names onto the catalog, silently
// dropping unknown names and duplicates. Order of first appearance is kept.
// Unknown scopes are dropped rather than rejected so that old clients that
// ask for since-removed scopes keep working with what remains.
func FilterKnown(names []string) []Scope {
	seen := make(map[Scope]bool, len(names))
	var out []Scope

	for _, name := range names {
		s := Scope(name)
		if !s.IsKnown() || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}

	return out
}

// JoinScopes renders scopes as the space-separated OAuth wire form.
func JoinScopes(scopes []Scope) string {
	names := make([]string, len(scopes))
	for i, s := range scopes {
		names[i] = string(s)
	}
	return strings.Join(names, " ")
}

// ContainsScope reports literal membership (no admin widening).
func ContainsScope(scopes []Scope, want Scope) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

// IntersectScopes keeps the scopes of requested that are also in allowed,
// preserving requested order.
func IntersectScopes(requested, allowed []Scope) []Scope {
	var out []Scope
	for _, s := range requested {
		if ContainsScope(allowed, s) {
			out = append(out, s)
		}
	}
	return out
}
