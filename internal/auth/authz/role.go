// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package authz

// Role is a user's standing inside one workspace. Roles form a strict
// ladder: viewer < member < admin < owner. Every level includes everything
// below it.
type Role string

const (
	// RoleViewer can read workspace data and manage their own profile.
	RoleViewer Role = "viewer"
	// RoleMember can additionally create and edit workspace records.
	RoleMember Role = "member"
	// RoleAdmin can additionally manage members and workspace settings.
	// Workspace admin is NOT system admin; see [RoleOwner].
	RoleAdmin Role = "admin"
	// RoleOwner holds the workspace and is the only role that derives the
	// system-wide [ScopeAdmin].
	RoleOwner Role = "owner"
)

// level maps a role to its rung on the ladder. Unknown roles are 0, below
// every real role, so a corrupted value never passes an AtLeast check.
func (r Role) level() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleMember:
		return 2
	case RoleAdmin:
		return 3
	case RoleOwner:
		return 4
	default:
		return 0
	}
}

// IsValid reports whether r is one of the defined roles.
func (r Role) IsValid() bool {
	return r.level() > 0
}

// AtLeast reports whether r sits at or above min on the ladder.
func (r Role) AtLeast(min Role) bool {
	return r.level() > 0 && r.level() >= min.level()
}

// Scopes returns the delegable scopes a holder of r may grant to tokens.
// The sets are cumulative down the ladder.
func (r Role) Scopes() []Scope {
	switch r {
	case RoleViewer:
		return []Scope{ScopeProfile, ScopeWorkspaceRead}
	case RoleMember:
		return []Scope{ScopeProfile, ScopeWorkspaceRead, ScopeWorkspaceWrite}
	case RoleAdmin:
		return []Scope{ScopeProfile, ScopeWorkspaceRead, ScopeWorkspaceWrite, ScopeWorkspaceManage}
	case RoleOwner:
		return []Scope{ScopeProfile, ScopeWorkspaceRead, ScopeWorkspaceWrite, ScopeWorkspaceManage, ScopeAdmin}
	default:
		return nil
	}
}

// ScopeSet unions the scopes derived from a set of roles, deduplicated, in
// catalog order. Used to build the scope list of a session's auth context.
func ScopeSet(roles []Role) []Scope {
	have := make(map[Scope]bool)
	for _, role := range roles {
		for _, s := range role.Scopes() {
			have[s] = true
		}
	}

	var out []Scope
	for _, s := range catalog {
		if have[s] {
			out = append(out, s)
		}
	}
	return out
}
