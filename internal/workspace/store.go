// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package workspace

import (
	"context"

	"github.com/superbasicman/superbasic/internal/auth/authz"
)

// # Workspace Data Access

// Repository defines the data access contract for workspaces and memberships.
type Repository interface {

	/*
		CreateWithOwner persists a new workspace and its owner membership in
		one transaction. A workspace without an owner must never exist, not
		even for the gap between two inserts.

		Parameters:
		  - context: context.Context
		  - workspace: *Workspace (ID and Slug already assigned)
		  - ownerID: string (UUID of the creating user)

		Returns:
		  - error: apperr.Conflict when the slug is taken, persistence failures
	*/
	CreateWithOwner(context context.Context, workspace *Workspace, ownerID string) error

	/*
		FindByID retrieves a workspace by its UUID.

		Parameters:
		  - context: context.Context
		  - id: string (UUIDv7)

		Returns:
		  - *Workspace: Hydrated entity
		  - error: ErrNotFound if missing or deleted
	*/
	FindByID(context context.Context, id string) (*Workspace, error)

	/*
		FindBySlug retrieves a workspace by its human-readable identifier.

		Parameters:
		  - context: context.Context
		  - slug: string

		Returns:
		  - *Workspace: Hydrated entity
		  - error: ErrNotFound if missing or deleted
	*/
	FindBySlug(context context.Context, slug string) (*Workspace, error)

	/*
		ListForUser returns every live workspace the user belongs to, with
		the user's role in each, oldest first.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []*UserWorkspace: Workspaces plus the caller's role
		  - error: Retrieval failures
	*/
	ListForUser(context context.Context, userID string) ([]*UserWorkspace, error)

	/*
		Update modifies a workspace's name and description.

		Parameters:
		  - context: context.Context
		  - workspace: *Workspace

		Returns:
		  - error: ErrNotFound if the row is missing or deleted
	*/
	Update(context context.Context, workspace *Workspace) error

	/*
		SoftDelete marks a workspace as deleted. Memberships stay in place
		but stop resolving through RolesForUser.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - error: Persistence failures
	*/
	SoftDelete(context context.Context, id string) error

	// # Membership Management

	/*
		ListMembers returns a page of the workspace roster with account
		details joined in, plus the total member count.

		Parameters:
		  - context: context.Context
		  - workspaceID: string
		  - limit, offset: int

		Returns:
		  - []*Membership: Roster slice, oldest membership first
		  - int: Total member count
		  - error: Retrieval failures
	*/
	ListMembers(context context.Context, workspaceID string, limit, offset int) ([]*Membership, int, error)

	/*
		FindMembership loads one user's membership row.

		Parameters:
		  - context: context.Context
		  - workspaceID: string
		  - userID: string

		Returns:
		  - *Membership: The affiliation
		  - error: apperr.NotFound when the user is not a member
	*/
	FindMembership(context context.Context, workspaceID, userID string) (*Membership, error)

	/*
		AddMember links a user to a workspace with a role.

		Parameters:
		  - context: context.Context
		  - membership: *Membership

		Returns:
		  - error: apperr.Conflict when already a member, persistence failures
	*/
	AddMember(context context.Context, membership *Membership) error

	/*
		UpdateMemberRole changes a user's role within a workspace.

		Parameters:
		  - context: context.Context
		  - workspaceID, userID: string
		  - role: authz.Role

		Returns:
		  - error: apperr.NotFound when the membership is missing
	*/
	UpdateMemberRole(context context.Context, workspaceID, userID string, role authz.Role) error

	/*
		RemoveMember terminates a user's affiliation with a workspace.

		Parameters:
		  - context: context.Context
		  - workspaceID, userID: string

		Returns:
		  - error: Persistence failures
	*/
	RemoveMember(context context.Context, workspaceID, userID string) error

	/*
		CountWithRole counts members holding exactly the given role. Used
		for the last-owner protection.

		Parameters:
		  - context: context.Context
		  - workspaceID: string
		  - role: authz.Role

		Returns:
		  - int: Member count
		  - error: Retrieval failures
	*/
	CountWithRole(context context.Context, workspaceID string, role authz.Role) (int, error)

	/*
		RolesForUser reports the user's roles inside one live workspace.
		An empty slice means no membership; it is never an error, because
		the auth resolver fails closed on errors and open membership
		lookups must not take authentication down with them.

		Parameters:
		  - context: context.Context
		  - workspaceID, userID: string

		Returns:
		  - []authz.Role: Zero or one roles
		  - error: Storage failures only
	*/
	RolesForUser(context context.Context, workspaceID, userID string) ([]authz.Role, error)
}
