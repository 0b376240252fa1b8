// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package workspace

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/platform/dberr"
	"github.com/superbasicman/superbasic/internal/platform/postgres"
)

// PostgresRepository implements [Repository] using pgx.
//
// It also satisfies the auth resolver's MembershipDirectory through
// [PostgresRepository.RolesForUser].
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository constructs a PostgreSQL backed workspace store.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// # Workspace Retrieval

/*
FindByID retrieves a single workspace record by its primary key.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *Workspace: Hydrated entity
  - error: Database retrieval failures
*/
func (repository *PostgresRepository) FindByID(context context.Context, id string) (*Workspace, error) {
	const query = `
		SELECT id, name, slug, description, createdby, createdat, updatedat
		FROM core.workspace
		WHERE id = $1 AND deletedat IS NULL
	`
	workspace := &Workspace{}
	err := repository.db.QueryRow(context, query, id).Scan(
		&workspace.ID, &workspace.Name, &workspace.Slug, &workspace.Description,
		&workspace.CreatedBy, &workspace.CreatedAt, &workspace.UpdatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "get_workspace_by_id")
	}
	return workspace, nil
}

/*
FindBySlug retrieves a workspace by its unique URL slug.

Parameters:
  - context: context.Context
  - slug: string

Returns:
  - *Workspace: Hydrated entity
  - error: Database retrieval failures
*/
func (repository *PostgresRepository) FindBySlug(context context.Context, slug string) (*Workspace, error) {
	const query = `
		SELECT id, name, slug, description, createdby, createdat, updatedat
		FROM core.workspace
		WHERE slug = $1 AND deletedat IS NULL
	`
	workspace := &Workspace{}
	err := repository.db.QueryRow(context, query, slug).Scan(
		&workspace.ID, &workspace.Name, &workspace.Slug, &workspace.Description,
		&workspace.CreatedBy, &workspace.CreatedAt, &workspace.UpdatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "get_workspace_by_slug")
	}
	return workspace, nil
}

/*
ListForUser returns the workspaces a user is a member of, with the role
held in each, oldest workspace first.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []*UserWorkspace: Workspaces plus the caller's role
  - error: Database retrieval failures
*/
func (repository *PostgresRepository) ListForUser(context context.Context, userID string) ([]*UserWorkspace, error) {
	const query = `
		SELECT w.id, w.name, w.slug, w.description, w.createdby, w.createdat, w.updatedat, m.role
		FROM core.workspace w
		JOIN core.membership m ON m.workspaceid = w.id
		WHERE m.userid = $1 AND w.deletedat IS NULL
		ORDER BY w.createdat ASC
	`
	rows, err := repository.db.Query(context, query, userID)
	if err != nil {
		return nil, dberr.Wrap(err, "list_user_workspaces")
	}
	defer rows.Close()

	var workspaces []*UserWorkspace
	for rows.Next() {
		entry := &UserWorkspace{}
		err := rows.Scan(
			&entry.ID, &entry.Name, &entry.Slug, &entry.Description,
			&entry.CreatedBy, &entry.CreatedAt, &entry.UpdatedAt, &entry.Role,
		)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_user_workspace")
		}
		workspaces = append(workspaces, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "iterate_user_workspaces")
	}

	return workspaces, nil
}

// # Workspace Mutation

/*
CreateWithOwner inserts the workspace row and the creator's owner
membership inside one transaction.

Description: Rolls back completely if either insert fails, so a workspace
can never exist without an owner.

Parameters:
  - context: context.Context
  - workspace: *Workspace
  - ownerID: string

Returns:
  - error: Transactional or database failures
*/
func (repository *PostgresRepository) CreateWithOwner(context context.Context, workspace *Workspace, ownerID string) error {

	// Establish Transactional Boundary (carries the caller identity into
	// transaction-local GUCs for row-level security policies)
	transaction, err := postgres.BeginExec(context, repository.db)
	if err != nil {
		return dberr.Wrap(err, "begin_create_workspace_tx")
	}
	defer transaction.Rollback(context)

	// Step 1: Persist Workspace Row
	const workspaceQuery = `
		INSERT INTO core.workspace (id, name, slug, description, createdby, createdat, updatedat)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING createdat, updatedat
	`
	err = transaction.QueryRow(context, workspaceQuery,
		workspace.ID, workspace.Name, workspace.Slug, workspace.Description, workspace.CreatedBy,
	).Scan(&workspace.CreatedAt, &workspace.UpdatedAt)
	if err != nil {
		return dberr.Wrap(err, "create_workspace")
	}

	// Step 2: Seat the Owner
	const memberQuery = `
		INSERT INTO core.membership (workspaceid, userid, role, createdat, updatedat)
		VALUES ($1, $2, $3, NOW(), NOW())
	`
	_, err = transaction.Exec(context, memberQuery, workspace.ID, ownerID, authz.RoleOwner)
	if err != nil {
		return dberr.Wrap(err, "create_owner_membership")
	}

	// Persist Atomic Changeset
	return transaction.Commit(context)
}

/*
Update modifies workspace metadata fields.

Parameters:
  - context: context.Context
  - workspace: *Workspace

Returns:
  - error: Persistence failures
*/
func (repository *PostgresRepository) Update(context context.Context, workspace *Workspace) error {
	const query = `
		UPDATE core.workspace
		SET name = $2, description = $3, updatedat = NOW()
		WHERE id = $1 AND deletedat IS NULL
		RETURNING updatedat
	`
	err := repository.db.QueryRow(context, query, workspace.ID, workspace.Name, workspace.Description).Scan(&workspace.UpdatedAt)
	return dberr.Wrap(err, "update_workspace")
}

/*
SoftDelete flags a workspace as deleted.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresRepository) SoftDelete(context context.Context, id string) error {
	const query = `UPDATE core.workspace SET deletedat = NOW() WHERE id = $1`
	_, err := repository.db.Exec(context, query, id)
	return dberr.Wrap(err, "delete_workspace")
}

// # Membership Implementation

/*
ListMembers retrieves a page of affiliated users with account details.

Description: Uses COUNT(*) OVER() for total metadata so the roster and
its count come from one query.

Parameters:
  - context: context.Context
  - workspaceID: string
  - limit, offset: int

Returns:
  - []*Membership: Roster slice
  - int: Total member count
  - error: Retrieval failures
*/
func (repository *PostgresRepository) ListMembers(context context.Context, workspaceID string, limit, offset int) ([]*Membership, int, error) {
	const query = `
		SELECT m.workspaceid, m.userid, a.email, a.displayname, m.role, m.createdat, m.updatedat,
			COUNT(*) OVER() as total
		FROM core.membership m
		JOIN users.account a ON m.userid = a.id
		WHERE m.workspaceid = $1
		ORDER BY m.createdat ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := repository.db.Query(context, query, workspaceID, limit, offset)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_workspace_members")
	}
	defer rows.Close()

	var members []*Membership
	var total int
	for rows.Next() {
		member := &Membership{}
		err := rows.Scan(
			&member.WorkspaceID, &member.UserID, &member.Email, &member.DisplayName,
			&member.Role, &member.CreatedAt, &member.UpdatedAt, &total,
		)
		if err != nil {
			return nil, 0, dberr.Wrap(err, "scan_workspace_member")
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "iterate_workspace_members")
	}

	return members, total, nil
}

/*
FindMembership loads one membership row.

Parameters:
  - context: context.Context
  - workspaceID: string
  - userID: string

Returns:
  - *Membership: The affiliation
  - error: apperr.NotFound when absent
*/
func (repository *PostgresRepository) FindMembership(context context.Context, workspaceID, userID string) (*Membership, error) {
	const query = `
		SELECT workspaceid, userid, role, createdat, updatedat
		FROM core.membership
		WHERE workspaceid = $1 AND userid = $2
	`
	member := &Membership{}
	err := repository.db.QueryRow(context, query, workspaceID, userID).Scan(
		&member.WorkspaceID, &member.UserID, &member.Role, &member.CreatedAt, &member.UpdatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "find_membership")
	}
	return member, nil
}

/*
AddMember inserts a new membership record.

Parameters:
  - context: context.Context
  - membership: *Membership

Returns:
  - error: apperr.Conflict on a duplicate membership, persistence failures
*/
func (repository *PostgresRepository) AddMember(context context.Context, membership *Membership) error {
	const query = `
		INSERT INTO core.membership (workspaceid, userid, role, createdat, updatedat)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING createdat, updatedat
	`
	err := repository.db.QueryRow(context, query,
		membership.WorkspaceID, membership.UserID, membership.Role,
	).Scan(&membership.CreatedAt, &membership.UpdatedAt)
	return dberr.Wrap(err, "add_workspace_member")
}

/*
UpdateMemberRole modifies a user's role.

Parameters:
  - context: context.Context
  - workspaceID: string
  - userID: string
  - role: authz.Role

Returns:
  - error: apperr.NotFound when the membership is missing
*/
func (repository *PostgresRepository) UpdateMemberRole(context context.Context, workspaceID, userID string, role authz.Role) error {
	const query = `
		UPDATE core.membership SET role = $3, updatedat = NOW()
		WHERE workspaceid = $1 AND userid = $2
	`
	tag, err := repository.db.Exec(context, query, workspaceID, userID, role)
	if err != nil {
		return dberr.Wrap(err, "update_member_role")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

/*
RemoveMember hard-deletes a membership link.

Parameters:
  - context: context.Context
  - workspaceID: string
  - userID: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresRepository) RemoveMember(context context.Context, workspaceID, userID string) error {
	const query = `DELETE FROM core.membership WHERE workspaceid = $1 AND userid = $2`
	_, err := repository.db.Exec(context, query, workspaceID, userID)
	return dberr.Wrap(err, "remove_workspace_member")
}

/*
CountWithRole counts members holding exactly the given role.

Parameters:
  - context: context.Context
  - workspaceID: string
  - role: authz.Role

Returns:
  - int: Member count
  - error: Retrieval failures
*/
func (repository *PostgresRepository) CountWithRole(context context.Context, workspaceID string, role authz.Role) (int, error) {
	const query = `SELECT COUNT(*) FROM core.membership WHERE workspaceid = $1 AND role = $2`
	var count int
	if err := repository.db.QueryRow(context, query, workspaceID, role).Scan(&count); err != nil {
		return 0, dberr.Wrap(err, "count_members_with_role")
	}
	return count, nil
}

// # Resolver Directory

/*
RolesForUser reports the user's roles inside one live workspace.

Description: Joins the workspace row so memberships of soft-deleted
workspaces stop resolving. No membership yields an empty slice, not an
error; the auth resolver fails closed on errors and a missing membership
must not look like an outage.

Parameters:
  - context: context.Context
  - workspaceID: string
  - userID: string

Returns:
  - []authz.Role: Zero or one roles
  - error: Storage failures only
*/
func (repository *PostgresRepository) RolesForUser(context context.Context, workspaceID, userID string) ([]authz.Role, error) {
	const query = `
		SELECT m.role
		FROM core.membership m
		JOIN core.workspace w ON w.id = m.workspaceid
		WHERE m.workspaceid = $1 AND m.userid = $2 AND w.deletedat IS NULL
	`
	rows, err := repository.db.Query(context, query, workspaceID, userID)
	if err != nil {
		return nil, dberr.Wrap(err, "roles_for_user")
	}
	defer rows.Close()

	roles := []authz.Role{}
	for rows.Next() {
		var role authz.Role
		if err := rows.Scan(&role); err != nil {
			return nil, dberr.Wrap(err, "scan_member_role")
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "iterate_member_roles")
	}

	return roles, nil
}
