// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package workspace

import (
	"context"
	"log/slog"

	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/platform/apperr"
	"github.com/superbasicman/superbasic/internal/platform/validate"
	"github.com/superbasicman/superbasic/pkg/slug"
	"github.com/superbasicman/superbasic/pkg/uuidv7"
)

// # Service Layer

// Service orchestrates business rules for workspaces and memberships.
//
// Scope middleware gates delegated tokens at the route level; the checks
// here are the authority for interactive sessions, which pass every scope
// check and are judged purely on their membership role.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a new workspace [Service].
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// # Inputs

// CreateInput carries the fields for a new workspace.
type CreateInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// UpdateInput carries a partial workspace update. An empty Name keeps the
// current name; a nil Description keeps the current description.
type UpdateInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// AddMemberInput names the user to seat and the role to grant.
type AddMemberInput struct {
	UserID string     `json:"user_id"`
	Role   authz.Role `json:"role"`
}

// # Workspace Management

/*
Create initialises a new workspace and seats the creator as owner.

Parameters:
  - context: context.Context
  - input: CreateInput
  - creatorID: string (The user creating the workspace)

Returns:
  - *Workspace: The created workspace
  - error: Validation or persistence failures
*/
func (service *Service) Create(context context.Context, input CreateInput, creatorID string) (*Workspace, error) {
	slugged := slug.From(input.Name)

	validator := &validate.Validator{}
	validator.Required(FieldName, input.Name).MaxLen(FieldName, input.Name, MaxNameLen)
	validator.Custom(FieldName, input.Name != "" && slugged == "", "Name must contain letters or digits")
	if input.Description != nil {
		validator.MaxLen(FieldDescription, *input.Description, MaxDescriptionLen)
	}
	if err := validator.Err(); err != nil {
		return nil, err
	}

	workspace := &Workspace{
		ID:          uuidv7.New(),
		Name:        input.Name,
		Slug:        slugged,
		Description: input.Description,
		CreatedBy:   creatorID,
	}

	if err := service.repo.CreateWithOwner(context, workspace, creatorID); err != nil {
		return nil, err
	}

	service.logger.Info("workspace_created",
		slog.String("workspace_id", workspace.ID),
		slog.String("creator_id", creatorID),
	)

	return workspace, nil
}

/*
Get retrieves a workspace by UUID or slug for one of its members.

Description: Non-members receive the same NotFound as a missing
workspace, so the identifier space cannot be probed.

Parameters:
  - context: context.Context
  - identifier: string (UUID or slug)
  - callerID: string

Returns:
  - *Workspace: Hydrated workspace
  - error: apperr.NotFound for missing workspaces and non-members alike
*/
func (service *Service) Get(context context.Context, identifier, callerID string) (*Workspace, error) {
	workspace, err := service.findByIdentifier(context, identifier)
	if err != nil {
		return nil, err
	}

	if _, err := service.membershipOf(context, workspace.ID, callerID); err != nil {
		return nil, err
	}

	return workspace, nil
}

/*
ListMine returns every workspace the caller belongs to with their role.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []*UserWorkspace: Oldest first
  - error: Retrieval failures
*/
func (service *Service) ListMine(context context.Context, userID string) ([]*UserWorkspace, error) {
	return service.repo.ListForUser(context, userID)
}

/*
Update modifies workspace metadata. Requires the member role or above;
the slug is fixed at creation so links never break.

Parameters:
  - context: context.Context
  - workspaceID: string
  - callerID: string
  - input: UpdateInput

Returns:
  - *Workspace: The updated workspace
  - error: Authority, validation or persistence failures
*/
func (service *Service) Update(context context.Context, workspaceID, callerID string, input UpdateInput) (*Workspace, error) {
	workspace, _, err := service.authorize(context, workspaceID, callerID, authz.RoleMember)
	if err != nil {
		return nil, err
	}

	validator := &validate.Validator{}
	if input.Name != "" {
		validator.MaxLen(FieldName, input.Name, MaxNameLen)
	}
	if input.Description != nil {
		validator.MaxLen(FieldDescription, *input.Description, MaxDescriptionLen)
	}
	if err := validator.Err(); err != nil {
		return nil, err
	}

	if input.Name != "" {
		workspace.Name = input.Name
	}
	if input.Description != nil {
		workspace.Description = input.Description
	}

	if err := service.repo.Update(context, workspace); err != nil {
		return nil, err
	}

	service.logger.Info("workspace_updated", slog.String("workspace_id", workspace.ID))

	return workspace, nil
}

/*
Delete soft-deletes a workspace. Owner only: workspace admins manage the
roster and settings, but retiring the tenant itself stays with whoever
holds it.

Parameters:
  - context: context.Context
  - workspaceID: string
  - callerID: string

Returns:
  - error: Authority or persistence failures
*/
func (service *Service) Delete(context context.Context, workspaceID, callerID string) error {
	workspace, _, err := service.authorize(context, workspaceID, callerID, authz.RoleOwner)
	if err != nil {
		return err
	}

	if err := service.repo.SoftDelete(context, workspace.ID); err != nil {
		return err
	}

	service.logger.Info("workspace_deleted",
		slog.String("workspace_id", workspace.ID),
		slog.String("deleted_by", callerID),
	)

	return nil
}

// # Membership Controls

/*
ListMembers returns a roster page for members of the workspace.

Parameters:
  - context: context.Context
  - workspaceID: string
  - callerID: string
  - limit, offset: int

Returns:
  - []*Membership: Roster slice
  - int: Total member count
  - error: Authority or retrieval failures
*/
func (service *Service) ListMembers(context context.Context, workspaceID, callerID string, limit, offset int) ([]*Membership, int, error) {
	if _, _, err := service.authorize(context, workspaceID, callerID, authz.RoleViewer); err != nil {
		return nil, 0, err
	}
	return service.repo.ListMembers(context, workspaceID, limit, offset)
}

/*
AddMember seats a new user in the workspace.

Description: The actor must hold admin or above and cannot grant a role
above their own, so an admin can seat viewers, members and other admins
but only an owner can seat an owner.

Parameters:
  - context: context.Context
  - workspaceID: string
  - actorID: string
  - input: AddMemberInput

Returns:
  - *Membership: The created affiliation
  - error: Authority, validation or persistence failures
*/
func (service *Service) AddMember(context context.Context, workspaceID, actorID string, input AddMemberInput) (*Membership, error) {
	_, actor, err := service.authorize(context, workspaceID, actorID, authz.RoleAdmin)
	if err != nil {
		return nil, err
	}

	validator := &validate.Validator{}
	validator.Required(FieldUserID, input.UserID)
	validator.Custom(FieldRole, !input.Role.IsValid(), "Invalid role")
	if err := validator.Err(); err != nil {
		return nil, err
	}

	if !actor.Role.AtLeast(input.Role) {
		return nil, apperr.Forbidden("Cannot grant a role above your own")
	}

	membership := &Membership{
		WorkspaceID: workspaceID,
		UserID:      input.UserID,
		Role:        input.Role,
	}
	if err := service.repo.AddMember(context, membership); err != nil {
		return nil, err
	}

	service.logger.Info("workspace_member_added",
		slog.String("workspace_id", workspaceID),
		slog.String("user_id", input.UserID),
		slog.String("role", string(input.Role)),
		slog.String("added_by", actorID),
	)

	return membership, nil
}

/*
ChangeRole moves a member to a new rung on the role ladder.

Description: The actor must hold admin or above, must outrank-or-match
both the target's current role and the new one, and the last owner can
never be demoted.

Parameters:
  - context: context.Context
  - workspaceID: string
  - actorID: string
  - targetUserID: string
  - role: authz.Role

Returns:
  - *Membership: The updated affiliation
  - error: Authority, validation or persistence failures
*/
func (service *Service) ChangeRole(context context.Context, workspaceID, actorID, targetUserID string, role authz.Role) (*Membership, error) {
	_, actor, err := service.authorize(context, workspaceID, actorID, authz.RoleAdmin)
	if err != nil {
		return nil, err
	}

	validator := &validate.Validator{}
	validator.Custom(FieldRole, !role.IsValid(), "Invalid role")
	if err := validator.Err(); err != nil {
		return nil, err
	}

	target, err := service.repo.FindMembership(context, workspaceID, targetUserID)
	if err != nil {
		return nil, err
	}

	if !actor.Role.AtLeast(target.Role) || !actor.Role.AtLeast(role) {
		return nil, apperr.Forbidden("Cannot grant a role above your own")
	}

	if target.Role == authz.RoleOwner && role != authz.RoleOwner {
		if err := service.requireAnotherOwner(context, workspaceID); err != nil {
			return nil, err
		}
	}

	if err := service.repo.UpdateMemberRole(context, workspaceID, targetUserID, role); err != nil {
		return nil, err
	}
	target.Role = role

	service.logger.Info("workspace_member_role_changed",
		slog.String("workspace_id", workspaceID),
		slog.String("user_id", targetUserID),
		slog.String("role", string(role)),
		slog.String("changed_by", actorID),
	)

	return target, nil
}

/*
RemoveMember unseats a user from the workspace.

Description: Any member may remove themselves (leave); removing someone
else takes admin or above and the actor must outrank-or-match the target.
The last owner can never be removed.

Parameters:
  - context: context.Context
  - workspaceID: string
  - actorID: string
  - targetUserID: string

Returns:
  - error: Authority or persistence failures
*/
func (service *Service) RemoveMember(context context.Context, workspaceID, actorID, targetUserID string) error {
	minRole := authz.RoleAdmin
	if actorID == targetUserID {
		minRole = authz.RoleViewer
	}

	_, actor, err := service.authorize(context, workspaceID, actorID, minRole)
	if err != nil {
		return err
	}

	target, err := service.repo.FindMembership(context, workspaceID, targetUserID)
	if err != nil {
		return err
	}

	if actorID != targetUserID && !actor.Role.AtLeast(target.Role) {
		return apperr.Forbidden("Cannot remove a member who outranks you")
	}

	if target.Role == authz.RoleOwner {
		if err := service.requireAnotherOwner(context, workspaceID); err != nil {
			return err
		}
	}

	if err := service.repo.RemoveMember(context, workspaceID, targetUserID); err != nil {
		return err
	}

	service.logger.Info("workspace_member_removed",
		slog.String("workspace_id", workspaceID),
		slog.String("user_id", targetUserID),
		slog.String("removed_by", actorID),
	)

	return nil
}

// # Authority Helpers

// findByIdentifier resolves a UUID or slug to a workspace.
// UUIDs have a fixed length of 36 characters in standard hyphenated format.
func (service *Service) findByIdentifier(context context.Context, identifier string) (*Workspace, error) {
	if len(identifier) == 36 {
		return service.repo.FindByID(context, identifier)
	}
	return service.repo.FindBySlug(context, identifier)
}

// authorize loads the workspace and the caller's membership, then checks
// the caller sits at or above min on the role ladder. Missing workspaces
// and non-memberships both answer NotFound so outsiders cannot tell which.
func (service *Service) authorize(context context.Context, workspaceID, callerID string, min authz.Role) (*Workspace, *Membership, error) {
	workspace, err := service.repo.FindByID(context, workspaceID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, nil, apperr.NotFound("Workspace")
		}
		return nil, nil, err
	}

	membership, err := service.membershipOf(context, workspace.ID, callerID)
	if err != nil {
		return nil, nil, err
	}

	if !membership.Role.AtLeast(min) {
		return nil, nil, apperr.Forbidden("Insufficient workspace role")
	}

	return workspace, membership, nil
}

// membershipOf loads the caller's membership, hiding the workspace from
// non-members behind the same NotFound a missing workspace produces.
func (service *Service) membershipOf(context context.Context, workspaceID, callerID string) (*Membership, error) {
	membership, err := service.repo.FindMembership(context, workspaceID, callerID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFound("Workspace")
		}
		return nil, err
	}
	return membership, nil
}

// requireAnotherOwner blocks demoting or removing the only owner.
func (service *Service) requireAnotherOwner(context context.Context, workspaceID string) error {
	owners, err := service.repo.CountWithRole(context, workspaceID, authz.RoleOwner)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return apperr.Conflict("A workspace must keep at least one owner")
	}
	return nil
}
