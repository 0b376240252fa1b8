// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package workspace

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/platform/middleware"
	requestutil "github.com/superbasicman/superbasic/internal/platform/request"
	"github.com/superbasicman/superbasic/internal/platform/respond"
	"github.com/superbasicman/superbasic/pkg/pagination"
)

// # Handler Implementation

// Handler implements the HTTP layer for workspace operations.
//
// Scope guards on the routes bound delegated tokens; interactive sessions
// pass them and are judged by the [Service] on their membership role.
// Destructive operations additionally demand recent authentication.
type Handler struct {
	service *Service
}

// NewHandler constructs a new workspace [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns a [chi.Router] with workspace and membership endpoints.
// Mounted behind the platform Authenticate middleware.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	// ## Tenancy
	router.With(middleware.RequireScope(authz.ScopeWorkspaceWrite)).Post("/", handler.createWorkspace)
	router.With(middleware.RequireScope(authz.ScopeWorkspaceRead)).Get("/", handler.listWorkspaces)

	router.Route("/{id}", func(detail chi.Router) {
		detail.With(middleware.RequireScope(authz.ScopeWorkspaceRead)).Get("/", handler.getWorkspace)
		detail.With(middleware.RequireScope(authz.ScopeWorkspaceWrite)).Patch("/", handler.updateWorkspace)
		detail.With(
			middleware.RequireScope(authz.ScopeWorkspaceManage),
			middleware.RequireRecentAuth(authz.DefaultStepUpWindow, authz.MFALevelNone),
		).Delete("/", handler.deleteWorkspace)

		// ## Roster
		detail.Route("/members", func(members chi.Router) {
			members.With(middleware.RequireScope(authz.ScopeWorkspaceRead)).Get("/", handler.listMembers)
			members.With(middleware.RequireScope(authz.ScopeWorkspaceManage)).Post("/", handler.addMember)
			members.With(middleware.RequireScope(authz.ScopeWorkspaceManage)).Patch("/{userID}", handler.changeMemberRole)
			members.With(middleware.RequireScope(authz.ScopeWorkspaceManage)).Delete("/{userID}", handler.removeMember)
		})
	})

	return router
}

// # Workspace Endpoints

/*
POST /v1/workspaces.

Description: Creates a workspace and seats the caller as its owner.

Request (Body):
  - { "name": "string", "description": "string?" }

Response:
  - 201: Workspace: Created tenant
  - 400: ErrInvalidJSON/Validation: Invalid input data
  - 409: ErrConflict: Slug already taken
*/
func (handler *Handler) createWorkspace(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input CreateInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	workspace, err := handler.service.Create(request.Context(), input, userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, workspace)
}

/*
GET /v1/workspaces.

Description: Lists every workspace the caller belongs to, with the role
held in each.

Response:
  - 200: []UserWorkspace: Oldest first
*/
func (handler *Handler) listWorkspaces(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	workspaces, err := handler.service.ListMine(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, workspaces)
}

/*
GET /v1/workspaces/{id}.

Description: Fetches one workspace by UUID or slug. Non-members get the
same 404 as a missing workspace.

Response:
  - 200: Workspace
  - 404: ErrNotFound: Missing, deleted, or not a member
*/
func (handler *Handler) getWorkspace(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	workspace, err := handler.service.Get(request.Context(), requestutil.ID(request, "id"), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, workspace)
}

/*
PATCH /v1/workspaces/{id}.

Description: Updates name and description. Member role or above. The
slug never changes.

Request (Body):
  - { "name": "string?", "description": "string?" }

Response:
  - 200: Workspace: Updated entity
  - 403: ErrForbidden: Viewer role
  - 404: ErrNotFound: Missing or not a member
*/
func (handler *Handler) updateWorkspace(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input UpdateInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	workspace, err := handler.service.Update(request.Context(), requestutil.ID(request, "id"), userID, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, workspace)
}

/*
DELETE /v1/workspaces/{id}.

Description: Soft-deletes the workspace. Owner only, behind a step-up
check: a stolen long-idle session cannot retire a tenant.

Response:
  - 204: No Content
  - 401: ErrStepUpRequired: Authentication too old
  - 403: ErrForbidden: Not the owner
*/
func (handler *Handler) deleteWorkspace(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Delete(request.Context(), requestutil.ID(request, "id"), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Membership Endpoints

/*
GET /v1/workspaces/{id}/members.

Description: Lists the roster with account details. Any member may look.

Request:
  - page, limit: int (query)

Response:
  - 200: []Membership: Paginated roster
  - 404: ErrNotFound: Missing or not a member
*/
func (handler *Handler) listMembers(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)
	members, total, err := handler.service.ListMembers(
		request.Context(), requestutil.ID(request, "id"), userID, params.Limit, params.Offset(),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, members, pagination.NewMeta(params.Page, params.Limit, total))
}

/*
POST /v1/workspaces/{id}/members.

Description: Seats a user in the workspace. Admin or above; the granted
role cannot exceed the actor's own.

Request (Body):
  - { "user_id": "string", "role": "viewer|member|admin|owner" }

Response:
  - 201: Membership: Created affiliation
  - 403: ErrForbidden: Insufficient role or grant above own rank
  - 409: ErrConflict: Already a member
*/
func (handler *Handler) addMember(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input AddMemberInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	membership, err := handler.service.AddMember(request.Context(), requestutil.ID(request, "id"), userID, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, membership)
}

/*
PATCH /v1/workspaces/{id}/members/{userID}.

Description: Moves a member to a new role. Admin or above; the actor must
outrank-or-match both the current and the new role; the last owner cannot
be demoted.

Request (Body):
  - { "role": "viewer|member|admin|owner" }

Response:
  - 200: Membership: Updated affiliation
  - 403: ErrForbidden: Rank rules violated
  - 409: ErrConflict: Would leave the workspace ownerless
*/
func (handler *Handler) changeMemberRole(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input struct {
		Role authz.Role `json:"role"`
	}
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	membership, err := handler.service.ChangeRole(
		request.Context(),
		requestutil.ID(request, "id"),
		userID,
		requestutil.ID(request, "userID"),
		input.Role,
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, membership)
}

/*
DELETE /v1/workspaces/{id}/members/{userID}.

Description: Unseats a member. Admins remove members they outrank-or-match;
anyone may remove themselves; the last owner stays.

Response:
  - 204: No Content
  - 403: ErrForbidden: Target outranks the actor
  - 409: ErrConflict: Would leave the workspace ownerless
*/
func (handler *Handler) removeMember(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.service.RemoveMember(
		request.Context(),
		requestutil.ID(request, "id"),
		userID,
		requestutil.ID(request, "userID"),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
