// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

package workspace_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superbasicman/superbasic/internal/auth/authz"
	"github.com/superbasicman/superbasic/internal/platform/apperr"
	"github.com/superbasicman/superbasic/internal/workspace"
)

// # In-Memory Store

// fakeRepository keeps workspaces and memberships in insertion order so
// the "oldest first" contracts stay observable.
type fakeRepository struct {
	workspaces     map[string]*workspace.Workspace
	workspaceOrder []string
	memberships    map[string]*workspace.Membership
	memberOrder    []string
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		workspaces:  map[string]*workspace.Workspace{},
		memberships: map[string]*workspace.Membership{},
	}
}

func membershipKey(workspaceID, userID string) string {
	return workspaceID + "/" + userID
}

func (f *fakeRepository) CreateWithOwner(_ context.Context, ws *workspace.Workspace, ownerID string) error {
	for _, existing := range f.workspaces {
		if existing.Slug == ws.Slug && existing.DeletedAt == nil {
			return apperr.Conflict("Resource already exists")
		}
	}

	now := time.Now()
	ws.CreatedAt = now
	ws.UpdatedAt = now

	clone := *ws
	f.workspaces[ws.ID] = &clone
	f.workspaceOrder = append(f.workspaceOrder, ws.ID)

	key := membershipKey(ws.ID, ownerID)
	f.memberships[key] = &workspace.Membership{
		WorkspaceID: ws.ID,
		UserID:      ownerID,
		Role:        authz.RoleOwner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.memberOrder = append(f.memberOrder, key)
	return nil
}

func (f *fakeRepository) FindByID(_ context.Context, id string) (*workspace.Workspace, error) {
	stored, ok := f.workspaces[id]
	if !ok || stored.DeletedAt != nil {
		return nil, apperr.NotFound("Workspace")
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeRepository) FindBySlug(_ context.Context, slug string) (*workspace.Workspace, error) {
	for _, stored := range f.workspaces {
		if stored.Slug == slug && stored.DeletedAt == nil {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Workspace")
}

func (f *fakeRepository) ListForUser(_ context.Context, userID string) ([]*workspace.UserWorkspace, error) {
	var out []*workspace.UserWorkspace
	for _, id := range f.workspaceOrder {
		stored := f.workspaces[id]
		if stored.DeletedAt != nil {
			continue
		}
		membership, ok := f.memberships[membershipKey(id, userID)]
		if !ok {
			continue
		}
		out = append(out, &workspace.UserWorkspace{Workspace: *stored, Role: membership.Role})
	}
	return out, nil
}

func (f *fakeRepository) Update(_ context.Context, ws *workspace.Workspace) error {
	stored, ok := f.workspaces[ws.ID]
	if !ok || stored.DeletedAt != nil {
		return apperr.NotFound("Workspace")
	}
	stored.Name = ws.Name
	stored.Description = ws.Description
	stored.UpdatedAt = time.Now()
	return nil
}

func (f *fakeRepository) SoftDelete(_ context.Context, id string) error {
	if stored, ok := f.workspaces[id]; ok && stored.DeletedAt == nil {
		now := time.Now()
		stored.DeletedAt = &now
	}
	return nil
}

func (f *fakeRepository) ListMembers(_ context.Context, workspaceID string, limit, offset int) ([]*workspace.Membership, int, error) {
	var all []*workspace.Membership
	for _, key := range f.memberOrder {
		stored, ok := f.memberships[key]
		if !ok || stored.WorkspaceID != workspaceID {
			continue
		}
		clone := *stored
		all = append(all, &clone)
	}

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeRepository) FindMembership(_ context.Context, workspaceID, userID string) (*workspace.Membership, error) {
	stored, ok := f.memberships[membershipKey(workspaceID, userID)]
	if !ok {
		return nil, apperr.NotFound("Membership")
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeRepository) AddMember(_ context.Context, membership *workspace.Membership) error {
	key := membershipKey(membership.WorkspaceID, membership.UserID)
	if _, exists := f.memberships[key]; exists {
		return apperr.Conflict("Resource already exists")
	}

	now := time.Now()
	membership.CreatedAt = now
	membership.UpdatedAt = now

	clone := *membership
	f.memberships[key] = &clone
	f.memberOrder = append(f.memberOrder, key)
	return nil
}

func (f *fakeRepository) UpdateMemberRole(_ context.Context, workspaceID, userID string, role authz.Role) error {
	stored, ok := f.memberships[membershipKey(workspaceID, userID)]
	if !ok {
		return apperr.NotFound("Membership")
	}
	stored.Role = role
	stored.UpdatedAt = time.Now()
	return nil
}

func (f *fakeRepository) RemoveMember(_ context.Context, workspaceID, userID string) error {
	delete(f.memberships, membershipKey(workspaceID, userID))
	return nil
}

func (f *fakeRepository) CountWithRole(_ context.Context, workspaceID string, role authz.Role) (int, error) {
	count := 0
	for _, stored := range f.memberships {
		if stored.WorkspaceID == workspaceID && stored.Role == role {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepository) RolesForUser(_ context.Context, workspaceID, userID string) ([]authz.Role, error) {
	ws, ok := f.workspaces[workspaceID]
	if !ok || ws.DeletedAt != nil {
		return []authz.Role{}, nil
	}
	stored, ok := f.memberships[membershipKey(workspaceID, userID)]
	if !ok {
		return []authz.Role{}, nil
	}
	return []authz.Role{stored.Role}, nil
}

// # Harness

type harness struct {
	repo    *fakeRepository
	service *workspace.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	repo := newFakeRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &harness{
		repo:    repo,
		service: workspace.NewService(repo, logger),
	}
}

// seedWorkspace creates a workspace through the service so the creator
// lands as owner exactly as production would seat them.
func (h *harness) seedWorkspace(t *testing.T, name, ownerID string) *workspace.Workspace {
	t.Helper()

	ws, err := h.service.Create(context.Background(), workspace.CreateInput{Name: name}, ownerID)
	require.NoError(t, err)
	return ws
}

// seedMember seats a user through the owner's authority.
func (h *harness) seedMember(t *testing.T, workspaceID, ownerID, userID string, role authz.Role) {
	t.Helper()

	_, err := h.service.AddMember(context.Background(), workspaceID, ownerID, workspace.AddMemberInput{
		UserID: userID,
		Role:   role,
	})
	require.NoError(t, err)
}

// # Creation

func TestCreate_SeatsCreatorAsOwner(t *testing.T) {
	h := newHarness(t)

	ws, err := h.service.Create(context.Background(), workspace.CreateInput{Name: "Acme Marketing"}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, "acme-marketing", ws.Slug)
	assert.Equal(t, "user-1", ws.CreatedBy)

	membership, err := h.repo.FindMembership(context.Background(), ws.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleOwner, membership.Role)
}

func TestCreate_ValidatesName(t *testing.T) {
	h := newHarness(t)

	cases := map[string]string{
		"empty":           "",
		"too long":        longName(workspace.MaxNameLen + 1),
		"no alphanumeric": "!!!",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.service.Create(context.Background(), workspace.CreateInput{Name: input}, "user-1")
			require.Error(t, err)
			appError := apperr.As(err)
			require.NotNil(t, appError)
			assert.Equal(t, "VALIDATION_ERROR", appError.Code)
		})
	}
}

func TestCreate_DuplicateSlugConflicts(t *testing.T) {
	h := newHarness(t)
	h.seedWorkspace(t, "Acme", "user-1")

	_, err := h.service.Create(context.Background(), workspace.CreateInput{Name: "Acme"}, "user-2")
	require.Error(t, err)
	assert.Equal(t, 409, apperr.As(err).HTTPStatus)
}

// # Retrieval

func TestGet_BySlugAndByID(t *testing.T) {
	h := newHarness(t)
	ws := h.seedWorkspace(t, "Acme Marketing", "user-1")

	byID, err := h.service.Get(context.Background(), ws.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, ws.ID, byID.ID)

	bySlug, err := h.service.Get(context.Background(), "acme-marketing", "user-1")
	require.NoError(t, err)
	assert.Equal(t, ws.ID, bySlug.ID)
}

func TestGet_HidesWorkspaceFromOutsiders(t *testing.T) {
	h := newHarness(t)
	ws := h.seedWorkspace(t, "Acme", "user-1")

	// An outsider probing a real id gets the exact same answer as a probe
	// of a nonexistent one.
	_, err := h.service.Get(context.Background(), ws.ID, "stranger")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))

	_, missingErr := h.service.Get(context.Background(), "0191d3a0-7b06-7c4d-b7e4-999999999999", "stranger")
	require.Error(t, missingErr)
	assert.Equal(t, apperr.As(missingErr).Message, apperr.As(err).Message)
}

func TestListMine_ReportsRolePerWorkspace(t *testing.T) {
	h := newHarness(t)
	first := h.seedWorkspace(t, "First", "user-1")
	second := h.seedWorkspace(t, "Second", "user-2")
	h.seedMember(t, second.ID, "user-2", "user-1", authz.RoleViewer)

	mine, err := h.service.ListMine(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)

	assert.Equal(t, first.ID, mine[0].ID)
	assert.Equal(t, authz.RoleOwner, mine[0].Role)
	assert.Equal(t, second.ID, mine[1].ID)
	assert.Equal(t, authz.RoleViewer, mine[1].Role)
}

// # Mutation

func TestUpdate_RequiresMemberRole(t *testing.T) {
	h := newHarness(t)
	ws := h.seedWorkspace(t, "Acme", "user-1")
	h.seedMember(t, ws.ID, "user-1", "viewer-1", authz.RoleViewer)
	h.seedMember(t, ws.ID, "user-1", "member-1", authz.RoleMember)

	_, err := h.service.Update(context.Background(), ws.ID, "viewer-1", workspace.UpdateInput{Name: "Blocked"})
	require.Error(t, err)
	assert.Equal(t, 403, apperr.As(err).HTTPStatus)

	description := "The marketing tenant"
	updated, err := h.service.Update(context.Background(), ws.ID, "member-1", workspace.UpdateInput{Description: &description})
	require.NoError(t, err)
	assert.Equal(t, "Acme", updated.Name, "omitted name keeps its value")
	require.NotNil(t, updated.Description)
	assert.Equal(t, description, *updated.Description)
	assert.Equal(t, ws.Slug, updated.Slug, "slug is fixed at creation")
}

func TestDelete_OwnerOnlyAndStopsResolving(t *testing.T) {
	h := newHarness(t)
	ws := h.seedWorkspace(t, "Acme", "user-1")
	h.seedMember(t, ws.ID, "user-1", "admin-1", authz.RoleAdmin)

	err := h.service.Delete(context.Background(), ws.ID, "admin-1")
	require.Error(t, err)
	assert.Equal(t, 403, apperr.As(err).HTTPStatus)

	require.NoError(t, h.service.Delete(context.Background(), ws.ID, "user-1"))

	_, err = h.service.Get(context.Background(), ws.ID, "user-1")
	assert.True(t, apperr.IsNotFound(err))

	// Memberships of a deleted workspace stop producing roles, so stale
	// X-Workspace-Id headers cannot resurrect authority.
	roles, err := h.repo.RolesForUser(context.Background(), ws.ID, "user-1")
	require.NoError(t, err)
	assert.Empty(t, roles)
}

// # Membership

func TestAddMember_GrantRules(t *testing.T) {
	h := newHarness(t)
	ws := h.seedWorkspace(t, "Acme", "user-1")
	h.seedMember(t, ws.ID, "user-1", "admin-1", authz.RoleAdmin)
	h.seedMember(t, ws.ID, "user-1", "member-1", authz.RoleMember)

	// Admins seat anyone up to their own rank.
	_, err := h.service.AddMember(context.Background(), ws.ID, "admin-1", workspace.AddMemberInput{
		UserID: "new-member", Role: authz.RoleMember,
	})
	require.NoError(t, err)

	// But never above it.
	_, err = h.service.AddMember(context.Background(), ws.ID, "admin-1", workspace.AddMemberInput{
		UserID: "new-owner", Role: authz.RoleOwner,
	})
	require.Error(t, err)
	assert.Equal(t, 403, apperr.As(err).HTTPStatus)

	// Plain members hold no seating authority at all.
	_, err = h.service.AddMember(context.Background(), ws.ID, "member-1", workspace.AddMemberInput{
		UserID: "another", Role: authz.RoleViewer,
	})
	require.Error(t, err)
	assert.Equal(t, 403, apperr.As(err).HTTPStatus)

	// Seating the same user twice conflicts.
	_, err = h.service.AddMember(context.Background(), ws.ID, "admin-1", workspace.AddMemberInput{
		UserID: "new-member", Role: authz.RoleMember,
	})
	require.Error(t, err)
	assert.Equal(t, 409, apperr.As(err).HTTPStatus)
}

func TestAddMember_ValidatesInput(t *testing.T) {
	h := newHarness(t)
	ws := h.seedWorkspace(t, "Acme", "user-1")

	_, err := h.service.AddMember(context.Background(), ws.ID, "user-1", workspace.AddMemberInput{
		UserID: "", Role: authz.RoleViewer,
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)

	_, err = h.service.AddMember(context.Background(), ws.ID, "user-1", workspace.AddMemberInput{
		UserID: "user-2", Role: authz.Role("superuser"),
	})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
}

func TestChangeRole_LastOwnerProtected(t *testing.T) {
	h := newHarness(t)
	ws := h.seedWorkspace(t, "Acme", "user-1")

	// The sole owner cannot demote themselves into an ownerless workspace.
	_, err := h.service.ChangeRole(context.Background(), ws.ID, "user-1", "user-1", authz.RoleMember)
	require.Error(t, err)
	assert.Equal(t, 409, apperr.As(err).HTTPStatus)

	// With a second owner seated the demotion goes through.
	h.seedMember(t, ws.ID, "user-1", "user-2", authz.RoleOwner)
	demoted, err := h.service.ChangeRole(context.Background(), ws.ID, "user-1", "user-1", authz.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleMember, demoted.Role)
}

func TestChangeRole_AdminCannotTouchOwner(t *testing.T) {
	h := newHarness(t)
	ws := h.seedWorkspace(t, "Acme", "user-1")
	h.seedMember(t, ws.ID, "user-1", "admin-1", authz.RoleAdmin)

	_, err := h.service.ChangeRole(context.Background(), ws.ID, "admin-1", "user-1", authz.RoleMember)
	require.Error(t, err)
	assert.Equal(t, 403, apperr.As(err).HTTPStatus)
}

func TestRemoveMember_SelfLeaveAllowed(t *testing.T) {
	h := newHarness(t)
	ws := h.seedWorkspace(t, "Acme", "user-1")
	h.seedMember(t, ws.ID, "user-1", "viewer-1", authz.RoleViewer)

	// A viewer holds no admin authority but may always walk out.
	require.NoError(t, h.service.RemoveMember(context.Background(), ws.ID, "viewer-1", "viewer-1"))

	_, err := h.repo.FindMembership(context.Background(), ws.ID, "viewer-1")
	assert.True(t, apperr.IsNotFound(err))
}

func TestRemoveMember_RankRules(t *testing.T) {
	h := newHarness(t)
	ws := h.seedWorkspace(t, "Acme", "user-1")
	h.seedMember(t, ws.ID, "user-1", "admin-1", authz.RoleAdmin)
	h.seedMember(t, ws.ID, "user-1", "member-1", authz.RoleMember)
	h.seedMember(t, ws.ID, "user-1", "viewer-1", authz.RoleViewer)

	// Admin removes a member they outrank.
	require.NoError(t, h.service.RemoveMember(context.Background(), ws.ID, "admin-1", "member-1"))

	// Admin cannot remove the owner.
	err := h.service.RemoveMember(context.Background(), ws.ID, "admin-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, 403, apperr.As(err).HTTPStatus)

	// A viewer cannot remove anybody else.
	err = h.service.RemoveMember(context.Background(), ws.ID, "viewer-1", "admin-1")
	require.Error(t, err)
	assert.Equal(t, 403, apperr.As(err).HTTPStatus)
}

func TestRemoveMember_LastOwnerStays(t *testing.T) {
	h := newHarness(t)
	ws := h.seedWorkspace(t, "Acme", "user-1")

	err := h.service.RemoveMember(context.Background(), ws.ID, "user-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, 409, apperr.As(err).HTTPStatus)
}

func TestListMembers_PaginatesRoster(t *testing.T) {
	h := newHarness(t)
	ws := h.seedWorkspace(t, "Acme", "user-1")
	h.seedMember(t, ws.ID, "user-1", "user-2", authz.RoleMember)
	h.seedMember(t, ws.ID, "user-1", "user-3", authz.RoleViewer)

	page, total, err := h.service.ListMembers(context.Background(), ws.ID, "user-3", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "user-1", page[0].UserID, "owner seated first")

	rest, _, err := h.service.ListMembers(context.Background(), ws.ID, "user-3", 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "user-3", rest[0].UserID)

	// Outsiders cannot read the roster.
	_, _, err = h.service.ListMembers(context.Background(), ws.ID, "stranger", 2, 0)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

// longName builds a name of exactly n runes.
func longName(n int) string {
	runes := make([]rune, n)
	for i := range runes {
		runes[i] = 'a'
	}
	return string(runes)
}
