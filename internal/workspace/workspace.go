// Copyright (c) 2026 Superbasic. All rights reserved.
// Author: superbasicman@gmail.com

/*
Package workspace manages workspaces and their memberships.

A workspace is the tenancy boundary of the platform: every record a user
works on lives inside exactly one workspace, and a user's standing inside
it is a [authz.Role]. Membership roles are the single source the auth
resolver consults when the X-Workspace-Id header names a workspace.

# Core Responsibility

  - Tenancy: Defines the [Workspace] entity and its lifecycle.
  - Membership: Manages [Membership] rows and the role ladder.
  - Authority: Enforces grant rules and the last-owner protection.

The creator of a workspace becomes its owner. A workspace must keep at
least one owner at all times; the last owner can neither be demoted nor
removed.
*/
package workspace

import (
	"time"

	"github.com/superbasicman/superbasic/internal/auth/authz"
)

// # Core Entities

// Workspace represents one tenant of the platform.
type Workspace struct {
	ID          string     `json:"id"` // UUIDv7
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description *string    `json:"description,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"-"`
}

// Membership represents a user's affiliation and role within a workspace.
type Membership struct {
	WorkspaceID string     `json:"workspace_id"`
	UserID      string     `json:"user_id"`
	Email       string     `json:"email,omitempty"`        // Denormalized for roster views
	DisplayName string     `json:"display_name,omitempty"` // Denormalized for roster views
	Role        authz.Role `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// UserWorkspace pairs a workspace with the caller's role inside it, for
// "my workspaces" listings.
type UserWorkspace struct {
	Workspace
	Role authz.Role `json:"role"`
}

// # Validation Limits

const (
	// MaxNameLen bounds the workspace display name.
	MaxNameLen = 120
	// MaxDescriptionLen bounds the free-form description.
	MaxDescriptionLen = 500
)

// # Field Identifiers

const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldRole        = "role"
	FieldUserID      = "user_id"
)
