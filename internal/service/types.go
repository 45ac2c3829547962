package service

import (
	"github.com/google/uuid"
	"github.com/nebari-dev/accessd/internal/audit"
	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/store"
)

// Actor is the caller on whose behalf a service method runs.
type Actor struct {
	UserID    *uuid.UUID // nil for system actions
	Superuser bool
	Request   audit.RequestContext
}

// SystemActor performs maintenance without a user, e.g. from the CLI.
var SystemActor = Actor{}

// ActorFromUser builds an actor for an authenticated user.
func ActorFromUser(u *models.User, req audit.RequestContext) Actor {
	if u == nil {
		return Actor{Request: req}
	}
	id := u.ID
	return Actor{UserID: &id, Superuser: u.IsSuperuser, Request: req}
}

// scope limits per-user collections to the actor's own rows unless the
// actor is a superuser or the system.
func (a Actor) scope() store.Scope {
	if a.Superuser || a.UserID == nil {
		return store.All
	}
	return store.Owner(*a.UserID)
}

func (a Actor) entry(action, resource string, details interface{}) audit.Entry {
	return audit.Entry{
		Actor:    a.UserID,
		Action:   action,
		Resource: resource,
		Details:  details,
		Request:  a.Request,
	}
}

// ResourceInput holds the fields of a resource on create or full update.
type ResourceInput struct {
	Name        string
	Description string
	Endpoint    string
}

// ResourcePatch is a partial update; nil fields are left unchanged.
type ResourcePatch struct {
	Name        *string
	Description *string
	Endpoint    *string
}

// Patch converts a full input into a patch that sets every field.
func (in ResourceInput) Patch() ResourcePatch {
	return ResourcePatch{Name: &in.Name, Description: &in.Description, Endpoint: &in.Endpoint}
}

// Apply merges the patch into r.
func (p ResourcePatch) Apply(r *models.Resource) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Endpoint != nil {
		r.Endpoint = *p.Endpoint
	}
}

// ActionInput holds the fields of an action on create or full update.
type ActionInput struct {
	Name        string
	Code        string
	Description string
}

// ActionPatch is a partial update; nil fields are left unchanged.
type ActionPatch struct {
	Name        *string
	Code        *string
	Description *string
}

// Patch converts a full input into a patch that sets every field.
func (in ActionInput) Patch() ActionPatch {
	return ActionPatch{Name: &in.Name, Code: &in.Code, Description: &in.Description}
}

// Apply merges the patch into a.
func (p ActionPatch) Apply(a *models.Action) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Code != nil {
		a.Code = *p.Code
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
}

// PermissionInput holds the fields of a permission on create or full update.
type PermissionInput struct {
	ResourceID uint
	ActionID   uint
}

// PermissionPatch is a partial update; nil fields are left unchanged.
type PermissionPatch struct {
	ResourceID *uint
	ActionID   *uint
}

// Patch converts a full input into a patch that sets every field.
func (in PermissionInput) Patch() PermissionPatch {
	return PermissionPatch{ResourceID: &in.ResourceID, ActionID: &in.ActionID}
}

// Apply merges the patch into p.
func (p PermissionPatch) Apply(perm *models.Permission) {
	if p.ResourceID != nil {
		perm.ResourceID = *p.ResourceID
	}
	if p.ActionID != nil {
		perm.ActionID = *p.ActionID
	}
}

// RoleInput holds the fields of a role on create or full update.
type RoleInput struct {
	Name          string
	Description   string
	IsDefault     bool
	PermissionIDs []uint
}

// RolePatch is a partial update; nil fields are left unchanged. A non-nil
// PermissionIDs replaces the role's whole permission set.
type RolePatch struct {
	Name          *string
	Description   *string
	IsDefault     *bool
	PermissionIDs *[]uint
}

// Patch converts a full input into a patch that sets every field.
func (in RoleInput) Patch() RolePatch {
	ids := in.PermissionIDs
	if ids == nil {
		ids = []uint{}
	}
	return RolePatch{Name: &in.Name, Description: &in.Description, IsDefault: &in.IsDefault, PermissionIDs: &ids}
}

// Apply merges the scalar fields into r. Permissions are resolved by the
// service since they need the store.
func (p RolePatch) Apply(r *models.Role) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.IsDefault != nil {
		r.IsDefault = *p.IsDefault
	}
}

// UserRoleInput holds the fields of a role assignment.
type UserRoleInput struct {
	UserID uuid.UUID
	RoleID uint
}

// UserRolePatch is a partial update; nil fields are left unchanged.
type UserRolePatch struct {
	UserID *uuid.UUID
	RoleID *uint
}

// Patch converts a full input into a patch that sets every field.
func (in UserRoleInput) Patch() UserRolePatch {
	return UserRolePatch{UserID: &in.UserID, RoleID: &in.RoleID}
}

// Apply merges the patch into ur.
func (p UserRolePatch) Apply(ur *models.UserRole) {
	if p.UserID != nil {
		ur.UserID = *p.UserID
	}
	if p.RoleID != nil {
		ur.RoleID = *p.RoleID
	}
}

// AuditQuery filters an audit log listing.
type AuditQuery struct {
	UserID   *uuid.UUID
	Action   string
	Resource string
	Limit    int
	Offset   int
}
