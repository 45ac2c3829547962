package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/nebari-dev/accessd/internal/audit"
	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/store"
)

const roleExists = "role with this name already exists"

func validateRole(r *models.Role) error {
	r.Name = strings.TrimSpace(r.Name)
	switch {
	case r.Name == "":
		return invalid("name is required")
	case len(r.Name) > 100:
		return invalid("name must be at most 100 characters")
	}
	return nil
}

// resolvePermissions loads the permissions for ids, rejecting unknown IDs.
func resolvePermissions(ctx context.Context, tx *store.Store, ids []uint) ([]*models.Permission, error) {
	seen := make(map[uint]bool, len(ids))
	unique := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	perms, err := tx.FindPermissions(ctx, unique)
	if err != nil {
		return nil, err
	}
	if len(perms) != len(unique) {
		found := make(map[uint]bool, len(perms))
		for _, p := range perms {
			found[p.ID] = true
		}
		for _, id := range unique {
			if !found[id] {
				return nil, invalid(fmt.Sprintf("permission %d does not exist", id))
			}
		}
	}
	return perms, nil
}

// ListRoles returns all roles with their permission IDs.
func (s *RBACService) ListRoles(ctx context.Context) ([]models.Role, error) {
	return s.store.ListRoles(ctx)
}

// GetRole returns a single role.
func (s *RBACService) GetRole(ctx context.Context, id uint) (*models.Role, error) {
	r, err := s.store.GetRole(ctx, id)
	return r, translate(err, "")
}

// CreateRole validates and stores a new role with its permission set.
func (s *RBACService) CreateRole(ctx context.Context, actor Actor, in RoleInput) (*models.Role, error) {
	r := &models.Role{Name: in.Name, Description: in.Description, IsDefault: in.IsDefault}
	if err := validateRole(r); err != nil {
		return nil, err
	}

	err := s.mutate(ctx, func(tx *store.Store) (audit.Entry, error) {
		perms, err := resolvePermissions(ctx, tx, in.PermissionIDs)
		if err != nil {
			return audit.Entry{}, err
		}
		r.Permissions = perms
		if err := tx.CreateRole(ctx, r); err != nil {
			return audit.Entry{}, translate(err, roleExists)
		}
		return actor.entry(audit.ActionCreate, audit.ResourceRole, r), nil
	})
	if err != nil {
		return nil, err
	}
	logMutation(audit.ActionCreate, audit.ResourceRole, r.ID)
	return r, nil
}

// UpdateRole applies patch to an existing role. A non-nil
// patch.PermissionIDs replaces the permission set.
func (s *RBACService) UpdateRole(ctx context.Context, actor Actor, id uint, patch RolePatch) (*models.Role, error) {
	var r *models.Role
	err := s.mutate(ctx, func(tx *store.Store) (audit.Entry, error) {
		var err error
		if r, err = tx.GetRole(ctx, id); err != nil {
			return audit.Entry{}, translate(err, "")
		}
		patch.Apply(r)
		if err := validateRole(r); err != nil {
			return audit.Entry{}, err
		}
		if err := tx.SaveRole(ctx, r); err != nil {
			return audit.Entry{}, translate(err, roleExists)
		}
		if patch.PermissionIDs != nil {
			perms, err := resolvePermissions(ctx, tx, *patch.PermissionIDs)
			if err != nil {
				return audit.Entry{}, err
			}
			if err := tx.SetRolePermissions(ctx, r, perms); err != nil {
				return audit.Entry{}, err
			}
		}
		return actor.entry(audit.ActionUpdate, audit.ResourceRole, r), nil
	})
	if err != nil {
		return nil, err
	}
	logMutation(audit.ActionUpdate, audit.ResourceRole, id)
	return r, nil
}

// DeleteRole removes a role, its grants and its user assignments.
func (s *RBACService) DeleteRole(ctx context.Context, actor Actor, id uint) error {
	err := s.mutate(ctx, func(tx *store.Store) (audit.Entry, error) {
		r, err := tx.GetRole(ctx, id)
		if err != nil {
			return audit.Entry{}, translate(err, "")
		}
		if err := tx.DeleteRole(ctx, id); err != nil {
			return audit.Entry{}, translate(err, "")
		}
		return actor.entry(audit.ActionDelete, audit.ResourceRole, r), nil
	})
	if err != nil {
		return err
	}
	logMutation(audit.ActionDelete, audit.ResourceRole, id)
	return nil
}
