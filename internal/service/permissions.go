package service

import (
	"context"
	"errors"

	"github.com/nebari-dev/accessd/internal/audit"
	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/store"
)

const permissionExists = "permission for this resource and action already exists"

// checkPermissionRefs verifies that the referenced resource and action exist.
func checkPermissionRefs(ctx context.Context, tx *store.Store, p *models.Permission) error {
	if _, err := tx.GetResource(ctx, p.ResourceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalid("resource does not exist")
		}
		return err
	}
	if _, err := tx.GetAction(ctx, p.ActionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalid("action does not exist")
		}
		return err
	}
	return nil
}

// ListPermissions returns all permissions.
func (s *RBACService) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	return s.store.ListPermissions(ctx)
}

// GetPermission returns a single permission.
func (s *RBACService) GetPermission(ctx context.Context, id uint) (*models.Permission, error) {
	p, err := s.store.GetPermission(ctx, id)
	return p, translate(err, "")
}

// CreatePermission stores a new (resource, action) pair.
func (s *RBACService) CreatePermission(ctx context.Context, actor Actor, in PermissionInput) (*models.Permission, error) {
	p := &models.Permission{ResourceID: in.ResourceID, ActionID: in.ActionID}

	err := s.mutate(ctx, func(tx *store.Store) (audit.Entry, error) {
		if err := checkPermissionRefs(ctx, tx, p); err != nil {
			return audit.Entry{}, err
		}
		if err := tx.CreatePermission(ctx, p); err != nil {
			return audit.Entry{}, translate(err, permissionExists)
		}
		return actor.entry(audit.ActionCreate, audit.ResourcePermission, p), nil
	})
	if err != nil {
		return nil, err
	}
	logMutation(audit.ActionCreate, audit.ResourcePermission, p.ID)
	return p, nil
}

// UpdatePermission applies patch to an existing permission.
func (s *RBACService) UpdatePermission(ctx context.Context, actor Actor, id uint, patch PermissionPatch) (*models.Permission, error) {
	var p *models.Permission
	err := s.mutate(ctx, func(tx *store.Store) (audit.Entry, error) {
		var err error
		if p, err = tx.GetPermission(ctx, id); err != nil {
			return audit.Entry{}, translate(err, "")
		}
		patch.Apply(p)
		if err := checkPermissionRefs(ctx, tx, p); err != nil {
			return audit.Entry{}, err
		}
		if err := tx.SavePermission(ctx, p); err != nil {
			return audit.Entry{}, translate(err, permissionExists)
		}
		return actor.entry(audit.ActionUpdate, audit.ResourcePermission, p), nil
	})
	if err != nil {
		return nil, err
	}
	logMutation(audit.ActionUpdate, audit.ResourcePermission, id)
	return p, nil
}

// DeletePermission removes a permission and revokes it from every role.
func (s *RBACService) DeletePermission(ctx context.Context, actor Actor, id uint) error {
	err := s.mutate(ctx, func(tx *store.Store) (audit.Entry, error) {
		p, err := tx.GetPermission(ctx, id)
		if err != nil {
			return audit.Entry{}, translate(err, "")
		}
		if err := tx.DeletePermission(ctx, id); err != nil {
			return audit.Entry{}, translate(err, "")
		}
		return actor.entry(audit.ActionDelete, audit.ResourcePermission, p), nil
	})
	if err != nil {
		return err
	}
	logMutation(audit.ActionDelete, audit.ResourcePermission, id)
	return nil
}
