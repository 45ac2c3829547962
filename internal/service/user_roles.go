package service

import (
	"context"
	"errors"

	"github.com/nebari-dev/accessd/internal/audit"
	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/store"
)

const userRoleExists = "user already has this role"

func checkUserRoleRefs(ctx context.Context, tx *store.Store, ur *models.UserRole) error {
	if _, err := tx.GetUser(ctx, ur.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalid("user does not exist")
		}
		return err
	}
	if _, err := tx.GetRole(ctx, ur.RoleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalid("role does not exist")
		}
		return err
	}
	return nil
}

// ListUserRoles returns assignments visible to actor: all of them for
// superusers, otherwise only the actor's own.
func (s *RBACService) ListUserRoles(ctx context.Context, actor Actor) ([]models.UserRole, error) {
	return s.store.ListUserRoles(ctx, actor.scope())
}

// GetUserRole returns an assignment if it is visible to actor.
func (s *RBACService) GetUserRole(ctx context.Context, actor Actor, id uint) (*models.UserRole, error) {
	ur, err := s.store.GetUserRole(ctx, id, actor.scope())
	return ur, translate(err, "")
}

// CreateUserRole assigns a role to a user.
func (s *RBACService) CreateUserRole(ctx context.Context, actor Actor, in UserRoleInput) (*models.UserRole, error) {
	ur := &models.UserRole{UserID: in.UserID, RoleID: in.RoleID}

	err := s.mutate(ctx, func(tx *store.Store) (audit.Entry, error) {
		if err := checkUserRoleRefs(ctx, tx, ur); err != nil {
			return audit.Entry{}, err
		}
		if err := tx.CreateUserRole(ctx, ur); err != nil {
			return audit.Entry{}, translate(err, userRoleExists)
		}
		return actor.entry(audit.ActionCreate, audit.ResourceUserRole, ur), nil
	})
	if err != nil {
		return nil, err
	}
	logMutation(audit.ActionCreate, audit.ResourceUserRole, ur.ID)
	return ur, nil
}

// UpdateUserRole applies patch to an assignment visible to actor.
func (s *RBACService) UpdateUserRole(ctx context.Context, actor Actor, id uint, patch UserRolePatch) (*models.UserRole, error) {
	var ur *models.UserRole
	err := s.mutate(ctx, func(tx *store.Store) (audit.Entry, error) {
		var err error
		if ur, err = tx.GetUserRole(ctx, id, actor.scope()); err != nil {
			return audit.Entry{}, translate(err, "")
		}
		patch.Apply(ur)
		if err := checkUserRoleRefs(ctx, tx, ur); err != nil {
			return audit.Entry{}, err
		}
		if err := tx.SaveUserRole(ctx, ur); err != nil {
			return audit.Entry{}, translate(err, userRoleExists)
		}
		return actor.entry(audit.ActionUpdate, audit.ResourceUserRole, ur), nil
	})
	if err != nil {
		return nil, err
	}
	logMutation(audit.ActionUpdate, audit.ResourceUserRole, id)
	return ur, nil
}

// DeleteUserRole removes an assignment visible to actor.
func (s *RBACService) DeleteUserRole(ctx context.Context, actor Actor, id uint) error {
	err := s.mutate(ctx, func(tx *store.Store) (audit.Entry, error) {
		ur, err := tx.GetUserRole(ctx, id, actor.scope())
		if err != nil {
			return audit.Entry{}, translate(err, "")
		}
		if err := tx.DeleteUserRole(ctx, id); err != nil {
			return audit.Entry{}, translate(err, "")
		}
		return actor.entry(audit.ActionDelete, audit.ResourceUserRole, ur), nil
	})
	if err != nil {
		return err
	}
	logMutation(audit.ActionDelete, audit.ResourceUserRole, id)
	return nil
}
