package service

import (
	"context"
	"strings"

	"github.com/nebari-dev/accessd/internal/audit"
	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/store"
)

const actionExists = "action with this name or code already exists"

func validateAction(a *models.Action) error {
	a.Name = strings.TrimSpace(a.Name)
	a.Code = strings.TrimSpace(a.Code)
	switch {
	case a.Name == "":
		return invalid("name is required")
	case len(a.Name) > 50:
		return invalid("name must be at most 50 characters")
	case a.Code == "":
		return invalid("code is required")
	case len(a.Code) > 50:
		return invalid("code must be at most 50 characters")
	}
	return nil
}

// ListActions returns all actions.
func (s *RBACService) ListActions(ctx context.Context) ([]models.Action, error) {
	return s.store.ListActions(ctx)
}

// GetAction returns a single action.
func (s *RBACService) GetAction(ctx context.Context, id uint) (*models.Action, error) {
	a, err := s.store.GetAction(ctx, id)
	return a, translate(err, "")
}

// CreateAction validates and stores a new action.
func (s *RBACService) CreateAction(ctx context.Context, actor Actor, in ActionInput) (*models.Action, error) {
	a := &models.Action{Name: in.Name, Code: in.Code, Description: in.Description}
	if err := validateAction(a); err != nil {
		return nil, err
	}

	err := s.mutate(ctx, func(tx *store.Store) (audit.Entry, error) {
		if err := tx.CreateAction(ctx, a); err != nil {
			return audit.Entry{}, translate(err, actionExists)
		}
		return actor.entry(audit.ActionCreate, audit.ResourceAction, a), nil
	})
	if err != nil {
		return nil, err
	}
	logMutation(audit.ActionCreate, audit.ResourceAction, a.ID)
	return a, nil
}

// UpdateAction applies patch to an existing action.
func (s *RBACService) UpdateAction(ctx context.Context, actor Actor, id uint, patch ActionPatch) (*models.Action, error) {
	var a *models.Action
	err := s.mutate(ctx, func(tx *store.Store) (audit.Entry, error) {
		var err error
		if a, err = tx.GetAction(ctx, id); err != nil {
			return audit.Entry{}, translate(err, "")
		}
		patch.Apply(a)
		if err := validateAction(a); err != nil {
			return audit.Entry{}, err
		}
		if err := tx.SaveAction(ctx, a); err != nil {
			return audit.Entry{}, translate(err, actionExists)
		}
		return actor.entry(audit.ActionUpdate, audit.ResourceAction, a), nil
	})
	if err != nil {
		return nil, err
	}
	logMutation(audit.ActionUpdate, audit.ResourceAction, id)
	return a, nil
}

// DeleteAction removes an action along with its permissions.
func (s *RBACService) DeleteAction(ctx context.Context, actor Actor, id uint) error {
	err := s.mutate(ctx, func(tx *store.Store) (audit.Entry, error) {
		a, err := tx.GetAction(ctx, id)
		if err != nil {
			return audit.Entry{}, translate(err, "")
		}
		if err := tx.DeleteAction(ctx, id); err != nil {
			return audit.Entry{}, translate(err, "")
		}
		return actor.entry(audit.ActionDelete, audit.ResourceAction, a), nil
	})
	if err != nil {
		return err
	}
	logMutation(audit.ActionDelete, audit.ResourceAction, id)
	return nil
}
