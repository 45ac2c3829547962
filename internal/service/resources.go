package service

import (
	"context"
	"strings"

	"github.com/nebari-dev/accessd/internal/audit"
	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/store"
)

const resourceExists = "resource with this name or endpoint already exists"

func validateResource(r *models.Resource) error {
	r.Name = strings.TrimSpace(r.Name)
	r.Endpoint = strings.TrimSpace(r.Endpoint)
	switch {
	case r.Name == "":
		return invalid("name is required")
	case len(r.Name) > 100:
		return invalid("name must be at most 100 characters")
	case r.Endpoint == "":
		return invalid("endpoint is required")
	case len(r.Endpoint) > 200:
		return invalid("endpoint must be at most 200 characters")
	}
	return nil
}

// ListResources returns all resources.
func (s *RBACService) ListResources(ctx context.Context) ([]models.Resource, error) {
	return s.store.ListResources(ctx)
}

// GetResource returns a single resource.
func (s *RBACService) GetResource(ctx context.Context, id uint) (*models.Resource, error) {
	r, err := s.store.GetResource(ctx, id)
	return r, translate(err, "")
}

// CreateResource validates and stores a new resource.
func (s *RBACService) CreateResource(ctx context.Context, actor Actor, in ResourceInput) (*models.Resource, error) {
	r := &models.Resource{Name: in.Name, Description: in.Description, Endpoint: in.Endpoint}
	if err := validateResource(r); err != nil {
		return nil, err
	}

	err := s.mutate(ctx, func(tx *store.Store) (audit.Entry, error) {
		if err := tx.CreateResource(ctx, r); err != nil {
			return audit.Entry{}, translate(err, resourceExists)
		}
		return actor.entry(audit.ActionCreate, audit.ResourceResource, r), nil
	})
	if err != nil {
		return nil, err
	}
	logMutation(audit.ActionCreate, audit.ResourceResource, r.ID)
	return r, nil
}

// UpdateResource applies patch to an existing resource.
func (s *RBACService) UpdateResource(ctx context.Context, actor Actor, id uint, patch ResourcePatch) (*models.Resource, error) {
	var r *models.Resource
	err := s.mutate(ctx, func(tx *store.Store) (audit.Entry, error) {
		var err error
		if r, err = tx.GetResource(ctx, id); err != nil {
			return audit.Entry{}, translate(err, "")
		}
		patch.Apply(r)
		if err := validateResource(r); err != nil {
			return audit.Entry{}, err
		}
		if err := tx.SaveResource(ctx, r); err != nil {
			return audit.Entry{}, translate(err, resourceExists)
		}
		return actor.entry(audit.ActionUpdate, audit.ResourceResource, r), nil
	})
	if err != nil {
		return nil, err
	}
	logMutation(audit.ActionUpdate, audit.ResourceResource, id)
	return r, nil
}

// DeleteResource removes a resource along with its permissions.
func (s *RBACService) DeleteResource(ctx context.Context, actor Actor, id uint) error {
	err := s.mutate(ctx, func(tx *store.Store) (audit.Entry, error) {
		r, err := tx.GetResource(ctx, id)
		if err != nil {
			return audit.Entry{}, translate(err, "")
		}
		if err := tx.DeleteResource(ctx, id); err != nil {
			return audit.Entry{}, translate(err, "")
		}
		return actor.entry(audit.ActionDelete, audit.ResourceResource, r), nil
	})
	if err != nil {
		return err
	}
	logMutation(audit.ActionDelete, audit.ResourceResource, id)
	return nil
}
