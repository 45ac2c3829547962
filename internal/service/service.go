package service

import (
	"context"
	"log/slog"

	"github.com/nebari-dev/accessd/internal/audit"
	"github.com/nebari-dev/accessd/internal/store"
)

// PolicyInvalidator is notified after every committed change to the
// authorization tables.
type PolicyInvalidator interface {
	InvalidatePolicy(ctx context.Context)
}

// RBACService contains the business logic for managing resources, actions,
// permissions, roles and role assignments. Every mutation is audited.
type RBACService struct {
	store    *store.Store
	recorder *audit.Recorder
	policy   PolicyInvalidator
}

// New creates a new RBACService. policy may be nil.
func New(st *store.Store, rec *audit.Recorder, policy PolicyInvalidator) *RBACService {
	return &RBACService{store: st, recorder: rec, policy: policy}
}

// mutate runs fn through the audit recorder and, on success, invalidates
// cached policy.
func (s *RBACService) mutate(ctx context.Context, fn func(tx *store.Store) (audit.Entry, error)) error {
	if err := s.recorder.Mutate(ctx, fn); err != nil {
		return err
	}
	if s.policy != nil {
		s.policy.InvalidatePolicy(ctx)
	}
	return nil
}

func logMutation(action, resource string, id interface{}) {
	slog.Debug("RBAC record changed", "action", action, "resource", resource, "id", id)
}
