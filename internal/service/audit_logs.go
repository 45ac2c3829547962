package service

import (
	"context"

	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/store"
)

// MaxAuditPageSize caps a single audit log page.
const MaxAuditPageSize = 500

// ListAuditLogs returns entries newest first. Non-superusers only see
// entries they authored, whatever q.UserID says.
func (s *RBACService) ListAuditLogs(ctx context.Context, actor Actor, q AuditQuery) ([]models.AuditLog, error) {
	if q.Limit < 0 || q.Offset < 0 {
		return nil, invalid("limit and offset must not be negative")
	}
	if q.Limit == 0 || q.Limit > MaxAuditPageSize {
		q.Limit = MaxAuditPageSize
	}

	scope := actor.scope()
	if scope.UserID == nil && q.UserID != nil {
		scope = store.Owner(*q.UserID)
	}
	if scope.UserID != nil && q.UserID != nil && *scope.UserID != *q.UserID {
		return []models.AuditLog{}, nil
	}

	return s.store.ListAuditLogs(ctx, store.AuditFilter{
		Scope:    scope,
		Action:   q.Action,
		Resource: q.Resource,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
}

// GetAuditLog returns an entry if it is visible to actor.
func (s *RBACService) GetAuditLog(ctx context.Context, actor Actor, id uint) (*models.AuditLog, error) {
	entry, err := s.store.GetAuditLog(ctx, id, actor.scope())
	return entry, translate(err, "")
}
