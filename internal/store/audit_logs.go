package store

import (
	"context"

	"github.com/nebari-dev/accessd/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuditFilter narrows an audit log listing.
type AuditFilter struct {
	Scope    Scope
	Action   string
	Resource string
	Limit    int
	Offset   int
}

// AppendAuditLog inserts an audit entry. Audit rows are never updated.
func (s *Store) AppendAuditLog(ctx context.Context, entry *models.AuditLog) error {
	return s.conn(ctx).Omit(clause.Associations).Create(entry).Error
}

// ListAuditLogs returns entries newest first.
func (s *Store) ListAuditLogs(ctx context.Context, f AuditFilter) ([]models.AuditLog, error) {
	q := s.conn(ctx).Preload("User", unscoped).Order("created_at DESC").Order("id DESC")
	if f.Scope.UserID != nil {
		q = q.Where("user_id = ?", *f.Scope.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Resource != "" {
		q = q.Where("resource = ?", f.Resource)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var logs []models.AuditLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// GetAuditLog fetches an entry by ID if it is visible in scope.
func (s *Store) GetAuditLog(ctx context.Context, id uint, scope Scope) (*models.AuditLog, error) {
	q := s.conn(ctx).Preload("User", unscoped)
	if scope.UserID != nil {
		q = q.Where("user_id = ?", *scope.UserID)
	}
	var entry models.AuditLog
	if err := q.First(&entry, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

// Soft-deleted users still own their audit history.
func unscoped(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}
