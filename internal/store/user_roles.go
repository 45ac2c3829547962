package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/nebari-dev/accessd/internal/models"
	"gorm.io/gorm/clause"
)

// Scope restricts queries on per-user collections. A nil UserID means the
// caller may see every row.
type Scope struct {
	UserID *uuid.UUID
}

// All is the unrestricted scope used for superusers.
var All = Scope{}

// Owner restricts a query to rows belonging to userID.
func Owner(userID uuid.UUID) Scope {
	return Scope{UserID: &userID}
}

// ListUserRoles returns assignments visible in scope.
func (s *Store) ListUserRoles(ctx context.Context, scope Scope) ([]models.UserRole, error) {
	q := s.conn(ctx).Order("id")
	if scope.UserID != nil {
		q = q.Where("user_id = ?", *scope.UserID)
	}
	var urs []models.UserRole
	if err := q.Find(&urs).Error; err != nil {
		return nil, err
	}
	return urs, nil
}

// GetUserRole fetches an assignment by ID if it is visible in scope.
func (s *Store) GetUserRole(ctx context.Context, id uint, scope Scope) (*models.UserRole, error) {
	q := s.conn(ctx)
	if scope.UserID != nil {
		q = q.Where("user_id = ?", *scope.UserID)
	}
	var ur models.UserRole
	if err := q.First(&ur, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &ur, nil
}

// CreateUserRole inserts an assignment.
func (s *Store) CreateUserRole(ctx context.Context, ur *models.UserRole) error {
	return s.conn(ctx).Omit(clause.Associations).Create(ur).Error
}

// SaveUserRole writes every column of an existing assignment.
func (s *Store) SaveUserRole(ctx context.Context, ur *models.UserRole) error {
	return s.conn(ctx).Omit(clause.Associations).Save(ur).Error
}

// DeleteUserRole removes an assignment.
func (s *Store) DeleteUserRole(ctx context.Context, id uint) error {
	res := s.conn(ctx).Delete(&models.UserRole{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
