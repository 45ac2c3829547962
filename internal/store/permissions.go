package store

import (
	"context"

	"github.com/nebari-dev/accessd/internal/models"
	"gorm.io/gorm/clause"
)

// ListPermissions returns all permissions ordered by ID.
func (s *Store) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	var perms []models.Permission
	if err := s.conn(ctx).Order("id").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

// GetPermission fetches a permission by ID.
func (s *Store) GetPermission(ctx context.Context, id uint) (*models.Permission, error) {
	var p models.Permission
	if err := s.conn(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// FindPermissions loads the permissions with the given IDs. Missing IDs are
// simply absent from the result.
func (s *Store) FindPermissions(ctx context.Context, ids []uint) ([]*models.Permission, error) {
	perms := []*models.Permission{}
	if len(ids) == 0 {
		return perms, nil
	}
	if err := s.conn(ctx).Where("id IN ?", ids).Order("id").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

// CreatePermission inserts a new permission.
func (s *Store) CreatePermission(ctx context.Context, p *models.Permission) error {
	return s.conn(ctx).Omit(clause.Associations).Create(p).Error
}

// SavePermission writes every column of an existing permission.
func (s *Store) SavePermission(ctx context.Context, p *models.Permission) error {
	return s.conn(ctx).Omit(clause.Associations).Save(p).Error
}

// DeletePermission removes a permission and detaches it from every role.
func (s *Store) DeletePermission(ctx context.Context, id uint) error {
	db := s.conn(ctx)
	if err := db.Where("permission_id = ?", id).Delete(&models.RolePermission{}).Error; err != nil {
		return err
	}
	res := db.Delete(&models.Permission{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsurePermission returns the permission for (resourceID, actionID),
// creating it when absent.
func (s *Store) EnsurePermission(ctx context.Context, resourceID, actionID uint) (*models.Permission, error) {
	db := s.conn(ctx)
	p := models.Permission{ResourceID: resourceID, ActionID: actionID}
	if err := db.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&p).Error; err != nil {
		return nil, err
	}
	var stored models.Permission
	if err := db.Where("resource_id = ? AND action_id = ?", resourceID, actionID).First(&stored).Error; err != nil {
		return nil, notFound(err)
	}
	return &stored, nil
}
