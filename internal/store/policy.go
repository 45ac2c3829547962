package store

import (
	"context"

	"github.com/nebari-dev/accessd/internal/models"
)

// PolicyData is everything the resolver needs to build a policy snapshot.
type PolicyData struct {
	Resources       []models.Resource
	Actions         []models.Action
	Permissions     []models.Permission
	RolePermissions []models.RolePermission
	UserRoles       []models.UserRole
}

// LoadPolicy reads the full grant graph in a single read transaction so
// the snapshot is internally consistent.
func (s *Store) LoadPolicy(ctx context.Context) (*PolicyData, error) {
	var data PolicyData
	err := s.Transaction(ctx, func(tx *Store) error {
		db := tx.conn(ctx)
		if err := db.Order("id").Find(&data.Resources).Error; err != nil {
			return err
		}
		if err := db.Order("id").Find(&data.Actions).Error; err != nil {
			return err
		}
		if err := db.Order("id").Find(&data.Permissions).Error; err != nil {
			return err
		}
		if err := db.Find(&data.RolePermissions).Error; err != nil {
			return err
		}
		return db.Order("id").Find(&data.UserRoles).Error
	})
	if err != nil {
		return nil, err
	}
	return &data, nil
}
