package store

import (
	"context"
	"fmt"

	"github.com/nebari-dev/accessd/internal/models"
	"gorm.io/gorm/clause"
)

// ListResources returns all resources ordered by ID.
func (s *Store) ListResources(ctx context.Context) ([]models.Resource, error) {
	var resources []models.Resource
	if err := s.conn(ctx).Order("id").Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

// GetResource fetches a resource by ID.
func (s *Store) GetResource(ctx context.Context, id uint) (*models.Resource, error) {
	var r models.Resource
	if err := s.conn(ctx).First(&r, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// CreateResource inserts a new resource.
func (s *Store) CreateResource(ctx context.Context, r *models.Resource) error {
	return s.conn(ctx).Create(r).Error
}

// SaveResource writes every column of an existing resource.
func (s *Store) SaveResource(ctx context.Context, r *models.Resource) error {
	return s.conn(ctx).Save(r).Error
}

// DeleteResource removes a resource together with its permissions and
// their role grants. Call it inside Transaction.
func (s *Store) DeleteResource(ctx context.Context, id uint) error {
	db := s.conn(ctx)
	permIDs := db.Model(&models.Permission{}).Select("id").Where("resource_id = ?", id)
	if err := db.Where("permission_id IN (?)", permIDs).Delete(&models.RolePermission{}).Error; err != nil {
		return err
	}
	if err := db.Where("resource_id = ?", id).Delete(&models.Permission{}).Error; err != nil {
		return err
	}
	res := db.Delete(&models.Resource{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureResource inserts r unless a resource with the same endpoint exists,
// then loads the stored row into r. Concurrent callers never duplicate it.
// It returns ErrNameTaken when a resource with another endpoint already
// uses r.Name.
func (s *Store) EnsureResource(ctx context.Context, r *models.Resource) error {
	db := s.conn(ctx)
	var existing models.Resource
	err := db.Where("endpoint = ?", r.Endpoint).Limit(1).Find(&existing).Error
	if err != nil {
		return err
	}
	if existing.ID != 0 {
		*r = existing
		return nil
	}

	// Checked up front: a failed insert aborts the surrounding transaction on Postgres
	var taken int64
	if err := db.Model(&models.Resource{}).Where("name = ?", r.Name).Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return fmt.Errorf("%w: resource %q", ErrNameTaken, r.Name)
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoNothing: true,
	}).Create(r).Error; err != nil {
		return err
	}
	return notFound(db.Where("endpoint = ?", r.Endpoint).First(r).Error)
}
