package store

import (
	"context"
	"fmt"

	"github.com/nebari-dev/accessd/internal/models"
	"gorm.io/gorm/clause"
)

// ListActions returns all actions ordered by ID.
func (s *Store) ListActions(ctx context.Context) ([]models.Action, error) {
	var actions []models.Action
	if err := s.conn(ctx).Order("id").Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

// GetAction fetches an action by ID.
func (s *Store) GetAction(ctx context.Context, id uint) (*models.Action, error) {
	var a models.Action
	if err := s.conn(ctx).First(&a, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// CreateAction inserts a new action.
func (s *Store) CreateAction(ctx context.Context, a *models.Action) error {
	return s.conn(ctx).Create(a).Error
}

// SaveAction writes every column of an existing action.
func (s *Store) SaveAction(ctx context.Context, a *models.Action) error {
	return s.conn(ctx).Save(a).Error
}

// DeleteAction removes an action with its permissions and their role grants.
func (s *Store) DeleteAction(ctx context.Context, id uint) error {
	db := s.conn(ctx)
	permIDs := db.Model(&models.Permission{}).Select("id").Where("action_id = ?", id)
	if err := db.Where("permission_id IN (?)", permIDs).Delete(&models.RolePermission{}).Error; err != nil {
		return err
	}
	if err := db.Where("action_id = ?", id).Delete(&models.Permission{}).Error; err != nil {
		return err
	}
	res := db.Delete(&models.Action{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureAction inserts a unless an action with the same code exists, then
// loads the stored row into a. It returns ErrNameTaken when an action with
// another code already uses a.Name.
func (s *Store) EnsureAction(ctx context.Context, a *models.Action) error {
	db := s.conn(ctx)
	var existing models.Action
	if err := db.Where("code = ?", a.Code).Limit(1).Find(&existing).Error; err != nil {
		return err
	}
	if existing.ID != 0 {
		*a = existing
		return nil
	}

	var taken int64
	if err := db.Model(&models.Action{}).Where("name = ?", a.Name).Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return fmt.Errorf("%w: action %q", ErrNameTaken, a.Name)
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(a).Error; err != nil {
		return err
	}
	return notFound(db.Where("code = ?", a.Code).First(a).Error)
}
