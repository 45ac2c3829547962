package store

import (
	"context"

	"github.com/nebari-dev/accessd/internal/models"
	"gorm.io/gorm/clause"
)

// ListRoles returns all roles with their permissions loaded.
func (s *Store) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := s.conn(ctx).Preload("Permissions").Order("id").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by ID with its permissions loaded.
func (s *Store) GetRole(ctx context.Context, id uint) (*models.Role, error) {
	var r models.Role
	if err := s.conn(ctx).Preload("Permissions").First(&r, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// FindRoleByName fetches a role by its unique name.
func (s *Store) FindRoleByName(ctx context.Context, name string) (*models.Role, error) {
	var r models.Role
	if err := s.conn(ctx).Preload("Permissions").Where("name = ?", name).First(&r).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// CreateRole inserts a role and attaches r.Permissions.
func (s *Store) CreateRole(ctx context.Context, r *models.Role) error {
	perms := r.Permissions
	if err := s.conn(ctx).Omit(clause.Associations).Create(r).Error; err != nil {
		return err
	}
	if len(perms) == 0 {
		return nil
	}
	return s.SetRolePermissions(ctx, r, perms)
}

// SaveRole writes the role's own columns; permissions are left untouched.
func (s *Store) SaveRole(ctx context.Context, r *models.Role) error {
	return s.conn(ctx).Omit(clause.Associations).Save(r).Error
}

// SetRolePermissions replaces the role's permission set.
func (s *Store) SetRolePermissions(ctx context.Context, r *models.Role, perms []*models.Permission) error {
	assoc := s.conn(ctx).Model(r).Omit("Permissions.*").Association("Permissions")
	if len(perms) == 0 {
		if err := assoc.Clear(); err != nil {
			return err
		}
		r.Permissions = nil
		return nil
	}
	if err := assoc.Replace(perms); err != nil {
		return err
	}
	r.Permissions = perms
	return nil
}

// GrantPermissions adds perms to the role's permission set without removing
// existing grants.
func (s *Store) GrantPermissions(ctx context.Context, r *models.Role, perms []*models.Permission) error {
	if len(perms) == 0 {
		return nil
	}
	return s.conn(ctx).Model(r).Omit("Permissions.*").Association("Permissions").Append(perms)
}

// DeleteRole removes a role, its permission grants and its user assignments.
func (s *Store) DeleteRole(ctx context.Context, id uint) error {
	db := s.conn(ctx)
	if err := db.Where("role_id = ?", id).Delete(&models.RolePermission{}).Error; err != nil {
		return err
	}
	if err := db.Where("role_id = ?", id).Delete(&models.UserRole{}).Error; err != nil {
		return err
	}
	res := db.Delete(&models.Role{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureRole inserts r unless a role with the same name exists, then loads
// the stored row into r. Existing roles keep their current flags.
func (s *Store) EnsureRole(ctx context.Context, r *models.Role) error {
	db := s.conn(ctx)
	if err := db.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(r).Error; err != nil {
		return err
	}
	return notFound(db.Where("name = ?", r.Name).First(r).Error)
}
