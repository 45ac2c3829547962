package models

import (
	"encoding/json"
	"time"
)

// Role represents a named bundle of permissions (Administrator, User, Manager)
type Role struct {
	ID          uint          `gorm:"primarykey" json:"id"`
	Name        string        `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	Permissions []*Permission `gorm:"many2many:role_permissions;" json:"-"`
	IsDefault   bool          `gorm:"not null;default:false" json:"is_default"`
	CreatedAt   time.Time     `json:"created_at"`
}

// PermissionIDs returns the IDs of the loaded permissions.
func (r *Role) PermissionIDs() []uint {
	ids := make([]uint, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		ids = append(ids, p.ID)
	}
	return ids
}

// MarshalJSON renders permissions as a list of IDs.
func (r Role) MarshalJSON() ([]byte, error) {
	type role Role
	return json.Marshal(struct {
		role
		Permissions []uint `json:"permissions"`
	}{role(r), r.PermissionIDs()})
}

// RolePermission is the join row behind Role.Permissions.
type RolePermission struct {
	RoleID       uint `gorm:"primaryKey"`
	PermissionID uint `gorm:"primaryKey"`
}
