package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole assigns a role to a user. A user may hold several roles and
// their effective permissions are the union of those roles' permissions.
type UserRole struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uuid.UUID `gorm:"type:text;not null;uniqueIndex:idx_user_role,priority:1" json:"user"`
	User      *User     `gorm:"foreignKey:UserID" json:"-"`
	RoleID    uint      `gorm:"not null;uniqueIndex:idx_user_role,priority:2;index" json:"role"`
	Role      *Role     `gorm:"foreignKey:RoleID" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
