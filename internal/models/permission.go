package models

import "time"

// Permission grants one Action on one Resource. It is the atomic unit
// attached to roles.
type Permission struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	ResourceID uint      `gorm:"not null;uniqueIndex:idx_permission_resource_action,priority:1" json:"resource"`
	Resource   *Resource `gorm:"foreignKey:ResourceID" json:"-"`
	ActionID   uint      `gorm:"not null;uniqueIndex:idx_permission_resource_action,priority:2" json:"action"`
	Action     *Action   `gorm:"foreignKey:ActionID" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
