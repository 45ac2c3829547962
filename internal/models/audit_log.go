package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog represents an immutable record of an administrative action.
// A nil UserID marks a system-initiated entry.
type AuditLog struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	UserID      *uuid.UUID `gorm:"type:text;index" json:"user"`
	User        *User      `gorm:"foreignKey:UserID" json:"-"`
	Action      string     `gorm:"size:200;not null;index" json:"action"`   // e.g., "create", "update", "delete"
	Resource    string     `gorm:"size:200;not null;index" json:"resource"` // e.g., "role", "user_role"
	DetailsJSON string     `gorm:"column:details;type:text" json:"-"`
	IPAddress   *string    `gorm:"size:45" json:"ip_address"`
	UserAgent   string     `gorm:"type:text" json:"user_agent"`
	CreatedAt   time.Time  `gorm:"not null;index" json:"created_at"`
}
