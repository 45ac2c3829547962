package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents an account that can authenticate against the API.
// Accounts are owned by the auth layer; the RBAC core only reads the
// activity and superuser flags.
type User struct {
	ID           uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	FirstName    string         `gorm:"size:50" json:"first_name"`
	LastName     string         `gorm:"size:50" json:"last_name"`
	MiddleName   string         `gorm:"size:50" json:"middle_name,omitempty"`
	IsActive     bool           `gorm:"not null" json:"is_active"`
	IsSuperuser  bool           `gorm:"not null;default:false" json:"is_superuser"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// SoftDelete deactivates the account and stamps the deletion time.
// The row is kept so audit entries keep pointing at it.
func (u *User) SoftDelete(tx *gorm.DB) error {
	return tx.Model(u).Updates(map[string]interface{}{
		"is_active":  false,
		"deleted_at": time.Now().UTC(),
	}).Error
}
