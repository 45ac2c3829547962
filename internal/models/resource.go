package models

import "time"

// Resource is a protectable API surface identified by its endpoint pattern,
// e.g. "/api/users/profile/".
type Resource struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Endpoint    string    `gorm:"size:200;uniqueIndex;not null" json:"endpoint"`
	CreatedAt   time.Time `json:"created_at"`
}
