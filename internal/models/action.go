package models

// Action is a verb that can be performed on a resource. Code is the
// machine identifier the resolver maps HTTP methods onto.
type Action struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	Name        string `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Code        string `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Description string `gorm:"type:text" json:"description"`
}

// Standard action codes.
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)
