package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a staff account with access to the admin surface.
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Username    string         `gorm:"unique;not null" json:"username"`
	Email       string         `gorm:"unique;not null" json:"email"`
	Password    string         `gorm:"not null" json:"-"`
	IsAdmin     bool           `gorm:"default:false" json:"is_admin"`
	IsSuperuser bool           `gorm:"default:false" json:"is_superuser"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Identity returns the caller identity derived from the account.
func (u *User) Identity() Identity {
	return Identity{
		UserID:      u.ID,
		IsAdmin:     u.IsAdmin,
		IsSuperuser: u.IsSuperuser,
	}
}
