package models

import (
	"time"
)

// Account states.
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User is a student, teacher or administrator account.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Password string `gorm:"not null" json:"-"`
	Nickname string `gorm:"size:128" json:"nickname"`
	Email    string `gorm:"size:255;index" json:"email"`
	Status   string `gorm:"size:16;not null;default:'active'" json:"status"`

	Roles []Role `gorm:"many2many:user_roles;" json:"roles,omitempty"`

	LastLoginAt    *time.Time `json:"last_login_at"`
	FailedAttempts int        `gorm:"not null;default:0" json:"-"`
	LockedUntil    *time.Time `json:"-"`
}

// HasRole reports whether the user's loaded roles contain name.
func (u *User) HasRole(name string) bool {
	for _, role := range u.Roles {
		if role.Name == name {
			return true
		}
	}
	return false
}

// RoleNames lists the loaded role names in their stored order.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		names = append(names, role.Name)
	}
	return names
}
