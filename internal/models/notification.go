package models

import (
	"time"
)

// Notification categories.
const (
	NotificationTypeSystem = "system"
	NotificationTypeCourse = "course"
	NotificationTypeGrade  = "grade"
)

// Notification is an in-app message addressed to one user, or to everyone
// connected when UserID is nil.
type Notification struct {
	BaseModel

	UserID  *uint64 `gorm:"index" json:"user_id"`
	User    *User   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Type    string  `gorm:"type:varchar(32);not null;default:'system'" json:"type"`
	Title   string  `gorm:"type:varchar(255);not null" json:"title"`
	Content string  `gorm:"type:text" json:"content"`

	IsRead bool       `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}

// IsBroadcast reports whether the notification has no target user.
func (n *Notification) IsBroadcast() bool {
	return n.UserID == nil
}

// ValidNotificationType reports whether t is a known category.
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationTypeSystem, NotificationTypeCourse, NotificationTypeGrade:
		return true
	default:
		return false
	}
}
