package events

import "github.com/charlesng35/campus/internal/models"

// TypeNotificationCreated is raised once a notification row is committed.
const TypeNotificationCreated = "notification.created"

// NotificationCreated carries the committed row.
type NotificationCreated struct {
	Notification models.Notification
}

func (NotificationCreated) EventType() string { return TypeNotificationCreated }
