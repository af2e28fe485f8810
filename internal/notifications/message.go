// Package notifications moves committed notification rows to connected
// clients: the relay enqueues ids after commit, the consumer re-reads rows
// from the store and the router hands them to the real-time transport.
package notifications

import (
	"time"

	"github.com/charlesng35/campus/internal/models"
)

// Message is the payload pushed to clients. Timestamp is milliseconds since
// the Unix epoch, taken from the row's creation time.
type Message struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// MessageFrom builds the client payload for a stored notification.
func MessageFrom(n *models.Notification) Message {
	ts := n.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	kind := n.Type
	if kind == "" {
		kind = models.NotificationTypeSystem
	}
	return Message{
		Title:     n.Title,
		Content:   n.Content,
		Type:      kind,
		Timestamp: ts.UnixMilli(),
	}
}
