package models

import (
	"time"
)

// RateCounter is a fixed-window request counter shared by every server instance.
type RateCounter struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Count     int64     `gorm:"not null;default:0"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
