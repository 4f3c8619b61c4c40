package model

import "time"

// NotificationKind identifies the template of an in-app notification.
type NotificationKind string

const (
	NotificationMediaReleased NotificationKind = "media_released"
	NotificationOwnerPassed   NotificationKind = "owner_passed"
)

// Notification is an in-app message stored for a user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"created_at"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
}
