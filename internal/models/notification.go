package models

import "time"

// NotificationKind drives how the UI renders a notification
type NotificationKind string

const (
	KindSuccess NotificationKind = "success"
	KindInfo    NotificationKind = "info"
	KindWarning NotificationKind = "warning"
	KindError   NotificationKind = "error"
)

// Notification is a user-facing message about a complaint transition
type Notification struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Kind        NotificationKind `json:"kind"`
	ComplaintID string           `json:"complaint_id,omitempty"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"created_at"`
}
