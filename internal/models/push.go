package models

import "time"

// PushSubscription is one registered web-push endpoint for a user. A user may
// hold several subscriptions (one per browser or device).
type PushSubscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dhKey"`
	AuthKey   string    `json:"authKey"`
	CreatedAt time.Time `json:"createdAt"`
}

// PushMessage is the notification content fanned out to a user's subscriptions.
type PushMessage struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Tag    string `json:"tag,omitempty"`
	URL    string `json:"url,omitempty"`
}

// PushResult records the per-subscription outcome of one fan-out.
type PushResult struct {
	SubscriptionID string `json:"subscriptionId"`
	Success        bool   `json:"success"`
	StatusCode     int    `json:"statusCode,omitempty"`
	Error          string `json:"error,omitempty"`
	Expired        bool   `json:"expired,omitempty"`
}

// NotificationStatus is the lifecycle state of a notification log entry.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// NotificationLog is the persisted record of one fan-out attempt.
type NotificationLog struct {
	ID          string             `json:"id"`
	UserID      string             `json:"userId"`
	Title       string             `json:"title"`
	Body        string             `json:"body"`
	Status      NotificationStatus `json:"status"`
	SentCount   int                `json:"sentCount"`
	FailedCount int                `json:"failedCount"`
	CreatedAt   time.Time          `json:"createdAt"`
}
