package models

import "time"

// Subscriber is a Telegram chat opted in to alerts. Soft-deleted via
// IsActive so re-subscription reactivates the same row.
type Subscriber struct {
	ID           int64     `json:"id" db:"id"`
	ChatID       string    `json:"chat_id" db:"chat_id"`
	Username     string    `json:"username" db:"username"`
	FirstName    string    `json:"first_name" db:"first_name"`
	SubscribedAt time.Time `json:"subscribed_at" db:"subscribed_at"`
	IsActive     bool      `json:"is_active" db:"is_active"`
}
