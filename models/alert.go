package models

import "time"

// PendingAlert is the single in-flight, not-yet-acknowledged notification
// cycle. At most one exists at any time; raising a new alert replaces it.
type PendingAlert struct {
	ID            string
	ProfileName   string
	Result        *ScanResult
	SentAt        time.Time
	RemindersSent int
	Acknowledged  bool
}
