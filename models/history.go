package models

import "time"

// ScanRecord is one row of scan history for a profile.
type ScanRecord struct {
	ID           int64     `json:"id" db:"id"`
	ProfileID    string    `json:"profile_id" db:"profile_id"`
	ProfileName  string    `json:"profile_name" db:"profile_name"`
	Total        int       `json:"total" db:"total"`
	Booked       int       `json:"booked" db:"booked"`
	Available    int       `json:"available" db:"available"`
	Unclassified int       `json:"unclassified" db:"unclassified"`
	Error        string    `json:"error" db:"error"`
	DurationMS   int64     `json:"duration_ms" db:"duration_ms"`
	ScannedAt    time.Time `json:"scanned_at" db:"scanned_at"`
}

// ProfileState is the aggregate baseline the detector diffs against.
// A missing row means the profile has never been scanned successfully.
type ProfileState struct {
	ProfileID     string    `json:"profile_id" db:"profile_id"`
	LastTotal     int       `json:"last_total" db:"last_total"`
	LastBooked    int       `json:"last_booked" db:"last_booked"`
	LastAvailable int       `json:"last_available" db:"last_available"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// MonitorStats is an aggregate snapshot for heartbeat and /status replies.
type MonitorStats struct {
	TotalScans     int
	FailedScans    int
	LastScanAt     *time.Time
	LastTotal      int
	LastBooked     int
	LastAvailable  int
	Subscribers    int
	ActiveProfiles int
}

// BotUsage records one bot command invocation.
type BotUsage struct {
	ID         int64     `json:"id" db:"id"`
	ChatID     string    `json:"chat_id" db:"chat_id"`
	Command    string    `json:"command" db:"command"`
	ExecutedAt time.Time `json:"executed_at" db:"executed_at"`
}
