package models

import "time"

// ScanItem is one booking-control element read from the page. Identity is
// positional only.
type ScanItem struct {
	Text     string `json:"text"`
	IsBooked bool   `json:"is_booked"`
	Index    int    `json:"index"`
}

// ScanResult is a point-in-time read of the booking controls for one profile.
type ScanResult struct {
	ProfileID    string     `json:"profile_id"`
	ProfileName  string     `json:"profile_name"`
	Total        int        `json:"total"`
	Booked       int        `json:"booked"`
	Unclassified int        `json:"unclassified"`
	Available    []ScanItem `json:"available"`
	ScannedAt    time.Time  `json:"scanned_at"`
	Duration     time.Duration

	// Apartments carries detailed per-unit records when the page exposes
	// them. Usually empty: the booking controls alone give no unit data,
	// so the detector synthesizes position-based records instead.
	Apartments []ScrapedApartment `json:"apartments,omitempty"`
}

func (r *ScanResult) AvailableCount() int {
	return len(r.Available)
}

// ScanError marks a scan-level failure (navigation, timeout, DOM shape).
// Callers must treat it as "no data", never as zero availability.
type ScanError struct {
	ProfileID string
	Message   string
	Err       error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
