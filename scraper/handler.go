package scraper

import (
	"context"

	"kvartaly_monitor/config"
	"kvartaly_monitor/models"
)

// Scanner reads one point-in-time snapshot of booking controls for a profile.
// Implementations own a singleton browser resource and are not safe for
// concurrent scans; the scheduler serializes calls.
type Scanner interface {
	Scan(ctx context.Context, profile *config.SearchProfile) (*models.ScanResult, error)
	Close() error
}
