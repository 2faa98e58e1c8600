package storage

import (
	"context"
	"time"

	"kvartaly_monitor/models"
)

// Store is the narrow persistence contract the rest of the daemon talks to.
// Both the SQLite and Postgres implementations satisfy it; selection happens
// once at startup.
type Store interface {
	// Tracked apartments, unique on (external_id, profile_id).
	GetApartmentsByProfile(ctx context.Context, profileID string) (map[string]*models.Apartment, error)
	UpsertApartment(ctx context.Context, profileID string, apt *models.ScrapedApartment) error

	// Aggregate scan baseline per profile.
	GetProfileState(ctx context.Context, profileID string) (*models.ProfileState, error)
	SaveProfileState(ctx context.Context, state *models.ProfileState) error

	// Scan history.
	AddScanRecord(ctx context.Context, rec *models.ScanRecord) error
	GetRecentScans(ctx context.Context, limit int) ([]models.ScanRecord, error)
	PruneHistory(ctx context.Context, before time.Time) (int64, error)

	// Subscribers, soft-deleted via is_active.
	AddSubscriber(ctx context.Context, chatID, username, firstName string) (bool, error)
	RemoveSubscriber(ctx context.Context, chatID string) (bool, error)
	IsSubscriber(ctx context.Context, chatID string) (bool, error)
	GetSubscribers(ctx context.Context) ([]models.Subscriber, error)
	GetSubscriberCount(ctx context.Context) (int, error)

	// Bot command analytics.
	RecordBotUsage(ctx context.Context, chatID, command string) error

	Close() error
}
