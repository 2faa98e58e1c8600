package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"kvartaly_monitor/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 5
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS apartments (
		id BIGSERIAL PRIMARY KEY,
		external_id TEXT NOT NULL,
		profile_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'unknown',
		price NUMERIC,
		price_per_meter NUMERIC,
		area NUMERIC,
		floor INTEGER,
		rooms INTEGER,
		address TEXT,
		building TEXT,
		link TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(external_id, profile_id)
	);

	CREATE TABLE IF NOT EXISTS subscribers (
		id BIGSERIAL PRIMARY KEY,
		chat_id TEXT NOT NULL UNIQUE,
		username TEXT,
		first_name TEXT,
		subscribed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS parsing_history (
		id BIGSERIAL PRIMARY KEY,
		profile_id TEXT NOT NULL,
		profile_name TEXT NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		booked INTEGER NOT NULL DEFAULT 0,
		available INTEGER NOT NULL DEFAULT 0,
		unclassified INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		duration_ms BIGINT,
		scanned_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS profile_state (
		profile_id TEXT PRIMARY KEY,
		last_total INTEGER NOT NULL DEFAULT 0,
		last_booked INTEGER NOT NULL DEFAULT 0,
		last_available INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS bot_usage (
		id BIGSERIAL PRIMARY KEY,
		chat_id TEXT NOT NULL,
		command TEXT NOT NULL,
		executed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_apartments_profile ON apartments(profile_id);
	CREATE INDEX IF NOT EXISTS idx_subscribers_active ON subscribers(is_active);
	CREATE INDEX IF NOT EXISTS idx_history_profile ON parsing_history(profile_id, scanned_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) GetApartmentsByProfile(ctx context.Context, profileID string) (map[string]*models.Apartment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, external_id, profile_id, status, price, price_per_meter, area, floor, rooms,
			COALESCE(address, ''), COALESCE(building, ''), COALESCE(link, ''), created_at, updated_at
		FROM apartments WHERE profile_id = $1`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apartments := make(map[string]*models.Apartment)
	for rows.Next() {
		var apt models.Apartment
		if err := rows.Scan(&apt.ID, &apt.ExternalID, &apt.ProfileID, &apt.Status,
			&apt.Price, &apt.PricePerMeter, &apt.Area, &apt.Floor, &apt.Rooms,
			&apt.Address, &apt.Building, &apt.Link, &apt.CreatedAt, &apt.UpdatedAt); err != nil {
			return nil, err
		}
		apartments[apt.ExternalID] = &apt
	}
	return apartments, rows.Err()
}

func (s *PostgresStore) UpsertApartment(ctx context.Context, profileID string, apt *models.ScrapedApartment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO apartments (external_id, profile_id, status, price, price_per_meter, area, floor, rooms,
			address, building, link, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (external_id, profile_id) DO UPDATE SET
			status = EXCLUDED.status,
			price = EXCLUDED.price,
			price_per_meter = EXCLUDED.price_per_meter,
			area = EXCLUDED.area,
			floor = EXCLUDED.floor,
			rooms = EXCLUDED.rooms,
			address = EXCLUDED.address,
			building = EXCLUDED.building,
			link = EXCLUDED.link,
			updated_at = GREATEST(NOW(), apartments.updated_at)`,
		apt.ExternalID, profileID, apt.Status, apt.Price, apt.PricePerMeter, apt.Area,
		apt.Floor, apt.Rooms, apt.Address, apt.Building, apt.Link)
	return err
}

func (s *PostgresStore) GetProfileState(ctx context.Context, profileID string) (*models.ProfileState, error) {
	var st models.ProfileState
	err := s.pool.QueryRow(ctx, `
		SELECT profile_id, last_total, last_booked, last_available, updated_at
		FROM profile_state WHERE profile_id = $1`, profileID).Scan(
		&st.ProfileID, &st.LastTotal, &st.LastBooked, &st.LastAvailable, &st.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *PostgresStore) SaveProfileState(ctx context.Context, state *models.ProfileState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profile_state (profile_id, last_total, last_booked, last_available, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (profile_id) DO UPDATE SET
			last_total = EXCLUDED.last_total,
			last_booked = EXCLUDED.last_booked,
			last_available = EXCLUDED.last_available,
			updated_at = NOW()`,
		state.ProfileID, state.LastTotal, state.LastBooked, state.LastAvailable)
	return err
}

func (s *PostgresStore) AddScanRecord(ctx context.Context, rec *models.ScanRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO parsing_history (profile_id, profile_name, total, booked, available, unclassified,
			error, duration_ms, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		rec.ProfileID, rec.ProfileName, rec.Total, rec.Booked, rec.Available, rec.Unclassified,
		rec.Error, rec.DurationMS, rec.ScannedAt)
	return err
}

func (s *PostgresStore) GetRecentScans(ctx context.Context, limit int) ([]models.ScanRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, profile_id, profile_name, total, booked, available, unclassified,
			COALESCE(error, ''), COALESCE(duration_ms, 0), scanned_at
		FROM parsing_history ORDER BY scanned_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ScanRecord
	for rows.Next() {
		var rec models.ScanRecord
		if err := rows.Scan(&rec.ID, &rec.ProfileID, &rec.ProfileName, &rec.Total, &rec.Booked,
			&rec.Available, &rec.Unclassified, &rec.Error, &rec.DurationMS, &rec.ScannedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) AddSubscriber(ctx context.Context, chatID, username, firstName string) (bool, error) {
	var id int64
	var isActive bool
	err := s.pool.QueryRow(ctx,
		`SELECT id, is_active FROM subscribers WHERE chat_id = $1`, chatID).Scan(&id, &isActive)
	if err == pgx.ErrNoRows {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO subscribers (chat_id, username, first_name) VALUES ($1, $2, $3)`,
			chatID, username, firstName)
		if err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if isActive {
		return false, nil
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE subscribers SET is_active = TRUE, username = $2, first_name = $3 WHERE chat_id = $1`,
		chatID, username, firstName)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) RemoveSubscriber(ctx context.Context, chatID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE subscribers SET is_active = FALSE WHERE chat_id = $1 AND is_active = TRUE`, chatID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) IsSubscriber(ctx context.Context, chatID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, `
		SELECT 1 FROM subscribers WHERE chat_id = $1 AND is_active = TRUE LIMIT 1`, chatID).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) GetSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, chat_id, COALESCE(username, ''), COALESCE(first_name, ''), subscribed_at, is_active
		FROM subscribers WHERE is_active = TRUE ORDER BY subscribed_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.Subscriber
	for rows.Next() {
		var sub models.Subscriber
		if err := rows.Scan(&sub.ID, &sub.ChatID, &sub.Username, &sub.FirstName,
			&sub.SubscribedAt, &sub.IsActive); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *PostgresStore) GetSubscriberCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM subscribers WHERE is_active = TRUE`).Scan(&count)
	return count, err
}

func (s *PostgresStore) RecordBotUsage(ctx context.Context, chatID, command string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bot_usage (chat_id, command) VALUES ($1, $2)`, chatID, command)
	return err
}

// PruneHistory drops scan history older than the cutoff. Returns rows removed.
func (s *PostgresStore) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM parsing_history WHERE scanned_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
