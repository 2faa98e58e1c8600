package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"kvartaly_monitor/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS apartments (
		id INTEGER PRIMARY KEY,
		external_id TEXT NOT NULL,
		profile_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'unknown',
		price REAL,
		price_per_meter REAL,
		area REAL,
		floor INTEGER,
		rooms INTEGER,
		address TEXT,
		building TEXT,
		link TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(external_id, profile_id)
	);

	CREATE TABLE IF NOT EXISTS subscribers (
		id INTEGER PRIMARY KEY,
		chat_id TEXT NOT NULL UNIQUE,
		username TEXT,
		first_name TEXT,
		subscribed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS parsing_history (
		id INTEGER PRIMARY KEY,
		profile_id TEXT NOT NULL,
		profile_name TEXT NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		booked INTEGER NOT NULL DEFAULT 0,
		available INTEGER NOT NULL DEFAULT 0,
		unclassified INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		duration_ms INTEGER,
		scanned_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS profile_state (
		profile_id TEXT PRIMARY KEY,
		last_total INTEGER NOT NULL DEFAULT 0,
		last_booked INTEGER NOT NULL DEFAULT 0,
		last_available INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bot_usage (
		id INTEGER PRIMARY KEY,
		chat_id TEXT NOT NULL,
		command TEXT NOT NULL,
		executed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_apartments_profile ON apartments(profile_id);
	CREATE INDEX IF NOT EXISTS idx_apartments_status ON apartments(status);
	CREATE INDEX IF NOT EXISTS idx_subscribers_active ON subscribers(is_active);
	CREATE INDEX IF NOT EXISTS idx_history_profile ON parsing_history(profile_id, scanned_at);
	CREATE INDEX IF NOT EXISTS idx_bot_usage_chat ON bot_usage(chat_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) GetApartmentsByProfile(ctx context.Context, profileID string) (map[string]*models.Apartment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, external_id, profile_id, status, price, price_per_meter, area, floor, rooms,
			address, building, link, created_at, updated_at
		FROM apartments WHERE profile_id = ?`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apartments := make(map[string]*models.Apartment)
	for rows.Next() {
		apt, err := scanApartment(rows)
		if err != nil {
			return nil, err
		}
		apartments[apt.ExternalID] = apt
	}
	return apartments, rows.Err()
}

func scanApartment(rows *sql.Rows) (*models.Apartment, error) {
	var apt models.Apartment
	var price, ppm, area sql.NullFloat64
	var floor, roomCount sql.NullInt64
	var address, building, link sql.NullString
	err := rows.Scan(&apt.ID, &apt.ExternalID, &apt.ProfileID, &apt.Status,
		&price, &ppm, &area, &floor, &roomCount, &address, &building, &link,
		&apt.CreatedAt, &apt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if price.Valid {
		apt.Price = &price.Float64
	}
	if ppm.Valid {
		apt.PricePerMeter = &ppm.Float64
	}
	if area.Valid {
		apt.Area = &area.Float64
	}
	if floor.Valid {
		f := int(floor.Int64)
		apt.Floor = &f
	}
	if roomCount.Valid {
		r := int(roomCount.Int64)
		apt.Rooms = &r
	}
	apt.Address = address.String
	apt.Building = building.String
	apt.Link = link.String
	return &apt, nil
}

func (s *SQLiteStore) UpsertApartment(ctx context.Context, profileID string, apt *models.ScrapedApartment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO apartments (external_id, profile_id, status, price, price_per_meter, area, floor, rooms,
			address, building, link, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id, profile_id) DO UPDATE SET
			status = excluded.status,
			price = excluded.price,
			price_per_meter = excluded.price_per_meter,
			area = excluded.area,
			floor = excluded.floor,
			rooms = excluded.rooms,
			address = excluded.address,
			building = excluded.building,
			link = excluded.link,
			updated_at = MAX(excluded.updated_at, updated_at)`,
		apt.ExternalID, profileID, apt.Status, apt.Price, apt.PricePerMeter, apt.Area,
		apt.Floor, apt.Rooms, apt.Address, apt.Building, apt.Link, time.Now().UTC())
	return err
}

func (s *SQLiteStore) GetProfileState(ctx context.Context, profileID string) (*models.ProfileState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT profile_id, last_total, last_booked, last_available, updated_at
		FROM profile_state WHERE profile_id = ?`, profileID)

	var st models.ProfileState
	err := row.Scan(&st.ProfileID, &st.LastTotal, &st.LastBooked, &st.LastAvailable, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SQLiteStore) SaveProfileState(ctx context.Context, state *models.ProfileState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profile_state (profile_id, last_total, last_booked, last_available, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(profile_id) DO UPDATE SET
			last_total = excluded.last_total,
			last_booked = excluded.last_booked,
			last_available = excluded.last_available,
			updated_at = excluded.updated_at`,
		state.ProfileID, state.LastTotal, state.LastBooked, state.LastAvailable, time.Now().UTC())
	return err
}

func (s *SQLiteStore) AddScanRecord(ctx context.Context, rec *models.ScanRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parsing_history (profile_id, profile_name, total, booked, available, unclassified,
			error, duration_ms, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ProfileID, rec.ProfileName, rec.Total, rec.Booked, rec.Available, rec.Unclassified,
		nullableString(rec.Error), rec.DurationMS, rec.ScannedAt)
	return err
}

func (s *SQLiteStore) GetRecentScans(ctx context.Context, limit int) ([]models.ScanRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, profile_name, total, booked, available, unclassified,
			COALESCE(error, ''), COALESCE(duration_ms, 0), scanned_at
		FROM parsing_history ORDER BY scanned_at DESC LIMIT ?`, limit)
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

func (s *SQLiteStore) AddSubscriber(ctx context.Context, chatID, username, firstName string) (bool, error) {
	var id int64
	var isActive bool
	err := s.db.QueryRowContext(ctx,
		`SELECT id, is_active FROM subscribers WHERE chat_id = ?`, chatID).Scan(&id, &isActive)
	if err == sql.ErrNoRows {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO subscribers (chat_id, username, first_name) VALUES (?, ?, ?)`,
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

	// Reactivate the soft-deleted row instead of duplicating it.
	_, err = s.db.ExecContext(ctx, `
		UPDATE subscribers SET is_active = TRUE, username = ?, first_name = ? WHERE chat_id = ?`,
		username, firstName, chatID)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) RemoveSubscriber(ctx context.Context, chatID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE subscribers SET is_active = FALSE WHERE chat_id = ? AND is_active = TRUE`, chatID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SQLiteStore) IsSubscriber(ctx context.Context, chatID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM subscribers WHERE chat_id = ? AND is_active = TRUE LIMIT 1`, chatID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) GetSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, `
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

func (s *SQLiteStore) GetSubscriberCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM subscribers WHERE is_active = TRUE`).Scan(&count)
	return count, err
}

func (s *SQLiteStore) RecordBotUsage(ctx context.Context, chatID, command string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_usage (chat_id, command) VALUES (?, ?)`, chatID, command)
	return err
}

// PruneHistory drops scan history older than the cutoff. Returns rows removed.
func (s *SQLiteStore) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM parsing_history WHERE scanned_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
