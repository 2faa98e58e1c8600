package models

import "time"

type ApartmentStatus string

const (
	StatusAvailable ApartmentStatus = "available"
	StatusBooked    ApartmentStatus = "booked"
	StatusSold      ApartmentStatus = "sold"
	StatusUnknown   ApartmentStatus = "unknown"
)

// Apartment is the persisted per-profile record of a tracked unit.
// Unique on (ExternalID, ProfileID).
type Apartment struct {
	ID            int64           `json:"id" db:"id"`
	ExternalID    string          `json:"external_id" db:"external_id"`
	ProfileID     string          `json:"profile_id" db:"profile_id"`
	Status        ApartmentStatus `json:"status" db:"status"`
	Price         *float64        `json:"price" db:"price"`
	PricePerMeter *float64        `json:"price_per_meter" db:"price_per_meter"`
	Area          *float64        `json:"area" db:"area"`
	Floor         *int            `json:"floor" db:"floor"`
	Rooms         *int            `json:"rooms" db:"rooms"`
	Address       string          `json:"address" db:"address"`
	Building      string          `json:"building" db:"building"`
	Link          string          `json:"link" db:"link"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// ScrapedApartment is one unit as observed in a single scan, before it is
// merged into the tracked state. The site exposes no stable identity, so
// ExternalID is synthetic (position-based) and best-effort only.
type ScrapedApartment struct {
	ExternalID    string          `json:"external_id"`
	Status        ApartmentStatus `json:"status"`
	Price         *float64        `json:"price"`
	PricePerMeter *float64        `json:"price_per_meter"`
	Area          *float64        `json:"area"`
	Floor         *int            `json:"floor"`
	Rooms         *int            `json:"rooms"`
	Address       string          `json:"address"`
	Building      string          `json:"building"`
	Link          string          `json:"link"`
}

type ChangeType string

const (
	ChangeNew         ChangeType = "new"
	ChangeAvailable   ChangeType = "available"
	ChangePriceChange ChangeType = "price_change"
)

// ApartmentChange is emitted by the detector and consumed immediately by the
// notification path. Never persisted.
type ApartmentChange struct {
	Type           ChangeType
	Apartment      ScrapedApartment
	PreviousPrice  *float64
	PreviousStatus ApartmentStatus
}
