// Package profile reads the user data routines need to resolve places:
// work and home addresses with their coordinates.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrProfileNotFound is returned when a user has no profile row.
var ErrProfileNotFound = errors.New("profile: not found")

// Place is an address with optional coordinates.
type Place struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// HasCoordinates reports whether both coordinates are known.
func (p *Place) HasCoordinates() bool {
	return p != nil && p.Lat != nil && p.Lng != nil
}

// Profile holds the per-user settings routines read.
type Profile struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName,omitempty"`
	Work        *Place    `json:"work,omitempty"`
	Home        *Place    `json:"home,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SQLiteRepository reads and writes the user_profiles table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetProfile returns the profile of userID.
func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, display_name, work_address, work_lat, work_lng,
			home_address, home_lat, home_lng, updated_at
		FROM user_profiles WHERE user_id = ?`, userID)

	var p Profile
	var displayName, workAddr, homeAddr sql.NullString
	var workLat, workLng, homeLat, homeLng sql.NullFloat64
	var updatedAt string

	err := row.Scan(&p.UserID, &displayName, &workAddr, &workLat, &workLng,
		&homeAddr, &homeLat, &homeLng, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}

	p.DisplayName = displayName.String
	p.Work = place(workAddr, workLat, workLng)
	p.Home = place(homeAddr, homeLat, homeLng)
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		p.UpdatedAt = t
	}
	return &p, nil
}

// Upsert creates or replaces a profile.
func (r *SQLiteRepository) Upsert(ctx context.Context, p *Profile) error {
	if p.UserID == "" {
		return errors.New("profile: user id is required")
	}
	p.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	workAddr, workLat, workLng := columns(p.Work)
	homeAddr, homeLat, homeLng := columns(p.Home)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_profiles (
			user_id, display_name, work_address, work_lat, work_lng,
			home_address, home_lat, home_lng, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			display_name = excluded.display_name,
			work_address = excluded.work_address,
			work_lat = excluded.work_lat,
			work_lng = excluded.work_lng,
			home_address = excluded.home_address,
			home_lat = excluded.home_lat,
			home_lng = excluded.home_lng,
			updated_at = excluded.updated_at`,
		p.UserID, nullString(p.DisplayName), workAddr, workLat, workLng,
		homeAddr, homeLat, homeLng, p.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	return nil
}

func place(addr sql.NullString, lat, lng sql.NullFloat64) *Place {
	if !addr.Valid || addr.String == "" {
		return nil
	}
	p := &Place{Address: addr.String}
	if lat.Valid {
		p.Lat = &lat.Float64
	}
	if lng.Valid {
		p.Lng = &lng.Float64
	}
	return p
}

func columns(p *Place) (sql.NullString, sql.NullFloat64, sql.NullFloat64) {
	if p == nil {
		return sql.NullString{}, sql.NullFloat64{}, sql.NullFloat64{}
	}
	var lat, lng sql.NullFloat64
	if p.Lat != nil {
		lat = sql.NullFloat64{Float64: *p.Lat, Valid: true}
	}
	if p.Lng != nil {
		lng = sql.NullFloat64{Float64: *p.Lng, Valid: true}
	}
	return nullString(p.Address), lat, lng
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
