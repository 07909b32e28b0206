// Package repository provides persistence implementations for device
// profiles and notes using a PostgreSQL database.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/CovertKeeper/internal/models"
)

// ErrNotFound is returned when the requested document does not exist.
var ErrNotFound = errors.New("repository: not found")

// PostgresProfileRepository stores one profile document per device.
type PostgresProfileRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresProfileRepository creates a PostgresProfileRepository using the provided *sql.DB.
func NewPostgresProfileRepository(db *sql.DB) *PostgresProfileRepository {
	return &PostgresProfileRepository{DB: db}
}

// GetProfile fetches the raw profile document for deviceID.
// Columns that were never written come back as nil fields.
// Returns ErrNotFound if no document exists.
func (r *PostgresProfileRepository) GetProfile(ctx context.Context, deviceID string) (*models.ProfileDocument, error) {
	var (
		name, pin, notes, theme sql.NullString
		contacts                []byte
		appendLocation          sql.NullBool
		createdAt, lastAccessed sql.NullTime
	)
	doc := &models.ProfileDocument{}
	err := r.DB.QueryRowContext(ctx, `
		SELECT device_id, name, pin, emergency_contacts, notes_for_emergency, append_location, theme, created_at, last_accessed
		FROM users WHERE device_id = $1
	`, deviceID).Scan(&doc.DeviceID, &name, &pin, &contacts, &notes, &appendLocation, &theme, &createdAt, &lastAccessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetProfile: %w", err)
	}

	if len(contacts) > 0 {
		if err := json.Unmarshal(contacts, &doc.EmergencyContacts); err != nil {
			return nil, fmt.Errorf("GetProfile: decode contacts: %w", err)
		}
	}
	doc.Name = nullString(name)
	doc.PIN = nullString(pin)
	doc.NotesForEmergency = nullString(notes)
	doc.Theme = nullString(theme)
	if appendLocation.Valid {
		doc.AppendLocation = &appendLocation.Bool
	}
	if createdAt.Valid {
		doc.CreatedAt = &createdAt.Time
	}
	if lastAccessed.Valid {
		doc.LastAccessed = &lastAccessed.Time
	}
	return doc, nil
}

// InsertProfile writes a brand-new profile document. An existing document
// for the same device is left untouched and created is false.
func (r *PostgresProfileRepository) InsertProfile(ctx context.Context, p *models.UserProfile) (bool, error) {
	contacts, err := json.Marshal(nonNilContacts(p.EmergencyContacts))
	if err != nil {
		return false, fmt.Errorf("InsertProfile: encode contacts: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (device_id, name, pin, emergency_contacts, notes_for_emergency, append_location, theme, created_at, last_accessed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (device_id) DO NOTHING
	`, p.DeviceID, p.Name, nullableString(p.PIN), string(contacts), p.NotesForEmergency, p.AppendLocation, string(p.Theme), p.CreatedAt, p.LastAccessed)
	if err != nil {
		return false, fmt.Errorf("InsertProfile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("InsertProfile: %w", err)
	}
	return n == 1, nil
}

// UpdateProfile merge-writes the supplied fields and last_accessed.
// A missing document is created holding only those fields.
func (r *PostgresProfileRepository) UpdateProfile(ctx context.Context, deviceID string, upd models.ProfileUpdate) error {
	cols := []string{"device_id"}
	args := []any{deviceID}

	add := func(col string, v any) {
		cols = append(cols, col)
		args = append(args, v)
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.PIN != nil {
		add("pin", *upd.PIN)
	}
	if upd.EmergencyContacts != nil {
		b, err := json.Marshal(nonNilContacts(*upd.EmergencyContacts))
		if err != nil {
			return fmt.Errorf("UpdateProfile: encode contacts: %w", err)
		}
		add("emergency_contacts", string(b))
	}
	if upd.NotesForEmergency != nil {
		add("notes_for_emergency", *upd.NotesForEmergency)
	}
	if upd.AppendLocation != nil {
		add("append_location", *upd.AppendLocation)
	}
	if upd.Theme != nil {
		add("theme", string(*upd.Theme))
	}
	add("last_accessed", upd.LastAccessed)

	_, err := r.DB.ExecContext(ctx, buildMergeQuery(cols), args...)
	if err != nil {
		return fmt.Errorf("UpdateProfile: %w", err)
	}
	return nil
}

// buildMergeQuery renders an upsert that only overwrites cols[1:].
func buildMergeQuery(cols []string) string {
	placeholders := make([]string, len(cols))
	sets := make([]string, 0, len(cols)-1)
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if i > 0 {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}
	return fmt.Sprintf(
		"INSERT INTO users (%s) VALUES (%s) ON CONFLICT (device_id) DO UPDATE SET %s",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(sets, ", "),
	)
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNilContacts(c []models.EmergencyContact) []models.EmergencyContact {
	if c == nil {
		return []models.EmergencyContact{}
	}
	return c
}
