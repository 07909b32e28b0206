package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/CovertKeeper/internal/models"
)

// PostgresNoteRepository stores the per-device note collection.
type PostgresNoteRepository struct {
	DB *sql.DB
}

// NewPostgresNoteRepository creates a PostgresNoteRepository using the provided *sql.DB.
func NewPostgresNoteRepository(db *sql.DB) *PostgresNoteRepository {
	return &PostgresNoteRepository{DB: db}
}

// CreateNote inserts n into the device's collection.
func (r *PostgresNoteRepository) CreateNote(ctx context.Context, deviceID string, n models.Note) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO notes (id, device_id, title, content, created_at, last_edited_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.ID, deviceID, n.Title, n.Content, n.CreatedAt, n.LastEditedAt)
	if err != nil {
		return fmt.Errorf("CreateNote: %w", err)
	}
	return nil
}

// ListNotes returns the device's notes, most recently edited first.
func (r *PostgresNoteRepository) ListNotes(ctx context.Context, deviceID string) ([]models.Note, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, title, content, created_at, last_edited_at
		FROM notes WHERE device_id = $1
		ORDER BY last_edited_at DESC
	`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("ListNotes: %w", err)
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.CreatedAt, &n.LastEditedAt); err != nil {
			return nil, fmt.Errorf("ListNotes: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListNotes: %w", err)
	}
	return notes, nil
}

// GetNote returns a single note or ErrNotFound.
func (r *PostgresNoteRepository) GetNote(ctx context.Context, deviceID, id string) (*models.Note, error) {
	var n models.Note
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, title, content, created_at, last_edited_at
		FROM notes WHERE device_id = $1 AND id = $2
	`, deviceID, id).Scan(&n.ID, &n.Title, &n.Content, &n.CreatedAt, &n.LastEditedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetNote: %w", err)
	}
	return &n, nil
}

// UpdateNote rewrites title and content and stamps last_edited_at.
// Returns ErrNotFound if the note does not exist.
func (r *PostgresNoteRepository) UpdateNote(ctx context.Context, deviceID, id, title, content string, editedAt time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE notes SET title = $1, content = $2, last_edited_at = $3
		WHERE device_id = $4 AND id = $5
	`, title, content, editedAt, deviceID, id)
	if err != nil {
		return fmt.Errorf("UpdateNote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateNote: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteNote removes a note. Deleting a missing note is not an error.
func (r *PostgresNoteRepository) DeleteNote(ctx context.Context, deviceID, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM notes WHERE device_id = $1 AND id = $2`, deviceID, id)
	if err != nil {
		return fmt.Errorf("DeleteNote: %w", err)
	}
	return nil
}
