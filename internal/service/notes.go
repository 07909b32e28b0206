package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atinyakov/CovertKeeper/internal/models"
	"github.com/atinyakov/CovertKeeper/internal/repository"
)

// DefaultNoteTitle is used when a note is saved without a title.
const DefaultNoteTitle = "Untitled Note"

// NoteRepository defines the note collection operations needed by ProfileService.
type NoteRepository interface {
	CreateNote(ctx context.Context, deviceID string, n models.Note) error
	// ListNotes returns notes ordered by last edit, newest first.
	ListNotes(ctx context.Context, deviceID string) ([]models.Note, error)
	GetNote(ctx context.Context, deviceID, id string) (*models.Note, error)
	UpdateNote(ctx context.Context, deviceID, id, title, content string, editedAt time.Time) error
	DeleteNote(ctx context.Context, deviceID, id string) error
}

// CreateNote stores a new note with both timestamps set to now.
func (s *ProfileService) CreateNote(ctx context.Context, deviceID, title, content string) (*models.Note, error) {
	now := s.now()
	n := models.Note{
		ID:           s.newID(),
		Title:        noteTitle(title),
		Content:      content,
		CreatedAt:    now,
		LastEditedAt: now,
	}
	if err := s.notes.CreateNote(ctx, deviceID, n); err != nil {
		return nil, s.storeErr("create note", err)
	}
	return &n, nil
}

// ListNotes returns the device's notes, most recently edited first.
func (s *ProfileService) ListNotes(ctx context.Context, deviceID string) ([]models.Note, error) {
	notes, err := s.notes.ListNotes(ctx, deviceID)
	if err != nil {
		return nil, s.storeErr("list notes", err)
	}
	return notes, nil
}

// GetNote returns one note or ErrNoteNotFound.
func (s *ProfileService) GetNote(ctx context.Context, deviceID, id string) (*models.Note, error) {
	n, err := s.notes.GetNote(ctx, deviceID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, s.storeErr("get note", err)
	}
	return n, nil
}

// UpdateNote rewrites a note and refreshes its lastEditedAt.
func (s *ProfileService) UpdateNote(ctx context.Context, deviceID, id, title, content string) (*models.Note, error) {
	title = noteTitle(title)
	now := s.now()
	err := s.notes.UpdateNote(ctx, deviceID, id, title, content, now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, s.storeErr("update note", err)
	}
	return s.GetNote(ctx, deviceID, id)
}

// DeleteNote removes a note permanently.
func (s *ProfileService) DeleteNote(ctx context.Context, deviceID, id string) error {
	if err := s.notes.DeleteNote(ctx, deviceID, id); err != nil {
		return s.storeErr("delete note", err)
	}
	return nil
}

func noteTitle(title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return DefaultNoteTitle
}
