package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/CovertKeeper/internal/models"
)

type mockNoteRepo struct {
	CreateNoteFunc func(ctx context.Context, deviceID string, n models.Note) error
	ListNotesFunc  func(ctx context.Context, deviceID string) ([]models.Note, error)
	GetNoteFunc    func(ctx context.Context, deviceID, id string) (*models.Note, error)
	UpdateNoteFunc func(ctx context.Context, deviceID, id, title, content string, editedAt time.Time) error
	DeleteNoteFunc func(ctx context.Context, deviceID, id string) error
}

func (m *mockNoteRepo) CreateNote(ctx context.Context, deviceID string, n models.Note) error {
	return m.CreateNoteFunc(ctx, deviceID, n)
}
func (m *mockNoteRepo) ListNotes(ctx context.Context, deviceID string) ([]models.Note, error) {
	return m.ListNotesFunc(ctx, deviceID)
}
func (m *mockNoteRepo) GetNote(ctx context.Context, deviceID, id string) (*models.Note, error) {
	return m.GetNoteFunc(ctx, deviceID, id)
}
func (m *mockNoteRepo) UpdateNote(ctx context.Context, deviceID, id, title, content string, editedAt time.Time) error {
	return m.UpdateNoteFunc(ctx, deviceID, id, title, content, editedAt)
}
func (m *mockNoteRepo) DeleteNote(ctx context.Context, deviceID, id string) error {
	return m.DeleteNoteFunc(ctx, deviceID, id)
}

func TestNotes_Lifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := memService()

	n, err := svc.CreateNote(ctx, "dev1", "  ", "body")
	require.NoError(t, err)
	assert.Equal(t, "note-1", n.ID)
	assert.Equal(t, DefaultNoteTitle, n.Title)
	assert.Equal(t, fixedNow, n.CreatedAt)
	assert.Equal(t, fixedNow, n.LastEditedAt)

	svc.newID = func() string { return "note-2" }
	_, err = svc.CreateNote(ctx, "dev1", "Second", "")
	require.NoError(t, err)

	later := fixedNow.Add(time.Minute)
	svc.now = func() time.Time { return later }
	updated, err := svc.UpdateNote(ctx, "dev1", "note-1", "Groceries", "milk")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", updated.Title)
	assert.Equal(t, fixedNow, updated.CreatedAt)
	assert.Equal(t, later, updated.LastEditedAt)

	list, err := svc.ListNotes(ctx, "dev1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "note-1", list[0].ID)

	require.NoError(t, svc.DeleteNote(ctx, "dev1", "note-1"))
	_, err = svc.GetNote(ctx, "dev1", "note-1")
	assert.ErrorIs(t, err, ErrNoteNotFound)

	_, err = svc.UpdateNote(ctx, "dev1", "note-1", "x", "y")
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestNotes_StoreUnavailable(t *testing.T) {
	boom := errors.New("timeout")
	notes := &mockNoteRepo{
		CreateNoteFunc: func(ctx context.Context, deviceID string, n models.Note) error { return boom },
		ListNotesFunc:  func(ctx context.Context, deviceID string) ([]models.Note, error) { return nil, boom },
		GetNoteFunc:    func(ctx context.Context, deviceID, id string) (*models.Note, error) { return nil, boom },
		DeleteNoteFunc: func(ctx context.Context, deviceID, id string) error { return boom },
	}
	svc := newTestService(nil, notes)
	ctx := context.Background()

	_, err := svc.CreateNote(ctx, "dev1", "t", "c")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, boom)

	_, err = svc.ListNotes(ctx, "dev1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = svc.GetNote(ctx, "dev1", "n")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	assert.ErrorIs(t, svc.DeleteNote(ctx, "dev1", "n"), ErrStoreUnavailable)
}
