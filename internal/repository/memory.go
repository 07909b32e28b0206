package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/atinyakov/CovertKeeper/internal/models"
)

// MemoryRepository keeps profiles and notes in process memory.
// Used when no database is configured or the database is unreachable;
// nothing survives a restart.
type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]models.ProfileDocument  // deviceID -> document
	notes    map[string]map[string]models.Note // deviceID -> noteID -> note
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		profiles: map[string]models.ProfileDocument{},
		notes:    map[string]map[string]models.Note{},
	}
}

func (r *MemoryRepository) GetProfile(_ context.Context, deviceID string) (*models.ProfileDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.profiles[deviceID]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyDocument(doc)
	return &out, nil
}

func (r *MemoryRepository) InsertProfile(_ context.Context, p *models.UserProfile) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[p.DeviceID]; ok {
		return false, nil
	}
	var pin *string
	if p.PIN != "" {
		pin = ptr(p.PIN)
	}
	r.profiles[p.DeviceID] = models.ProfileDocument{
		DeviceID:          p.DeviceID,
		Name:              ptr(p.Name),
		PIN:               pin,
		EmergencyContacts: append([]models.EmergencyContact{}, p.EmergencyContacts...),
		NotesForEmergency: ptr(p.NotesForEmergency),
		AppendLocation:    ptr(p.AppendLocation),
		Theme:             ptr(string(p.Theme)),
		CreatedAt:         ptr(p.CreatedAt),
		LastAccessed:      ptr(p.LastAccessed),
	}
	return true, nil
}

func (r *MemoryRepository) UpdateProfile(_ context.Context, deviceID string, upd models.ProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := r.profiles[deviceID]
	doc.DeviceID = deviceID
	if upd.Name != nil {
		doc.Name = ptr(*upd.Name)
	}
	if upd.PIN != nil {
		doc.PIN = ptr(*upd.PIN)
	}
	if upd.EmergencyContacts != nil {
		doc.EmergencyContacts = append([]models.EmergencyContact{}, (*upd.EmergencyContacts)...)
	}
	if upd.NotesForEmergency != nil {
		doc.NotesForEmergency = ptr(*upd.NotesForEmergency)
	}
	if upd.AppendLocation != nil {
		doc.AppendLocation = ptr(*upd.AppendLocation)
	}
	if upd.Theme != nil {
		doc.Theme = ptr(string(*upd.Theme))
	}
	doc.LastAccessed = ptr(upd.LastAccessed)
	r.profiles[deviceID] = doc
	return nil
}

func (r *MemoryRepository) CreateNote(_ context.Context, deviceID string, n models.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.notes[deviceID] == nil {
		r.notes[deviceID] = map[string]models.Note{}
	}
	r.notes[deviceID][n.ID] = n
	return nil
}

func (r *MemoryRepository) ListNotes(_ context.Context, deviceID string) ([]models.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Note, 0, len(r.notes[deviceID]))
	for _, n := range r.notes[deviceID] {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastEditedAt.After(out[j].LastEditedAt)
	})
	return out, nil
}

func (r *MemoryRepository) GetNote(_ context.Context, deviceID, id string) (*models.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notes[deviceID][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (r *MemoryRepository) UpdateNote(_ context.Context, deviceID, id, title, content string, editedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notes[deviceID][id]
	if !ok {
		return ErrNotFound
	}
	n.Title = title
	n.Content = content
	n.LastEditedAt = editedAt
	r.notes[deviceID][id] = n
	return nil
}

func (r *MemoryRepository) DeleteNote(_ context.Context, deviceID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.notes[deviceID], id)
	return nil
}

func ptr[T any](v T) *T { return &v }

func copyDocument(d models.ProfileDocument) models.ProfileDocument {
	if d.EmergencyContacts != nil {
		d.EmergencyContacts = append([]models.EmergencyContact{}, d.EmergencyContacts...)
	}
	return d
}
