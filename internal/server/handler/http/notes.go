package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/middleware"
	"github.com/atinyakov/CovertKeeper/internal/models"
)

// NoteService defines the note operations required by NoteHandler.
type NoteService interface {
	CreateNote(ctx context.Context, deviceID, title, content string) (*models.Note, error)
	ListNotes(ctx context.Context, deviceID string) ([]models.Note, error)
	GetNote(ctx context.Context, deviceID, id string) (*models.Note, error)
	UpdateNote(ctx context.Context, deviceID, id, title, content string) (*models.Note, error)
	DeleteNote(ctx context.Context, deviceID, id string) error
}

// NoteHandler handles HTTP requests for the device's note collection.
type NoteHandler struct {
	NoteService NoteService
	Logger      *zap.Logger
}

// NoteRequest is the create and update payload.
type NoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// List handles GET /api/notes, most recently edited first.
func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.NoteService.ListNotes(r.Context(), middleware.GetDeviceIDFromContext(r.Context()))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// Create handles POST /api/notes.
func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	n, err := h.NoteService.CreateNote(r.Context(), middleware.GetDeviceIDFromContext(r.Context()), req.Title, req.Content)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// Get handles GET /api/notes/{id}.
func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	n, err := h.NoteService.GetNote(r.Context(), middleware.GetDeviceIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Update handles PUT /api/notes/{id}.
func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	n, err := h.NoteService.UpdateNote(r.Context(), middleware.GetDeviceIDFromContext(r.Context()), chi.URLParam(r, "id"), req.Title, req.Content)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Delete handles DELETE /api/notes/{id}. Deleting a missing note succeeds.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.NoteService.DeleteNote(r.Context(), middleware.GetDeviceIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
