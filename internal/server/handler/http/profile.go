// Package http provides the HTTP API over device profiles, notes,
// location resolution and SOS dispatch.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/middleware"
	"github.com/atinyakov/CovertKeeper/internal/models"
)

// ProfileService defines the profile operations required by ProfileHandler.
// It is satisfied by *service.ProfileService.
type ProfileService interface {
	CreateOrUpdateProfile(ctx context.Context, deviceID string) (*models.UserProfile, error)
	// GetProfile returns nil with a nil error when no profile exists.
	GetProfile(ctx context.Context, deviceID string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, deviceID string, upd models.ProfileUpdate) error
	CompleteSetup(ctx context.Context, deviceID, pin, confirm string) (*models.UserProfile, error)
	AddContact(ctx context.Context, deviceID string, c models.EmergencyContact) ([]models.EmergencyContact, error)
	RemoveContact(ctx context.Context, deviceID string, index int) ([]models.EmergencyContact, error)
}

// ProfileHandler handles HTTP requests for the device profile.
type ProfileHandler struct {
	ProfileService ProfileService
	Logger         *zap.Logger
}

// SetupRequest is the first-run setup payload.
type SetupRequest struct {
	PIN        string `json:"pin"`
	ConfirmPIN string `json:"confirm_pin"`
}

// Touch handles POST /api/profile: creates the profile with defaults or
// refreshes its lastAccessed.
func (h *ProfileHandler) Touch(w http.ResponseWriter, r *http.Request) {
	p, err := h.ProfileService.CreateOrUpdateProfile(r.Context(), middleware.GetDeviceIDFromContext(r.Context()))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Get handles GET /api/profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.ProfileService.GetProfile(r.Context(), middleware.GetDeviceIDFromContext(r.Context()))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if p == nil {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Update handles PATCH /api/profile. Only the supplied fields are written.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var upd models.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.ProfileService.UpdateProfile(r.Context(), middleware.GetDeviceIDFromContext(r.Context()), upd); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Setup handles POST /api/setup.
func (h *ProfileHandler) Setup(w http.ResponseWriter, r *http.Request) {
	var req SetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	p, err := h.ProfileService.CompleteSetup(r.Context(), middleware.GetDeviceIDFromContext(r.Context()), req.PIN, req.ConfirmPIN)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// AddContact handles POST /api/profile/contacts.
func (h *ProfileHandler) AddContact(w http.ResponseWriter, r *http.Request) {
	var c models.EmergencyContact
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Phone == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	contacts, err := h.ProfileService.AddContact(r.Context(), middleware.GetDeviceIDFromContext(r.Context()), c)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, contacts)
}

// RemoveContact handles DELETE /api/profile/contacts/{index}.
func (h *ProfileHandler) RemoveContact(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}
	if _, err := h.ProfileService.RemoveContact(r.Context(), middleware.GetDeviceIDFromContext(r.Context()), index); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
