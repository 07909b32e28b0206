package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/app"
	"github.com/atinyakov/CovertKeeper/internal/middleware"
	"github.com/atinyakov/CovertKeeper/internal/models"
)

// Trigger runs the emergency flow; satisfied by *app.Emergency.
type Trigger interface {
	Trigger(ctx context.Context, deviceID string, profile *models.UserProfile, locations app.LocationSource) app.Result
}

// ProfileReader loads the device profile for dispatch.
type ProfileReader interface {
	GetProfile(ctx context.Context, deviceID string) (*models.UserProfile, error)
}

// SOSHandler handles remote SOS triggers.
type SOSHandler struct {
	Profiles  ProfileReader
	Emergency Trigger
	Locations *LocationHandler
	Logger    *zap.Logger
}

// Trigger handles POST /api/sos. The dispatch outcome is always reported
// with 200; a missing profile or contact list is a failed outcome, not an
// HTTP error. An unreadable profile is treated as a missing one.
func (h *SOSHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var rep PositionReport
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), app.TriggerTimeout)
	defer cancel()

	deviceID := middleware.GetDeviceIDFromContext(ctx)
	p, err := h.Profiles.GetProfile(ctx, deviceID)
	if err != nil {
		h.Logger.Warn("profile unavailable for sos", zap.Error(err))
		p = nil
	}

	res := h.Emergency.Trigger(ctx, deviceID, p, h.Locations.tracker(deviceID, rep))
	writeJSON(w, http.StatusOK, res)
}
