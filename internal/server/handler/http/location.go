package http

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/cache"
	"github.com/atinyakov/CovertKeeper/internal/location"
	"github.com/atinyakov/CovertKeeper/internal/middleware"
	"github.com/atinyakov/CovertKeeper/internal/models"
)

// PositionReport is the device's own position fix. The server cannot read a
// device's position, so every location-bearing request carries one.
type PositionReport struct {
	PermissionGranted bool    `json:"permission_granted"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
}

// LocationHandler resolves reported positions into addresses and keeps the
// latest result per device in Cache.
type LocationHandler struct {
	Geocoder location.Geocoder
	Cache    cache.LocationCache
	// Timeout bounds each reverse-geocoding request.
	Timeout time.Duration
	Logger  *zap.Logger
}

// tracker builds a per-request Tracker over the shared cache.
func (h *LocationHandler) tracker(deviceID string, rep PositionReport) *location.Tracker {
	pos := location.FixedPosition{
		Coordinates: models.Coordinates{Latitude: rep.Latitude, Longitude: rep.Longitude},
		Denied:      !rep.PermissionGranted,
	}
	resolver := location.NewResolver(pos, h.Geocoder, h.Timeout, h.Logger)
	return location.NewTracker(deviceID, resolver, h.Cache, h.Logger)
}

// Resolve handles POST /api/location: it resolves the reported position,
// caches it and returns the ResolvedLocation.
func (h *LocationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var rep PositionReport
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	loc := h.tracker(middleware.GetDeviceIDFromContext(r.Context()), rep).Refresh(r.Context())
	writeJSON(w, http.StatusOK, loc)
}
