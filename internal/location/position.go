package location

import (
	"context"

	"github.com/atinyakov/CovertKeeper/internal/models"
)

// FixedPosition is a PositionSource that always reports the same fix.
// The terminal client builds one from configuration and the HTTP API
// builds one per request from the device's report.
type FixedPosition struct {
	Coordinates models.Coordinates
	Denied      bool
}

// RequestPermission implements PositionSource.
func (f FixedPosition) RequestPermission(context.Context) (bool, error) {
	return !f.Denied, nil
}

// CurrentPosition implements PositionSource.
func (f FixedPosition) CurrentPosition(context.Context) (models.Coordinates, error) {
	if f.Denied {
		return models.Coordinates{}, ErrPermissionDenied
	}
	return f.Coordinates, nil
}
