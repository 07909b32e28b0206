// Package location turns a position fix into display and dispatch address
// strings, falling back to raw coordinates when geocoding is unavailable.
package location

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/models"
)

const (
	// TextPermissionDenied is shown when the user refused location access.
	TextPermissionDenied = "Location permission denied"
	// TextUnavailable is shown when no fix could be obtained.
	TextUnavailable = "Location unavailable"
	// TextNotShared is sent to dispatch when location sharing is off.
	TextNotShared = "Location not shared"
)

// ErrPermissionDenied is returned by position sources when access is refused.
var ErrPermissionDenied = errors.New("location permission denied")

// PositionSource acquires position fixes from the host.
type PositionSource interface {
	// RequestPermission asks for foreground location access.
	RequestPermission(ctx context.Context) (bool, error)
	// CurrentPosition returns a single fix.
	CurrentPosition(ctx context.Context) (models.Coordinates, error)
}

// Address holds the structured address components used for formatting.
type Address struct {
	HouseNumber string `json:"house_number"`
	Road        string `json:"road"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	State       string `json:"state"`
	Postcode    string `json:"postcode"`
}

// Locality returns the first non-empty of city, town and village.
func (a Address) Locality() string {
	switch {
	case a.City != "":
		return a.City
	case a.Town != "":
		return a.Town
	default:
		return a.Village
	}
}

// Geocoder reverse-geocodes a coordinate. A nil address with a nil error
// means the service had no address for the point.
type Geocoder interface {
	Reverse(ctx context.Context, c models.Coordinates) (*Address, error)
}

// Resolver runs the permission, fix and reverse-geocode pipeline.
// Resolve never fails; every error degrades to a fallback string.
type Resolver struct {
	positions PositionSource
	geocoder  Geocoder
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewResolver builds a Resolver. timeout bounds each geocode call so a slow
// geocoder cannot hold up dispatch.
func NewResolver(positions PositionSource, geocoder Geocoder, timeout time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		positions: positions,
		geocoder:  geocoder,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

// Resolve returns the current ResolvedLocation.
func (r *Resolver) Resolve(ctx context.Context) models.ResolvedLocation {
	granted, err := r.positions.RequestPermission(ctx)
	if err != nil {
		r.logger.Warn("location permission request failed", zap.Error(err))
		return r.unavailable(TextUnavailable)
	}
	if !granted {
		return r.unavailable(TextPermissionDenied)
	}

	pos, err := r.positions.CurrentPosition(ctx)
	if errors.Is(err, ErrPermissionDenied) {
		return r.unavailable(TextPermissionDenied)
	}
	if err != nil {
		r.logger.Warn("position fix failed", zap.Error(err))
		return r.unavailable(TextUnavailable)
	}

	return r.describe(ctx, pos)
}

func (r *Resolver) describe(ctx context.Context, pos models.Coordinates) models.ResolvedLocation {
	coords := FormatCoordinates(pos)
	loc := models.ResolvedLocation{
		DisplayAddress:  coords,
		DetailedAddress: coords,
		Available:       true,
		ResolvedAt:      r.now(),
	}

	if r.geocoder == nil {
		return loc
	}
	gctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	addr, err := r.geocoder.Reverse(gctx, pos)
	if err != nil {
		r.logger.Warn("reverse geocode failed, using coordinates", zap.Error(err))
		return loc
	}
	if addr == nil {
		return loc
	}

	if d := DetailedAddress(*addr); d != "" {
		loc.DetailedAddress = d
	}
	if d := DisplayAddress(*addr); d != "" {
		loc.DisplayAddress = d
	}
	return loc
}

func (r *Resolver) unavailable(text string) models.ResolvedLocation {
	return models.ResolvedLocation{
		DisplayAddress: text,
		Available:      false,
		ResolvedAt:     r.now(),
	}
}

// DetailedAddress joins house number, road, locality, state and postcode.
func DetailedAddress(a Address) string {
	return joinParts(a.HouseNumber, a.Road, a.Locality(), a.State, a.Postcode)
}

// DisplayAddress joins road (or house number), locality and state.
func DisplayAddress(a Address) string {
	street := a.Road
	if street == "" {
		street = a.HouseNumber
	}
	return joinParts(street, a.Locality(), a.State)
}

func joinParts(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// FormatCoordinates renders c as "{|lat|}°{N/S}, {|lon|}°{E/W}" with four decimals.
func FormatCoordinates(c models.Coordinates) string {
	latDir, lonDir := "N", "E"
	if c.Latitude < 0 {
		latDir = "S"
	}
	if c.Longitude < 0 {
		lonDir = "W"
	}
	return fmt.Sprintf("%.4f°%s, %.4f°%s", math.Abs(c.Latitude), latDir, math.Abs(c.Longitude), lonDir)
}

// DispatchText picks the string sent with a dispatch call: the detailed
// address, else the display address, else TextUnavailable.
func DispatchText(loc models.ResolvedLocation) string {
	if !loc.Available {
		return TextUnavailable
	}
	if loc.DetailedAddress != "" {
		return loc.DetailedAddress
	}
	if loc.DisplayAddress != "" {
		return loc.DisplayAddress
	}
	return TextUnavailable
}
