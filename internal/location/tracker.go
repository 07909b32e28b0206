package location

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/cache"
	"github.com/atinyakov/CovertKeeper/internal/models"
)

// RefreshInterval is how often the covert surface re-resolves its location.
const RefreshInterval = 5 * time.Minute

// Locator is satisfied by Resolver.
type Locator interface {
	Resolve(ctx context.Context) models.ResolvedLocation
}

// Tracker keeps the device's latest ResolvedLocation in a LocationCache.
// Periodic refreshes and on-demand resolutions write independently;
// the most recent write wins.
type Tracker struct {
	deviceID string
	locator  Locator
	cache    cache.LocationCache
	logger   *zap.Logger
}

// NewTracker creates a Tracker for deviceID.
func NewTracker(deviceID string, locator Locator, c cache.LocationCache, logger *zap.Logger) *Tracker {
	return &Tracker{deviceID: deviceID, locator: locator, cache: c, logger: logger}
}

// Refresh resolves now and stores the result.
func (t *Tracker) Refresh(ctx context.Context) models.ResolvedLocation {
	loc := t.locator.Resolve(ctx)
	if err := t.cache.Set(ctx, t.deviceID, loc); err != nil {
		t.logger.Warn("failed to cache location", zap.Error(err))
	}
	return loc
}

// Current returns the cached location, if a fresh one exists.
func (t *Tracker) Current(ctx context.Context) (models.ResolvedLocation, bool) {
	loc, err := t.cache.Get(ctx, t.deviceID)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			t.logger.Warn("failed to read cached location", zap.Error(err))
		}
		return models.ResolvedLocation{}, false
	}
	return loc, true
}

// ForDispatch returns a fresh cached location with an address, or resolves
// synchronously when there is none.
func (t *Tracker) ForDispatch(ctx context.Context) models.ResolvedLocation {
	if loc, ok := t.Current(ctx); ok && loc.Available {
		return loc
	}
	return t.Refresh(ctx)
}

// Start refreshes immediately and then every interval until ctx is done.
func (t *Tracker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		t.Refresh(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				loc := t.Refresh(ctx)
				t.logger.Debug("location refreshed", zap.Bool("available", loc.Available))
			}
		}
	}()
}
