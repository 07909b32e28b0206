package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/cache"
	"github.com/atinyakov/CovertKeeper/internal/location"
	"github.com/atinyakov/CovertKeeper/internal/mode"
	"github.com/atinyakov/CovertKeeper/internal/models"
	"github.com/atinyakov/CovertKeeper/internal/repository"
	"github.com/atinyakov/CovertKeeper/internal/service"
	"github.com/atinyakov/CovertKeeper/internal/sos"
)

// ErrNotCovert is returned by covert-only actions outside covert mode.
var ErrNotCovert = errors.New("not available outside covert mode")

// TriggerTimeout bounds a whole SOS trigger, location and call included.
const TriggerTimeout = 45 * time.Second

// SessionConfig carries a Session's collaborators.
type SessionConfig struct {
	DeviceID  string
	Profiles  *service.ProfileService
	Locator   location.Locator
	Cache     cache.LocationCache
	Emergency *Emergency
	Clock     sos.Clock
	Logger    *zap.Logger

	// OnAlert receives the result of every SOS trigger.
	OnAlert func(Result)
	// OnCheckIn is called when a walking-home check-in prompt opens.
	OnCheckIn func()
	// RefreshInterval overrides location.RefreshInterval.
	RefreshInterval time.Duration
}

// Session is one device running the app: mode state machine, SOS controls,
// walking-home check-in and the covert location refresher.
type Session struct {
	deviceID  string
	emergency *Emergency
	tracker   *location.Tracker
	mode      *mode.Controller
	logger    *zap.Logger
	onAlert   func(Result)
	interval  time.Duration

	// MainSOS is the SOS button; WalkSOS is the walking-home one.
	MainSOS *sos.Control
	WalkSOS *sos.Control
	CheckIn *sos.CheckIn

	mu          sync.Mutex
	profiles    *service.ProfileService
	persistent  bool
	walking     bool
	stopRefresh context.CancelFunc
}

// NewSession builds a Session. Call Start before use.
func NewSession(cfg SessionConfig) *Session {
	s := &Session{
		deviceID:   cfg.DeviceID,
		emergency:  cfg.Emergency,
		logger:     cfg.Logger,
		onAlert:    cfg.OnAlert,
		interval:   cfg.RefreshInterval,
		profiles:   cfg.Profiles,
		persistent: true,
	}
	if s.interval <= 0 {
		s.interval = location.RefreshInterval
	}
	if s.onAlert == nil {
		s.onAlert = func(Result) {}
	}
	s.tracker = location.NewTracker(cfg.DeviceID, cfg.Locator, cfg.Cache, cfg.Logger)
	s.mode = mode.NewController(s, mode.NewConverter(), cfg.Logger)

	s.MainSOS = sos.NewControl("main", sos.DefaultDwell, cfg.Clock, s.triggerSOS, cfg.Logger)
	s.WalkSOS = sos.NewControl("walking-home", sos.DefaultDwell, cfg.Clock, s.triggerSOS, cfg.Logger)
	s.CheckIn = sos.NewCheckIn(cfg.Clock, sos.CheckInInterval, sos.CheckInWindow, cfg.OnCheckIn, s.triggerSOS, cfg.Logger)

	s.mode.OnBackground(func() {
		s.MainSOS.Cancel()
		s.WalkSOS.Cancel()
		s.LeaveWalkingHome()
		s.stopTracking()
	})
	return s
}

// Start checks the store, falls back to an in-memory store when it is
// unreachable, and runs the first-run gate.
func (s *Session) Start(ctx context.Context) mode.Mode {
	if _, err := s.Profiles().GetProfile(ctx, s.deviceID); errors.Is(err, service.ErrStoreUnavailable) {
		s.logger.Warn("profile store unreachable, changes will not be saved", zap.Error(err))
		mem := repository.NewMemoryRepository()
		s.mu.Lock()
		s.profiles = service.NewProfileService(mem, mem, s.logger)
		s.persistent = false
		s.mu.Unlock()
	}
	return s.mode.Start(ctx)
}

// DeviceID returns the session's device identifier.
func (s *Session) DeviceID() string { return s.deviceID }

// Persistent is false when running on the unsaved in-memory stand-in store.
func (s *Session) Persistent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistent
}

// Profiles returns the active profile service.
func (s *Session) Profiles() *service.ProfileService {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles
}

// GetProfile implements mode.ProfileSource for this device.
func (s *Session) GetProfile(ctx context.Context) (*models.UserProfile, error) {
	return s.Profiles().GetProfile(ctx, s.deviceID)
}

// Mode returns the current mode.
func (s *Session) Mode() mode.Mode { return s.mode.Mode() }

// Converter returns the decoy converter.
func (s *Session) Converter() *mode.Converter { return s.mode.Converter() }

// CompleteSetup validates and stores the PIN, then opens the decoy surface.
func (s *Session) CompleteSetup(ctx context.Context, pin, confirm string) error {
	if s.mode.Mode() != mode.Setup {
		return mode.ErrNotInSetup
	}
	if _, err := s.Profiles().CompleteSetup(ctx, s.deviceID, pin, confirm); err != nil {
		return err
	}
	return s.mode.CompleteSetup()
}

// Swap is the converter's swap button; see mode.Controller.Swap.
func (s *Session) Swap(ctx context.Context) (mode.Mode, error) {
	m, err := s.mode.Swap(ctx)
	if err == nil && m == mode.Covert {
		s.startTracking()
	}
	return m, err
}

// Exit leaves the covert surface.
func (s *Session) Exit() {
	s.LeaveWalkingHome()
	s.stopTracking()
	s.mode.Exit()
}

// HandleLifecycle forwards host foreground changes.
func (s *Session) HandleLifecycle(l mode.Lifecycle) mode.Mode {
	return s.mode.HandleLifecycle(l)
}

// CurrentLocation returns the last refreshed location, resolving if none is cached.
func (s *Session) CurrentLocation(ctx context.Context) models.ResolvedLocation {
	if loc, ok := s.tracker.Current(ctx); ok {
		return loc
	}
	return s.tracker.Refresh(ctx)
}

// EnterWalkingHome opens the walking-home surface and starts check-ins.
func (s *Session) EnterWalkingHome() error {
	if s.mode.Mode() != mode.Covert {
		return ErrNotCovert
	}
	s.mu.Lock()
	s.walking = true
	s.mu.Unlock()
	s.CheckIn.Start()
	return nil
}

// LeaveWalkingHome closes the walking-home surface, cancelling its timers.
func (s *Session) LeaveWalkingHome() {
	s.mu.Lock()
	was := s.walking
	s.walking = false
	s.mu.Unlock()
	if was {
		s.CheckIn.Stop()
		s.WalkSOS.Cancel()
	}
}

// Walking reports whether the walking-home surface is open.
func (s *Session) Walking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.walking
}

// TriggerNow runs the SOS flow synchronously and returns its result.
func (s *Session) TriggerNow(ctx context.Context) Result {
	profile, err := s.GetProfile(ctx)
	if err != nil {
		s.logger.Warn("profile unavailable for sos", zap.Error(err))
		profile = nil
	}
	return s.emergency.Trigger(ctx, s.deviceID, profile, s.tracker)
}

func (s *Session) triggerSOS() {
	ctx, cancel := context.WithTimeout(context.Background(), TriggerTimeout)
	defer cancel()
	s.onAlert(s.TriggerNow(ctx))
}

func (s *Session) startTracking() {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.stopRefresh != nil {
		s.stopRefresh()
	}
	s.stopRefresh = cancel
	s.mu.Unlock()
	s.tracker.Start(ctx, s.interval)
}

func (s *Session) stopTracking() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopRefresh != nil {
		s.stopRefresh()
		s.stopRefresh = nil
	}
}
