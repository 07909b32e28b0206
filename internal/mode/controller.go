// Package mode implements the decoy/covert navigation state machine and
// the currency converter shown in decoy mode.
package mode

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/models"
)

var (
	// ErrNotInDecoy is returned by Swap outside decoy mode.
	ErrNotInDecoy = errors.New("swap is only available in decoy mode")
	// ErrNotInSetup is returned by CompleteSetup outside first-run setup.
	ErrNotInSetup = errors.New("setup already completed")
)

// Mode is the surface currently presented.
type Mode int

const (
	// Setup is the one-time PIN creation flow.
	Setup Mode = iota
	// Decoy is the currency converter.
	Decoy
	// Covert is the safety surface.
	Covert
)

func (m Mode) String() string {
	switch m {
	case Setup:
		return "setup"
	case Covert:
		return "covert"
	default:
		return "decoy"
	}
}

// Lifecycle is the host application's foreground state.
type Lifecycle int

const (
	Active Lifecycle = iota
	Inactive
	Background
)

// ProfileSource reads the current device's profile. A nil profile with a
// nil error means none exists yet.
type ProfileSource interface {
	GetProfile(ctx context.Context) (*models.UserProfile, error)
}

// Controller owns the current Mode. Covert is entered only through a PIN
// match in Swap and is left on Exit or whenever the host leaves the foreground.
type Controller struct {
	profiles  ProfileSource
	converter *Converter
	logger    *zap.Logger

	mu           sync.Mutex
	mode         Mode
	lifecycle    Lifecycle
	onBackground []func()
}

// NewController creates a Controller in Setup until Start runs.
func NewController(profiles ProfileSource, converter *Converter, logger *zap.Logger) *Controller {
	return &Controller{
		profiles:  profiles,
		converter: converter,
		logger:    logger,
		mode:      Setup,
		lifecycle: Active,
	}
}

// Converter returns the decoy converter.
func (c *Controller) Converter() *Converter {
	return c.converter
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// OnBackground registers f to run whenever the host leaves the foreground.
func (c *Controller) OnBackground(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onBackground = append(c.onBackground, f)
}

// Start runs the first-run gate: with no profile, or no readable profile,
// navigation is forced into Setup; otherwise the app opens in Decoy.
func (c *Controller) Start(ctx context.Context) Mode {
	p, err := c.profiles.GetProfile(ctx)
	if err != nil {
		c.logger.Warn("profile check failed, opening setup", zap.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil || p == nil {
		c.mode = Setup
	} else {
		c.mode = Decoy
	}
	return c.mode
}

// CompleteSetup leaves Setup for Decoy once the profile has been persisted.
func (c *Controller) CompleteSetup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != Setup {
		return ErrNotInSetup
	}
	c.mode = Decoy
	return nil
}

// Swap is the converter's swap control. If the typed amount equals the
// stored PIN exactly it enters Covert and leaves the converter untouched;
// otherwise it performs an ordinary currency swap. Both paths look the same
// to an observer.
func (c *Controller) Swap(ctx context.Context) (Mode, error) {
	if c.Mode() != Decoy {
		return c.Mode(), ErrNotInDecoy
	}

	amount := c.converter.Amount()
	p, err := c.profiles.GetProfile(ctx)
	if err != nil {
		c.logger.Warn("PIN check skipped", zap.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil && p != nil && p.PIN != "" && amount == p.PIN &&
		c.mode == Decoy && c.lifecycle == Active {
		c.mode = Covert
		c.logger.Debug("mode changed", zap.Stringer("mode", c.mode))
		return c.mode, nil
	}
	c.converter.Swap()
	return c.mode, nil
}

// Exit leaves Covert for Decoy.
func (c *Controller) Exit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == Covert {
		c.mode = Decoy
	}
}

// HandleLifecycle applies a host foreground change. Leaving Active drops
// Covert back to Decoy before the background hooks run.
func (c *Controller) HandleLifecycle(next Lifecycle) Mode {
	c.mu.Lock()
	leaving := c.lifecycle == Active && next != Active
	c.lifecycle = next
	if leaving && c.mode == Covert {
		c.mode = Decoy
		c.logger.Info("left foreground while covert, returning to decoy")
	}
	mode := c.mode
	hooks := append([]func(){}, c.onBackground...)
	c.mu.Unlock()

	if leaving {
		for _, f := range hooks {
			f()
		}
	}
	return mode
}
