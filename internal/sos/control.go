// Package sos implements the press-and-hold arming control and the
// walking-home check-in timer. Both end in a single trigger callback.
package sos

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDwell is how long a control must be held to arm.
const DefaultDwell = 3 * time.Second

// State is the arming state of a Control.
type State int

const (
	// Idle waits for a press.
	Idle State = iota
	// Arming counts down toward the dwell threshold.
	Arming
)

func (s State) String() string {
	if s == Arming {
		return "arming"
	}
	return "idle"
}

// Control is a hold-to-arm gesture. Holding for the dwell fires the trigger
// exactly once and returns to Idle; releasing earlier fires nothing.
// A Control owns a single countdown: a new press replaces it.
type Control struct {
	name    string
	dwell   time.Duration
	clock   Clock
	trigger func()
	logger  *zap.Logger

	mu        sync.Mutex
	state     State
	gen       uint64
	timer     Timer
	pressedAt time.Time
}

// NewControl creates an idle Control. trigger runs on the clock's callback
// goroutine once per completed hold.
func NewControl(name string, dwell time.Duration, clock Clock, trigger func(), logger *zap.Logger) *Control {
	return &Control{
		name:    name,
		dwell:   dwell,
		clock:   clock,
		trigger: trigger,
		logger:  logger,
	}
}

// Press starts a fresh countdown, discarding any countdown in flight.
func (c *Control) Press() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.gen++
	gen := c.gen
	c.state = Arming
	c.pressedAt = c.clock.Now()
	c.timer = c.clock.AfterFunc(c.dwell, func() { c.fire(gen) })
	c.logger.Debug("sos arming", zap.String("control", c.name))
}

// Release cancels an in-flight countdown. It is a no-op when idle.
func (c *Control) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Arming {
		return
	}
	c.stopLocked()
	c.gen++
	c.state = Idle
	c.logger.Debug("sos cancelled", zap.String("control", c.name))
}

// Cancel is an implicit release, used when the app leaves the foreground.
func (c *Control) Cancel() {
	c.Release()
}

// State returns the current arming state.
func (c *Control) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Progress returns how far the current hold is toward arming, in [0, 1].
// It is 0 whenever the control is idle.
func (c *Control) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Arming || c.dwell <= 0 {
		return 0
	}
	p := float64(c.clock.Now().Sub(c.pressedAt)) / float64(c.dwell)
	if p > 1 {
		p = 1
	}
	return p
}

func (c *Control) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != Arming {
		c.mu.Unlock()
		return
	}
	c.state = Idle
	c.timer = nil
	c.mu.Unlock()

	c.logger.Info("sos armed", zap.String("control", c.name))
	c.trigger()
}

func (c *Control) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
