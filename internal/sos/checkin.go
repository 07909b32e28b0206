package sos

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// CheckInInterval is the time between "are you still there" prompts.
	CheckInInterval = 5 * time.Minute
	// CheckInWindow is how long the user has to answer a prompt.
	CheckInWindow = time.Minute
)

// CheckInState is the phase of a CheckIn.
type CheckInState int

const (
	// CheckInStopped means no timer is running.
	CheckInStopped CheckInState = iota
	// CheckInWaiting counts down to the next prompt.
	CheckInWaiting
	// CheckInPrompting waits for the user to confirm.
	CheckInPrompting
)

func (s CheckInState) String() string {
	switch s {
	case CheckInWaiting:
		return "waiting"
	case CheckInPrompting:
		return "prompting"
	default:
		return "stopped"
	}
}

// CheckIn prompts every interval and escalates when a prompt goes
// unanswered for the response window. After escalating it stops.
type CheckIn struct {
	clock      Clock
	interval   time.Duration
	window     time.Duration
	onPrompt   func()
	onEscalate func()
	logger     *zap.Logger

	mu    sync.Mutex
	state CheckInState
	gen   uint64
	timer Timer
}

// NewCheckIn creates a stopped CheckIn.
func NewCheckIn(clock Clock, interval, window time.Duration, onPrompt, onEscalate func(), logger *zap.Logger) *CheckIn {
	return &CheckIn{
		clock:      clock,
		interval:   interval,
		window:     window,
		onPrompt:   onPrompt,
		onEscalate: onEscalate,
		logger:     logger,
	}
}

// Start begins the prompt cycle, restarting it if already running.
func (c *CheckIn) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduleLocked(CheckInWaiting, c.interval, c.prompt)
	c.logger.Info("check-in started", zap.Duration("interval", c.interval))
}

// Confirm answers an open prompt and schedules the next one. It returns
// false when no prompt was open.
func (c *CheckIn) Confirm() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CheckInPrompting {
		return false
	}
	c.scheduleLocked(CheckInWaiting, c.interval, c.prompt)
	return true
}

// Stop cancels any pending prompt or escalation.
func (c *CheckIn) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CheckInStopped {
		return
	}
	c.stopLocked()
	c.gen++
	c.state = CheckInStopped
	c.logger.Info("check-in stopped")
}

// State returns the current phase.
func (c *CheckIn) State() CheckInState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *CheckIn) prompt(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != CheckInWaiting {
		c.mu.Unlock()
		return
	}
	c.scheduleLocked(CheckInPrompting, c.window, c.escalate)
	c.mu.Unlock()

	if c.onPrompt != nil {
		c.onPrompt()
	}
}

func (c *CheckIn) escalate(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != CheckInPrompting {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.timer = nil
	c.state = CheckInStopped
	c.mu.Unlock()

	c.logger.Warn("check-in unanswered, escalating")
	c.onEscalate()
}

func (c *CheckIn) scheduleLocked(state CheckInState, d time.Duration, next func(uint64)) {
	c.stopLocked()
	c.gen++
	gen := c.gen
	c.state = state
	c.timer = c.clock.AfterFunc(d, func() { next(gen) })
}

func (c *CheckIn) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
