// Package app wires the covert core together: the emergency trigger flow
// shared by every SOS surface, and the per-device session used by the
// interactive shell.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/events"
	"github.com/atinyakov/CovertKeeper/internal/location"
	"github.com/atinyakov/CovertKeeper/internal/models"
)

// Alert is the message shown after a dispatch attempt.
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// AlertFor maps an outcome to its user-facing alert.
func AlertFor(out models.DispatchOutcome) Alert {
	switch {
	case out.Succeeded:
		name := out.ContactName
		if name == "" {
			name = "Emergency Contact"
		}
		return Alert{
			Title:   "Emergency Call Placed",
			Message: fmt.Sprintf("Emergency call successfully placed to %s. Help is on the way.", name),
		}
	case out.Failure == models.FailureNoUserData:
		return Alert{Title: "Error", Message: "Unable to access user data. Please try again."}
	case out.Failure == models.FailureNoContacts:
		return Alert{
			Title:   "No Emergency Contacts",
			Message: "Please add emergency contacts in settings before using this feature.",
		}
	default:
		return Alert{
			Title:   "Call Failed",
			Message: "Unable to place emergency call. Please try again or contact emergency services directly.",
		}
	}
}

// Dispatcher places the outbound call; satisfied by dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, p *models.UserProfile, location string) models.DispatchOutcome
}

// LocationSource supplies the pre-dispatch location; satisfied by location.Tracker.
type LocationSource interface {
	ForDispatch(ctx context.Context) models.ResolvedLocation
}

// Result is everything the UI needs after a trigger.
type Result struct {
	Outcome  models.DispatchOutcome `json:"outcome"`
	Alert    Alert                  `json:"alert"`
	Location string                 `json:"location,omitempty"`
}

// Emergency runs the trigger flow: location, dispatch, alert, event.
type Emergency struct {
	dispatcher Dispatcher
	publisher  events.Publisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewEmergency creates an Emergency. publisher may be events.Nop{}.
func NewEmergency(dispatcher Dispatcher, publisher events.Publisher, logger *zap.Logger) *Emergency {
	return &Emergency{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// Trigger dispatches for profile. The location is only resolved when a call
// can actually be placed and the profile shares its location. A publish
// failure is logged and never changes the outcome.
func (e *Emergency) Trigger(ctx context.Context, deviceID string, profile *models.UserProfile, locations LocationSource) Result {
	var where string
	if _, ok := profile.PrimaryContact(); ok {
		where = location.TextNotShared
		if profile.AppendLocation {
			where = location.DispatchText(locations.ForDispatch(ctx))
		}
	}

	out := e.dispatcher.Dispatch(ctx, profile, where)
	res := Result{Outcome: out, Alert: AlertFor(out), Location: where}

	e.logger.Info("sos dispatch finished",
		zap.String("device_id", deviceID),
		zap.Bool("succeeded", out.Succeeded),
		zap.String("failure_kind", string(out.Failure)),
	)
	if err := e.publisher.Publish(ctx, events.NewDispatchEvent(deviceID, out, e.now())); err != nil {
		e.logger.Warn("failed to publish dispatch event", zap.Error(err))
	}
	return res
}
