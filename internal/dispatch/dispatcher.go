// Package dispatch places the outbound emergency call through the
// voice-agent provider.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/logger"
	"github.com/atinyakov/CovertKeeper/internal/models"
)

const (
	defaultCallerName = "Unknown"
	defaultCalleeName = "Emergency Contact"
	defaultNotes      = "Emergency call activated"
)

// Config identifies the provider endpoint and the agent placing the call.
type Config struct {
	APIURL        string
	APIKey        string
	AgentID       string
	PhoneNumberID string
	Timeout       time.Duration
}

// DynamicVariables are the per-call values the agent reads out.
type DynamicVariables struct {
	CallerName string `json:"caller_name"`
	CalleeName string `json:"callee_name"`
	Location   string `json:"location"`
	Notes      string `json:"notes"`
}

// ClientData wraps DynamicVariables as the provider expects.
type ClientData struct {
	DynamicVariables DynamicVariables `json:"dynamic_variables"`
}

// CallRequest is the outbound-call payload.
type CallRequest struct {
	AgentID            string     `json:"agent_id"`
	AgentPhoneNumberID string     `json:"agent_phone_number_id"`
	ToNumber           string     `json:"to_number"`
	ClientData         ClientData `json:"conversation_initiation_client_data"`
}

// Dispatcher places one provider call per Dispatch. It never retries.
type Dispatcher struct {
	httpClient *resty.Client
	cfg        Config
	logger     *zap.Logger
}

// NewDispatcher creates a Dispatcher for cfg.
func NewDispatcher(cfg Config, logger *zap.Logger) *Dispatcher {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("xi-api-key", cfg.APIKey)

	return &Dispatcher{
		httpClient: client,
		cfg:        cfg,
		logger:     logger,
	}
}

// Dispatch checks the profile preconditions in order and places the call to
// the primary contact. Failures are reported in the outcome, never returned.
// An empty contact phone is passed through and the call is still attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, p *models.UserProfile, location string) models.DispatchOutcome {
	if p == nil {
		return models.DispatchOutcome{Failure: models.FailureNoUserData}
	}
	contact, ok := p.PrimaryContact()
	if !ok {
		return models.DispatchOutcome{Failure: models.FailureNoContacts}
	}
	if contact.Phone == "" {
		d.logger.Warn("primary contact has no phone number")
	}

	req := BuildRequest(d.cfg, p, location)
	outcome := models.DispatchOutcome{ContactName: req.ClientData.DynamicVariables.CalleeName}

	d.logger.Info("placing emergency call",
		zap.String("to", logger.MaskPhone(req.ToNumber)),
		zap.Bool("location_included", location != ""),
	)
	d.logger.Debug("emergency call location", zap.String("location", location))

	resp, err := d.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		Post(d.cfg.APIURL)
	if err != nil {
		d.logger.Error("emergency call request failed", zap.Error(err))
		outcome.Failure = models.FailureProvider
		outcome.FailureReason = err.Error()
		return outcome
	}
	if !resp.IsSuccess() {
		reason := strings.TrimSpace(resp.String())
		if reason == "" {
			reason = fmt.Sprintf("provider returned status %d", resp.StatusCode())
		}
		d.logger.Error("emergency call rejected",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", reason),
		)
		outcome.Failure = models.FailureProvider
		outcome.FailureReason = reason
		return outcome
	}

	d.logger.Info("emergency call placed", zap.Int("status_code", resp.StatusCode()))
	outcome.Succeeded = true
	return outcome
}

// BuildRequest assembles the provider payload for p's primary contact,
// filling display defaults for missing names and notes.
func BuildRequest(cfg Config, p *models.UserProfile, location string) CallRequest {
	contact, _ := p.PrimaryContact()

	caller := p.Name
	if caller == "" {
		caller = defaultCallerName
	}
	callee := contact.Name
	if callee == "" {
		callee = defaultCalleeName
	}
	notes := p.NotesForEmergency
	if notes == "" {
		notes = defaultNotes
	}

	return CallRequest{
		AgentID:            cfg.AgentID,
		AgentPhoneNumberID: cfg.PhoneNumberID,
		ToNumber:           FormatPhoneNumber(contact.Phone),
		ClientData: ClientData{DynamicVariables: DynamicVariables{
			CallerName: caller,
			CalleeName: callee,
			Location:   location,
			Notes:      notes,
		}},
	}
}

// FormatPhoneNumber normalizes phone to "+1XXXXXXXXXX" when it holds 10
// digits, or 11 digits starting with 1. Anything else is returned unchanged.
func FormatPhoneNumber(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	case len(digits) == 10:
		return "+1" + digits
	default:
		return phone
	}
}
