// Package service provides the profile and notes business logic,
// delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/models"
	"github.com/atinyakov/CovertKeeper/internal/repository"
)

var (
	// ErrStoreUnavailable wraps any backend failure other than not-found.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidPIN is returned for a PIN that is not 4 to 6 digits.
	ErrInvalidPIN = errors.New("PIN must be 4-6 digits")
	// ErrPINMismatch is returned when the setup confirmation differs.
	ErrPINMismatch = errors.New("PINs do not match")
	// ErrContactLimit is returned when adding a contact to a full list.
	ErrContactLimit = errors.New("maximum of 3 emergency contacts reached")
	// ErrContactIndex is returned for an out-of-range contact position.
	ErrContactIndex = errors.New("no emergency contact at that position")
	// ErrInvalidTheme is returned for an unknown theme name.
	ErrInvalidTheme = errors.New("unknown theme")
	// ErrInvalidPhone is returned for a contact phone that is not a
	// 10-digit number, optionally preceded by the country code 1.
	ErrInvalidPhone = errors.New("phone must be a 10-digit number")
	// ErrNoteNotFound is returned when a note does not exist.
	ErrNoteNotFound = errors.New("note not found")
)

// DefaultEmergencyNotes is stored by first-run setup.
const DefaultEmergencyNotes = "I need help. This is an emergency. Please contact me immediately or send assistance to my location."

var pinPattern = regexp.MustCompile(`^\d{4,6}$`)

// ValidPIN reports whether pin is 4 to 6 ASCII digits.
func ValidPIN(pin string) bool {
	return pinPattern.MatchString(pin)
}

// ProfileRepository defines the profile document operations needed by ProfileService.
type ProfileRepository interface {
	// GetProfile returns repository.ErrNotFound when no document exists.
	GetProfile(ctx context.Context, deviceID string) (*models.ProfileDocument, error)
	// InsertProfile reports false when a document already exists.
	InsertProfile(ctx context.Context, p *models.UserProfile) (bool, error)
	// UpdateProfile merge-writes the non-nil fields of upd.
	UpdateProfile(ctx context.Context, deviceID string, upd models.ProfileUpdate) error
}

// ProfileService is the typed accessor over the per-device profile document
// and note collection. Every reader goes through toProfile for defaults.
type ProfileService struct {
	profiles ProfileRepository
	notes    NoteRepository
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewProfileService constructs a ProfileService over the given repositories.
func NewProfileService(profiles ProfileRepository, notes NoteRepository, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		notes:    notes,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// CreateOrUpdateProfile creates the device's profile with defaults if it is
// missing, otherwise refreshes only lastAccessed. Existing name, PIN and
// contacts are never overwritten here.
func (s *ProfileService) CreateOrUpdateProfile(ctx context.Context, deviceID string) (*models.UserProfile, error) {
	now := s.now()
	doc, err := s.profiles.GetProfile(ctx, deviceID)
	if errors.Is(err, repository.ErrNotFound) {
		p := newProfile(deviceID, now)
		created, err := s.profiles.InsertProfile(ctx, p)
		if err != nil {
			return nil, s.storeErr("create profile", err)
		}
		if created {
			s.logger.Info("profile created", zap.String("device_id", deviceID))
			return p, nil
		}
		// lost a race with another insert; fall through to touch it
		doc, err = s.profiles.GetProfile(ctx, deviceID)
	}
	if err != nil {
		return nil, s.storeErr("load profile", err)
	}

	if err := s.profiles.UpdateProfile(ctx, deviceID, models.ProfileUpdate{LastAccessed: now}); err != nil {
		return nil, s.storeErr("touch profile", err)
	}
	doc.LastAccessed = &now
	return toProfile(doc), nil
}

// GetProfile returns the device's profile, or nil with a nil error when
// none has been created yet.
func (s *ProfileService) GetProfile(ctx context.Context, deviceID string) (*models.UserProfile, error) {
	doc, err := s.profiles.GetProfile(ctx, deviceID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storeErr("load profile", err)
	}
	return toProfile(doc), nil
}

// UpdateProfile validates and merge-writes the supplied fields, stamping lastAccessed.
func (s *ProfileService) UpdateProfile(ctx context.Context, deviceID string, upd models.ProfileUpdate) error {
	if upd.PIN != nil && !ValidPIN(*upd.PIN) {
		return ErrInvalidPIN
	}
	if upd.Theme != nil && !upd.Theme.Valid() {
		return ErrInvalidTheme
	}
	if upd.EmergencyContacts != nil {
		if len(*upd.EmergencyContacts) > models.MaxEmergencyContacts {
			return ErrContactLimit
		}
		normalized := make([]models.EmergencyContact, len(*upd.EmergencyContacts))
		for i, c := range *upd.EmergencyContacts {
			nc, err := normalizeContact(c)
			if err != nil {
				return err
			}
			normalized[i] = nc
		}
		upd.EmergencyContacts = &normalized
	}
	upd.LastAccessed = s.now()
	if err := s.profiles.UpdateProfile(ctx, deviceID, upd); err != nil {
		return s.storeErr("update profile", err)
	}
	return nil
}

// CompleteSetup finishes first-run setup: it validates the PIN and its
// confirmation, then persists the profile with setup defaults.
func (s *ProfileService) CompleteSetup(ctx context.Context, deviceID, pin, confirm string) (*models.UserProfile, error) {
	if !ValidPIN(pin) {
		return nil, ErrInvalidPIN
	}
	if pin != confirm {
		return nil, ErrPINMismatch
	}
	p, err := s.CreateOrUpdateProfile(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	upd := models.ProfileUpdate{PIN: &pin}
	if p.NotesForEmergency == "" {
		notes := DefaultEmergencyNotes
		upd.NotesForEmergency = &notes
		p.NotesForEmergency = notes
	}
	if err := s.UpdateProfile(ctx, deviceID, upd); err != nil {
		return nil, err
	}
	p.PIN = pin
	s.logger.Info("setup completed", zap.String("device_id", deviceID))
	return p, nil
}

// SetPIN replaces the stored PIN.
func (s *ProfileService) SetPIN(ctx context.Context, deviceID, pin string) error {
	return s.UpdateProfile(ctx, deviceID, models.ProfileUpdate{PIN: &pin})
}

// SetName sets the caller name relayed to dispatch.
func (s *ProfileService) SetName(ctx context.Context, deviceID, name string) error {
	name = strings.TrimSpace(name)
	return s.UpdateProfile(ctx, deviceID, models.ProfileUpdate{Name: &name})
}

// SetEmergencyNotes sets the message relayed to dispatch.
func (s *ProfileService) SetEmergencyNotes(ctx context.Context, deviceID, notes string) error {
	return s.UpdateProfile(ctx, deviceID, models.ProfileUpdate{NotesForEmergency: &notes})
}

// SetAppendLocation toggles location sharing.
func (s *ProfileService) SetAppendLocation(ctx context.Context, deviceID string, on bool) error {
	return s.UpdateProfile(ctx, deviceID, models.ProfileUpdate{AppendLocation: &on})
}

// SetTheme sets the colour scheme.
func (s *ProfileService) SetTheme(ctx context.Context, deviceID string, theme models.Theme) error {
	return s.UpdateProfile(ctx, deviceID, models.ProfileUpdate{Theme: &theme})
}

// AddContact appends a contact. A fourth contact is rejected with ErrContactLimit.
func (s *ProfileService) AddContact(ctx context.Context, deviceID string, c models.EmergencyContact) ([]models.EmergencyContact, error) {
	contacts, err := s.contacts(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if len(contacts) >= models.MaxEmergencyContacts {
		return contacts, ErrContactLimit
	}
	nc, err := normalizeContact(c)
	if err != nil {
		return contacts, err
	}
	contacts = append(contacts, nc)
	if err := s.UpdateProfile(ctx, deviceID, models.ProfileUpdate{EmergencyContacts: &contacts}); err != nil {
		return nil, err
	}
	return contacts, nil
}

// UpdateContact replaces the contact at index.
func (s *ProfileService) UpdateContact(ctx context.Context, deviceID string, index int, c models.EmergencyContact) ([]models.EmergencyContact, error) {
	contacts, err := s.contacts(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(contacts) {
		return contacts, ErrContactIndex
	}
	nc, err := normalizeContact(c)
	if err != nil {
		return contacts, err
	}
	contacts[index] = nc
	if err := s.UpdateProfile(ctx, deviceID, models.ProfileUpdate{EmergencyContacts: &contacts}); err != nil {
		return nil, err
	}
	return contacts, nil
}

// RemoveContact deletes the contact at index, keeping the order of the rest.
func (s *ProfileService) RemoveContact(ctx context.Context, deviceID string, index int) ([]models.EmergencyContact, error) {
	contacts, err := s.contacts(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(contacts) {
		return contacts, ErrContactIndex
	}
	contacts = append(contacts[:index], contacts[index+1:]...)
	if err := s.UpdateProfile(ctx, deviceID, models.ProfileUpdate{EmergencyContacts: &contacts}); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (s *ProfileService) contacts(ctx context.Context, deviceID string) ([]models.EmergencyContact, error) {
	p, err := s.GetProfile(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return []models.EmergencyContact{}, nil
	}
	return append([]models.EmergencyContact{}, p.EmergencyContacts...), nil
}

func (s *ProfileService) storeErr(op string, err error) error {
	s.logger.Warn("profile store failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// ContactPhoneDigits reduces phone to the 10 stored digits. Formatting
// characters are dropped and a leading country code 1 is removed; anything
// else that is not exactly 10 digits is rejected rather than truncated.
func ContactPhoneDigits(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}
	return digits, nil
}

func normalizeContact(c models.EmergencyContact) (models.EmergencyContact, error) {
	phone, err := ContactPhoneDigits(c.Phone)
	if err != nil {
		return models.EmergencyContact{}, err
	}
	return models.EmergencyContact{Name: strings.TrimSpace(c.Name), Phone: phone}, nil
}

func newProfile(deviceID string, now time.Time) *models.UserProfile {
	return &models.UserProfile{
		DeviceID:          deviceID,
		EmergencyContacts: []models.EmergencyContact{},
		AppendLocation:    true,
		Theme:             models.ThemeDark,
		CreatedAt:         now,
		LastAccessed:      now,
	}
}

// toProfile fills defaults for every field missing from doc.
func toProfile(doc *models.ProfileDocument) *models.UserProfile {
	p := &models.UserProfile{
		DeviceID:          doc.DeviceID,
		EmergencyContacts: []models.EmergencyContact{},
		AppendLocation:    true,
		Theme:             models.ThemeDark,
	}
	if doc.Name != nil {
		p.Name = *doc.Name
	}
	if doc.PIN != nil {
		p.PIN = *doc.PIN
	}
	if doc.EmergencyContacts != nil {
		p.EmergencyContacts = append(p.EmergencyContacts, doc.EmergencyContacts...)
	}
	if doc.NotesForEmergency != nil {
		p.NotesForEmergency = *doc.NotesForEmergency
	}
	if doc.AppendLocation != nil {
		p.AppendLocation = *doc.AppendLocation
	}
	if doc.Theme != nil && models.Theme(*doc.Theme).Valid() {
		p.Theme = models.Theme(*doc.Theme)
	}
	if doc.CreatedAt != nil {
		p.CreatedAt = *doc.CreatedAt
	}
	if doc.LastAccessed != nil {
		p.LastAccessed = *doc.LastAccessed
	}
	return p
}
