// Package models defines the core data structures for device profiles,
// notes, locations and emergency dispatch outcomes.
package models

import "time"

// MaxEmergencyContacts is the upper bound on stored emergency contacts.
const MaxEmergencyContacts = 3

// Theme is the UI colour scheme stored with a profile.
type Theme string

const (
	// ThemeLight is the light colour scheme.
	ThemeLight Theme = "light"
	// ThemeDark is the dark colour scheme, used by default.
	ThemeDark Theme = "dark"
)

// Valid reports whether t is one of the known themes.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// EmergencyContact is a person called when SOS is armed.
type EmergencyContact struct {
	// Name is the display name used as the callee name.
	Name string `json:"name"`
	// Phone holds raw digits; a "+1" country prefix is implied.
	Phone string `json:"phone"`
}

// UserProfile is the single per-device profile document with every
// optional field already default-filled.
type UserProfile struct {
	// DeviceID is the sanitized device identifier; immutable after creation.
	DeviceID string `json:"device_id"`
	// Name is the caller name relayed to the dispatch call.
	Name string `json:"name"`
	// PIN gates covert mode entry and settings access. It is never
	// serialized into responses.
	PIN string `json:"-"`
	// EmergencyContacts is ordered; the first entry is the primary contact.
	EmergencyContacts []EmergencyContact `json:"emergency_contacts"`
	// NotesForEmergency is the free-text message relayed to the call.
	NotesForEmergency string `json:"notes_for_emergency"`
	// AppendLocation controls whether the resolved location is shared.
	AppendLocation bool `json:"append_location"`
	// Theme is the preferred colour scheme.
	Theme Theme `json:"theme"`
	// CreatedAt is set once when the document is created.
	CreatedAt time.Time `json:"created_at"`
	// LastAccessed is refreshed on every profile touch.
	LastAccessed time.Time `json:"last_accessed"`
}

// PrimaryContact returns the first emergency contact, if any.
func (p *UserProfile) PrimaryContact() (EmergencyContact, bool) {
	if p == nil || len(p.EmergencyContacts) == 0 {
		return EmergencyContact{}, false
	}
	return p.EmergencyContacts[0], true
}

// ProfileDocument is the raw stored form of a profile. Nil fields were
// never written and are defaulted by readers, not treated as corruption.
type ProfileDocument struct {
	DeviceID          string
	Name              *string
	PIN               *string
	EmergencyContacts []EmergencyContact
	NotesForEmergency *string
	AppendLocation    *bool
	Theme             *string
	CreatedAt         *time.Time
	LastAccessed      *time.Time
}

// ProfileUpdate is a merge-write: only non-nil fields are overwritten.
// LastAccessed is always written.
type ProfileUpdate struct {
	Name              *string             `json:"name,omitempty"`
	PIN               *string             `json:"pin,omitempty"`
	EmergencyContacts *[]EmergencyContact `json:"emergency_contacts,omitempty"`
	NotesForEmergency *string             `json:"notes_for_emergency,omitempty"`
	AppendLocation    *bool               `json:"append_location,omitempty"`
	Theme             *Theme              `json:"theme,omitempty"`
	LastAccessed      time.Time           `json:"-"`
}

// Note is a free-form note kept in the device's note collection.
type Note struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	LastEditedAt time.Time `json:"last_edited_at"`
}

// Coordinates is a single position fix.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ResolvedLocation is the ephemeral result of a location resolution.
type ResolvedLocation struct {
	// DisplayAddress is the short form shown in the status bar.
	DisplayAddress string `json:"display_address"`
	// DetailedAddress is the long form preferred for dispatch calls.
	DetailedAddress string `json:"detailed_address"`
	// Available is false when no coordinate could be obtained.
	Available bool `json:"available"`
	// ResolvedAt is when the value was computed.
	ResolvedAt time.Time `json:"resolved_at"`
}

// FailureKind classifies why a dispatch did not place a call.
type FailureKind string

const (
	// FailureNone marks a placed call.
	FailureNone FailureKind = ""
	// FailureNoUserData means no profile was available.
	FailureNoUserData FailureKind = "no_user_data"
	// FailureNoContacts means the profile has no emergency contacts.
	FailureNoContacts FailureKind = "no_contacts_configured"
	// FailureProvider means the voice provider rejected or never answered the request.
	FailureProvider FailureKind = "provider_failure"
)

// DispatchOutcome is the result of a single dispatch attempt.
type DispatchOutcome struct {
	Succeeded     bool        `json:"succeeded"`
	ContactName   string      `json:"contact_name"`
	Failure       FailureKind `json:"failure_kind,omitempty"`
	FailureReason string      `json:"failure_reason,omitempty"`
}
