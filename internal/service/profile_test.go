package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/models"
	"github.com/atinyakov/CovertKeeper/internal/repository"
)

type mockProfileRepo struct {
	GetProfileFunc    func(ctx context.Context, deviceID string) (*models.ProfileDocument, error)
	InsertProfileFunc func(ctx context.Context, p *models.UserProfile) (bool, error)
	UpdateProfileFunc func(ctx context.Context, deviceID string, upd models.ProfileUpdate) error
}

func (m *mockProfileRepo) GetProfile(ctx context.Context, deviceID string) (*models.ProfileDocument, error) {
	return m.GetProfileFunc(ctx, deviceID)
}
func (m *mockProfileRepo) InsertProfile(ctx context.Context, p *models.UserProfile) (bool, error) {
	return m.InsertProfileFunc(ctx, p)
}
func (m *mockProfileRepo) UpdateProfile(ctx context.Context, deviceID string, upd models.ProfileUpdate) error {
	return m.UpdateProfileFunc(ctx, deviceID, upd)
}

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestService(profiles ProfileRepository, notes NoteRepository) *ProfileService {
	s := NewProfileService(profiles, notes, zap.NewNop())
	s.now = func() time.Time { return fixedNow }
	s.newID = func() string { return "note-1" }
	return s
}

func memService() (*ProfileService, *repository.MemoryRepository) {
	repo := repository.NewMemoryRepository()
	return newTestService(repo, repo), repo
}

func TestCreateOrUpdateProfile_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, repo := memService()

	first, err := svc.CreateOrUpdateProfile(ctx, "dev1")
	require.NoError(t, err)
	assert.Equal(t, models.ThemeDark, first.Theme)
	assert.True(t, first.AppendLocation)
	assert.Empty(t, first.EmergencyContacts)

	name := "Alex"
	require.NoError(t, repo.UpdateProfile(ctx, "dev1", models.ProfileUpdate{Name: &name, LastAccessed: fixedNow}))

	later := fixedNow.Add(time.Hour)
	svc.now = func() time.Time { return later }
	second, err := svc.CreateOrUpdateProfile(ctx, "dev1")
	require.NoError(t, err)

	assert.Equal(t, "Alex", second.Name)
	assert.Equal(t, fixedNow, second.CreatedAt)
	assert.Equal(t, later, second.LastAccessed)
}

func TestCreateOrUpdateProfile_ExistingOnlyTouchesLastAccessed(t *testing.T) {
	var got models.ProfileUpdate
	repo := &mockProfileRepo{
		GetProfileFunc: func(ctx context.Context, deviceID string) (*models.ProfileDocument, error) {
			pin := "1234"
			return &models.ProfileDocument{DeviceID: deviceID, PIN: &pin}, nil
		},
		InsertProfileFunc: func(ctx context.Context, p *models.UserProfile) (bool, error) {
			t.Fatal("InsertProfile must not be called for an existing profile")
			return false, nil
		},
		UpdateProfileFunc: func(ctx context.Context, deviceID string, upd models.ProfileUpdate) error {
			got = upd
			return nil
		},
	}
	svc := newTestService(repo, nil)

	p, err := svc.CreateOrUpdateProfile(context.Background(), "dev1")
	require.NoError(t, err)
	assert.Equal(t, "1234", p.PIN)
	assert.Equal(t, models.ProfileUpdate{LastAccessed: fixedNow}, got)
}

func TestCreateOrUpdateProfile_StoreUnavailable(t *testing.T) {
	repo := &mockProfileRepo{
		GetProfileFunc: func(ctx context.Context, deviceID string) (*models.ProfileDocument, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}
	svc := newTestService(repo, nil)

	_, err := svc.CreateOrUpdateProfile(context.Background(), "dev1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = svc.GetProfile(context.Background(), "dev1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestGetProfile_AbsentIsNotAnError(t *testing.T) {
	svc, _ := memService()
	p, err := svc.GetProfile(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGetProfile_DefaultsMissingFields(t *testing.T) {
	ctx := context.Background()
	svc, repo := memService()

	pin := "9876"
	require.NoError(t, repo.UpdateProfile(ctx, "dev1", models.ProfileUpdate{PIN: &pin}))

	p, err := svc.GetProfile(ctx, "dev1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "9876", p.PIN)
	assert.Equal(t, models.ThemeDark, p.Theme)
	assert.True(t, p.AppendLocation)
	assert.NotNil(t, p.EmergencyContacts)
}

func TestUpdateProfile_Validation(t *testing.T) {
	svc, _ := memService()
	ctx := context.Background()

	bad := "12a4"
	assert.ErrorIs(t, svc.UpdateProfile(ctx, "dev1", models.ProfileUpdate{PIN: &bad}), ErrInvalidPIN)

	theme := models.Theme("neon")
	assert.ErrorIs(t, svc.UpdateProfile(ctx, "dev1", models.ProfileUpdate{Theme: &theme}), ErrInvalidTheme)

	four := make([]models.EmergencyContact, 4)
	assert.ErrorIs(t, svc.UpdateProfile(ctx, "dev1", models.ProfileUpdate{EmergencyContacts: &four}), ErrContactLimit)
}

func TestUpdateProfile_StampsLastAccessed(t *testing.T) {
	var got models.ProfileUpdate
	repo := &mockProfileRepo{
		UpdateProfileFunc: func(ctx context.Context, deviceID string, upd models.ProfileUpdate) error {
			got = upd
			return nil
		},
	}
	svc := newTestService(repo, nil)

	on := false
	require.NoError(t, svc.UpdateProfile(context.Background(), "dev1", models.ProfileUpdate{AppendLocation: &on}))
	assert.Equal(t, fixedNow, got.LastAccessed)
	assert.False(t, *got.AppendLocation)
	assert.Nil(t, got.Name)
}

func TestValidPIN(t *testing.T) {
	tests := []struct {
		pin  string
		want bool
	}{
		{"1234", true},
		{"123456", true},
		{"123", false},
		{"1234567", false},
		{"12 34", false},
		{"abcd", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPIN(tt.pin), tt.pin)
	}
}

func TestCompleteSetup(t *testing.T) {
	ctx := context.Background()
	svc, _ := memService()

	_, err := svc.CompleteSetup(ctx, "dev1", "12", "12")
	assert.ErrorIs(t, err, ErrInvalidPIN)

	_, err = svc.CompleteSetup(ctx, "dev1", "1234", "4321")
	assert.ErrorIs(t, err, ErrPINMismatch)

	p, err := svc.GetProfile(ctx, "dev1")
	require.NoError(t, err)
	assert.Nil(t, p, "failed setup must not create a profile")

	p, err = svc.CompleteSetup(ctx, "dev1", "1234", "1234")
	require.NoError(t, err)
	assert.Equal(t, "1234", p.PIN)
	assert.Equal(t, DefaultEmergencyNotes, p.NotesForEmergency)

	stored, err := svc.GetProfile(ctx, "dev1")
	require.NoError(t, err)
	assert.Equal(t, "1234", stored.PIN)
	assert.Equal(t, DefaultEmergencyNotes, stored.NotesForEmergency)
	assert.True(t, stored.AppendLocation)
	assert.Equal(t, models.ThemeDark, stored.Theme)
}

func TestContacts_BoundAndOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := memService()

	for i, name := range []string{"Sam", "Jo", "Kim"} {
		list, err := svc.AddContact(ctx, "dev1", models.EmergencyContact{Name: name, Phone: "(555) 123-456" + string(rune('0'+i))})
		require.NoError(t, err)
		assert.Len(t, list, i+1)
	}

	_, err := svc.AddContact(ctx, "dev1", models.EmergencyContact{Name: "Fourth", Phone: "5550000000"})
	assert.ErrorIs(t, err, ErrContactLimit)

	p, err := svc.GetProfile(ctx, "dev1")
	require.NoError(t, err)
	require.Len(t, p.EmergencyContacts, 3)
	assert.Equal(t, "5551234560", p.EmergencyContacts[0].Phone)

	list, err := svc.RemoveContact(ctx, "dev1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Jo", list[0].Name)

	list, err = svc.UpdateContact(ctx, "dev1", 1, models.EmergencyContact{Name: " Lee ", Phone: "+1 (555) 999-8888"})
	require.NoError(t, err)
	assert.Equal(t, models.EmergencyContact{Name: "Lee", Phone: "5559998888"}, list[1])

	_, err = svc.UpdateContact(ctx, "dev1", 1, models.EmergencyContact{Name: "Lee", Phone: "+1 555 999 8888 ext 12"})
	assert.ErrorIs(t, err, ErrInvalidPhone)

	_, err = svc.RemoveContact(ctx, "dev1", 5)
	assert.ErrorIs(t, err, ErrContactIndex)
	_, err = svc.UpdateContact(ctx, "dev1", -1, models.EmergencyContact{})
	assert.ErrorIs(t, err, ErrContactIndex)
}

func TestContactPhoneDigits(t *testing.T) {
	valid := []string{"5551234567", "(555) 123-4567", "15551234567", "+15551234567", "+1 (555) 123-4567"}
	for _, in := range valid {
		got, err := ContactPhoneDigits(in)
		require.NoError(t, err, in)
		assert.Equal(t, "5551234567", got, in)
	}

	invalid := []string{"", "call me", "123", "555123456", "25551234567", "555123456789"}
	for _, in := range invalid {
		_, err := ContactPhoneDigits(in)
		assert.ErrorIs(t, err, ErrInvalidPhone, in)
	}
}

func TestAddContact_CountryCodeDialsSameNumber(t *testing.T) {
	ctx := context.Background()
	for _, in := range []string{"+15551234567", "15551234567", "+1 (555) 123-4567"} {
		svc, _ := memService()
		list, err := svc.AddContact(ctx, "dev1", models.EmergencyContact{Name: "Sam", Phone: in})
		require.NoError(t, err, in)
		assert.Equal(t, "5551234567", list[0].Phone, in)
	}
}

func TestAddContact_InvalidPhoneNotStored(t *testing.T) {
	ctx := context.Background()
	svc, _ := memService()

	_, err := svc.AddContact(ctx, "dev1", models.EmergencyContact{Name: "Sam", Phone: "555-1234"})
	assert.ErrorIs(t, err, ErrInvalidPhone)

	bad := []models.EmergencyContact{{Name: "Sam", Phone: "12345678901234"}}
	assert.ErrorIs(t, svc.UpdateProfile(ctx, "dev1", models.ProfileUpdate{EmergencyContacts: &bad}), ErrInvalidPhone)

	p, err := svc.GetProfile(ctx, "dev1")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSettersRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := memService()

	require.NoError(t, svc.SetName(ctx, "dev1", "  Alex "))
	require.NoError(t, svc.SetEmergencyNotes(ctx, "dev1", "help"))
	require.NoError(t, svc.SetAppendLocation(ctx, "dev1", false))
	require.NoError(t, svc.SetTheme(ctx, "dev1", models.ThemeLight))
	require.NoError(t, svc.SetPIN(ctx, "dev1", "246810"))
	assert.ErrorIs(t, svc.SetPIN(ctx, "dev1", "1"), ErrInvalidPIN)

	p, err := svc.GetProfile(ctx, "dev1")
	require.NoError(t, err)
	assert.Equal(t, "Alex", p.Name)
	assert.Equal(t, "help", p.NotesForEmergency)
	assert.False(t, p.AppendLocation)
	assert.Equal(t, models.ThemeLight, p.Theme)
	assert.Equal(t, "246810", p.PIN)
}
