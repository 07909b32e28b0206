package location

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/models"
)

type stubPositions struct {
	granted bool
	permErr error
	pos     models.Coordinates
	posErr  error
}

func (s stubPositions) RequestPermission(context.Context) (bool, error) { return s.granted, s.permErr }
func (s stubPositions) CurrentPosition(context.Context) (models.Coordinates, error) {
	return s.pos, s.posErr
}

type stubGeocoder struct {
	addr *Address
	err  error
}

func (s stubGeocoder) Reverse(context.Context, models.Coordinates) (*Address, error) {
	return s.addr, s.err
}

func TestFormatCoordinates(t *testing.T) {
	tests := []struct {
		c    models.Coordinates
		want string
	}{
		{models.Coordinates{Latitude: 0, Longitude: 0}, "0.0000°N, 0.0000°E"},
		{models.Coordinates{Latitude: -33.87, Longitude: 151.21}, "33.8700°S, 151.2100°E"},
		{models.Coordinates{Latitude: 40.71, Longitude: -74.00}, "40.7100°N, 74.0000°W"},
		{models.Coordinates{Latitude: 51.507351, Longitude: -0.127758}, "51.5074°N, 0.1278°W"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCoordinates(tt.c))
	}
}

func TestAddressFormatting(t *testing.T) {
	full := Address{HouseNumber: "123", Road: "Main St", City: "Springfield", State: "IL", Postcode: "62701"}
	assert.Equal(t, "123, Main St, Springfield, IL, 62701", DetailedAddress(full))
	assert.Equal(t, "Main St, Springfield, IL", DisplayAddress(full))

	sparse := Address{HouseNumber: "7", Village: "Hamlet", Postcode: "999"}
	assert.Equal(t, "7, Hamlet, 999", DetailedAddress(sparse))
	assert.Equal(t, "7, Hamlet", DisplayAddress(sparse))
	assert.NotContains(t, DetailedAddress(sparse), ", ,")

	assert.Equal(t, "Town", Address{Town: "Town", Village: "Village"}.Locality())
}

func TestResolve_PermissionDenied(t *testing.T) {
	r := NewResolver(stubPositions{granted: false}, stubGeocoder{}, time.Second, zap.NewNop())
	loc := r.Resolve(context.Background())
	assert.False(t, loc.Available)
	assert.Equal(t, "Location permission denied", loc.DisplayAddress)

	r = NewResolver(FixedPosition{Denied: true}, nil, time.Second, zap.NewNop())
	loc = r.Resolve(context.Background())
	assert.False(t, loc.Available)
	assert.Equal(t, TextPermissionDenied, loc.DisplayAddress)
}

func TestResolve_FixFailure(t *testing.T) {
	r := NewResolver(stubPositions{granted: true, posErr: errors.New("gps off")}, stubGeocoder{}, time.Second, zap.NewNop())
	loc := r.Resolve(context.Background())
	assert.False(t, loc.Available)
	assert.Equal(t, TextUnavailable, loc.DisplayAddress)
	assert.Equal(t, TextUnavailable, DispatchText(loc))
}

func TestResolve_GeocodeFailureFallsBackToCoordinates(t *testing.T) {
	for _, c := range []models.Coordinates{
		{Latitude: 0, Longitude: 0},
		{Latitude: -33.87, Longitude: 151.21},
		{Latitude: 40.71, Longitude: -74.00},
	} {
		r := NewResolver(stubPositions{granted: true, pos: c}, stubGeocoder{err: errors.New("network")}, time.Second, zap.NewNop())
		loc := r.Resolve(context.Background())
		assert.True(t, loc.Available)
		assert.Equal(t, FormatCoordinates(c), loc.DisplayAddress)
		assert.Equal(t, FormatCoordinates(c), loc.DetailedAddress)
	}
}

func TestResolve_EmptyAddressFallsBack(t *testing.T) {
	pos := models.Coordinates{Latitude: 10, Longitude: 20}
	r := NewResolver(stubPositions{granted: true, pos: pos}, stubGeocoder{addr: &Address{Postcode: "12345"}}, time.Second, zap.NewNop())
	loc := r.Resolve(context.Background())
	assert.Equal(t, "12345", loc.DetailedAddress)
	assert.Equal(t, "10.0000°N, 20.0000°E", loc.DisplayAddress)
}

func TestResolve_Nominatim(t *testing.T) {
	var gotUA, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "/reverse", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"address":{"house_number":"123","road":"Main St","city":"Springfield","state":"IL","postcode":"62701"}}`))
	}))
	defer srv.Close()

	geo := NewNominatimGeocoder(srv.URL, "CovertApp/1.0", time.Second, zap.NewNop())
	pos := FixedPosition{Coordinates: models.Coordinates{Latitude: 39.78, Longitude: -89.65}}
	loc := NewResolver(pos, geo, time.Second, zap.NewNop()).Resolve(context.Background())

	assert.True(t, loc.Available)
	assert.Equal(t, "Main St, Springfield, IL", loc.DisplayAddress)
	assert.Equal(t, "123, Main St, Springfield, IL, 62701", loc.DetailedAddress)
	assert.Equal(t, "CovertApp/1.0", gotUA)
	for _, p := range []string{"format=json", "lat=39.78", "lon=-89.65", "zoom=18", "addressdetails=1"} {
		assert.True(t, strings.Contains(gotQuery, p), "query %q missing %q", gotQuery, p)
	}
}

func TestResolve_NominatimNoAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	geo := NewNominatimGeocoder(srv.URL, "CovertApp/1.0", time.Second, zap.NewNop())
	pos := FixedPosition{Coordinates: models.Coordinates{Latitude: -10, Longitude: -20}}
	loc := NewResolver(pos, geo, time.Second, zap.NewNop()).Resolve(context.Background())

	assert.True(t, loc.Available)
	assert.Equal(t, "10.0000°S, 20.0000°W", loc.DetailedAddress)
}

func TestResolve_GeocodeTimeoutDoesNotHang(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	geo := NewNominatimGeocoder(srv.URL, "CovertApp/1.0", 10*time.Second, zap.NewNop())
	pos := FixedPosition{Coordinates: models.Coordinates{Latitude: 1, Longitude: 2}}
	r := NewResolver(pos, geo, 50*time.Millisecond, zap.NewNop())

	start := time.Now()
	loc := r.Resolve(context.Background())
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, loc.Available)
	assert.Equal(t, "1.0000°N, 2.0000°E", DispatchText(loc))
}

func TestDispatchText(t *testing.T) {
	assert.Equal(t, "detail", DispatchText(models.ResolvedLocation{Available: true, DetailedAddress: "detail", DisplayAddress: "disp"}))
	assert.Equal(t, "disp", DispatchText(models.ResolvedLocation{Available: true, DisplayAddress: "disp"}))
	assert.Equal(t, TextUnavailable, DispatchText(models.ResolvedLocation{Available: true}))
	assert.Equal(t, TextUnavailable, DispatchText(models.ResolvedLocation{DisplayAddress: TextPermissionDenied}))
}
