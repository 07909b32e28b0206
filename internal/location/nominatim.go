package location

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/models"
)

// nominatimResponse is the subset of the /reverse payload we read.
type nominatimResponse struct {
	Address *Address `json:"address"`
	Error   string   `json:"error"`
}

// NominatimGeocoder reverse-geocodes through an OpenStreetMap Nominatim server.
type NominatimGeocoder struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewNominatimGeocoder creates a client for baseURL. Nominatim requires a
// descriptive User-Agent on every request.
func NewNominatimGeocoder(baseURL, userAgent string, timeout time.Duration, logger *zap.Logger) *NominatimGeocoder {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	return &NominatimGeocoder{
		httpClient: client,
		logger:     logger,
	}
}

// Reverse implements Geocoder.
func (g *NominatimGeocoder) Reverse(ctx context.Context, c models.Coordinates) (*Address, error) {
	var body nominatimResponse
	resp, err := g.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format":         "json",
			"lat":            strconv.FormatFloat(c.Latitude, 'f', -1, 64),
			"lon":            strconv.FormatFloat(c.Longitude, 'f', -1, 64),
			"zoom":           "18",
			"addressdetails": "1",
		}).
		SetResult(&body).
		Get("/reverse")
	if err != nil {
		return nil, fmt.Errorf("nominatim request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("nominatim status %d", resp.StatusCode())
	}
	if body.Error != "" {
		g.logger.Debug("nominatim returned no address", zap.String("error", body.Error))
		return nil, nil
	}
	return body.Address, nil
}
