package suntimes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultGeocoderURL is the Nominatim API root
	DefaultGeocoderURL = "https://nominatim.openstreetmap.org"

	// DefaultUserAgent identifies requests; Nominatim rejects anonymous clients
	DefaultUserAgent = "suntheme/0.1.0"

	geocodeLimit = 5
)

// Location is a geocoding candidate
type Location struct {
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Geocoder resolves free-text place names with a Nominatim compatible API.
type Geocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGeocoder builds a geocoder. Empty arguments select the defaults.
func NewGeocoder(baseURL, userAgent string, timeout time.Duration, logger *zap.Logger) *Geocoder {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = DefaultGeocoderURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Geocoder{
		baseURL:    strings.TrimRight(base, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("geocoder"),
	}
}

type nominatimResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Resolve returns up to five candidates for query, in the service's ranking
// order. No matches yields an empty slice and a nil error.
func (g *Geocoder) Resolve(ctx context.Context, query string) ([]Location, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(geocodeLimit))
	endpoint := g.baseURL + "/search?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: geocode request failed: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: geocode request: status=%d body=%s",
			ErrBadResponse, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("%w: decode geocode response: %w", ErrBadResponse, err)
	}

	locations := make([]Location, 0, len(results))
	for _, r := range results {
		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			g.logger.Debug("Skipping candidate with bad latitude", zap.String("name", r.DisplayName))
			continue
		}
		lon, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			g.logger.Debug("Skipping candidate with bad longitude", zap.String("name", r.DisplayName))
			continue
		}
		locations = append(locations, Location{
			DisplayName: r.DisplayName,
			Latitude:    lat,
			Longitude:   lon,
		})
	}

	g.logger.Info("Geocoded location",
		zap.String("query", query),
		zap.Int("candidates", len(locations)))

	return locations, nil
}
