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

	"suntheme/internal/clock"

	"go.uber.org/zap"
)

const (
	// DefaultOracleURL is the sunrise-sunset.org API root
	DefaultOracleURL = "https://api.sunrise-sunset.org"

	// DefaultTimeout bounds every oracle and geocoder request
	DefaultTimeout = 10 * time.Second

	statusOK = "OK"
)

// Fetcher returns today's sun times for a location
type Fetcher interface {
	Fetch(ctx context.Context, latitude, longitude float64) (SunTimes, error)
}

// Client fetches sunrise and sunset from a sunrise-sunset.org compatible API.
// It never retries; retry policy belongs to the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	clock      clock.Clock
	location   *time.Location
	logger     *zap.Logger
}

// NewClient builds an oracle client. An empty baseURL selects DefaultOracleURL
// and a non-positive timeout selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, clk clock.Clock, logger *zap.Logger) *Client {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = DefaultOracleURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: timeout},
		clock:      clk,
		location:   time.Local,
		logger:     logger.Named("oracle"),
	}
}

// WithLocation sets the zone used to stamp the local calendar date
func (c *Client) WithLocation(loc *time.Location) *Client {
	c.location = loc
	return c
}

type oracleResponse struct {
	Results oracleResults `json:"results"`
	Status  string        `json:"status"`
}

type oracleResults struct {
	Sunrise string `json:"sunrise"`
	Sunset  string `json:"sunset"`
}

// Fetch retrieves sunrise and sunset for today at the given coordinates.
func (c *Client) Fetch(ctx context.Context, latitude, longitude float64) (SunTimes, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(latitude, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(longitude, 'f', -1, 64))
	q.Set("formatted", "0")
	endpoint := c.baseURL + "/json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return SunTimes{}, fmt.Errorf("build sun times request: %w", err)
	}

	c.logger.Debug("Requesting sun times",
		zap.Float64("latitude", latitude),
		zap.Float64("longitude", longitude))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SunTimes{}, fmt.Errorf("%w: sun times request failed: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return SunTimes{}, fmt.Errorf("%w: sun times request: status=%d body=%s",
			ErrBadResponse, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SunTimes{}, fmt.Errorf("%w: read sun times response: %w", ErrNetwork, err)
	}

	var raw oracleResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return SunTimes{}, fmt.Errorf("%w: decode sun times response: %w", ErrBadResponse, err)
	}
	if raw.Status != statusOK {
		return SunTimes{}, fmt.Errorf("%w: api returned status %q", ErrBadResponse, raw.Status)
	}

	sunrise, err := time.Parse(time.RFC3339, raw.Results.Sunrise)
	if err != nil {
		return SunTimes{}, fmt.Errorf("%w: parse sunrise: %w", ErrBadResponse, err)
	}
	sunset, err := time.Parse(time.RFC3339, raw.Results.Sunset)
	if err != nil {
		return SunTimes{}, fmt.Errorf("%w: parse sunset: %w", ErrBadResponse, err)
	}

	st, err := New(sunrise, sunset, DateOf(c.clock.Now(), c.location))
	if err != nil {
		return SunTimes{}, err
	}

	c.logger.Info("Sun times fetched",
		zap.Time("sunrise", st.Sunrise),
		zap.Time("sunset", st.Sunset),
		zap.Stringer("date", st.Date))

	return st, nil
}
