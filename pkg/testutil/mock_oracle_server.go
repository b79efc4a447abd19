// Package testutil provides testing utilities for suntheme.
// This package contains a mock sun time oracle that speaks the
// sunrise-sunset.org JSON dialect, for client, cache and scheduler tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// MockOracleServer simulates the sunrise-sunset.org API.
// By default it answers with astronomically plausible times for the
// requested coordinates so that fixtures look like real responses.
type MockOracleServer struct {
	server *httptest.Server

	mu         sync.Mutex
	calls      int
	failures   int
	failStatus int
	apiStatus  string
	body       string
	sunrise    time.Time
	sunset     time.Time
	now        func() time.Time
	lastQuery  url.Values
}

// OracleResults mirrors the "results" object of the API
type OracleResults struct {
	Sunrise   string `json:"sunrise"`
	Sunset    string `json:"sunset"`
	SolarNoon string `json:"solar_noon"`
	DayLength int64  `json:"day_length"`
}

// OracleResponse mirrors the API envelope
type OracleResponse struct {
	Results OracleResults `json:"results"`
	Status  string        `json:"status"`
}

// NewMockOracleServer starts a mock oracle on a random local port
func NewMockOracleServer() *MockOracleServer {
	s := &MockOracleServer{
		failStatus: http.StatusServiceUnavailable,
		apiStatus:  "OK",
		now:        time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/json", s.handleJSON)
	s.server = httptest.NewServer(mux)
	return s
}

// URL returns the base URL to hand to the oracle client
func (s *MockOracleServer) URL() string {
	return s.server.URL
}

// Close shuts the server down
func (s *MockOracleServer) Close() {
	s.server.Close()
}

// Calls returns how many requests reached /json
func (s *MockOracleServer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastQuery returns the query parameters of the most recent request
func (s *MockOracleServer) LastQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

// FailNext makes the next n requests fail with an HTTP 503
func (s *MockOracleServer) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
}

// SetStatus overrides the "status" field of successful responses
func (s *MockOracleServer) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiStatus = status
}

// SetRawBody makes every response return body verbatim with a 200
func (s *MockOracleServer) SetRawBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = body
}

// SetTimes pins the sunrise and sunset returned to the given instants
func (s *MockOracleServer) SetTimes(sunrise, sunset time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sunrise = sunrise
	s.sunset = sunset
}

// SetNow sets the clock used to pick the date for computed times
func (s *MockOracleServer) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MockOracleServer) handleJSON(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls++
	s.lastQuery = r.URL.Query()
	if s.failures > 0 {
		s.failures--
		status := s.failStatus
		s.mu.Unlock()
		http.Error(w, "service unavailable", status)
		return
	}
	if s.body != "" {
		body := s.body
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
		return
	}
	rise, set := s.sunrise, s.sunset
	apiStatus := s.apiStatus
	now := s.now
	s.mu.Unlock()

	if rise.IsZero() || set.IsZero() {
		lat, _ := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
		lng, _ := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
		today := now().UTC()
		rise, set = sunrise.SunriseSunset(lat, lng, today.Year(), today.Month(), today.Day())
	}

	resp := OracleResponse{
		Results: OracleResults{
			Sunrise:   rise.UTC().Format(time.RFC3339),
			Sunset:    set.UTC().Format(time.RFC3339),
			SolarNoon: rise.Add(set.Sub(rise) / 2).UTC().Format(time.RFC3339),
			DayLength: int64(set.Sub(rise) / time.Second),
		},
		Status: apiStatus,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
