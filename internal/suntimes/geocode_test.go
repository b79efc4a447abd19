package suntimes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGeocodeServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	var last http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last = *r
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &last
}

func TestGeocoder_Resolve(t *testing.T) {
	body := `[
		{"display_name":"London, Greater London, England, United Kingdom","lat":"51.5074456","lon":"-0.1277653"},
		{"display_name":"London, Ontario, Canada","lat":"42.9832406","lon":"-81.243372"},
		{"display_name":"Broken","lat":"not-a-number","lon":"1"}
	]`
	server, last := newGeocodeServer(t, http.StatusOK, body)

	logger, _ := zap.NewDevelopment()
	geo := NewGeocoder(server.URL, "", time.Second, logger)

	locs, err := geo.Resolve(context.Background(), "London")
	require.NoError(t, err)
	require.Len(t, locs, 2)

	assert.Equal(t, "London, Greater London, England, United Kingdom", locs[0].DisplayName)
	assert.InDelta(t, 51.5074456, locs[0].Latitude, 1e-9)
	assert.InDelta(t, -0.1277653, locs[0].Longitude, 1e-9)
	assert.Equal(t, "London, Ontario, Canada", locs[1].DisplayName)

	assert.Equal(t, "/search", last.URL.Path)
	assert.Equal(t, "London", last.URL.Query().Get("q"))
	assert.Equal(t, "json", last.URL.Query().Get("format"))
	assert.Equal(t, "5", last.URL.Query().Get("limit"))
	assert.Equal(t, DefaultUserAgent, last.Header.Get("User-Agent"))
}

func TestGeocoder_NoMatchesIsNotAnError(t *testing.T) {
	server, _ := newGeocodeServer(t, http.StatusOK, `[]`)

	logger, _ := zap.NewDevelopment()
	geo := NewGeocoder(server.URL, "test-agent", time.Second, logger)

	locs, err := geo.Resolve(context.Background(), "Nowhere at all")
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestGeocoder_Errors(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	server, _ := newGeocodeServer(t, http.StatusTooManyRequests, `rate limited`)
	_, err := NewGeocoder(server.URL, "", time.Second, logger).Resolve(context.Background(), "x")
	assert.ErrorIs(t, err, ErrBadResponse)

	server, _ = newGeocodeServer(t, http.StatusOK, `{"not":"a list"}`)
	_, err = NewGeocoder(server.URL, "", time.Second, logger).Resolve(context.Background(), "x")
	assert.ErrorIs(t, err, ErrBadResponse)

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	_, err = NewGeocoder(url, "", time.Second, logger).Resolve(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNetwork)
}
