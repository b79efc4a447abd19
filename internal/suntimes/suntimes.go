// Package suntimes fetches sunrise and sunset instants from external
// services and resolves place names to coordinates.
package suntimes

import (
	"errors"
	"fmt"
	"time"

	"suntheme/internal/mode"
)

var (
	// ErrNetwork means the service was unreachable or timed out
	ErrNetwork = errors.New("network error")

	// ErrBadResponse means the payload was malformed or reported failure
	ErrBadResponse = errors.New("bad response")

	// ErrNoSunEvent means the service reported no sunrise or sunset for the
	// day (polar day or night). It always comes wrapped with ErrBadResponse.
	ErrNoSunEvent = errors.New("no sunrise or sunset today (polar day or night)")
)

// The service reports polar days with epoch placeholders such as
// 1970-01-01T00:00:01Z for both instants.
var placeholderCutoff = time.Unix(24*60*60, 0)

// SunTimes holds sunrise and sunset for one calendar date.
// Sunrise and Sunset are absolute UTC instants; Date is the caller's local
// date at fetch time, not a date reported by the service.
type SunTimes struct {
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`
	Date    Date      `json:"date"`
}

// New builds a SunTimes, normalizing both instants to UTC.
func New(sunrise, sunset time.Time, date Date) (SunTimes, error) {
	st := SunTimes{Sunrise: sunrise.UTC(), Sunset: sunset.UTC(), Date: date}
	if err := st.Validate(); err != nil {
		return SunTimes{}, err
	}
	return st, nil
}

// Validate checks that both instants are set and sunrise precedes sunset
func (s SunTimes) Validate() error {
	if s.Sunrise.IsZero() || s.Sunset.IsZero() {
		return fmt.Errorf("%w: missing sunrise or sunset", ErrBadResponse)
	}
	if s.Sunrise.Before(placeholderCutoff) && s.Sunset.Before(placeholderCutoff) {
		return fmt.Errorf("%w: %w", ErrBadResponse, ErrNoSunEvent)
	}
	if !s.Sunrise.Before(s.Sunset) {
		return fmt.Errorf("%w: sunrise %s is not before sunset %s",
			ErrBadResponse, s.Sunrise.Format(time.RFC3339), s.Sunset.Format(time.RFC3339))
	}
	return nil
}

// SunriseIn returns sunrise in loc for display
func (s SunTimes) SunriseIn(loc *time.Location) time.Time {
	return s.Sunrise.In(loc)
}

// SunsetIn returns sunset in loc for display
func (s SunTimes) SunsetIn(loc *time.Location) time.Time {
	return s.Sunset.In(loc)
}

// Mode returns the appearance mode at now
func (s SunTimes) Mode(now time.Time) mode.Mode {
	return mode.Current(now, s.Sunrise, s.Sunset)
}

// NextSwitch returns the next transition after now
func (s SunTimes) NextSwitch(now time.Time) mode.Transition {
	return mode.NextSwitch(now, s.Sunrise, s.Sunset)
}
