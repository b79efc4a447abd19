package mode

import (
	"fmt"
	"strings"
	"time"
)

// Mode is the two-valued appearance state
type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// Transition is the next instant at which the mode becomes Mode
type Transition struct {
	At   time.Time `json:"at"`
	Mode Mode      `json:"mode"`
}

// String returns the lowercase name of the mode
func (m Mode) String() string {
	return string(m)
}

// Opposite returns the other mode
func (m Mode) Opposite() Mode {
	if m == Light {
		return Dark
	}
	return Light
}

// Parse converts a case-insensitive mode name into a Mode
func Parse(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Light):
		return Light, nil
	case string(Dark):
		return Dark, nil
	default:
		return "", fmt.Errorf("invalid mode: %q (use 'light' or 'dark')", s)
	}
}

// UnmarshalText rejects anything other than light or dark
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Current returns Light for sunrise <= now < sunset and Dark otherwise.
func Current(now, sunrise, sunset time.Time) Mode {
	if !now.Before(sunrise) && now.Before(sunset) {
		return Light
	}
	return Dark
}

// NextSwitch returns the next transition after now.
//
// After sunset the next sunrise is approximated as today's sunrise plus 24h.
// The result can be off by a minute or so; the scheduler re-reads sun times
// at least hourly and corrects it.
func NextSwitch(now, sunrise, sunset time.Time) Transition {
	switch {
	case now.Before(sunrise):
		return Transition{At: sunrise, Mode: Light}
	case now.Before(sunset):
		return Transition{At: sunset, Mode: Dark}
	default:
		return Transition{At: sunrise.Add(24 * time.Hour), Mode: Light}
	}
}
