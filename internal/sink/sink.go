// Package sink applies a resolved appearance mode to the places that
// consume it: the persisted state file, terminal configs, and observers.
package sink

import (
	"context"
	"errors"

	"suntheme/internal/mode"
)

// ErrSink marks a failed mode application
var ErrSink = errors.New("mode application failed")

// Sink receives a resolved mode and makes it take effect
type Sink interface {
	Name() string
	Apply(ctx context.Context, m mode.Mode) error
}

// ThemePair names the theme used for each mode
type ThemePair struct {
	Light string
	Dark  string
}

// For returns the theme name for m
func (p ThemePair) For(m mode.Mode) string {
	if m == mode.Light {
		return p.Light
	}
	return p.Dark
}

// Func adapts a function to the Sink interface
type Func struct {
	SinkName string
	Fn       func(ctx context.Context, m mode.Mode) error
}

// Name returns the sink name
func (f Func) Name() string {
	return f.SinkName
}

// Apply calls Fn
func (f Func) Apply(ctx context.Context, m mode.Mode) error {
	return f.Fn(ctx, m)
}
