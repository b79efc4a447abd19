// Package scheduler runs the long-lived loop that keeps the appearance mode
// in step with the sun: fetch today's sun times, apply the current mode,
// sleep until shortly after the next transition, repeat.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"suntheme/internal/clock"
	"suntheme/internal/mode"
	"suntheme/internal/sink"
	"suntheme/internal/suntimes"

	"go.uber.org/zap"
)

const (
	DefaultRetryBackoff = 60 * time.Second
	DefaultWakeBuffer   = 5 * time.Second
	DefaultMaxSleep     = time.Hour
)

// Config holds the location and loop timings
type Config struct {
	Latitude     float64
	Longitude    float64
	RetryBackoff time.Duration
	WakeBuffer   time.Duration
	MaxSleep     time.Duration
}

// DefaultConfig returns a config with the default timings for the given location
func DefaultConfig(latitude, longitude float64) Config {
	return Config{
		Latitude:     latitude,
		Longitude:    longitude,
		RetryBackoff: DefaultRetryBackoff,
		WakeBuffer:   DefaultWakeBuffer,
		MaxSleep:     DefaultMaxSleep,
	}
}

// SunTimesSource supplies today's sun times. cache.Daily implements it.
type SunTimesSource interface {
	GetOrFetch(ctx context.Context, latitude, longitude float64) (suntimes.SunTimes, error)
}

// Status is a point-in-time view of the loop for observers
type Status struct {
	SunTimes   *suntimes.SunTimes `json:"sun_times,omitempty"`
	Mode       mode.Mode          `json:"mode,omitempty"`
	Next       *mode.Transition   `json:"next,omitempty"`
	LastError  string             `json:"last_error,omitempty"`
	Iterations int                `json:"iterations"`
	UpdatedAt  time.Time          `json:"updated_at"`
	NextWake   time.Time          `json:"next_wake"`
}

// Scheduler drives mode changes at sunrise and sunset
type Scheduler struct {
	config Config
	source SunTimesSource
	sink   sink.Sink
	clock  clock.Clock
	logger *zap.Logger

	mu     sync.RWMutex
	status Status
}

// New creates a scheduler. Zero timings in cfg take their defaults.
func New(cfg Config, source SunTimesSource, target sink.Sink, clk clock.Clock, logger *zap.Logger) *Scheduler {
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.WakeBuffer <= 0 {
		cfg.WakeBuffer = DefaultWakeBuffer
	}
	if cfg.MaxSleep <= 0 {
		cfg.MaxSleep = DefaultMaxSleep
	}
	return &Scheduler{
		config: cfg,
		source: source,
		sink:   target,
		clock:  clk,
		logger: logger.Named("scheduler"),
	}
}

// Run loops forever. It has no stop mechanism; it ends with the process.
// ctx is handed to the sun times source and the sink on every iteration.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Starting scheduler",
		zap.Float64("latitude", s.config.Latitude),
		zap.Float64("longitude", s.config.Longitude))

	for {
		s.clock.Sleep(s.Step(ctx))
	}
}

// Step performs one iteration of the loop and returns how long to sleep
// before the next one.
func (s *Scheduler) Step(ctx context.Context) time.Duration {
	st, err := s.source.GetOrFetch(ctx, s.config.Latitude, s.config.Longitude)
	if err != nil {
		reason := failureReason(err)
		msg := "Failed to get sun times, will retry"
		if reason == reasonNoSunEvent {
			msg = "No sunrise or sunset at this location today, mode left unchanged; will retry"
		}
		s.logger.Warn(msg,
			zap.String("reason", reason),
			zap.Duration("backoff", s.config.RetryBackoff),
			zap.Error(err))
		s.update(func(status *Status) {
			status.LastError = err.Error()
			status.NextWake = s.clock.Now().Add(s.config.RetryBackoff)
		})
		return s.config.RetryBackoff
	}

	now := s.clock.Now()
	current := st.Mode(now)
	next := st.NextSwitch(now)

	var applyErr error
	if applyErr = s.sink.Apply(ctx, current); applyErr != nil {
		s.logger.Error("Failed to apply mode",
			zap.String("sink", s.sink.Name()),
			zap.Stringer("mode", current),
			zap.Error(applyErr))
	}

	// Applying may have taken a while; measure the remaining gap afresh.
	wakeFrom := s.clock.Now()
	sleep := SleepDuration(wakeFrom, next.At, s.config.WakeBuffer, s.config.MaxSleep)

	s.update(func(status *Status) {
		status.SunTimes = &st
		status.Mode = current
		status.Next = &next
		status.LastError = ""
		if applyErr != nil {
			status.LastError = applyErr.Error()
		}
		status.NextWake = wakeFrom.Add(sleep)
	})

	s.logger.Info("Mode evaluated",
		zap.Stringer("mode", current),
		zap.Time("sunrise", st.Sunrise),
		zap.Time("sunset", st.Sunset),
		zap.Time("next_switch", next.At),
		zap.Stringer("next_mode", next.Mode),
		zap.Duration("sleep", sleep))

	return sleep
}

// Status returns a copy of the most recent loop state
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Scheduler) update(f func(status *Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(&s.status)
	s.status.Iterations++
	s.status.UpdatedAt = s.clock.Now()
}

// SleepDuration is the time to wait from now until shortly after next:
// the remaining gap (never negative) plus buffer, capped at max.
func SleepDuration(now, next time.Time, buffer, max time.Duration) time.Duration {
	gap := next.Sub(now)
	if gap < 0 {
		gap = 0
	}
	d := gap + buffer
	if d > max {
		return max
	}
	return d
}

const (
	reasonNoSunEvent   = "polar_day_or_night"
	reasonNetwork      = "network"
	reasonBadResponse  = "bad_response"
	reasonUnclassified = "other"
)

// failureReason classifies a sun times failure for the retry log.
func failureReason(err error) string {
	switch {
	case errors.Is(err, suntimes.ErrNoSunEvent):
		return reasonNoSunEvent
	case errors.Is(err, suntimes.ErrNetwork):
		return reasonNetwork
	case errors.Is(err, suntimes.ErrBadResponse):
		return reasonBadResponse
	default:
		return reasonUnclassified
	}
}
