package sink

import (
	"context"
	"sync"

	"suntheme/internal/clock"
	"suntheme/internal/history"
	"suntheme/internal/mode"

	"go.uber.org/zap"
)

// Recorder persists applied transitions
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Publisher fans applied transitions out to live observers
type Publisher interface {
	Publish(e history.Entry)
}

// PersistedMode reports the mode currently persisted, which may have been
// written by another process. StateFile.Current satisfies it.
type PersistedMode func() (mode.Mode, bool, error)

// Recording wraps a sink and, after each successful apply that changes the
// mode, records the transition and publishes it. Recorder and publisher
// failures never fail the apply.
type Recording struct {
	next      Sink
	recorder  Recorder
	publisher Publisher
	source    history.Source
	clock     clock.Clock
	logger    *zap.Logger
	persisted PersistedMode

	mu   sync.Mutex
	last mode.Mode
}

// NewRecording wraps next. recorder and publisher may be nil.
func NewRecording(next Sink, recorder Recorder, publisher Publisher, source history.Source, clk clock.Clock, logger *zap.Logger) *Recording {
	return &Recording{
		next:      next,
		recorder:  recorder,
		publisher: publisher,
		source:    source,
		clock:     clk,
		logger:    logger.Named("recording"),
	}
}

// WithPersisted makes "changed" mean different from the persisted mode
// rather than from the last mode this instance applied, so that changes
// made by other processes are accounted for.
func (r *Recording) WithPersisted(persisted PersistedMode) *Recording {
	r.persisted = persisted
	return r
}

// Name returns the wrapped sink's name
func (r *Recording) Name() string {
	return r.next.Name()
}

// Apply applies m through the wrapped sink and records it on change
func (r *Recording) Apply(ctx context.Context, m mode.Mode) error {
	prev, known := r.previous()

	if err := r.next.Apply(ctx, m); err != nil {
		return err
	}

	r.mu.Lock()
	r.last = m
	r.mu.Unlock()
	if known && prev == m {
		return nil
	}

	entry := history.NewEntry(m, r.source, r.clock.Now())
	if r.recorder != nil {
		if err := r.recorder.Record(ctx, entry); err != nil {
			r.logger.Warn("Failed to record transition",
				zap.Stringer("mode", m),
				zap.Error(err))
		}
	}
	if r.publisher != nil {
		r.publisher.Publish(entry)
	}
	return nil
}

// previous returns the mode in effect before an apply. The persisted mode
// wins; the in-process record is the fallback when it cannot be read.
func (r *Recording) previous() (mode.Mode, bool) {
	if r.persisted != nil {
		m, ok, err := r.persisted()
		if err == nil {
			return m, ok
		}
		r.logger.Debug("Failed to read persisted mode", zap.Error(err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.last != ""
}
