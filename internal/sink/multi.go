package sink

import (
	"context"
	"fmt"

	"suntheme/internal/mode"

	"cloudeng.io/errors"
	"go.uber.org/zap"
)

// Multi applies a mode to every wrapped sink. One failing target does not
// stop the others; all failures are reported together.
type Multi struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewMulti creates a fan-out sink
func NewMulti(logger *zap.Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, logger: logger.Named("sink")}
}

// Name returns the sink name
func (m *Multi) Name() string {
	return "multi"
}

// Apply applies md to every sink in order
func (m *Multi) Apply(ctx context.Context, md mode.Mode) error {
	errs := errors.M{}
	for _, s := range m.sinks {
		if err := s.Apply(ctx, md); err != nil {
			m.logger.Warn("Sink failed",
				zap.String("sink", s.Name()),
				zap.Stringer("mode", md),
				zap.Error(err))
			errs.Append(fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if err := errs.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSink, err)
	}
	return nil
}
