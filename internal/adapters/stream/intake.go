package stream

import (
	"context"
	"fmt"

	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/pkg/logger"
	"github.com/ozkurt/formsense/pkg/metrics"
)

// Intake guards the producer boundary for one session. Malformed and
// out-of-order frames are dropped here, counted, and never reach the
// pipeline; valid frames go into the latest-wins buffer.
type Intake struct {
	buf *FrameBuffer
	log logger.Logger

	lastTS  uint64
	started bool
}

// IntakeOption applies a configuration option to the Intake.
type IntakeOption func(*Intake)

// WithLogger sets the logger used for rejection diagnostics.
func WithLogger(log logger.Logger) IntakeOption {
	return func(i *Intake) {
		if log != nil {
			i.log = log
		}
	}
}

// NewIntake creates an intake feeding the given buffer.
func NewIntake(buf *FrameBuffer, opts ...IntakeOption) (*Intake, error) {
	if buf == nil {
		return nil, ErrNilBuffer
	}

	i := &Intake{
		buf: buf,
		log: logger.Named("intake"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Submit validates one frame and offers it to the buffer. Rejections
// return a typed error and mutate no state.
func (i *Intake) Submit(ctx context.Context, frame pose.PoseFrame) error {
	if err := frame.Validate(); err != nil {
		metrics.RecordFrameRejected("malformed")
		metrics.RecordErrorByComponent("intake", "malformed")
		i.log.Debug(ctx, "rejected malformed frame",
			logger.Uint64("timestamp_ms", frame.TimestampMS),
			logger.Error(err),
		)
		return err
	}

	if i.started && frame.TimestampMS < i.lastTS {
		metrics.RecordFrameRejected("out_of_order")
		metrics.RecordErrorByComponent("intake", "out_of_order")
		i.log.Debug(ctx, "rejected out-of-order frame",
			logger.Uint64("timestamp_ms", frame.TimestampMS),
			logger.Uint64("last_timestamp_ms", i.lastTS),
		)
		return fmt.Errorf("%w: %d after %d", ErrOutOfOrder, frame.TimestampMS, i.lastTS)
	}

	i.started = true
	i.lastTS = frame.TimestampMS

	if !i.buf.Offer(frame) {
		return ErrClosed
	}
	metrics.RecordFrameIngested()
	return nil
}

// LastTimestamp returns the newest accepted timestamp.
func (i *Intake) LastTimestamp() uint64 {
	return i.lastTS
}
