// Package stream is the boundary between an external pose producer and
// a session pipeline. It validates incoming frames and hands the
// pipeline the freshest one, dropping stale frames when the producer
// outpaces processing.
package stream

import (
	"context"
	"sync"

	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/pkg/metrics"
)

// FrameBuffer is a single-slot handoff between producer and pipeline.
// A new frame overwrites an unconsumed one; stale poses are worse than
// dropped ones for a real-time feedback loop.
type FrameBuffer struct {
	mu     sync.Mutex
	slot   pose.PoseFrame
	filled bool
	closed bool
	notify chan struct{}
}

// NewFrameBuffer creates an empty frame buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{
		notify: make(chan struct{}, 1),
	}
}

// Offer places a frame in the slot, replacing any unconsumed frame.
// Returns false once the buffer is closed.
func (b *FrameBuffer) Offer(frame pose.PoseFrame) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	if b.filled {
		metrics.RecordFrameDropped()
	}
	b.slot = frame
	b.filled = true
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until a frame is available or the buffer closes. The
// second return is false when the buffer closed with nothing pending.
func (b *FrameBuffer) Next(ctx context.Context) (pose.PoseFrame, bool) {
	for {
		b.mu.Lock()
		if b.filled {
			frame := b.slot
			b.filled = false
			b.mu.Unlock()
			return frame, true
		}
		closed := b.closed
		b.mu.Unlock()

		if closed {
			return pose.PoseFrame{}, false
		}

		select {
		case <-b.notify:
		case <-ctx.Done():
			return pose.PoseFrame{}, false
		}
	}
}

// Close stops intake and wakes any blocked consumer. A frame already
// in the slot is still delivered.
func (b *FrameBuffer) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// IsClosed reports whether the buffer has been closed.
func (b *FrameBuffer) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
