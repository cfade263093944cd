// Package session wires the comparison pipeline for one subject: intake
// guard, latest-wins buffer, smoothing, goniometry, temporal alignment,
// deviation, detection, and feedback ranking. Every stage runs on the
// session's single processing goroutine; frame arrival is the only
// concurrency boundary.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ozkurt/formsense/internal/adapters/stream"
	"github.com/ozkurt/formsense/internal/domain/align"
	"github.com/ozkurt/formsense/internal/domain/detect"
	"github.com/ozkurt/formsense/internal/domain/deviation"
	"github.com/ozkurt/formsense/internal/domain/feedback"
	"github.com/ozkurt/formsense/internal/domain/gonio"
	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/internal/domain/smoothing"
	"github.com/ozkurt/formsense/internal/domain/template"
	"github.com/ozkurt/formsense/internal/domain/thresholds"
	"github.com/ozkurt/formsense/pkg/logger"
	"github.com/ozkurt/formsense/pkg/metrics"
)

// Default session configuration constants.
const (
	defaultComputeBudget     = 30 * time.Millisecond
	defaultVisibilityFloor   = 0.5
	defaultConfidenceFloor   = 0.3
	defaultTrackingLossLimit = 15
)

// activeSessions backs the active-session gauge across all sessions.
var activeSessions int64

// Result is one pipeline tick's output for the external feedback sink.
type Result struct {
	SessionID       string
	TimestampMS     uint64
	TemplateIndex   int
	AlignConfidence float64
	Events          []detect.Event
	Feedback        []feedback.Item
}

// Sink receives per-tick results. It runs on the session's processing
// goroutine and must return quickly.
type Sink func(Result)

// Session compares one live subject against one reference template.
type Session struct {
	mu sync.RWMutex

	id  string
	tpl *template.Template

	// Core components
	smoother    *smoothing.Smoother
	angles      *gonio.Engine
	aligner     align.Aligner
	deviations  *deviation.Engine
	detector    *detect.Detector
	prioritizer *feedback.Prioritizer
	buf         *stream.FrameBuffer
	intake      *stream.Intake

	// Configuration
	mode              align.Mode
	budget            time.Duration
	visibilityFloor   float64
	confidenceFloor   float64
	trackingLossLimit int
	sink              Sink

	// State
	started         bool
	done            chan struct{}
	framesProcessed uint64
	missingStreak   int
	lastTS          uint64
	lastFeedback    []feedback.Item

	logger logger.Logger
}

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithMode selects the temporal alignment strategy.
func WithMode(mode align.Mode) Option {
	return func(s *Session) {
		s.mode = mode
	}
}

// WithComputeBudget sets the per-frame compute deadline. A frame over
// budget skips its feedback update instead of blocking the pipeline.
func WithComputeBudget(budget time.Duration) Option {
	return func(s *Session) {
		if budget > 0 {
			s.budget = budget
		}
	}
}

// WithVisibilityFloor sets the landmark confidence below which a joint
// is treated as missing.
func WithVisibilityFloor(floor float64) Option {
	return func(s *Session) {
		if floor >= 0 && floor <= 1 {
			s.visibilityFloor = floor
		}
	}
}

// WithConfidenceFloor sets the alignment confidence below which the
// detector stops opening new pending faults.
func WithConfidenceFloor(floor float64) Option {
	return func(s *Session) {
		if floor >= 0 && floor <= 1 {
			s.confidenceFloor = floor
		}
	}
}

// WithTrackingLossLimit sets how many consecutive frames may produce no
// measurable joints before tracking is declared lost and filter state
// is reset.
func WithTrackingLossLimit(frames int) Option {
	return func(s *Session) {
		if frames > 0 {
			s.trackingLossLimit = frames
		}
	}
}

// WithSink sets the external feedback sink.
func WithSink(sink Sink) Option {
	return func(s *Session) {
		s.sink = sink
	}
}

// WithLogger sets a custom logger for the session.
func WithLogger(log logger.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a session over a frozen template and threshold table.
// All configuration problems surface here, before any frame is
// processed.
func New(tpl *template.Template, table *thresholds.Table, opts ...Option) (*Session, error) {
	if tpl == nil {
		return nil, ErrNilTemplate
	}
	if table == nil {
		return nil, ErrNilThresholds
	}
	if table.ExerciseID() != tpl.ExerciseID() {
		return nil, fmt.Errorf("%w: template %q vs thresholds %q",
			ErrExerciseMismatch, tpl.ExerciseID(), table.ExerciseID())
	}
	if primary, ok := tpl.PrimaryJoint(); ok {
		if err := table.Validate(primary); err != nil {
			return nil, err
		}
	}

	s := &Session{
		id:                uuid.NewString(),
		tpl:               tpl,
		mode:              align.ModeSpeedRatio,
		budget:            defaultComputeBudget,
		visibilityFloor:   defaultVisibilityFloor,
		confidenceFloor:   defaultConfidenceFloor,
		trackingLossLimit: defaultTrackingLossLimit,
		done:              make(chan struct{}),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Named("session")
	}

	aligner, err := align.New(s.mode, tpl)
	if err != nil {
		return nil, err
	}
	s.aligner = aligner

	s.deviations, err = deviation.NewEngine(tpl)
	if err != nil {
		return nil, err
	}

	s.detector, err = detect.New(table,
		detect.WithConfidenceFloor(s.confidenceFloor),
		detect.WithStateHook(recordTransition),
	)
	if err != nil {
		return nil, err
	}

	s.smoother = smoothing.New()
	s.angles = gonio.New(
		gonio.WithVisibilityFloor(s.visibilityFloor),
		gonio.WithUnreliableHook(func(pose.LandmarkID) {
			metrics.RecordUnreliableLandmark()
		}),
	)

	var fbOpts []feedback.Option
	if primary, ok := tpl.PrimaryJoint(); ok {
		fbOpts = append(fbOpts, feedback.WithPrimaryJoint(primary))
	}
	s.prioritizer = feedback.New(fbOpts...)

	s.buf = stream.NewFrameBuffer()
	s.intake, err = stream.NewIntake(s.buf, stream.WithLogger(s.logger.Named("intake")))
	if err != nil {
		return nil, err
	}

	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// ExerciseID returns the exercise this session compares against.
func (s *Session) ExerciseID() string {
	return s.tpl.ExerciseID()
}

// Start launches the processing goroutine. Starting twice is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.started = true

	metrics.UpdateActiveSessions(int(atomic.AddInt64(&activeSessions, 1)))
	s.logger.Info(ctx, "session started",
		logger.String("session_id", s.id),
		logger.String("exercise_id", s.tpl.ExerciseID()),
		logger.String("mode", string(s.mode)),
	)

	go s.run(ctx)
	return nil
}

// Stop halts intake immediately and waits for the in-flight frame to
// finish. Partial pipeline state is discarded; confirmed event history
// stays readable until the session is released.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.buf.Close()
	<-s.done

	metrics.UpdateActiveSessions(int(atomic.AddInt64(&activeSessions, -1)))
	s.logger.Info(context.Background(), "session stopped",
		logger.String("session_id", s.id),
		logger.Uint64("frames_processed", atomic.LoadUint64(&s.framesProcessed)),
	)
}

// Submit offers one live frame from the capture source. Invalid frames
// are rejected with a typed error and counted.
func (s *Session) Submit(ctx context.Context, frame pose.PoseFrame) error {
	return s.intake.Submit(ctx, frame)
}

// run pulls the freshest frame and pushes it through every stage.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	for {
		frame, ok := s.buf.Next(ctx)
		if !ok {
			return
		}
		s.process(ctx, &frame)
	}
}

func (s *Session) process(ctx context.Context, frame *pose.PoseFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	stageStart := start
	smoothed := s.smoother.SmoothFrame(frame)
	metrics.RecordStageLatency("smooth", msSince(stageStart))

	stageStart = time.Now()
	angleFrame := s.angles.Compute(smoothed)
	metrics.RecordStageLatency("angles", msSince(stageStart))

	if angleFrame.Len() == 0 {
		s.missingStreak++
		metrics.RecordMissingJoint()
		if s.missingStreak >= s.trackingLossLimit {
			s.resetTrackingLocked(ctx)
		}
		return
	}
	s.missingStreak = 0

	stageStart = time.Now()
	entry, err := s.aligner.Align(angleFrame)
	metrics.RecordStageLatency("align", msSince(stageStart))
	if err != nil {
		metrics.RecordErrorByComponent("session", "align")
		s.logger.Error(ctx, "alignment failed",
			logger.String("session_id", s.id),
			logger.Error(err),
		)
		return
	}
	metrics.UpdateAlignmentConfidence(entry.Confidence)

	stageStart = time.Now()
	devFrame, err := s.deviations.Deviate(angleFrame, entry)
	if err != nil {
		metrics.RecordErrorByComponent("session", "deviation")
		s.logger.Error(ctx, "deviation failed",
			logger.String("session_id", s.id),
			logger.Error(err),
		)
		return
	}
	prevConfirmed := s.detector.HistoryLen()
	events := s.detector.Observe(&devFrame)
	metrics.RecordStageLatency("detect", msSince(stageStart))

	if n := s.detector.HistoryLen(); n > prevConfirmed {
		for _, e := range s.detector.History()[prevConfirmed:] {
			metrics.RecordEventConfirmed(e.Severity.String())
			s.logger.Info(ctx, "error event confirmed",
				logger.String("session_id", s.id),
				logger.String("error_type", string(e.ErrorType)),
				logger.String("joint", e.Joint.String()),
				logger.String("severity", e.Severity.String()),
				logger.Float64("peak_deviation", e.PeakDeviation),
			)
		}
	}

	items := s.prioritizer.Prioritize(frame.TimestampMS, events)

	atomic.AddUint64(&s.framesProcessed, 1)
	s.lastTS = frame.TimestampMS

	elapsed := time.Since(start)
	metrics.RecordFrameLatency(float64(elapsed.Milliseconds()))
	if elapsed > s.budget {
		// Over budget: this frame's feedback update is skipped, never
		// retried.
		metrics.RecordBudgetMiss()
		s.logger.Warn(ctx, "compute budget exceeded, skipping feedback update",
			logger.String("session_id", s.id),
			logger.Duration("elapsed", elapsed),
			logger.Duration("budget", s.budget),
		)
		return
	}

	s.lastFeedback = items
	metrics.RecordFeedbackUpdate()

	if s.sink != nil {
		s.sink(Result{
			SessionID:       s.id,
			TimestampMS:     frame.TimestampMS,
			TemplateIndex:   entry.TemplateIndex,
			AlignConfidence: entry.Confidence,
			Events:          events,
			Feedback:        items,
		})
	}
}

// ResetTracking clears smoother and aligner state after the subject was
// lost, keeping confirmed events for end-of-session reporting.
func (s *Session) ResetTracking(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetTrackingLocked(ctx)
}

func (s *Session) resetTrackingLocked(ctx context.Context) {
	s.smoother.Reset()
	s.aligner.Reset()
	s.detector.Reset(true)
	s.missingStreak = 0

	metrics.RecordSmootherReset()
	metrics.RecordAlignmentResync()
	s.logger.Info(ctx, "tracking reset",
		logger.String("session_id", s.id),
	)
}

// Feedback returns the most recent prioritized feedback list.
func (s *Session) Feedback() []feedback.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]feedback.Item, len(s.lastFeedback))
	copy(out, s.lastFeedback)
	return out
}

// History returns every confirmed event so far, for post-session
// reporting.
func (s *Session) History() []detect.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detector.History()
}

// Stats is a point-in-time session summary.
type Stats struct {
	SessionID       string
	ExerciseID      string
	FramesProcessed uint64
	LastTimestampMS uint64
	ActiveFaults    int
	ConfirmedTotal  int
}

// Stats returns a snapshot of session progress.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		SessionID:       s.id,
		ExerciseID:      s.tpl.ExerciseID(),
		FramesProcessed: atomic.LoadUint64(&s.framesProcessed),
		LastTimestampMS: s.lastTS,
		ActiveFaults:    len(s.detector.Confirmed()),
		ConfirmedTotal:  s.detector.HistoryLen(),
	}
}

// recordTransition maps detector lifecycle transitions onto counters.
// Confirmations are recorded from the history delta instead, where the
// final severity is known.
func recordTransition(_ pose.JointKey, _ thresholds.ErrorType, from, to detect.State) {
	switch {
	case to == detect.StatePending:
		metrics.RecordEventPending()
	case from != detect.StateIdle && to == detect.StateIdle:
		metrics.RecordEventCleared()
	}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
