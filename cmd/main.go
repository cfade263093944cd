package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ozkurt/formsense/internal/adapters/repository"
	session "github.com/ozkurt/formsense/internal/app"
	"github.com/ozkurt/formsense/internal/config"
	"github.com/ozkurt/formsense/internal/domain/align"
	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/internal/domain/thresholds"
	"github.com/ozkurt/formsense/internal/replay"
	"github.com/ozkurt/formsense/pkg/logger"
	"github.com/ozkurt/formsense/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second

	demoFrameInterval = 33 * time.Millisecond
	demoReps          = 5
	demoJitterAmp     = 0.002
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Thresholds are fatal at startup: a session must never run with a
	// partial table.
	table, err := thresholds.LoadFile(cfg.ThresholdsPath, cfg.Exercise, cfg.SkillTier)
	if err != nil {
		log.Error(ctx, "failed to load thresholds", logger.Error(err))
		return
	}

	// Build the reference template from the synthetic recording and
	// register it for reuse.
	reference := replay.New(
		replay.WithReps(demoReps),
		replay.WithSource(pose.SourceTemplate),
	)
	tpl, err := session.BuildTemplate(ctx, cfg.Exercise, reference.Frames(),
		session.WithPrimaryJoint(pose.JointLeftKnee),
		session.WithBuildVisibilityFloor(cfg.VisibilityFloor),
	)
	if err != nil {
		log.Error(ctx, "failed to build template", logger.Error(err))
		return
	}

	store := repository.NewTemplateStore()
	if err := store.Put(ctx, tpl); err != nil {
		log.Error(ctx, "failed to register template", logger.Error(err))
		return
	}
	tpl, err = store.Get(ctx, cfg.Exercise)
	if err != nil {
		log.Error(ctx, "failed to resolve template", logger.Error(err))
		return
	}

	mode, ok := align.ParseMode(cfg.AlignMode)
	if !ok {
		log.Error(ctx, "unknown align mode", logger.String("align_mode", cfg.AlignMode))
		return
	}

	sess, err := session.New(tpl, table,
		session.WithMode(mode),
		session.WithComputeBudget(time.Duration(cfg.ComputeBudgetMS)*time.Millisecond),
		session.WithVisibilityFloor(cfg.VisibilityFloor),
		session.WithConfidenceFloor(cfg.ConfidenceFloor),
		session.WithTrackingLossLimit(cfg.TrackingLossFrames),
		session.WithSink(feedbackSink(ctx, log)),
		session.WithLogger(log.Named("session")),
	)
	if err != nil {
		log.Error(ctx, "failed to create session", logger.Error(err))
		return
	}
	if err := sess.Start(ctx); err != nil {
		log.Error(ctx, "failed to start session", logger.Error(err))
		return
	}
	defer sess.Stop()

	// Feed the demo subject in real time.
	go feedLive(ctx, sess, log)

	// Prometheus endpoint over the pipeline registry.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting metrics server", logger.String("addr", cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("metrics server failed: " + err.Error() + "\n")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "metrics server shutdown failed", logger.Error(err))
	}

	for _, e := range sess.History() {
		log.Info(ctx, "session event",
			logger.String("error_type", string(e.ErrorType)),
			logger.String("joint", e.Joint.String()),
			logger.String("severity", e.Severity.String()),
			logger.Uint64("confirmed_ms", e.ConfirmedMS),
			logger.Float64("peak_deviation", e.PeakDeviation),
		)
	}
	log.Info(ctx, "stopped")
}

// feedLive replays the synthetic subject over and over with jitter and
// one injected knee fault per pass, at capture pace.
func feedLive(ctx context.Context, sess *session.Session, log logger.Logger) {
	gen := replay.New(
		replay.WithReps(demoReps),
		replay.WithJitter(demoJitterAmp, 1),
		replay.WithFault(replay.Fault{
			Joint:     pose.JointLeftKnee,
			StartMS:   2100,
			EndMS:     2500,
			OffsetDeg: 12,
		}),
	)
	frames := gen.Frames()
	passLen := gen.DurationMS() + uint64(demoFrameInterval.Milliseconds())

	ticker := time.NewTicker(demoFrameInterval)
	defer ticker.Stop()

	var epoch uint64
	i := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame := frames[i]
		frame.TimestampMS += epoch
		if err := sess.Submit(ctx, frame); err != nil {
			log.Debug(ctx, "frame rejected", logger.Error(err))
		}

		i++
		if i >= len(frames) {
			// Next attempt: fresh tracking state, continuous clock.
			i = 0
			epoch += passLen
			sess.ResetTracking(ctx)
		}
	}
}

// feedbackSink logs the top feedback item whenever the active fault
// set changes.
func feedbackSink(ctx context.Context, log logger.Logger) session.Sink {
	lastActive := -1
	return func(r session.Result) {
		if len(r.Events) == lastActive {
			return
		}
		lastActive = len(r.Events)

		if len(r.Feedback) == 0 {
			log.Info(ctx, "form clean", logger.Uint64("timestamp_ms", r.TimestampMS))
			return
		}
		top := r.Feedback[0]
		log.Info(ctx, "feedback",
			logger.Uint64("timestamp_ms", r.TimestampMS),
			logger.String("message_key", top.MessageKey),
			logger.Float64("priority", top.PriorityScore),
			logger.Int("active_faults", len(r.Events)),
		)
	}
}
