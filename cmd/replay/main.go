package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/ozkurt/formsense/internal/replay"
	"github.com/ozkurt/formsense/pkg/logger"
)

// Default replay parameters.
const (
	defaultThresholds  = "configs/thresholds.yaml"
	defaultExercise    = "squat"
	defaultAlignMode   = "speed_ratio"
	defaultSpeed       = 1.0
	defaultReps        = 5
	defaultFaultJoint  = "left_knee"
	defaultReplayLimit = 2 * time.Minute
)

func main() {
	var (
		thresholdsPath = flag.String("thresholds", defaultThresholds, "Path to the thresholds YAML file")
		exercise       = flag.String("exercise", defaultExercise, "Exercise identifier to replay")
		tier           = flag.String("tier", "", "Skill tier (empty for default)")
		mode           = flag.String("mode", defaultAlignMode, "Alignment mode: speed_ratio or elastic")
		speed          = flag.Float64("speed", defaultSpeed, "Subject pace relative to the template")
		reps           = flag.Int("reps", defaultReps, "Number of repetitions")
		jitter         = flag.Float64("jitter", 0, "Landmark jitter amplitude in normalized units")
		seed           = flag.Int64("seed", 1, "Jitter random seed")
		faultJoint     = flag.String("fault-joint", defaultFaultJoint, "Joint carrying the injected fault")
		faultOffset    = flag.Float64("fault-offset", 0, "Injected angular offset in degrees (0 disables)")
		faultStart     = flag.Uint64("fault-start", 2100, "Fault window start on the live timeline in ms")
		faultEnd       = flag.Uint64("fault-end", 2500, "Fault window end on the live timeline in ms")
		verbose        = flag.Bool("verbose", false, "Log feedback on every frame")
	)
	flag.Parse()

	// Setup logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultReplayLimit)
	defer cancel()

	cfg := replay.RunConfig{
		ThresholdsPath: *thresholdsPath,
		Exercise:       *exercise,
		SkillTier:      *tier,
		AlignMode:      *mode,
		Speed:          *speed,
		Reps:           *reps,
		JitterAmp:      *jitter,
		JitterSeed:     *seed,
		FaultJoint:     *faultJoint,
		FaultOffset:    *faultOffset,
		FaultStartMS:   *faultStart,
		FaultEndMS:     *faultEnd,
		Verbose:        *verbose,
	}

	if err := replay.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Replay failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
