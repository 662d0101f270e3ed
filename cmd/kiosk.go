package cmd

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/kiosk"
	"github.com/kozaktomas/face-attend/internal/liveness"
	"github.com/kozaktomas/face-attend/internal/match"
	"github.com/kozaktomas/face-attend/internal/store"
	"github.com/kozaktomas/face-attend/internal/vision"
)

var kioskCmd = &cobra.Command{
	Use:   "kiosk",
	Short: "Run the attendance kiosk loop",
	Long: `Run the blink-triggered attendance loop on the configured camera.

The kiosk scans for a single face, waits for a blink, checks liveness and
matches the face signature against the enrolled gallery. Each completed
attempt is appended to the attendance log.

Examples:
  # Run against the default camera
  face-attend kiosk

  # Check in one expected person, skip the pipeline once recorded
  face-attend kiosk --subject alice

  # Trade replay resistance for speed
  face-attend kiosk --no-liveness

  # Keep annotated frames of every attempt
  face-attend kiosk --snapshot-dir ./snapshots`,
	RunE: runKiosk,
}

func init() {
	rootCmd.AddCommand(kioskCmd)

	kioskCmd.Flags().String("subject", "", "Expected identity ID, short-circuits when already present today")
	kioskCmd.Flags().Bool("no-liveness", false, "Disable the multi-frame liveness check")
	kioskCmd.Flags().String("snapshot-dir", "", "Directory for annotated attempt frames (overrides SNAPSHOT_DIR)")
}

func runKiosk(cmd *cobra.Command, args []string) error {
	subject := mustGetString(cmd, "subject")
	noLiveness := mustGetBool(cmd, "no-liveness")
	snapshotDir := mustGetString(cmd, "snapshot-dir")

	cfg := config.Load()
	if snapshotDir == "" {
		snapshotDir = cfg.Kiosk.SnapshotDir
	}
	livenessEnabled := cfg.Liveness.Enabled && !noLiveness

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if subject != "" {
		present, err := st.HasMatchedToday(ctx, subject)
		if err != nil {
			return fmt.Errorf("failed to check presence for %s: %w", subject, err)
		}
		if present {
			fmt.Printf("%s is already recorded today, nothing to do\n", subject)
			return nil
		}
	}

	detector, err := vision.NewYuNet(cfg.Detector)
	if err != nil {
		return fmt.Errorf("failed to load face detector: %w", err)
	}
	defer detector.Close()

	embedder, err := vision.NewArcFace(cfg.Embedder)
	if err != nil {
		return fmt.Errorf("failed to load embedder: %w", err)
	}
	defer embedder.Close()

	landmarker, err := vision.NewLandmarkNet(cfg.Liveness.LandmarkModelPath)
	if err != nil {
		return fmt.Errorf("failed to load landmark model: %w", err)
	}
	defer landmarker.Close()

	var snapshots *kiosk.SnapshotWriter
	if snapshotDir != "" {
		snapshots, err = kiosk.NewSnapshotWriter(snapshotDir)
		if err != nil {
			return fmt.Errorf("failed to set up snapshots: %w", err)
		}
	}

	monitor := liveness.NewMonitor(
		cfg.Liveness.Window,
		cfg.Liveness.MovementThreshold,
		cfg.Liveness.BlinkVariance,
		cfg.Liveness.BlinkEARThreshold,
		cfg.Kiosk.BlinkCooldown,
	)

	orch := kiosk.New(kiosk.Deps{
		Source:          vision.NewWebcam(cfg.Camera),
		Detector:        detector,
		Landmarker:      landmarker,
		Embedder:        embedder,
		Matcher:         match.NewMatcher(cfg.Match.Threshold),
		Signatures:      st,
		Log:             st,
		Monitor:         monitor,
		Snapshots:       snapshots,
		Subject:         subject,
		LivenessEnabled: livenessEnabled,
		UseIndex:        cfg.Match.UseIndex,
		IndexCutoff:     cfg.Match.IndexCutoff,
		OnResult:        printResult,
	}, cfg.Kiosk)

	log.Printf("kiosk started on camera %s, match threshold %.2f", cfg.Camera.Device, cfg.Match.Threshold)
	err = orch.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

func printResult(r kiosk.Result) {
	switch r.Outcome {
	case store.OutcomeMatched:
		fmt.Printf("MATCHED  %s (score %.3f, %s)\n", r.DisplayName, r.Score, r.Latency)
	case store.OutcomeNoMatch:
		fmt.Printf("NO MATCH (best score %.3f, %s)\n", r.Score, r.Latency)
	default:
		fmt.Printf("%s (%s)\n", r.Outcome, r.Latency)
	}
}
