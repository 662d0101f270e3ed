package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/match"
	"github.com/kozaktomas/face-attend/internal/store"
	"github.com/kozaktomas/face-attend/internal/vision"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [image files]",
	Short: "Enroll a person from one or more face photos",
	Long: `Enroll a person into the gallery from photos. Each photo must
contain exactly one face. With multiple photos the signatures are averaged
and renormalized, which smooths out lighting and pose differences.

Enrolling an existing ID replaces the stored signature.

Examples:
  face-attend enroll --id alice --name "Alice Novak" alice1.jpg alice2.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("id", "", "Identity ID (required)")
	enrollCmd.Flags().String("name", "", "Display name, defaults to the ID")
	_ = enrollCmd.MarkFlagRequired("id")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	id := mustGetString(cmd, "id")
	name := mustGetString(cmd, "name")
	if name == "" {
		name = id
	}

	cfg := config.Load()
	ctx := context.Background()

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

	sum := make([]float64, embedder.Dim())
	for _, path := range args {
		frame, err := vision.ReadImage(path)
		if err != nil {
			return err
		}

		det, count, err := detector.DetectSingle(frame)
		if err != nil {
			frame.Close()
			return fmt.Errorf("detect in %s: %w", path, err)
		}
		if det == nil || count != 1 {
			if det != nil {
				det.Crop.Close()
			}
			frame.Close()
			return fmt.Errorf("%s must contain exactly one face, found %d", path, count)
		}

		sig, err := embedder.Generate(det.Crop)
		det.Crop.Close()
		frame.Close()
		if err != nil {
			return fmt.Errorf("generate signature from %s: %w", path, err)
		}

		for i, v := range sig {
			sum[i] += float64(v)
		}
		fmt.Printf("processed %s\n", path)
	}

	mean := make([]float32, len(sum))
	for i, v := range sum {
		mean[i] = float32(v / float64(len(args)))
	}
	signature, err := match.Normalize(mean)
	if err != nil {
		return fmt.Errorf("normalize averaged signature: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	identity := store.Identity{
		ID:          id,
		DisplayName: name,
		Signature:   signature,
	}
	if err := st.Upsert(ctx, identity); err != nil {
		return fmt.Errorf("failed to enroll %s: %w", id, err)
	}

	fmt.Printf("enrolled %s (%s) from %d photo(s)\n", name, id, len(args))
	return nil
}
