package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/match"
	"github.com/kozaktomas/face-attend/internal/store"
)

// seedIDPrefix marks generated identities so they can be removed later.
const seedIDPrefix = "DUMMY_"

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the gallery with random signatures for load testing",
	Long: `Generate random unit-length signatures to measure matching latency
at a realistic gallery size. Generated identities carry the DUMMY_ prefix
and random directions in 512 dimensions are near-orthogonal to any real
face signature, so they never produce false matches.

Examples:
  # Add 5000 dummy identities
  face-attend seed

  # Add a custom amount
  face-attend seed --count 20000

  # Remove all previously seeded identities
  face-attend seed --clear`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().Int("count", 5000, "Number of dummy identities to generate")
	seedCmd.Flags().Bool("clear", false, "Remove seeded identities instead of adding")
}

func runSeed(cmd *cobra.Command, args []string) error {
	count := mustGetInt(cmd, "count")
	clear := mustGetBool(cmd, "clear")

	cfg := config.Load()
	ctx := context.Background()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if clear {
		removed, err := st.DeleteByIDPrefix(ctx, seedIDPrefix)
		if err != nil {
			return fmt.Errorf("failed to clear seeded identities: %w", err)
		}
		fmt.Printf("removed %d seeded identities\n", removed)
		return nil
	}

	bar := progressbar.Default(int64(count), "seeding")
	for i := 0; i < count; i++ {
		raw := make([]float32, cfg.Embedder.Dim)
		for j := range raw {
			raw[j] = float32(rand.NormFloat64())
		}
		signature, err := match.Normalize(raw)
		if err != nil {
			// astronomically unlikely, retry with a fresh draw
			i--
			continue
		}

		id := fmt.Sprintf("%s%05d", seedIDPrefix, i)
		identity := store.Identity{
			ID:          id,
			DisplayName: fmt.Sprintf("Dummy %05d", i),
			Signature:   signature,
		}
		if err := st.Upsert(ctx, identity); err != nil {
			return fmt.Errorf("failed to seed %s: %w", id, err)
		}
		_ = bar.Add(1)
	}

	fmt.Printf("seeded %d identities\n", count)
	return nil
}
