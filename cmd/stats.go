package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show gallery and attendance statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	enrolled, err := st.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count identities: %w", err)
	}
	presentToday, err := st.CountMatchedToday(ctx)
	if err != nil {
		return fmt.Errorf("failed to count presence: %w", err)
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}

	fmt.Printf("Enrolled identities:  %d\n", enrolled)
	fmt.Printf("Present today:        %d\n", presentToday)
	fmt.Printf("Total attempts:       %d\n", stats.TotalAttempts)
	fmt.Printf("Matched attempts:     %d (%.1f%%)\n", stats.MatchedAttempts, stats.MatchRate())
	fmt.Printf("Average latency:      %.0fms\n", stats.AvgLatencyMS)
	return nil
}
