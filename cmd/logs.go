package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/store"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent attendance attempts",
	Long: `List recent rows of the attendance log, newest first.

Examples:
  # Last 50 attempts
  face-attend logs

  # Only matched attempts
  face-attend logs --outcome MATCHED

  # Attempts of one person
  face-attend logs --person "Alice Novak"`,
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().Int("limit", 50, "Maximum number of attempts to show")
	logsCmd.Flags().String("outcome", "", "Filter by outcome (MATCHED, NO_MATCH, ...)")
	logsCmd.Flags().String("person", "", "Filter by identity ID or display name")
}

func runLogs(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	outcomeFilter := strings.ToUpper(mustGetString(cmd, "outcome"))
	person := mustGetString(cmd, "person")

	if outcomeFilter != "" && !store.Outcome(outcomeFilter).Valid() {
		return fmt.Errorf("unknown outcome %q, valid: %v", outcomeFilter, store.Outcomes)
	}

	cfg := config.Load()
	ctx := context.Background()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// filters are applied client side, fetch extra rows to compensate
	fetchLimit := limit
	if outcomeFilter != "" || person != "" {
		fetchLimit = limit * 10
	}

	attempts, err := st.Recent(ctx, fetchLimit)
	if err != nil {
		return fmt.Errorf("failed to load attempts: %w", err)
	}

	names := map[string]string{}
	if person != "" {
		identities, err := st.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to load identities: %w", err)
		}
		for _, id := range identities {
			names[id.ID] = id.DisplayName
		}
	}
	personNorm := store.NormalizeDisplayName(person)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tOUTCOME\tIDENTITY\tSCORE\tLATENCY")

	shown := 0
	for _, a := range attempts {
		if shown >= limit {
			break
		}
		if outcomeFilter != "" && string(a.Outcome) != outcomeFilter {
			continue
		}
		if person != "" {
			if a.IdentityID == "" {
				continue
			}
			idNorm := store.NormalizeDisplayName(a.IdentityID)
			nameNorm := store.NormalizeDisplayName(names[a.IdentityID])
			if idNorm != personNorm && nameNorm != personNorm {
				continue
			}
		}

		score := "-"
		if a.Score != nil {
			score = fmt.Sprintf("%.3f", *a.Score)
		}
		identity := a.IdentityID
		if identity == "" {
			identity = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dms\n",
			a.CreatedAt.Format("2006-01-02 15:04:05"), a.Outcome, identity, score, a.LatencyMS)
		shown++
	}
	return w.Flush()
}
