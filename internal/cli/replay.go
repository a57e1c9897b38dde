package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tablestakes/brigade/internal/replay"
	"github.com/tablestakes/brigade/internal/transcript"
)

var replayCmd = &cobra.Command{
	Use:   "replay <trail file>",
	Short: "Replay a recorded audit trail",
	Long: `Replay a run's NDJSON audit trail stage by stage, verifying each
snapshot's hash along the way.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	outWriter := cmd.OutOrStdout()

	trail, err := replay.ReadTrail(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(outWriter, "run %s (mode %s, started %s)\n",
		trail.Header.RunID, trail.Header.Context.Mode,
		trail.Header.StartedAt.Format("2006-01-02 15:04:05"))

	formatter := transcript.NewFormatter()
	for i := range trail.Entries {
		record := &trail.Entries[i]
		for j := range record.Entry.Critiques {
			fmt.Fprintln(outWriter, formatter.FormatCritique(&record.Entry.Critiques[j]))
		}
		fmt.Fprintln(outWriter, formatter.FormatEntry(record.Seq, &record.Entry))
	}

	if mismatched := trail.VerifySnapshots(); len(mismatched) > 0 {
		return fmt.Errorf("snapshot hash mismatch at sequence(s) %v: trail has been modified", mismatched)
	}

	if trail.Decision != nil {
		fmt.Fprintf(outWriter, "decision: %s (spend=%.2f score=%.3f)\n",
			trail.Decision.Status, trail.Decision.Metrics.TotalSpend, trail.Decision.Metrics.Score)
		for _, v := range trail.Decision.Constraints.Violations {
			fmt.Fprintf(outWriter, "  violation: %s\n", v)
		}
	} else {
		fmt.Fprintln(outWriter, "trail has no decision record (run did not complete)")
	}

	fmt.Fprintf(outWriter, "%d snapshot(s) verified\n", len(trail.Entries))
	return nil
}
