package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "brigade",
	Short: "Purchasing committee decision engine",
	Long: `brigade runs a draft purchasing/production plan through the automated
purchasing committee: a planner seeds the proposal, critics raise issues and
corrective patches, and the run resolves to approved, needs_human_review, or
blocked with a complete audit trail of every intermediate snapshot.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(initCmd)

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to brigade.yaml config file (default: search up directory tree)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
