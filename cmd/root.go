package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tourdesk",
	Short: "Tour sales chat assistant",
	Long: `tourdesk answers tour price questions on Zalo and Telegram.

It coalesces bursts of customer messages, extracts destination, party size
and trip length, and replies with a quote or a handoff to a consultant.`,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
