// Package cli implements the focusbot command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "focusbot",
	Short: "focusbot tracks focus sessions announced in Telegram chats",
	Long: `focusbot listens to a Telegram group through a webhook, records the
focus tasks members announce ("30 min: fix the login bug"), matches their
completions and reports how well they estimate.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
