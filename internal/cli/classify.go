package cli

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/focusgroup/focusbot/internal/daemon"
)

func init() {
	classifyCmd.Flags().StringVar(&classifyUser, "username", "someone", "Sender name passed to the classifier")
	rootCmd.AddCommand(classifyCmd)
}

var classifyUser string

var classifyCmd = &cobra.Command{
	Use:   "classify TEXT...",
	Short: "Show how a chat message would be read, without storing anything",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	logger := daemon.NewLogger(cfg.Logging, os.Stderr)
	chain, err := daemon.NewClassifier(cfg.Classifier, logger)
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	in := chain.Classify(cmd.Context(), text, classifyUser)
	out := map[string]any{"text": text, "intent": in}
	if in.Description != nil && *in.Description != "" {
		out["category"] = chain.Categorize(cmd.Context(), *in.Description)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
