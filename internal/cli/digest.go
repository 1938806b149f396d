package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/focusgroup/focusbot/internal/app/summary"
	"github.com/focusgroup/focusbot/internal/daemon"
)

func init() {
	digestCmd.Flags().StringVar(&digestDate, "date", "", "Day to summarize as YYYY-MM-DD (default: today in the tracker timezone)")
	digestCmd.Flags().Int64Var(&digestChat, "chat", 0, "Only print the digest of this chat instead of posting")
	rootCmd.AddCommand(digestCmd)
}

var (
	digestDate string
	digestChat int64
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Post the daily group digest to every active chat",
	Long: `Build the daily digest for every chat with completed tasks on the given
day and post it through the bot. With --chat the digest of that chat is
printed instead and nothing is sent.`,
	Args: cobra.NoArgs,
	RunE: runDigest,
}

func runDigest(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	date := digestDate
	if date == "" {
		date = d.Store.DateOf(time.Now())
	} else if _, err := time.Parse(time.DateOnly, date); err != nil {
		return fmt.Errorf("invalid --date %q (want YYYY-MM-DD)", date)
	}

	out := cmd.OutOrStdout()
	if digestChat != 0 {
		dg, err := d.Aggregator.DailyGroupDigest(cmd.Context(), digestChat, date)
		if err != nil {
			return err
		}
		if dg.TotalTasks == 0 {
			fmt.Fprintf(out, "No completed tasks in chat %d on %s.\n", digestChat, date)
			return nil
		}
		fmt.Fprintln(out, summary.RenderDigest(dg))
		return nil
	}

	if !d.Telegram.Enabled() {
		return fmt.Errorf("telegram bot token not configured; use --chat to print a digest")
	}
	res, err := d.Digest.Run(cmd.Context(), date)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
