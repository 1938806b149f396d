package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/focusgroup/focusbot/internal/app/summary"
	"github.com/focusgroup/focusbot/internal/daemon"
	"github.com/focusgroup/focusbot/internal/domain"
)

func init() {
	summaryCmd.Flags().StringVar(&summaryUsername, "username", "", "Name to show in the rendered summary")
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "Print the summary as JSON")
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(tasksCmd)
}

var (
	summaryUsername string
	summaryJSON     bool
)

var summaryCmd = &cobra.Command{
	Use:     "summary CHAT_ID USER_ID",
	Short:   "Show a member's estimation summary",
	Example: `  focusbot summary -- -1001234567890 42`,
	Args:    cobra.ExactArgs(2),
	RunE:    runSummary,
}

var tasksCmd = &cobra.Command{
	Use:     "tasks CHAT_ID USER_ID",
	Aliases: []string{"ls"},
	Short:   "List a member's recorded tasks",
	Example: `  focusbot tasks -- -1001234567890 42`,
	Args:    cobra.ExactArgs(2),
	RunE:    runTasks,
}

func parseIDs(args []string) (chatID, userID int64, err error) {
	if chatID, err = strconv.ParseInt(args[0], 10, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid chat id %q", args[0])
	}
	if userID, err = strconv.ParseInt(args[1], 10, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid user id %q", args[1])
	}
	return chatID, userID, nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	chatID, userID, err := parseIDs(args)
	if err != nil {
		return err
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	s, err := d.Aggregator.UserSummary(cmd.Context(), chatID, userID, time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if summaryJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	name := summaryUsername
	if name == "" && len(s.RecentTasks) > 0 {
		name = s.RecentTasks[0].Username
	}
	fmt.Fprintln(out, summary.RenderUserSummary(name, s))
	return nil
}

func runTasks(cmd *cobra.Command, args []string) error {
	chatID, userID, err := parseIDs(args)
	if err != nil {
		return err
	}

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	records, err := d.Store.ListTasks(cmd.Context(), chatID, userID)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tasks recorded for this member.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATE\tESTIMATE\tACTUAL\tACCURACY\tCATEGORY\tDESCRIPTION")
	for _, r := range records {
		t := r.Task
		actual, accuracy := "-", "-"
		if t.ActualMinutes != nil {
			actual = domain.FormatDuration(*t.ActualMinutes)
		}
		if t.Accuracy != nil {
			accuracy = strconv.Itoa(*t.Accuracy) + "%"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.StartedAt.In(d.Store.Location()).Format("2006-01-02 15:04"),
			t.State(),
			domain.FormatDuration(t.Estimate()),
			actual,
			accuracy,
			t.Category,
			t.Description,
		)
	}
	return w.Flush()
}
