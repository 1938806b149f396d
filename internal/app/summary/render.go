package summary

import (
	"fmt"
	"html"
	"strings"

	"github.com/focusgroup/focusbot/internal/domain"
)

// RenderUserSummary formats s as an HTML chat message.
func RenderUserSummary(username string, s UserSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 <b>Focus summary for %s</b>\n", mention(username))
	if s.TotalTasks == 0 {
		b.WriteString("No completed tasks yet. Start one with something like \"30 min: fix the login bug\".")
		return b.String()
	}

	fmt.Fprintf(&b, "%s Average accuracy: %d%% over %d tasks\n", domain.AccuracyEmoji(s.AverageAccuracy), s.AverageAccuracy, s.TotalTasks)
	fmt.Fprintf(&b, "⏱ Last 24h focus: %s\n", domain.FormatDuration(s.Last24HoursFocus))

	if len(s.CategoryBreakdown) > 0 {
		b.WriteString("\n<b>By category (24h)</b>\n")
		for _, c := range s.CategoryBreakdown {
			fmt.Fprintf(&b, "• %s: %s (%d%%)\n", html.EscapeString(c.Category), domain.FormatDuration(c.Minutes), c.Percentage)
		}
	}

	b.WriteString("\n<b>Recent</b>\n")
	for _, t := range s.RecentTasks {
		desc := t.Description
		if desc == "" {
			desc = "task"
		}
		fmt.Fprintf(&b, "• %s: est %s, actual %s", html.EscapeString(desc),
			domain.FormatDuration(t.Estimate()), domain.FormatDuration(t.Actual()))
		if t.Accuracy != nil {
			fmt.Fprintf(&b, " (%d%%)", *t.Accuracy)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderDigest formats d as an HTML chat message.
func RenderDigest(d Digest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Daily Summary - %s</b>\n", d.Date)
	fmt.Fprintf(&b, "📈 %d tasks completed, %d%% group accuracy\n\n", d.TotalTasks, d.GroupAccuracy)

	for _, u := range d.Users {
		fmt.Fprintf(&b, "%s %s: %d %s, %s total", domain.AccuracyEmoji(u.AverageAccuracy), mention(u.Username),
			u.Tasks, plural(u.Tasks, "task", "tasks"), domain.FormatDuration(u.ActualMinutes))
		if u.AverageAccuracy > 0 {
			fmt.Fprintf(&b, " (%d%% accuracy)", u.AverageAccuracy)
		}
		b.WriteString("\n")
	}

	if d.BestEstimator != nil {
		fmt.Fprintf(&b, "\n🏆 Best estimator: %s!", mention(d.BestEstimator.Username))
	}
	return strings.TrimRight(b.String(), "\n")
}

func mention(username string) string {
	if username == "" {
		return "someone"
	}
	return "@" + html.EscapeString(username)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
