package lifecycle

import (
	"fmt"
	"html"

	"github.com/focusgroup/focusbot/internal/domain"
)

const exampleStart = `"30 min: fix the login bug"`

func completedText(t domain.Task) string {
	acc := 0
	if t.Accuracy != nil {
		acc = *t.Accuracy
	}
	text := fmt.Sprintf("%s Task completed! Est: %s, Actual: %s (%d%% accuracy)",
		domain.AccuracyEmoji(acc), domain.FormatDuration(t.Estimate()), domain.FormatDuration(t.Actual()), acc)
	if t.Description != "" {
		text += fmt.Sprintf("\n<i>%s</i> · %s", html.EscapeString(t.Description), html.EscapeString(t.Category))
	}
	return text
}

func assumedText(t domain.Task) string {
	return fmt.Sprintf("✅ Task completed! No time given, so I assumed your estimate of %s (100%% accuracy).",
		domain.FormatDuration(t.Estimate()))
}

func askDurationText(t domain.Task) string {
	what := "that"
	if t.Description != "" {
		what = fmt.Sprintf("<i>%s</i>", html.EscapeString(t.Description))
	}
	return fmt.Sprintf("⏱ Nice! How long did %s take? Reply with the minutes (your estimate was %s).",
		what, domain.FormatDuration(t.Estimate()))
}

func noActiveTaskText() string {
	return "🤔 No active task found. Start one with something like " + html.EscapeString(exampleStart) + "."
}

func startedText(t domain.Task) string {
	if t.Description == "" {
		return fmt.Sprintf("▶️ Started. Estimate: %s.", domain.FormatDuration(t.Estimate()))
	}
	return fmt.Sprintf("▶️ Started <i>%s</i>. Estimate: %s.", html.EscapeString(t.Description), domain.FormatDuration(t.Estimate()))
}

func cancelledText(p domain.PendingCompletion) string {
	if p.Description == "" {
		return "👌 Okay, forgot about that completion."
	}
	return fmt.Sprintf("👌 Okay, <i>%s</i> stays open.", html.EscapeString(p.Description))
}

func nothingToCancelText() string {
	return "Nothing to cancel."
}
