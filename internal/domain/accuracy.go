package domain

import (
	"fmt"
	"math"
)

// Accuracy scores how close an estimate was to the actual duration.
// The score is round(100 * min/max), so finishing early or late by the
// same ratio yields the same value. A nil estimate yields nil.
func Accuracy(estimated *int, actual int) *int {
	if estimated == nil {
		return nil
	}
	lo, hi := min(*estimated, actual), max(*estimated, actual)
	if hi <= 0 {
		return IntPtr(100)
	}
	if lo < 0 {
		lo = 0
	}
	score := int(math.Round(100 * float64(lo) / float64(hi)))
	return IntPtr(min(100, max(0, score)))
}

// FormatDuration renders minutes as "45m", "2h" or "1h 30m".
func FormatDuration(minutes int) string {
	if minutes <= 0 {
		return "0m"
	}
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}

// AccuracyEmoji picks the feedback marker shown next to a score.
func AccuracyEmoji(score int) string {
	switch {
	case score >= 90:
		return "🎯"
	case score >= 70:
		return "👍"
	default:
		return "📊"
	}
}
