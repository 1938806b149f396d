package intent

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// span is a duration found in text, with its byte offsets.
type span struct {
	minutes    int
	start, end int
}

const maxMinutes = 24 * 60

var (
	// "1h30", "1h 30m", "2 h 5 min"
	compactRe = regexp.MustCompile(`\b(\d+)\s*h\s*(\d{1,2})\s*(?:m|min|mins)?\b`)
	// "1.5h", "2 hours", "1 hour 15 minutes", "1 hr and 5 mins"
	hourRe = regexp.MustCompile(`\b(\d+(?:[.,]\d+)?)\s*(?:hours?|hrs?|h)\b(?:\s*(?:and\s+)?(\d{1,2})\s*(?:minutes?|mins?|m)\b)?`)
	// "25m", "30 mins", "45 minutes"
	minuteRe = regexp.MustCompile(`\b(\d+)\s*(?:minutes?|mins?|m)\b`)
	// spelled-out forms, longest first
	wordRes = []struct {
		re      *regexp.Regexp
		minutes int
	}{
		{regexp.MustCompile(`\b(?:an?|one) hour and a half\b`), 90},
		{regexp.MustCompile(`\b(?:an?|one) and a half hours?\b`), 90},
		{regexp.MustCompile(`\bhalf (?:an? )?hour\b`), 30},
		{regexp.MustCompile(`\b(?:a )?quarter (?:of )?an? hour\b`), 15},
		{regexp.MustCompile(`\b(?:an?|one) hour\b`), 60},
		{regexp.MustCompile(`\btwo hours\b`), 120},
	}
	// a message that is nothing but a number: "20", "~45"
	bareNumberRe = regexp.MustCompile(`^~?\s*(\d{1,4})\s*[.!]?$`)
)

// findDuration returns the earliest duration expression in s (lowercase).
// On equal starts the longest match wins.
func findDuration(s string) (span, bool) {
	var best span
	found := false
	consider := func(c span) {
		if c.minutes <= 0 || c.minutes > maxMinutes {
			return
		}
		if !found || c.start < best.start || (c.start == best.start && c.end > best.end) {
			best, found = c, true
		}
	}

	if m := compactRe.FindStringSubmatchIndex(s); m != nil {
		h, _ := strconv.Atoi(s[m[2]:m[3]])
		mins, _ := strconv.Atoi(s[m[4]:m[5]])
		consider(span{h*60 + mins, m[0], m[1]})
	}
	if m := hourRe.FindStringSubmatchIndex(s); m != nil {
		h, err := strconv.ParseFloat(strings.Replace(s[m[2]:m[3]], ",", ".", 1), 64)
		if err == nil {
			total := int(math.Round(h * 60))
			if m[4] >= 0 {
				extra, _ := strconv.Atoi(s[m[4]:m[5]])
				total += extra
			}
			consider(span{total, m[0], m[1]})
		}
	}
	if m := minuteRe.FindStringSubmatchIndex(s); m != nil {
		mins, _ := strconv.Atoi(s[m[2]:m[3]])
		consider(span{mins, m[0], m[1]})
	}
	for _, w := range wordRes {
		if m := w.re.FindStringIndex(s); m != nil {
			consider(span{w.minutes, m[0], m[1]})
		}
	}
	return best, found
}

// bareNumber reports whether s is only a number of minutes.
func bareNumber(s string) (int, bool) {
	m := bareNumberRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 || n > maxMinutes {
		return 0, false
	}
	return n, true
}
