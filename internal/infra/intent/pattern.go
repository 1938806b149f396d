// Package intent classifies chat messages into task intents and categories.
//
// PatternClassifier is a deterministic grammar for the common phrasings.
// ModelClassifier asks a hosted text model. Chain runs the pattern first and
// falls back to the model only when the pattern is unsure.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/focusgroup/focusbot/internal/domain"
)

var (
	spaceRe = regexp.MustCompile(`\s+`)

	// Phrases that announce future work win over completion words:
	// "gonna finish the report, 30 min" is a start.
	startLeadRe = regexp.MustCompile(`^(?:ok(?:ay)?[,!]?\s+)?(?:i'?m\s+|i am\s+)?(?:gonna|going to|about to|i'?ll|i will|will|let me|let's|starting|start|time to|plan(?:ning)? to|focus(?:ing)? on|working on|work on|next up:?|next:?)\b`)

	completionRe = regexp.MustCompile(`\b(?:done|finished|finish|completed|complete|wrapped up|took|spent|that was)\b|✅`)

	// "done, took 25m. next 45 min: write docs"
	compoundRe = regexp.MustCompile(`^(.*?)(?:[.;,!]\s*|\s+)(?:and\s+)?(?:next|now|then|starting)\b\s*(?:up)?\s*[:\-–—]?\s+(.+)$`)

	// leading filler stripped off start descriptions
	leadFillerRe = regexp.MustCompile(`^(?:(?:ok(?:ay)?|i'?m|i am|gonna|going to|about to|i'?ll|i will|will|let me|let's|starting|start|time to|plan(?:ning)? to|next up|next|now|work(?:ing)?|focus(?:ing)?|spend(?:ing)?|do(?:ing)?)\b[\s,:!\-–—]*)+(?:on|with|of|for|at)?\b\s*`)
	// trailing connectors left behind once the duration is cut out
	trailFillerRe = regexp.MustCompile(`(?:\s*\b(?:for|in|about|around|approx(?:imately)?|roughly|like|maybe|~|a|of|an|or so|-)\b)*[\s,:;.!~\-–—()]*$`)
	// "took 20", "done 45": a unitless number right after the completion verb
	trailingNumberRe = regexp.MustCompile(`\b(?:took|spent|done|finished|completed|in)\s+~?(\d{1,4})\s*[.!]?$`)
	// the separator of "30 min: fix bug", "45m - write docs"
	startSepRe = regexp.MustCompile(`^[:\-–—]`)
	// a description that only reports being done: "25m - done", "1h: finished it"
	doneOnlyRe = regexp.MustCompile(`^(?:(?:i'?m|i am|i|just|all|it'?s|it is)\s+)*(?:done|finished|completed|complete|wrapped up|✅)(?:\s+(?:it|that|this|now|already))*[\s.!✅]*$`)
	// "on", "of", "for" directly after a leading duration
	connectorRe = regexp.MustCompile(`^(?:[:\-–—,]\s*)?(?:on|of|for|to)?\b\s*`)
)

// PatternClassifier recognises the common phrasings without any network call.
type PatternClassifier struct{}

// NewPatternClassifier creates a pattern classifier.
func NewPatternClassifier() *PatternClassifier { return &PatternClassifier{} }

// Classify returns the intent and whether the grammar was confident.
// A message without any duration or completion word is confidently "other".
func (p *PatternClassifier) Classify(text string) (domain.Intent, bool) {
	s := normalize(text)
	if s == "" {
		return domain.OtherIntent(), true
	}

	if m := compoundRe.FindStringSubmatch(s); m != nil && completionRe.MatchString(m[1]) && !startLeadRe.MatchString(m[1]) {
		if next, ok := p.classifyStart(m[2], true); ok {
			done := p.classifyCompletion(m[1])
			done.Next = &next
			return done, true
		}
	}

	return p.classifySingle(s)
}

func (p *PatternClassifier) classifySingle(s string) (domain.Intent, bool) {
	if n, ok := bareNumber(s); ok {
		return domain.Intent{Type: domain.IntentOther, ActualMinutes: domain.IntPtr(n)}, true
	}

	if startLeadRe.MatchString(s) {
		if in, ok := p.classifyStart(s, true); ok {
			return in, true
		}
	}

	if completionRe.MatchString(s) {
		// "30 min: finish the report" names a completion word but is a start.
		if in, separated, ok := p.leadingStart(s); ok && !doneOnlyRe.MatchString(in.DescriptionText()) {
			if separated {
				return in, true
			}
			// "30 min finished the deck" reads either way.
			return p.classifyCompletion(s), false
		}
		return p.classifyCompletion(s), true
	}

	d, found := findDuration(s)
	if !found {
		return domain.OtherIntent(), true
	}

	// Only a duration, maybe with filler: "25 minutes", "about 1h"
	if strings.TrimSpace(trailFillerRe.ReplaceAllString(strings.TrimSpace(s[:d.start]+" "+s[d.end:]), "")) == "" {
		return domain.Intent{Type: domain.IntentOther, ActualMinutes: domain.IntPtr(d.minutes)}, true
	}

	// "30 min: fix bug", "fix the login bug - 30m"
	if in, ok := p.classifyStart(s, false); ok {
		return in, true
	}
	return domain.OtherIntent(), false
}

// classifyStart reads an estimate and description. With lead set, filler verbs
// ahead of the description are stripped ("gonna work on emails for an hour").
func (p *PatternClassifier) classifyStart(s string, lead bool) (domain.Intent, bool) {
	s = strings.TrimSpace(s)
	d, found := findDuration(s)
	if !found {
		return domain.Intent{}, false
	}

	before := strings.TrimSpace(s[:d.start])
	after := strings.TrimSpace(s[d.end:])

	var desc string
	switch {
	case before == "" || (lead && strings.TrimSpace(leadFillerRe.ReplaceAllString(before, "")) == ""):
		// duration first: "30 min: fix bug", "gonna spend 45m on the deck"
		desc = connectorRe.ReplaceAllString(after, "")
	case after == "" || trailFillerRe.ReplaceAllString(after, "") == "":
		// duration last: "fix the login bug - 30m", "work on emails for about an hour"
		desc = before
	default:
		if !lead {
			return domain.Intent{}, false
		}
		desc = before
	}

	if lead {
		desc = leadFillerRe.ReplaceAllString(desc, "")
	}
	desc = strings.TrimSpace(trailFillerRe.ReplaceAllString(desc, ""))
	if desc == "" && !lead {
		return domain.Intent{}, false
	}

	in := domain.Intent{Type: domain.IntentStart, EstimatedMinutes: domain.IntPtr(d.minutes)}
	if desc != "" {
		in.Description = &desc
	}
	return in, true
}

// leadingStart reads s as a start when it opens with the estimate. separated
// reports whether a ":" or "-" sits between the estimate and the description.
func (p *PatternClassifier) leadingStart(s string) (in domain.Intent, separated, ok bool) {
	d, found := findDuration(s)
	if !found || strings.TrimSpace(strings.TrimLeft(s[:d.start], "~ ")) != "" {
		return domain.Intent{}, false, false
	}
	in, ok = p.classifyStart(s, false)
	if !ok {
		return domain.Intent{}, false, false
	}
	return in, startSepRe.MatchString(strings.TrimSpace(s[d.end:])), true
}

func (p *PatternClassifier) classifyCompletion(s string) domain.Intent {
	in := domain.Intent{Type: domain.IntentCompletion}
	if d, ok := findDuration(s); ok {
		in.ActualMinutes = domain.IntPtr(d.minutes)
	} else if m := trailingNumberRe.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && n <= maxMinutes {
			in.ActualMinutes = domain.IntPtr(n)
		}
	}
	return in
}

func normalize(text string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(strings.ToLower(text), " "))
}
