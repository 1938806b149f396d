package tracker

import (
	"cmp"
	"slices"
)

// Match is the open task a completion event was bound to.
type Match struct {
	Record   Record
	ViaReply bool
}

// MatchOpenTask decides which open task a completion refers to.
// A reply to the message that started a task wins; otherwise the most
// recently started open task is used. It reports false when nothing is open.
//
// This is a heuristic. Two completions racing for the same user will both
// pick the same fallback task.
func MatchOpenTask(open []Record, replyTo *int64) (Match, bool) {
	candidates := make([]Record, 0, len(open))
	for _, r := range open {
		if r.Task.IsOpen() {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return Match{}, false
	}

	slices.SortStableFunc(candidates, func(a, b Record) int {
		if c := b.Task.StartedAt.Compare(a.Task.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.Key, a.Key)
	})

	if replyTo != nil {
		for _, r := range candidates {
			if r.Task.SourceMessageID == *replyTo {
				return Match{Record: r, ViaReply: true}, true
			}
		}
	}
	return Match{Record: candidates[0]}, true
}
