// Package summary derives per-user summaries and group daily digests from
// stored tasks, renders them for the chat, and runs the digest job.
package summary

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/focusgroup/focusbot/internal/app/tracker"
	"github.com/focusgroup/focusbot/internal/domain"
)

const recentTaskLimit = 5

// CategoryMinutes is one row of a category breakdown.
type CategoryMinutes struct {
	Category   string `json:"category"`
	Minutes    int    `json:"minutes"`
	Percentage int    `json:"percentage"`
}

// UserSummary aggregates one user's completed tasks in a chat.
type UserSummary struct {
	AverageAccuracy   int               `json:"averageAccuracy"`
	Last24HoursFocus  int               `json:"last24HoursFocus"`
	CategoryBreakdown []CategoryMinutes `json:"categoryBreakdown"`
	RecentTasks       []domain.Task     `json:"recentTasks"`
	TotalTasks        int               `json:"totalTasks"`
}

// UserDigest is one user's line in a daily digest.
type UserDigest struct {
	UserID           int64  `json:"user_id"`
	Username         string `json:"username"`
	Tasks            int    `json:"tasks"`
	ActualMinutes    int    `json:"actual_minutes"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	AverageAccuracy  int    `json:"average_accuracy"`
}

// Digest is the group-wide aggregate of one calendar day.
type Digest struct {
	ChatID        int64        `json:"chat_id"`
	Date          string       `json:"date"`
	TotalTasks    int          `json:"total_tasks"`
	GroupAccuracy int          `json:"group_accuracy"`
	Users         []UserDigest `json:"users"`
	BestEstimator *UserDigest  `json:"best_estimator,omitempty"`
}

// Aggregator reads the task store. It holds no state of its own.
type Aggregator struct {
	store *tracker.Store
}

// NewAggregator creates an aggregator over store.
func NewAggregator(store *tracker.Store) *Aggregator {
	return &Aggregator{store: store}
}

// UserSummary summarises every completed task of (chat, user). The 24h focus
// and the category breakdown cover completions in (now-24h, now].
func (a *Aggregator) UserSummary(ctx context.Context, chatID, userID int64, now time.Time) (UserSummary, error) {
	records, err := a.store.ListTasks(ctx, chatID, userID)
	if err != nil {
		return UserSummary{}, err
	}

	var done []domain.Task
	for _, r := range records {
		if !r.Task.IsOpen() && r.Task.Accuracy != nil {
			done = append(done, r.Task)
		}
	}

	out := UserSummary{
		CategoryBreakdown: []CategoryMinutes{},
		RecentTasks:       []domain.Task{},
	}
	if len(done) == 0 {
		return out, nil
	}

	slices.SortStableFunc(done, func(x, y domain.Task) int {
		return y.CompletedAt.Compare(*x.CompletedAt)
	})

	sum := 0
	for _, t := range done {
		sum += *t.Accuracy
	}
	out.AverageAccuracy = roundDiv(sum, len(done))
	out.TotalTasks = len(done)

	since := now.Add(-24 * time.Hour)
	byCategory := map[string]*CategoryMinutes{}
	var order []string
	for _, t := range done {
		if !t.CompletedAt.After(since) || t.CompletedAt.After(now) {
			continue
		}
		mins := t.Actual()
		out.Last24HoursFocus += mins

		cat := t.Category
		if cat == "" {
			cat = domain.DefaultCategory
		}
		row, ok := byCategory[cat]
		if !ok {
			row = &CategoryMinutes{Category: cat}
			byCategory[cat] = row
			order = append(order, cat)
		}
		row.Minutes += mins
	}
	for _, cat := range order {
		row := *byCategory[cat]
		if out.Last24HoursFocus > 0 {
			row.Percentage = roundDiv(100*row.Minutes, out.Last24HoursFocus)
		}
		out.CategoryBreakdown = append(out.CategoryBreakdown, row)
	}
	slices.SortStableFunc(out.CategoryBreakdown, func(x, y CategoryMinutes) int {
		return y.Minutes - x.Minutes
	})

	out.RecentTasks = done[:min(recentTaskLimit, len(done))]
	return out, nil
}

// DailyGroupDigest aggregates the tasks of every user in chatID completed on
// date (YYYY-MM-DD in the store's time zone). Users keep the order in which
// they first appear in key order, and ties in accuracy keep that order.
func (a *Aggregator) DailyGroupDigest(ctx context.Context, chatID int64, date string) (Digest, error) {
	records, err := a.store.ListChatTasks(ctx, chatID)
	if err != nil {
		return Digest{}, err
	}

	type acc struct {
		UserDigest
		accSum, accCount int
	}
	byUser := map[int64]*acc{}
	var order []int64
	groupSum, groupCount := 0, 0

	d := Digest{ChatID: chatID, Date: date, Users: []UserDigest{}}
	for _, r := range records {
		t := r.Task
		if t.IsOpen() || a.store.DateOf(*t.CompletedAt) != date {
			continue
		}
		u, ok := byUser[t.UserID]
		if !ok {
			u = &acc{UserDigest: UserDigest{UserID: t.UserID}}
			byUser[t.UserID] = u
			order = append(order, t.UserID)
		}
		if t.Username != "" {
			u.Username = t.Username
		}
		u.Tasks++
		u.EstimatedMinutes += t.Estimate()
		u.ActualMinutes += t.Actual()
		if t.Accuracy != nil {
			u.accSum += *t.Accuracy
			u.accCount++
			groupSum += *t.Accuracy
			groupCount++
		}
		d.TotalTasks++
	}

	if groupCount > 0 {
		d.GroupAccuracy = roundDiv(groupSum, groupCount)
	}
	for _, id := range order {
		u := byUser[id]
		if u.accCount > 0 {
			u.AverageAccuracy = roundDiv(u.accSum, u.accCount)
		}
		d.Users = append(d.Users, u.UserDigest)
	}
	slices.SortStableFunc(d.Users, func(x, y UserDigest) int {
		return y.AverageAccuracy - x.AverageAccuracy
	})

	if len(d.Users) > 1 && d.Users[0].AverageAccuracy > 0 {
		best := d.Users[0]
		d.BestEstimator = &best
	}
	return d, nil
}

func roundDiv(num, den int) int {
	return int(math.Round(float64(num) / float64(den)))
}
