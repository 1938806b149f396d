package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/focusgroup/focusbot/internal/app/tracker"
	"github.com/focusgroup/focusbot/internal/domain"
	"github.com/focusgroup/focusbot/internal/infra/metrics"
)

// JobConfig tunes the digest job.
type JobConfig struct {
	// Concurrency bounds how many chats are processed at once.
	Concurrency int
	Logger      *slog.Logger
}

// RunResult reports one digest run.
type RunResult struct {
	Date    string `json:"date"`
	Chats   int    `json:"chats"`
	Posted  int    `json:"posted"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// DigestJob posts the daily digest to every chat that has tasks.
type DigestJob struct {
	store       *tracker.Store
	agg         *Aggregator
	sender      domain.Sender
	concurrency int
	log         *slog.Logger
}

// NewDigestJob creates a digest job.
func NewDigestJob(store *tracker.Store, sender domain.Sender, cfg JobConfig) *DigestJob {
	j := &DigestJob{
		store:       store,
		agg:         NewAggregator(store),
		sender:      sender,
		concurrency: cfg.Concurrency,
		log:         cfg.Logger,
	}
	if j.concurrency <= 0 {
		j.concurrency = 4
	}
	if j.log == nil {
		j.log = slog.Default()
	}
	j.log = j.log.With("component", "digest")
	return j
}

// Run builds and posts the digest of date for every active chat. Chats with
// no completed task that day are skipped. One chat failing does not stop the
// others; only a failure to list chats is returned.
func (j *DigestJob) Run(ctx context.Context, date string) (RunResult, error) {
	start := time.Now()
	defer func() { metrics.DigestRunDuration.Observe(time.Since(start).Seconds()) }()

	chats, err := j.store.ListActiveChats(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("list active chats: %w", err)
	}

	var posted, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, chatID := range chats {
		g.Go(func() error {
			ok, err := j.post(gctx, chatID, date)
			switch {
			case err != nil:
				failed.Add(1)
				j.log.Error("digest failed", "chat_id", chatID, "date", date, "error", err)
			case ok:
				posted.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := RunResult{
		Date:    date,
		Chats:   len(chats),
		Posted:  int(posted.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}
	j.log.Info("digest run finished", "date", date, "chats", res.Chats, "posted", res.Posted, "failed", res.Failed)
	return res, nil
}

func (j *DigestJob) post(ctx context.Context, chatID int64, date string) (bool, error) {
	d, err := j.agg.DailyGroupDigest(ctx, chatID, date)
	if err != nil {
		return false, err
	}
	if d.TotalTasks == 0 {
		return false, nil
	}
	if _, err := j.sender.Send(ctx, chatID, RenderDigest(d), domain.SendOptions{}); err != nil {
		return false, err
	}
	metrics.DigestsPosted.Inc()
	return true, nil
}

// ─── Scheduler ──────────────────────────────────────────────────────────────

// ParseClock parses a "HH:MM" time of day.
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// NextRun returns the first hour:minute in loc strictly after now.
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// Schedule runs the job every day at the "HH:MM" time in the store's zone
// until ctx is cancelled. Call in a goroutine.
func (j *DigestJob) Schedule(ctx context.Context, at string) error {
	hour, minute, err := ParseClock(at)
	if err != nil {
		return err
	}
	loc := j.store.Location()

	for {
		next := NextRun(time.Now(), hour, minute, loc)
		j.log.Info("next digest scheduled", "at", next.Format(time.RFC3339))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			if _, err := j.Run(ctx, j.store.DateOf(next)); err != nil {
				j.log.Error("scheduled digest failed", "error", err)
			}
		}
	}
}
