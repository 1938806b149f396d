// Package outbox redelivers chat replies whose first send failed.
//
// Failed deliveries sit in a min-heap keyed by their next retry time and are
// re-sent with exponential backoff until they succeed or run out of
// attempts. A queued reply never feeds back into task state.
package outbox

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/focusgroup/focusbot/internal/domain"
	"github.com/focusgroup/focusbot/internal/infra/metrics"
)

// RetryConfig configures the retry queue behavior.
type RetryConfig struct {
	MaxRetries int           // attempts after the first failure
	BaseDelay  time.Duration // initial backoff delay (doubles each retry)
	MaxDelay   time.Duration // cap on backoff delay
	MaxPending int           // oldest entries are dropped beyond this
	// Retryable decides whether a send error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool
	Now       func() time.Time
	Logger    *slog.Logger
}

// DefaultRetryConfig returns production retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 5,
		BaseDelay:  2 * time.Second,
		MaxDelay:   2 * time.Minute,
		MaxPending: 1000,
	}
}

// Delivery is one reply waiting to be re-sent.
type Delivery struct {
	ChatID    int64
	Text      string
	Opts      domain.SendOptions
	Attempt   int       // retries scheduled so far
	NextRetry time.Time // earliest time this can be retried
	FailedAt  time.Time // when the last failure occurred
	Error     string    // last failure reason
	seq       uint64
}

// Queue schedules failed deliveries with exponential backoff.
type Queue struct {
	mu    sync.Mutex
	cfg   RetryConfig
	items deliveryHeap
	seq   uint64
	now   func() time.Time
	log   *slog.Logger

	totalRetries   int64
	totalExhausted int64
	totalDropped   int64
}

// NewQueue creates an empty retry queue.
func NewQueue(cfg RetryConfig) *Queue {
	def := DefaultRetryConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = def.MaxPending
	}
	q := &Queue{cfg: cfg, now: cfg.Now, log: cfg.Logger}
	if q.now == nil {
		q.now = time.Now
	}
	if q.log == nil {
		q.log = slog.Default()
	}
	q.log = q.log.With("component", "outbox")
	return q
}

// Enqueue records a first failed send. It reports false when err is not
// worth retrying.
func (q *Queue) Enqueue(chatID int64, text string, opts domain.SendOptions, err error) bool {
	if err == nil || !q.retryable(err) {
		return false
	}
	return q.ScheduleRetry(Delivery{ChatID: chatID, Text: text, Opts: opts, Error: err.Error()})
}

func (q *Queue) retryable(err error) bool {
	if q.cfg.Retryable == nil {
		return true
	}
	return q.cfg.Retryable(err)
}

// ScheduleRetry queues d with exponential backoff. Returns false once d has
// used up MaxRetries.
func (q *Queue) ScheduleRetry(d Delivery) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	d.Attempt++
	if d.Attempt > q.cfg.MaxRetries {
		q.totalExhausted++
		metrics.DeliveryRetries.WithLabelValues("exhausted").Inc()
		return false
	}

	// baseDelay * 2^(attempt-1), capped
	delay := q.cfg.BaseDelay
	for i := 1; i < d.Attempt; i++ {
		delay *= 2
		if delay > q.cfg.MaxDelay {
			delay = q.cfg.MaxDelay
			break
		}
	}

	now := q.now()
	d.FailedAt = now
	d.NextRetry = now.Add(delay)
	q.seq++
	d.seq = q.seq
	heap.Push(&q.items, d)

	if q.items.Len() > q.cfg.MaxPending {
		q.dropOldestLocked()
	}

	q.totalRetries++
	metrics.DeliveryRetries.WithLabelValues("scheduled").Inc()
	metrics.OutboxPending.Set(float64(q.items.Len()))
	return true
}

// dropOldestLocked removes the entry that was queued first.
func (q *Queue) dropOldestLocked() {
	oldest := 0
	for i := range q.items {
		if q.items[i].seq < q.items[oldest].seq {
			oldest = i
		}
	}
	d := heap.Remove(&q.items, oldest).(Delivery)
	q.totalDropped++
	metrics.DeliveryRetries.WithLabelValues("dropped").Inc()
	q.log.Warn("outbox full, reply dropped", "chat_id", d.ChatID, "attempt", d.Attempt)
}

// NextReady pops the next delivery whose retry time has passed.
func (q *Queue) NextReady() (Delivery, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 || q.now().Before(q.items[0].NextRetry) {
		return Delivery{}, false
	}
	d := heap.Pop(&q.items).(Delivery)
	metrics.OutboxPending.Set(float64(q.items.Len()))
	return d, true
}

// DrainReady pops every ready delivery, earliest first.
func (q *Queue) DrainReady() []Delivery {
	var ready []Delivery
	for {
		d, ok := q.NextReady()
		if !ok {
			return ready
		}
		ready = append(ready, d)
	}
}

// Flush re-sends every ready delivery once. Failures are re-queued.
func (q *Queue) Flush(ctx context.Context, sender domain.Sender) (sent int) {
	for _, d := range q.DrainReady() {
		if _, err := sender.Send(ctx, d.ChatID, d.Text, d.Opts); err != nil {
			d.Error = err.Error()
			if !q.retryable(err) || !q.ScheduleRetry(d) {
				q.log.Warn("reply abandoned", "chat_id", d.ChatID, "attempt", d.Attempt, "error", err)
			}
			continue
		}
		sent++
		metrics.DeliveryRetries.WithLabelValues("delivered").Inc()
		q.log.Info("reply redelivered", "chat_id", d.ChatID, "attempt", d.Attempt)
	}
	return sent
}

// Run flushes the queue every interval until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, sender domain.Sender, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Flush(ctx, sender)
		}
	}
}

// Len returns the number of deliveries pending retry.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Stats holds retry queue statistics.
type Stats struct {
	Pending        int   `json:"pending"`
	TotalRetries   int64 `json:"total_retries"`
	TotalExhausted int64 `json:"total_exhausted"`
	TotalDropped   int64 `json:"total_dropped"`
}

// Stats returns current retry queue statistics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:        q.items.Len(),
		TotalRetries:   q.totalRetries,
		TotalExhausted: q.totalExhausted,
		TotalDropped:   q.totalDropped,
	}
}

// deliveryHeap orders by NextRetry, then by queue order.
type deliveryHeap []Delivery

func (h deliveryHeap) Len() int { return len(h) }
func (h deliveryHeap) Less(i, j int) bool {
	if !h[i].NextRetry.Equal(h[j].NextRetry) {
		return h[i].NextRetry.Before(h[j].NextRetry)
	}
	return h[i].seq < h[j].seq
}
func (h deliveryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *deliveryHeap) Push(x any)   { *h = append(*h, x.(Delivery)) }
func (h *deliveryHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	*h = old[:n-1]
	return d
}
