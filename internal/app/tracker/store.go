// Package tracker owns the persisted task and pending-completion records.
// Every record is one JSON value in the key-value engine:
//
//	tasks:{chat}:{user}:{started_at_unix_ms}   task record
//	pending:{chat}:{user}                       pending completion (singleton)
//
// The engine has no transactions. A read-then-write sequence such as
// "list open tasks, pick one, close it" can lose an update when two events
// for the same user are processed at once; CloseTask re-reads the record and
// refuses to close a task twice, which turns that race into ErrTaskCompleted.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/focusgroup/focusbot/internal/domain"
)

const (
	taskPrefix    = "tasks:"
	pendingPrefix = "pending:"

	// loadConcurrency bounds parallel record reads per listing.
	loadConcurrency = 8
)

// StoreConfig tunes a Store.
type StoreConfig struct {
	// Location decides which calendar day a timestamp belongs to.
	Location *time.Location
	// MaxScan caps keys read per prefix listing (0 = unlimited).
	MaxScan int
	// Now is the clock; defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Record is a task together with the key it is stored under.
type Record struct {
	Key  string
	Task domain.Task
}

// Store implements the task store on top of domain.KV.
type Store struct {
	kv      domain.KV
	loc     *time.Location
	maxScan int
	now     func() time.Time
	log     *slog.Logger
}

// NewStore creates a task store.
func NewStore(kv domain.KV, cfg StoreConfig) *Store {
	s := &Store{
		kv:      kv,
		loc:     cfg.Location,
		maxScan: cfg.MaxScan,
		now:     cfg.Now,
		log:     cfg.Logger,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "tracker")
	return s
}

// Location returns the time zone used for calendar dates.
func (s *Store) Location() *time.Location { return s.loc }

// DateOf formats t as the YYYY-MM-DD calendar day in the store's zone.
func (s *Store) DateOf(t time.Time) string {
	return t.In(s.loc).Format(time.DateOnly)
}

// ─── Keys ───────────────────────────────────────────────────────────────────

// TaskKey builds the storage key of a task.
func TaskKey(chatID, userID int64, startedAt time.Time) string {
	return fmt.Sprintf("%s%d:%d:%d", taskPrefix, chatID, userID, startedAt.UnixMilli())
}

// PendingKey builds the storage key of a pending completion.
func PendingKey(chatID, userID int64) string {
	return fmt.Sprintf("%s%d:%d", pendingPrefix, chatID, userID)
}

func userPrefix(chatID, userID int64) string {
	return fmt.Sprintf("%s%d:%d:", taskPrefix, chatID, userID)
}

func chatPrefix(chatID int64) string {
	return fmt.Sprintf("%s%d:", taskPrefix, chatID)
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

// SaveTask stores a new open task. StartedAt defaults to now and Date is
// derived from it. A task must carry an estimate, and a source message may
// start at most one task per user.
func (s *Store) SaveTask(ctx context.Context, task domain.Task) (Record, error) {
	if task.EstimatedMinutes == nil || *task.EstimatedMinutes <= 0 {
		return Record{}, domain.ErrNoEstimate
	}
	if !task.IsOpen() {
		return Record{}, domain.ErrTaskCompleted
	}
	if task.StartedAt.IsZero() {
		task.StartedAt = s.now()
	}
	if task.Date == "" {
		task.Date = s.DateOf(task.StartedAt)
	}

	existing, err := s.ListTasks(ctx, task.ChatID, task.UserID)
	if err != nil {
		return Record{}, err
	}
	taken := make(map[string]bool, len(existing))
	for _, r := range existing {
		taken[r.Key] = true
		if task.SourceMessageID != 0 && r.Task.SourceMessageID == task.SourceMessageID {
			return Record{}, domain.ErrDuplicateSource
		}
	}

	// Two starts in the same millisecond would share a key.
	for taken[TaskKey(task.ChatID, task.UserID, task.StartedAt)] {
		task.StartedAt = task.StartedAt.Add(time.Millisecond)
	}

	rec := Record{Key: TaskKey(task.ChatID, task.UserID, task.StartedAt), Task: task}
	if err := s.put(ctx, rec.Key, rec.Task); err != nil {
		return Record{}, fmt.Errorf("save task: %w", err)
	}
	return rec, nil
}

// GetTask loads one task by key.
func (s *Store) GetTask(ctx context.Context, key string) (Record, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return Record{}, domain.ErrTaskNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get task %s: %w", key, err)
	}
	var t domain.Task
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Record{}, fmt.Errorf("decode task %s: %w", key, err)
	}
	return Record{Key: key, Task: t}, nil
}

// ListTasks returns every task of a user in a chat, oldest first.
func (s *Store) ListTasks(ctx context.Context, chatID, userID int64) ([]Record, error) {
	return s.scan(ctx, userPrefix(chatID, userID))
}

// ListOpenTasks returns the user's tasks that have not been completed.
func (s *Store) ListOpenTasks(ctx context.Context, chatID, userID int64) ([]Record, error) {
	all, err := s.ListTasks(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	return filter(all, func(t domain.Task) bool { return t.IsOpen() }), nil
}

// ListTasksForDate returns the user's tasks started on date (YYYY-MM-DD).
func (s *Store) ListTasksForDate(ctx context.Context, chatID, userID int64, date string) ([]Record, error) {
	all, err := s.ListTasks(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	return filter(all, func(t domain.Task) bool { return t.Date == date }), nil
}

// ListChatTasks returns the tasks of every user in a chat, in key order.
func (s *Store) ListChatTasks(ctx context.Context, chatID int64) ([]Record, error) {
	return s.scan(ctx, chatPrefix(chatID))
}

// FindOpenBySource returns the open task started by the given message.
func (s *Store) FindOpenBySource(ctx context.Context, chatID, userID, messageID int64) (Record, error) {
	open, err := s.ListOpenTasks(ctx, chatID, userID)
	if err != nil {
		return Record{}, err
	}
	for _, r := range open {
		if r.Task.SourceMessageID == messageID {
			return r, nil
		}
	}
	return Record{}, domain.ErrTaskNotFound
}

// CloseTask completes the task stored under key. The record is re-read first
// so a task already closed by a concurrent event yields ErrTaskCompleted.
func (s *Store) CloseTask(ctx context.Context, key string, actual int, category string, viaReply bool) (domain.Task, error) {
	rec, err := s.GetTask(ctx, key)
	if err != nil {
		return domain.Task{}, err
	}
	done, err := rec.Task.Complete(actual, category, viaReply, s.now())
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.put(ctx, key, done); err != nil {
		return domain.Task{}, fmt.Errorf("close task: %w", err)
	}
	return done, nil
}

// ListActiveChats returns the distinct chat ids that have any stored task.
func (s *Store) ListActiveChats(ctx context.Context) ([]int64, error) {
	keys, err := s.kv.ListKeys(ctx, taskPrefix, 0)
	if err != nil {
		return nil, fmt.Errorf("list task keys: %w", err)
	}
	seen := make(map[int64]bool)
	var chats []int64
	for _, k := range keys {
		parts := strings.Split(strings.TrimPrefix(k, taskPrefix), ":")
		if len(parts) < 1 {
			continue
		}
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			s.log.Warn("skipping malformed task key", "key", k)
			continue
		}
		if !seen[id] {
			seen[id] = true
			chats = append(chats, id)
		}
	}
	return chats, nil
}

// ─── Pending Completions ────────────────────────────────────────────────────

// SetPending writes the pending completion for (chat, user), replacing any
// previous one. A fresh token is assigned on every write.
func (s *Store) SetPending(ctx context.Context, p domain.PendingCompletion) (domain.PendingCompletion, error) {
	p.Token = uuid.NewString()
	p.CreatedAt = s.now()
	if err := s.put(ctx, PendingKey(p.ChatID, p.UserID), p); err != nil {
		return domain.PendingCompletion{}, fmt.Errorf("set pending: %w", err)
	}
	return p, nil
}

// GetPending returns the pending completion, or nil when there is none.
func (s *Store) GetPending(ctx context.Context, chatID, userID int64) (*domain.PendingCompletion, error) {
	p, _, err := s.getPendingRaw(ctx, chatID, userID)
	return p, err
}

// ClearPending unconditionally removes the pending completion.
func (s *Store) ClearPending(ctx context.Context, chatID, userID int64) error {
	if err := s.kv.Delete(ctx, PendingKey(chatID, userID)); err != nil {
		return fmt.Errorf("clear pending: %w", err)
	}
	return nil
}

// ClaimPending removes p only if it is still the stored record (same token).
// Exactly one of several concurrent claims of the same record succeeds;
// the others get ErrPendingClaimed.
func (s *Store) ClaimPending(ctx context.Context, p domain.PendingCompletion) error {
	current, raw, err := s.getPendingRaw(ctx, p.ChatID, p.UserID)
	if err != nil {
		return err
	}
	if current == nil || current.Token != p.Token {
		return domain.ErrPendingClaimed
	}
	ok, err := s.kv.CompareAndDelete(ctx, PendingKey(p.ChatID, p.UserID), raw)
	if err != nil {
		return fmt.Errorf("claim pending: %w", err)
	}
	if !ok {
		return domain.ErrPendingClaimed
	}
	return nil
}

func (s *Store) getPendingRaw(ctx context.Context, chatID, userID int64) (*domain.PendingCompletion, string, error) {
	raw, err := s.kv.Get(ctx, PendingKey(chatID, userID))
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("get pending: %w", err)
	}
	var p domain.PendingCompletion
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, "", fmt.Errorf("decode pending: %w", err)
	}
	return &p, raw, nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (s *Store) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, string(data))
}

// scan loads every task under prefix, in key order. Records that vanish or
// fail to decode between listing and loading are skipped.
func (s *Store) scan(ctx context.Context, prefix string) ([]Record, error) {
	keys, err := s.kv.ListKeys(ctx, prefix, s.maxScan)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	if s.maxScan > 0 && len(keys) >= s.maxScan {
		s.log.Warn("prefix scan truncated", "prefix", prefix, "max_scan", s.maxScan)
	}

	loaded := make([]*Record, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, key := range keys {
		g.Go(func() error {
			rec, err := s.GetTask(gctx, key)
			if errors.Is(err, domain.ErrTaskNotFound) {
				return nil
			}
			if err != nil {
				var syntaxErr *json.SyntaxError
				var typeErr *json.UnmarshalTypeError
				if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
					s.log.Warn("skipping undecodable task", "key", key, "error", err)
					return nil
				}
				return err
			}
			loaded[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(keys))
	for _, r := range loaded {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records, nil
}

func filter(records []Record, keep func(domain.Task) bool) []Record {
	var out []Record
	for _, r := range records {
		if keep(r.Task) {
			out = append(out, r)
		}
	}
	return out
}
