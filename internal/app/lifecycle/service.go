// Package lifecycle turns classified chat events into task transitions.
//
// Per (chat, user) there are two states: idle, and awaiting_duration while a
// pending completion exists. Handle applies one event to that state machine
// and returns the replies it produced; Process also delivers them.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/focusgroup/focusbot/internal/app/summary"
	"github.com/focusgroup/focusbot/internal/app/tracker"
	"github.com/focusgroup/focusbot/internal/domain"
	"github.com/focusgroup/focusbot/internal/infra/metrics"
	"github.com/focusgroup/focusbot/internal/infra/outbox"
)

// Transition names what an event did.
type Transition string

const (
	TransitionStarted          Transition = "started"
	TransitionCompleted        Transition = "completed"
	TransitionAwaitingDuration Transition = "awaiting_duration"
	TransitionAssumedEstimate  Transition = "assumed_estimate"
	TransitionNoActiveTask     Transition = "no_active_task"
	TransitionPendingKept      Transition = "pending_kept"
	TransitionDuplicate        Transition = "duplicate"
	TransitionIgnored          Transition = "ignored"
	TransitionSummary          Transition = "summary"
	TransitionCancelled        Transition = "cancelled"
	TransitionHelp             Transition = "help"
)

// Reply is one outbound chat message.
type Reply struct {
	ChatID   int64  `json:"chat_id"`
	Text     string `json:"text"`
	ReplyTo  *int64 `json:"reply_to,omitempty"`
	ThreadID *int64 `json:"thread_id,omitempty"`
}

// Outcome is the result of one event. Then holds the start half of a
// compound "done ... next ..." message.
type Outcome struct {
	Transition Transition   `json:"transition"`
	Task       *domain.Task `json:"task,omitempty"`
	Replies    []Reply      `json:"replies,omitempty"`
	Then       *Outcome     `json:"then,omitempty"`
}

// AllReplies returns the replies of o and its chained outcomes, in order.
func (o Outcome) AllReplies() []Reply {
	replies := append([]Reply(nil), o.Replies...)
	if o.Then != nil {
		replies = append(replies, o.Then.AllReplies()...)
	}
	return replies
}

// Config tunes a Service.
type Config struct {
	// ConfirmPrivateStarts sends a confirmation when a task is started in a
	// one-to-one chat. Group starts are never confirmed.
	ConfirmPrivateStarts bool
	// Outbox, when set, takes replies whose send failed for a later retry.
	Outbox *outbox.Queue
	Now    func() time.Time
	Logger *slog.Logger
}

// Service is the lifecycle orchestrator.
type Service struct {
	store      *tracker.Store
	classifier domain.Classifier
	sender     domain.Sender
	agg        *summary.Aggregator
	cfg        Config
	now        func() time.Time
	log        *slog.Logger
}

// NewService creates the orchestrator. sender may be nil, in which case
// Process only logs the replies.
func NewService(store *tracker.Store, classifier domain.Classifier, sender domain.Sender, cfg Config) *Service {
	s := &Service{
		store:      store,
		classifier: classifier,
		sender:     sender,
		agg:        summary.NewAggregator(store),
		cfg:        cfg,
		now:        cfg.Now,
		log:        cfg.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "lifecycle")
	return s
}

// Process handles ev and delivers its replies. Delivery is best effort and
// happens after every state change has been persisted.
func (s *Service) Process(ctx context.Context, ev domain.Event) (Outcome, error) {
	out, err := s.Handle(ctx, ev)
	for o := &out; o != nil; o = o.Then {
		if o.Transition != "" {
			metrics.Transitions.WithLabelValues(string(o.Transition)).Inc()
		}
	}
	if err != nil {
		s.log.Error("event failed", "chat_id", ev.ChatID, "user_id", ev.UserID, "message_id", ev.MessageID, "error", err)
	}
	s.deliver(ctx, out.AllReplies())
	return out, err
}

func (s *Service) deliver(ctx context.Context, replies []Reply) {
	for _, r := range replies {
		if s.sender == nil {
			s.log.Info("reply (no sender)", "chat_id", r.ChatID, "text", r.Text)
			continue
		}
		opts := domain.SendOptions{ReplyTo: r.ReplyTo, ThreadID: r.ThreadID}
		_, err := s.sender.Send(ctx, r.ChatID, r.Text, opts)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrSenderDisabled):
			s.log.Debug("sender disabled, reply dropped", "chat_id", r.ChatID)
		case s.cfg.Outbox != nil && s.cfg.Outbox.Enqueue(r.ChatID, r.Text, opts, err):
			s.log.Warn("reply not delivered, queued for retry", "chat_id", r.ChatID, "error", err)
		default:
			s.log.Warn("reply not delivered", "chat_id", r.ChatID, "error", err)
		}
	}
}

// Handle applies ev to the state machine without delivering anything.
func (s *Service) Handle(ctx context.Context, ev domain.Event) (Outcome, error) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return Outcome{Transition: TransitionIgnored}, nil
	}
	if cmd, ok := parseCommand(text); ok {
		return s.command(ctx, ev, cmd)
	}

	in := s.classifier.Classify(ctx, text, ev.Username).Normalize()
	out, err := s.apply(ctx, ev, in)
	if in.Next == nil {
		return out, err
	}

	// The start half runs even when the completion half failed.
	if err != nil {
		s.log.Warn("completion half of compound message failed", "message_id", ev.MessageID, "error", err)
		out = Outcome{Transition: TransitionIgnored}
	}
	next, nextErr := s.apply(ctx, ev, *in.Next)
	out.Then = &next
	return out, errors.Join(err, nextErr)
}

func (s *Service) apply(ctx context.Context, ev domain.Event, in domain.Intent) (Outcome, error) {
	if in.Type == domain.IntentStart {
		return s.start(ctx, ev, in)
	}

	pending, err := s.store.GetPending(ctx, ev.ChatID, ev.UserID)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("get_pending").Inc()
		return Outcome{}, err
	}
	if pending != nil {
		return s.resolvePending(ctx, ev, *pending, in)
	}

	if in.Type == domain.IntentCompletion {
		return s.complete(ctx, ev, in)
	}
	// Bare durations without a pending completion are chatter.
	return Outcome{Transition: TransitionIgnored}, nil
}

// ─── Transitions ────────────────────────────────────────────────────────────

func (s *Service) start(ctx context.Context, ev domain.Event, in domain.Intent) (Outcome, error) {
	if !in.HasEstimate() {
		return Outcome{Transition: TransitionIgnored}, nil
	}

	rec, err := s.store.SaveTask(ctx, domain.Task{
		ChatID:           ev.ChatID,
		UserID:           ev.UserID,
		Username:         ev.Username,
		EstimatedMinutes: in.EstimatedMinutes,
		Description:      in.DescriptionText(),
		StartedAt:        s.now(),
		SourceMessageID:  ev.MessageID,
	})
	if errors.Is(err, domain.ErrDuplicateSource) {
		return Outcome{Transition: TransitionDuplicate}, nil
	}
	if err != nil {
		metrics.StoreErrors.WithLabelValues("save_task").Inc()
		return Outcome{}, err
	}

	out := Outcome{Transition: TransitionStarted, Task: &rec.Task}
	if ev.Private && s.cfg.ConfirmPrivateStarts {
		out.Replies = append(out.Replies, reply(ev, startedText(rec.Task)))
	}
	return out, nil
}

// complete handles a completion while idle.
func (s *Service) complete(ctx context.Context, ev domain.Event, in domain.Intent) (Outcome, error) {
	open, err := s.store.ListOpenTasks(ctx, ev.ChatID, ev.UserID)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("list_open").Inc()
		return Outcome{}, err
	}
	m, ok := tracker.MatchOpenTask(open, ev.ReplyTo)
	if !ok {
		return noActiveTask(ev), nil
	}

	if in.HasActual() {
		matched := "recent"
		if m.ViaReply {
			matched = "reply"
		}
		done, err := s.close(ctx, m.Record, *in.ActualMinutes, m.ViaReply, matched)
		if errors.Is(err, domain.ErrTaskCompleted) {
			// Closed by a concurrent event between listing and closing.
			return noActiveTask(ev), nil
		}
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Transition: TransitionCompleted, Task: &done, Replies: []Reply{reply(ev, completedText(done))}}, nil
	}

	task := m.Record.Task
	p := domain.PendingCompletion{
		ChatID:           ev.ChatID,
		UserID:           ev.UserID,
		EstimatedMinutes: task.EstimatedMinutes,
		Description:      task.Description,
		SourceMessageID:  task.SourceMessageID,
	}
	if m.ViaReply {
		p.ReplyReference = ev.ReplyTo
	}
	if _, err := s.store.SetPending(ctx, p); err != nil {
		metrics.StoreErrors.WithLabelValues("set_pending").Inc()
		return Outcome{}, err
	}
	return Outcome{Transition: TransitionAwaitingDuration, Task: &task, Replies: []Reply{reply(ev, askDurationText(task))}}, nil
}

// resolvePending handles any non-start event while awaiting a duration. The
// pending record is claimed before the task is closed, so of two racing
// resolutions only one closes the task.
func (s *Service) resolvePending(ctx context.Context, ev domain.Event, p domain.PendingCompletion, in domain.Intent) (Outcome, error) {
	assumed := false
	actual := 0
	switch {
	case in.HasActual():
		actual = *in.ActualMinutes
	case in.Type == domain.IntentCompletion:
		assumed = true
	default:
		return Outcome{Transition: TransitionPendingKept}, nil
	}

	if err := s.store.ClaimPending(ctx, p); errors.Is(err, domain.ErrPendingClaimed) {
		return Outcome{Transition: TransitionIgnored}, nil
	} else if err != nil {
		metrics.StoreErrors.WithLabelValues("claim_pending").Inc()
		return Outcome{}, err
	}

	rec, err := s.store.FindOpenBySource(ctx, ev.ChatID, ev.UserID, p.SourceMessageID)
	if errors.Is(err, domain.ErrTaskNotFound) {
		return noActiveTask(ev), nil
	}
	if err != nil {
		metrics.StoreErrors.WithLabelValues("find_task").Inc()
		return Outcome{}, s.restorePending(ctx, p, fmt.Errorf("pending task lookup: %w", err))
	}

	if assumed {
		actual = rec.Task.Estimate()
	}
	done, err := s.close(ctx, rec, actual, p.ReplyReference != nil, "pending")
	if errors.Is(err, domain.ErrTaskCompleted) {
		return noActiveTask(ev), nil
	}
	if err != nil {
		return Outcome{}, s.restorePending(ctx, p, err)
	}

	if assumed {
		return Outcome{Transition: TransitionAssumedEstimate, Task: &done, Replies: []Reply{reply(ev, assumedText(done))}}, nil
	}
	return Outcome{Transition: TransitionCompleted, Task: &done, Replies: []Reply{reply(ev, completedText(done))}}, nil
}

// restorePending puts back a claimed pending record whose task could not be
// closed, so the user's next duration still resolves it.
func (s *Service) restorePending(ctx context.Context, p domain.PendingCompletion, cause error) error {
	if _, err := s.store.SetPending(ctx, p); err != nil {
		metrics.StoreErrors.WithLabelValues("set_pending").Inc()
		return errors.Join(cause, err)
	}
	return cause
}

func (s *Service) close(ctx context.Context, rec tracker.Record, actual int, viaReply bool, matched string) (domain.Task, error) {
	category := s.classifier.Categorize(ctx, rec.Task.Description)
	done, err := s.store.CloseTask(ctx, rec.Key, actual, category, viaReply)
	if err != nil {
		if !errors.Is(err, domain.ErrTaskCompleted) {
			metrics.StoreErrors.WithLabelValues("close_task").Inc()
		}
		return domain.Task{}, err
	}
	metrics.TasksCompleted.WithLabelValues(done.Category, matched).Inc()
	if done.Accuracy != nil {
		metrics.TaskAccuracy.Observe(float64(*done.Accuracy))
	}
	s.log.Info("task completed", "chat_id", done.ChatID, "user_id", done.UserID,
		"estimate", done.Estimate(), "actual", done.Actual(), "matched", matched)
	return done, nil
}

// ─── Commands ───────────────────────────────────────────────────────────────

const helpText = `I track how long your tasks take compared to your estimate.

• Start: "30 min: fix the login bug"
• Finish: "done, took 20" (reply to your start message to pick a task)
• /summary shows your accuracy and focus time
• /cancel forgets a pending "how long did it take?" question`

// parseCommand returns the bot command of text ("/summary@focusbot" → "summary").
func parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word, _, _ := strings.Cut(text[1:], " ")
	word, _, _ = strings.Cut(word, "@")
	return strings.ToLower(word), true
}

func (s *Service) command(ctx context.Context, ev domain.Event, cmd string) (Outcome, error) {
	switch cmd {
	case "summary", "stats":
		us, err := s.agg.UserSummary(ctx, ev.ChatID, ev.UserID, s.now())
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Transition: TransitionSummary, Replies: []Reply{reply(ev, summary.RenderUserSummary(ev.Username, us))}}, nil

	case "cancel":
		p, err := s.store.GetPending(ctx, ev.ChatID, ev.UserID)
		if err != nil {
			return Outcome{}, err
		}
		if p == nil {
			return Outcome{Transition: TransitionIgnored, Replies: []Reply{reply(ev, nothingToCancelText())}}, nil
		}
		if err := s.store.ClearPending(ctx, ev.ChatID, ev.UserID); err != nil {
			return Outcome{}, err
		}
		return Outcome{Transition: TransitionCancelled, Replies: []Reply{reply(ev, cancelledText(*p))}}, nil

	case "help", "start":
		return Outcome{Transition: TransitionHelp, Replies: []Reply{reply(ev, helpText)}}, nil
	}
	return Outcome{Transition: TransitionIgnored}, nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func reply(ev domain.Event, text string) Reply {
	return Reply{ChatID: ev.ChatID, Text: text, ReplyTo: domain.Int64Ptr(ev.MessageID), ThreadID: ev.ThreadID}
}

func noActiveTask(ev domain.Event) Outcome {
	return Outcome{Transition: TransitionNoActiveTask, Replies: []Reply{reply(ev, noActiveTaskText())}}
}
