package lifecycle_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/focusgroup/focusbot/internal/app/lifecycle"
	"github.com/focusgroup/focusbot/internal/app/tracker"
	"github.com/focusgroup/focusbot/internal/domain"
	"github.com/focusgroup/focusbot/internal/domain/domainmock"
	"github.com/focusgroup/focusbot/internal/infra/intent"
	"github.com/focusgroup/focusbot/internal/infra/outbox"
	"github.com/focusgroup/focusbot/internal/infra/sqlite"
)

const (
	chatID = int64(-100)
	userID = int64(7)
)

// stubClassifier answers from a fixed table; unknown text is "other".
type stubClassifier struct {
	intents  map[string]domain.Intent
	category string
}

func (s stubClassifier) Classify(_ context.Context, text, _ string) domain.Intent {
	if in, ok := s.intents[text]; ok {
		return in
	}
	return domain.OtherIntent()
}

func (s stubClassifier) Categorize(context.Context, string) string {
	if s.category == "" {
		return domain.DefaultCategory
	}
	return s.category
}

func start(est int, desc string) domain.Intent {
	return domain.Intent{Type: domain.IntentStart, EstimatedMinutes: domain.IntPtr(est), Description: &desc}
}

func done(actual int) domain.Intent {
	in := domain.Intent{Type: domain.IntentCompletion}
	if actual > 0 {
		in.ActualMinutes = domain.IntPtr(actual)
	}
	return in
}

func bare(actual int) domain.Intent {
	return domain.Intent{Type: domain.IntentOther, ActualMinutes: domain.IntPtr(actual)}
}

var stubIntents = map[string]domain.Intent{
	"30 min: fix bug":   start(30, "fix bug"),
	"45 min: write doc": start(45, "write doc"),
	"60 min: deck":      start(60, "deck"),
	"done":              done(0),
	"done 20":           done(20),
	"took 40":           done(40),
	"20":                bare(20),
	"25 minutes":        bare(25),
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	t     *testing.T
	svc   *lifecycle.Service
	store *tracker.Store
	clock *clock
	msg   int64
}

func newHarness(t *testing.T, classifier domain.Classifier, sender domain.Sender) *harness {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := &clock{t: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	store := tracker.NewStore(db, tracker.StoreConfig{Now: c.Now})
	svc := lifecycle.NewService(store, classifier, sender, lifecycle.Config{ConfirmPrivateStarts: true, Now: c.Now})
	return &harness{t: t, svc: svc, store: store, clock: c, msg: 100}
}

func newStubHarness(t *testing.T) *harness {
	return newHarness(t, stubClassifier{intents: stubIntents, category: "Coding"}, nil)
}

// event builds the next group message from the test user.
func (h *harness) event(text string) domain.Event {
	h.msg++
	return domain.Event{ChatID: chatID, UserID: userID, Username: "ana", MessageID: h.msg, Text: text}
}

// send handles text and advances the clock a minute.
func (h *harness) send(text string) lifecycle.Outcome {
	h.t.Helper()
	return h.sendEvent(h.event(text))
}

func (h *harness) sendEvent(ev domain.Event) lifecycle.Outcome {
	h.t.Helper()
	out, err := h.svc.Handle(context.Background(), ev)
	require.NoError(h.t, err)
	h.clock.Advance(time.Minute)
	return out
}

func (h *harness) openTasks() []tracker.Record {
	h.t.Helper()
	open, err := h.store.ListOpenTasks(context.Background(), chatID, userID)
	require.NoError(h.t, err)
	return open
}

func (h *harness) pending() *domain.PendingCompletion {
	h.t.Helper()
	p, err := h.store.GetPending(context.Background(), chatID, userID)
	require.NoError(h.t, err)
	return p
}

// ═══════════════════════════════════════════════════════════════════════════
// Scenarios
// ═══════════════════════════════════════════════════════════════════════════

func TestScenario_StartDoneDuration(t *testing.T) {
	h := newStubHarness(t)

	out := h.send("30 min: fix bug")
	assert.Equal(t, lifecycle.TransitionStarted, out.Transition)
	assert.Empty(t, out.Replies, "group starts are silent")

	out = h.send("done")
	assert.Equal(t, lifecycle.TransitionAwaitingDuration, out.Transition)
	require.Len(t, out.Replies, 1)
	assert.Contains(t, out.Replies[0].Text, "How long did <i>fix bug</i> take?")
	require.NotNil(t, h.pending())

	out = h.send("20")
	assert.Equal(t, lifecycle.TransitionCompleted, out.Transition)
	require.NotNil(t, out.Task)
	assert.Equal(t, 20, out.Task.Actual())
	require.NotNil(t, out.Task.Accuracy)
	assert.Equal(t, 67, *out.Task.Accuracy)
	assert.Equal(t, "Coding", out.Task.Category)
	assert.Contains(t, out.Replies[0].Text, "Task completed! Est: 30m, Actual: 20m (67% accuracy)")

	assert.Nil(t, h.pending())
	assert.Empty(t, h.openTasks())
}

func TestScenario_WithPatternClassifier(t *testing.T) {
	h := newHarness(t, intent.NewChain(nil, nil, nil), nil)

	assert.Equal(t, lifecycle.TransitionStarted, h.send("30 min: fix bug").Transition)
	assert.Equal(t, lifecycle.TransitionAwaitingDuration, h.send("done").Transition)

	out := h.send("20")
	require.Equal(t, lifecycle.TransitionCompleted, out.Transition)
	assert.Equal(t, 67, *out.Task.Accuracy)
	assert.Equal(t, "Coding", out.Task.Category)
}

func TestPatternStartNamingCompletionWordOpensNewTask(t *testing.T) {
	h := newHarness(t, intent.NewChain(nil, nil, nil), nil)

	h.send("30 min: fix bug")
	out := h.send("30 min: finish the report")
	require.Equal(t, lifecycle.TransitionStarted, out.Transition)
	assert.Equal(t, "finish the report", out.Task.Description)
	assert.Nil(t, h.pending())
	assert.Len(t, h.openTasks(), 2)
}

func TestReplyMatchClosesReferencedTask(t *testing.T) {
	h := newStubHarness(t)
	h.send("30 min: fix bug")
	first := h.msg
	h.send("45 min: write doc")

	ev := h.event("done 20")
	ev.ReplyTo = domain.Int64Ptr(first)
	out := h.sendEvent(ev)

	require.Equal(t, lifecycle.TransitionCompleted, out.Transition)
	assert.Equal(t, "fix bug", out.Task.Description)
	assert.True(t, out.Task.CompletedViaReply)

	open := h.openTasks()
	require.Len(t, open, 1)
	assert.Equal(t, "write doc", open[0].Task.Description)
}

func TestCompletionFallsBackToMostRecent(t *testing.T) {
	h := newStubHarness(t)
	h.send("30 min: fix bug")
	h.send("45 min: write doc")

	out := h.send("took 40")
	require.Equal(t, lifecycle.TransitionCompleted, out.Transition)
	assert.Equal(t, "write doc", out.Task.Description)
	assert.False(t, out.Task.CompletedViaReply)
	assert.Equal(t, 89, *out.Task.Accuracy)
}

func TestPendingThenDurationPhrase(t *testing.T) {
	h := newStubHarness(t)
	h.send("30 min: fix bug")
	h.send("done")

	out := h.send("25 minutes")
	require.Equal(t, lifecycle.TransitionCompleted, out.Transition)
	assert.Equal(t, 25, out.Task.Actual())
	assert.Nil(t, h.pending())
}

func TestDoneTwiceAssumesEstimate(t *testing.T) {
	h := newStubHarness(t)
	h.send("30 min: fix bug")
	h.send("done")

	out := h.send("done")
	require.Equal(t, lifecycle.TransitionAssumedEstimate, out.Transition)
	assert.Equal(t, 30, out.Task.Actual())
	assert.Equal(t, 100, *out.Task.Accuracy)
	assert.Contains(t, out.Replies[0].Text, "assumed your estimate of 30m (100% accuracy)")
	assert.Nil(t, h.pending())
}

func TestPendingResolvesReferencedTaskNotMostRecent(t *testing.T) {
	h := newStubHarness(t)
	h.send("30 min: fix bug")
	first := h.msg
	h.send("45 min: write doc")

	ev := h.event("done")
	ev.ReplyTo = domain.Int64Ptr(first)
	h.sendEvent(ev)

	// A later start must not change which task the pending record closes.
	h.send("60 min: deck")

	out := h.send("20")
	require.Equal(t, lifecycle.TransitionCompleted, out.Transition)
	assert.Equal(t, "fix bug", out.Task.Description)
	assert.True(t, out.Task.CompletedViaReply)
	assert.Len(t, h.openTasks(), 2)
}

func TestCompletionWithoutOpenTask(t *testing.T) {
	h := newStubHarness(t)

	for _, text := range []string{"done 20", "done"} {
		out := h.send(text)
		assert.Equal(t, lifecycle.TransitionNoActiveTask, out.Transition, text)
		require.Len(t, out.Replies, 1)
		assert.Contains(t, out.Replies[0].Text, "No active task")
	}
	assert.Nil(t, h.pending())

	tasks, err := h.store.ListTasks(context.Background(), chatID, userID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestAwaitingDurationKeepsPendingOnChatter(t *testing.T) {
	h := newStubHarness(t)
	h.send("30 min: fix bug")
	h.send("done")
	before := h.pending()

	out := h.send("lunch anyone?")
	assert.Equal(t, lifecycle.TransitionPendingKept, out.Transition)
	assert.Empty(t, out.Replies)
	assert.Equal(t, before, h.pending())
}

func TestAwaitingDurationAppliesStart(t *testing.T) {
	h := newStubHarness(t)
	h.send("30 min: fix bug")
	h.send("done")

	out := h.send("45 min: write doc")
	assert.Equal(t, lifecycle.TransitionStarted, out.Transition)
	assert.NotNil(t, h.pending(), "pending survives a start")
	assert.Len(t, h.openTasks(), 2)

	out = h.send("20")
	require.Equal(t, lifecycle.TransitionCompleted, out.Transition)
	assert.Equal(t, "fix bug", out.Task.Description)
}

func TestBareDurationWhileIdleIsIgnored(t *testing.T) {
	h := newStubHarness(t)
	h.send("30 min: fix bug")

	out := h.send("20")
	assert.Equal(t, lifecycle.TransitionIgnored, out.Transition)
	assert.Empty(t, out.Replies)
	assert.Len(t, h.openTasks(), 1)
}

func TestPendingTaskClosedMeanwhile(t *testing.T) {
	h := newStubHarness(t)
	h.send("30 min: fix bug")
	h.send("done")

	// Someone closes the task behind the pending record's back.
	open := h.openTasks()
	require.Len(t, open, 1)
	_, err := h.store.CloseTask(context.Background(), open[0].Key, 15, "Coding", true)
	require.NoError(t, err)

	out := h.send("20")
	assert.Equal(t, lifecycle.TransitionNoActiveTask, out.Transition)
	assert.Nil(t, h.pending())
}

func TestCompoundMessage(t *testing.T) {
	next := start(45, "write docs")
	compound := done(25)
	compound.Next = &next
	cls := stubClassifier{intents: map[string]domain.Intent{
		"30 min: fix bug":                         start(30, "fix bug"),
		"done, took 25m. next 45 min: write docs": compound,
	}}
	h := newHarness(t, cls, nil)
	h.send("30 min: fix bug")

	out := h.send("done, took 25m. next 45 min: write docs")
	assert.Equal(t, lifecycle.TransitionCompleted, out.Transition)
	assert.Equal(t, "fix bug", out.Task.Description)
	require.NotNil(t, out.Then)
	assert.Equal(t, lifecycle.TransitionStarted, out.Then.Transition)

	open := h.openTasks()
	require.Len(t, open, 1)
	assert.Equal(t, "write docs", open[0].Task.Description)
	assert.Equal(t, 45, open[0].Task.Estimate())
}

func TestCompoundStartRunsWhenCompletionFindsNothing(t *testing.T) {
	next := start(45, "write docs")
	compound := done(25)
	compound.Next = &next
	h := newHarness(t, stubClassifier{intents: map[string]domain.Intent{"both": compound}}, nil)

	out := h.send("both")
	assert.Equal(t, lifecycle.TransitionNoActiveTask, out.Transition)
	require.NotNil(t, out.Then)
	assert.Equal(t, lifecycle.TransitionStarted, out.Then.Transition)
	assert.Len(t, h.openTasks(), 1)
	assert.Len(t, out.AllReplies(), 1)
}

func TestRedeliveredStartIsIdempotent(t *testing.T) {
	h := newStubHarness(t)
	ev := h.event("30 min: fix bug")

	assert.Equal(t, lifecycle.TransitionStarted, h.sendEvent(ev).Transition)
	assert.Equal(t, lifecycle.TransitionDuplicate, h.sendEvent(ev).Transition)
	assert.Len(t, h.openTasks(), 1)
}

func TestStartWithoutEstimateIsIgnored(t *testing.T) {
	cls := stubClassifier{intents: map[string]domain.Intent{"starting on stuff": {Type: domain.IntentStart}}}
	h := newHarness(t, cls, nil)

	assert.Equal(t, lifecycle.TransitionIgnored, h.send("starting on stuff").Transition)
	assert.Empty(t, h.openTasks())
}

func TestPrivateStartIsConfirmed(t *testing.T) {
	h := newStubHarness(t)
	ev := h.event("30 min: fix bug")
	ev.Private = true

	out := h.sendEvent(ev)
	require.Len(t, out.Replies, 1)
	assert.Contains(t, out.Replies[0].Text, "Started <i>fix bug</i>. Estimate: 30m.")
}

// ═══════════════════════════════════════════════════════════════════════════
// Races
// ═══════════════════════════════════════════════════════════════════════════

func handleConcurrently(t *testing.T, h *harness, texts ...string) []lifecycle.Outcome {
	t.Helper()
	events := make([]domain.Event, len(texts))
	for i, text := range texts {
		events[i] = h.event(text)
	}

	outs := make([]lifecycle.Outcome, len(events))
	errs := make([]error, len(events))
	var wg sync.WaitGroup
	for i, ev := range events {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outs[i], errs[i] = h.svc.Handle(context.Background(), ev)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	return outs
}

func transitions(outs []lifecycle.Outcome) []lifecycle.Transition {
	var ts []lifecycle.Transition
	for _, o := range outs {
		ts = append(ts, o.Transition)
	}
	return ts
}

func TestRacingPendingResolutionsCloseOnce(t *testing.T) {
	h := newStubHarness(t)
	h.send("30 min: fix bug")
	h.send("done")

	outs := handleConcurrently(t, h, "20", "25 minutes")
	assert.ElementsMatch(t, []lifecycle.Transition{lifecycle.TransitionCompleted, lifecycle.TransitionIgnored}, transitions(outs))
	assert.Nil(t, h.pending())
	assert.Empty(t, h.openTasks())
}

func TestRacingCompletionsCloseOnce(t *testing.T) {
	h := newStubHarness(t)
	h.send("30 min: fix bug")

	outs := handleConcurrently(t, h, "done 20", "took 40")
	assert.ElementsMatch(t, []lifecycle.Transition{lifecycle.TransitionCompleted, lifecycle.TransitionNoActiveTask}, transitions(outs))

	tasks, err := h.store.ListTasks(context.Background(), chatID, userID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.False(t, tasks[0].Task.IsOpen())
}

// ═══════════════════════════════════════════════════════════════════════════
// Commands
// ═══════════════════════════════════════════════════════════════════════════

func TestSummaryCommand(t *testing.T) {
	h := newStubHarness(t)
	h.send("30 min: fix bug")
	h.send("done 20")

	for _, cmd := range []string{"/summary", "/stats@focusbot"} {
		out := h.send(cmd)
		assert.Equal(t, lifecycle.TransitionSummary, out.Transition)
		require.Len(t, out.Replies, 1)
		assert.Contains(t, out.Replies[0].Text, "Average accuracy: 67% over 1 tasks")
	}
}

func TestCancelCommand(t *testing.T) {
	h := newStubHarness(t)

	out := h.send("/cancel")
	assert.Equal(t, lifecycle.TransitionIgnored, out.Transition)
	assert.Contains(t, out.Replies[0].Text, "Nothing to cancel")

	h.send("30 min: fix bug")
	h.send("done")
	out = h.send("/cancel")
	assert.Equal(t, lifecycle.TransitionCancelled, out.Transition)
	assert.Nil(t, h.pending())
	assert.Len(t, h.openTasks(), 1, "the task itself stays open")

	assert.Equal(t, lifecycle.TransitionIgnored, h.send("20").Transition)
}

func TestUnknownCommandIgnored(t *testing.T) {
	h := newStubHarness(t)
	out := h.send("/settings")
	assert.Equal(t, lifecycle.TransitionIgnored, out.Transition)
	assert.Empty(t, out.Replies)

	assert.Equal(t, lifecycle.TransitionHelp, h.send("/help").Transition)
}

// ═══════════════════════════════════════════════════════════════════════════
// Delivery
// ═══════════════════════════════════════════════════════════════════════════

func TestProcessDeliversThreadedReply(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := domainmock.NewMockSender(ctrl)
	h := newHarness(t, stubClassifier{intents: stubIntents}, sender)
	h.send("30 min: fix bug")

	ev := h.event("done 20")
	ev.ThreadID = domain.Int64Ptr(9)
	sender.EXPECT().
		Send(gomock.Any(), chatID, gomock.Any(), domain.SendOptions{ReplyTo: domain.Int64Ptr(ev.MessageID), ThreadID: domain.Int64Ptr(9)}).
		Return(&domain.SentMessage{ChatID: chatID, MessageID: 500}, nil)

	out, err := h.svc.Process(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.TransitionCompleted, out.Transition)
}

func TestProcessDeliveryFailureKeepsState(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := domainmock.NewMockSender(ctrl)
	h := newHarness(t, stubClassifier{intents: stubIntents}, sender)
	h.send("30 min: fix bug")

	sender.EXPECT().Send(gomock.Any(), chatID, gomock.Any(), gomock.Any()).
		Return(nil, errors.New("telegram down"))

	out, err := h.svc.Process(context.Background(), h.event("done 20"))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.TransitionCompleted, out.Transition)
	assert.Empty(t, h.openTasks())
}

func TestProcessSilentEventSendsNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := domainmock.NewMockSender(ctrl) // no expectations: any Send fails the test
	h := newHarness(t, stubClassifier{intents: stubIntents}, sender)

	out, err := h.svc.Process(context.Background(), h.event("30 min: fix bug"))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.TransitionStarted, out.Transition)
}

func TestProcessFailedReplyGoesToOutbox(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := domainmock.NewMockSender(ctrl)

	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c := &clock{t: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	store := tracker.NewStore(db, tracker.StoreConfig{Now: c.Now})
	queue := outbox.NewQueue(outbox.RetryConfig{BaseDelay: time.Second, Now: c.Now})
	svc := lifecycle.NewService(store, stubClassifier{intents: stubIntents}, sender, lifecycle.Config{Outbox: queue, Now: c.Now})

	ctx := context.Background()
	_, err = svc.Process(ctx, domain.Event{ChatID: chatID, UserID: userID, Username: "ana", MessageID: 1, Text: "30 min: fix bug"})
	require.NoError(t, err)

	gomock.InOrder(
		sender.EXPECT().Send(gomock.Any(), chatID, gomock.Any(), gomock.Any()).
			Return(nil, errors.New("connection reset")),
		sender.EXPECT().Send(gomock.Any(), chatID, gomock.Any(), domain.SendOptions{ReplyTo: domain.Int64Ptr(2)}).
			Return(&domain.SentMessage{ChatID: chatID, MessageID: 501}, nil),
	)

	out, err := svc.Process(ctx, domain.Event{ChatID: chatID, UserID: userID, Username: "ana", MessageID: 2, Text: "done 20"})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.TransitionCompleted, out.Transition)
	require.Equal(t, 1, queue.Len())

	c.Advance(time.Second)
	assert.Equal(t, 1, queue.Flush(ctx, sender))
	assert.Equal(t, 0, queue.Len())
}

// failingTaskKV backs a MockKV with a real database and, once armed, fails
// every write to a task key.
func failingTaskKV(t *testing.T, ctrl *gomock.Controller, armed *atomic.Bool) domain.KV {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	kv := domainmock.NewMockKV(ctrl)
	kv.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(db.Get).AnyTimes()
	kv.EXPECT().Delete(gomock.Any(), gomock.Any()).DoAndReturn(db.Delete).AnyTimes()
	kv.EXPECT().ListKeys(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(db.ListKeys).AnyTimes()
	kv.EXPECT().CompareAndDelete(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(db.CompareAndDelete).AnyTimes()
	kv.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, key, value string) error {
		if armed.Load() && strings.HasPrefix(key, "tasks:") {
			return errors.New("disk full")
		}
		return db.Set(ctx, key, value)
	}).AnyTimes()
	return kv
}

func TestFailedCloseRestoresPending(t *testing.T) {
	ctrl := gomock.NewController(t)
	var armed atomic.Bool
	kv := failingTaskKV(t, ctrl, &armed)

	classifier := domainmock.NewMockClassifier(ctrl)
	classifier.EXPECT().Classify(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(stubClassifier{intents: stubIntents}.Classify).AnyTimes()
	classifier.EXPECT().Categorize(gomock.Any(), "fix bug").Return("Coding").Times(2)

	c := &clock{t: time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)}
	store := tracker.NewStore(kv, tracker.StoreConfig{Now: c.Now})
	svc := lifecycle.NewService(store, classifier, nil, lifecycle.Config{Now: c.Now})
	ctx := context.Background()
	ev := func(id int64, text string) domain.Event {
		return domain.Event{ChatID: chatID, UserID: userID, Username: "ana", MessageID: id, Text: text}
	}

	_, err := svc.Handle(ctx, ev(1, "30 min: fix bug"))
	require.NoError(t, err)
	out, err := svc.Handle(ctx, ev(2, "done"))
	require.NoError(t, err)
	require.Equal(t, lifecycle.TransitionAwaitingDuration, out.Transition)

	armed.Store(true)
	_, err = svc.Handle(ctx, ev(3, "20"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	p, err := store.GetPending(ctx, chatID, userID)
	require.NoError(t, err)
	require.NotNil(t, p, "pending record is put back")
	open, err := store.ListOpenTasks(ctx, chatID, userID)
	require.NoError(t, err)
	assert.Len(t, open, 1)

	armed.Store(false)
	out, err = svc.Handle(ctx, ev(4, "20"))
	require.NoError(t, err)
	require.Equal(t, lifecycle.TransitionCompleted, out.Transition)
	assert.Equal(t, 20, out.Task.Actual())

	p, err = store.GetPending(ctx, chatID, userID)
	require.NoError(t, err)
	assert.Nil(t, p)
}
