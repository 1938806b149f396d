// Package domain holds the pure types of the focus tracker.
// A Task is one self-reported work session:
// announce (estimate) → work → report (actual) → score.
package domain

import (
	"fmt"
	"time"
)

// DefaultCategory is assigned when category classification fails or is skipped.
const DefaultCategory = "Other"

// TaskState is derived from the presence of CompletedAt.
type TaskState string

const (
	TaskOpen      TaskState = "open"
	TaskCompleted TaskState = "completed"
)

// Task is a single work session announced in a chat.
type Task struct {
	ChatID            int64      `json:"chat_id"`
	UserID            int64      `json:"user_id"`
	Username          string     `json:"username"`
	EstimatedMinutes  *int       `json:"estimated_minutes"`
	ActualMinutes     *int       `json:"actual_minutes,omitempty"`
	Description       string     `json:"task_description"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	SourceMessageID   int64      `json:"source_message_id"`
	Accuracy          *int       `json:"accuracy_percentage,omitempty"`
	CompletedViaReply bool       `json:"completed_via_reply"`
	Category          string     `json:"category,omitempty"`
	Date              string     `json:"date"`
}

// State reports whether the task is still open.
func (t *Task) State() TaskState {
	if t.CompletedAt == nil {
		return TaskOpen
	}
	return TaskCompleted
}

// IsOpen is shorthand for State() == TaskOpen.
func (t *Task) IsOpen() bool { return t.CompletedAt == nil }

// Estimate returns the estimate in minutes, or 0 when absent.
func (t *Task) Estimate() int {
	if t.EstimatedMinutes == nil {
		return 0
	}
	return *t.EstimatedMinutes
}

// Actual returns the actual minutes, or 0 while open.
func (t *Task) Actual() int {
	if t.ActualMinutes == nil {
		return 0
	}
	return *t.ActualMinutes
}

// Complete returns a closed copy of t. The receiver is never modified.
func (t Task) Complete(actual int, category string, viaReply bool, at time.Time) (Task, error) {
	if !t.IsOpen() {
		return Task{}, ErrTaskCompleted
	}
	if actual <= 0 {
		return Task{}, fmt.Errorf("%w: %d", ErrInvalidDuration, actual)
	}
	if category == "" {
		category = DefaultCategory
	}
	done := t
	done.ActualMinutes = IntPtr(actual)
	done.CompletedAt = &at
	done.Accuracy = Accuracy(t.EstimatedMinutes, actual)
	done.Category = category
	done.CompletedViaReply = viaReply
	return done, nil
}

// PendingCompletion is the transient "finished, but how long did it take?" record.
// There is at most one per (chat, user).
type PendingCompletion struct {
	ChatID           int64     `json:"chat_id"`
	UserID           int64     `json:"user_id"`
	EstimatedMinutes *int      `json:"estimated_minutes"`
	Description      string    `json:"task_description"`
	SourceMessageID  int64     `json:"source_message_id"`
	ReplyReference   *int64    `json:"reply_reference,omitempty"`
	Token            string    `json:"token"`
	CreatedAt        time.Time `json:"created_at"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }
