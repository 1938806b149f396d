package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Storage errors
	ErrKeyNotFound = errors.New("key not found")

	// Task errors
	ErrTaskNotFound    = errors.New("task not found")
	ErrTaskCompleted   = errors.New("task already completed")
	ErrDuplicateSource = errors.New("a task already exists for this source message")
	ErrNoEstimate      = errors.New("task has no estimate")
	ErrInvalidDuration = errors.New("duration must be a positive number of minutes")

	// Pending completion errors
	ErrPendingClaimed = errors.New("pending completion already resolved")

	// Transport errors
	ErrSenderDisabled = errors.New("message sender not configured")
	ErrModelDisabled  = errors.New("text model not configured")
)
