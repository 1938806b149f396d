package domain

import "context"

//go:generate mockgen -source=interfaces.go -destination=domainmock/mocks.go -package=domainmock

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// KV is the key-value engine every record lives in.
// There are no transactions and no atomicity across keys.
type KV interface {
	// Get returns ErrKeyNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error

	// ListKeys returns the keys starting with prefix in ascending order.
	// limit <= 0 means unlimited.
	ListKeys(ctx context.Context, prefix string, limit int) ([]string, error)

	// CompareAndDelete removes key only if its value still equals expected.
	// It reports whether the key was removed.
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// Classifier turns free text into structured intents and categories.
// Implementations never fail: errors degrade to OtherIntent / DefaultCategory.
type Classifier interface {
	Classify(ctx context.Context, text, username string) Intent
	Categorize(ctx context.Context, description string) string
}

// SendOptions controls how a chat message is threaded.
type SendOptions struct {
	ReplyTo  *int64
	ThreadID *int64
}

// SentMessage is the delivery receipt of an outbound message.
type SentMessage struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

// Sender delivers outbound chat messages.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, opts SendOptions) (*SentMessage, error)
}
