// Package telegram speaks the Telegram Bot API: webhook update decoding and
// outbound sendMessage.
package telegram

import (
	"strings"

	"github.com/focusgroup/focusbot/internal/domain"
)

// Update is one webhook delivery. Only message updates are used.
type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

// Message is the subset of a Telegram message focusbot reads.
type Message struct {
	MessageID       int64    `json:"message_id"`
	MessageThreadID int64    `json:"message_thread_id,omitempty"`
	From            *User    `json:"from,omitempty"`
	Chat            Chat     `json:"chat"`
	Date            int64    `json:"date"`
	Text            string   `json:"text,omitempty"`
	ReplyToMessage  *Message `json:"reply_to_message,omitempty"`
}

// User is a message sender.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"` // private, group, supergroup, channel
	Title string `json:"title,omitempty"`
}

// ToEvent converts a message update into a domain event. It reports false
// for updates the tracker has nothing to do with: no message, no text, no
// sender, or a bot sender.
func (u Update) ToEvent() (domain.Event, bool) {
	m := u.Message
	if m == nil || m.From == nil || m.From.IsBot || strings.TrimSpace(m.Text) == "" {
		return domain.Event{}, false
	}

	ev := domain.Event{
		ChatID:    m.Chat.ID,
		UserID:    m.From.ID,
		Username:  displayName(m.From),
		MessageID: m.MessageID,
		Private:   m.Chat.Type == "private",
		Text:      m.Text,
	}
	if m.ReplyToMessage != nil {
		ev.ReplyTo = domain.Int64Ptr(m.ReplyToMessage.MessageID)
	}
	if m.MessageThreadID != 0 {
		ev.ThreadID = domain.Int64Ptr(m.MessageThreadID)
	}
	return ev, true
}

func displayName(u *User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}
