package domain

// IntentType is the classifier's verdict on a chat message.
type IntentType string

const (
	IntentStart      IntentType = "task_start"
	IntentCompletion IntentType = "task_completion"
	IntentOther      IntentType = "other"
)

// Intent is the structured reading of one chat message.
// Next carries the start half of a compound "done ... next ..." message.
type Intent struct {
	Type             IntentType `json:"type"`
	EstimatedMinutes *int       `json:"estimated_minutes"`
	ActualMinutes    *int       `json:"actual_minutes"`
	Description      *string    `json:"task_description"`
	Next             *Intent    `json:"next,omitempty"`
}

// OtherIntent is the neutral verdict every classifier failure degrades to.
func OtherIntent() Intent {
	return Intent{Type: IntentOther}
}

// HasActual reports whether the intent carries a usable actual duration.
func (i Intent) HasActual() bool {
	return i.ActualMinutes != nil && *i.ActualMinutes > 0
}

// HasEstimate reports whether the intent carries a usable estimate.
func (i Intent) HasEstimate() bool {
	return i.EstimatedMinutes != nil && *i.EstimatedMinutes > 0
}

// DescriptionText returns the description or "".
func (i Intent) DescriptionText() string {
	if i.Description == nil {
		return ""
	}
	return *i.Description
}

// Normalize drops non-positive durations and unknown types.
func (i Intent) Normalize() Intent {
	switch i.Type {
	case IntentStart, IntentCompletion, IntentOther:
	default:
		i.Type = IntentOther
	}
	if !i.HasActual() {
		i.ActualMinutes = nil
	}
	if !i.HasEstimate() {
		i.EstimatedMinutes = nil
	}
	if i.Next != nil {
		next := i.Next.Normalize()
		if next.Type != IntentStart {
			i.Next = nil
		} else {
			i.Next = &next
		}
	}
	return i
}

// Event is an inbound chat message after transport decoding.
type Event struct {
	ChatID    int64
	UserID    int64
	Username  string
	MessageID int64
	ReplyTo   *int64 // message the event replied to, if any
	ThreadID  *int64 // forum topic, if any
	Private   bool   // one-to-one chat with the bot
	Text      string
}
