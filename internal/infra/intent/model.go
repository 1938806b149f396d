package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/focusgroup/focusbot/internal/domain"
)

// completer is the one call ModelClassifier needs from a text model.
type completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// ModelClassifier asks a hosted text model to read a message.
type ModelClassifier struct {
	llm completer
}

// NewModelClassifier wraps a text model client.
func NewModelClassifier(llm completer) *ModelClassifier {
	return &ModelClassifier{llm: llm}
}

const classifySystemPrompt = `You parse messages from a focus group chat to identify task starts or completions.

Rules:
- TASK START: someone announcing they're about to work on something with an estimated time AND task description.
- TASK COMPLETION: someone announcing they finished work, with the actual time taken if they gave one.
- TIME ONLY: just a time duration without task context (e.g. "20 minutes", "30 mins").

For TASK START set "estimated_minutes" and "task_description"; "actual_minutes" must be null.
For TASK COMPLETION set "actual_minutes" when a time is given, otherwise null; "estimated_minutes" must be null.
For TIME ONLY set "type" to "other" and "actual_minutes" to the time.
Everything else is "other" with all numbers null.

Respond with JSON only:
{"type": "task_start" | "task_completion" | "other", "estimated_minutes": number | null, "actual_minutes": number | null, "task_description": string | null}

Examples:
"30 mins: fix the login bug" → {"type": "task_start", "estimated_minutes": 30, "actual_minutes": null, "task_description": "fix the login bug"}
"gonna work on emails for about an hour" → {"type": "task_start", "estimated_minutes": 60, "actual_minutes": null, "task_description": "emails"}
"done in 45 minutes" → {"type": "task_completion", "estimated_minutes": null, "actual_minutes": 45, "task_description": null}
"just finished that email task, took 20 mins" → {"type": "task_completion", "estimated_minutes": null, "actual_minutes": 20, "task_description": "email task"}
"done!" → {"type": "task_completion", "estimated_minutes": null, "actual_minutes": null, "task_description": null}
"25m" → {"type": "other", "estimated_minutes": null, "actual_minutes": 25, "task_description": null}`

// Classify returns the model's reading of text. Errors are returned to the
// caller; Chain is what degrades them to "other".
func (m *ModelClassifier) Classify(ctx context.Context, text, username string) (domain.Intent, error) {
	user := fmt.Sprintf("Message from @%s: %q", username, text)
	raw, err := m.llm.Complete(ctx, classifySystemPrompt, user, 200)
	if err != nil {
		return domain.Intent{}, err
	}

	var in domain.Intent
	if err := json.Unmarshal([]byte(stripFences(raw)), &in); err != nil {
		return domain.Intent{}, fmt.Errorf("parse intent JSON: %w (raw: %s)", err, raw)
	}
	in.Next = nil
	return in.Normalize(), nil
}

// Categorize asks the model to pick one of categories for description.
func (m *ModelClassifier) Categorize(ctx context.Context, description string, categories []string) (string, error) {
	system := "Assign the work task to exactly one category. Reply with the category name only.\nCategories: " +
		strings.Join(categories, ", ")
	raw, err := m.llm.Complete(ctx, system, description, 20)
	if err != nil {
		return "", err
	}
	answer := strings.Trim(strings.TrimSpace(stripFences(raw)), `."'`)
	for _, c := range categories {
		if strings.EqualFold(c, answer) {
			return c, nil
		}
	}
	if i := slices.IndexFunc(categories, func(c string) bool {
		return strings.Contains(strings.ToLower(answer), strings.ToLower(c))
	}); i >= 0 {
		return categories[i], nil
	}
	return "", fmt.Errorf("unknown category %q", answer)
}
