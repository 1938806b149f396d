package intent

import (
	"context"
	"log/slog"
	"time"

	"github.com/focusgroup/focusbot/internal/domain"
	"github.com/focusgroup/focusbot/internal/infra/metrics"
)

// Chain implements domain.Classifier: the pattern grammar first, the model
// only when the grammar is unsure. Model failures degrade to "other".
type Chain struct {
	pattern *PatternClassifier
	model   *ModelClassifier // nil when no API key is configured
	rules   *CategoryRules
	log     *slog.Logger
}

var _ domain.Classifier = (*Chain)(nil)

// NewChain builds a classifier chain. model may be nil; rules defaults to
// the embedded table.
func NewChain(model *ModelClassifier, rules *CategoryRules, logger *slog.Logger) *Chain {
	if rules == nil {
		rules = DefaultCategoryRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		pattern: NewPatternClassifier(),
		model:   model,
		rules:   rules,
		log:     logger.With("component", "classifier"),
	}
}

// Classify never fails.
func (c *Chain) Classify(ctx context.Context, text, username string) domain.Intent {
	in, confident := c.pattern.Classify(text)
	if confident || c.model == nil {
		in = in.Normalize()
		metrics.Classifications.WithLabelValues(string(in.Type), "pattern").Inc()
		return in
	}

	start := time.Now()
	out, err := c.model.Classify(ctx, text, username)
	metrics.ModelLatency.WithLabelValues("classify").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ModelErrors.WithLabelValues("classify").Inc()
		metrics.Classifications.WithLabelValues(string(domain.IntentOther), "fallback").Inc()
		c.log.Warn("model classification failed", "error", err)
		return domain.OtherIntent()
	}
	metrics.Classifications.WithLabelValues(string(out.Type), "model").Inc()
	return out
}

// Categorize tries the keyword rules, then the model, then DefaultCategory.
func (c *Chain) Categorize(ctx context.Context, description string) string {
	if description == "" {
		return domain.DefaultCategory
	}
	if name, ok := c.rules.Match(description); ok {
		return name
	}
	if c.model == nil {
		return domain.DefaultCategory
	}

	start := time.Now()
	name, err := c.model.Categorize(ctx, description, c.rules.Names())
	metrics.ModelLatency.WithLabelValues("categorize").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ModelErrors.WithLabelValues("categorize").Inc()
		c.log.Warn("model categorization failed", "error", err)
		return domain.DefaultCategory
	}
	return name
}
