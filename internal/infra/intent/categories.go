package intent

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/focusgroup/focusbot/internal/domain"
)

//go:embed categories.yaml
var defaultCategoriesYAML []byte

// CategoryRule maps keywords to a category name.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// CategoryRules is an ordered keyword table.
type CategoryRules struct {
	Rules []CategoryRule `yaml:"categories"`
}

var wordSplitRe = regexp.MustCompile(`[^\p{L}\p{N}:\-]+`)

// DefaultCategoryRules returns the built-in rule table.
func DefaultCategoryRules() *CategoryRules {
	rules, err := ParseCategoryRules(defaultCategoriesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded categories.yaml: %v", err))
	}
	return rules
}

// ParseCategoryRules decodes a YAML rule table.
func ParseCategoryRules(data []byte) (*CategoryRules, error) {
	var rules CategoryRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse category rules: %w", err)
	}
	for i, r := range rules.Rules {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("category rule %d has no name", i)
		}
	}
	return &rules, nil
}

// Names lists the categories in rule order, followed by the default.
func (c *CategoryRules) Names() []string {
	names := make([]string, 0, len(c.Rules)+1)
	for _, r := range c.Rules {
		names = append(names, r.Name)
	}
	return append(names, domain.DefaultCategory)
}

// Match returns the first category whose keyword appears as a word in
// description.
func (c *CategoryRules) Match(description string) (string, bool) {
	words := make(map[string]bool)
	for _, w := range wordSplitRe.Split(strings.ToLower(description), -1) {
		if w = strings.Trim(w, ":-"); w != "" {
			words[w] = true
		}
	}
	for _, r := range c.Rules {
		for _, k := range r.Keywords {
			if words[strings.ToLower(k)] {
				return r.Name, true
			}
		}
	}
	return "", false
}
