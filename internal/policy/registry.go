package policy

import (
	"sort"

	"github.com/eliteGoblin/focusd/activity_mon/internal/domain"
)

// Registry holds the classification rule table.
// The table is fixed at construction; nothing edits it at runtime.
type Registry struct {
	rules map[string]ClassificationRule
	order []string
}

// NewRegistry creates a registry with all default rules.
func NewRegistry() *Registry {
	return NewRegistryWithRules(
		NewLeetCodeRule(),
		NewHackerRankRule(),
	)
}

// NewRegistryWithRules creates a registry with custom rules (for testing).
func NewRegistryWithRules(rules ...ClassificationRule) *Registry {
	r := &Registry{
		rules: make(map[string]ClassificationRule),
	}
	for _, rule := range rules {
		if _, dup := r.rules[rule.ID()]; !dup {
			r.order = append(r.order, rule.ID())
		}
		r.rules[rule.ID()] = rule
	}
	return r
}

// Get returns a rule by ID.
func (r *Registry) Get(id string) (ClassificationRule, bool) {
	rule, ok := r.rules[id]
	return rule, ok
}

// GetAll returns rules in registration order.
func (r *Registry) GetAll() []ClassificationRule {
	result := make([]ClassificationRule, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.rules[id])
	}
	return result
}

// List returns all rule IDs, sorted.
func (r *Registry) List() []string {
	ids := append([]string(nil), r.order...)
	sort.Strings(ids)
	return ids
}

// Classify returns the canonical label of the first matching rule,
// or title unchanged when no rule applies.
func (r *Registry) Classify(ownerName, title string) string {
	for _, id := range r.order {
		rule := r.rules[id]
		if Applies(rule, ownerName, title) {
			return rule.Label()
		}
	}
	return title
}

// Ensure Registry implements domain.Classifier.
var _ domain.Classifier = (*Registry)(nil)
