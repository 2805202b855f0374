// Package normalize maps loosely typed bug field values onto canonical labels.
//
// Each enumerated field carries an ordered rule table evaluated first match
// wins, a default label for values no rule claims, and a fixed display and
// sort order. Fields without a table pass through unchanged.
package normalize

import "strings"

// Canonical labels.
const (
	StatusOpen       = "Open"
	StatusInProgress = "In Progress"
	StatusFailed     = "Failed"
	StatusPassed     = "Passed"
	StatusClosed     = "Closed"

	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"

	SeverityCritical = "Critical"
	SeverityMajor    = "Major"
	SeverityMinor    = "Minor"
)

// Rule assigns Label to values containing any of Contains or starting with
// any of Prefixes. Keywords are matched against the lower-cased, trimmed value.
type Rule struct {
	Label    string   `yaml:"label"`
	Contains []string `yaml:"contains,omitempty"`
	Prefixes []string `yaml:"prefixes,omitempty"`
}

// Matches reports whether the prepared (lower-cased, trimmed) value hits the rule.
func (r Rule) Matches(prepared string) bool {
	for _, prefix := range r.Prefixes {
		if strings.HasPrefix(prepared, prefix) {
			return true
		}
	}
	for _, keyword := range r.Contains {
		if strings.Contains(prepared, keyword) {
			return true
		}
	}
	return false
}

// FieldRules is the canonicalization table of one enumerated field.
type FieldRules struct {
	Field   string   `yaml:"field"`
	Rules   []Rule   `yaml:"rules"`
	Default string   `yaml:"default"`
	Order   []string `yaml:"order"`
}

// Canonicalize runs the rule table over a raw value. Empty input stays empty.
func (t FieldRules) Canonicalize(raw string) string {
	if raw == "" {
		return ""
	}
	prepared := strings.TrimSpace(strings.ToLower(raw))
	for _, rule := range t.Rules {
		if rule.Matches(prepared) {
			return rule.Label
		}
	}
	return t.Default
}

// Index returns the position of a canonical label in the declared order, or
// len(Order) when the label is not listed.
func (t FieldRules) Index(label string) int {
	for i, candidate := range t.Order {
		if candidate == label {
			return i
		}
	}
	return len(t.Order)
}

// Labels returns every label the table can produce or declares, without duplicates.
func (t FieldRules) Labels() []string {
	seen := make(map[string]struct{}, len(t.Order)+len(t.Rules)+1)
	labels := make([]string, 0, len(t.Order)+len(t.Rules)+1)
	add := func(label string) {
		if _, ok := seen[label]; ok {
			return
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	for _, label := range t.Order {
		add(label)
	}
	for _, rule := range t.Rules {
		add(rule.Label)
	}
	add(t.Default)
	return labels
}

// StatusRules is the built-in Status table.
func StatusRules() FieldRules {
	return FieldRules{
		Field: "Status",
		Rules: []Rule{
			{Label: StatusOpen, Contains: []string{"open"}},
			{Label: StatusInProgress, Contains: []string{"progress", "working"}},
			{Label: StatusClosed, Contains: []string{"close", "done", "fixed", "completed", "resolved", "finished"}},
			{Label: StatusFailed, Contains: []string{"fail", "error"}},
			{Label: StatusPassed, Contains: []string{"pass", "success"}},
		},
		Default: StatusOpen,
		Order:   []string{StatusOpen, StatusInProgress, StatusFailed, StatusPassed, StatusClosed},
	}
}

// PriorityRules is the built-in Priority table. Priority values are usually
// single words, so the first letter decides.
func PriorityRules() FieldRules {
	return FieldRules{
		Field: "Priority",
		Rules: []Rule{
			{Label: PriorityHigh, Prefixes: []string{"h"}, Contains: []string{"critical"}},
			{Label: PriorityMedium, Prefixes: []string{"m"}},
			{Label: PriorityLow, Prefixes: []string{"l"}},
		},
		Default: PriorityMedium,
		Order:   []string{PriorityHigh, PriorityMedium, PriorityLow},
	}
}

// SeverityRules is the built-in Severity table.
func SeverityRules() FieldRules {
	return FieldRules{
		Field: "Severity",
		Rules: []Rule{
			{Label: SeverityCritical, Contains: []string{"critical", "blocker", "showstopper"}},
			{Label: SeverityMajor, Contains: []string{"major", "significant", "important"}},
			{Label: SeverityMinor, Contains: []string{"minor", "trivial", "cosmetic"}},
		},
		Default: SeverityMinor,
		Order:   []string{SeverityCritical, SeverityMajor, SeverityMinor},
	}
}

// DefaultRules returns fresh copies of the built-in tables.
func DefaultRules() []FieldRules {
	return []FieldRules{StatusRules(), PriorityRules(), SeverityRules()}
}
