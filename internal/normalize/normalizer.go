package normalize

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrInvalidRules is returned for structurally broken rule tables.
	ErrInvalidRules = errors.New("invalid normalization rules")
	// ErrNotIdempotent is returned when a canonical label would be re-bucketed.
	ErrNotIdempotent = errors.New("normalization rules are not idempotent")
)

// Normalizer canonicalizes field values with a fixed set of rule tables.
// It is immutable after construction and safe for concurrent use.
type Normalizer struct {
	tables map[string]FieldRules
	fields []string
}

// New validates the tables and builds a normalizer over them.
func New(tables ...FieldRules) (*Normalizer, error) {
	n := &Normalizer{tables: make(map[string]FieldRules, len(tables))}
	for _, table := range tables {
		prepared, err := prepare(table)
		if err != nil {
			return nil, err
		}
		if _, dup := n.tables[prepared.Field]; dup {
			return nil, fmt.Errorf("%w: field %s declared twice", ErrInvalidRules, prepared.Field)
		}
		n.tables[prepared.Field] = prepared
		n.fields = append(n.fields, prepared.Field)
	}
	for _, field := range n.fields {
		if err := checkIdempotent(n.tables[field]); err != nil {
			return nil, err
		}
	}
	return n, nil
}

var std = mustNew(DefaultRules()...)

func mustNew(tables ...FieldRules) *Normalizer {
	n, err := New(tables...)
	if err != nil {
		panic(err)
	}
	return n
}

// Default returns the normalizer built from the built-in tables.
func Default() *Normalizer {
	return std
}

// Value canonicalizes raw for field using the built-in tables.
func Value(field, raw string) string {
	return std.Normalize(field, raw)
}

// Compare orders two raw values of field using the built-in tables.
func Compare(field, a, b string) int {
	return std.Compare(field, a, b)
}

// Normalize maps a raw value to its canonical form. Fields without a table
// return raw unchanged; empty input returns "" for every field.
func (n *Normalizer) Normalize(field, raw string) string {
	table, ok := n.tables[field]
	if !ok {
		return raw
	}
	return table.Canonicalize(raw)
}

// Compare normalizes both values and orders them along the field's declared
// order, or lexicographically when the field has none. Labels missing from
// the declared order sort after every listed label.
func (n *Normalizer) Compare(field, a, b string) int {
	normA := n.Normalize(field, a)
	normB := n.Normalize(field, b)
	if table, ok := n.tables[field]; ok && len(table.Order) > 0 {
		ia, ib := table.Index(normA), table.Index(normB)
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(normA, normB)
}

// Order returns a copy of the declared order of field.
func (n *Normalizer) Order(field string) ([]string, bool) {
	table, ok := n.tables[field]
	if !ok || len(table.Order) == 0 {
		return nil, false
	}
	return slices.Clone(table.Order), true
}

// Enumerated reports whether field has a rule table.
func (n *Normalizer) Enumerated(field string) bool {
	_, ok := n.tables[field]
	return ok
}

// Fields lists the enumerated fields in declaration order.
func (n *Normalizer) Fields() []string {
	return slices.Clone(n.fields)
}

// Rules returns a copy of the table for field.
func (n *Normalizer) Rules(field string) (FieldRules, bool) {
	table, ok := n.tables[field]
	if !ok {
		return FieldRules{}, false
	}
	return cloneRules(table), true
}

func prepare(table FieldRules) (FieldRules, error) {
	out := cloneRules(table)
	out.Field = strings.TrimSpace(out.Field)
	if out.Field == "" {
		return FieldRules{}, fmt.Errorf("%w: table without field name", ErrInvalidRules)
	}
	if strings.TrimSpace(out.Default) == "" {
		return FieldRules{}, fmt.Errorf("%w: field %s has no default label", ErrInvalidRules, out.Field)
	}
	for i, rule := range out.Rules {
		if strings.TrimSpace(rule.Label) == "" {
			return FieldRules{}, fmt.Errorf("%w: field %s rule %d has no label", ErrInvalidRules, out.Field, i)
		}
		if len(rule.Contains) == 0 && len(rule.Prefixes) == 0 {
			return FieldRules{}, fmt.Errorf("%w: field %s rule %q has no keywords", ErrInvalidRules, out.Field, rule.Label)
		}
		for j, keyword := range rule.Contains {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword == "" {
				return FieldRules{}, fmt.Errorf("%w: field %s rule %q has an empty keyword", ErrInvalidRules, out.Field, rule.Label)
			}
			out.Rules[i].Contains[j] = keyword
		}
		for j, prefix := range rule.Prefixes {
			prefix = strings.ToLower(strings.TrimSpace(prefix))
			if prefix == "" {
				return FieldRules{}, fmt.Errorf("%w: field %s rule %q has an empty prefix", ErrInvalidRules, out.Field, rule.Label)
			}
			out.Rules[i].Prefixes[j] = prefix
		}
	}
	seen := make(map[string]struct{}, len(out.Order))
	for _, label := range out.Order {
		if _, dup := seen[label]; dup {
			return FieldRules{}, fmt.Errorf("%w: field %s lists %q twice in its order", ErrInvalidRules, out.Field, label)
		}
		seen[label] = struct{}{}
	}
	return out, nil
}

// checkIdempotent requires every label a table knows to map onto itself.
func checkIdempotent(table FieldRules) error {
	for _, label := range table.Labels() {
		if got := table.Canonicalize(label); got != label {
			return fmt.Errorf("%w: field %s label %q normalizes to %q", ErrNotIdempotent, table.Field, label, got)
		}
	}
	return nil
}

func cloneRules(table FieldRules) FieldRules {
	out := FieldRules{
		Field:   table.Field,
		Default: table.Default,
		Order:   slices.Clone(table.Order),
		Rules:   make([]Rule, len(table.Rules)),
	}
	for i, rule := range table.Rules {
		out.Rules[i] = Rule{
			Label:    rule.Label,
			Contains: slices.Clone(rule.Contains),
			Prefixes: slices.Clone(rule.Prefixes),
		}
	}
	return out
}
