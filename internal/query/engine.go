// Package query computes the visible bug list: free-text search, per-field
// allow-list filters and an order-aware stable sort over a record snapshot.
package query

import (
	"slices"
	"strings"

	"github.com/rpattn/bugboard/internal/domain"
	"github.com/rpattn/bugboard/internal/normalize"
)

// Engine runs queries against a normalizer. It holds no state beyond the
// normalizer and is safe for concurrent use.
type Engine struct {
	normalizer *normalize.Normalizer
}

// NewEngine returns an engine over n, or over the built-in tables when n is nil.
func NewEngine(n *normalize.Normalizer) *Engine {
	if n == nil {
		n = normalize.Default()
	}
	return &Engine{normalizer: n}
}

var defaultEngine = NewEngine(nil)

// Visible filters and sorts records with the built-in normalization tables.
func Visible(records []domain.Bug, search string, filters domain.FilterSet, sortField string, sortOrder domain.SortDirection) []domain.Bug {
	return defaultEngine.Visible(records, domain.BugQuery{
		Search:  search,
		Filters: filters,
		Sort:    domain.SortSpec{Field: sortField, Direction: sortOrder},
	})
}

// Normalizer exposes the engine's normalizer.
func (e *Engine) Normalizer() *normalize.Normalizer {
	return e.normalizer
}

// Visible returns the records that match the query, ordered by its sort spec.
// The input slice and its records are left untouched.
func (e *Engine) Visible(records []domain.Bug, q domain.BugQuery) []domain.Bug {
	return e.Sort(e.Filter(records, q.Search, q.Filters), q.Sort)
}

// Filter keeps the records matching both the search text and every active
// filter, preserving input order.
func (e *Engine) Filter(records []domain.Bug, search string, filters domain.FilterSet) []domain.Bug {
	needle := strings.ToLower(strings.TrimSpace(search))
	accepted := e.prepareFilters(filters)

	out := make([]domain.Bug, 0, len(records))
	for _, record := range records {
		if !MatchesSearch(record, needle) {
			continue
		}
		if !e.matchesPrepared(record, accepted) {
			continue
		}
		out = append(out, record)
	}
	return out
}

// Sort returns a stably sorted copy of records.
func (e *Engine) Sort(records []domain.Bug, spec domain.SortSpec) []domain.Bug {
	sorted := slices.Clone(records)
	if sorted == nil {
		sorted = []domain.Bug{}
	}
	desc := spec.Direction == domain.SortDirectionDesc
	slices.SortStableFunc(sorted, func(a, b domain.Bug) int {
		result := e.normalizer.Compare(spec.Field, a.Get(spec.Field), b.Get(spec.Field))
		if desc {
			return -result
		}
		return result
	})
	return sorted
}

// Compare orders two raw values of field.
func (e *Engine) Compare(field, a, b string) int {
	return e.normalizer.Compare(field, a, b)
}

// MatchesSearch reports whether any domain field value of record contains
// needle, case-insensitively. needle is trimmed and lower-cased here; an
// empty needle matches every record.
func MatchesSearch(record domain.Bug, needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return true
	}
	for _, value := range record.Values() {
		if strings.Contains(strings.ToLower(value), needle) {
			return true
		}
	}
	return false
}

type preparedFilter struct {
	field    string
	accepted map[string]struct{}
}

// prepareFilters normalizes each accepted value once per query.
func (e *Engine) prepareFilters(filters domain.FilterSet) []preparedFilter {
	prepared := make([]preparedFilter, 0, len(filters))
	for field, values := range filters {
		if len(values) == 0 {
			continue
		}
		accepted := make(map[string]struct{}, len(values))
		for _, value := range values {
			accepted[e.normalizer.Normalize(field, value)] = struct{}{}
		}
		prepared = append(prepared, preparedFilter{field: field, accepted: accepted})
	}
	return prepared
}

func (e *Engine) matchesPrepared(record domain.Bug, filters []preparedFilter) bool {
	for _, filter := range filters {
		value := e.normalizer.Normalize(filter.field, record.Get(filter.field))
		if _, ok := filter.accepted[value]; !ok {
			return false
		}
	}
	return true
}
