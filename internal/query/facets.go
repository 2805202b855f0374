package query

import (
	"github.com/rpattn/bugboard/internal/domain"
)

// FilterOption lists the selectable values of one field.
type FilterOption struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

// FilterOptions collects the selectable values per field across records.
// Enumerated fields offer the canonical labels present, in declared order;
// other fields offer their distinct non-empty raw values in first-seen order.
// Fields come out in known-field order, then extras in first-seen order.
func (e *Engine) FilterOptions(records []domain.Bug) []FilterOption {
	var fieldOrder []string
	seenField := make(map[string]struct{})
	values := make(map[string][]string)
	seenValue := make(map[string]map[string]struct{})

	addField := func(field string) {
		if _, ok := seenField[field]; ok {
			return
		}
		seenField[field] = struct{}{}
		fieldOrder = append(fieldOrder, field)
		seenValue[field] = make(map[string]struct{})
	}

	for _, field := range domain.KnownFields {
		for _, record := range records {
			if record.Get(field) != "" {
				addField(field)
				break
			}
		}
	}

	for _, record := range records {
		for _, field := range record.FieldNames() {
			addField(field)
			value := e.normalizer.Normalize(field, record.Get(field))
			if value == "" {
				continue
			}
			if _, ok := seenValue[field][value]; ok {
				continue
			}
			seenValue[field][value] = struct{}{}
			values[field] = append(values[field], value)
		}
	}

	options := make([]FilterOption, 0, len(fieldOrder))
	for _, field := range fieldOrder {
		present := values[field]
		if order, ok := e.normalizer.Order(field); ok {
			present = orderedPresent(order, present)
		}
		if len(present) == 0 {
			continue
		}
		options = append(options, FilterOption{Field: field, Values: present})
	}
	return options
}

// orderedPresent returns the declared labels found in present, in declared
// order, followed by any present labels the order does not list.
func orderedPresent(order, present []string) []string {
	has := make(map[string]struct{}, len(present))
	for _, value := range present {
		has[value] = struct{}{}
	}
	out := make([]string, 0, len(present))
	listed := make(map[string]struct{}, len(order))
	for _, label := range order {
		listed[label] = struct{}{}
		if _, ok := has[label]; ok {
			out = append(out, label)
		}
	}
	for _, value := range present {
		if _, ok := listed[value]; !ok {
			out = append(out, value)
		}
	}
	return out
}
