package query

import (
	"slices"

	"github.com/rpattn/bugboard/internal/domain"
)

// Bucket is the number of records sharing one canonical value.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Summary holds the dashboard statistics for a record set.
type Summary struct {
	Total      int      `json:"total"`
	ByStatus   []Bucket `json:"byStatus"`
	ByPriority []Bucket `json:"byPriority"`
	BySeverity []Bucket `json:"bySeverity"`
}

// Summarize counts records per canonical Status, Priority and Severity.
// Every declared label is reported, zero counts included, in declared order.
// Records with an empty value are counted under "Unspecified" at the end.
func (e *Engine) Summarize(records []domain.Bug) Summary {
	return Summary{
		Total:      len(records),
		ByStatus:   e.Count(records, domain.FieldStatus),
		ByPriority: e.Count(records, domain.FieldPriority),
		BySeverity: e.Count(records, domain.FieldSeverity),
	}
}

// UnspecifiedLabel buckets records with no value for the counted field.
const UnspecifiedLabel = "Unspecified"

// Count tallies canonical values of field across records.
func (e *Engine) Count(records []domain.Bug, field string) []Bucket {
	counts := make(map[string]int)
	var seen []string
	for _, record := range records {
		label := e.normalizer.Normalize(field, record.Get(field))
		if label == "" {
			label = UnspecifiedLabel
		}
		if _, ok := counts[label]; !ok {
			seen = append(seen, label)
		}
		counts[label]++
	}

	labels := seen
	if order, ok := e.normalizer.Order(field); ok {
		// every declared label is reported, then anything the order misses
		labels = order
		for _, label := range seen {
			if !slices.Contains(order, label) {
				labels = append(labels, label)
			}
		}
	}

	buckets := make([]Bucket, 0, len(labels))
	unspecified := -1
	for _, label := range labels {
		if label == UnspecifiedLabel {
			unspecified = counts[label]
			continue
		}
		buckets = append(buckets, Bucket{Label: label, Count: counts[label]})
	}
	if unspecified >= 0 {
		buckets = append(buckets, Bucket{Label: UnspecifiedLabel, Count: unspecified})
	}
	return buckets
}
