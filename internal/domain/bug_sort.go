package domain

import "strings"

// SortDirection represents ordering direction for sortable fields.
type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// ParseSortDirection maps user input onto a direction. Anything other than a
// descending spelling sorts ascending.
func ParseSortDirection(raw string) SortDirection {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "desc", "descending":
		return SortDirectionDesc
	default:
		return SortDirectionAsc
	}
}

// DefaultSortField is the field listings sort on when none is requested.
const DefaultSortField = FieldScenarioID

// SortSpec captures ordering preferences for bug listings.
type SortSpec struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// DefaultSort orders by scenario ascending.
func DefaultSort() SortSpec {
	return SortSpec{Field: DefaultSortField, Direction: SortDirectionAsc}
}
