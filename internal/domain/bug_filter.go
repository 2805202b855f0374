package domain

// FilterSet maps a field name to the values accepted for it. An empty or
// absent list places no constraint on the field.
type FilterSet map[string][]string

// BugQuery bundles the inputs of one visible-list computation.
type BugQuery struct {
	Search  string    `json:"search"`
	Filters FilterSet `json:"filters"`
	Sort    SortSpec  `json:"sort"`
}
