package api

import (
	"net/url"
	"strings"

	"github.com/rpattn/bugboard/internal/domain"
)

// filterParamPrefix marks repeated filter query parameters, e.g.
// filter.Status=Open&filter.Status=Closed.
const filterParamPrefix = "filter."

// parseBugQuery reads search, filters and sort from URL query parameters.
func parseBugQuery(values url.Values) domain.BugQuery {
	q := domain.BugQuery{
		Search:  values.Get("search"),
		Filters: domain.FilterSet{},
		Sort:    parseSort(values.Get("sortField"), values.Get("sortOrder")),
	}
	for key, vals := range values {
		field, ok := strings.CutPrefix(key, filterParamPrefix)
		if !ok || field == "" {
			continue
		}
		q.Filters[field] = append(q.Filters[field], vals...)
	}
	return q
}

// queryRequest is the JSON body of POST /bugs/query.
type queryRequest struct {
	Search    string           `json:"search"`
	Filters   domain.FilterSet `json:"filters"`
	SortField string           `json:"sortField"`
	SortOrder string           `json:"sortOrder"`
}

func (q queryRequest) toQuery() domain.BugQuery {
	return domain.BugQuery{
		Search:  q.Search,
		Filters: q.Filters,
		Sort:    parseSort(q.SortField, q.SortOrder),
	}
}

func parseSort(field, order string) domain.SortSpec {
	spec := domain.DefaultSort()
	if f := strings.TrimSpace(field); f != "" {
		spec.Field = f
	}
	spec.Direction = domain.ParseSortDirection(order)
	return spec
}
