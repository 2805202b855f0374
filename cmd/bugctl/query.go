package main

import (
	"strings"

	"github.com/rpattn/bugboard/internal/domain"

	"github.com/spf13/cobra"
)

var defaultColumns = []string{
	domain.FieldScenarioID,
	domain.FieldStatus,
	domain.FieldPriority,
	domain.FieldSeverity,
	domain.FieldDescription,
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		sel       selection
		sortField string
		sortOrder string
		columns   []string
		limit     int
		maxWidth  int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List the records matching a search and filters, sorted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bugs, err := sel.apply(opts)
			if err != nil {
				return err
			}
			spec := domain.DefaultSort()
			if strings.TrimSpace(sortField) != "" {
				spec.Field = strings.TrimSpace(sortField)
			}
			spec.Direction = domain.ParseSortDirection(sortOrder)

			sorted := opts.engine.Sort(bugs, spec)
			if limit > 0 && len(sorted) > limit {
				sorted = sorted[:limit]
			}

			rows := make([][]string, len(sorted))
			for i, bug := range sorted {
				row := make([]string, len(columns))
				for j, column := range columns {
					row[j] = bug.Get(column)
				}
				rows[i] = row
			}

			out := cmd.OutOrStdout()
			renderTable(out, columns, rows, maxWidth)
			renderFooter(out, len(sorted), len(bugs))
			return nil
		},
	}

	sel.register(cmd)
	f := cmd.Flags()
	f.StringVar(&sortField, "sort", domain.DefaultSortField, "field to sort on")
	f.StringVar(&sortOrder, "order", string(domain.SortDirectionAsc), "sort order (asc or desc)")
	f.StringSliceVar(&columns, "columns", defaultColumns, "columns to display")
	f.IntVar(&limit, "limit", 0, "show at most this many rows (0 for all)")
	f.IntVar(&maxWidth, "max-width", 40, "truncate cells wider than this many terminal cells")
	return cmd
}
