package main

import (
	"github.com/spf13/cobra"
)

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var sel selection

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count records by status, priority and severity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bugs, err := sel.apply(opts)
			if err != nil {
				return err
			}
			renderSummary(cmd.OutOrStdout(), opts.engine.Summarize(bugs))
			return nil
		},
	}
	sel.register(cmd)
	return cmd
}

func newFiltersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List the distinct canonical values of every field",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bugs, err := opts.loadRecords()
			if err != nil {
				return err
			}
			renderFilterOptions(cmd.OutOrStdout(), opts.engine.FilterOptions(bugs))
			return nil
		},
	}
}
