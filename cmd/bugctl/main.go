package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rpattn/bugboard/internal/domain"
	"github.com/rpattn/bugboard/internal/ingestion"
	"github.com/rpattn/bugboard/internal/logging"
	"github.com/rpattn/bugboard/internal/normalize"
	"github.com/rpattn/bugboard/internal/query"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is set at build time via -ldflags.
var version = "dev"

// rootOptions holds the persistent flags and what PersistentPreRunE builds
// from them.
type rootOptions struct {
	file     string
	rules    string
	logLevel string

	logger *zap.Logger
	engine *query.Engine
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "bugctl",
		Short: "Query, summarize and export bug report files",
		Long: "bugctl reads a bug report file (csv, xlsx or json) and applies the\n" +
			"dashboard's search, filter and sort rules to it offline.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(opts.logLevel, logging.FormatConsole)
			if err != nil {
				return err
			}
			opts.logger = logger

			normalizer, err := normalize.LoadFile(opts.rules)
			if err != nil {
				return err
			}
			opts.engine = query.NewEngine(normalizer)
			return nil
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.file, "file", "f", "", "bug report file to read")
	f.StringVar(&opts.rules, "rules", "", "YAML normalization rules (built-in rules when empty)")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(newQueryCmd(opts))
	cmd.AddCommand(newSummaryCmd(opts))
	cmd.AddCommand(newFiltersCmd(opts))
	cmd.AddCommand(newExportCmd(opts))
	cmd.AddCommand(newCheckImageCmd(opts))
	return cmd
}

// loadRecords parses the --file report.
func (o *rootOptions) loadRecords() ([]domain.Bug, error) {
	if o.file == "" {
		return nil, fmt.Errorf("--file is required")
	}
	payload, err := os.ReadFile(o.file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", o.file, err)
	}
	bugs, err := ingestion.ParseBugs(filepath.Base(o.file), payload)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", o.file, err)
	}
	o.logger.Debug("loaded records", zap.String("file", o.file), zap.Int("count", len(bugs)))
	return bugs, nil
}

// selection is the search and filter flags shared by several commands.
type selection struct {
	search  string
	filters []string
}

func (s *selection) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.search, "search", "s", "", "case-insensitive text search over every field")
	cmd.Flags().StringArrayVar(&s.filters, "filter", nil, "Field=Value filter, repeatable; values of one field are ORed")
}

func (s *selection) filterSet() (domain.FilterSet, error) {
	set := domain.FilterSet{}
	for _, raw := range s.filters {
		field, value, ok := strings.Cut(raw, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid filter %q, expected Field=Value", raw)
		}
		set[field] = append(set[field], strings.TrimSpace(value))
	}
	return set, nil
}

// apply loads the report and narrows it by the selection.
func (s *selection) apply(opts *rootOptions) ([]domain.Bug, error) {
	filters, err := s.filterSet()
	if err != nil {
		return nil, err
	}
	bugs, err := opts.loadRecords()
	if err != nil {
		return nil, err
	}
	return opts.engine.Filter(bugs, s.search, filters), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
