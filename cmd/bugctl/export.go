package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/rpattn/bugboard/internal/export"
	"github.com/rpattn/bugboard/internal/imagelink"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		sel    selection
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the selected records as csv, xlsx or json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			exportFormat, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			bugs, err := sel.apply(opts)
			if err != nil {
				return err
			}

			service := export.NewService(export.WithEngine(opts.engine), export.WithLogger(opts.logger))
			var buf bytes.Buffer
			if err := service.Write(&buf, exportFormat, bugs); err != nil {
				return err
			}

			if output == "" {
				output = exportFormat.FileName()
			}
			if output == "-" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			opts.logger.Info("export written", zap.String("path", output), zap.Int("records", len(bugs)))
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", len(bugs), output)
			return nil
		},
	}

	sel.register(cmd)
	f := cmd.Flags()
	f.StringVar(&format, "format", string(export.FormatCSV), "output format (csv, xlsx or json)")
	f.StringVarP(&output, "output", "o", "", "output path, - for stdout (default bug_report.<format>)")
	return cmd
}

func newCheckImageCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-image URL",
		Short: "Check that a link resolves to an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			validator := imagelink.NewValidator(nil, 0, opts.logger)
			result := validator.Validate(cmd.Context(), args[0])
			out := cmd.OutOrStdout()
			if result.DirectURL != "" && result.DirectURL != args[0] {
				fmt.Fprintf(out, "direct link: %s\n", result.DirectURL)
			}
			if !result.Valid {
				return fmt.Errorf("invalid image link: %s", result.Error)
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
}
