package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rpattn/bugboard/internal/query"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const barWidth = 30

// styles binds lipgloss styles to the writer so colour is only emitted on a
// terminal.
type styles struct {
	header lipgloss.Style
	title  lipgloss.Style
	muted  lipgloss.Style
	bar    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header: r.NewStyle().Bold(true).Underline(true),
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("8")),
		bar:    r.NewStyle().Foreground(lipgloss.Color("10")),
	}
}

// cell flattens line breaks and truncates to maxWidth terminal cells.
func cell(value string, maxWidth int) string {
	value = strings.Join(strings.Fields(value), " ")
	if maxWidth > 0 && runewidth.StringWidth(value) > maxWidth {
		return runewidth.Truncate(value, maxWidth, "…")
	}
	return value
}

func renderTable(w io.Writer, columns []string, rows [][]string, maxWidth int) {
	st := newStyles(w)

	widths := make([]int, len(columns))
	for i, column := range columns {
		widths[i] = runewidth.StringWidth(column)
	}
	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(row))
		for j, value := range row {
			cells[i][j] = cell(value, maxWidth)
			widths[j] = max(widths[j], runewidth.StringWidth(cells[i][j]))
		}
	}

	header := make([]string, len(columns))
	for i, column := range columns {
		header[i] = st.header.Render(runewidth.FillRight(column, widths[i]))
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(header, "  "), " "))

	for _, row := range cells {
		line := make([]string, len(row))
		for j, value := range row {
			line[j] = runewidth.FillRight(value, widths[j])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(line, "  "), " "))
	}
}

func renderFooter(w io.Writer, shown, matched int) {
	st := newStyles(w)
	fmt.Fprintln(w, st.muted.Render(fmt.Sprintf("%d of %d matching records", shown, matched)))
}

func renderSummary(w io.Writer, summary query.Summary) {
	st := newStyles(w)
	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("Total: %d", summary.Total)))

	sections := []struct {
		name    string
		buckets []query.Bucket
	}{
		{"Status", summary.ByStatus},
		{"Priority", summary.ByPriority},
		{"Severity", summary.BySeverity},
	}
	for _, section := range sections {
		fmt.Fprintln(w)
		fmt.Fprintln(w, st.title.Render(section.name))
		renderBuckets(w, st, section.buckets, summary.Total)
	}
}

func renderBuckets(w io.Writer, st styles, buckets []query.Bucket, total int) {
	labelWidth := 0
	for _, b := range buckets {
		labelWidth = max(labelWidth, runewidth.StringWidth(b.Label))
	}
	for _, b := range buckets {
		bar := ""
		if total > 0 {
			bar = strings.Repeat("█", b.Count*barWidth/total)
		}
		fmt.Fprintf(w, "  %s %4d %s\n", runewidth.FillRight(b.Label, labelWidth), b.Count, st.bar.Render(bar))
	}
}

func renderFilterOptions(w io.Writer, options []query.FilterOption) {
	st := newStyles(w)
	for _, option := range options {
		fmt.Fprintf(w, "%s %s\n",
			st.title.Render(option.Field+":"),
			strings.Join(option.Values, ", "),
		)
	}
}
