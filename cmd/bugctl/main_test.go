package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reportCSV = `ScenarioID,Description,Status,Priority,Severity,Browser
SC-3,Login page crashes,open,high,blocker,Firefox
SC-1,Typo in footer,done,low,cosmetic,Chrome
SC-2,Checkout fails after login,failed,medium,critical,Firefox
`

func writeReport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(path, []byte(reportCSV), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func dataLines(output string) []string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	// header first, footer last
	return lines[1 : len(lines)-1]
}

func TestQuerySortsAndFilters(t *testing.T) {
	path := writeReport(t)

	out, err := execute(t, "query", "--file", path)
	require.NoError(t, err)
	rows := dataLines(out)
	require.Len(t, rows, 3)
	assert.True(t, strings.HasPrefix(rows[0], "SC-1"), rows[0])
	assert.True(t, strings.HasPrefix(rows[2], "SC-3"), rows[2])
	assert.Contains(t, out, "3 of 3 matching records")

	out, err = execute(t, "query", "--file", path, "--search", "LOGIN", "--sort", "Priority", "--order", "desc")
	require.NoError(t, err)
	rows = dataLines(out)
	require.Len(t, rows, 2)
	assert.True(t, strings.HasPrefix(rows[0], "SC-2"), rows[0])

	out, err = execute(t, "query", "--file", path, "--filter", "Status=Closed", "--filter", "Status=Open", "--columns", "ScenarioID,Browser")
	require.NoError(t, err)
	assert.Contains(t, out, "Browser")
	assert.Contains(t, out, "2 of 2 matching records")
}

func TestQueryRejectsMalformedFilter(t *testing.T) {
	_, err := execute(t, "query", "--file", writeReport(t), "--filter", "Status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Field=Value")
}

func TestQueryRequiresFile(t *testing.T) {
	_, err := execute(t, "query")
	require.Error(t, err)
}

func TestSummary(t *testing.T) {
	out, err := execute(t, "summary", "--file", writeReport(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 3")
	assert.Contains(t, out, "Priority")
	assert.Regexp(t, `Critical\s+2`, out)
}

func TestFilters(t *testing.T) {
	out, err := execute(t, "filters", "--file", writeReport(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Browser: Firefox, Chrome")
	assert.Contains(t, out, "Status: Open, Failed, Closed")
}

func TestExportToFile(t *testing.T) {
	path := writeReport(t)
	target := filepath.Join(t.TempDir(), "out.json")

	out, err := execute(t, "export", "--file", path, "--format", "json", "--output", target, "--filter", "Browser=Firefox")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 2 records")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Less(t, bytes.Index(data, []byte("SC-2")), bytes.Index(data, []byte("SC-3")))
}

func TestCheckImageRejectsMalformedURL(t *testing.T) {
	_, err := execute(t, "check-image", "not a url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid URL format")
}

func TestCellTruncatesWideText(t *testing.T) {
	assert.Equal(t, "a b", cell("a\n b", 10))
	got := cell("日本語のテキスト", 6)
	assert.LessOrEqual(t, len([]rune(got)), 4)
	assert.True(t, strings.HasSuffix(got, "…"))
}
