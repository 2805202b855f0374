package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rpattn/bugboard/internal/domain"
	"github.com/rpattn/bugboard/internal/query"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Format selects the export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DefaultSheetName names the worksheet written by xlsx exports.
const DefaultSheetName = "Bugs"

var (
	// ErrNothingToExport is returned for an empty record set.
	ErrNothingToExport = errors.New("no bugs found to export")

	// ErrUnsupportedFormat is returned for unknown format names.
	ErrUnsupportedFormat = errors.New("unsupported export format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// ParseFormat maps a format name to a Format. An empty name selects JSON.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// FileName is the download name for the format.
func (f Format) FileName() string {
	return "bug_report." + string(f)
}

// ContentType is the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Column is one exported key/value pair.
type Column struct {
	Key   string
	Value string
}

// Record is a cleaned bug: metadata removed, values flattened, keys in
// display order.
type Record []Column

// MarshalJSON writes the record as an object with keys in record order.
func (r Record) MarshalJSON() ([]byte, error) {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, col := range r {
		if i > 0 {
			sb.WriteByte(',')
		}
		key, err := json.Marshal(col.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(col.Value)
		if err != nil {
			return nil, err
		}
		sb.Write(key)
		sb.WriteByte(':')
		sb.Write(value)
	}
	sb.WriteByte('}')
	return []byte(sb.String()), nil
}

// Get returns the value stored under key.
func (r Record) Get(key string) string {
	for _, col := range r {
		if col.Key == key {
			return col.Value
		}
	}
	return ""
}

// Service renders bug collections as downloadable reports.
type Service struct {
	engine    *query.Engine
	sheetName string
	logger    *zap.Logger
}

// Option configures optional service behaviour.
type Option func(*Service)

// WithEngine sets the engine used to order records.
func WithEngine(engine *query.Engine) Option {
	return func(s *Service) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithSheetName overrides the xlsx worksheet name.
func WithSheetName(name string) Option {
	return func(s *Service) {
		if strings.TrimSpace(name) != "" {
			s.sheetName = name
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates an export service.
func NewService(opts ...Option) *Service {
	service := &Service{
		engine:    query.NewEngine(nil),
		sheetName: DefaultSheetName,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Prepare orders bugs by ScenarioID and cleans each one for export.
func (s *Service) Prepare(bugs []domain.Bug) ([]Record, error) {
	if len(bugs) == 0 {
		return nil, ErrNothingToExport
	}
	sorted := s.engine.Sort(bugs, domain.SortSpec{Field: domain.FieldScenarioID, Direction: domain.SortDirectionAsc})
	records := make([]Record, len(sorted))
	for i, bug := range sorted {
		records[i] = Clean(bug)
	}
	return records, nil
}

// Clean drops identity, owner and timestamps and flattens steps into a JSON
// array string. Known fields come first in display order, extras after in
// key order.
func Clean(bug domain.Bug) Record {
	names := append([]string(nil), domain.KnownFields...)
	for _, name := range bug.FieldNames() {
		if !slices.Contains(domain.KnownFields, name) {
			names = append(names, name)
		}
	}

	record := make(Record, 0, len(names))
	for _, name := range names {
		value := bug.Get(name)
		if name == domain.FieldStepsToExecute {
			value = ""
			if len(bug.StepsToExecute) > 0 {
				encoded, err := json.Marshal(bug.StepsToExecute)
				if err == nil {
					value = string(encoded)
				}
			}
		}
		record = append(record, Column{Key: name, Value: value})
	}
	return record
}

// Write renders bugs in the requested format.
func (s *Service) Write(w io.Writer, format Format, bugs []domain.Bug) error {
	records, err := s.Prepare(bugs)
	if err != nil {
		return err
	}

	switch format {
	case FormatJSON:
		err = writeJSON(w, records)
	case FormatCSV:
		err = writeCSV(w, records)
	case FormatXLSX:
		err = s.writeXLSX(w, records)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return err
	}
	s.logger.Debug("export written", zap.String("format", string(format)), zap.Int("records", len(records)))
	return nil
}

func writeJSON(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// writeCSV emits a UTF-8 BOM and quotes every field.
func writeCSV(w io.Writer, records []Record) error {
	buffered := bufio.NewWriter(w)
	if _, err := buffered.Write(byteOrderMark); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	headers := headerUnion(records)
	pretty := make([]string, len(headers))
	for i, h := range headers {
		pretty[i] = capitalize(h)
	}
	if err := writeQuotedRow(buffered, pretty); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(headers))
	for _, record := range records {
		for i, h := range headers {
			row[i] = record.Get(h)
		}
		if err := writeQuotedRow(buffered, row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func writeQuotedRow(w *bufio.Writer, fields []string) error {
	for i, field := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(field, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}

func (s *Service) writeXLSX(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, s.sheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	headers := headerUnion(records)
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = capitalize(h)
	}
	if err := f.SetSheetRow(s.sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for r, record := range records {
		row := make([]any, len(headers))
		for i, h := range headers {
			row[i] = record.Get(h)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("resolve cell: %w", err)
		}
		if err := f.SetSheetRow(s.sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// headerUnion returns every key across records in first-seen order.
func headerUnion(records []Record) []string {
	seen := make(map[string]struct{})
	var headers []string
	for _, record := range records {
		for _, col := range record {
			if _, ok := seen[col.Key]; ok {
				continue
			}
			seen[col.Key] = struct{}{}
			headers = append(headers, col.Key)
		}
	}
	return headers
}

// capitalize upper-cases the first letter of a header.
func capitalize(key string) string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return key
	}
	return string(unicode.ToUpper(r)) + key[size:]
}
