package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rpattn/bugboard/internal/domain"
	"github.com/rpattn/bugboard/pkg/validator"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrNoRecords is returned when a file parses but holds no records.
	ErrNoRecords = errors.New("file contains no records")

	// ErrInvalidRecords is returned when at least one record carries no known field.
	ErrInvalidRecords = errors.New("file contains invalid records")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// headerAliases maps folded header keys to canonical field names.
var headerAliases = func() map[string]string {
	aliases := map[string]string{
		"testcaseid": domain.FieldCategory,
	}
	for _, field := range domain.KnownFields {
		aliases[foldHeader(field)] = field
	}
	return aliases
}()

// Row is one parsed record with its position in the source file.
type Row struct {
	Number int
	Fields map[string]string
}

// RowError describes why a row was rejected.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ValidationError lists every rejected row of an upload.
type ValidationError struct {
	Rows []RowError
}

func (e *ValidationError) Error() string {
	if len(e.Rows) == 1 {
		return fmt.Sprintf("%s: row %d: %s", ErrInvalidRecords, e.Rows[0].Row, e.Rows[0].Message)
	}
	return fmt.Sprintf("%s: %d rows rejected", ErrInvalidRecords, len(e.Rows))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRecords }

// CanonicalHeader maps a raw column name to its canonical field name.
// Matching ignores surrounding whitespace, case, accents, spaces, underscores
// and hyphens. Unknown headers come back trimmed but otherwise verbatim.
func CanonicalHeader(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if field, ok := headerAliases[foldHeader(trimmed)]; ok {
		return field
	}
	return trimmed
}

func foldHeader(value string) string {
	// casers and transform chains are stateful, so build them per call
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripAccents, cases.Fold().String(value))
	if err != nil {
		folded = strings.ToLower(value)
	}
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '_' || r == '-' || r == '.' {
			return -1
		}
		return r
	}, folded)
}

// ParseFile decodes the payload according to the file extension and returns
// its rows with canonical field names. No validation is applied.
func ParseFile(fileName string, payload []byte) ([]Row, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".json":
		return parseJSON(payload)
	case ".csv":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// ParseBugs parses the payload and builds one unowned bug per row. It fails
// with ErrNoRecords for an empty file and a *ValidationError when any row
// carries no known field or a value the bug validator rejects.
func ParseBugs(fileName string, payload []byte) ([]domain.Bug, error) {
	rows, err := ParseFile(fileName, payload)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRecords
	}

	checker := validator.NewBugValidator(nil)
	bugs := make([]domain.Bug, 0, len(rows))
	var invalid []RowError
	for _, row := range rows {
		payload := make(map[string]any, len(row.Fields))
		for name, value := range row.Fields {
			payload[name] = value
		}
		if result := checker.ValidatePayload(payload); !result.IsValid {
			for _, fieldErr := range result.Errors {
				invalid = append(invalid, RowError{Row: row.Number, Message: fieldErr.Message})
			}
			continue
		}

		bug := domain.NewBug("", row.Fields)
		if !bug.HasContent() {
			invalid = append(invalid, RowError{Row: row.Number, Message: "record has no known bug fields"})
			continue
		}
		bugs = append(bugs, bug)
	}
	if len(invalid) > 0 {
		return nil, &ValidationError{Rows: invalid}
	}
	return bugs, nil
}

func parseJSON(payload []byte) ([]Row, error) {
	payload = bytes.TrimPrefix(payload, byteOrderMark)
	var items []map[string]any
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("failed to read json: %w", err)
	}

	rows := make([]Row, 0, len(items))
	for i, item := range items {
		fields := make(map[string]string, len(item))
		for key, value := range item {
			name := CanonicalHeader(key)
			if name == "" {
				continue
			}
			fields[name] = jsonCell(name, value)
		}
		rows = append(rows, Row{Number: i + 1, Fields: fields})
	}
	return rows, nil
}

func jsonCell(field string, value any) string {
	if items, ok := value.([]any); ok && field == domain.FieldStepsToExecute {
		trimmed := make([]any, len(items))
		for i, item := range items {
			trimmed[i] = strings.TrimSpace(domain.Stringify(item))
		}
		value = trimmed
	}
	return strings.TrimSpace(domain.FieldValue(field, value))
}

func parseCSV(payload []byte) ([]Row, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return tableRows(records)
}

func parseExcel(payload []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return tableRows(records)
}

// tableRows treats the first non-empty record as the header. Blank records
// are skipped; row numbers are 1-based positions in the source table.
func tableRows(records [][]string) ([]Row, error) {
	headerIndex := -1
	for idx, record := range records {
		if !isBlank(record) {
			headerIndex = idx
			break
		}
	}
	if headerIndex < 0 {
		return nil, nil
	}

	headers := make([]string, len(records[headerIndex]))
	for i, raw := range records[headerIndex] {
		headers[i] = CanonicalHeader(raw)
	}

	var rows []Row
	for idx := headerIndex + 1; idx < len(records); idx++ {
		record := records[idx]
		if isBlank(record) {
			continue
		}
		record = padRow(record, len(headers))
		fields := make(map[string]string, len(headers))
		for col, name := range headers {
			if name == "" {
				continue
			}
			fields[name] = strings.TrimSpace(record[col])
		}
		rows = append(rows, Row{Number: idx + 1, Fields: fields})
	}
	return rows, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
