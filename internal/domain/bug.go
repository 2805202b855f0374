package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Canonical bug field names.
const (
	FieldScenarioID      = "ScenarioID"
	FieldCategory        = "Category"
	FieldDescription     = "Description"
	FieldStatus          = "Status"
	FieldPriority        = "Priority"
	FieldSeverity        = "Severity"
	FieldPreCondition    = "PreCondition"
	FieldStepsToExecute  = "StepsToExecute"
	FieldExpectedResult  = "ExpectedResult"
	FieldActualResult    = "ActualResult"
	FieldComments        = "Comments"
	FieldSuggestionToFix = "SuggestionToFix"
)

// Metadata keys used on the wire. They never take part in search or filtering.
const (
	KeyID        = "_id"
	KeyOwnerID   = "deviceId"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
)

// KnownFields lists the domain fields in display order.
var KnownFields = []string{
	FieldScenarioID,
	FieldCategory,
	FieldDescription,
	FieldStatus,
	FieldPriority,
	FieldSeverity,
	FieldPreCondition,
	FieldStepsToExecute,
	FieldExpectedResult,
	FieldActualResult,
	FieldComments,
	FieldSuggestionToFix,
}

// Bug is a bug record: a known set of optional fields plus a catch-all for
// anything else an upload carried.
type Bug struct {
	ID              uuid.UUID
	OwnerID         string
	ScenarioID      string
	Category        string
	Description     string
	Status          string
	Priority        string
	Severity        string
	PreCondition    string
	StepsToExecute  []string
	ExpectedResult  string
	ActualResult    string
	Comments        string
	SuggestionToFix string
	Extra           map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewBug creates a bug for the owner with a fresh identifier.
func NewBug(ownerID string, fields map[string]string) Bug {
	now := time.Now().UTC()
	b := Bug{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for name, value := range fields {
		b = b.setField(name, value)
	}
	return b
}

// Get returns the stringified value of a field. Missing fields read as "".
func (b Bug) Get(field string) string {
	switch field {
	case FieldScenarioID:
		return b.ScenarioID
	case FieldCategory:
		return b.Category
	case FieldDescription:
		return b.Description
	case FieldStatus:
		return b.Status
	case FieldPriority:
		return b.Priority
	case FieldSeverity:
		return b.Severity
	case FieldPreCondition:
		return b.PreCondition
	case FieldStepsToExecute:
		return strings.Join(b.StepsToExecute, ",")
	case FieldExpectedResult:
		return b.ExpectedResult
	case FieldActualResult:
		return b.ActualResult
	case FieldComments:
		return b.Comments
	case FieldSuggestionToFix:
		return b.SuggestionToFix
	default:
		return b.Extra[field]
	}
}

// Values returns every domain field value, known fields first, then extras
// in key order. Identity and owner metadata are not included.
func (b Bug) Values() []string {
	values := make([]string, 0, len(KnownFields)+len(b.Extra))
	for _, field := range KnownFields {
		values = append(values, b.Get(field))
	}
	for _, key := range sortedKeys(b.Extra) {
		values = append(values, b.Extra[key])
	}
	return values
}

// Fields returns the non-empty domain fields as a flat map.
func (b Bug) Fields() map[string]string {
	out := make(map[string]string, len(KnownFields)+len(b.Extra))
	for key, value := range b.Extra {
		if value != "" {
			out[key] = value
		}
	}
	for _, field := range KnownFields {
		if value := b.Get(field); value != "" {
			out[field] = value
		}
	}
	return out
}

// FieldNames returns the domain field names present on the bug, known fields
// in display order followed by extras in key order.
func (b Bug) FieldNames() []string {
	names := make([]string, 0, len(KnownFields)+len(b.Extra))
	for _, field := range KnownFields {
		if b.Get(field) != "" {
			names = append(names, field)
		}
	}
	for _, key := range sortedKeys(b.Extra) {
		if b.Extra[key] != "" {
			names = append(names, key)
		}
	}
	return names
}

// HasContent reports whether at least one known field is non-blank.
func (b Bug) HasContent() bool {
	for _, field := range KnownFields {
		if strings.TrimSpace(b.Get(field)) != "" {
			return true
		}
	}
	return false
}

// WithField returns a copy of the bug with the field set.
func (b Bug) WithField(name, value string) Bug {
	next := b.clone().setField(name, value)
	next.UpdatedAt = time.Now().UTC()
	return next
}

// WithFields returns a copy of the bug with every field in patch applied.
func (b Bug) WithFields(patch map[string]string) Bug {
	next := b.clone()
	for name, value := range patch {
		next = next.setField(name, value)
	}
	next.UpdatedAt = time.Now().UTC()
	return next
}

// WithOwner returns a copy of the bug stamped with the owner.
func (b Bug) WithOwner(ownerID string) Bug {
	next := b.clone()
	next.OwnerID = ownerID
	return next
}

func (b Bug) clone() Bug {
	next := b
	next.StepsToExecute = append([]string(nil), b.StepsToExecute...)
	next.Extra = maps.Clone(b.Extra)
	return next
}

// setField mutates the receiver copy; callers must clone first.
func (b Bug) setField(name, value string) Bug {
	switch name {
	case FieldScenarioID:
		b.ScenarioID = value
	case FieldCategory:
		b.Category = value
	case FieldDescription:
		b.Description = value
	case FieldStatus:
		b.Status = value
	case FieldPriority:
		b.Priority = value
	case FieldSeverity:
		b.Severity = value
	case FieldPreCondition:
		b.PreCondition = value
	case FieldStepsToExecute:
		b.StepsToExecute = SplitSteps(value)
	case FieldExpectedResult:
		b.ExpectedResult = value
	case FieldActualResult:
		b.ActualResult = value
	case FieldComments:
		b.Comments = value
	case FieldSuggestionToFix:
		b.SuggestionToFix = value
	case KeyID, KeyOwnerID, KeyCreatedAt, KeyUpdatedAt, "__v":
		// metadata is never written through field patches
	default:
		if b.Extra == nil {
			b.Extra = make(map[string]string)
		}
		b.Extra[name] = value
	}
	return b
}

// SplitSteps turns a steps cell into its ordered items. Newlines separate
// steps; a single line stays a single step.
func SplitSteps(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n")
	steps := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			steps = append(steps, line)
		}
	}
	return steps
}

// Document returns the domain fields as a JSON-ready object. Steps stay an
// array; metadata is left out.
func (b Bug) Document() map[string]any {
	out := make(map[string]any, len(KnownFields)+len(b.Extra)+4)
	for key, value := range b.Extra {
		out[key] = value
	}
	for _, field := range KnownFields {
		if field == FieldStepsToExecute {
			steps := b.StepsToExecute
			if steps == nil {
				steps = []string{}
			}
			out[field] = steps
			continue
		}
		out[field] = b.Get(field)
	}
	return out
}

// MarshalJSON renders the flat wire shape used by the dashboard API.
func (b Bug) MarshalJSON() ([]byte, error) {
	out := b.Document()
	if b.ID != uuid.Nil {
		out[KeyID] = b.ID.String()
	}
	if b.OwnerID != "" {
		out[KeyOwnerID] = b.OwnerID
	}
	if !b.CreatedAt.IsZero() {
		out[KeyCreatedAt] = b.CreatedAt.Format(time.RFC3339)
	}
	if !b.UpdatedAt.IsZero() {
		out[KeyUpdatedAt] = b.UpdatedAt.Format(time.RFC3339)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the flat wire shape. StepsToExecute may be a string or
// an array of strings; other non-string values are stringified.
func (b *Bug) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var next Bug
	for key, value := range raw {
		switch key {
		case KeyID:
			s := Stringify(value)
			if s == "" {
				continue
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", KeyID, err)
			}
			next.ID = id
		case KeyOwnerID:
			next.OwnerID = Stringify(value)
		case KeyCreatedAt:
			next.CreatedAt = parseTime(value)
		case KeyUpdatedAt:
			next.UpdatedAt = parseTime(value)
		case "__v":
		case FieldStepsToExecute:
			if items, ok := value.([]any); ok {
				steps := make([]string, 0, len(items))
				for _, item := range items {
					steps = append(steps, Stringify(item))
				}
				next.StepsToExecute = steps
				continue
			}
			next = next.setField(key, Stringify(value))
		default:
			next = next.setField(key, Stringify(value))
		}
	}
	*b = next
	return nil
}

// FieldValue converts a decoded JSON value for field into the string form
// accepted by WithFields. A steps array becomes one step per line.
func FieldValue(field string, value any) string {
	if items, ok := value.([]any); ok && field == FieldStepsToExecute {
		steps := make([]string, len(items))
		for i, item := range items {
			steps[i] = Stringify(item)
		}
		return strings.Join(steps, "\n")
	}
	return Stringify(value)
}

// Stringify renders a decoded JSON value the way the dashboard displays it.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = Stringify(item)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	default:
		return fmt.Sprint(v)
	}
}

func parseTime(value any) time.Time {
	s, ok := value.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(m))
}
