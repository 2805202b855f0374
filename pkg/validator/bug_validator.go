package validator

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/rpattn/bugboard/internal/domain"
	"github.com/rpattn/bugboard/internal/normalize"
)

// DefaultMaxLength caps the text of a single field.
const DefaultMaxLength = 10000

// FieldKind is the value shape a field accepts.
type FieldKind string

const (
	// KindText accepts strings, numbers, booleans and null.
	KindText FieldKind = "TEXT"
	// KindSteps additionally accepts an array of text values.
	KindSteps FieldKind = "STEPS"
)

// FieldDefinition constrains one field of a bug payload.
type FieldDefinition struct {
	Kind      FieldKind
	MaxLength int
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
}

// BugValidator checks create and patch payloads before they become records.
type BugValidator struct {
	definitions map[string]FieldDefinition
	extra       FieldDefinition
	normalizer  *normalize.Normalizer
}

// NewBugValidator creates a validator for the known bug fields. Enumerated
// values are checked against normalizer; nil selects the built-in rules.
func NewBugValidator(normalizer *normalize.Normalizer) *BugValidator {
	if normalizer == nil {
		normalizer = normalize.Default()
	}
	definitions := make(map[string]FieldDefinition, len(domain.KnownFields))
	for _, field := range domain.KnownFields {
		definitions[field] = FieldDefinition{Kind: KindText, MaxLength: DefaultMaxLength}
	}
	definitions[domain.FieldStepsToExecute] = FieldDefinition{Kind: KindSteps, MaxLength: DefaultMaxLength}

	return &BugValidator{
		definitions: definitions,
		extra:       FieldDefinition{Kind: KindText, MaxLength: DefaultMaxLength},
		normalizer:  normalizer,
	}
}

var metadataKeys = []string{domain.KeyID, domain.KeyOwnerID, domain.KeyCreatedAt, domain.KeyUpdatedAt, "__v"}

// ValidatePayload checks a decoded JSON object. Errors make the payload
// unusable; warnings flag values that will be ignored or fall back to a
// default label.
func (v *BugValidator) ValidatePayload(payload map[string]any) ValidationResult {
	result := ValidationResult{
		IsValid:  true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	for _, name := range sortedKeys(payload) {
		value := payload[name]

		if slices.Contains(metadataKeys, name) {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("metadata field '%s' is ignored", name),
			})
			continue
		}

		def, known := v.definitions[name]
		if !known {
			def = v.extra
		}

		if err := validateKind(name, value, def.Kind); err != nil {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{Field: name, Message: err.Error(), Value: value})
			continue
		}

		text := domain.FieldValue(name, value)
		if def.MaxLength > 0 && utf8.RuneCountInString(text) > def.MaxLength {
			result.IsValid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("field '%s' exceeds %d characters", name, def.MaxLength),
			})
			continue
		}

		if warning, ok := v.checkEnumerated(name, text); ok {
			result.Warnings = append(result.Warnings, warning)
		}
	}

	return result
}

// checkEnumerated warns when a non-empty value matches none of the field's
// rules and will read as the default label.
func (v *BugValidator) checkEnumerated(field, text string) (ValidationError, bool) {
	table, ok := v.normalizer.Rules(field)
	if !ok || strings.TrimSpace(text) == "" {
		return ValidationError{}, false
	}
	prepared := strings.TrimSpace(strings.ToLower(text))
	for _, rule := range table.Rules {
		if rule.Matches(prepared) {
			return ValidationError{}, false
		}
	}
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value '%s' is not recognized and will be shown as '%s'", text, table.Default),
		Value:   text,
	}, true
}

func validateKind(name string, value any, kind FieldKind) error {
	if isScalar(value) {
		return nil
	}
	if kind == KindSteps {
		if items, ok := value.([]any); ok {
			for _, item := range items {
				if !isScalar(item) {
					return fmt.Errorf("field '%s' steps must be text values, got %T", name, item)
				}
			}
			return nil
		}
		return fmt.Errorf("field '%s' must be text or an array of steps, got %T", name, value)
	}
	return fmt.Errorf("field '%s' must be a text value, got %T", name, value)
}

func isScalar(value any) bool {
	switch value.(type) {
	case nil, string, bool, float64, json.Number:
		return true
	default:
		return false
	}
}

func sortedKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
