package validator

import (
	"strings"
	"testing"

	"github.com/rpattn/bugboard/internal/domain"
)

func TestValidatePayloadAcceptsScalarsAndSteps(t *testing.T) {
	v := NewBugValidator(nil)

	result := v.ValidatePayload(map[string]any{
		"ScenarioID":     "SC-1",
		"Status":         "open",
		"StepsToExecute": []any{"open app", 2.0},
		"Attempts":       3.0,
		"Flaky":          true,
	})
	if !result.IsValid {
		t.Fatalf("expected payload to be valid, got errors: %+v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %+v", result.Warnings)
	}
}

func TestValidatePayloadRejectsNestedValues(t *testing.T) {
	v := NewBugValidator(nil)

	result := v.ValidatePayload(map[string]any{
		"Description":    map[string]any{"text": "x"},
		"StepsToExecute": []any{[]any{"nested"}},
		"Browser":        []any{"Edge"},
	})
	if result.IsValid {
		t.Fatalf("expected nested values to be rejected")
	}
	if len(result.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %+v", result.Errors)
	}
	// keys are reported in sorted order
	if result.Errors[0].Field != "Browser" || result.Errors[2].Field != domain.FieldStepsToExecute {
		t.Fatalf("unexpected error order: %+v", result.Errors)
	}
}

func TestValidatePayloadLength(t *testing.T) {
	v := NewBugValidator(nil)

	result := v.ValidatePayload(map[string]any{"Comments": strings.Repeat("é", DefaultMaxLength+1)})
	if result.IsValid {
		t.Fatalf("expected oversized field to be rejected")
	}

	result = v.ValidatePayload(map[string]any{"Comments": strings.Repeat("é", DefaultMaxLength)})
	if !result.IsValid {
		t.Fatalf("expected field at the limit to be accepted, got %+v", result.Errors)
	}
}

func TestValidatePayloadWarnings(t *testing.T) {
	v := NewBugValidator(nil)

	result := v.ValidatePayload(map[string]any{
		domain.KeyOwnerID: "someone",
		"Priority":        "whenever",
		"Severity":        "",
	})
	if !result.IsValid {
		t.Fatalf("warnings must not invalidate the payload: %+v", result.Errors)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %+v", result.Warnings)
	}
	if result.Warnings[0].Field != "Priority" || !strings.Contains(result.Warnings[0].Message, "'Medium'") {
		t.Fatalf("unexpected default warning: %+v", result.Warnings[0])
	}
	if result.Warnings[1].Field != domain.KeyOwnerID {
		t.Fatalf("unexpected metadata warning: %+v", result.Warnings[1])
	}
}
