package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestBugUnmarshalAcceptsWireShape(t *testing.T) {
	id := uuid.New()
	payload := `{
		"_id": "` + id.String() + `",
		"deviceId": "device-abc",
		"ScenarioID": "SC-1",
		"Status": "open",
		"StepsToExecute": ["open app", "tap login"],
		"Browser": "Firefox",
		"Attempts": 3,
		"__v": 0
	}`

	var b Bug
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.ID != id || b.OwnerID != "device-abc" {
		t.Fatalf("unexpected identity: %v %q", b.ID, b.OwnerID)
	}
	if diff := cmp.Diff([]string{"open app", "tap login"}, b.StepsToExecute); diff != "" {
		t.Fatalf("steps mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]string{"Browser": "Firefox", "Attempts": "3"}, b.Extra); diff != "" {
		t.Fatalf("extra mismatch (-want +got):\n%s", diff)
	}
	if got := b.Get(FieldStepsToExecute); got != "open app,tap login" {
		t.Fatalf("unexpected stringified steps %q", got)
	}
}

func TestBugUnmarshalStepsAsString(t *testing.T) {
	var b Bug
	if err := json.Unmarshal([]byte(`{"StepsToExecute": "one\n two \n\nthree"}`), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff([]string{"one", "two", "three"}, b.StepsToExecute); diff != "" {
		t.Fatalf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestBugUnmarshalRejectsBadID(t *testing.T) {
	var b Bug
	if err := json.Unmarshal([]byte(`{"_id": "not-a-uuid"}`), &b); err == nil {
		t.Fatalf("expected error for malformed id")
	}
}

func TestBugMarshalIncludesMetadata(t *testing.T) {
	b := NewBug("device-1", map[string]string{"ScenarioID": "SC-9", "Browser": "Edge"})
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded[KeyID] != b.ID.String() || decoded[KeyOwnerID] != "device-1" {
		t.Fatalf("metadata missing: %v", decoded)
	}
	if decoded["Browser"] != "Edge" || decoded["ScenarioID"] != "SC-9" {
		t.Fatalf("fields missing: %v", decoded)
	}
	if steps, ok := decoded[FieldStepsToExecute].([]any); !ok || len(steps) != 0 {
		t.Fatalf("expected empty steps array, got %#v", decoded[FieldStepsToExecute])
	}
}

func TestWithFieldsCopies(t *testing.T) {
	original := NewBug("device-1", map[string]string{"Status": "open", "Browser": "Edge"})
	updated := original.WithFields(map[string]string{"Status": "closed", "Browser": "Chrome", KeyOwnerID: "intruder"})

	if original.Status != "open" || original.Extra["Browser"] != "Edge" {
		t.Fatalf("original mutated: %+v", original)
	}
	if updated.Status != "closed" || updated.Extra["Browser"] != "Chrome" {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if updated.OwnerID != "device-1" || updated.ID != original.ID {
		t.Fatalf("metadata must not change through field patches: %+v", updated)
	}
}

func TestHasContent(t *testing.T) {
	if (Bug{Extra: map[string]string{"Browser": "x"}}).HasContent() {
		t.Fatalf("extras alone are not content")
	}
	if (Bug{Comments: "   "}).HasContent() {
		t.Fatalf("blank fields are not content")
	}
	if !(Bug{Comments: "x"}).HasContent() {
		t.Fatalf("expected content")
	}
}

func TestFieldNamesOrder(t *testing.T) {
	b := NewBug("", map[string]string{"zeta": "1", "Status": "open", "alpha": "2", "ScenarioID": "SC"})
	want := []string{"ScenarioID", "Status", "alpha", "zeta"}
	if diff := cmp.Diff(want, b.FieldNames()); diff != "" {
		t.Fatalf("field names mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSortDirection(t *testing.T) {
	tests := map[string]SortDirection{
		"":            SortDirectionAsc,
		"asc":         SortDirectionAsc,
		"DESC":        SortDirectionDesc,
		" descending": SortDirectionDesc,
		"sideways":    SortDirectionAsc,
	}
	for input, want := range tests {
		if got := ParseSortDirection(input); got != want {
			t.Errorf("ParseSortDirection(%q) = %q, want %q", input, got, want)
		}
	}
}
