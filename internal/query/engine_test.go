package query

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/rpattn/bugboard/internal/domain"
	"github.com/rpattn/bugboard/internal/normalize"
)

func bug(fields map[string]string) domain.Bug {
	return domain.NewBug("device-test", fields)
}

func scenarioIDs(records []domain.Bug) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ScenarioID
	}
	return ids
}

func fixture() []domain.Bug {
	return []domain.Bug{
		bug(map[string]string{"ScenarioID": "SC-03", "Description": "Login page crashes", "Status": "open", "Priority": "high", "Severity": "blocker"}),
		bug(map[string]string{"ScenarioID": "SC-01", "Description": "Typo in footer", "Status": "done", "Priority": "low", "Severity": "cosmetic"}),
		bug(map[string]string{"ScenarioID": "SC-04", "Description": "Slow search", "Status": "in progress", "Priority": "Hi", "Severity": "major"}),
		bug(map[string]string{"ScenarioID": "SC-02", "Description": "Checkout fails", "Status": "failed", "Priority": "medium", "Severity": "critical", "Comments": "seen after LOGIN"}),
		bug(map[string]string{"ScenarioID": "SC-05", "Description": "Profile image", "Status": "passed"}),
	}
}

func TestSortByStatusUsesDeclaredOrder(t *testing.T) {
	records := []domain.Bug{
		bug(map[string]string{"Status": "open"}),
		bug(map[string]string{"Status": "resolved"}),
		bug(map[string]string{"Status": "in progress"}),
	}
	got := Visible(records, "", nil, "Status", domain.SortDirectionAsc)

	statuses := make([]string, len(got))
	for i, r := range got {
		statuses[i] = r.Status
	}
	want := []string{"open", "in progress", "resolved"}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Fatalf("status order mismatch (-want +got):\n%s", diff)
	}
}

func TestVisibleFiltersByPriority(t *testing.T) {
	got := Visible(fixture(), "", domain.FilterSet{"Priority": {"High"}}, "ScenarioID", domain.SortDirectionAsc)
	if diff := cmp.Diff([]string{"SC-03", "SC-04"}, scenarioIDs(got)); diff != "" {
		t.Fatalf("visible mismatch (-want +got):\n%s", diff)
	}
}

func TestVisibleSearchMatchesAnyField(t *testing.T) {
	got := Visible(fixture(), "login", domain.FilterSet{}, "ScenarioID", domain.SortDirectionAsc)
	if diff := cmp.Diff([]string{"SC-02", "SC-03"}, scenarioIDs(got)); diff != "" {
		t.Fatalf("visible mismatch (-want +got):\n%s", diff)
	}
}

func TestVisibleSearchTrimsAndLowercases(t *testing.T) {
	got := Visible(fixture(), "  SLOW  ", nil, "ScenarioID", domain.SortDirectionAsc)
	if diff := cmp.Diff([]string{"SC-04"}, scenarioIDs(got)); diff != "" {
		t.Fatalf("visible mismatch (-want +got):\n%s", diff)
	}
}

func TestVisibleEmptySearchReturnsAll(t *testing.T) {
	records := append(fixture(), domain.Bug{ID: uuid.New()})
	got := Visible(records, "   ", nil, "ScenarioID", domain.SortDirectionAsc)
	if len(got) != len(records) {
		t.Fatalf("expected %d records, got %d", len(records), len(got))
	}
}

func TestSearchIgnoresIdentityAndOwner(t *testing.T) {
	record := bug(map[string]string{"Description": "nothing to see"})
	if MatchesSearch(record, "device-test") {
		t.Fatalf("owner tag must not be searchable")
	}
	if MatchesSearch(record, record.ID.String()[:8]) {
		t.Fatalf("identifier must not be searchable")
	}
}

func TestSearchCoversStepsAndExtras(t *testing.T) {
	record := bug(map[string]string{"StepsToExecute": "open app\ntap Login", "Browser": "Firefox"})
	if !MatchesSearch(record, "tap login") {
		t.Fatalf("expected steps to be searchable")
	}
	if !MatchesSearch(record, "firefox") {
		t.Fatalf("expected extra fields to be searchable")
	}
}

func TestSearchSubstringLaw(t *testing.T) {
	records := fixture()
	for _, needle := range []string{"", "sc-0", "crash", "LOGIN", " typo ", "zzz", "i"} {
		got := Visible(records, needle, nil, "ScenarioID", domain.SortDirectionAsc)
		want := map[string]bool{}
		q := strings.ToLower(strings.TrimSpace(needle))
		for _, r := range records {
			for _, v := range r.Values() {
				if strings.Contains(strings.ToLower(v), q) {
					want[r.ScenarioID] = true
					break
				}
			}
		}
		if len(got) != len(want) {
			t.Fatalf("needle %q: expected %d matches, got %d", needle, len(want), len(got))
		}
		for _, r := range got {
			if !want[r.ScenarioID] {
				t.Fatalf("needle %q: unexpected match %s", needle, r.ScenarioID)
			}
		}
	}
}

func TestFilterNormalizesBothSides(t *testing.T) {
	got := Visible(fixture(), "", domain.FilterSet{"Status": {"CLOSED"}, "Severity": {"trivial"}}, "ScenarioID", domain.SortDirectionAsc)
	if diff := cmp.Diff([]string{"SC-01"}, scenarioIDs(got)); diff != "" {
		t.Fatalf("visible mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterOrWithinFieldAndAcrossFields(t *testing.T) {
	e := NewEngine(nil)
	records := fixture()

	byStatus := domain.FilterSet{"Status": {"Open", "Failed"}}
	bySeverity := domain.FilterSet{"Severity": {"Critical"}}
	both := domain.FilterSet{"Status": {"Open", "Failed"}, "Severity": {"Critical"}}

	statusSet := map[string]bool{}
	for _, r := range e.Filter(records, "", byStatus) {
		statusSet[r.ScenarioID] = true
	}
	var intersection []string
	for _, r := range e.Filter(records, "", bySeverity) {
		if statusSet[r.ScenarioID] {
			intersection = append(intersection, r.ScenarioID)
		}
	}

	got := scenarioIDs(e.Filter(records, "", both))
	if diff := cmp.Diff(intersection, got); diff != "" {
		t.Fatalf("AND semantics mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"SC-03", "SC-02"}, got); diff != "" {
		t.Fatalf("unexpected filter result (-want +got):\n%s", diff)
	}
}

func TestFilterEmptyListImposesNoConstraint(t *testing.T) {
	got := Visible(fixture(), "", domain.FilterSet{"Status": {}, "Priority": nil}, "ScenarioID", domain.SortDirectionAsc)
	if len(got) != len(fixture()) {
		t.Fatalf("expected all records, got %d", len(got))
	}
}

func TestFilterMissingFieldReadsEmpty(t *testing.T) {
	// SC-05 has no Priority; the empty value normalizes to "".
	got := Visible(fixture(), "", domain.FilterSet{"Priority": {""}}, "ScenarioID", domain.SortDirectionAsc)
	if diff := cmp.Diff([]string{"SC-05"}, scenarioIDs(got)); diff != "" {
		t.Fatalf("visible mismatch (-want +got):\n%s", diff)
	}
}

func TestSortDescendingNegates(t *testing.T) {
	got := Visible(fixture(), "", nil, "Priority", domain.SortDirectionDesc)
	priorities := make([]string, len(got))
	for i, r := range got {
		priorities[i] = normalize.Value("Priority", r.Priority)
	}
	want := []string{"", "Low", "Medium", "High", "High"}
	if diff := cmp.Diff(want, priorities); diff != "" {
		t.Fatalf("priority order mismatch (-want +got):\n%s", diff)
	}
}

func TestSortIsStable(t *testing.T) {
	var records []domain.Bug
	for i := 0; i < 50; i++ {
		status := []string{"open", "OPEN", "Reopened", "closed", "done"}[i%5]
		records = append(records, bug(map[string]string{"ScenarioID": fmt.Sprintf("SC-%02d", i), "Status": status}))
	}
	rand.New(rand.NewSource(7)).Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })

	for _, dir := range []domain.SortDirection{domain.SortDirectionAsc, domain.SortDirectionDesc} {
		got := Visible(records, "", nil, "Status", dir)
		position := map[string]int{}
		for i, r := range records {
			position[r.ScenarioID] = i
		}
		for i := 1; i < len(got); i++ {
			prev, cur := got[i-1], got[i]
			if normalize.Value("Status", prev.Status) == normalize.Value("Status", cur.Status) &&
				position[prev.ScenarioID] > position[cur.ScenarioID] {
				t.Fatalf("%s: equal keys %s and %s swapped", dir, prev.ScenarioID, cur.ScenarioID)
			}
		}
	}
}

func TestSortUnknownFieldKeepsOrder(t *testing.T) {
	records := fixture()
	got := Visible(records, "", nil, "NoSuchField", domain.SortDirectionAsc)
	if diff := cmp.Diff(scenarioIDs(records), scenarioIDs(got)); diff != "" {
		t.Fatalf("unknown sort field reordered records (-want +got):\n%s", diff)
	}
}

func TestVisibleDoesNotMutateInput(t *testing.T) {
	records := fixture()
	before := scenarioIDs(records)
	filters := domain.FilterSet{"Status": {"open", "failed"}}

	_ = Visible(records, "a", filters, "ScenarioID", domain.SortDirectionDesc)

	if diff := cmp.Diff(before, scenarioIDs(records)); diff != "" {
		t.Fatalf("input reordered (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"open", "failed"}, filters["Status"]); diff != "" {
		t.Fatalf("filters mutated (-want +got):\n%s", diff)
	}
}

func TestVisibleOnEmptyInput(t *testing.T) {
	got := Visible(nil, "x", nil, "Status", domain.SortDirectionAsc)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestEngineUsesCustomNormalizer(t *testing.T) {
	n, err := normalize.New(normalize.FieldRules{
		Field:   "Priority",
		Rules:   []normalize.Rule{{Label: "P0", Contains: []string{"p0"}}, {Label: "P1", Contains: []string{"p1"}}},
		Default: "P1",
		Order:   []string{"P0", "P1"},
	})
	if err != nil {
		t.Fatalf("normalize.New: %v", err)
	}
	e := NewEngine(n)
	records := []domain.Bug{
		bug(map[string]string{"ScenarioID": "a", "Priority": "p1"}),
		bug(map[string]string{"ScenarioID": "b", "Priority": "P0 now"}),
	}
	got := e.Visible(records, domain.BugQuery{Sort: domain.SortSpec{Field: "Priority"}})
	if diff := cmp.Diff([]string{"b", "a"}, scenarioIDs(got)); diff != "" {
		t.Fatalf("custom order mismatch (-want +got):\n%s", diff)
	}
}
