package model

import (
	"encoding/json"
	"testing"
)

func TestStatusCyclesThroughAllStates(t *testing.T) {
	status := StatusNotStarted
	want := []Status{StatusPending, StatusCompleted, StatusNotStarted}
	for i, expected := range want {
		status = status.Next()
		if status != expected {
			t.Fatalf("toggle %d: expected %q, got %q", i+1, expected, status)
		}
	}

	if got := Status("archived").Next(); got != StatusNotStarted {
		t.Fatalf("expected unknown status to restart at %q, got %q", StatusNotStarted, got)
	}
}

func TestDateLabel(t *testing.T) {
	cases := []struct {
		task Task
		want string
	}{
		{Task{Frequency: FrequencyDaily, Date: "2026-03-07"}, "Mar 7"},
		{Task{Frequency: FrequencyWeekly, Date: "2026-03-07"}, "Weekly Task"},
		{Task{Frequency: FrequencyMonthly}, "Monthly Task"},
		{Task{Frequency: FrequencyDaily, Date: "soon"}, "soon"},
	}
	for _, tc := range cases {
		if got := tc.task.DateLabel(); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestPatchSerializesOnlyChangedFields(t *testing.T) {
	notes := ""
	status := StatusCompleted
	payload, err := json.Marshal(Patch{Notes: &notes, Status: &status})
	if err != nil {
		t.Fatalf("marshal patch: %v", err)
	}
	if string(payload) != `{"notes":"","status":"completed"}` {
		t.Fatalf("unexpected payload %s", payload)
	}
}

func TestCriteriaClearKeepsSearch(t *testing.T) {
	c := Criteria{Status: StatusPending, Frequency: FrequencyWeekly, Group: "Home", Date: "2026-01-01", Query: "milk"}
	c.Clear()
	if c.Status != "" || c.Frequency != "" || c.Group != "" || c.Date != "" {
		t.Fatalf("expected field filters to be cleared, got %+v", c)
	}
	if c.Query != "milk" {
		t.Fatalf("expected search to survive clear, got %q", c.Query)
	}
}
