package models

import "testing"

func TestTransitionGraphEdges(t *testing.T) {
	allowed := map[[2]WorkflowStatus]bool{
		{StatusDraft, StatusReviewed}:    true,
		{StatusDraft, StatusRejected}:    true,
		{StatusReviewed, StatusApproved}: true,
		{StatusReviewed, StatusRejected}: true,
	}
	statuses := []WorkflowStatus{StatusDraft, StatusReviewed, StatusApproved, StatusRejected}
	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]WorkflowStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	if StatusDraft.Terminal() || StatusReviewed.Terminal() {
		t.Fatal("draft and reviewed must not be terminal")
	}
	if !StatusApproved.Terminal() || !StatusRejected.Terminal() {
		t.Fatal("approved and rejected must be terminal")
	}
}

func TestParseWorkflowStatus(t *testing.T) {
	if st, ok := ParseWorkflowStatus(" Reviewed "); !ok || st != StatusReviewed {
		t.Fatalf("parse reviewed: got %q ok=%v", st, ok)
	}
	if _, ok := ParseWorkflowStatus("archived"); ok {
		t.Fatal("archived must not parse")
	}
}

func TestNormalizeVersion(t *testing.T) {
	cases := map[string]string{
		"1.0":    "v1.0",
		"v1.0":   "v1.0",
		"V2":     "v2",
		" 3 ":    "v3",
		"":       "v1",
		"v1.2.3": "v1.2.3",
	}
	for in, want := range cases {
		if got := NormalizeVersion(in); got != want {
			t.Fatalf("NormalizeVersion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusFromHistory(t *testing.T) {
	if got := StatusFromHistory(nil); got != StatusDraft {
		t.Fatalf("empty history: got %s", got)
	}
	entries := []WorkflowStatusChange{
		{FromStatus: StatusDraft, ToStatus: StatusReviewed},
		{FromStatus: StatusReviewed, ToStatus: StatusApproved},
	}
	if got := StatusFromHistory(entries); got != StatusApproved {
		t.Fatalf("got %s, want approved", got)
	}
}

func TestAllPagesProcessed(t *testing.T) {
	ok := AIProcessingResult{Status: ResultSuccess}
	partial := AIProcessingResult{Status: ResultPartial}

	d := Document{Pages: []Page{{PageNumber: 1, Result: &ok}, {PageNumber: 2, Result: &partial}}}
	if d.AllPagesProcessed() {
		t.Fatal("partial page must not count as processed")
	}
	d.Pages[1].Result = &ok
	if !d.AllPagesProcessed() {
		t.Fatal("expected all pages processed")
	}
	if (Document{}).AllPagesProcessed() {
		t.Fatal("document without pages is never fully processed")
	}
}
