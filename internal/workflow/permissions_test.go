package workflow

import "testing"

func TestGateMinimumLevels(t *testing.T) {
	var g Gate
	cases := []struct {
		level  int
		action Action
		want   bool
	}{
		{LevelReader, ActionProcessPage, false},
		{LevelEditor, ActionProcessPage, true},
		{LevelEditor, ActionMarkReviewed, false},
		{LevelReviewer, ActionMarkReviewed, true},
		{LevelReviewer, ActionReject, true},
		{LevelReviewer, ActionApprove, false},
		{LevelApprover, ActionApprove, true},
		{LevelApprover, Action("delete-document"), false},
	}
	for _, c := range cases {
		if got := g.Allows(c.level, c.action); got != c.want {
			t.Fatalf("allows(%d, %s) = %v, want %v", c.level, c.action, got, c.want)
		}
	}
}

// Higher levels must always be supersets of lower levels.
func TestGateMonotonicity(t *testing.T) {
	var g Gate
	actions := []Action{ActionMarkReviewed, ActionApprove, ActionReject, ActionProcessPage, ActionForceReprocess}
	for _, a := range actions {
		for level := 0; level <= 5; level++ {
			if !g.Allows(level, a) {
				continue
			}
			for higher := level + 1; higher <= 6; higher++ {
				if !g.Allows(higher, a) {
					t.Fatalf("level %d allows %s but level %d does not", level, a, higher)
				}
			}
		}
	}
}
