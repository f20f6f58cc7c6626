package workflow

import "qmflow/internal/models"

// Action is the closed set of permission-gated operations.
type Action string

const (
	ActionMarkReviewed   Action = "change-status-to-reviewed"
	ActionApprove        Action = "change-status-to-approved"
	ActionReject         Action = "change-status-to-rejected"
	ActionProcessPage    Action = "process-page"
	ActionForceReprocess Action = "force-reprocess"
)

// Permission levels form a total order; each level can do everything the
// levels below it can.
const (
	LevelReader   = 0
	LevelEditor   = 1
	LevelReviewer = 2
	LevelApprover = 3
)

var minimumLevel = map[Action]int{
	ActionProcessPage:    LevelEditor,
	ActionForceReprocess: LevelReviewer,
	ActionMarkReviewed:   LevelReviewer,
	ActionReject:         LevelReviewer,
	ActionApprove:        LevelApprover,
}

// Gate decides whether a permission level may perform an action. Pure and
// total: unknown actions are denied at every level.
type Gate struct{}

func (Gate) Allows(level int, action Action) bool {
	min, ok := minimumLevel[action]
	return ok && level >= min
}

// ActionForTarget maps a transition target onto the action that guards it.
func ActionForTarget(to models.WorkflowStatus) (Action, bool) {
	switch to {
	case models.StatusReviewed:
		return ActionMarkReviewed, true
	case models.StatusApproved:
		return ActionApprove, true
	case models.StatusRejected:
		return ActionReject, true
	}
	return "", false
}
