package board

import (
	"testing"

	"qmflow/internal/models"

	"github.com/stretchr/testify/require"
)

func TestColumnizeBucketsAndSorts(t *testing.T) {
	docs := []models.Document{
		{DocumentID: "d3", OriginalFilename: "zeta.pdf", WorkflowStatus: models.StatusDraft},
		{DocumentID: "d1", OriginalFilename: "alpha.pdf", WorkflowStatus: models.StatusDraft},
		{DocumentID: "d2", OriginalFilename: "beta.pdf", WorkflowStatus: models.StatusApproved},
	}
	cols := columnize(docs)
	require.Len(t, cols, 4)
	require.Len(t, cols[0], 2)
	require.Equal(t, "alpha.pdf", cols[0][0].Filename)
	require.Equal(t, "zeta.pdf", cols[0][1].Filename)
	require.Len(t, cols[2], 1)
	require.Equal(t, "d2", cols[2][0].DocumentID)
	require.Empty(t, cols[1])
	require.Empty(t, cols[3])
}

func TestMoveTargetKeys(t *testing.T) {
	for key, want := range map[string]models.WorkflowStatus{
		"R": models.StatusReviewed,
		"A": models.StatusApproved,
		"X": models.StatusRejected,
	} {
		got, ok := moveTarget(key)
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok := moveTarget("z")
	require.False(t, ok)
}

func TestMoveRespectsLifecycleGraph(t *testing.T) {
	b := NewBoard(nil)
	b.columns = columnize([]models.Document{
		{DocumentID: "d1", OriginalFilename: "sop.pdf", WorkflowStatus: models.StatusDraft},
	})
	b.col, b.row = 0, 0

	c, ok := b.selectedCard()
	require.True(t, ok)
	require.False(t, models.CanTransition(c.Status, models.StatusApproved))
	require.True(t, models.CanTransition(c.Status, models.StatusReviewed))
}
