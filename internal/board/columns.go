package board

import (
	"sort"

	"qmflow/internal/models"
)

// columnOrder fixes the left-to-right layout of the board.
var columnOrder = []models.WorkflowStatus{
	models.StatusDraft,
	models.StatusReviewed,
	models.StatusApproved,
	models.StatusRejected,
}

type card struct {
	DocumentID string
	Filename   string
	Version    string
	Status     models.WorkflowStatus
	Processed  bool
}

// columnize buckets documents by workflow status, each column sorted by
// filename so the layout is stable across reloads.
func columnize(docs []models.Document) [][]card {
	cols := make([][]card, len(columnOrder))
	index := map[models.WorkflowStatus]int{}
	for i, s := range columnOrder {
		index[s] = i
	}
	for _, d := range docs {
		i, ok := index[d.WorkflowStatus]
		if !ok {
			continue
		}
		cols[i] = append(cols[i], card{
			DocumentID: d.DocumentID,
			Filename:   d.OriginalFilename,
			Version:    d.Version,
			Status:     d.WorkflowStatus,
			Processed:  d.AllPagesProcessed(),
		})
	}
	for i := range cols {
		sort.Slice(cols[i], func(a, b int) bool {
			return cols[i][a].Filename < cols[i][b].Filename
		})
	}
	return cols
}

// moveTarget maps a move key onto the status it requests. The lifecycle graph
// still has the final say; an illegal edge is rejected before any prompt.
func moveTarget(key string) (models.WorkflowStatus, bool) {
	switch key {
	case "R":
		return models.StatusReviewed, true
	case "A":
		return models.StatusApproved, true
	case "X":
		return models.StatusRejected, true
	}
	return "", false
}
