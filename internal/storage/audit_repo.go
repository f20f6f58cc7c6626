package storage

import (
	"context"
	"fmt"
	"time"

	"qmflow/internal/models"
)

type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// History returns a document's status changes oldest first. Reads are
// side-effect free and repeatable; entries are only ever appended, by
// DocumentRepo.ApplyTransition.
func (r *AuditRepo) History(ctx context.Context, documentID string) ([]models.WorkflowStatusChange, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT entry_id, document_id, COALESCE(from_status,''), to_status,
       changed_by_user_id, changed_by_name, reason, comment, created_at
FROM workflow_status_changes
WHERE document_id=$1
ORDER BY created_at, entry_id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	out := make([]models.WorkflowStatusChange, 0)
	for rows.Next() {
		var (
			e    models.WorkflowStatusChange
			from string
			ts   time.Time
		)
		if err := rows.Scan(&e.EntryID, &e.DocumentID, &from, &e.ToStatus,
			&e.ChangedByUserID, &e.ChangedByName, &e.Reason, &e.Comment, &ts); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		e.FromStatus = models.WorkflowStatus(from)
		e.CreatedAt = ts
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}
	return out, nil
}
