package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qmflow/internal/models"
	"qmflow/internal/util"

	"github.com/jackc/pgx/v5"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) CreateDocument(ctx context.Context, d models.Document) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create document: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
INSERT INTO documents (document_id, original_filename, document_type_id, qm_chapter, version,
                       file_size_bytes, processing_method, workflow_status, interest_group_ids, uploaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.DocumentID, d.OriginalFilename, d.DocumentTypeID, d.QMChapter, d.Version,
		d.FileSizeBytes, string(d.ProcessingMethod), string(d.WorkflowStatus), d.InterestGroupIDs, d.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	for _, p := range d.Pages {
		if _, err := tx.Exec(ctx, `
INSERT INTO pages (document_id, page_number, preview_image_path)
VALUES ($1, $2, $3)`, d.DocumentID, p.PageNumber, p.PreviewImagePath); err != nil {
			return fmt.Errorf("insert page %d: %w", p.PageNumber, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) GetDocument(ctx context.Context, documentID string) (models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `
SELECT document_id, original_filename, document_type_id, qm_chapter, version,
       file_size_bytes, processing_method, workflow_status, interest_group_ids, uploaded_at
FROM documents
WHERE document_id=$1`, documentID).
		Scan(&d.DocumentID, &d.OriginalFilename, &d.DocumentTypeID, &d.QMChapter, &d.Version,
			&d.FileSizeBytes, &d.ProcessingMethod, &d.WorkflowStatus, &d.InterestGroupIDs, &d.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, util.ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	pages, err := r.loadPages(ctx, documentID)
	if err != nil {
		return models.Document{}, err
	}
	d.Pages = pages
	return d, nil
}

func (r *DocumentRepo) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT document_id, original_filename, document_type_id, qm_chapter, version,
       file_size_bytes, processing_method, workflow_status, interest_group_ids, uploaded_at
FROM documents
ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.DocumentID, &d.OriginalFilename, &d.DocumentTypeID, &d.QMChapter, &d.Version,
			&d.FileSizeBytes, &d.ProcessingMethod, &d.WorkflowStatus, &d.InterestGroupIDs, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	for i := range out {
		pages, err := r.loadPages(ctx, out[i].DocumentID)
		if err != nil {
			return nil, err
		}
		out[i].Pages = pages
	}
	return out, nil
}

func (r *DocumentRepo) loadPages(ctx context.Context, documentID string) ([]models.Page, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT page_number, preview_image_path, result_status, ai_model_used, tokens_sent, tokens_received,
       processing_time_ms, raw_response, parsed_json, error_message, result_created_at
FROM pages
WHERE document_id=$1
ORDER BY page_number`, documentID)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	defer rows.Close()

	pages := make([]models.Page, 0)
	for rows.Next() {
		var (
			p         models.Page
			status    *string
			model     *string
			sent      *int
			received  *int
			latency   *int64
			raw       *string
			parsed    []byte
			errMsg    *string
			createdAt *time.Time
		)
		if err := rows.Scan(&p.PageNumber, &p.PreviewImagePath, &status, &model, &sent, &received,
			&latency, &raw, &parsed, &errMsg, &createdAt); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		if status != nil {
			res := models.AIProcessingResult{
				Status:     models.ResultStatus(*status),
				ParsedJSON: parsed,
			}
			if model != nil {
				res.ModelUsed = *model
			}
			if sent != nil {
				res.TokensSent = *sent
			}
			if received != nil {
				res.TokensReceived = *received
			}
			if latency != nil {
				res.ProcessingTimeMS = *latency
			}
			if raw != nil {
				res.RawResponse = *raw
			}
			if errMsg != nil {
				res.ErrorMessage = *errMsg
			}
			if createdAt != nil {
				res.CreatedAt = *createdAt
			}
			p.Result = &res
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return pages, nil
}

// SavePageResult replaces the page's result in place. The single UPDATE keeps
// concurrent writers from persisting a half-written result.
func (r *DocumentRepo) SavePageResult(ctx context.Context, documentID string, pageNumber int, res models.AIProcessingResult) error {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE pages
SET result_status=$3, ai_model_used=$4, tokens_sent=$5, tokens_received=$6,
    processing_time_ms=$7, raw_response=$8, parsed_json=$9, error_message=NULLIF($10,''),
    result_created_at=$11
WHERE document_id=$1 AND page_number=$2`,
		documentID, pageNumber, string(res.Status), res.ModelUsed, res.TokensSent, res.TokensReceived,
		res.ProcessingTimeMS, res.RawResponse, []byte(res.ParsedJSON), res.ErrorMessage, res.CreatedAt)
	if err != nil {
		return fmt.Errorf("save page result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return util.ErrNotFound
	}
	return nil
}

// ApplyTransition sets the new status and appends the audit entry in one
// transaction. The status update is a compare-and-swap on entry.FromStatus, so
// a concurrent transition that got there first makes this one fail validation
// instead of silently branching the audit history.
func (r *DocumentRepo) ApplyTransition(ctx context.Context, entry models.WorkflowStatusChange) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
UPDATE documents SET workflow_status=$3
WHERE document_id=$1 AND workflow_status=$2`,
		entry.DocumentID, string(entry.FromStatus), string(entry.ToStatus))
	if err != nil {
		return fmt.Errorf("update workflow status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM documents WHERE document_id=$1)`, entry.DocumentID).Scan(&exists); err != nil {
			return fmt.Errorf("check document: %w", err)
		}
		if !exists {
			return util.ErrNotFound
		}
		return util.ErrInvalidTransition
	}

	_, err = tx.Exec(ctx, `
INSERT INTO workflow_status_changes (entry_id, document_id, from_status, to_status,
                                     changed_by_user_id, changed_by_name, reason, comment, created_at)
VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7, $8, $9)`,
		entry.EntryID, entry.DocumentID, string(entry.FromStatus), string(entry.ToStatus),
		entry.ChangedByUserID, entry.ChangedByName, entry.Reason, entry.Comment, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append status change: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}
