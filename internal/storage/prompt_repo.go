package storage

import (
	"context"
	"errors"
	"fmt"

	"qmflow/internal/models"
	"qmflow/internal/util"

	"github.com/jackc/pgx/v5"
)

type PromptRepo struct {
	db *DB
}

func NewPromptRepo(db *DB) *PromptRepo {
	return &PromptRepo{db: db}
}

// ActiveTemplate returns the newest active template for a document type.
// Absence is a configuration error, never a silent default.
func (r *PromptRepo) ActiveTemplate(ctx context.Context, documentTypeID string) (models.PromptTemplate, error) {
	var t models.PromptTemplate
	err := r.db.Pool.QueryRow(ctx, `
SELECT template_id, document_type_id, prompt_text, model_id, temperature, max_tokens, top_p, active, created_at
FROM prompt_templates
WHERE document_type_id=$1 AND active
ORDER BY created_at DESC
LIMIT 1`, documentTypeID).
		Scan(&t.TemplateID, &t.DocumentTypeID, &t.PromptText, &t.ModelID, &t.Temperature,
			&t.MaxTokens, &t.TopP, &t.Active, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PromptTemplate{}, util.ErrConfiguration
	}
	if err != nil {
		return models.PromptTemplate{}, fmt.Errorf("get active template: %w", err)
	}
	return t, nil
}

func (r *PromptRepo) UpsertTemplate(ctx context.Context, t models.PromptTemplate) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO prompt_templates (template_id, document_type_id, prompt_text, model_id, temperature, max_tokens, top_p, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (template_id)
DO UPDATE SET
  document_type_id = EXCLUDED.document_type_id,
  prompt_text = EXCLUDED.prompt_text,
  model_id = EXCLUDED.model_id,
  temperature = EXCLUDED.temperature,
  max_tokens = EXCLUDED.max_tokens,
  top_p = EXCLUDED.top_p,
  active = EXCLUDED.active`,
		t.TemplateID, t.DocumentTypeID, t.PromptText, t.ModelID, t.Temperature, t.MaxTokens, t.TopP, t.Active)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	return nil
}
