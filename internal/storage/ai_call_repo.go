package storage

import (
	"context"
	"fmt"
)

// AICallRecord is one row of the model invocation log. Every invocation is
// recorded, failures included, with whatever token counts the provider
// reported.
type AICallRecord struct {
	CallID           string
	Operation        string
	DocumentID       string
	PageNumber       int
	ProviderName     string
	Model            string
	Status           string
	ErrorType        string
	TokensSent       int
	TokensReceived   int
	ProcessingTimeMS int64
}

type AICallRepo struct {
	db *DB
}

func NewAICallRepo(db *DB) *AICallRepo {
	return &AICallRepo{db: db}
}

func (r *AICallRepo) Insert(ctx context.Context, rec AICallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO ai_calls (call_id, operation, document_id, page_number, provider_name, model,
                      status, error_type, tokens_sent, tokens_received, processing_time_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.CallID, rec.Operation, rec.DocumentID, rec.PageNumber, rec.ProviderName, rec.Model,
		rec.Status, rec.ErrorType, rec.TokensSent, rec.TokensReceived, rec.ProcessingTimeMS)
	if err != nil {
		return fmt.Errorf("insert ai call: %w", err)
	}
	return nil
}
