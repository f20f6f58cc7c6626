package storage

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
  document_id        text PRIMARY KEY,
  original_filename  text NOT NULL,
  document_type_id   text NOT NULL,
  qm_chapter         text NOT NULL DEFAULT '',
  version            text NOT NULL,
  file_size_bytes    bigint NOT NULL DEFAULT 0,
  processing_method  text NOT NULL,
  workflow_status    text NOT NULL DEFAULT 'draft',
  interest_group_ids text[] NOT NULL DEFAULT '{}',
  uploaded_at        timestamptz NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS pages (
  document_id        text NOT NULL REFERENCES documents(document_id),
  page_number        int NOT NULL,
  preview_image_path text NOT NULL DEFAULT '',
  result_status      text,
  ai_model_used      text,
  tokens_sent        int,
  tokens_received    int,
  processing_time_ms bigint,
  raw_response       text,
  parsed_json        jsonb,
  error_message      text,
  result_created_at  timestamptz,
  PRIMARY KEY (document_id, page_number)
)`,
	`CREATE TABLE IF NOT EXISTS workflow_status_changes (
  entry_id           text PRIMARY KEY,
  document_id        text NOT NULL REFERENCES documents(document_id),
  from_status        text,
  to_status          text NOT NULL,
  changed_by_user_id text NOT NULL,
  changed_by_name    text NOT NULL DEFAULT '',
  reason             text NOT NULL DEFAULT '',
  comment            text NOT NULL,
  created_at         timestamptz NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_status_changes_doc
  ON workflow_status_changes(document_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS prompt_templates (
  template_id      text PRIMARY KEY,
  document_type_id text NOT NULL,
  prompt_text      text NOT NULL,
  model_id         text NOT NULL,
  temperature      double precision NOT NULL DEFAULT 0.2,
  max_tokens       int NOT NULL DEFAULT 2048,
  top_p            double precision NOT NULL DEFAULT 1.0,
  active           boolean NOT NULL DEFAULT true,
  created_at       timestamptz NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS users (
  user_id          text PRIMARY KEY,
  display_name     text NOT NULL DEFAULT '',
  permission_level int NOT NULL DEFAULT 1
)`,
	`CREATE TABLE IF NOT EXISTS ai_calls (
  call_id            text PRIMARY KEY,
  operation          text NOT NULL,
  document_id        text NOT NULL DEFAULT '',
  page_number        int NOT NULL DEFAULT 0,
  provider_name      text NOT NULL DEFAULT '',
  model              text NOT NULL DEFAULT '',
  status             text NOT NULL DEFAULT '',
  error_type         text NOT NULL DEFAULT '',
  tokens_sent        int NOT NULL DEFAULT 0,
  tokens_received    int NOT NULL DEFAULT 0,
  processing_time_ms bigint NOT NULL DEFAULT 0,
  created_at         timestamptz NOT NULL DEFAULT now()
)`,
}

// Migrate creates the schema when missing. Statements are idempotent so the
// api and worker can both run it at startup.
func Migrate(ctx context.Context, db *DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
