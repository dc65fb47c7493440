package importmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println(" [up migration] Creating player import batch, staging and result tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS player_import_batches (
					id UUID PRIMARY KEY,
					idempotency_key TEXT NOT NULL UNIQUE,
					file_name TEXT NOT NULL,
					vendor_label TEXT,
					column_mapping JSONB NOT NULL,
					status TEXT NOT NULL CHECK (status IN ('created', 'uploaded', 'parsing', 'staged', 'executing', 'completed', 'failed')),
					total_rows INTEGER,
					attempt_count INTEGER NOT NULL DEFAULT 0,
					last_error_code TEXT CHECK (last_error_code IN ('BATCH_ROW_LIMIT', 'PARSE_ERROR', 'STORAGE_ERROR', 'MAX_ATTEMPTS_EXCEEDED', 'STATE_CONFLICT', 'IDEMPOTENCY_KEY_CONFLICT')),
					last_error_message TEXT,
					file_key TEXT,
					file_size BIGINT,
					file_checksum TEXT,
					execution_key TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					uploaded_at TIMESTAMPTZ,
					parse_started_at TIMESTAMPTZ,
					staged_at TIMESTAMPTZ,
					executed_at TIMESTAMPTZ,
					failed_at TIMESTAMPTZ
				);
				CREATE INDEX IF NOT EXISTS idx_player_import_batches_status_updated
					ON player_import_batches(status, updated_at);
			`); err != nil {
				return fmt.Errorf("failed to create player_import_batches: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS player_import_staged_rows (
					batch_id UUID NOT NULL REFERENCES player_import_batches(id),
					row_index INTEGER NOT NULL,
					raw_fields JSONB NOT NULL,
					validity TEXT NOT NULL CHECK (validity IN ('valid', 'invalid', 'duplicate')),
					normalized_fields JSONB,
					reject_code TEXT,
					reject_detail TEXT,
					duplicate_key TEXT,
					duplicate_of_row INTEGER,
					shape_issue TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (batch_id, row_index)
				);
			`); err != nil {
				return fmt.Errorf("failed to create player_import_staged_rows: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS player_import_execution_results (
					batch_id UUID NOT NULL REFERENCES player_import_batches(id),
					row_index INTEGER NOT NULL,
					outcome TEXT NOT NULL CHECK (outcome IN ('linked', 'created', 'conflict')),
					player_id UUID,
					matched_candidate_count INTEGER NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (batch_id, row_index)
				);
			`); err != nil {
				return fmt.Errorf("failed to create player_import_execution_results: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS player_import_files (
					key TEXT PRIMARY KEY,
					content BYTEA NOT NULL,
					size BIGINT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`); err != nil {
				return fmt.Errorf("failed to create player_import_files: %w", err)
			}

			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println(" [down migration] Dropping player import tables...")

		_, err := db.ExecContext(ctx, `
			DROP TABLE IF EXISTS player_import_files;
			DROP TABLE IF EXISTS player_import_execution_results;
			DROP TABLE IF EXISTS player_import_staged_rows;
			DROP TABLE IF EXISTS player_import_batches;
		`)
		return err
	})
}
