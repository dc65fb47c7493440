package playermigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println(" [up migration] Creating player_import_links table...")

		_, err := db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS player_import_links (
				batch_id UUID NOT NULL,
				row_index INTEGER NOT NULL,
				player_id UUID NOT NULL REFERENCES players(id),
				outcome TEXT NOT NULL CHECK (outcome IN ('linked', 'created')),
				candidates INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (batch_id, row_index)
			);
			CREATE INDEX IF NOT EXISTS idx_player_import_links_player ON player_import_links(player_id);
		`)
		if err != nil {
			return fmt.Errorf("failed to create player_import_links table: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println(" [down migration] Dropping player_import_links table...")
		_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS player_import_links;`)
		return err
	})
}
