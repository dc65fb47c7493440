package playermigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println(" [up migration] Creating players table...")

		_, err := db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS players (
				id UUID PRIMARY KEY,
				display_name TEXT NOT NULL,
				first_name TEXT,
				last_name TEXT,
				email TEXT,
				phone TEXT,
				source_batch_id UUID,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_players_email ON players(email) WHERE email IS NOT NULL;
			CREATE INDEX IF NOT EXISTS idx_players_phone ON players(phone) WHERE phone IS NOT NULL;
		`)
		if err != nil {
			return fmt.Errorf("failed to create players table: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println(" [down migration] Dropping players table...")
		_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS players;`)
		return err
	})
}
