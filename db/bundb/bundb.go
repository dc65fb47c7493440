package bundb

import (
	"context"
	"database/sql"
	"fmt"

	playerdb "github.com/Black-And-White-Club/casino-ops/app/modules/player/infrastructure/repositories"
	importdb "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/repositories"
	"github.com/Black-And-White-Club/casino-ops/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Open connects to Postgres, pings it and returns a bun.DB with the pipeline models registered.
func Open(ctx context.Context, cfg config.PostgresConfig) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	RegisterModels(db)
	return db, nil
}

// RegisterModels registers the bun models used by the pipeline.
func RegisterModels(db *bun.DB) {
	db.RegisterModel(
		(*playerdb.Player)(nil),
		(*playerdb.ImportLink)(nil),
		(*importdb.ImportBatch)(nil),
		(*importdb.StagedRow)(nil),
		(*importdb.ExecutionResult)(nil),
	)
}
