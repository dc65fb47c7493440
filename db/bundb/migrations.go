package bundb

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	playermigrations "github.com/Black-And-White-Club/casino-ops/app/modules/player/infrastructure/repositories/migrations"
	importmigrations "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/repositories/migrations"
)

// ModuleMigrator is a bun migrator for one module's tables.
type ModuleMigrator struct {
	Name     string
	Migrator *migrate.Migrator
}

// Migrators returns the module migrators in dependency order. Each module keeps its own
// bookkeeping tables so a rollback only touches that module's groups.
func Migrators(db *bun.DB) []ModuleMigrator {
	modules := []struct {
		name       string
		migrations *migrate.Migrations
	}{
		{"player", playermigrations.Migrations},
		{"playerimport", importmigrations.Migrations},
	}

	out := make([]ModuleMigrator, 0, len(modules))
	for _, m := range modules {
		out = append(out, ModuleMigrator{
			Name: m.name,
			Migrator: migrate.NewMigrator(db, m.migrations,
				migrate.WithTableName("bun_migrations_"+m.name),
				migrate.WithLocksTableName("bun_migration_locks_"+m.name),
			),
		})
	}
	return out
}

// MigrateAll initializes and applies every module migration.
func MigrateAll(ctx context.Context, db *bun.DB) error {
	for _, m := range Migrators(db) {
		if err := m.Migrator.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize %s migrations: %w", m.Name, err)
		}
		if _, err := m.Migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run %s migrations: %w", m.Name, err)
		}
	}
	return nil
}
