package playerdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository defines the contract for player persistence.
type Repository interface {
	// GetByID retrieves a player by id.
	GetByID(ctx context.Context, db bun.IDB, id uuid.UUID) (*Player, error)

	// FindByIdentity returns every player whose email or phone equals the given values.
	// Empty values are ignored.
	FindByIdentity(ctx context.Context, db bun.IDB, email, phone string) ([]Player, error)

	// LockIdentities serializes transactions that resolve the same identity keys. The
	// locks are released when db's transaction ends.
	LockIdentities(ctx context.Context, db bun.IDB, keys []string) error

	// Create inserts a new player.
	Create(ctx context.Context, db bun.IDB, player *Player) error

	// GetImportLink retrieves the player link recorded for a batch row.
	GetImportLink(ctx context.Context, db bun.IDB, batchID uuid.UUID, rowIndex int) (*ImportLink, error)

	// CreateImportLink records a batch row link. An existing link is kept.
	CreateImportLink(ctx context.Context, db bun.IDB, link *ImportLink) error
}
