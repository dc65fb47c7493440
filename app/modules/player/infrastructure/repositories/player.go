package playerdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// ErrNotFound is returned when a player or link is not found.
var ErrNotFound = errors.New("player not found")

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new player repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// GetByID retrieves a player by id.
func (r *Impl) GetByID(ctx context.Context, db bun.IDB, id uuid.UUID) (*Player, error) {
	db = r.resolveDB(db)
	player := new(Player)
	err := db.NewSelect().
		Model(player).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return player, nil
}

// FindByIdentity returns players matching the normalized email or phone.
func (r *Impl) FindByIdentity(ctx context.Context, db bun.IDB, email, phone string) ([]Player, error) {
	if email == "" && phone == "" {
		return nil, nil
	}
	db = r.resolveDB(db)

	var players []Player
	q := db.NewSelect().Model(&players)
	switch {
	case email != "" && phone != "":
		q = q.Where("email = ? OR phone = ?", email, phone)
	case email != "":
		q = q.Where("email = ?", email)
	default:
		q = q.Where("phone = ?", phone)
	}

	if err := q.Order("created_at ASC", "id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to find players by identity: %w", err)
	}
	return players, nil
}

// LockIdentities takes a transaction-scoped advisory lock per identity key. Locks are
// acquired in hash order so two callers with overlapping keys cannot deadlock.
func (r *Impl) LockIdentities(ctx context.Context, db bun.IDB, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	db = r.resolveDB(db)
	_, err := db.ExecContext(ctx, `
		SELECT pg_advisory_xact_lock(h)
		FROM (
			SELECT DISTINCT hashtextextended('player_identity:' || k, 0) AS h
			FROM unnest(?::text[]) AS k
			ORDER BY h
		) AS identity_locks`, pgdialect.Array(keys))
	if err != nil {
		return fmt.Errorf("failed to lock player identities: %w", err)
	}
	return nil
}

// Create inserts a new player.
func (r *Impl) Create(ctx context.Context, db bun.IDB, player *Player) error {
	db = r.resolveDB(db)
	if player.ID == uuid.Nil {
		player.ID = uuid.New()
	}
	now := time.Now().UTC()
	player.CreatedAt = now
	player.UpdatedAt = now

	if _, err := db.NewInsert().Model(player).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

// GetImportLink retrieves the link recorded for a batch row.
func (r *Impl) GetImportLink(ctx context.Context, db bun.IDB, batchID uuid.UUID, rowIndex int) (*ImportLink, error) {
	db = r.resolveDB(db)
	link := new(ImportLink)
	err := db.NewSelect().
		Model(link).
		Where("batch_id = ?", batchID).
		Where("row_index = ?", rowIndex).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get player import link: %w", err)
	}
	return link, nil
}

// CreateImportLink records a batch row link, keeping any existing one.
func (r *Impl) CreateImportLink(ctx context.Context, db bun.IDB, link *ImportLink) error {
	db = r.resolveDB(db)
	link.CreatedAt = time.Now().UTC()
	_, err := db.NewInsert().
		Model(link).
		On("CONFLICT (batch_id, row_index) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create player import link: %w", err)
	}
	return nil
}
