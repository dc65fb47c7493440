package playerdb

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Player is a tracked casino patron. Email and phone are stored normalized so identity
// lookups are exact matches.
type Player struct {
	bun.BaseModel `bun:"table:players,alias:p"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	DisplayName   string     `bun:"display_name,notnull" json:"display_name"`
	FirstName     *string    `bun:"first_name,nullzero" json:"first_name,omitempty"`
	LastName      *string    `bun:"last_name,nullzero" json:"last_name,omitempty"`
	Email         *string    `bun:"email,nullzero" json:"email,omitempty"`
	Phone         *string    `bun:"phone,nullzero" json:"phone,omitempty"`
	SourceBatchID *uuid.UUID `bun:"source_batch_id,type:uuid" json:"source_batch_id,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// ImportLink associates one row of an import batch with the player it resolved to.
type ImportLink struct {
	bun.BaseModel `bun:"table:player_import_links,alias:pil"`
	BatchID       uuid.UUID `bun:"batch_id,pk,type:uuid" json:"batch_id"`
	RowIndex      int       `bun:"row_index,pk" json:"row_index"`
	PlayerID      uuid.UUID `bun:"player_id,notnull,type:uuid" json:"player_id"`
	Outcome       string    `bun:"outcome,notnull" json:"outcome"`
	Candidates    int       `bun:"candidates,notnull" json:"candidates"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
