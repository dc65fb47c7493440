package importstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// StoredFile is a raw import file kept in Postgres.
type StoredFile struct {
	bun.BaseModel `bun:"table:player_import_files,alias:pif"`
	Key           string    `bun:"key,pk"`
	Content       []byte    `bun:"content,type:bytea,notnull"`
	Size          int64     `bun:"size,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// PostgresStore keeps raw files in the player_import_files table.
type PostgresStore struct {
	db bun.IDB
}

// NewPostgresStore creates a Postgres-backed file store.
func NewPostgresStore(db bun.IDB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Put stores data under key, replacing any previous content.
func (s *PostgresStore) Put(ctx context.Context, key string, data []byte) error {
	file := &StoredFile{
		Key:       key,
		Content:   data,
		Size:      int64(len(data)),
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(file).
		On("CONFLICT (key) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("size = EXCLUDED.size").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store import file: %w", err)
	}
	return nil
}

// Get loads the content stored under key.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	file := new(StoredFile)
	err := s.db.NewSelect().
		Model(file).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to load import file: %w", err)
	}
	return file.Content, nil
}

// Delete removes the content stored under key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*StoredFile)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete import file: %w", err)
	}
	return nil
}

// Exists reports whether content is stored under key.
func (s *PostgresStore) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*StoredFile)(nil)).
		Where("key = ?", key).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check import file: %w", err)
	}
	return exists, nil
}
