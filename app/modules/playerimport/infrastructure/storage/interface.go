package importstorage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when no file is stored under a key.
var ErrObjectNotFound = errors.New("import file not found")

// FileStore holds the raw uploaded files the ingestion worker reads back.
type FileStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ObjectKey builds the storage key for one upload of a batch's raw file. The content
// checksum is part of the key, so uploads with different bytes never share an object.
func ObjectKey(batchID uuid.UUID, checksum, fileName string) string {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		base = "upload"
	}
	return fmt.Sprintf("player-imports/%s/%s/%s", batchID, checksum, base)
}
