package importstorage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	id := uuid.MustParse("2f0c7f1e-8f7a-4a53-9b0e-3f1f3c7f2a10")
	const sum = "9f86d081884c7d65"

	tests := []struct {
		fileName string
		want     string
	}{
		{"players.csv", "player-imports/2f0c7f1e-8f7a-4a53-9b0e-3f1f3c7f2a10/9f86d081884c7d65/players.csv"},
		{"C:\\exports\\May Players.xlsx", "player-imports/2f0c7f1e-8f7a-4a53-9b0e-3f1f3c7f2a10/9f86d081884c7d65/May_Players.xlsx"},
		{"../../etc/passwd", "player-imports/2f0c7f1e-8f7a-4a53-9b0e-3f1f3c7f2a10/9f86d081884c7d65/passwd"},
		{"", "player-imports/2f0c7f1e-8f7a-4a53-9b0e-3f1f3c7f2a10/9f86d081884c7d65/upload"},
	}
	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectKey(id, sum, tt.fileName))
		})
	}

	t.Run("different content never shares a key", func(t *testing.T) {
		assert.NotEqual(t, ObjectKey(id, "aaaa", "players.csv"), ObjectKey(id, "bbbb", "players.csv"))
	})
}

// fakeS3 is a minimal path-style object server.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(body)
		}
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Store_RoundTrip(t *testing.T) {
	backend := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	store, err := NewS3Store(S3Options{
		Bucket:    "imports",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
		Prefix:    "/casino/",
	})
	require.NoError(t, err)

	ctx := context.Background()
	key := ObjectKey(uuid.New(), "abc123", "players.csv")

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, store.Put(ctx, key, []byte("Email\na@example.com\n")))

	backend.mu.Lock()
	var paths []string
	for p := range backend.objects {
		paths = append(paths, p)
	}
	backend.mu.Unlock()
	require.Len(t, paths, 1)
	assert.True(t, strings.HasPrefix(paths[0], "/imports/casino/player-imports/"))

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "Email\na@example.com\n", string(data))

	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, key))
	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(S3Options{Region: "us-east-1"})
	assert.Error(t, err)
}
