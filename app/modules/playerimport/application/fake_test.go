package importservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	playerdb "github.com/Black-And-White-Club/casino-ops/app/modules/player/infrastructure/repositories"
	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	importdb "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/repositories"
	importstorage "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/storage"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Import Repo
// ------------------------

// FakeRepo is an in-memory import repository. Func fields override single methods.
type FakeRepo struct {
	mu    sync.Mutex
	trace []string

	batches map[uuid.UUID]*importdomain.Batch
	staged  map[uuid.UUID][]importdomain.StagedRow
	results map[uuid.UUID][]importdomain.ExecutionResult

	GetBatchFunc               func(ctx context.Context, db bun.IDB, id uuid.UUID) (*importdomain.Batch, error)
	GetBatchByKeyFunc          func(ctx context.Context, db bun.IDB, key string) (*importdomain.Batch, error)
	InsertBatchFunc            func(ctx context.Context, db bun.IDB, batch *importdomain.Batch) (bool, error)
	TransitionStatusFunc       func(ctx context.Context, db bun.IDB, id uuid.UUID, from, to importdomain.BatchStatus, update importdomain.StatusUpdate) (*importdomain.Batch, error)
	ReplaceStagedRowsFunc      func(ctx context.Context, db bun.IDB, batchID uuid.UUID, rows []importdomain.StagedRow) error
	InsertExecutionResultsFunc func(ctx context.Context, db bun.IDB, batchID uuid.UUID, results []importdomain.ExecutionResult) error
}

func NewFakeRepo() *FakeRepo {
	return &FakeRepo{
		trace:   []string{},
		batches: map[uuid.UUID]*importdomain.Batch{},
		staged:  map[uuid.UUID][]importdomain.StagedRow{},
		results: map[uuid.UUID][]importdomain.ExecutionResult{},
	}
}

func (f *FakeRepo) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

// Seed stores a batch as is.
func (f *FakeRepo) Seed(b *importdomain.Batch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *b
	f.batches[b.ID] = &clone
}

// Batch returns a copy of the stored batch.
func (f *FakeRepo) Batch(id uuid.UUID) *importdomain.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return nil
	}
	clone := *b
	return &clone
}

func (f *FakeRepo) StagedRows(id uuid.UUID) []importdomain.StagedRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]importdomain.StagedRow(nil), f.staged[id]...)
}

func (f *FakeRepo) GetBatch(ctx context.Context, db bun.IDB, id uuid.UUID) (*importdomain.Batch, error) {
	f.record("GetBatch")
	if f.GetBatchFunc != nil {
		return f.GetBatchFunc(ctx, db, id)
	}
	if b := f.Batch(id); b != nil {
		return b, nil
	}
	return nil, importdb.ErrNotFound
}

func (f *FakeRepo) GetBatchByIdempotencyKey(ctx context.Context, db bun.IDB, key string) (*importdomain.Batch, error) {
	f.record("GetBatchByIdempotencyKey")
	if f.GetBatchByKeyFunc != nil {
		return f.GetBatchByKeyFunc(ctx, db, key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.batches {
		if b.IdempotencyKey == key {
			clone := *b
			return &clone, nil
		}
	}
	return nil, importdb.ErrNotFound
}

func (f *FakeRepo) InsertBatch(ctx context.Context, db bun.IDB, batch *importdomain.Batch) (bool, error) {
	f.record("InsertBatch")
	if f.InsertBatchFunc != nil {
		return f.InsertBatchFunc(ctx, db, batch)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.batches {
		if b.IdempotencyKey == batch.IdempotencyKey {
			return false, nil
		}
	}
	now := time.Now().UTC()
	batch.CreatedAt, batch.UpdatedAt = now, now
	clone := *batch
	f.batches[batch.ID] = &clone
	return true, nil
}

func (f *FakeRepo) TransitionStatus(ctx context.Context, db bun.IDB, id uuid.UUID, from, to importdomain.BatchStatus, update importdomain.StatusUpdate) (*importdomain.Batch, error) {
	f.record("TransitionStatus:" + string(from) + "->" + string(to))
	if f.TransitionStatusFunc != nil {
		return f.TransitionStatusFunc(ctx, db, id, from, to, update)
	}
	if !from.CanTransitionTo(to) {
		return nil, importdb.ErrIllegalTransition
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok || b.Status != from {
		return nil, importdb.ErrStateConflict
	}

	now := time.Now().UTC()
	b.Status = to
	b.UpdatedAt = now
	if update.IncrementAttempts {
		b.AttemptCount++
	}
	if update.TotalRows != nil {
		v := *update.TotalRows
		b.TotalRows = &v
	}
	if update.ClearError {
		b.LastErrorCode, b.LastErrorMessage = nil, nil
	}
	if update.ErrorCode != nil {
		v := *update.ErrorCode
		b.LastErrorCode = &v
	}
	if update.ErrorMessage != nil {
		v := *update.ErrorMessage
		b.LastErrorMessage = &v
	}
	if update.FileKey != nil {
		b.FileKey = update.FileKey
	}
	if update.FileSize != nil {
		b.FileSize = update.FileSize
	}
	if update.FileChecksum != nil {
		b.FileChecksum = update.FileChecksum
	}
	if update.ExecutionKey != nil {
		b.ExecutionKey = update.ExecutionKey
	}
	switch {
	case from == importdomain.StatusCreated && to == importdomain.StatusUploaded:
		b.UploadedAt = &now
	case to == importdomain.StatusParsing:
		b.ParseStartedAt = &now
	case to == importdomain.StatusStaged && from == importdomain.StatusParsing:
		b.StagedAt = &now
	case to == importdomain.StatusCompleted:
		b.ExecutedAt = &now
	case to == importdomain.StatusFailed:
		b.FailedAt = &now
	}

	clone := *b
	return &clone, nil
}

func (f *FakeRepo) ListBatchesByStatus(ctx context.Context, db bun.IDB, status importdomain.BatchStatus, before time.Time, limit int) ([]*importdomain.Batch, error) {
	f.record("ListBatchesByStatus:" + string(status))
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*importdomain.Batch
	for _, b := range f.batches {
		if b.Status == status && b.UpdatedAt.Before(before) {
			clone := *b
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeRepo) ReplaceStagedRows(ctx context.Context, db bun.IDB, batchID uuid.UUID, rows []importdomain.StagedRow) error {
	f.record("ReplaceStagedRows")
	if f.ReplaceStagedRowsFunc != nil {
		return f.ReplaceStagedRowsFunc(ctx, db, batchID, rows)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staged[batchID] = append([]importdomain.StagedRow(nil), rows...)
	return nil
}

func (f *FakeRepo) ListStagedRows(ctx context.Context, db bun.IDB, batchID uuid.UUID, validity *importdomain.Validity) ([]importdomain.StagedRow, error) {
	f.record("ListStagedRows")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []importdomain.StagedRow
	for _, r := range f.staged[batchID] {
		if validity == nil || r.Validity() == *validity {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *FakeRepo) CountStagedRows(ctx context.Context, db bun.IDB, batchID uuid.UUID) (importdomain.RowCounts, error) {
	f.record("CountStagedRows")
	return importdomain.CountRows(f.StagedRows(batchID)), nil
}

func (f *FakeRepo) InsertExecutionResults(ctx context.Context, db bun.IDB, batchID uuid.UUID, results []importdomain.ExecutionResult) error {
	f.record("InsertExecutionResults")
	if f.InsertExecutionResultsFunc != nil {
		return f.InsertExecutionResultsFunc(ctx, db, batchID, results)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[batchID] = append(f.results[batchID], results...)
	return nil
}

func (f *FakeRepo) ListExecutionResults(ctx context.Context, db bun.IDB, batchID uuid.UUID) ([]importdomain.ExecutionResult, error) {
	f.record("ListExecutionResults")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]importdomain.ExecutionResult(nil), f.results[batchID]...), nil
}

func (f *FakeRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ importdb.Repository = (*FakeRepo)(nil)

// ------------------------
// Fake Player Repo
// ------------------------

// FakePlayerRepo is an in-memory player store.
type FakePlayerRepo struct {
	mu    sync.Mutex
	trace []string

	players []playerdb.Player
	links   map[string]playerdb.ImportLink

	locked []string

	FindByIdentityFunc func(ctx context.Context, db bun.IDB, email, phone string) ([]playerdb.Player, error)
	CreateFunc         func(ctx context.Context, db bun.IDB, player *playerdb.Player) error
	LockIdentitiesFunc func(ctx context.Context, db bun.IDB, keys []string) error
}

func NewFakePlayerRepo(existing ...playerdb.Player) *FakePlayerRepo {
	return &FakePlayerRepo{
		trace:   []string{},
		players: append([]playerdb.Player(nil), existing...),
		links:   map[string]playerdb.ImportLink{},
	}
}

func (f *FakePlayerRepo) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

func linkKey(batchID uuid.UUID, rowIndex int) string {
	return fmt.Sprintf("%s/%d", batchID, rowIndex)
}

func (f *FakePlayerRepo) GetByID(ctx context.Context, db bun.IDB, id uuid.UUID) (*playerdb.Player, error) {
	f.record("GetByID")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players {
		if p.ID == id {
			clone := p
			return &clone, nil
		}
	}
	return nil, playerdb.ErrNotFound
}

func (f *FakePlayerRepo) FindByIdentity(ctx context.Context, db bun.IDB, email, phone string) ([]playerdb.Player, error) {
	f.record("FindByIdentity")
	if f.FindByIdentityFunc != nil {
		return f.FindByIdentityFunc(ctx, db, email, phone)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []playerdb.Player
	for _, p := range f.players {
		if (email != "" && p.Email != nil && *p.Email == email) || (phone != "" && p.Phone != nil && *p.Phone == phone) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *FakePlayerRepo) LockIdentities(ctx context.Context, db bun.IDB, keys []string) error {
	f.record("LockIdentities")
	if f.LockIdentitiesFunc != nil {
		return f.LockIdentitiesFunc(ctx, db, keys)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = append(f.locked, keys...)
	return nil
}

// Locked returns every identity key locked so far.
func (f *FakePlayerRepo) Locked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.locked...)
}

func (f *FakePlayerRepo) Create(ctx context.Context, db bun.IDB, player *playerdb.Player) error {
	f.record("Create")
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, db, player)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if player.ID == uuid.Nil {
		player.ID = uuid.New()
	}
	f.players = append(f.players, *player)
	return nil
}

func (f *FakePlayerRepo) GetImportLink(ctx context.Context, db bun.IDB, batchID uuid.UUID, rowIndex int) (*playerdb.ImportLink, error) {
	f.record("GetImportLink")
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.links[linkKey(batchID, rowIndex)]; ok {
		return &l, nil
	}
	return nil, playerdb.ErrNotFound
}

func (f *FakePlayerRepo) CreateImportLink(ctx context.Context, db bun.IDB, link *playerdb.ImportLink) error {
	f.record("CreateImportLink")
	f.mu.Lock()
	defer f.mu.Unlock()
	key := linkKey(link.BatchID, link.RowIndex)
	if _, ok := f.links[key]; !ok {
		f.links[key] = *link
	}
	return nil
}

func (f *FakePlayerRepo) Players() []playerdb.Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]playerdb.Player(nil), f.players...)
}

func (f *FakePlayerRepo) LinkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.links)
}

func (f *FakePlayerRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ playerdb.Repository = (*FakePlayerRepo)(nil)

// ------------------------
// Fake File Store
// ------------------------

type FakeFileStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	getCalls int

	PutFunc func(ctx context.Context, key string, data []byte) error
	GetFunc func(ctx context.Context, key string) ([]byte, error)
}

func NewFakeFileStore() *FakeFileStore {
	return &FakeFileStore{objects: map[string][]byte{}}
}

func (f *FakeFileStore) Put(ctx context.Context, key string, data []byte) error {
	if f.PutFunc != nil {
		return f.PutFunc(ctx, key, data)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *FakeFileStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	f.getCalls++
	f.mu.Unlock()
	if f.GetFunc != nil {
		return f.GetFunc(ctx, key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, importstorage.ErrObjectNotFound
	}
	return data, nil
}

func (f *FakeFileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *FakeFileStore) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *FakeFileStore) GetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

var _ importstorage.FileStore = (*FakeFileStore)(nil)

// ------------------------
// Fake Enqueuer / Publisher
// ------------------------

type FakeEnqueuer struct {
	mu       sync.Mutex
	enqueued []uuid.UUID

	EnqueueIngestFunc func(ctx context.Context, batchID uuid.UUID) error
}

func (f *FakeEnqueuer) EnqueueIngest(ctx context.Context, batchID uuid.UUID) error {
	if f.EnqueueIngestFunc != nil {
		if err := f.EnqueueIngestFunc(ctx, batchID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, batchID)
	return nil
}

func (f *FakeEnqueuer) Enqueued() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.enqueued...)
}

type FakePublisher struct {
	mu     sync.Mutex
	topics []string

	PublishFunc func(topic string, messages ...*message.Message) error
}

func (f *FakePublisher) Publish(topic string, messages ...*message.Message) error {
	f.mu.Lock()
	f.topics = append(f.topics, topic)
	f.mu.Unlock()
	if f.PublishFunc != nil {
		return f.PublishFunc(topic, messages...)
	}
	return nil
}

func (f *FakePublisher) Close() error { return nil }

func (f *FakePublisher) Topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.topics...)
}

var errStorageDown = errors.New("storage unreachable")
