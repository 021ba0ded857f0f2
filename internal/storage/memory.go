package storage

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
)

// MemoryEngine is an in-process hash-map backend, grounded on the teacher's
// scaling.MemoryStorage: a single RWMutex guarding a map, safe for
// concurrent readers.
type MemoryEngine struct {
	mu   sync.RWMutex
	data map[string][]byte

	gets, puts, deletes atomic.Int64
}

// NewMemoryEngine constructs an empty in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{data: make(map[string][]byte)}
}

func (m *MemoryEngine) Get(ctx context.Context, key []byte, opts Options) ([]byte, bool, error) {
	m.gets.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryEngine) Put(ctx context.Context, key, value []byte, opts Options) error {
	m.puts.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryEngine) Delete(ctx context.Context, key []byte, opts Options) error {
	m.deletes.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemoryEngine) Scan(ctx context.Context, start, end []byte, limit int, opts Options) ([][2][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if bytes.Compare([]byte(k), start) >= 0 && (len(end) == 0 || bytes.Compare([]byte(k), end) < 0) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if limit > 0 && limit < len(keys) {
		keys = keys[:limit]
	}
	out := make([][2][]byte, len(keys))
	for i, k := range keys {
		out[i] = [2][]byte{[]byte(k), append([]byte(nil), m.data[k]...)}
	}
	return out, nil
}

func (m *MemoryEngine) BatchGet(ctx context.Context, keys [][]byte, opts Options) ([][]byte, []bool, error) {
	values := make([][]byte, len(keys))
	found := make([]bool, len(keys))
	for i, k := range keys {
		v, ok, _ := m.Get(ctx, k, opts)
		values[i], found[i] = v, ok
	}
	return values, found, nil
}

func (m *MemoryEngine) BatchPut(ctx context.Context, pairs [][2][]byte, opts Options) error {
	for _, p := range pairs {
		if err := m.Put(ctx, p[0], p[1], opts); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryEngine) BatchDelete(ctx context.Context, keys [][]byte, opts Options) error {
	for _, k := range keys {
		if err := m.Delete(ctx, k, opts); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryEngine) BeginTransaction(ctx context.Context, opts Options) (Transaction, error) {
	return newMemoryTransaction(m), nil
}

// ExecutePlan runs ops in order as a best-effort batch: a failed operation
// does not undo its predecessors (see Engine's doc comment on atomicity).
func (m *MemoryEngine) ExecutePlan(ctx context.Context, ops []StorageOperation, opts Options) ([]StorageOperationResult, error) {
	results := make([]StorageOperationResult, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case OpGet:
			v, found, err := m.Get(ctx, op.Key, opts)
			results[i] = StorageOperationResult{Value: v, Found: found, Err: err}
		case OpPut:
			err := m.Put(ctx, op.Key, op.Value, opts)
			results[i] = StorageOperationResult{Err: err}
		case OpDelete:
			err := m.Delete(ctx, op.Key, opts)
			results[i] = StorageOperationResult{Err: err}
		}
	}
	return results, nil
}

func (m *MemoryEngine) HealthCheck(ctx context.Context) bool { return true }

func (m *MemoryEngine) Stats(ctx context.Context) (StorageStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return StorageStats{
		KeyCount:     int64(len(m.data)),
		TotalGets:    m.gets.Load(),
		TotalPuts:    m.puts.Load(),
		TotalDeletes: m.deletes.Load(),
	}, nil
}

// memoryTransaction buffers writes against MemoryEngine's live map,
// captured as a snapshot at Begin time; reads check the write buffer first
// (read-your-writes), falling back to the snapshot.
type memoryTransaction struct {
	id       string
	engine   *MemoryEngine
	snapshot map[string][]byte
	writes   map[string][]byte
	deletes  map[string]bool
	done     bool
}

func newMemoryTransaction(m *MemoryEngine) *memoryTransaction {
	m.mu.RLock()
	snapshot := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		snapshot[k] = append([]byte(nil), v...)
	}
	m.mu.RUnlock()
	return &memoryTransaction{
		id:       uuid.NewString(),
		engine:   m,
		snapshot: snapshot,
		writes:   make(map[string][]byte),
		deletes:  make(map[string]bool),
	}
}

func (t *memoryTransaction) Get(ctx context.Context, key []byte, opts Options) ([]byte, bool, error) {
	k := string(key)
	if t.deletes[k] {
		return nil, false, nil
	}
	if v, ok := t.writes[k]; ok {
		return append([]byte(nil), v...), true, nil
	}
	v, ok := t.snapshot[k]
	return append([]byte(nil), v...), ok, nil
}

func (t *memoryTransaction) Put(ctx context.Context, key, value []byte, opts Options) error {
	k := string(key)
	delete(t.deletes, k)
	t.writes[k] = append([]byte(nil), value...)
	return nil
}

func (t *memoryTransaction) Delete(ctx context.Context, key []byte, opts Options) error {
	k := string(key)
	delete(t.writes, k)
	t.deletes[k] = true
	return nil
}

func (t *memoryTransaction) Scan(ctx context.Context, start, end []byte, limit int, opts Options) ([][2][]byte, error) {
	merged := make(map[string][]byte, len(t.snapshot))
	for k, v := range t.snapshot {
		merged[k] = v
	}
	for k, v := range t.writes {
		merged[k] = v
	}
	for k := range t.deletes {
		delete(merged, k)
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		if bytes.Compare([]byte(k), start) >= 0 && (len(end) == 0 || bytes.Compare([]byte(k), end) < 0) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if limit > 0 && limit < len(keys) {
		keys = keys[:limit]
	}
	out := make([][2][]byte, len(keys))
	for i, k := range keys {
		out[i] = [2][]byte{[]byte(k), append([]byte(nil), merged[k]...)}
	}
	return out, nil
}

func (t *memoryTransaction) Commit(ctx context.Context) error {
	if t.done {
		return engineerr.NewStorageError(engineerr.StorageTransactionConflict, nil)
	}
	t.engine.mu.Lock()
	defer t.engine.mu.Unlock()
	for k, v := range t.writes {
		t.engine.data[k] = v
	}
	for k := range t.deletes {
		delete(t.engine.data, k)
	}
	t.done = true
	return nil
}

func (t *memoryTransaction) Rollback(ctx context.Context) error {
	t.writes = map[string][]byte{}
	t.deletes = map[string]bool{}
	t.done = true
	return nil
}
