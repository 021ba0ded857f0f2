package storage

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
)

// RedisConfig configures a RedisEngine, mirroring the teacher's
// scaling.RedisConfig shape.
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisEngine is a remote KV backend standing in for the distributed
// storage engines spec §4.11 treats as out of scope; it satisfies the same
// Engine interface MemoryEngine does, grounded on the teacher's
// scaling.RedisStorage.
type RedisEngine struct {
	client    *redis.Client
	keyPrefix string

	gets, puts, deletes atomic.Int64
}

// NewRedisEngine dials addr and verifies connectivity before returning.
func NewRedisEngine(ctx context.Context, cfg RedisConfig) (*RedisEngine, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, engineerr.NewStorageError(engineerr.StorageConnection, err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "sqlexec:"
	}
	return &RedisEngine{client: client, keyPrefix: prefix}, nil
}

func (r *RedisEngine) prefixedKey(key []byte) string {
	return r.keyPrefix + string(key)
}

func (r *RedisEngine) Get(ctx context.Context, key []byte, opts Options) ([]byte, bool, error) {
	r.gets.Add(1)
	v, err := r.client.Get(ctx, r.prefixedKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, engineerr.NewStorageError(engineerr.StorageEngine, err)
	}
	return v, true, nil
}

func (r *RedisEngine) Put(ctx context.Context, key, value []byte, opts Options) error {
	r.puts.Add(1)
	if err := r.client.Set(ctx, r.prefixedKey(key), value, 0).Err(); err != nil {
		return engineerr.NewStorageError(engineerr.StorageEngine, err)
	}
	return nil
}

func (r *RedisEngine) Delete(ctx context.Context, key []byte, opts Options) error {
	r.deletes.Add(1)
	if err := r.client.Del(ctx, r.prefixedKey(key)).Err(); err != nil {
		return engineerr.NewStorageError(engineerr.StorageEngine, err)
	}
	return nil
}

// Scan implements a range scan over the prefixed keyspace using SCAN, then
// filters and sorts client-side since Redis keys are unordered.
func (r *RedisEngine) Scan(ctx context.Context, start, end []byte, limit int, opts Options) ([][2][]byte, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()[len(r.keyPrefix):]
		if k >= string(start) && (len(end) == 0 || k < string(end)) {
			keys = append(keys, k)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, engineerr.NewStorageError(engineerr.StorageEngine, err)
	}
	sort.Strings(keys)
	if limit > 0 && limit < len(keys) {
		keys = keys[:limit]
	}
	out := make([][2][]byte, 0, len(keys))
	for _, k := range keys {
		v, found, err := r.Get(ctx, []byte(k), opts)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, [2][]byte{[]byte(k), v})
		}
	}
	return out, nil
}

func (r *RedisEngine) BatchGet(ctx context.Context, keys [][]byte, opts Options) ([][]byte, []bool, error) {
	values := make([][]byte, len(keys))
	found := make([]bool, len(keys))
	for i, k := range keys {
		v, ok, err := r.Get(ctx, k, opts)
		if err != nil {
			return nil, nil, err
		}
		values[i], found[i] = v, ok
	}
	return values, found, nil
}

func (r *RedisEngine) BatchPut(ctx context.Context, pairs [][2][]byte, opts Options) error {
	pipe := r.client.Pipeline()
	for _, p := range pairs {
		pipe.Set(ctx, r.prefixedKey(p[0]), p[1], 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return engineerr.NewStorageError(engineerr.StorageEngine, err)
	}
	r.puts.Add(int64(len(pairs)))
	return nil
}

func (r *RedisEngine) BatchDelete(ctx context.Context, keys [][]byte, opts Options) error {
	pipe := r.client.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, r.prefixedKey(k))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return engineerr.NewStorageError(engineerr.StorageEngine, err)
	}
	r.deletes.Add(int64(len(keys)))
	return nil
}

// BeginTransaction is unsupported: Redis's cross-key MULTI/EXEC semantics
// don't map cleanly onto this package's snapshot-plus-buffered-write
// Transaction shape without a WATCH-based optimistic loop, which is out of
// scope for this backend. Callers needing transactions use MemoryEngine or
// route through ExecutePlan's best-effort batch.
func (r *RedisEngine) BeginTransaction(ctx context.Context, opts Options) (Transaction, error) {
	return nil, engineerr.NewStorageError(engineerr.StorageOther, nil)
}

func (r *RedisEngine) ExecutePlan(ctx context.Context, ops []StorageOperation, opts Options) ([]StorageOperationResult, error) {
	results := make([]StorageOperationResult, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case OpGet:
			v, found, err := r.Get(ctx, op.Key, opts)
			results[i] = StorageOperationResult{Value: v, Found: found, Err: err}
		case OpPut:
			results[i] = StorageOperationResult{Err: r.Put(ctx, op.Key, op.Value, opts)}
		case OpDelete:
			results[i] = StorageOperationResult{Err: r.Delete(ctx, op.Key, opts)}
		}
	}
	return results, nil
}

func (r *RedisEngine) HealthCheck(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

func (r *RedisEngine) Stats(ctx context.Context) (StorageStats, error) {
	count := int64(0)
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return StorageStats{
		KeyCount:     count,
		TotalGets:    r.gets.Load(),
		TotalPuts:    r.puts.Load(),
		TotalDeletes: r.deletes.Load(),
	}, nil
}
