// Package storage implements the Storage-Engine Capability of spec §4.11: a
// uniform key/value/transaction/plan-execution interface, an in-memory
// backend grounded on the teacher's scaling.MemoryStorage, and a Redis
// backend grounded on scaling.RedisStorage standing in for a remote KV
// engine. WithRetry applies the linear-backoff retry policy §4.11 specifies
// to an operation against either backend; the engines do not retry on
// their own.
package storage

import (
	"context"
	"time"
)

// Options carries per-call timeout, consistency, and retry preferences.
type Options struct {
	Timeout          time.Duration
	ConsistencyLevel ConsistencyLevel
	RetryCount       int
	RetryDelay       time.Duration
}

// ConsistencyLevel is the read/write consistency a caller requests.
type ConsistencyLevel int

const (
	ConsistencyEventual ConsistencyLevel = iota
	ConsistencyStrong
)

// DefaultOptions returns the client's default retry policy: three attempts
// in all (up to two retries), 50ms linear backoff.
func DefaultOptions() Options {
	return Options{Timeout: 5 * time.Second, RetryCount: 3, RetryDelay: 50 * time.Millisecond}
}

// StorageOperationKind enumerates the verbs execute_plan batches.
type StorageOperationKind int

const (
	OpGet StorageOperationKind = iota
	OpPut
	OpDelete
)

// StorageOperation is one entry of an execute_plan batch.
type StorageOperation struct {
	Kind  StorageOperationKind
	Key   []byte
	Value []byte
}

// StorageOperationResult is execute_plan's per-operation outcome. Value is
// populated only for a successful OpGet.
type StorageOperationResult struct {
	Value []byte
	Found bool
	Err   error
}

// StorageStats summarizes engine size and request volume.
type StorageStats struct {
	KeyCount     int64
	TotalGets    int64
	TotalPuts    int64
	TotalDeletes int64
}

// Transaction buffers mutations against a snapshot taken at BeginTransaction
// time; reads inside the transaction observe its own buffered writes
// (read-your-writes) and otherwise the base snapshot.
type Transaction interface {
	Get(ctx context.Context, key []byte, opts Options) ([]byte, bool, error)
	Put(ctx context.Context, key, value []byte, opts Options) error
	Delete(ctx context.Context, key []byte, opts Options) error
	Scan(ctx context.Context, start, end []byte, limit int, opts Options) ([][2][]byte, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Engine is the uniform capability every storage backend exposes.
//
// execute_plan's atomicity is explicitly documented here rather than left
// implicit, per spec §9's open question: execute_plan is a best-effort
// batch, NOT a transaction — operations run independently in submission
// order and a failed operation does not roll back its predecessors. Callers
// needing atomicity must use BeginTransaction instead.
type Engine interface {
	Get(ctx context.Context, key []byte, opts Options) ([]byte, bool, error)
	Put(ctx context.Context, key, value []byte, opts Options) error
	Delete(ctx context.Context, key []byte, opts Options) error
	Scan(ctx context.Context, start, end []byte, limit int, opts Options) ([][2][]byte, error)
	BatchGet(ctx context.Context, keys [][]byte, opts Options) ([][]byte, []bool, error)
	BatchPut(ctx context.Context, pairs [][2][]byte, opts Options) error
	BatchDelete(ctx context.Context, keys [][]byte, opts Options) error
	BeginTransaction(ctx context.Context, opts Options) (Transaction, error)
	ExecutePlan(ctx context.Context, ops []StorageOperation, opts Options) ([]StorageOperationResult, error)
	HealthCheck(ctx context.Context) bool
	Stats(ctx context.Context) (StorageStats, error)
}
