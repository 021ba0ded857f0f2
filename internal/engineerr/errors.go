// Package engineerr declares the behavioral error kinds of the execution
// engine (spec §7). Errors are sentinel values or small typed wrappers so
// callers can classify failures with errors.Is / errors.As rather than
// string matching.
package engineerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions with no interesting payload.
var (
	// ErrAcquireTimeout: the connection pool could not satisfy an acquire
	// within acquire_timeout. Retryable by the caller.
	ErrAcquireTimeout = errors.New("connection pool: acquire timed out")

	// ErrExecutionTimeout: a request's deadline was reached before or
	// during execution. Non-retryable by the core.
	ErrExecutionTimeout = errors.New("request: execution timeout")

	// ErrQueueFull: the request queue is at capacity.
	ErrQueueFull = errors.New("executor: request queue full")

	// ErrMemoryExceeded / ErrCpuExceeded: admission rejected due to monitor
	// readings. Retryable after backoff.
	ErrMemoryExceeded = errors.New("executor: memory threshold exceeded")
	ErrCpuExceeded    = errors.New("executor: cpu threshold exceeded")

	// ErrInsufficientMemory: an allocation request exceeded its pool cap.
	// Fatal for the operator that requested it.
	ErrInsufficientMemory = errors.New("memory manager: insufficient memory")

	// ErrInvalidParallelism: adjust_parallelism was called with a target
	// outside its bounds ([min_workers, max_workers] for the worker pool,
	// [1, max_parallelism] for the parallel executor) or, on the executor,
	// while dynamic adjustment is disabled.
	ErrInvalidParallelism = errors.New("worker pool: invalid parallelism")

	// ErrNotFound: a storage lookup (or page fetch) found nothing for the
	// given key/id. Scan operators treat this as end-of-range, not fatal.
	ErrNotFound = errors.New("storage: not found")
)

// InvalidPlanError: the selected execution model does not support a plan
// node. The adapter logs this and skips the node; execution continues.
type InvalidPlanError struct {
	Model string
	Node  string
}

func (e *InvalidPlanError) Error() string {
	return fmt.Sprintf("invalid plan: model %s does not support node %s", e.Model, e.Node)
}

// ConfigurationInvalidError: validation caught a zero/negative value where
// a positive one is required.
type ConfigurationInvalidError struct {
	Field  string
	Reason string
}

func (e *ConfigurationInvalidError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// StorageErrorKind classifies a StorageError for the client retry policy.
type StorageErrorKind int

const (
	StorageConnection StorageErrorKind = iota
	StorageEngine
	StorageTransactionConflict
	StorageNotFound
	StorageOther
)

func (k StorageErrorKind) String() string {
	switch k {
	case StorageConnection:
		return "Connection"
	case StorageEngine:
		return "Engine"
	case StorageTransactionConflict:
		return "TransactionConflict"
	case StorageNotFound:
		return "NotFound"
	default:
		return "Other"
	}
}

// StorageError wraps an engine-level storage failure. Connection and Engine
// kinds are retryable under the client's linear-backoff policy;
// TransactionConflict and NotFound are not.
type StorageError struct {
	Kind StorageErrorKind
	Err  error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage error (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("storage error (%s)", e.Kind)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Retryable reports whether the client retry policy should retry this kind
// of storage error.
func (e *StorageError) Retryable() bool {
	return e.Kind == StorageConnection || e.Kind == StorageEngine
}

// NewStorageError constructs a StorageError of the given kind.
func NewStorageError(kind StorageErrorKind, err error) *StorageError {
	return &StorageError{Kind: kind, Err: err}
}

// IsInvalidPlan reports whether err is an InvalidPlanError.
func IsInvalidPlan(err error) bool {
	var ipe *InvalidPlanError
	return errors.As(err, &ipe)
}

// IsStorageError reports whether err wraps a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
