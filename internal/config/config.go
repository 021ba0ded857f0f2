// Package config declares the plain configuration surface of spec §6: one
// struct per option group, a DefaultConfig constructor, and a Validate pass
// returning engineerr.ConfigurationInvalidError. Loading these structs from
// a file or environment is explicitly out of scope; callers populate and
// validate a Config before wiring it into the core components.
package config

import (
	"time"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
)

// ShardingStrategy enumerates the key-routing strategies §6 names.
type ShardingStrategy string

const (
	ShardingHash       ShardingStrategy = "Hash"
	ShardingRange      ShardingStrategy = "Range"
	ShardingRoundRobin ShardingStrategy = "RoundRobin"
	ShardingConsistent ShardingStrategy = "ConsistentHash"
	ShardingDirectory  ShardingStrategy = "Directory"
)

// ConnectionPool groups the Connection Manager's tunables (spec §4.4).
type ConnectionPool struct {
	MaxConnections   int           `mapstructure:"max_connections"`
	MinConnections   int           `mapstructure:"min_connections"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout_s"`
	MaxLifetime      time.Duration `mapstructure:"max_lifetime_s"`
	AcquireTimeout   time.Duration `mapstructure:"acquire_timeout_s"`
}

// WorkerPool groups the worker pool and priority-intake tunables (§4.5/§4.6).
type WorkerPool struct {
	MinWorkerThreads        int     `mapstructure:"min_worker_threads"`
	MaxWorkerThreads        int     `mapstructure:"max_worker_threads"`
	InitialWorkerThreads    int     `mapstructure:"initial_worker_threads"`
	TaskQueueSize           int     `mapstructure:"task_queue_size"`
	EnableTaskPriority      bool    `mapstructure:"enable_task_priority"`
	MaxParallelism          int     `mapstructure:"max_parallelism"`
	EnableDynamicAdjustment bool    `mapstructure:"enable_dynamic_adjustment"`
	CPUUsageThreshold       float64 `mapstructure:"cpu_usage_threshold"`
	MemoryUsageThreshold    float64 `mapstructure:"memory_usage_threshold"`
}

// ParallelExecutor groups the query executor's phase tunables (§4.10).
type ParallelExecutor struct {
	DefaultParallelism int           `mapstructure:"default_parallelism"`
	QueryTimeout       time.Duration `mapstructure:"query_timeout_s"`
}

// Cache groups the plan/result cache's tunables (§4.3).
type Cache struct {
	EnableQueryPlanCache bool          `mapstructure:"enable_query_plan_cache"`
	QueryPlanCacheSize   int           `mapstructure:"query_plan_cache_size"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl_seconds"`
}

// Memory groups the memory manager's tunables (§4.1).
type Memory struct {
	WorkMemoryMB         int     `mapstructure:"work_memory_mb"`
	SharedMemoryMB       int     `mapstructure:"shared_memory_mb"`
	MemoryUsageThreshold float64 `mapstructure:"memory_usage_threshold"`
}

// Executor groups the execution-model selector's gating tunables (§4.8/§4.9).
type Executor struct {
	EnableVolcanoExecutor    bool `mapstructure:"enable_volcano_executor"`
	EnablePipelineExecutor   bool `mapstructure:"enable_pipeline_executor"`
	EnableVectorizedExecutor bool `mapstructure:"enable_vectorized_executor"`
	EnableMPPExecutor        bool `mapstructure:"enable_mpp_executor"`
	VectorizationThreshold   int  `mapstructure:"vectorization_threshold"`
}

// Sharding groups the shard-scan routing tunables (§4.7).
type Sharding struct {
	ShardingStrategy ShardingStrategy `mapstructure:"sharding_strategy"`
	ShardCount       int              `mapstructure:"shard_count"`
}

// Config is the full recognized option surface of spec §6.
type Config struct {
	ConnectionPool   ConnectionPool   `mapstructure:"connection_pool"`
	WorkerPool       WorkerPool       `mapstructure:"worker_pool"`
	ParallelExecutor ParallelExecutor `mapstructure:"parallel_executor"`
	Cache            Cache            `mapstructure:"cache"`
	Memory           Memory           `mapstructure:"memory"`
	Executor         Executor         `mapstructure:"executor"`
	Sharding         Sharding         `mapstructure:"sharding"`
}

// DefaultConfig returns the aggregate's own defaults. They are not derived
// from the component packages' DefaultConfig functions and differ from
// several of them (conn.DefaultConfig's idle and acquire timeouts,
// workerpool.DefaultConfig's worker and queue bounds, memory.DefaultConfig's
// caps); this is the aggregate a caller populates from its own source and
// then validates.
func DefaultConfig() *Config {
	return &Config{
		ConnectionPool: ConnectionPool{
			MaxConnections: 100,
			MinConnections: 5,
			IdleTimeout:    5 * time.Minute,
			MaxLifetime:    time.Hour,
			AcquireTimeout: 10 * time.Second,
		},
		WorkerPool: WorkerPool{
			MinWorkerThreads:        2,
			MaxWorkerThreads:        32,
			InitialWorkerThreads:    4,
			TaskQueueSize:           1024,
			EnableTaskPriority:      true,
			MaxParallelism:          8,
			EnableDynamicAdjustment: true,
			CPUUsageThreshold:       0.85,
			MemoryUsageThreshold:    0.85,
		},
		ParallelExecutor: ParallelExecutor{
			DefaultParallelism: 4,
			QueryTimeout:       30 * time.Second,
		},
		Cache: Cache{
			EnableQueryPlanCache: true,
			QueryPlanCacheSize:   1000,
			CacheTTL:             10 * time.Minute,
		},
		Memory: Memory{
			WorkMemoryMB:         64,
			SharedMemoryMB:       512,
			MemoryUsageThreshold: 0.9,
		},
		Executor: Executor{
			EnableVolcanoExecutor:    true,
			EnablePipelineExecutor:   true,
			EnableVectorizedExecutor: true,
			EnableMPPExecutor:        true,
			VectorizationThreshold:   10000,
		},
		Sharding: Sharding{
			ShardingStrategy: ShardingHash,
			ShardCount:       16,
		},
	}
}

// Validate checks every group for the positivity/range constraints spec §6
// implies; it returns the first violation found as an
// engineerr.ConfigurationInvalidError.
func (c *Config) Validate() error {
	if c.ConnectionPool.MaxConnections <= 0 {
		return &engineerr.ConfigurationInvalidError{Field: "connection_pool.max_connections", Reason: "must be positive"}
	}
	if c.ConnectionPool.MinConnections < 0 {
		return &engineerr.ConfigurationInvalidError{Field: "connection_pool.min_connections", Reason: "must not be negative"}
	}
	if c.ConnectionPool.MinConnections > c.ConnectionPool.MaxConnections {
		return &engineerr.ConfigurationInvalidError{Field: "connection_pool.min_connections", Reason: "must not exceed max_connections"}
	}
	if c.ConnectionPool.AcquireTimeout <= 0 {
		return &engineerr.ConfigurationInvalidError{Field: "connection_pool.acquire_timeout_s", Reason: "must be positive"}
	}

	if c.WorkerPool.MinWorkerThreads <= 0 {
		return &engineerr.ConfigurationInvalidError{Field: "worker_pool.min_worker_threads", Reason: "must be positive"}
	}
	if c.WorkerPool.MaxWorkerThreads < c.WorkerPool.MinWorkerThreads {
		return &engineerr.ConfigurationInvalidError{Field: "worker_pool.max_worker_threads", Reason: "must not be less than min_worker_threads"}
	}
	if c.WorkerPool.InitialWorkerThreads < c.WorkerPool.MinWorkerThreads || c.WorkerPool.InitialWorkerThreads > c.WorkerPool.MaxWorkerThreads {
		return &engineerr.ConfigurationInvalidError{Field: "worker_pool.initial_worker_threads", Reason: "must fall within [min_worker_threads, max_worker_threads]"}
	}
	if c.WorkerPool.TaskQueueSize <= 0 {
		return &engineerr.ConfigurationInvalidError{Field: "worker_pool.task_queue_size", Reason: "must be positive"}
	}
	if c.WorkerPool.MaxParallelism <= 0 {
		return &engineerr.ConfigurationInvalidError{Field: "worker_pool.max_parallelism", Reason: "must be positive"}
	}
	if c.WorkerPool.CPUUsageThreshold <= 0 || c.WorkerPool.CPUUsageThreshold > 1 {
		return &engineerr.ConfigurationInvalidError{Field: "worker_pool.cpu_usage_threshold", Reason: "must be in (0, 1]"}
	}
	if c.WorkerPool.MemoryUsageThreshold <= 0 || c.WorkerPool.MemoryUsageThreshold > 1 {
		return &engineerr.ConfigurationInvalidError{Field: "worker_pool.memory_usage_threshold", Reason: "must be in (0, 1]"}
	}

	if c.ParallelExecutor.DefaultParallelism <= 0 {
		return &engineerr.ConfigurationInvalidError{Field: "parallel_executor.default_parallelism", Reason: "must be positive"}
	}
	if c.ParallelExecutor.DefaultParallelism > c.WorkerPool.MaxParallelism {
		return &engineerr.ConfigurationInvalidError{Field: "parallel_executor.default_parallelism", Reason: "must not exceed worker_pool.max_parallelism"}
	}
	if c.ParallelExecutor.QueryTimeout <= 0 {
		return &engineerr.ConfigurationInvalidError{Field: "parallel_executor.query_timeout_s", Reason: "must be positive"}
	}

	if c.Cache.EnableQueryPlanCache && c.Cache.QueryPlanCacheSize <= 0 {
		return &engineerr.ConfigurationInvalidError{Field: "cache.query_plan_cache_size", Reason: "must be positive when caching is enabled"}
	}
	if c.Cache.CacheTTL < 0 {
		return &engineerr.ConfigurationInvalidError{Field: "cache.cache_ttl_seconds", Reason: "must not be negative"}
	}

	if c.Memory.WorkMemoryMB <= 0 {
		return &engineerr.ConfigurationInvalidError{Field: "memory.work_memory_mb", Reason: "must be positive"}
	}
	if c.Memory.SharedMemoryMB <= 0 {
		return &engineerr.ConfigurationInvalidError{Field: "memory.shared_memory_mb", Reason: "must be positive"}
	}
	if c.Memory.MemoryUsageThreshold <= 0 || c.Memory.MemoryUsageThreshold > 1 {
		return &engineerr.ConfigurationInvalidError{Field: "memory.memory_usage_threshold", Reason: "must be in (0, 1]"}
	}

	if c.Executor.VectorizationThreshold < 0 {
		return &engineerr.ConfigurationInvalidError{Field: "executor.vectorization_threshold", Reason: "must not be negative"}
	}
	if !c.Executor.EnableVolcanoExecutor && !c.Executor.EnablePipelineExecutor && !c.Executor.EnableVectorizedExecutor && !c.Executor.EnableMPPExecutor {
		return &engineerr.ConfigurationInvalidError{Field: "executor", Reason: "at least one execution model must be enabled"}
	}

	switch c.Sharding.ShardingStrategy {
	case ShardingHash, ShardingRange, ShardingRoundRobin, ShardingConsistent, ShardingDirectory:
	default:
		return &engineerr.ConfigurationInvalidError{Field: "sharding.sharding_strategy", Reason: "unrecognized strategy"}
	}
	if c.Sharding.ShardCount <= 0 {
		return &engineerr.ConfigurationInvalidError{Field: "sharding.shard_count", Reason: "must be positive"}
	}

	return nil
}
