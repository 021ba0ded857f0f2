// Package memory implements the segmented byte-accounting manager of
// spec §4.1: two pools (work and shared), each gated by a configured cap,
// each exposing gross allocate/free counters. A single mutex covers the
// stats counters — allocations are not on the hot path at this layer, so a
// lock-free structure would be premature (spec §5).
package memory

import (
	"sync"

	"go.uber.org/zap"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
)

const (
	DefaultWorkCapBytes   = 4 * 1024 * 1024   // 4 MiB
	DefaultSharedCapBytes = 128 * 1024 * 1024 // 128 MiB
)

// PoolStats is a snapshot of one pool's gross counters. The manager reports
// gross totals, not net residency: upper layers derive net usage externally
// from Allocated - FreedBytes, which keeps this counter lock-free-friendly.
type PoolStats struct {
	CapBytes      int64
	Allocated     int64
	Allocations   int64
	Frees         int64
	FreedBytes    int64
}

// Stats is a snapshot of both pools.
type Stats struct {
	Work   PoolStats
	Shared PoolStats
}

type pool struct {
	cap         int64
	allocated   int64
	allocations int64
	frees       int64
	freedBytes  int64
}

func (p *pool) stats() PoolStats {
	return PoolStats{
		CapBytes:    p.cap,
		Allocated:   p.allocated,
		Allocations: p.allocations,
		Frees:       p.frees,
		FreedBytes:  p.freedBytes,
	}
}

// Buffer is a zero-initialized byte buffer returned by an allocation. The
// manager owns only the counters; the caller owns the bytes and returns
// them to the counter on Free. Buffer remembers which pool it was drawn
// from so Free can credit the correct pool's counters.
type Buffer struct {
	Bytes []byte
	pool  *pool
}

// Len returns the buffer's byte length.
func (b Buffer) Len() int { return len(b.Bytes) }

// Manager gates allocations against configured caps and accumulates
// statistics for the work and shared memory pools.
type Manager struct {
	mu     sync.Mutex
	work   pool
	shared pool
	logger *zap.Logger
}

// Config configures the memory manager's per-pool caps.
type Config struct {
	WorkCapBytes   int64 `mapstructure:"work_cap_bytes"`
	SharedCapBytes int64 `mapstructure:"shared_cap_bytes"`
}

// DefaultConfig returns the spec's default caps (4 MiB work, 128 MiB shared).
func DefaultConfig() Config {
	return Config{WorkCapBytes: DefaultWorkCapBytes, SharedCapBytes: DefaultSharedCapBytes}
}

// NewManager constructs a Manager. A nil logger defaults to a no-op logger.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WorkCapBytes <= 0 {
		cfg.WorkCapBytes = DefaultWorkCapBytes
	}
	if cfg.SharedCapBytes <= 0 {
		cfg.SharedCapBytes = DefaultSharedCapBytes
	}
	return &Manager{
		work:   pool{cap: cfg.WorkCapBytes},
		shared: pool{cap: cfg.SharedCapBytes},
		logger: logger,
	}
}

// AllocateWork allocates sizeBytes from the work pool, failing if the
// request exceeds the pool cap. The counter is not bumped on failure.
func (m *Manager) AllocateWork(sizeBytes int64) (Buffer, error) {
	return m.allocate(&m.work, sizeBytes, "work")
}

// AllocateShared allocates sizeBytes from the shared pool.
func (m *Manager) AllocateShared(sizeBytes int64) (Buffer, error) {
	return m.allocate(&m.shared, sizeBytes, "shared")
}

func (m *Manager) allocate(p *pool, sizeBytes int64, poolName string) (Buffer, error) {
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if sizeBytes > p.cap {
		m.logger.Warn("allocation exceeds pool cap",
			zap.String("pool", poolName),
			zap.Int64("requested", sizeBytes),
			zap.Int64("cap", p.cap))
		return Buffer{}, engineerr.ErrInsufficientMemory
	}
	p.allocated += sizeBytes
	p.allocations++
	return Buffer{Bytes: make([]byte, sizeBytes), pool: p}, nil
}

// Free returns buf's length to its origin pool's free counters. Free never
// fails; a zero-value Buffer is a harmless no-op.
func (m *Manager) Free(buf Buffer) {
	if buf.pool == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(buf.Bytes))
	buf.pool.frees++
	buf.pool.freedBytes += n
}

// Stats returns a snapshot of both pools' counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Work: m.work.stats(), Shared: m.shared.stats()}
}
