// Package cache implements the plan/result/table-stats caches of spec §4.3:
// TTL-swept, hit-rate tracked maps keyed by string. The bounded backing
// store for the plan and result caches is hashicorp/golang-lru/v2, the same
// library the teacher's adaptive-sampling and MVP distributions depend on
// for hot-path lookup tables; table stats have no capacity bound (spec: "no
// TTL eviction within cleanup, only global clear").
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/database-intelligence/sqlexec/pkg/types"
)

// CachedPlan is a cached OptimizedPlan with access bookkeeping.
type CachedPlan struct {
	Plan        types.OptimizedPlan
	CreatedAt   time.Time
	AccessCount int64
}

// CachedResult is a cached QueryResult with access bookkeeping.
type CachedResult struct {
	Result      *types.QueryResult
	CreatedAt   time.Time
	AccessCount int64
}

// TableStats is cached cardinality/size information for one table.
type TableStats struct {
	RowCount     int64
	PageCount    int64
	AvgRowSize   float64
	LastAnalyzed time.Time
}

// Config configures cache capacity.
type Config struct {
	PlanCacheSize   int `mapstructure:"plan_cache_size"`
	ResultCacheSize int `mapstructure:"result_cache_size"`
}

func (c Config) withDefaults() Config {
	if c.PlanCacheSize <= 0 {
		c.PlanCacheSize = 1024
	}
	if c.ResultCacheSize <= 0 {
		c.ResultCacheSize = 1024
	}
	return c
}

type counters struct {
	hits    int64
	misses  int64
	lookups int64
}

// Manager owns the three caches. Each map is protected by its own
// single-writer lock; readers take a shared lock. A cache read never takes
// two cache locks together (spec §5 deadlock avoidance).
type Manager struct {
	logger *zap.Logger

	plansMu sync.RWMutex
	plans   *lru.Cache[string, *CachedPlan]
	planCtr counters
	planMu  sync.Mutex // guards planCtr

	resultsMu sync.RWMutex
	results   *lru.Cache[string, *CachedResult]
	resultCtr counters
	resultMu  sync.Mutex // guards resultCtr

	statsMu sync.RWMutex
	stats   map[string]*TableStats
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	PlanCacheHits     int64
	PlanCacheMisses   int64
	PlanCacheLookups  int64
	PlanHitRate       float64
	ResultCacheHits   int64
	ResultCacheMisses int64
	ResultCacheLookups int64
	ResultHitRate     float64
	TableStatsCount   int
}

// NewManager constructs a Manager with the given capacities.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	plans, _ := lru.New[string, *CachedPlan](cfg.PlanCacheSize)
	results, _ := lru.New[string, *CachedResult](cfg.ResultCacheSize)
	return &Manager{
		logger:  logger,
		plans:   plans,
		results: results,
		stats:   make(map[string]*TableStats),
	}
}

// CachePlan stores plan under key, replacing any existing entry.
func (m *Manager) CachePlan(key string, plan types.OptimizedPlan) {
	m.plansMu.Lock()
	defer m.plansMu.Unlock()
	m.plans.Add(key, &CachedPlan{Plan: plan, CreatedAt: time.Now()})
}

// GetPlan looks up key, bumping access_count on hit and the lookup/hit/miss
// counters unconditionally.
func (m *Manager) GetPlan(key string) (types.OptimizedPlan, bool) {
	m.plansMu.RLock()
	entry, ok := m.plans.Get(key)
	m.plansMu.RUnlock()

	m.planMu.Lock()
	m.planCtr.lookups++
	if ok {
		m.planCtr.hits++
	} else {
		m.planCtr.misses++
	}
	m.planMu.Unlock()

	if !ok {
		return types.OptimizedPlan{}, false
	}
	m.plansMu.Lock()
	entry.AccessCount++
	m.plansMu.Unlock()
	return entry.Plan, true
}

// CacheResult stores result under key.
func (m *Manager) CacheResult(key string, result *types.QueryResult) {
	m.resultsMu.Lock()
	defer m.resultsMu.Unlock()
	m.results.Add(key, &CachedResult{Result: result, CreatedAt: time.Now()})
}

// GetResult looks up key, mirroring GetPlan's counter semantics.
func (m *Manager) GetResult(key string) (*types.QueryResult, bool) {
	m.resultsMu.RLock()
	entry, ok := m.results.Get(key)
	m.resultsMu.RUnlock()

	m.resultMu.Lock()
	m.resultCtr.lookups++
	if ok {
		m.resultCtr.hits++
	} else {
		m.resultCtr.misses++
	}
	m.resultMu.Unlock()

	if !ok {
		return nil, false
	}
	m.resultsMu.Lock()
	entry.AccessCount++
	m.resultsMu.Unlock()
	return entry.Result, true
}

// CacheTableStats stores stats for table, keyed by table name.
func (m *Manager) CacheTableStats(table string, stats TableStats) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	stats.LastAnalyzed = time.Now()
	m.stats[table] = &stats
}

// GetTableStats returns the cached stats for table, if any.
func (m *Manager) GetTableStats(table string) (TableStats, bool) {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()
	s, ok := m.stats[table]
	if !ok {
		return TableStats{}, false
	}
	return *s, true
}

// Cleanup removes plan and result entries older than maxAge. Table stats
// are not subject to TTL cleanup — only ClearAll empties them. maxAge <= 0
// empties the plan and result caches.
func (m *Manager) Cleanup(maxAge time.Duration) {
	now := time.Now()

	m.plansMu.Lock()
	for _, key := range m.plans.Keys() {
		entry, ok := m.plans.Peek(key)
		if ok && (maxAge <= 0 || now.Sub(entry.CreatedAt) > maxAge) {
			m.plans.Remove(key)
		}
	}
	m.plansMu.Unlock()

	m.resultsMu.Lock()
	for _, key := range m.results.Keys() {
		entry, ok := m.results.Peek(key)
		if ok && (maxAge <= 0 || now.Sub(entry.CreatedAt) > maxAge) {
			m.results.Remove(key)
		}
	}
	m.resultsMu.Unlock()

	m.logger.Debug("cache cleanup complete", zap.Duration("max_age", maxAge))
}

// ClearAll empties all three caches.
func (m *Manager) ClearAll() {
	m.plansMu.Lock()
	m.plans.Purge()
	m.plansMu.Unlock()

	m.resultsMu.Lock()
	m.results.Purge()
	m.resultsMu.Unlock()

	m.statsMu.Lock()
	m.stats = make(map[string]*TableStats)
	m.statsMu.Unlock()
}

// Stats returns a snapshot including computed hit rates (0 when there have
// been no lookups).
func (m *Manager) Stats() Stats {
	m.planMu.Lock()
	planCtr := m.planCtr
	m.planMu.Unlock()

	m.resultMu.Lock()
	resultCtr := m.resultCtr
	m.resultMu.Unlock()

	m.statsMu.RLock()
	tableCount := len(m.stats)
	m.statsMu.RUnlock()

	s := Stats{
		PlanCacheHits:      planCtr.hits,
		PlanCacheMisses:    planCtr.misses,
		PlanCacheLookups:   planCtr.lookups,
		ResultCacheHits:    resultCtr.hits,
		ResultCacheMisses:  resultCtr.misses,
		ResultCacheLookups: resultCtr.lookups,
		TableStatsCount:    tableCount,
	}
	if planCtr.lookups > 0 {
		s.PlanHitRate = float64(planCtr.hits) / float64(planCtr.lookups)
	}
	if resultCtr.lookups > 0 {
		s.ResultHitRate = float64(resultCtr.hits) / float64(resultCtr.lookups)
	}
	return s
}
