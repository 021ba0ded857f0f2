package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/database-intelligence/sqlexec/pkg/types"
)

func TestPlanCacheHitMissCounters(t *testing.T) {
	m := NewManager(Config{}, nil)

	_, ok := m.GetPlan("missing")
	assert.False(t, ok)

	m.CachePlan("q1", types.OptimizedPlan{EstimatedRows: 10})
	plan, ok := m.GetPlan("q1")
	assert.True(t, ok)
	assert.Equal(t, int64(10), plan.EstimatedRows)

	stats := m.Stats()
	assert.Equal(t, int64(2), stats.PlanCacheLookups)
	assert.Equal(t, int64(1), stats.PlanCacheHits)
	assert.Equal(t, int64(1), stats.PlanCacheMisses)
	assert.Equal(t, stats.PlanCacheHits+stats.PlanCacheMisses, stats.PlanCacheLookups)
	assert.InDelta(t, 0.5, stats.PlanHitRate, 0.0001)
}

func TestCleanupZeroMaxAgeEmptiesCaches(t *testing.T) {
	m := NewManager(Config{}, nil)
	m.CachePlan("q1", types.OptimizedPlan{})
	m.CacheResult("r1", types.NewQueryResult([]string{"a"}))

	m.Cleanup(0)

	_, ok := m.GetPlan("q1")
	assert.False(t, ok)
	_, ok = m.GetResult("r1")
	assert.False(t, ok)
}

func TestCleanupRespectsMaxAge(t *testing.T) {
	m := NewManager(Config{}, nil)
	m.CachePlan("fresh", types.OptimizedPlan{})

	m.Cleanup(time.Hour)

	_, ok := m.GetPlan("fresh")
	assert.True(t, ok)
}

func TestTableStatsHaveNoTTLEviction(t *testing.T) {
	m := NewManager(Config{}, nil)
	m.CacheTableStats("orders", TableStats{RowCount: 100})

	m.Cleanup(0)
	_, ok := m.GetTableStats("orders")
	assert.True(t, ok, "table stats survive cleanup, only ClearAll empties them")

	m.ClearAll()
	_, ok = m.GetTableStats("orders")
	assert.False(t, ok)
}

func TestHitRateZeroWithNoLookups(t *testing.T) {
	m := NewManager(Config{}, nil)
	stats := m.Stats()
	assert.Zero(t, stats.PlanHitRate)
	assert.Zero(t, stats.ResultHitRate)
}
