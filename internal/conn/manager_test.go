package conn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxConnections = 2
	cfg.AcquireTimeout = 300 * time.Millisecond
	cfg.acquirePollInterval = 10 * time.Millisecond
	cfg.SweepInterval = time.Hour
	return cfg
}

func TestAcquireCreatesUpToMax(t *testing.T) {
	m := NewManager(testConfig(), nil)
	defer m.Shutdown()

	id1, err := m.Acquire("alice", "db")
	require.NoError(t, err)
	id2, err := m.Acquire("bob", "db")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	stats := m.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Active)
}

func TestAcquireTimesOutWhenExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 0
	m := NewManager(cfg, nil)
	defer m.Shutdown()

	_, err := m.Acquire("alice", "db")
	require.ErrorIs(t, err, engineerr.ErrAcquireTimeout)
}

func TestReleaseThenAcquireReusesLIFO(t *testing.T) {
	m := NewManager(testConfig(), nil)
	defer m.Shutdown()

	id1, err := m.Acquire("alice", "db")
	require.NoError(t, err)

	m.Release(id1)

	id2, err := m.Acquire("bob", "db")
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "LIFO reuse must return the just-released connection")
}

func TestCloseUnknownIDIsNoop(t *testing.T) {
	m := NewManager(testConfig(), nil)
	defer m.Shutdown()
	assert.NotPanics(t, func() { m.Close("does-not-exist") })
}

func TestConnectionInvariantActiveIdleSumToTotal(t *testing.T) {
	m := NewManager(testConfig(), nil)
	defer m.Shutdown()

	id1, _ := m.Acquire("a", "d")
	_, _ = m.Acquire("b", "d")
	m.Release(id1)

	stats := m.Stats()
	assert.Equal(t, stats.Total, stats.Active+stats.Idle)
}

func TestBusyLeakSweepExemptsOpenTransactions(t *testing.T) {
	cfg := testConfig()
	cfg.BusyLeakThreshold = 10 * time.Millisecond
	cfg.SweepInterval = 5 * time.Millisecond
	m := NewManager(cfg, nil)
	defer m.Shutdown()

	id, err := m.Acquire("alice", "db")
	require.NoError(t, err)
	m.MarkTransactionStart(id)

	time.Sleep(50 * time.Millisecond)

	c, ok := m.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, StateBusy, c.State, "an open transaction must not be coerced to Idle by the busy-leak sweep")
}

func TestShutdownIsIdempotentAndDropsConnections(t *testing.T) {
	m := NewManager(testConfig(), nil)
	_, err := m.Acquire("a", "d")
	require.NoError(t, err)

	m.Shutdown()
	m.Shutdown()

	stats := m.Stats()
	assert.Zero(t, stats.Total)
}
