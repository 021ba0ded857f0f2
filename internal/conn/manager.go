// Package conn implements the session connection pool of spec §4.4: capped
// creation, LIFO idle reuse, fair polling-wait acquire, and a background
// sweeper for idle/lifetime eviction. The shape (a single owner struct with
// an internal table plus a background goroutine driven by shutdownCh and a
// sync.WaitGroup) is lifted from the teacher's
// internal/database.PoolManager and PoolMonitor.
package conn

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
)

// State is a connection's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateBusy
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateBusy:
		return "Busy"
	default:
		return "Closed"
	}
}

// Connection is a session handle. Clients outside this package hold only
// its ID; the struct itself is owned exclusively by the Manager.
type Connection struct {
	ID            string
	User          string
	Database      string
	State         State
	CreatedAt     time.Time
	LastUsed      time.Time
	RequestCount  int64
	ExecTime      time.Duration
	InTransaction bool
}

// Config configures pool sizing and eviction policy.
type Config struct {
	MaxConnections     int           `mapstructure:"max_connections"`
	MinConnections     int           `mapstructure:"min_connections"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	MaxLifetime        time.Duration `mapstructure:"max_lifetime"`
	AcquireTimeout     time.Duration `mapstructure:"acquire_timeout"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	BusyLeakThreshold   time.Duration `mapstructure:"busy_leak_threshold"`
	acquirePollInterval time.Duration // overridable by tests only
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxConnections:      100,
		MinConnections:      0,
		IdleTimeout:         10 * time.Minute,
		MaxLifetime:         time.Hour,
		AcquireTimeout:      5 * time.Second,
		SweepInterval:       60 * time.Second,
		BusyLeakThreshold:   30 * time.Second,
		acquirePollInterval: 100 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.BusyLeakThreshold <= 0 {
		c.BusyLeakThreshold = d.BusyLeakThreshold
	}
	if c.acquirePollInterval <= 0 {
		c.acquirePollInterval = d.acquirePollInterval
	}
	return c
}

// PoolStats is a point-in-time snapshot of pool composition.
type PoolStats struct {
	Total            int
	Active           int
	Idle             int
	Waiting          int
	AvgAcquireTimeMs float64
	UtilizationPct   float64
}

// Manager owns the connection table and the idle list. Acquisition order
// across its locks is: table -> idle list -> stats, matching spec §5's
// deadlock-avoidance discipline.
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	table     map[string]*Connection
	idleList  []string // LIFO: append/pop from the tail
	waiting   int

	statsMu       sync.Mutex
	acquireCount  int64
	acquireTotal  time.Duration

	shutdownCh chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once

	limiter *AcquireLimiter
}

// NewManager constructs a Manager and starts its background sweeper.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:        cfg,
		logger:     logger,
		table:      make(map[string]*Connection),
		shutdownCh: make(chan struct{}),
	}
	m.wg.Add(1)
	go m.sweepLoop()
	return m
}

// SetAcquireLimiter installs a per-database rate limiter consulted by
// Acquire before it touches the pool at all. A nil limiter (the default)
// disables this backpressure layer.
func (m *Manager) SetAcquireLimiter(l *AcquireLimiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiter = l
}

// Acquire implements the three-step algorithm of spec §4.4: reuse an idle
// connection, else create one under the cap, else poll until
// acquire_timeout elapses. If an AcquireLimiter is installed, a
// rate-exceeded database is rejected immediately as acquire backpressure
// rather than consuming a poll cycle.
func (m *Manager) Acquire(user, database string) (string, error) {
	m.mu.Lock()
	limiter := m.limiter
	m.mu.Unlock()
	if limiter != nil && !limiter.Allow(database) {
		return "", engineerr.ErrAcquireTimeout
	}

	start := time.Now()
	deadline := start.Add(m.cfg.AcquireTimeout)

	for {
		if id, ok := m.tryAcquire(user, database); ok {
			m.recordAcquire(time.Since(start))
			return id, nil
		}
		if m.cfg.AcquireTimeout <= 0 || time.Now().After(deadline) {
			return "", engineerr.ErrAcquireTimeout
		}
		m.mu.Lock()
		m.waiting++
		m.mu.Unlock()
		time.Sleep(m.cfg.acquirePollInterval)
		m.mu.Lock()
		m.waiting--
		m.mu.Unlock()
	}
}

func (m *Manager) tryAcquire(user, database string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.idleList); n > 0 {
		id := m.idleList[n-1]
		m.idleList = m.idleList[:n-1]
		c := m.table[id]
		c.State = StateBusy
		c.User = user
		c.Database = database
		c.LastUsed = time.Now()
		return id, true
	}

	if len(m.table) < m.cfg.MaxConnections {
		now := time.Now()
		c := &Connection{
			ID:        uuid.NewString(),
			User:      user,
			Database:  database,
			State:     StateBusy,
			CreatedAt: now,
			LastUsed:  now,
		}
		m.table[c.ID] = c
		return c.ID, true
	}

	return "", false
}

func (m *Manager) recordAcquire(d time.Duration) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	m.acquireCount++
	m.acquireTotal += d
}

// Release transitions id to Idle and pushes it onto the tail of the idle
// list, where Acquire pops from (LIFO, so reuse keeps hot connections
// hottest). Unknown ids are a silent no-op.
func (m *Manager) Release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.table[id]
	if !ok || c.State == StateClosed {
		return
	}
	c.State = StateIdle
	c.RequestCount++
	c.LastUsed = time.Now()
	m.idleList = append(m.idleList, id)
}

// Close removes id outright, including from the idle list if present.
// Unknown ids are a silent no-op.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.table[id]; !ok {
		return
	}
	delete(m.table, id)
	for i, v := range m.idleList {
		if v == id {
			m.idleList = append(m.idleList[:i], m.idleList[i+1:]...)
			break
		}
	}
}

// Stats returns a snapshot of pool composition.
func (m *Manager) Stats() PoolStats {
	m.mu.Lock()
	total := len(m.table)
	idle := len(m.idleList)
	waiting := m.waiting
	m.mu.Unlock()

	m.statsMu.Lock()
	var avg float64
	if m.acquireCount > 0 {
		avg = float64(m.acquireTotal.Milliseconds()) / float64(m.acquireCount)
	}
	m.statsMu.Unlock()

	s := PoolStats{
		Total:            total,
		Active:           total - idle,
		Idle:             idle,
		Waiting:          waiting,
		AvgAcquireTimeMs: avg,
	}
	if m.cfg.MaxConnections > 0 {
		s.UtilizationPct = float64(s.Active) / float64(m.cfg.MaxConnections)
	}
	return s
}

// Shutdown stops the background sweeper and drops all connections. It is
// safe to call more than once.
func (m *Manager) Shutdown() {
	m.closeOnce.Do(func() {
		close(m.shutdownCh)
	})
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.table = make(map[string]*Connection)
	m.idleList = nil
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("connection sweeper panicked", zap.Any("recover", r))
		}
	}()

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.shutdownCh:
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *Manager) sweepOnce() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, c := range m.table {
		switch {
		case c.State == StateIdle && m.cfg.IdleTimeout > 0 && now.Sub(c.LastUsed) > m.cfg.IdleTimeout:
			delete(m.table, id)
			m.removeFromIdleListLocked(id)
		case m.cfg.MaxLifetime > 0 && now.Sub(c.CreatedAt) > m.cfg.MaxLifetime:
			delete(m.table, id)
			m.removeFromIdleListLocked(id)
		case c.State == StateBusy && !c.InTransaction && now.Sub(c.LastUsed) > m.cfg.BusyLeakThreshold:
			// Safety net for leaked releases: coerce back to Idle rather
			// than dropping a connection that might still be in use.
			// Connections with an open transaction are exempt so a
			// legitimately long-running transaction is never coerced out
			// from under its holder.
			c.State = StateIdle
			c.LastUsed = now
			m.idleList = append(m.idleList, id)
		}
	}
}

func (m *Manager) removeFromIdleListLocked(id string) {
	for i, v := range m.idleList {
		if v == id {
			m.idleList = append(m.idleList[:i], m.idleList[i+1:]...)
			return
		}
	}
}

// MarkTransactionStart flags id as holding an open transaction, exempting it
// from busy-leak coercion until MarkTransactionEnd is called. Unknown ids
// are a silent no-op.
func (m *Manager) MarkTransactionStart(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.table[id]; ok {
		c.InTransaction = true
	}
}

// MarkTransactionEnd clears id's transaction flag.
func (m *Manager) MarkTransactionEnd(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.table[id]; ok {
		c.InTransaction = false
	}
}

// Lookup returns a copy of connection id's current state, for tests and
// diagnostics.
func (m *Manager) Lookup(id string) (Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.table[id]
	if !ok {
		return Connection{}, false
	}
	return *c, true
}
