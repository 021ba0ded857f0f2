package conn

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AcquireLimiterConfig configures the per-database token-bucket that gates
// Acquire before it ever touches the pool, adapted from the teacher's
// DatabaseRateLimiter (internal/ratelimit/limiter.go): same adaptive
// rejection-rate backoff, narrowed to the single database/RPS/burst axis
// Acquire needs instead of the teacher's schedule-of-day overrides.
type AcquireLimiterConfig struct {
	DefaultRPS     float64 `mapstructure:"default_rps"`
	DefaultBurst   int     `mapstructure:"default_burst"`
	EnableAdaptive bool    `mapstructure:"enable_adaptive"`
	MinRPS         float64 `mapstructure:"min_rps"`
	MaxRPS         float64 `mapstructure:"max_rps"`
}

type databaseLimiter struct {
	limiter      *rate.Limiter
	mu           sync.Mutex
	successCount int64
	rejectCount  int64
	lastAdjusted time.Time
	currentRPS   float64
}

// AcquireLimiter gates connection acquisition per database with a token
// bucket, adaptively tightening or loosening the rate based on its own
// observed rejection rate.
type AcquireLimiter struct {
	cfg      AcquireLimiterConfig
	logger   *zap.Logger
	mu       sync.RWMutex
	limiters map[string]*databaseLimiter
}

// NewAcquireLimiter constructs a limiter. A zero-value DefaultRPS disables
// limiting entirely (Allow always returns true).
func NewAcquireLimiter(cfg AcquireLimiterConfig, logger *zap.Logger) *AcquireLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcquireLimiter{cfg: cfg, logger: logger, limiters: make(map[string]*databaseLimiter)}
}

// Allow reports whether an Acquire for database may proceed.
func (l *AcquireLimiter) Allow(database string) bool {
	if l.cfg.DefaultRPS <= 0 {
		return true
	}
	dl := l.getOrCreate(database)
	dl.mu.Lock()
	defer dl.mu.Unlock()
	allowed := dl.limiter.Allow()
	if allowed {
		dl.successCount++
	} else {
		dl.rejectCount++
		l.logger.Debug("acquire rate limit exceeded", zap.String("database", database))
	}
	if l.cfg.EnableAdaptive {
		l.maybeAdjustLocked(database, dl)
	}
	return allowed
}

func (l *AcquireLimiter) getOrCreate(database string) *databaseLimiter {
	l.mu.RLock()
	dl, ok := l.limiters[database]
	l.mu.RUnlock()
	if ok {
		return dl
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if dl, ok = l.limiters[database]; ok {
		return dl
	}
	dl = &databaseLimiter{
		limiter:      rate.NewLimiter(rate.Limit(l.cfg.DefaultRPS), l.cfg.DefaultBurst),
		currentRPS:   l.cfg.DefaultRPS,
		lastAdjusted: time.Now(),
	}
	l.limiters[database] = dl
	return dl
}

// maybeAdjustLocked tightens the rate after a run of rejections and relaxes
// it after a clean run, re-evaluated at most once every 30s per database.
// Caller holds dl.mu.
func (l *AcquireLimiter) maybeAdjustLocked(database string, dl *databaseLimiter) {
	if time.Since(dl.lastAdjusted) < 30*time.Second {
		return
	}
	total := dl.successCount + dl.rejectCount
	if total < 100 {
		return
	}
	rejectionRate := float64(dl.rejectCount) / float64(total)
	newRPS := dl.currentRPS
	switch {
	case rejectionRate > 0.1:
		newRPS = dl.currentRPS * 0.9
	case rejectionRate < 0.01:
		newRPS = dl.currentRPS * 1.05
	default:
		return
	}
	if newRPS < l.cfg.MinRPS {
		newRPS = l.cfg.MinRPS
	}
	if l.cfg.MaxRPS > 0 && newRPS > l.cfg.MaxRPS {
		newRPS = l.cfg.MaxRPS
	}
	dl.limiter.SetLimit(rate.Limit(newRPS))
	dl.currentRPS = newRPS
	dl.lastAdjusted = time.Now()
	dl.successCount, dl.rejectCount = 0, 0
	l.logger.Info("adjusted acquire rate limit", zap.String("database", database), zap.Float64("new_rps", newRPS), zap.Float64("rejection_rate", rejectionRate))
}
