package storage

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
)

// WithRetry runs op under the linear-backoff policy of spec §4.11: up to
// opts.RetryCount attempts with delay opts.RetryDelay * attempt, retrying
// only StorageErrors whose Retryable() is true.
func WithRetry(op func() error, opts Options, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var lastErr error
	attempts := opts.RetryCount
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		var se *engineerr.StorageError
		if !errors.As(lastErr, &se) || !se.Retryable() {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		logger.Warn("storage operation retrying", zap.Int("attempt", attempt), zap.Error(lastErr))
		time.Sleep(opts.RetryDelay * time.Duration(attempt))
	}
	return lastErr
}
