package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/database-intelligence/sqlexec/internal/engineerr"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsZeroMaxConnections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectionPool.MaxConnections = 0
	err := cfg.Validate()
	require.Error(t, err)
	var cie *engineerr.ConfigurationInvalidError
	require.ErrorAs(t, err, &cie)
	assert.Equal(t, "connection_pool.max_connections", cie.Field)
}

func TestValidateRejectsMinExceedingMaxConnections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectionPool.MinConnections = cfg.ConnectionPool.MaxConnections + 1
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsInitialWorkersOutOfBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerPool.InitialWorkerThreads = cfg.WorkerPool.MaxWorkerThreads + 1
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsDefaultParallelismAboveMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ParallelExecutor.DefaultParallelism = cfg.WorkerPool.MaxParallelism + 1
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsThresholdOutOfUnitRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerPool.CPUUsageThreshold = 1.5
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsAllExecutorModelsDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Executor.EnableVolcanoExecutor = false
	cfg.Executor.EnablePipelineExecutor = false
	cfg.Executor.EnableVectorizedExecutor = false
	cfg.Executor.EnableMPPExecutor = false
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownShardingStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sharding.ShardingStrategy = "Unknown"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroShardCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sharding.ShardCount = 0
	require.Error(t, cfg.Validate())
}
