package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, EngineConfig{}, cfg.Engine)
	assert.NotEqual(t, WorkspaceConfig{}, cfg.Workspace)
	assert.NotEqual(t, ExecutionConfig{}, cfg.Execution)
	assert.NotEqual(t, SQLConfig{}, cfg.SQL)
	assert.NotEqual(t, NotebookConfig{}, cfg.Notebook)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, LogConfig{}, cfg.Log)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	require.NoError(t, cfg.Validate())
}

// --- Individual Default*Config functions ---

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()
	assert.Equal(t, "DataVita", cfg.AppName)
	assert.Equal(t, "./spark_workspace/temp/warehouse", cfg.WarehouseDir)
	assert.Equal(t, "./spark_workspace/event_logs", cfg.EventLogDir)
	assert.Equal(t, "./spark_workspace/spark/conf", cfg.ConfDir)
	assert.Equal(t, "2g", cfg.ExecutorMemory)
	assert.Equal(t, "2g", cfg.DriverMemory)
	assert.Equal(t, 2, cfg.ExecutorCores)
	assert.Equal(t, 200, cfg.ShufflePartitions)
	assert.True(t, cfg.DynamicAllocation)
	assert.Equal(t, "local[*]", cfg.Master)
	assert.Equal(t, 3, cfg.CleanupRetries)
	assert.Equal(t, time.Second, cfg.CleanupRetryDelay)
}

func TestDefaultExecutionConfig(t *testing.T) {
	cfg := DefaultExecutionConfig()
	assert.Equal(t, 3, cfg.MaxJobRetries)
	assert.Equal(t, 600*time.Second, cfg.JobTimeLimit())
	assert.True(t, cfg.EnableCaching)
	assert.Equal(t, 30*time.Second, cfg.FileOperationTimeout())
}

func TestDefaultNotebookConfig(t *testing.T) {
	cfg := DefaultNotebookConfig()
	assert.Equal(t, "memory", cfg.StateStorage)
	assert.NotEmpty(t, cfg.KeyPrefix)
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
}

func TestParseMemory(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"2g", 2 << 30, false},
		{"512m", 512 << 20, false},
		{"1024K", 1 << 20, false},
		{"4096", 4096, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-1g", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMemory(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
