// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8000, cfg.Server.HTTPPort)
	assert.Equal(t, "DataVita", cfg.Engine.AppName)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "datavita.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s

engine:
  app_name: "notebook-test"
  executor_memory: "512m"
  shuffle_partitions: 8
  dynamic_allocation: false
  master: "local[2]"

execution:
  job_time_limit_seconds: 5
  enable_caching: false

redis:
  addr: "redis.example.com:6379"
  db: 1

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "notebook-test", cfg.Engine.AppName)
	assert.Equal(t, "512m", cfg.Engine.ExecutorMemory)
	assert.Equal(t, 8, cfg.Engine.ShufflePartitions)
	assert.False(t, cfg.Engine.DynamicAllocation)
	assert.Equal(t, "local[2]", cfg.Engine.Master)
	// 未覆盖的字段保留默认值
	assert.Equal(t, "2g", cfg.Engine.DriverMemory)

	assert.Equal(t, 5*time.Second, cfg.Execution.JobTimeLimit())
	assert.False(t, cfg.Execution.EnableCaching)

	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).
		Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Engine, cfg.Engine)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("engine: [unclosed"), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("DATAVITA_ENGINE_APP_NAME", "from-env")
	t.Setenv("DATAVITA_ENGINE_EXECUTOR_CORES", "6")
	t.Setenv("DATAVITA_ENGINE_CLEANUP_RETRY_DELAY", "250ms")
	t.Setenv("DATAVITA_EXECUTION_ENABLE_CACHING", "false")
	t.Setenv("DATAVITA_SERVER_CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Engine.AppName)
	assert.Equal(t, 6, cfg.Engine.ExecutorCores)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.CleanupRetryDelay)
	assert.False(t, cfg.Execution.EnableCaching)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoader_EnvPrefix(t *testing.T) {
	t.Setenv("NB_ENGINE_MASTER", "local[3]")

	cfg, err := NewLoader().WithEnvPrefix("NB").Load()
	require.NoError(t, err)
	assert.Equal(t, "local[3]", cfg.Engine.Master)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("DATAVITA_ENGINE_EXECUTOR_CORES", "many")
	t.Setenv("DATAVITA_SERVER_READ_TIMEOUT", "soon")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATAVITA_ENGINE_EXECUTOR_CORES")
	assert.Contains(t, err.Error(), "DATAVITA_SERVER_READ_TIMEOUT")
}

func TestLoader_Validator(t *testing.T) {
	t.Setenv("DATAVITA_NOTEBOOK_STATE_STORAGE", "mongo")

	_, err := NewLoader().
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state_storage")
}

func TestEnsureFile_WritesDefaultsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "datavita.yaml")

	created, err := EnsureFile(path)
	require.NoError(t, err)
	assert.True(t, created)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Engine, cfg.Engine)

	created, err = EnsureFile(path)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datavita.yaml")

	cfg, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "local[*]", cfg.Engine.Master)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", pg.DSN())

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", Name: "n"}
	assert.Equal(t, "u:p@tcp(db:3306)/n?parseTime=true", my.DSN())

	lite := DatabaseConfig{Driver: "sqlite", Name: "file.db"}
	assert.Equal(t, "file.db", lite.DSN())

	assert.Empty(t, (&DatabaseConfig{Driver: "oracle"}).DSN())
}
