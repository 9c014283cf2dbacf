// =============================================================================
// 📦 DataVita 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Engine:    DefaultEngineConfig(),
		Workspace: DefaultWorkspaceConfig(),
		Execution: DefaultExecutionConfig(),
		SQL:       DefaultSQLConfig(),
		Notebook:  DefaultNotebookConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Auth:      DefaultAuthConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:           8000,
		MetricsPort:        9091,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       15 * time.Minute,
		ShutdownTimeout:    15 * time.Second,
		RateLimitRPS:       50,
		RateLimitBurst:     100,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
	}
}

// DefaultEngineConfig 返回默认引擎会话配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		AppName:           "DataVita",
		WarehouseDir:      "./spark_workspace/temp/warehouse",
		EventLogDir:       "./spark_workspace/event_logs",
		ConfDir:           "./spark_workspace/spark/conf",
		TempDir:           "./spark_workspace/temp/scratch",
		ExecutorMemory:    "2g",
		DriverMemory:      "2g",
		ExecutorCores:     2,
		ShufflePartitions: 200,
		DynamicAllocation: true,
		Master:            "local[*]",
		MaxConcurrentJobs: 4,
		CleanupRetries:    3,
		CleanupRetryDelay: time.Second,
		PersistSession:    true,
	}
}

// DefaultWorkspaceConfig 返回默认工作区配置
func DefaultWorkspaceConfig() WorkspaceConfig {
	return WorkspaceConfig{
		Path:        "./workspace",
		TempDir:     "./workspace/temp",
		NotebookDir: "./notebooks",
		LogDir:      "./logs",
		ModelDir:    "./models",
	}
}

// DefaultExecutionConfig 返回默认执行限制配置
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		MaxJobRetries:               3,
		JobTimeLimitSeconds:         600,
		EnableCaching:               true,
		FileOperationTimeoutSeconds: 30,
		Workers:                     4,
		QueueSize:                   64,
		MaxOutputBytes:              1 << 20,
		MaxCallStackSize:            1024,
	}
}

// DefaultSQLConfig 返回默认 SQL 配置
func DefaultSQLConfig() SQLConfig {
	return SQLConfig{
		DatabasePath:  "./workspace/compiler.db",
		DefaultEngine: "sqlite",
		CacheTTL:      5 * time.Minute,
	}
}

// DefaultNotebookConfig 返回默认状态存储配置
func DefaultNotebookConfig() NotebookConfig {
	return NotebookConfig{
		StateStorage: "memory",
		KeyPrefix:    "datavita:notebook:",
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "datavita",
		Password:        "",
		Name:            "./workspace/datavita.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "datavita",
		SampleRate:   0.1,
	}
}

// DefaultAuthConfig 返回默认认证配置
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Enabled: false,
		Issuer:  "datavita",
	}
}
