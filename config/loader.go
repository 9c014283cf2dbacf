// =============================================================================
// 📦 DataVita 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("datavita.yaml").
//	    WithEnvPrefix("DATAVITA").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 DataVita 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Engine 数据帧引擎会话配置
	Engine EngineConfig `yaml:"engine" env:"ENGINE"`

	// Workspace 工作区目录配置
	Workspace WorkspaceConfig `yaml:"workspace" env:"WORKSPACE"`

	// Execution 执行限制配置
	Execution ExecutionConfig `yaml:"execution" env:"EXECUTION"`

	// SQL 嵌入式分析库配置
	SQL SQLConfig `yaml:"sql" env:"SQL"`

	// Notebook 状态存储配置
	Notebook NotebookConfig `yaml:"notebook" env:"NOTEBOOK"`

	// Redis 缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 元数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Auth 认证配置
	Auth AuthConfig `yaml:"auth" env:"AUTH"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每秒请求数限制
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发请求上限
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 允许的跨域来源
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// TLS 证书与私钥；都设置时以 HTTPS 启动
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile  string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
	// 同时接受的连接上限，0 表示不限
	MaxConnections int `yaml:"max_connections" env:"MAX_CONNECTIONS"`
}

// EngineConfig 数据帧引擎会话配置
type EngineConfig struct {
	// 应用名称
	AppName string `yaml:"app_name" env:"APP_NAME"`
	// 数据仓库目录
	WarehouseDir string `yaml:"warehouse_dir" env:"WAREHOUSE_DIR"`
	// 事件日志目录
	EventLogDir string `yaml:"event_log_dir" env:"EVENT_LOG_DIR"`
	// 引擎配置目录
	ConfDir string `yaml:"conf_dir" env:"CONF_DIR"`
	// 会话临时目录（停止时删除）
	TempDir string `yaml:"temp_dir" env:"TEMP_DIR"`
	// Executor 内存，如 2g / 512m
	ExecutorMemory string `yaml:"executor_memory" env:"EXECUTOR_MEMORY"`
	// Driver 内存
	DriverMemory string `yaml:"driver_memory" env:"DRIVER_MEMORY"`
	// Executor 核数
	ExecutorCores int `yaml:"executor_cores" env:"EXECUTOR_CORES"`
	// Shuffle 分区数
	ShufflePartitions int `yaml:"shuffle_partitions" env:"SHUFFLE_PARTITIONS"`
	// 是否启用动态资源分配
	DynamicAllocation bool `yaml:"dynamic_allocation" env:"DYNAMIC_ALLOCATION"`
	// Master 地址: local, local[*], local[N]
	Master string `yaml:"master" env:"MASTER"`
	// 同时允许进入引擎的作业数
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs" env:"MAX_CONCURRENT_JOBS"`
	// 临时目录删除重试次数
	CleanupRetries int `yaml:"cleanup_retries" env:"CLEANUP_RETRIES"`
	// 重试间隔
	CleanupRetryDelay time.Duration `yaml:"cleanup_retry_delay" env:"CLEANUP_RETRY_DELAY"`
	// 调用后是否保留会话
	PersistSession bool `yaml:"persist_session" env:"PERSIST_SESSION"`
}

// WorkspaceConfig 工作区目录配置
type WorkspaceConfig struct {
	// 工作区根目录（单元格产物目录）
	Path string `yaml:"path" env:"PATH"`
	// 待执行代码文件目录
	TempDir string `yaml:"temp_dir" env:"TEMP_DIR"`
	// 导出 Notebook 目录
	NotebookDir string `yaml:"notebook_dir" env:"NOTEBOOK_DIR"`
	// 日志目录
	LogDir string `yaml:"log_dir" env:"LOG_DIR"`
	// 模型存储目录
	ModelDir string `yaml:"model_dir" env:"MODEL_DIR"`
	// 代码目录轮询间隔，0 表示不监听
	WatchInterval time.Duration `yaml:"watch_interval" env:"WATCH_INTERVAL"`
}

// ExecutionConfig 执行限制配置
type ExecutionConfig struct {
	// 持久化重试次数
	MaxJobRetries int `yaml:"max_job_retries" env:"MAX_JOB_RETRIES"`
	// 单个作业时间上限（秒）
	JobTimeLimitSeconds int `yaml:"job_time_limit_seconds" env:"JOB_TIME_LIMIT_SECONDS"`
	// 是否启用结果缓存
	EnableCaching bool `yaml:"enable_caching" env:"ENABLE_CACHING"`
	// 文件操作超时（秒）
	FileOperationTimeoutSeconds int `yaml:"file_operation_timeout_seconds" env:"FILE_OPERATION_TIMEOUT_SECONDS"`
	// 脚本执行 worker 数
	Workers int `yaml:"workers" env:"WORKERS"`
	// 脚本执行排队上限
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE"`
	// 捕获输出上限（字节）
	MaxOutputBytes int `yaml:"max_output_bytes" env:"MAX_OUTPUT_BYTES"`
	// JS 调用栈上限
	MaxCallStackSize int `yaml:"max_call_stack_size" env:"MAX_CALL_STACK_SIZE"`
}

// JobTimeLimit 返回作业时间上限
func (e ExecutionConfig) JobTimeLimit() time.Duration {
	return time.Duration(e.JobTimeLimitSeconds) * time.Second
}

// FileOperationTimeout 返回文件操作超时
func (e ExecutionConfig) FileOperationTimeout() time.Duration {
	return time.Duration(e.FileOperationTimeoutSeconds) * time.Second
}

// SQLConfig 嵌入式分析库配置
type SQLConfig struct {
	// 数据库文件路径
	DatabasePath string `yaml:"database_path" env:"DATABASE_PATH"`
	// 默认引擎
	DefaultEngine string `yaml:"default_engine" env:"DEFAULT_ENGINE"`
	// 读结果缓存 TTL
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// NotebookConfig 状态存储配置
type NotebookConfig struct {
	// 状态存储: memory, redis
	StateStorage string `yaml:"state_storage" env:"STATE_STORAGE"`
	// Redis 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 是否使用 TLS 连接
	TLS bool `yaml:"tls" env:"TLS"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 时为文件路径）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	// 是否启用 JWT 认证
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// HMAC 密钥
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// 签发者
	Issuer string `yaml:"issuer" env:"ISSUER"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "DATAVITA",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 读取 YAML 文件；文件不存在时保留默认值
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("read %s: %w", l.configPath, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", l.configPath, err)
	}
	return nil
}

// loadFromEnv 按 env 标签把 PREFIX_SECTION_FIELD 形式的环境变量写入配置，
// 所有解析失败的变量一起报告
func (l *Loader) loadFromEnv(cfg *Config) error {
	var errs []error
	walkEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix, func(key string, field reflect.Value) {
		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			return
		}
		if err := assignEnv(field, raw); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", key, raw, err))
		}
	})
	return errors.Join(errs...)
}

// walkEnv 深度优先遍历带 env 标签的导出字段
func walkEnv(v reflect.Value, prefix string, visit func(key string, field reflect.Value)) {
	t := v.Type()
	for i := range t.NumField() {
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		field := v.Field(i)
		key := prefix + "_" + tag
		if field.Kind() == reflect.Struct {
			walkEnv(field, key, visit)
			continue
		}
		if field.CanSet() {
			visit(key, field)
		}
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

// assignEnv 把字符串解析为字段类型；逗号分隔的值写入 []string
func assignEnv(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		var items []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Engine.AppName == "" {
		errs = append(errs, "engine.app_name is required")
	}
	if c.Engine.ExecutorCores <= 0 {
		errs = append(errs, "engine.executor_cores must be positive")
	}
	if c.Engine.ShufflePartitions <= 0 {
		errs = append(errs, "engine.shuffle_partitions must be positive")
	}
	if _, err := ParseMemory(c.Engine.DriverMemory); err != nil {
		errs = append(errs, "engine.driver_memory: "+err.Error())
	}
	if _, err := ParseMemory(c.Engine.ExecutorMemory); err != nil {
		errs = append(errs, "engine.executor_memory: "+err.Error())
	}
	if c.Execution.JobTimeLimitSeconds < 0 {
		errs = append(errs, "execution.job_time_limit_seconds must not be negative")
	}
	switch c.Notebook.StateStorage {
	case "memory", "redis":
	default:
		errs = append(errs, "notebook.state_storage must be memory or redis")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		errs = append(errs, "auth.jwt_secret is required when auth is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ParseMemory 解析 2g / 512m / 1024k 形式的内存大小，返回字节数
func ParseMemory(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty memory size")
	}

	unit := int64(1)
	switch s[len(s)-1] {
	case 'k':
		unit = 1 << 10
	case 'm':
		unit = 1 << 20
	case 'g':
		unit = 1 << 30
	case 't':
		unit = 1 << 40
	}
	if unit != 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid memory size %q", s)
	}
	return n * unit, nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
