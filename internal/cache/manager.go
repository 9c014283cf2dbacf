// Package cache wraps the redis client shared by notebook state persistence
// and the SQL read-result cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Kirito034/DataVita/config"
	"github.com/Kirito034/DataVita/internal/tlsutil"
)

// =============================================================================
// 💾 Redis 缓存管理器
// =============================================================================

// NoExpiry 传给 Set 表示键永不过期
const NoExpiry time.Duration = -1

// ErrCacheMiss 键不存在
var ErrCacheMiss = errors.New("cache miss")

// ErrClosed 管理器已关闭
var ErrClosed = errors.New("cache manager is closed")

// Manager Redis 缓存管理器
type Manager struct {
	redis  *redis.Client
	config Config
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// Config 缓存配置
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	TLS          bool
	// 键前缀，所有读写自动加上
	KeyPrefix string
	// ttl 为 0 时使用
	DefaultTTL time.Duration
	// <= 0 关闭后台探活
	HealthCheckInterval time.Duration
}

// FromRedisConfig 由应用配置生成缓存配置
func FromRedisConfig(rc config.RedisConfig, prefix string, ttl time.Duration) Config {
	return Config{
		Addr:                rc.Addr,
		Password:            rc.Password,
		DB:                  rc.DB,
		PoolSize:            rc.PoolSize,
		MinIdleConns:        rc.MinIdleConns,
		MaxRetries:          3,
		TLS:                 rc.TLS,
		KeyPrefix:           prefix,
		DefaultTTL:          ttl,
		HealthCheckInterval: 30 * time.Second,
	}
}

// NewManager connects and pings redis before returning.
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
	if cfg.TLS {
		opts.TLSConfig = tlsutil.DefaultTLSConfig()
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	m := &Manager{
		redis:  client,
		config: cfg,
		logger: logger.With(zap.String("component", "cache")),
		done:   make(chan struct{}),
	}
	if cfg.HealthCheckInterval > 0 {
		go m.healthCheckLoop()
	}

	m.logger.Info("cache manager initialized",
		zap.String("addr", cfg.Addr),
		zap.String("prefix", cfg.KeyPrefix),
	)
	return m, nil
}

// WithPrefix returns a view of m whose keys live under an extra prefix.
// The view shares the connection; closing it closes m.
func (m *Manager) WithPrefix(prefix string) *Manager {
	cfg := m.config
	cfg.KeyPrefix += prefix
	return &Manager{redis: m.redis, config: cfg, logger: m.logger, done: m.done}
}

func (m *Manager) key(k string) string { return m.config.KeyPrefix + k }

func (m *Manager) ttl(ttl time.Duration) time.Duration {
	switch {
	case ttl == 0:
		return m.config.DefaultTTL
	case ttl < 0:
		return 0
	default:
		return ttl
	}
}

func (m *Manager) check() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	select {
	case <-m.done:
		return ErrClosed
	default:
		return nil
	}
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Get 获取缓存值
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	if err := m.check(); err != nil {
		return "", err
	}
	val, err := m.redis.Get(ctx, m.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		m.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("cache get failed: %w", err)
	}
	return val, nil
}

// Set 设置缓存值；ttl 为 0 用默认值，NoExpiry 不过期
func (m *Manager) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := m.check(); err != nil {
		return err
	}
	if err := m.redis.Set(ctx, m.key(key), value, m.ttl(ttl)).Err(); err != nil {
		m.logger.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// GetJSON 获取 JSON 值
func (m *Manager) GetJSON(ctx context.Context, key string, dest any) error {
	val, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

// SetJSON 写入 JSON 值
func (m *Manager) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return m.Set(ctx, key, string(data), ttl)
}

// Incr 自增计数器（不过期），返回新值
func (m *Manager) Incr(ctx context.Context, key string) (int64, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	n, err := m.redis.Incr(ctx, m.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("cache incr failed: %w", err)
	}
	return n, nil
}

// Counter 读取计数器，不存在时为 0
func (m *Manager) Counter(ctx context.Context, key string) (int64, error) {
	val, err := m.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// Delete 删除键
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	if err := m.check(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = m.key(k)
	}
	if err := m.redis.Del(ctx, full...).Err(); err != nil {
		m.logger.Error("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Ping 检查连接
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.check(); err != nil {
		return err
	}
	return m.redis.Ping(ctx).Err()
}

// Close 关闭连接并停止探活
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	select {
	case <-m.done:
		return nil
	default:
		close(m.done)
	}
	m.logger.Info("closing cache manager")
	return m.redis.Close()
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

func (m *Manager) healthCheckLoop() {
	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := m.Ping(ctx); err != nil && !errors.Is(err, ErrClosed) {
				m.logger.Error("cache health check failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// =============================================================================
// 📊 统计信息
// =============================================================================

// Stats 缓存统计信息
type Stats struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	UsedMemory  int64  `json:"used_memory"`
	Connections int    `json:"connections"`
}

// GetStats parses the stats, memory and clients sections of INFO.
func (m *Manager) GetStats(ctx context.Context) (*Stats, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	info, err := m.redis.Info(ctx, "stats", "memory", "clients").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get redis info: %w", err)
	}
	return parseInfo(info), nil
}

func parseInfo(info string) *Stats {
	st := &Stats{}
	for _, line := range strings.Split(info, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		switch k {
		case "keyspace_hits":
			st.Hits, _ = strconv.ParseUint(v, 10, 64)
		case "keyspace_misses":
			st.Misses, _ = strconv.ParseUint(v, 10, 64)
		case "used_memory":
			st.UsedMemory, _ = strconv.ParseInt(v, 10, 64)
		case "connected_clients":
			st.Connections, _ = strconv.Atoi(v)
		}
	}
	return st
}

// IsCacheMiss 判断是否为缓存未命中
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
