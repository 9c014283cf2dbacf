package engine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Kirito034/DataVita/config"
)

// =============================================================================
// 🧭 引擎会话管理器
// =============================================================================

// Observer 接收会话生命周期事件（用于指标）
type Observer interface {
	ObserveEngineSession(event string, duration time.Duration)
}

// 会话生命周期事件
const (
	EventInit    = "init"
	EventReuse   = "reuse"
	EventFailure = "failure"
	EventStop    = "stop"
)

// Stats 管理器计数
type Stats struct {
	Initializations int64 `json:"initializations"`
	Reuses          int64 `json:"reuses"`
	Failures        int64 `json:"failures"`
	Stops           int64 `json:"stops"`
	Active          bool  `json:"active"`
}

// Manager owns at most one live engine session per process, created lazily
// and shared by every caller until Stop.
type Manager struct {
	cfg       config.EngineConfig
	logger    *zap.Logger
	observer  Observer
	removeAll func(string) error
	jobs      *semaphore.Weighted
	slots     int64

	mu        sync.Mutex
	session   *Session
	analytics *sql.DB
	stats     Stats
}

// ManagerOption 配置 Manager
type ManagerOption func(*Manager)

// WithObserver 注册生命周期观察者
func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) { m.observer = o }
}

// WithRemoveFunc replaces the function used to delete the temp directory.
func WithRemoveFunc(fn func(string) error) ManagerOption {
	return func(m *Manager) { m.removeAll = fn }
}

// NewManager 创建管理器，不会立即启动会话
func NewManager(cfg config.EngineConfig, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 1
	}
	if cfg.CleanupRetries <= 0 {
		cfg.CleanupRetries = 3
	}
	m := &Manager{
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "engine_manager")),
		removeAll: os.RemoveAll,
		jobs:      semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
		slots:     int64(cfg.MaxConcurrentJobs),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Session returns the live session, creating it on first use. It returns nil
// when construction fails; the next call tries again.
func (m *Manager) Session(ctx context.Context) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil && !m.session.Stopped() {
		m.stats.Reuses++
		m.logger.Info("reusing engine session", zap.String("app_id", m.session.AppID))
		m.observe(EventReuse, 0)
		return m.session
	}

	start := time.Now()
	m.logger.Info("initializing engine session",
		zap.String("app_name", m.cfg.AppName),
		zap.String("master", m.cfg.Master),
	)
	s, err := newSession(ctx, m.cfg, m.logger)
	if err != nil {
		m.session = nil
		m.stats.Failures++
		m.logger.Error("failed to initialize engine session", zap.Error(err))
		m.observe(EventFailure, time.Since(start))
		return nil
	}

	m.session = s
	m.stats.Initializations++
	m.logger.Info("engine session initialized",
		zap.String("app_id", s.AppID),
		zap.String("warehouse", s.WarehouseURI),
		zap.Int("parallelism", s.Parallelism),
		zap.Duration("duration", time.Since(start)),
	)
	m.observe(EventInit, time.Since(start))
	return s
}

// Analytics 返回进程内的辅助分析库连接（内存库，惰性创建）
func (m *Manager) Analytics(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.analytics != nil {
		return m.analytics, nil
	}
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open analytics connection: %w", err)
	}
	// 内存库只存在于单条连接上
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping analytics connection: %w", err)
	}
	m.analytics = db
	return db, nil
}

// Acquire blocks until a job slot is free or ctx is done.
func (m *Manager) Acquire(ctx context.Context) (func(), error) {
	if err := m.jobs.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { m.jobs.Release(1) }) }, nil
}

// Stop 关闭辅助连接与会话，回收内存并删除临时目录。
// 会先等待所有已进入引擎的作业结束；失败只记录日志，可重复调用。
// 持有作业槽的调用方必须先释放，否则会死锁。
func (m *Manager) Stop() {
	_ = m.StopContext(context.Background())
}

// StopContext is Stop with a bound on the wait for running jobs. When ctx
// ends first nothing is torn down and ctx's error is returned.
func (m *Manager) StopContext(ctx context.Context) error {
	// 占满全部作业槽：新作业排在后面，运行中的作业不会看到半关闭的会话
	if err := m.jobs.Acquire(ctx, m.slots); err != nil {
		m.logger.Warn("engine stop abandoned while waiting for running jobs", zap.Error(err))
		return err
	}
	defer m.jobs.Release(m.slots)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.analytics != nil {
		if err := m.analytics.Close(); err != nil {
			m.logger.Warn("closing analytics connection", zap.Error(err))
		}
		m.analytics = nil
	}

	if m.session != nil {
		if err := m.session.stop(); err != nil {
			m.logger.Warn("stopping engine session", zap.Error(err))
		}
		m.logger.Info("engine session stopped", zap.String("app_id", m.session.AppID))
		m.session = nil
		m.stats.Stops++
		m.observe(EventStop, 0)
	}

	runtime.GC()
	debug.FreeOSMemory()

	m.removeTempDir()
	return nil
}

func (m *Manager) removeTempDir() {
	dir := m.cfg.TempDir
	if dir == "" {
		return
	}
	for attempt := 1; attempt <= m.cfg.CleanupRetries; attempt++ {
		err := m.removeAll(dir)
		if err == nil {
			return
		}
		m.logger.Warn("removing engine temp directory",
			zap.String("dir", dir),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < m.cfg.CleanupRetries {
			time.Sleep(m.cfg.CleanupRetryDelay)
		}
	}
	m.logger.Error("giving up on engine temp directory", zap.String("dir", dir))
}

// Stats 返回计数快照
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stats
	st.Active = m.session != nil
	return st
}

// Config 返回会话配置
func (m *Manager) Config() config.EngineConfig { return m.cfg }

func (m *Manager) observe(event string, d time.Duration) {
	if m.observer != nil {
		m.observer.ObserveEngineSession(event, d)
	}
}
