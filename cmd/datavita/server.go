package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kirito034/DataVita/api/handlers"
	"github.com/Kirito034/DataVita/config"
	"github.com/Kirito034/DataVita/engine"
	"github.com/Kirito034/DataVita/internal/cache"
	"github.com/Kirito034/DataVita/internal/database"
	"github.com/Kirito034/DataVita/internal/metrics"
	"github.com/Kirito034/DataVita/internal/migration"
	"github.com/Kirito034/DataVita/internal/pool"
	"github.com/Kirito034/DataVita/internal/server"
	"github.com/Kirito034/DataVita/internal/store"
	"github.com/Kirito034/DataVita/internal/telemetry"
	"github.com/Kirito034/DataVita/kernel"
	"github.com/Kirito034/DataVita/notebook"
	"github.com/Kirito034/DataVita/sqlexec"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 DataVita 的主服务器，持有全部运行期组件
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	registry  *prometheus.Registry
	collector *metrics.Collector
	otel      *telemetry.Providers

	// 元数据库；不可用时为 nil
	metaPool   *database.PoolManager
	results    kernel.ResultSaver
	versions   store.MetadataStore
	identities store.IdentityStore

	// Redis；仅在 redis 状态存储或 SQL 缓存启用时连接
	cache *cache.Manager

	engine    *engine.Manager
	workers   *pool.WorkerPool
	workspace *notebook.Workspace
	notebook  *notebook.Store
	script    *kernel.ScriptExecutor
	frame     *kernel.FrameExecutor
	sql       *sqlexec.Executor
	scriptsDB *sql.DB
	scripts   *sqlexec.ScriptStore
	watcher   *kernel.ScriptWatcher
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, logger: logger}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Run 初始化组件并阻塞到 ctx 取消，随后按依赖逆序关闭
func (s *Server) Run(ctx context.Context) error {
	if err := s.init(ctx); err != nil {
		s.close()
		return err
	}
	defer s.close()

	handler := s.Handler(ctx)

	httpConfig := server.ConfigFrom(s.cfg.Server)
	httpManager := server.NewManager(handler, httpConfig, s.logger)
	metricsConfig := server.ConfigFrom(s.cfg.Server)
	metricsConfig.Addr = fmt.Sprintf(":%d", s.cfg.Server.MetricsPort)
	metricsManager := server.NewManager(s.metricsHandler(), metricsConfig, s.logger.Named("metrics"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpManager.Run(gctx) })
	g.Go(func() error { return metricsManager.Run(gctx) })

	if s.cfg.Workspace.WatchInterval > 0 {
		s.watcher = kernel.NewScriptWatcher(s.cfg.Workspace.TempDir, s.cfg.Workspace.WatchInterval, s.frame, s.logger)
		if err := s.watcher.Start(gctx); err != nil {
			s.logger.Warn("script watcher not started", zap.Error(err))
			s.watcher = nil
		}
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("tls", httpConfig.TLSEnabled()),
		zap.String("state_storage", s.cfg.Notebook.StateStorage),
		zap.Bool("auth_enabled", s.cfg.Auth.Enabled),
		zap.Bool("metadata_db", s.metaPool != nil),
	)

	return g.Wait()
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) init(ctx context.Context) error {
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.collector = metrics.NewCollector("datavita", s.registry, s.logger)
	s.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "datavita",
		Name:      "buffer_pool_hit_rate",
		Help:      "Share of encoding buffers served from the pool",
	}, func() float64 { return pool.ByteBufferPool.Stats().HitRate() }))

	providers, err := telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
		providers = &telemetry.Providers{}
	}
	s.otel = providers

	s.initMetadata(ctx)

	if err := s.initCache(); err != nil {
		return err
	}
	if err := s.initNotebook(ctx); err != nil {
		return err
	}
	if err := s.initExecutors(); err != nil {
		return err
	}
	return s.initSQL(ctx)
}

// initMetadata 连接元数据库并应用迁移；失败时降级为无持久化运行
func (s *Server) initMetadata(ctx context.Context) {
	db, err := database.Open(s.cfg.Database)
	if err != nil {
		s.logger.Warn("metadata database not available, results and versions disabled", zap.Error(err))
		return
	}
	pm, err := database.NewPoolManager(db, database.PoolConfigFrom(s.cfg.Database), s.logger,
		database.WithStatsObserver(func(open, idle int) {
			s.collector.RecordDBConnections("metadata", open, idle)
		}))
	if err != nil {
		s.logger.Warn("metadata database pool failed", zap.Error(err))
		return
	}

	if err := s.migrate(ctx); err != nil {
		s.logger.Error("metadata migration failed, results and versions disabled", zap.Error(err))
		pm.Close()
		return
	}

	s.metaPool = pm
	s.results = store.NewResultRepository(pm)
	s.versions = store.NewMetadataStore(pm)
	s.identities = store.NewIdentityStore(pm)
	s.logger.Info("metadata database connected", zap.String("driver", s.cfg.Database.Driver))
}

func (s *Server) migrate(ctx context.Context) error {
	m, err := migration.NewMigratorFromConfig(s.cfg.Database, s.logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up(ctx)
}

func (s *Server) initCache() error {
	redisState := s.cfg.Notebook.StateStorage == "redis"
	if !redisState && !s.cfg.Execution.EnableCaching {
		return nil
	}
	c, err := cache.NewManager(cache.FromRedisConfig(s.cfg.Redis, s.cfg.Notebook.KeyPrefix, 0), s.logger)
	if err != nil {
		if redisState {
			return fmt.Errorf("connect redis for notebook state: %w", err)
		}
		s.logger.Warn("redis not available, SQL result cache disabled", zap.Error(err))
		return nil
	}
	s.cache = c
	return nil
}

func (s *Server) initNotebook(ctx context.Context) error {
	ws, err := notebook.NewWorkspace(s.cfg.Workspace.Path)
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}
	s.workspace = ws

	opts := []notebook.Option{
		notebook.WithNotebookDir(s.cfg.Workspace.NotebookDir),
		notebook.WithLogger(s.logger),
	}
	if s.cfg.Notebook.StateStorage == "redis" {
		opts = append(opts, notebook.WithPersister(notebook.NewRedisPersister(s.cache)))
	}
	s.notebook = notebook.NewStore(opts...)
	if err := s.notebook.Restore(ctx); err != nil {
		s.logger.Warn("notebook state not restored", zap.Error(err))
	}
	return nil
}

func (s *Server) initExecutors() error {
	if err := os.MkdirAll(s.cfg.Workspace.TempDir, 0o755); err != nil {
		return fmt.Errorf("create script dir: %w", err)
	}

	recorders := kernel.Recorders{s.collector}
	if s.otel.Enabled() {
		rec, err := telemetry.NewExecutionRecorder(nil)
		if err != nil {
			s.logger.Warn("otel execution recorder disabled", zap.Error(err))
		} else {
			recorders = append(recorders, rec)
		}
	}

	s.engine = engine.NewManager(s.cfg.Engine, s.logger, engine.WithObserver(s.collector))
	s.workers = pool.NewWorkerPool(pool.Config{
		MaxWorkers: s.cfg.Execution.Workers,
		QueueSize:  s.cfg.Execution.QueueSize,
	})
	s.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "datavita",
			Name:      "script_workers_active",
			Help:      "Script workers currently running a cell",
		}, func() float64 { return float64(s.workers.Stats().Active) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "datavita",
			Name:      "script_queue_depth",
			Help:      "Script cells waiting for a worker",
		}, func() float64 { return float64(s.workers.Stats().Queued) }),
	)
	s.script = kernel.NewScriptExecutor(s.cfg.Execution, s.notebook, s.workspace, s.workers, s.logger,
		kernel.WithRecorder(recorders))
	s.frame = kernel.NewFrameExecutor(s.engine, s.cfg.Execution, s.cfg.Workspace.TempDir, s.results, s.logger,
		kernel.WithRecorder(recorders))
	return nil
}

func (s *Server) initSQL(ctx context.Context) error {
	opts := []sqlexec.Option{sqlexec.WithMetrics(s.collector)}
	if s.cache != nil && s.cfg.Execution.EnableCaching {
		opts = append(opts, sqlexec.WithCache(s.cache.WithPrefix("datavita:sql:"), s.cfg.SQL.CacheTTL))
	}
	s.sql = sqlexec.NewExecutor(s.cfg.SQL, s.logger, opts...)

	if dir := filepath.Dir(s.cfg.SQL.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create sql dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", s.cfg.SQL.DatabasePath)
	if err != nil {
		return fmt.Errorf("open script database: %w", err)
	}
	s.scriptsDB = db
	scripts, err := sqlexec.NewScriptStore(ctx, db)
	if err != nil {
		return fmt.Errorf("init script store: %w", err)
	}
	s.scripts = scripts
	return nil
}

// =============================================================================
// 🌐 HTTP 路由
// =============================================================================

// Handler 注册全部路由并包上中间件链；ctx 控制限流器的清理协程
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(Version, s.logger)
	if s.metaPool != nil {
		health.RegisterCheck(handlers.NewFuncCheck("metadata_db", s.metaPool.Ping))
	}
	if s.cache != nil {
		if s.cfg.Notebook.StateStorage == "redis" {
			health.RegisterCheck(handlers.NewFuncCheck("redis", s.cache.Ping))
		} else {
			health.RegisterCheck(handlers.NewOptionalCheck("redis", s.cache.Ping))
		}
	}
	health.Register(mux)

	handlers.NewScriptHandler(s.script, s.workspace, s.logger).Register(mux)
	handlers.NewFrameHandler(s.frame, s.engine, s.logger).Register(mux)
	handlers.NewSQLHandler(s.sql, s.scripts, s.logger).Register(mux)

	nb := handlers.NewNotebookHandler(s.notebook, s.versions, s.logger)
	nb.Register(mux)
	handlers.NewNotebookSocket(s.script, nb, s.cfg.Server.CORSAllowedOrigins, s.collector, s.logger).Register(mux)

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(ctx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
		JWTAuth(s.cfg.Auth, s.identities, publicPaths, s.logger),
	)
}

func (s *Server) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	return mux
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// close 按依赖逆序释放组件；对未初始化的字段安全
func (s *Server) close() {
	s.logger.Info("Starting graceful shutdown...")
	ctx := context.Background()

	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.engine != nil {
		s.engine.Stop()
	}
	if s.workers != nil {
		s.workers.Close()
	}

	var errs []error
	if s.scriptsDB != nil {
		errs = append(errs, s.scriptsDB.Close())
	}
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.metaPool != nil {
		errs = append(errs, s.metaPool.Close())
	}
	if s.otel != nil {
		errs = append(errs, s.otel.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Error("shutdown completed with errors", zap.Error(err))
		return
	}
	s.logger.Info("Graceful shutdown completed")
}
