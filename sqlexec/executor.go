package sqlexec

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Kirito034/DataVita/config"
	"github.com/Kirito034/DataVita/frame"
	"github.com/Kirito034/DataVita/internal/cache"
)

// =============================================================================
// 🗃️ SQL 执行器
// =============================================================================

// SuccessMessage 非查询语句成功时的结果
const SuccessMessage = "Query executed successfully."

// 支持的引擎
const (
	EngineSQLite = "sqlite"
	// EngineDuckDB 作为嵌入式分析引擎的别名接受
	EngineDuckDB = "duckdb"
)

const showTablesQuery = "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"

var showTables = regexp.MustCompile(`(?i)^\s*SHOW\s+TABLES\s*;?\s*$`)

// Result 一次执行的结果；Result 与 Error 二选一
type Result struct {
	Result        any     `json:"result,omitempty"`
	Error         string  `json:"error,omitempty"`
	ExecutionTime float64 `json:"execution_time"`
}

// Executor runs one statement per call on a fresh connection to the
// workspace database.
type Executor struct {
	path          string
	defaultEngine string
	cache         *cache.Manager
	cacheTTL      time.Duration
	metrics       Metrics
	logger        *zap.Logger
}

// Metrics 接收查询与缓存计数
type Metrics interface {
	RecordSQLQuery(kind, status string, d time.Duration)
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// Option 配置 Executor
type Option func(*Executor)

// WithCache 启用读结果缓存；写语句会使缓存整体失效
func WithCache(c *cache.Manager, ttl time.Duration) Option {
	return func(e *Executor) {
		e.cache = c
		e.cacheTTL = ttl
	}
}

// WithMetrics 注册指标采集
func WithMetrics(m Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor 创建执行器
func NewExecutor(cfg config.SQLConfig, logger *zap.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		path:          cfg.DatabasePath,
		defaultEngine: cfg.DefaultEngine,
		logger:        logger.With(zap.String("component", "sql_executor")),
	}
	if e.defaultEngine == "" {
		e.defaultEngine = EngineSQLite
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Path 数据库文件路径
func (e *Executor) Path() string { return e.path }

func (e *Executor) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", e.path)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// IsReadQuery 根据首个关键字判断是否为读语句
func IsReadQuery(query string) bool {
	q := strings.TrimLeft(strings.TrimSpace(query), "(")
	end := strings.IndexFunc(q, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '('
	})
	if end >= 0 {
		q = q[:end]
	}
	switch strings.ToUpper(q) {
	case "SELECT", "SHOW", "WITH", "PRAGMA", "EXPLAIN", "VALUES":
		return true
	}
	return false
}

// Execute runs query and never returns a Go error: failures are reported in
// Result.Error. The connection is closed before returning.
func (e *Executor) Execute(ctx context.Context, query, engine string) Result {
	start := time.Now()
	elapsed := func() float64 { return time.Since(start).Seconds() }

	if engine == "" {
		engine = e.defaultEngine
	}
	if engine != EngineSQLite && engine != EngineDuckDB {
		return Result{Error: fmt.Sprintf("unsupported engine: %s", engine), ExecutionTime: elapsed()}
	}
	if strings.TrimSpace(query) == "" {
		return Result{Error: "No SQL query provided", ExecutionTime: elapsed()}
	}
	if showTables.MatchString(query) {
		query = showTablesQuery
	}

	var (
		res  any
		err  error
		kind = "write"
	)
	if IsReadQuery(query) {
		kind = "read"
		res, err = e.read(ctx, query)
	} else {
		err = e.write(ctx, query)
		res = SuccessMessage
	}
	if err != nil {
		e.record(kind, "error", start)
		e.logger.Error("sql execution failed", zap.String("query", truncate(query, 200)), zap.Error(err))
		return Result{Error: err.Error(), ExecutionTime: elapsed()}
	}
	e.record(kind, "success", start)
	return Result{Result: res, ExecutionTime: elapsed()}
}

func (e *Executor) record(kind, status string, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordSQLQuery(kind, status, time.Since(start))
	}
}

func (e *Executor) read(ctx context.Context, query string) ([]map[string]any, error) {
	key := ""
	if e.cache != nil {
		key = e.cacheKey(ctx, query)
		var cached []map[string]any
		if key != "" {
			err := e.cache.GetJSON(ctx, key, &cached)
			if err == nil {
				if e.metrics != nil {
					e.metrics.RecordCacheHit("sql")
				}
				return cached, nil
			}
			if !cache.IsCacheMiss(err) {
				e.logger.Warn("reading cached query result", zap.Error(err))
			}
			if e.metrics != nil {
				e.metrics.RecordCacheMiss("sql")
			}
		}
	}

	db, err := e.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	f, err := frame.ScanRows(rows, CoerceDecimal)
	if err != nil {
		return nil, err
	}
	records, _ := f.Records()

	if key != "" {
		if err := e.cache.SetJSON(ctx, key, records, e.cacheTTL); err != nil {
			e.logger.Warn("caching query result", zap.Error(err))
		}
	}
	return records, nil
}

func (e *Executor) write(ctx context.Context, query string) error {
	db, err := e.open()
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if e.cache != nil {
		if _, err := e.cache.Incr(ctx, generationKey); err != nil {
			e.logger.Warn("invalidating query cache", zap.Error(err))
		}
	}
	return nil
}

const generationKey = "generation"

// cacheKey ties the key to the current write generation, so a committed write
// makes every earlier entry unreachable.
func (e *Executor) cacheKey(ctx context.Context, query string) string {
	gen, err := e.cache.Counter(ctx, generationKey)
	if err != nil {
		e.logger.Warn("reading query cache generation", zap.Error(err))
		return ""
	}
	sum := sha256.Sum256([]byte(e.path + "\x00" + query))
	return fmt.Sprintf("result:%d:%s", gen, hex.EncodeToString(sum[:]))
}

// CoerceDecimal converts arbitrary-precision values to float64 so they
// serialize as JSON numbers.
func CoerceDecimal(col *sql.ColumnType, v any) any {
	switch x := v.(type) {
	case *big.Rat:
		f, _ := x.Float64()
		return f
	case *big.Float:
		f, _ := x.Float64()
		return f
	case string:
		if col != nil && isDecimalType(col.DatabaseTypeName()) {
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f
			}
		}
	}
	return v
}

func isDecimalType(name string) bool {
	name = strings.ToUpper(name)
	return strings.HasPrefix(name, "DECIMAL") || strings.HasPrefix(name, "NUMERIC")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
