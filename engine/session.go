package engine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Kirito034/DataVita/config"
	"github.com/Kirito034/DataVita/frame"
)

const driverName = "sqlite"

// Session 本地数据帧引擎会话：惰性 DataFrame 编译为 SQL，在嵌入式仓库上执行
type Session struct {
	AppID             string
	AppName           string
	Master            string
	Parallelism       int
	ExecutorCores     int
	ExecutorMemory    int64
	DriverMemory      int64
	ShufflePartitions int
	DynamicAllocation bool
	WarehouseURI      string
	EventLogURI       string
	ConfURI           string
	TempURI           string
	CreatedAt         time.Time

	tempDir string
	db      *sql.DB
	events  *eventLog
	logger  *zap.Logger
	seq     atomic.Int64

	mu      sync.RWMutex
	stopped bool
}

var masterPattern = regexp.MustCompile(`^local(\[(\*|[1-9][0-9]*)\])?$`)

// parseMaster 解析 master 地址，返回并行度
func parseMaster(master string) (int, error) {
	m := masterPattern.FindStringSubmatch(strings.TrimSpace(master))
	if m == nil {
		return 0, fmt.Errorf("unsupported master URL %q: only local, local[*] and local[N] are available", master)
	}
	switch m[2] {
	case "":
		return 1, nil
	case "*":
		return runtime.NumCPU(), nil
	default:
		return strconv.Atoi(m[2])
	}
}

// ensureDirURI 创建目录并返回绝对路径与 file:// URI
func ensureDirURI(dir string) (string, string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", "", err
	}
	return abs, "file://" + filepath.ToSlash(abs), nil
}

func newSession(ctx context.Context, cfg config.EngineConfig, logger *zap.Logger) (*Session, error) {
	parallelism, err := parseMaster(cfg.Master)
	if err != nil {
		return nil, err
	}
	driverMem, err := config.ParseMemory(cfg.DriverMemory)
	if err != nil {
		return nil, fmt.Errorf("driver memory: %w", err)
	}
	executorMem, err := config.ParseMemory(cfg.ExecutorMemory)
	if err != nil {
		return nil, fmt.Errorf("executor memory: %w", err)
	}

	s := &Session{
		AppID:             "app-" + uuid.NewString(),
		AppName:           cfg.AppName,
		Master:            cfg.Master,
		Parallelism:       parallelism,
		ExecutorCores:     cfg.ExecutorCores,
		ExecutorMemory:    executorMem,
		DriverMemory:      driverMem,
		ShufflePartitions: cfg.ShufflePartitions,
		DynamicAllocation: cfg.DynamicAllocation,
		CreatedAt:         time.Now(),
		logger:            logger,
	}

	warehouse, warehouseURI, err := ensureDirURI(cfg.WarehouseDir)
	if err != nil {
		return nil, fmt.Errorf("warehouse dir: %w", err)
	}
	eventDir, eventURI, err := ensureDirURI(cfg.EventLogDir)
	if err != nil {
		return nil, fmt.Errorf("event log dir: %w", err)
	}
	confDir, confURI, err := ensureDirURI(cfg.ConfDir)
	if err != nil {
		return nil, fmt.Errorf("conf dir: %w", err)
	}
	tempDir, tempURI, err := ensureDirURI(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	s.WarehouseURI, s.EventLogURI, s.ConfURI, s.TempURI = warehouseURI, eventURI, confURI, tempURI
	s.tempDir = tempDir

	if err := s.writeDefaults(confDir); err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, filepath.Join(warehouse, "metastore.db"))
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	// 临时视图与临时表绑定在连接上，会话内只使用一条连接
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		fmt.Sprintf("PRAGMA cache_size = -%d", driverMem>>10),
		fmt.Sprintf("PRAGMA threads = %d", parallelism),
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure warehouse (%s): %w", p, err)
		}
	}
	s.db = db

	events, err := openEventLog(eventDir, s.AppID)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.events = events
	s.events.write(event{Event: "SessionStart", Properties: s.Conf()})
	return s, nil
}

// writeDefaults 首次启动时在配置目录写入会话配置，已存在则保留
func (s *Session) writeDefaults(confDir string) error {
	path := filepath.Join(confDir, "spark-defaults.conf")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	conf := s.Conf()
	keys := make([]string, 0, len(conf))
	for k := range conf {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s %s\n", k, conf[k])
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write engine defaults: %w", err)
	}
	return nil
}

// Conf 返回会话配置（只读）
func (s *Session) Conf() map[string]string {
	return map[string]string{
		"spark.app.id":                    s.AppID,
		"spark.app.name":                  s.AppName,
		"spark.master":                    s.Master,
		"spark.default.parallelism":       strconv.Itoa(s.Parallelism),
		"spark.executor.cores":            strconv.Itoa(s.ExecutorCores),
		"spark.executor.memory":           strconv.FormatInt(s.ExecutorMemory, 10),
		"spark.driver.memory":             strconv.FormatInt(s.DriverMemory, 10),
		"spark.sql.shuffle.partitions":    strconv.Itoa(s.ShufflePartitions),
		"spark.dynamicAllocation.enabled": strconv.FormatBool(s.DynamicAllocation),
		"spark.sql.warehouse.dir":         s.WarehouseURI,
		"spark.eventLog.dir":              s.EventLogURI,
		"spark.eventLog.enabled":          "true",
		"spark.conf.dir":                  s.ConfURI,
		"spark.local.dir":                 s.TempURI,
	}
}

// TempDir 会话临时目录
func (s *Session) TempDir() string { return s.tempDir }

// Stopped 会话是否已停止
func (s *Session) Stopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// stop closes the warehouse connection; temp views and tables die with it.
func (s *Session) stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	s.events.write(event{Event: "SessionEnd"})

	var errs []string
	if err := s.db.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := s.events.close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("stop session: %s", strings.Join(errs, "; "))
	}
	return nil
}

// =============================================================================
// 🔌 SQL 执行
// =============================================================================

func (s *Session) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return nil, ErrSessionStopped
	}
	return s.db, nil
}

// query 执行查询并取回全部行
func (s *Session) query(ctx context.Context, q string, args ...any) (*frame.Frame, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logQuery(q, start, err)
		return nil, classify(q, err)
	}
	defer rows.Close()

	f, err := frame.ScanRows(rows, nil)
	s.logQuery(q, start, err)
	if err != nil {
		return nil, classify(q, err)
	}
	return f, nil
}

// exec 执行非查询语句
func (s *Session) exec(ctx context.Context, q string, args ...any) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	start := time.Now()
	_, err = db.ExecContext(ctx, q, args...)
	s.logQuery(q, start, err)
	return classify(q, err)
}

// analyze prepares q so semantic errors surface when a DataFrame is defined.
func (s *Session) analyze(ctx context.Context, q string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	stmt, err := db.PrepareContext(ctx, q)
	if err != nil {
		return classify(q, err)
	}
	return stmt.Close()
}

func (s *Session) logQuery(q string, start time.Time, err error) {
	e := event{Event: "Query", Query: q, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		e.Error = err.Error()
	}
	s.events.write(e)
	s.logger.Debug("engine query",
		zap.String("app_id", s.AppID),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
}

func (s *Session) nextName(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, s.seq.Add(1))
}

// =============================================================================
// 📥 DataFrame 构造
// =============================================================================

// isQuery 判断语句是否产生结果集
func isQuery(q string) bool {
	fields := strings.Fields(strings.TrimSpace(q))
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "VALUES", "PRAGMA", "EXPLAIN":
		return true
	}
	return false
}

// SQL 与 spark.sql 对应：查询惰性返回 DataFrame，DDL/DML 立即执行
func (s *Session) SQL(ctx context.Context, q string) (*DataFrame, error) {
	q = strings.TrimRight(strings.TrimSpace(q), ";")
	if isQuery(q) {
		return s.newFrame(ctx, q)
	}
	if err := s.exec(ctx, q); err != nil {
		return nil, err
	}
	return s.newFrame(ctx, "SELECT 1 AS ok WHERE 0")
}

// Table 读取已注册的表或视图
func (s *Session) Table(ctx context.Context, name string) (*DataFrame, error) {
	return s.newFrame(ctx, "SELECT * FROM "+quoteIdent(name))
}

// Range 生成 [start, end) 步长为 step 的 id 列
func (s *Session) Range(ctx context.Context, start, end, step int64) (*DataFrame, error) {
	if step <= 0 {
		return nil, fmt.Errorf("range step must be positive, got %d", step)
	}
	q := fmt.Sprintf(
		"WITH RECURSIVE __range(id) AS (SELECT %d WHERE %d < %d UNION ALL SELECT id + %d FROM __range WHERE id + %d < %d) SELECT id FROM __range",
		start, start, end, step, step, end,
	)
	return s.newFrame(ctx, q)
}

// CreateDataFrame 把内存表格写入会话临时表
func (s *Session) CreateDataFrame(ctx context.Context, f *frame.Frame) (*DataFrame, error) {
	if len(f.Columns) == 0 {
		return nil, fmt.Errorf("cannot create a DataFrame without columns")
	}
	name := s.nextName("__df_")
	if err := s.load(ctx, name, f, true); err != nil {
		return nil, err
	}
	return s.newFrame(ctx, "SELECT * FROM "+quoteIdent(name))
}

// load creates table name and inserts every row of f in one transaction.
func (s *Session) load(ctx context.Context, name string, f *frame.Frame, temporary bool) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	defs := make([]string, len(f.Columns))
	marks := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		defs[i] = quoteIdent(c) + " " + sqlType(f, i)
		marks[i] = "?"
	}
	kind := "TABLE"
	if temporary {
		kind = "TEMP TABLE"
	}
	create := fmt.Sprintf("CREATE %s %s (%s)", kind, quoteIdent(name), strings.Join(defs, ", "))
	if err := s.exec(ctx, create); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		tx.Rollback()
		return classify(insert, err)
	}
	defer stmt.Close()
	for _, row := range f.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			tx.Rollback()
			return classify(insert, err)
		}
	}
	return tx.Commit()
}

// ReadJSON reads a JSON array of objects or newline-delimited objects.
func (s *Session) ReadJSON(ctx context.Context, path string) (*DataFrame, error) {
	f, err := frame.ReadJSONFile(path)
	if err != nil {
		return nil, err
	}
	return s.CreateDataFrame(ctx, f)
}

// ReadCSV 读取 CSV 文件为 DataFrame
func (s *Session) ReadCSV(ctx context.Context, path string, header bool) (*DataFrame, error) {
	f, err := frame.ReadCSVFile(path, header)
	if err != nil {
		return nil, err
	}
	return s.CreateDataFrame(ctx, f)
}

func (s *Session) newFrame(ctx context.Context, q string) (*DataFrame, error) {
	if err := s.analyze(ctx, q); err != nil {
		return nil, err
	}
	return &DataFrame{session: s, query: q}, nil
}

// sqlType 根据首个非空值推断列类型
func sqlType(f *frame.Frame, col int) string {
	for _, row := range f.Rows {
		switch row[col].(type) {
		case nil:
			continue
		case int64, int, bool:
			return "INTEGER"
		case float64:
			return "REAL"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
