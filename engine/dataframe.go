package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kirito034/DataVita/frame"
)

// DataFrame 惰性数据帧：只保存编译后的查询，动作（Collect/Count/Show）才执行。
// 每次变换都会立即做一次语义分析，错误在定义处暴露。
type DataFrame struct {
	session *Session
	query   string
}

// SQL 返回数据帧对应的查询语句
func (df *DataFrame) SQL() string { return df.query }

// Session 返回所属会话
func (df *DataFrame) Session() *Session { return df.session }

func (df *DataFrame) derive(ctx context.Context, format string, args ...any) (*DataFrame, error) {
	return df.session.newFrame(ctx, fmt.Sprintf(format, args...))
}

// =============================================================================
// 🔄 变换
// =============================================================================

// Select 投影列或表达式
func (df *DataFrame) Select(ctx context.Context, exprs ...string) (*DataFrame, error) {
	if len(exprs) == 0 {
		exprs = []string{"*"}
	}
	return df.derive(ctx, "SELECT %s FROM (%s) AS t", strings.Join(exprs, ", "), df.query)
}

// Filter 按条件过滤
func (df *DataFrame) Filter(ctx context.Context, condition string) (*DataFrame, error) {
	return df.derive(ctx, "SELECT * FROM (%s) AS t WHERE %s", df.query, condition)
}

// Where is an alias for Filter.
func (df *DataFrame) Where(ctx context.Context, condition string) (*DataFrame, error) {
	return df.Filter(ctx, condition)
}

// Limit 取前 n 行
func (df *DataFrame) Limit(ctx context.Context, n int) (*DataFrame, error) {
	if n < 0 {
		return nil, fmt.Errorf("limit must be non-negative, got %d", n)
	}
	return df.derive(ctx, "SELECT * FROM (%s) AS t LIMIT %d", df.query, n)
}

// OrderBy sorts by the given expressions; each may carry ASC or DESC.
func (df *DataFrame) OrderBy(ctx context.Context, exprs ...string) (*DataFrame, error) {
	if len(exprs) == 0 {
		return df, nil
	}
	return df.derive(ctx, "SELECT * FROM (%s) AS t ORDER BY %s", df.query, strings.Join(exprs, ", "))
}

// WithColumn 新增列，同名列被原位替换
func (df *DataFrame) WithColumn(ctx context.Context, name, expr string) (*DataFrame, error) {
	cols, err := df.Columns(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]string, 0, len(cols)+1)
	replaced := false
	for _, c := range cols {
		if c == name {
			list = append(list, fmt.Sprintf("(%s) AS %s", expr, quoteIdent(name)))
			replaced = true
			continue
		}
		list = append(list, quoteIdent(c))
	}
	if !replaced {
		list = append(list, fmt.Sprintf("(%s) AS %s", expr, quoteIdent(name)))
	}
	return df.derive(ctx, "SELECT %s FROM (%s) AS t", strings.Join(list, ", "), df.query)
}

// Join 按同名列连接；how 取 inner、left 或 cross
func (df *DataFrame) Join(ctx context.Context, other *DataFrame, on []string, how string) (*DataFrame, error) {
	if other.session != df.session {
		return nil, fmt.Errorf("cannot join DataFrames from different sessions")
	}
	var kind string
	switch strings.ToLower(how) {
	case "", "inner":
		kind = "JOIN"
	case "left", "left_outer", "leftouter":
		kind = "LEFT JOIN"
	case "cross":
		return df.derive(ctx, "SELECT * FROM (%s) AS l CROSS JOIN (%s) AS r", df.query, other.query)
	default:
		return nil, fmt.Errorf("unsupported join type: %s", how)
	}
	if len(on) == 0 {
		return nil, fmt.Errorf("join requires at least one column")
	}
	quoted := make([]string, len(on))
	for i, c := range on {
		quoted[i] = quoteIdent(c)
	}
	return df.derive(ctx, "SELECT * FROM (%s) AS l %s (%s) AS r USING (%s)",
		df.query, kind, other.query, strings.Join(quoted, ", "))
}

// Union 按位置合并两个数据帧，保留重复行
func (df *DataFrame) Union(ctx context.Context, other *DataFrame) (*DataFrame, error) {
	return df.derive(ctx, "SELECT * FROM (%s) UNION ALL SELECT * FROM (%s)", df.query, other.query)
}

// Distinct 去重
func (df *DataFrame) Distinct(ctx context.Context) (*DataFrame, error) {
	return df.derive(ctx, "SELECT DISTINCT * FROM (%s) AS t", df.query)
}

// GroupBy 分组，随后调用聚合方法
func (df *DataFrame) GroupBy(cols ...string) *GroupedData {
	return &GroupedData{df: df, keys: cols}
}

// =============================================================================
// ⚡ 动作
// =============================================================================

// Columns 返回列名，不取数据
func (df *DataFrame) Columns(ctx context.Context) ([]string, error) {
	f, err := df.session.query(ctx, fmt.Sprintf("SELECT * FROM (%s) AS t LIMIT 0", df.query))
	if err != nil {
		return nil, err
	}
	return f.Columns, nil
}

// Collect 执行查询并取回全部行
func (df *DataFrame) Collect(ctx context.Context) (*frame.Frame, error) {
	return df.session.query(ctx, df.query)
}

// Count 返回行数
func (df *DataFrame) Count(ctx context.Context) (int64, error) {
	f, err := df.session.query(ctx, fmt.Sprintf("SELECT COUNT(*) AS n FROM (%s) AS t", df.query))
	if err != nil {
		return 0, err
	}
	if len(f.Rows) == 0 {
		return 0, nil
	}
	n, _ := f.Rows[0][0].(int64)
	return n, nil
}

// Show renders the first n rows as a bordered table.
func (df *DataFrame) Show(ctx context.Context, n int) (string, error) {
	if n <= 0 {
		n = 20
	}
	f, err := df.session.query(ctx, fmt.Sprintf("SELECT * FROM (%s) AS t LIMIT %d", df.query, n+1))
	if err != nil {
		return "", err
	}
	return f.Show(n), nil
}

// CreateOrReplaceTempView 注册会话级临时视图
func (df *DataFrame) CreateOrReplaceTempView(ctx context.Context, name string) error {
	if err := df.session.exec(ctx, "DROP VIEW IF EXISTS temp."+quoteIdent(name)); err != nil {
		return err
	}
	return df.session.exec(ctx, fmt.Sprintf("CREATE TEMP VIEW %s AS %s", quoteIdent(name), df.query))
}

// Write 返回写出器，默认模式为 error
func (df *DataFrame) Write() *Writer {
	return &Writer{df: df, mode: SaveModeError}
}

// =============================================================================
// 📊 分组聚合
// =============================================================================

// GroupedData 分组后的数据帧
type GroupedData struct {
	df   *DataFrame
	keys []string
}

func (g *GroupedData) aggregate(ctx context.Context, aggs []string) (*DataFrame, error) {
	keys := make([]string, len(g.keys))
	for i, k := range g.keys {
		keys[i] = quoteIdent(k)
	}
	list := append(append([]string(nil), keys...), aggs...)
	if len(keys) == 0 {
		return g.df.derive(ctx, "SELECT %s FROM (%s) AS t", strings.Join(list, ", "), g.df.query)
	}
	return g.df.derive(ctx, "SELECT %s FROM (%s) AS t GROUP BY %s",
		strings.Join(list, ", "), g.df.query, strings.Join(keys, ", "))
}

func (g *GroupedData) apply(ctx context.Context, fn string, cols []string) (*DataFrame, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("%s requires at least one column", fn)
	}
	aggs := make([]string, len(cols))
	for i, c := range cols {
		aggs[i] = aggExpr(fn, c)
	}
	return g.aggregate(ctx, aggs)
}

// Count 每组行数，结果列名为 count
func (g *GroupedData) Count(ctx context.Context) (*DataFrame, error) {
	return g.aggregate(ctx, []string{`COUNT(*) AS "count"`})
}

// Sum 求和
func (g *GroupedData) Sum(ctx context.Context, cols ...string) (*DataFrame, error) {
	return g.apply(ctx, "sum", cols)
}

// Avg 平均值
func (g *GroupedData) Avg(ctx context.Context, cols ...string) (*DataFrame, error) {
	return g.apply(ctx, "avg", cols)
}

// Min 最小值
func (g *GroupedData) Min(ctx context.Context, cols ...string) (*DataFrame, error) {
	return g.apply(ctx, "min", cols)
}

// Max 最大值
func (g *GroupedData) Max(ctx context.Context, cols ...string) (*DataFrame, error) {
	return g.apply(ctx, "max", cols)
}

// Agg maps column → aggregate function name (sum, avg, min, max, count).
// Columns are processed in the order given by cols.
func (g *GroupedData) Agg(ctx context.Context, cols []string, fns map[string]string) (*DataFrame, error) {
	aggs := make([]string, 0, len(cols))
	for _, c := range cols {
		fn := strings.ToLower(fns[c])
		switch fn {
		case "sum", "avg", "min", "max", "count":
		case "mean":
			fn = "avg"
		default:
			return nil, fmt.Errorf("unsupported aggregate function %q for column %q", fns[c], c)
		}
		aggs = append(aggs, aggExpr(fn, c))
	}
	return g.aggregate(ctx, aggs)
}

func aggExpr(fn, col string) string {
	return fmt.Sprintf("%s(%s) AS %s", strings.ToUpper(fn), quoteIdent(col), quoteIdent(fn+"("+col+")"))
}

// =============================================================================
// 💾 写出
// =============================================================================

// SaveMode 表已存在时的处理方式
type SaveMode string

const (
	SaveModeError     SaveMode = "error"
	SaveModeOverwrite SaveMode = "overwrite"
	SaveModeAppend    SaveMode = "append"
	SaveModeIgnore    SaveMode = "ignore"
)

// Writer 数据帧写出器
type Writer struct {
	df   *DataFrame
	mode SaveMode
}

// Mode 设置写出模式
func (w *Writer) Mode(mode string) (*Writer, error) {
	switch m := SaveMode(strings.ToLower(mode)); m {
	case SaveModeError, SaveModeOverwrite, SaveModeAppend, SaveModeIgnore:
		return &Writer{df: w.df, mode: m}, nil
	case "errorifexists":
		return &Writer{df: w.df, mode: SaveModeError}, nil
	default:
		return nil, fmt.Errorf("unknown save mode: %s", mode)
	}
}

// SaveAsTable 写入仓库中的持久表
func (w *Writer) SaveAsTable(ctx context.Context, name string) error {
	s := w.df.session
	exists, err := s.tableExists(ctx, name)
	if err != nil {
		return err
	}
	create := fmt.Sprintf("CREATE TABLE %s AS %s", quoteIdent(name), w.df.query)

	switch {
	case !exists:
		return s.exec(ctx, create)
	case w.mode == SaveModeIgnore:
		return nil
	case w.mode == SaveModeError:
		return &AnalysisError{Query: create, Err: fmt.Errorf("table %s already exists", name)}
	case w.mode == SaveModeOverwrite:
		if err := s.exec(ctx, "DROP TABLE IF EXISTS main."+quoteIdent(name)); err != nil {
			return err
		}
		return s.exec(ctx, create)
	default:
		return s.exec(ctx, fmt.Sprintf("INSERT INTO %s %s", quoteIdent(name), w.df.query))
	}
}

// CSV 收集并写出为 CSV 文件
func (w *Writer) CSV(ctx context.Context, path string) error {
	f, err := w.df.Collect(ctx)
	if err != nil {
		return err
	}
	return f.WriteCSVFile(path)
}
