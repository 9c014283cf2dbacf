package kernel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"

	"github.com/Kirito034/DataVita/engine"
	"github.com/Kirito034/DataVita/frame"
	"github.com/Kirito034/DataVita/sandbox"
	"github.com/Kirito034/DataVita/sqlexec"
)

// =============================================================================
// ⚡ spark 绑定
// =============================================================================

// sparkBinding exposes one engine session to a frame cell. All engine calls
// run under the cell's context.
type sparkBinding struct {
	ctx       context.Context
	rt        *sandbox.Runtime
	session   *engine.Session
	analytics func(context.Context) (*sql.DB, error)
	dataDir   string
	frames    map[*goja.Object]*engine.DataFrame
}

func newSparkBinding(ctx context.Context, rt *sandbox.Runtime, s *engine.Session, analytics func(context.Context) (*sql.DB, error), dataDir string) *sparkBinding {
	return &sparkBinding{
		ctx:       ctx,
		rt:        rt,
		session:   s,
		analytics: analytics,
		dataDir:   dataDir,
		frames:    make(map[*goja.Object]*engine.DataFrame),
	}
}

func (b *sparkBinding) unwrap(v goja.Value) (*engine.DataFrame, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	df, ok := b.frames[obj]
	return df, ok
}

// must 把 Go 错误转成 JS 异常
func (b *sparkBinding) must(df *engine.DataFrame, err error) goja.Value {
	if err != nil {
		b.rt.Throw(err)
	}
	return b.wrap(df)
}

func (b *sparkBinding) arg(call goja.FunctionCall, i int) *engine.DataFrame {
	df, ok := b.unwrap(call.Argument(i))
	if !ok {
		b.rt.Throw(fmt.Errorf("argument %d must be a DataFrame", i+1))
	}
	return df
}

func (b *sparkBinding) path(p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(b.dataDir, p)
	}
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		b.rt.Throw(&engine.AnalysisError{Err: fmt.Errorf("[PATH_NOT_FOUND] Path does not exist: %s.", p)})
	}
	return p
}

func (b *sparkBinding) object() *goja.Object {
	vm := b.rt.VM()
	spark := vm.NewObject()
	s := b.session

	_ = spark.Set("sql", func(q string) goja.Value {
		return b.must(s.SQL(b.ctx, q))
	})
	_ = spark.Set("table", func(name string) goja.Value {
		return b.must(s.Table(b.ctx, name))
	})
	_ = spark.Set("range", func(call goja.FunctionCall) goja.Value {
		start, end, step := int64(0), call.Argument(0).ToInteger(), int64(1)
		if !isAbsent(call.Argument(1)) {
			start, end = end, call.Argument(1).ToInteger()
		}
		if !isAbsent(call.Argument(2)) {
			step = call.Argument(2).ToInteger()
		}
		return b.must(s.Range(b.ctx, start, end, step))
	})
	_ = spark.Set("createDataFrame", func(call goja.FunctionCall) goja.Value {
		f, err := frameFromJS(vm, call.Argument(0), call.Argument(1))
		if err != nil {
			b.rt.Throw(err)
		}
		return b.must(s.CreateDataFrame(b.ctx, f))
	})

	read := vm.NewObject()
	_ = read.Set("csv", func(call goja.FunctionCall) goja.Value {
		header := false
		if opts, ok := call.Argument(1).(*goja.Object); ok {
			header = opts.Get("header") != nil && opts.Get("header").ToBoolean()
		}
		return b.must(s.ReadCSV(b.ctx, b.path(call.Argument(0).String()), header))
	})
	_ = read.Set("json", func(p string) goja.Value {
		return b.must(s.ReadJSON(b.ctx, b.path(p)))
	})
	_ = spark.Set("read", read)

	conf := vm.NewObject()
	_ = conf.Set("get", func(call goja.FunctionCall) goja.Value {
		if v, ok := s.Conf()[call.Argument(0).String()]; ok {
			return vm.ToValue(v)
		}
		if def := call.Argument(1); !goja.IsUndefined(def) {
			return def
		}
		return goja.Null()
	})
	_ = conf.Set("getAll", func(goja.FunctionCall) goja.Value {
		obj := vm.NewObject()
		for k, v := range s.Conf() {
			_ = obj.Set(k, v)
		}
		return obj
	})
	_ = spark.Set("conf", conf)

	catalog := vm.NewObject()
	_ = catalog.Set("listTables", func(goja.FunctionCall) goja.Value {
		tables, err := s.ListTables(b.ctx)
		if err != nil {
			b.rt.Throw(err)
		}
		out := make([]any, len(tables))
		for i, t := range tables {
			obj := vm.NewObject()
			_ = obj.Set("name", t.Name)
			_ = obj.Set("tableType", strings.ToUpper(t.Type))
			_ = obj.Set("isTemporary", t.Temporary)
			out[i] = obj
		}
		return vm.NewArray(out...)
	})
	_ = spark.Set("catalog", catalog)

	_ = spark.Set("appName", s.AppName)
	_ = spark.Set("master", s.Master)
	return spark
}

// analyticsObject binds the secondary in-process connection.
func (b *sparkBinding) analyticsObject() *goja.Object {
	vm := b.rt.VM()
	obj := vm.NewObject()
	_ = obj.Set("sql", func(q string) goja.Value {
		db, err := b.analytics(b.ctx)
		if err != nil {
			b.rt.Throw(err)
		}
		if !sqlexec.IsReadQuery(q) {
			res, err := db.ExecContext(b.ctx, q)
			if err != nil {
				b.rt.Throw(err)
			}
			n, _ := res.RowsAffected()
			return vm.ToValue(n)
		}
		rows, err := db.QueryContext(b.ctx, q)
		if err != nil {
			b.rt.Throw(err)
		}
		defer rows.Close()
		f, err := frame.ScanRows(rows, sqlexec.CoerceDecimal)
		if err != nil {
			b.rt.Throw(err)
		}
		return recordsJS(vm, f)
	})
	return obj
}

// wrap builds the JS face of a lazy DataFrame.
func (b *sparkBinding) wrap(df *engine.DataFrame) *goja.Object {
	vm := b.rt.VM()
	obj := vm.NewObject()
	b.frames[obj] = df
	ctx := b.ctx

	strs := func(call goja.FunctionCall) []string {
		out := make([]string, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			if items, ok := arrayItems(a); ok {
				for _, item := range items {
					out = append(out, item.String())
				}
				continue
			}
			out = append(out, a.String())
		}
		return out
	}

	_ = obj.Set("select", func(call goja.FunctionCall) goja.Value {
		return b.must(df.Select(ctx, strs(call)...))
	})
	_ = obj.Set("filter", func(cond string) goja.Value { return b.must(df.Filter(ctx, cond)) })
	_ = obj.Set("where", func(cond string) goja.Value { return b.must(df.Where(ctx, cond)) })
	_ = obj.Set("limit", func(n int) goja.Value { return b.must(df.Limit(ctx, n)) })
	orderBy := func(call goja.FunctionCall) goja.Value {
		return b.must(df.OrderBy(ctx, strs(call)...))
	}
	_ = obj.Set("orderBy", orderBy)
	_ = obj.Set("sort", orderBy)
	_ = obj.Set("withColumn", func(name, expr string) goja.Value {
		return b.must(df.WithColumn(ctx, name, expr))
	})
	_ = obj.Set("join", func(call goja.FunctionCall) goja.Value {
		other := b.arg(call, 0)
		var on []string
		if v := call.Argument(1); !isAbsent(v) {
			if items, ok := arrayItems(v); ok {
				for _, item := range items {
					on = append(on, item.String())
				}
			} else {
				on = []string{v.String()}
			}
		}
		how := "inner"
		if v := call.Argument(2); !isAbsent(v) {
			how = v.String()
		}
		return b.must(df.Join(ctx, other, on, how))
	})
	union := func(call goja.FunctionCall) goja.Value {
		return b.must(df.Union(ctx, b.arg(call, 0)))
	}
	_ = obj.Set("union", union)
	_ = obj.Set("unionAll", union)
	_ = obj.Set("distinct", func(goja.FunctionCall) goja.Value { return b.must(df.Distinct(ctx)) })
	_ = obj.Set("groupBy", func(call goja.FunctionCall) goja.Value {
		return b.grouped(df.GroupBy(strs(call)...))
	})

	_ = obj.Set("count", func(goja.FunctionCall) goja.Value {
		n, err := df.Count(ctx)
		if err != nil {
			b.rt.Throw(err)
		}
		return vm.ToValue(n)
	})
	_ = obj.Set("collect", func(goja.FunctionCall) goja.Value {
		f, err := df.Collect(ctx)
		if err != nil {
			b.rt.Throw(err)
		}
		return recordsJS(vm, f)
	})
	_ = obj.Set("show", func(call goja.FunctionCall) goja.Value {
		n := 20
		if v := call.Argument(0); !isAbsent(v) {
			n = int(v.ToInteger())
		}
		out, err := df.Show(ctx, n)
		if err != nil {
			b.rt.Throw(err)
		}
		if printFn, ok := goja.AssertFunction(vm.Get("print")); ok {
			_, _ = printFn(goja.Undefined(), vm.ToValue(strings.TrimRight(out, "\n")))
		}
		return goja.Undefined()
	})
	_ = obj.DefineAccessorProperty("columns", vm.ToValue(func(goja.FunctionCall) goja.Value {
		cols, err := df.Columns(ctx)
		if err != nil {
			b.rt.Throw(err)
		}
		return stringsJS(vm, cols)
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = obj.Set("createOrReplaceTempView", func(name string) {
		if err := df.CreateOrReplaceTempView(ctx, name); err != nil {
			b.rt.Throw(err)
		}
	})
	_ = obj.Set("write", b.writer(df.Write()))
	_ = obj.Set("__repr__", func(goja.FunctionCall) goja.Value {
		cols, err := df.Columns(ctx)
		if err != nil {
			return vm.ToValue("DataFrame[]")
		}
		return vm.ToValue("DataFrame[" + strings.Join(cols, ", ") + "]")
	})
	return obj
}

func (b *sparkBinding) grouped(g *engine.GroupedData) *goja.Object {
	vm := b.rt.VM()
	obj := vm.NewObject()
	ctx := b.ctx

	agg := func(fn func(context.Context, ...string) (*engine.DataFrame, error)) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			cols := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				cols[i] = a.String()
			}
			return b.must(fn(ctx, cols...))
		}
	}
	_ = obj.Set("count", func(goja.FunctionCall) goja.Value { return b.must(g.Count(ctx)) })
	_ = obj.Set("sum", agg(g.Sum))
	_ = obj.Set("avg", agg(g.Avg))
	_ = obj.Set("mean", agg(g.Avg))
	_ = obj.Set("min", agg(g.Min))
	_ = obj.Set("max", agg(g.Max))
	_ = obj.Set("agg", func(call goja.FunctionCall) goja.Value {
		spec, ok := call.Argument(0).(*goja.Object)
		if !ok {
			b.rt.Throw(errors.New("agg expects an object mapping column to function"))
		}
		cols := spec.Keys()
		fns := make(map[string]string, len(cols))
		for _, c := range cols {
			fns[c] = spec.Get(c).String()
		}
		return b.must(g.Agg(ctx, cols, fns))
	})
	return obj
}

func (b *sparkBinding) writer(w *engine.Writer) *goja.Object {
	vm := b.rt.VM()
	obj := vm.NewObject()
	_ = obj.Set("mode", func(mode string) goja.Value {
		next, err := w.Mode(mode)
		if err != nil {
			b.rt.Throw(err)
		}
		return b.writer(next)
	})
	_ = obj.Set("saveAsTable", func(name string) {
		if err := w.SaveAsTable(b.ctx, name); err != nil {
			b.rt.Throw(err)
		}
	})
	_ = obj.Set("csv", func(p string) {
		if !filepath.IsAbs(p) {
			p = filepath.Join(b.dataDir, p)
		}
		if err := w.CSV(b.ctx, p); err != nil {
			b.rt.Throw(err)
		}
	})
	return obj
}
