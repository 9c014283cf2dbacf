package kernel

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/dop251/goja"

	"github.com/Kirito034/DataVita/frame"
	"github.com/Kirito034/DataVita/notebook"
	"github.com/Kirito034/DataVita/sandbox"
)

// =============================================================================
// 🧮 pd 绑定
// =============================================================================

// frameBinding backs the pd handle. Every DataFrame object it hands out is
// remembered so the cell's bindings can be exported as *frame.Frame.
type frameBinding struct {
	rt        *sandbox.Runtime
	workspace *notebook.Workspace
	csvPath   string
	artifacts *[]notebook.Artifact
	frames    map[*goja.Object]*frame.Frame
}

func newFrameBinding(rt *sandbox.Runtime, ws *notebook.Workspace, cellID string, artifacts *[]notebook.Artifact) *frameBinding {
	return &frameBinding{
		rt:        rt,
		workspace: ws,
		csvPath:   ws.CSVPath(cellID),
		artifacts: artifacts,
		frames:    make(map[*goja.Object]*frame.Frame),
	}
}

// unwrap 返回 JS 对象背后的 Frame
func (b *frameBinding) unwrap(v goja.Value) (*frame.Frame, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	f, ok := b.frames[obj]
	return f, ok
}

func (b *frameBinding) object() *goja.Object {
	vm := b.rt.VM()
	pd := vm.NewObject()

	_ = pd.Set("DataFrame", func(call goja.FunctionCall) goja.Value {
		f, err := frameFromJS(vm, call.Argument(0), call.Argument(1))
		if err != nil {
			b.rt.Throw(err)
		}
		return b.wrap(f)
	})
	_ = pd.Set("read_csv", func(call goja.FunctionCall) goja.Value {
		header := true
		if opts, ok := call.Argument(1).(*goja.Object); ok {
			if h := opts.Get("header"); !isAbsent(h) {
				header = h.ToBoolean()
			}
		}
		f, err := frame.ReadCSVFile(b.input(call.Argument(0).String()), header)
		if err != nil {
			b.rt.Throw(err)
		}
		return b.wrap(f)
	})
	_ = pd.Set("read_json", func(path string) goja.Value {
		f, err := frame.ReadJSONFile(b.input(path))
		if err != nil {
			b.rt.Throw(err)
		}
		return b.wrap(f)
	})
	return pd
}

func (b *frameBinding) input(path string) string {
	resolved := b.workspace.Resolve(path)
	if _, err := os.Stat(resolved); errors.Is(err, os.ErrNotExist) {
		b.rt.Throw(fmt.Errorf("No such file or directory: '%s'", path))
	}
	return resolved
}

// wrap builds the JS face of f.
func (b *frameBinding) wrap(f *frame.Frame) *goja.Object {
	vm := b.rt.VM()
	obj := vm.NewObject()
	b.frames[obj] = f

	_ = obj.Set("columns", stringsJS(vm, f.Columns))
	_ = obj.Set("length", f.Len())
	_ = obj.Set("shape", vm.NewArray(f.Len(), len(f.Columns)))

	_ = obj.Set("head", func(call goja.FunctionCall) goja.Value {
		n := 5
		if arg := call.Argument(0); !isAbsent(arg) {
			n = int(arg.ToInteger())
		}
		return b.wrap(f.Head(n))
	})
	_ = obj.Set("tail", func(call goja.FunctionCall) goja.Value {
		n := 5
		if arg := call.Argument(0); !isAbsent(arg) {
			n = int(arg.ToInteger())
		}
		if n < 0 {
			n = 0
		}
		start := f.Len() - n
		if start < 0 {
			start = 0
		}
		return b.wrap(frame.New(f.Columns, f.Rows[start:]))
	})
	_ = obj.Set("column", func(name string) goja.Value {
		col, err := f.Column(name)
		if err != nil {
			b.rt.Throw(err)
		}
		return vm.NewArray(col...)
	})
	_ = obj.Set("sum", func(name string) float64 { return b.reduce(f, name, sum) })
	_ = obj.Set("mean", func(name string) float64 {
		if f.Len() == 0 {
			return math.NaN()
		}
		return b.reduce(f, name, sum) / float64(f.Len())
	})
	_ = obj.Set("min", func(name string) float64 { return b.reduce(f, name, minOf) })
	_ = obj.Set("max", func(name string) float64 { return b.reduce(f, name, maxOf) })
	_ = obj.Set("to_records", func(goja.FunctionCall) goja.Value {
		return recordsJS(vm, f)
	})
	_ = obj.Set("toJSON", func(goja.FunctionCall) goja.Value {
		return recordsJS(vm, f)
	})
	_ = obj.Set("to_csv", func(call goja.FunctionCall) goja.Value {
		path := b.csvPath
		if arg := call.Argument(0); !isAbsent(arg) {
			path = b.workspace.Resolve(arg.String())
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			b.rt.Throw(err)
		}
		if err := f.WriteCSVFile(path); err != nil {
			b.rt.Throw(err)
		}
		*b.artifacts = append(*b.artifacts, notebook.Artifact{Type: notebook.ArtifactCSV, Path: path})
		return vm.ToValue(path)
	})
	_ = obj.Set("__repr__", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(f.String())
	})
	_ = obj.Set("toString", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(f.String())
	})
	return obj
}

func (b *frameBinding) reduce(f *frame.Frame, name string, fn func([]float64) float64) float64 {
	values, err := f.Floats(name)
	if err != nil {
		b.rt.Throw(err)
	}
	return fn(values)
}

func sum(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total
}

func minOf(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Min(m, x)
	}
	return m
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Max(m, x)
	}
	return m
}
