package kernel

import (
	"github.com/dop251/goja"

	"github.com/Kirito034/DataVita/figure"
	"github.com/Kirito034/DataVita/notebook"
	"github.com/Kirito034/DataVita/sandbox"
)

// =============================================================================
// 📈 plt 绑定
// =============================================================================

// plotBinding backs the plt handle for one cell. show persists the current
// figure to the cell's image path and releases it.
type plotBinding struct {
	rt        *sandbox.Runtime
	workspace *notebook.Workspace
	target    string
	artifacts *[]notebook.Artifact
	current   *figure.Figure
}

func newPlotBinding(rt *sandbox.Runtime, ws *notebook.Workspace, cellID string, artifacts *[]notebook.Artifact) *plotBinding {
	return &plotBinding{
		rt:        rt,
		workspace: ws,
		target:    ws.FigurePath(cellID),
		artifacts: artifacts,
	}
}

func (p *plotBinding) fig() *figure.Figure {
	if p.current == nil {
		p.current = figure.New()
	}
	return p.current
}

// label 读取可选的 {label: "..."} 参数
func label(v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok {
		return ""
	}
	l := obj.Get("label")
	if isAbsent(l) {
		return ""
	}
	return l.String()
}

// xy 解析 (y) / (y, opts) / (x, y) / (x, y, opts)
func (p *plotBinding) xy(call goja.FunctionCall) (x, y []float64, lbl string) {
	args := call.Arguments
	_, secondIsArray := arrayItems(call.Argument(1))

	var err error
	if len(args) >= 2 && secondIsArray {
		if x, err = toFloats(args[0]); err != nil {
			p.rt.Throw(err)
		}
		if y, err = toFloats(args[1]); err != nil {
			p.rt.Throw(err)
		}
		return x, y, label(call.Argument(2))
	}
	if y, err = toFloats(call.Argument(0)); err != nil {
		p.rt.Throw(err)
	}
	return nil, y, label(call.Argument(1))
}

func (p *plotBinding) object() *goja.Object {
	vm := p.rt.VM()
	obj := vm.NewObject()
	undefined := goja.Undefined()

	_ = obj.Set("figure", func(goja.FunctionCall) goja.Value {
		p.current = figure.New()
		return undefined
	})
	_ = obj.Set("plot", func(call goja.FunctionCall) goja.Value {
		x, y, lbl := p.xy(call)
		if err := p.fig().Line(x, y, lbl); err != nil {
			p.rt.Throw(err)
		}
		return undefined
	})
	_ = obj.Set("scatter", func(call goja.FunctionCall) goja.Value {
		x, y, lbl := p.xy(call)
		if err := p.fig().Scatter(x, y, lbl); err != nil {
			p.rt.Throw(err)
		}
		return undefined
	})
	_ = obj.Set("bar", func(call goja.FunctionCall) goja.Value {
		names, err := toStrings(call.Argument(0))
		if err != nil {
			p.rt.Throw(err)
		}
		values, err := toFloats(call.Argument(1))
		if err != nil {
			p.rt.Throw(err)
		}
		if err := p.fig().Bar(names, values, label(call.Argument(2))); err != nil {
			p.rt.Throw(err)
		}
		return undefined
	})
	_ = obj.Set("title", func(s string) { p.fig().Title = s })
	_ = obj.Set("xlabel", func(s string) { p.fig().XLabel = s })
	_ = obj.Set("ylabel", func(s string) { p.fig().YLabel = s })
	_ = obj.Set("show", func(goja.FunctionCall) goja.Value {
		if err := p.fig().Save(p.target); err != nil {
			p.rt.Throw(err)
		}
		*p.artifacts = append(*p.artifacts, notebook.Artifact{Type: notebook.ArtifactImage, Path: p.target})
		p.current = nil
		return undefined
	})
	_ = obj.Set("savefig", func(path string) string {
		dest := p.workspace.Resolve(path)
		if err := p.fig().Save(dest); err != nil {
			p.rt.Throw(err)
		}
		return dest
	})
	_ = obj.Set("close", func(goja.FunctionCall) goja.Value {
		p.current = nil
		return undefined
	})
	return obj
}
