// Package figure 记录单元格内的绘图调用，并通过 gonum/plot 渲染为图片。
package figure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Kind 图形类型
type Kind string

const (
	KindLine    Kind = "line"
	KindScatter Kind = "scatter"
	KindBar     Kind = "bar"
)

// 默认尺寸
const (
	DefaultWidth  = 6 * vg.Inch
	DefaultHeight = 4 * vg.Inch
)

// ErrNoData is returned when a series has no points.
var ErrNoData = errors.New("plot requires at least one data point")

// Series 一组数据
type Series struct {
	Kind  Kind
	Label string
	X     []float64
	Y     []float64
	Names []string
}

// Figure accumulates series until it is saved or released.
type Figure struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series
}

// New 创建空白图形
func New() *Figure {
	return &Figure{}
}

// Line 追加折线；x 为空时使用 0..n-1
func (f *Figure) Line(x, y []float64, label string) error {
	return f.addXY(KindLine, x, y, label)
}

// Scatter 追加散点
func (f *Figure) Scatter(x, y []float64, label string) error {
	return f.addXY(KindScatter, x, y, label)
}

// Bar 追加柱状图
func (f *Figure) Bar(names []string, values []float64, label string) error {
	if len(values) == 0 {
		return ErrNoData
	}
	if len(names) != 0 && len(names) != len(values) {
		return fmt.Errorf("bar labels (%d) and values (%d) differ in length", len(names), len(values))
	}
	f.Series = append(f.Series, Series{Kind: KindBar, Label: label, Y: values, Names: names})
	return nil
}

func (f *Figure) addXY(kind Kind, x, y []float64, label string) error {
	if len(y) == 0 {
		return ErrNoData
	}
	if len(x) == 0 {
		x = make([]float64, len(y))
		for i := range x {
			x[i] = float64(i)
		}
	}
	if len(x) != len(y) {
		return fmt.Errorf("x and y must have same first dimension, but have shapes (%d,) and (%d,)", len(x), len(y))
	}
	f.Series = append(f.Series, Series{Kind: kind, Label: label, X: x, Y: y})
	return nil
}

// Empty 是否没有任何数据
func (f *Figure) Empty() bool { return len(f.Series) == 0 }

// Save renders the figure to path; the format follows the extension.
func (f *Figure) Save(path string) error {
	p, err := f.build()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create figure dir: %w", err)
	}
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return fmt.Errorf("save figure: %w", err)
	}
	return nil
}

func (f *Figure) build() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = f.Title
	p.X.Label.Text = f.XLabel
	p.Y.Label.Text = f.YLabel

	for i, s := range f.Series {
		switch s.Kind {
		case KindLine:
			l, err := plotter.NewLine(toXYs(s.X, s.Y))
			if err != nil {
				return nil, err
			}
			l.LineStyle.Color = plotutil.Color(i)
			p.Add(l)
			if s.Label != "" {
				p.Legend.Add(s.Label, l)
			}
		case KindScatter:
			sc, err := plotter.NewScatter(toXYs(s.X, s.Y))
			if err != nil {
				return nil, err
			}
			sc.GlyphStyle.Color = plotutil.Color(i)
			p.Add(sc)
			if s.Label != "" {
				p.Legend.Add(s.Label, sc)
			}
		case KindBar:
			b, err := plotter.NewBarChart(plotter.Values(s.Y), vg.Points(20))
			if err != nil {
				return nil, err
			}
			b.Color = plotutil.Color(i)
			p.Add(b)
			if len(s.Names) > 0 {
				p.NominalX(s.Names...)
			}
			if s.Label != "" {
				p.Legend.Add(s.Label, b)
			}
		}
	}
	return p, nil
}

func toXYs(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, len(y))
	for i := range y {
		pts[i].X = x[i]
		pts[i].Y = y[i]
	}
	return pts
}
