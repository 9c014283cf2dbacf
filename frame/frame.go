// Package frame 提供两种方言共享的内存表格结构。
package frame

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Frame is an ordered set of named columns over row-major data.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// New 创建 Frame；每行长度不足时补 nil
func New(columns []string, rows [][]any) *Frame {
	f := &Frame{Columns: append([]string(nil), columns...)}
	for _, row := range rows {
		f.Rows = append(f.Rows, normalizeRow(row, len(columns)))
	}
	return f
}

// FromRecords builds a frame from records; columns fixes the order and
// keys missing from a record become nil.
func FromRecords(columns []string, records []map[string]any) *Frame {
	f := &Frame{Columns: append([]string(nil), columns...)}
	for _, rec := range records {
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = Normalize(rec[c])
		}
		f.Rows = append(f.Rows, row)
	}
	return f
}

// FromColumns builds a frame from equally sized column slices.
func FromColumns(columns []string, data map[string][]any) (*Frame, error) {
	n := -1
	for _, c := range columns {
		vals, ok := data[c]
		if !ok {
			return nil, fmt.Errorf("column %q has no data", c)
		}
		if n >= 0 && len(vals) != n {
			return nil, fmt.Errorf("all columns must have the same length: %q has %d, expected %d", c, len(vals), n)
		}
		n = len(vals)
	}
	if n < 0 {
		n = 0
	}

	f := &Frame{Columns: append([]string(nil), columns...), Rows: make([][]any, n)}
	for r := 0; r < n; r++ {
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = Normalize(data[c][r])
		}
		f.Rows[r] = row
	}
	return f, nil
}

// Len 返回行数
func (f *Frame) Len() int { return len(f.Rows) }

// Records converts every row into a column-keyed record.
func (f *Frame) Records() ([]map[string]any, error) {
	out := make([]map[string]any, len(f.Rows))
	for i, row := range f.Rows {
		rec := make(map[string]any, len(f.Columns))
		for j, c := range f.Columns {
			rec[c] = row[j]
		}
		out[i] = rec
	}
	return out, nil
}

// Head 返回前 n 行
func (f *Frame) Head(n int) *Frame {
	if n < 0 {
		n = 0
	}
	if n > len(f.Rows) {
		n = len(f.Rows)
	}
	return &Frame{Columns: f.Columns, Rows: f.Rows[:n]}
}

// Column 返回单列
func (f *Frame) Column(name string) ([]any, error) {
	idx := f.index(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", name)
	}
	out := make([]any, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Floats returns a column as float64, rejecting non-numeric cells.
func (f *Frame) Floats(name string) ([]float64, error) {
	col, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(col))
	for i, v := range col {
		x, ok := ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("column %q row %d is not numeric: %v", name, i, v)
		}
		out[i] = x
	}
	return out, nil
}

func (f *Frame) index(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// String renders the first rows as a bordered text table.
func (f *Frame) String() string {
	return f.Show(20)
}

// Show 以表格形式渲染前 n 行
func (f *Frame) Show(n int) string {
	view := f.Head(n)
	widths := make([]int, len(view.Columns))
	cells := make([][]string, len(view.Rows))
	for i, c := range view.Columns {
		widths[i] = len(c)
	}
	for r, row := range view.Rows {
		cells[r] = make([]string, len(row))
		for i, v := range row {
			s := Format(v)
			cells[r][i] = s
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	var b strings.Builder
	sep := func() {
		b.WriteByte('+')
		for _, w := range widths {
			b.WriteString(strings.Repeat("-", w))
			b.WriteByte('+')
		}
		b.WriteByte('\n')
	}
	line := func(vals []string) {
		b.WriteByte('|')
		for i, v := range vals {
			b.WriteString(strings.Repeat(" ", widths[i]-len(v)))
			b.WriteString(v)
			b.WriteByte('|')
		}
		b.WriteByte('\n')
	}

	sep()
	line(view.Columns)
	sep()
	for _, row := range cells {
		line(row)
	}
	sep()
	if len(f.Rows) > n {
		fmt.Fprintf(&b, "only showing top %d rows\n", n)
	}
	return b.String()
}

// Format renders one cell value.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return fmt.Sprintf("%.1f", x)
		}
		return fmt.Sprint(x)
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}

// Normalize maps driver and interpreter values onto JSON-friendly types.
func Normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

// ToFloat 把数值类单元格转换为 float64
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func normalizeRow(row []any, width int) []any {
	out := make([]any, width)
	for i := 0; i < width && i < len(row); i++ {
		out[i] = Normalize(row[i])
	}
	return out
}
