package kernel

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/dop251/goja"

	"github.com/Kirito034/DataVita/frame"
)

// maxExportDepth 超过该嵌套深度的值不再导出（防止循环引用）
const maxExportDepth = 64

func isAbsent(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// exportable converts an exported JS value into something the notebook can
// hold. Functions cannot cross runtimes and are dropped at every depth.
func exportable(v any, depth int) (any, bool) {
	if depth > maxExportDepth {
		return nil, false
	}
	switch x := v.(type) {
	case nil:
		return nil, true
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			if c, ok := exportable(e, depth+1); ok {
				out[k] = c
			}
		}
		return out, true
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			c, _ := exportable(e, depth+1)
			out[i] = c
		}
		return out, true
	}
	if reflect.ValueOf(v).Kind() == reflect.Func {
		return nil, false
	}
	return v, true
}

// stringify 等价于 JSON.stringify(v)
func stringify(vm *goja.Runtime, v goja.Value) string {
	fn, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return v.String()
	}
	out, err := fn(goja.Undefined(), v)
	if err != nil || isAbsent(out) {
		return v.String()
	}
	return out.String()
}

// cellValue exports one JS value into a frame cell. Nested values are kept
// as their JSON text.
func cellValue(vm *goja.Runtime, v goja.Value) any {
	if isAbsent(v) {
		return nil
	}
	if obj, ok := v.(*goja.Object); ok {
		switch obj.ClassName() {
		case "Date":
			return obj.Export()
		case "Object", "Array":
			return stringify(vm, v)
		}
	}
	return frame.Normalize(v.Export())
}

func arrayItems(v goja.Value) ([]goja.Value, bool) {
	obj, ok := v.(*goja.Object)
	if !ok || obj.ClassName() != "Array" {
		return nil, false
	}
	n := int(obj.Get("length").ToInteger())
	out := make([]goja.Value, n)
	for i := 0; i < n; i++ {
		out[i] = obj.Get(strconv.Itoa(i))
	}
	return out, true
}

// toFloats 把 JS 数组转换为 float64 切片；缺省参数返回 nil
func toFloats(v goja.Value) ([]float64, error) {
	if isAbsent(v) {
		return nil, nil
	}
	items, ok := arrayItems(v)
	if !ok {
		return nil, fmt.Errorf("expected an array of numbers, got %s", v.String())
	}
	out := make([]float64, len(items))
	for i, item := range items {
		x, ok := frame.ToFloat(frame.Normalize(item.Export()))
		if !ok {
			return nil, fmt.Errorf("element %d is not numeric: %s", i, item.String())
		}
		out[i] = x
	}
	return out, nil
}

func toStrings(v goja.Value) ([]string, error) {
	if isAbsent(v) {
		return nil, nil
	}
	items, ok := arrayItems(v)
	if !ok {
		return nil, fmt.Errorf("expected an array, got %s", v.String())
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.String()
	}
	return out, nil
}

// frameFromJS accepts records ([{a: 1}, ...]), columns ({a: [1, 2]}), or
// rows with an explicit header ([[1, 2]], ["a", "b"]).
func frameFromJS(vm *goja.Runtime, data, columns goja.Value) (*frame.Frame, error) {
	if isAbsent(data) {
		return frame.New(nil, nil), nil
	}
	header, err := toStrings(columns)
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	if items, ok := arrayItems(data); ok {
		if header != nil {
			return frameFromRows(vm, items, header)
		}
		return frameFromRecords(vm, items)
	}

	obj, ok := data.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("cannot build a DataFrame from %s", data.String())
	}
	cols := obj.Keys()
	values := make(map[string][]any, len(cols))
	for _, c := range cols {
		items, ok := arrayItems(obj.Get(c))
		if !ok {
			return nil, fmt.Errorf("column %q must be an array", c)
		}
		col := make([]any, len(items))
		for i, item := range items {
			col[i] = cellValue(vm, item)
		}
		values[c] = col
	}
	return frame.FromColumns(cols, values)
}

func frameFromRecords(vm *goja.Runtime, items []goja.Value) (*frame.Frame, error) {
	var cols []string
	seen := make(map[string]struct{})
	records := make([]map[string]any, 0, len(items))
	for i, item := range items {
		rec, ok := item.(*goja.Object)
		if !ok || rec.ClassName() == "Array" {
			return nil, fmt.Errorf("record %d must be an object, got %s", i, item.String())
		}
		m := make(map[string]any)
		for _, k := range rec.Keys() {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				cols = append(cols, k)
			}
			m[k] = cellValue(vm, rec.Get(k))
		}
		records = append(records, m)
	}
	return frame.FromRecords(cols, records), nil
}

func frameFromRows(vm *goja.Runtime, items []goja.Value, header []string) (*frame.Frame, error) {
	rows := make([][]any, len(items))
	for i, item := range items {
		cells, ok := arrayItems(item)
		if !ok {
			return nil, fmt.Errorf("row %d must be an array, got %s", i, item.String())
		}
		if len(cells) != len(header) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(cells), len(header))
		}
		row := make([]any, len(cells))
		for j, c := range cells {
			row[j] = cellValue(vm, c)
		}
		rows[i] = row
	}
	return frame.New(header, rows), nil
}

// recordsJS 把 Frame 转成 JS 对象数组
func recordsJS(vm *goja.Runtime, f *frame.Frame) goja.Value {
	out := make([]any, len(f.Rows))
	for i, row := range f.Rows {
		rec := vm.NewObject()
		for j, c := range f.Columns {
			_ = rec.Set(c, row[j])
		}
		out[i] = rec
	}
	return vm.NewArray(out...)
}

func stringsJS(vm *goja.Runtime, items []string) goja.Value {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return vm.NewArray(out...)
}
