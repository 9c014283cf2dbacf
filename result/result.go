// Package result 把执行结果统一整理为可序列化的记录列表，并提供分页与流式输出。
package result

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/Kirito034/DataVita/internal/pool"
)

const (
	// DefaultPageSize 未指定页大小时使用
	DefaultPageSize = 100
	// StreamThreshold 超过该记录数时改用流式输出
	StreamThreshold = 10000
)

// Tabular 可直接转换为记录列表的结果（数据帧类）
type Tabular interface {
	Records() ([]map[string]any, error)
}

// Collection 需要先物化才能得到元素的结果（惰性集合类）
type Collection interface {
	Collect() ([]any, error)
}

// Page 分页结果
type Page struct {
	Data         any `json:"data"`
	TotalRecords int `json:"total_records"`
	Page         int `json:"page"`
	PageSize     int `json:"page_size"`
}

// Format normalizes v. page <= 0 disables paging; pageSize <= 0 falls back
// to DefaultPageSize. Collections are fully materialized before slicing.
func Format(v any, page, pageSize int) (any, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	switch x := v.(type) {
	case Tabular:
		records, err := x.Records()
		if err != nil {
			return nil, fmt.Errorf("convert records: %w", err)
		}
		return paginate(records, page, pageSize), nil
	case Collection:
		items, err := x.Collect()
		if err != nil {
			return nil, fmt.Errorf("collect result: %w", err)
		}
		return paginate(items, page, pageSize), nil
	case nil:
		return fmt.Sprint(v), nil
	}

	if reflect.TypeOf(v).Kind() == reflect.Slice {
		return v, nil
	}
	return fmt.Sprint(v), nil
}

// Paginate 对已物化的记录分页；page <= 0 时原样返回
func Paginate[T any](items []T, page, pageSize int) any {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return paginate(items, page, pageSize)
}

func paginate[T any](items []T, page, pageSize int) any {
	if page <= 0 {
		return items
	}
	total := len(items)
	// 页码与页大小来自请求，先按 total 截断以免乘法/加法溢出
	start := total
	if page-1 <= total/pageSize {
		start = min((page-1)*pageSize, total)
	}
	end := start + min(pageSize, total-start)
	return Page{
		Data:         items[start:end],
		TotalRecords: total,
		Page:         page,
		PageSize:     pageSize,
	}
}

// NeedsStream 记录数是否超过流式阈值
func NeedsStream(n int) bool {
	return n > StreamThreshold
}

// StreamJSON writes {"data": [...]} one record at a time, flushing after each
// record when w supports it.
func StreamJSON[T any](w io.Writer, records []T) error {
	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	if _, err := io.WriteString(w, `{"data": [`); err != nil {
		return err
	}
	for i, rec := range records {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if err := writeRecord(w, rec); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
		flush()
	}
	if _, err := io.WriteString(w, "]}"); err != nil {
		return err
	}
	flush()
	return nil
}

func writeRecord(w io.Writer, rec any) error {
	buf := pool.ByteBufferPool.Get()
	defer pool.ByteBufferPool.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return err
	}
	// Encode 追加了换行
	buf.Truncate(buf.Len() - 1)
	_, err := w.Write(buf.Bytes())
	return err
}
