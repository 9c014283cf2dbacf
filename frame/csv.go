package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// WriteCSV 写出表头与所有行
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Columns); err != nil {
		return err
	}
	record := make([]string, len(f.Columns))
	for _, row := range f.Rows {
		for i, v := range row {
			if v == nil {
				record[i] = ""
				continue
			}
			record[i] = fmt.Sprint(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the frame to path, creating parent directories and
// replacing any existing file.
func (f *Frame) WriteCSVFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create csv dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := f.WriteCSV(file); err != nil {
		file.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return file.Close()
}

// ReadCSV parses a CSV document. With header=false the columns are named
// _c0, _c1, ... Cell types are inferred per value.
func ReadCSV(r io.Reader, header bool) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return &Frame{}, nil
	}

	var columns []string
	body := records
	if header {
		columns = records[0]
		body = records[1:]
	} else {
		for i := range records[0] {
			columns = append(columns, fmt.Sprintf("_c%d", i))
		}
	}

	f := &Frame{Columns: columns, Rows: make([][]any, 0, len(body))}
	for _, rec := range body {
		row := make([]any, len(columns))
		for i := 0; i < len(columns) && i < len(rec); i++ {
			row[i] = InferValue(rec[i])
		}
		f.Rows = append(f.Rows, row)
	}
	return f, nil
}

// ReadCSVFile 读取 CSV 文件
func ReadCSVFile(path string, header bool) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadCSV(file, header)
}

// InferValue 将文本单元格解析为 int64 / float64 / bool / nil / string
func InferValue(s string) any {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return f
	}
	switch strings.ToLower(t) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
