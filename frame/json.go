package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// ReadJSON accepts either a JSON array of objects or newline-delimited
// objects. Columns follow first appearance; keys of later records that were
// not seen before are appended.
func ReadJSON(r io.Reader) (*Frame, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &Frame{}, nil
	}

	var records []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if data[0] == '[' {
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("read json: %w", err)
		}
	} else {
		for {
			var rec map[string]any
			if err := dec.Decode(&rec); err == io.EOF {
				break
			} else if err != nil {
				return nil, fmt.Errorf("read json: %w", err)
			}
			records = append(records, rec)
		}
	}

	var columns []string
	seen := make(map[string]struct{})
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			if _, ok := seen[k]; !ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = struct{}{}
			columns = append(columns, k)
		}
	}

	for _, rec := range records {
		for k, v := range rec {
			rec[k] = jsonValue(v)
		}
	}
	return FromRecords(columns, records), nil
}

// ReadJSONFile 读取 JSON 文件
func ReadJSONFile(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadJSON(file)
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any, []any:
		b, _ := json.Marshal(x)
		return string(b)
	default:
		return v
	}
}
