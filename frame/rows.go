package frame

import "database/sql"

// ValueConverter adjusts a scanned cell using its column metadata.
type ValueConverter func(col *sql.ColumnType, v any) any

// ScanRows drains rows into a frame. rows is not closed.
func ScanRows(rows *sql.Rows, convert ValueConverter) (*Frame, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var types []*sql.ColumnType
	if convert != nil {
		if types, err = rows.ColumnTypes(); err != nil {
			return nil, err
		}
	}

	f := &Frame{Columns: cols, Rows: make([][]any, 0)}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i := range vals {
			vals[i] = Normalize(vals[i])
			if convert != nil {
				vals[i] = convert(types[i], vals[i])
			}
		}
		f.Rows = append(f.Rows, vals)
	}
	return f, rows.Err()
}
