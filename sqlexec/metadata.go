package sqlexec

import (
	"context"
	"fmt"
)

// ColumnInfo 一列的元数据
type ColumnInfo struct {
	Schema   string `json:"schema"`
	Table    string `json:"table"`
	Column   string `json:"column"`
	DataType string `json:"data_type"`
}

const metadataQuery = `SELECT 'main' AS table_schema, m.name AS table_name, p.name AS column_name, p.type AS data_type
FROM sqlite_master AS m
JOIN pragma_table_info(m.name) AS p
WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%'
ORDER BY table_schema, table_name, column_name`

// Metadata lists every column of every table and view, ordered by schema,
// table and column name.
func (e *Executor) Metadata(ctx context.Context) ([]ColumnInfo, error) {
	db, err := e.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, metadataQuery)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	defer rows.Close()

	out := make([]ColumnInfo, 0)
	for rows.Next() {
		var c ColumnInfo
		if err := rows.Scan(&c.Schema, &c.Table, &c.Column, &c.DataType); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
