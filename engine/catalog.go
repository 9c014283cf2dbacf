package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Kirito034/DataVita/frame"
)

// ErrTableNotFound 表或视图不存在
var ErrTableNotFound = errors.New("table not found")

// TableInfo 目录中的一张表或视图
type TableInfo struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Temporary bool   `json:"temporary"`
}

// ColumnInfo 表的一列
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

const listTablesQuery = `SELECT name, type, 0 AS temporary FROM sqlite_master
WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
UNION ALL
SELECT name, type, 1 AS temporary FROM sqlite_temp_master
WHERE type IN ('table', 'view')
ORDER BY name`

// ListTables lists warehouse tables and session temp views. Internal tables
// backing in-memory DataFrames are hidden.
func (s *Session) ListTables(ctx context.Context) ([]TableInfo, error) {
	f, err := s.query(ctx, listTablesQuery)
	if err != nil {
		return nil, err
	}
	out := make([]TableInfo, 0, len(f.Rows))
	for _, row := range f.Rows {
		name := fmt.Sprint(row[0])
		if strings.HasPrefix(name, "__df_") {
			continue
		}
		temp, _ := row[2].(int64)
		out = append(out, TableInfo{Name: name, Type: fmt.Sprint(row[1]), Temporary: temp == 1})
	}
	return out, nil
}

func (s *Session) tableExists(ctx context.Context, name string) (bool, error) {
	f, err := s.query(ctx,
		`SELECT 1 FROM sqlite_master WHERE name = ? AND type IN ('table', 'view')
UNION ALL SELECT 1 FROM sqlite_temp_master WHERE name = ? AND type IN ('table', 'view')`,
		name, name)
	if err != nil {
		return false, err
	}
	return f.Len() > 0, nil
}

// TableSchema 返回列定义
func (s *Session) TableSchema(ctx context.Context, name string) ([]ColumnInfo, error) {
	ok, err := s.tableExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}

	f, err := s.query(ctx, `SELECT name, type, "notnull", pk FROM pragma_table_info(?)`, name)
	if err != nil {
		return nil, err
	}
	cols := make([]ColumnInfo, 0, f.Len())
	for _, row := range f.Rows {
		notNull, _ := row[2].(int64)
		pk, _ := row[3].(int64)
		cols = append(cols, ColumnInfo{
			Name:       fmt.Sprint(row[0]),
			Type:       fmt.Sprint(row[1]),
			Nullable:   notNull == 0,
			PrimaryKey: pk > 0,
		})
	}
	return cols, nil
}

// TableData 返回表的前 limit 行
func (s *Session) TableData(ctx context.Context, name string, limit int) (*frame.Frame, error) {
	ok, err := s.tableExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	if limit <= 0 {
		limit = 100
	}
	return s.query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(name), limit))
}
