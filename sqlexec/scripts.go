package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Kirito034/DataVita/types"
)

// =============================================================================
// 📁 SQL 脚本存储
// =============================================================================

var (
	// ErrScriptExists 同名脚本已存在
	ErrScriptExists = types.NewAlreadyExistsError("A file with this name already exists. Please choose a different name.")
	// ErrScriptNotFound 脚本不存在
	ErrScriptNotFound = types.NewNotFoundError("File not found")
)

const scriptsSchema = `CREATE TABLE IF NOT EXISTS sql_queries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	filename TEXT UNIQUE NOT NULL,
	sql_code TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// Script 已保存的 SQL 脚本
type Script struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	SQLCode   string    `json:"sql_code"`
	CreatedAt time.Time `json:"created_at"`
}

// ScriptStore 基于 sql_queries 表的脚本 CRUD
type ScriptStore struct {
	db *sql.DB
}

// NewScriptStore 创建存储并确保表存在
func NewScriptStore(ctx context.Context, db *sql.DB) (*ScriptStore, error) {
	if _, err := db.ExecContext(ctx, scriptsSchema); err != nil {
		return nil, fmt.Errorf("initialize sql_queries: %w", err)
	}
	return &ScriptStore{db: db}, nil
}

// Exists 是否存在同名脚本
func (s *ScriptStore) Exists(ctx context.Context, filename string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM sql_queries WHERE filename = ?", filename).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Save 保存新脚本，同名返回 ErrScriptExists
func (s *ScriptStore) Save(ctx context.Context, filename, code string) error {
	exists, err := s.Exists(ctx, filename)
	if err != nil {
		return err
	}
	if exists {
		return ErrScriptExists
	}
	_, err = s.db.ExecContext(ctx, "INSERT INTO sql_queries (filename, sql_code) VALUES (?, ?)", filename, code)
	if err != nil {
		return fmt.Errorf("save sql file: %w", err)
	}
	return nil
}

// List 按 id 返回全部脚本
func (s *ScriptStore) List(ctx context.Context) ([]Script, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, filename, sql_code, created_at FROM sql_queries ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Script, 0)
	for rows.Next() {
		sc, err := scanScript(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Get 读取单个脚本
func (s *ScriptStore) Get(ctx context.Context, filename string) (Script, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, filename, sql_code, created_at FROM sql_queries WHERE filename = ?", filename)
	sc, err := scanScript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Script{}, ErrScriptNotFound
	}
	return sc, err
}

// Update 替换脚本内容
func (s *ScriptStore) Update(ctx context.Context, filename, code string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE sql_queries SET sql_code = ? WHERE filename = ?", code, filename)
	if err != nil {
		return fmt.Errorf("update sql file: %w", err)
	}
	return requireAffected(res)
}

// Delete 删除脚本
func (s *ScriptStore) Delete(ctx context.Context, filename string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sql_queries WHERE filename = ?", filename)
	if err != nil {
		return fmt.Errorf("delete sql file: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrScriptNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScript(row scanner) (Script, error) {
	var (
		sc      Script
		created any
	)
	if err := row.Scan(&sc.ID, &sc.Filename, &sc.SQLCode, &created); err != nil {
		return Script{}, err
	}
	sc.CreatedAt = parseTimestamp(created)
	return sc, nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
}

func parseTimestamp(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case []byte:
		return parseTimestamp(string(x))
	case string:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
