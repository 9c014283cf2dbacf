package store

import "time"

// ResultRecord 一次数据帧方言执行的结果
type ResultRecord struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Source     string    `gorm:"type:text;not null" json:"code_or_filename"`
	Result     string    `gorm:"type:text" json:"formatted_result,omitempty"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	Dialect    string    `gorm:"size:16;not null;default:frame" json:"dialect"`
	DurationMs int64     `gorm:"not null;default:0" json:"duration_ms"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName 表名
func (ResultRecord) TableName() string { return "execution_results" }

// Failed 是否为失败记录
func (r *ResultRecord) Failed() bool { return r.Error != "" }

// NotebookVersion 笔记本导出快照
type NotebookVersion struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	NotebookID string    `gorm:"size:128;not null;uniqueIndex:uq_notebook_versions,priority:1" json:"notebook_id"`
	Version    int       `gorm:"not null;uniqueIndex:uq_notebook_versions,priority:2" json:"version"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Format     string    `gorm:"size:16;not null;default:json" json:"format"`
	Author     string    `gorm:"size:128" json:"author,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName 表名
func (NotebookVersion) TableName() string { return "notebook_versions" }

// User 元数据库中的用户
type User struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	FullName  string    `gorm:"size:255;not null" json:"full_name"`
	Email     string    `gorm:"size:255" json:"email,omitempty"`
	Role      string    `gorm:"size:32;not null;default:analyst" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 表名
func (User) TableName() string { return "users" }

// Models 全部模型，测试中用于 AutoMigrate
func Models() []any {
	return []any{&ResultRecord{}, &NotebookVersion{}, &User{}}
}
