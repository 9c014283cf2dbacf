package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kirito034/DataVita/internal/database"
	"github.com/Kirito034/DataVita/types"
)

// =============================================================================
// 📓 笔记本版本
// =============================================================================

// VersionFilter 版本查询条件
type VersionFilter struct {
	NotebookID string
	Format     string
	Limit      int
	Offset     int
}

// MetadataStore 笔记本版本仓库
type MetadataStore interface {
	Get(ctx context.Context, notebookID string, version int) (*NotebookVersion, error)
	List(ctx context.Context, filter VersionFilter) ([]NotebookVersion, error)
	Save(ctx context.Context, v *NotebookVersion) error
	Delete(ctx context.Context, notebookID string, version int) error
}

// GormMetadataStore MetadataStore 的 GORM 实现
type GormMetadataStore struct {
	pool *database.PoolManager
	now  func() time.Time
}

// NewMetadataStore 创建版本仓库
func NewMetadataStore(pool *database.PoolManager) *GormMetadataStore {
	return &GormMetadataStore{pool: pool, now: time.Now}
}

// Get 查询指定版本；version <= 0 表示最新版本
func (s *GormMetadataStore) Get(ctx context.Context, notebookID string, version int) (*NotebookVersion, error) {
	q := s.pool.DB().WithContext(ctx).Where("notebook_id = ?", notebookID)
	if version > 0 {
		q = q.Where("version = ?", version)
	}
	var v NotebookVersion
	err := q.Order("version DESC").Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewNotFoundError(fmt.Sprintf("notebook %s version %d not found", notebookID, version))
	}
	if err != nil {
		return nil, fmt.Errorf("get notebook version: %w", err)
	}
	return &v, nil
}

// List 按笔记本与版本号倒序列出
func (s *GormMetadataStore) List(ctx context.Context, filter VersionFilter) ([]NotebookVersion, error) {
	q := s.pool.DB().WithContext(ctx).Model(&NotebookVersion{})
	if filter.NotebookID != "" {
		q = q.Where("notebook_id = ?", filter.NotebookID)
	}
	if filter.Format != "" {
		q = q.Where("format = ?", filter.Format)
	}
	limit := ResultFilter{Limit: filter.Limit}.limit()

	var out []NotebookVersion
	err := q.Order("notebook_id").Order("version DESC").
		Limit(limit).Offset(filter.Offset).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list notebook versions: %w", err)
	}
	return out, nil
}

// Save 在事务内分配下一个版本号并写入
func (s *GormMetadataStore) Save(ctx context.Context, v *NotebookVersion) error {
	if v == nil || v.NotebookID == "" {
		return types.NewInvalidRequestError("notebook id is required")
	}
	if v.Format == "" {
		v.Format = "json"
	}
	err := s.pool.WithTransactionRetry(ctx, writeRetries, func(tx *gorm.DB) error {
		var latest int
		err := tx.Model(&NotebookVersion{}).
			Where("notebook_id = ?", v.NotebookID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&latest).Error
		if err != nil {
			return err
		}
		v.ID = uuid.NewString()
		v.Version = latest + 1
		v.CreatedAt = s.now().UTC()
		return tx.Create(v).Error
	})
	if err != nil {
		return fmt.Errorf("save notebook version: %w", err)
	}
	return nil
}

// Delete 删除指定版本
func (s *GormMetadataStore) Delete(ctx context.Context, notebookID string, version int) error {
	var affected int64
	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		res := tx.Where("notebook_id = ? AND version = ?", notebookID, version).Delete(&NotebookVersion{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("delete notebook version: %w", err)
	}
	if affected == 0 {
		return types.NewNotFoundError(fmt.Sprintf("notebook %s version %d not found", notebookID, version))
	}
	return nil
}
