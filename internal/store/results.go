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
// 🗂️ 执行结果仓库
// =============================================================================

const (
	defaultListLimit = 50
	maxListLimit     = 500
	writeRetries     = 3
)

// ResultFilter 结果查询条件
type ResultFilter struct {
	Dialect    string
	FailedOnly bool
	Since      time.Time
	Limit      int
	Offset     int
}

func (f ResultFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	}
	return f.Limit
}

// ResultRepository 执行结果只追加不删除
type ResultRepository interface {
	Save(ctx context.Context, rec *ResultRecord) error
	Get(ctx context.Context, id string) (*ResultRecord, error)
	List(ctx context.Context, filter ResultFilter) ([]ResultRecord, error)
}

// GormResultRepository ResultRepository 的 GORM 实现
type GormResultRepository struct {
	pool *database.PoolManager
	now  func() time.Time
}

// NewResultRepository 创建结果仓库
func NewResultRepository(pool *database.PoolManager) *GormResultRepository {
	return &GormResultRepository{pool: pool, now: time.Now}
}

// Save 写入记录，ID 与时间为空时自动填充
func (r *GormResultRepository) Save(ctx context.Context, rec *ResultRecord) error {
	if rec == nil {
		return types.NewInvalidRequestError("result record is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	if rec.Dialect == "" {
		rec.Dialect = "frame"
	}
	err := r.pool.WithTransactionRetry(ctx, writeRetries, func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
	if err != nil {
		return fmt.Errorf("save execution result: %w", err)
	}
	return nil
}

// Get 按 ID 查询
func (r *GormResultRepository) Get(ctx context.Context, id string) (*ResultRecord, error) {
	var rec ResultRecord
	err := r.pool.DB().WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewNotFoundError(fmt.Sprintf("execution result %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("get execution result: %w", err)
	}
	return &rec, nil
}

// List 按时间倒序分页查询
func (r *GormResultRepository) List(ctx context.Context, filter ResultFilter) ([]ResultRecord, error) {
	q := r.pool.DB().WithContext(ctx).Model(&ResultRecord{})
	if filter.Dialect != "" {
		q = q.Where("dialect = ?", filter.Dialect)
	}
	if filter.FailedOnly {
		q = q.Where("error IS NOT NULL AND error <> ''")
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}

	var out []ResultRecord
	err := q.Order("created_at DESC").Order("id").
		Limit(filter.limit()).Offset(filter.Offset).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list execution results: %w", err)
	}
	return out, nil
}
