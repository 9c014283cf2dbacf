package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Kirito034/DataVita/internal/database"
	"github.com/Kirito034/DataVita/types"
)

// Identity 鉴权后可见的用户信息
type Identity struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// IdentityStore 用户身份查询
type IdentityStore interface {
	Lookup(ctx context.Context, userID string) (Identity, error)
}

// GormIdentityStore IdentityStore 的 GORM 实现
type GormIdentityStore struct {
	pool *database.PoolManager
}

// NewIdentityStore 创建身份仓库
func NewIdentityStore(pool *database.PoolManager) *GormIdentityStore {
	return &GormIdentityStore{pool: pool}
}

// Lookup 查询用户
func (s *GormIdentityStore) Lookup(ctx context.Context, userID string) (Identity, error) {
	var u User
	err := s.pool.DB().WithContext(ctx).Take(&u, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, types.NewNotFoundError(fmt.Sprintf("user %s not found", userID))
	}
	if err != nil {
		return Identity{}, fmt.Errorf("lookup user: %w", err)
	}
	return Identity{UserID: u.ID, FullName: u.FullName, Role: u.Role}, nil
}

// Upsert 新建或更新用户
func (s *GormIdentityStore) Upsert(ctx context.Context, u *User) error {
	if u == nil || u.ID == "" {
		return types.NewInvalidRequestError("user id is required")
	}
	if u.Role == "" {
		u.Role = "analyst"
	}
	return s.pool.WithTransactionRetry(ctx, writeRetries, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"full_name", "email", "role", "updated_at"}),
		}).Create(u).Error
	})
}
