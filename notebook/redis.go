package notebook

import (
	"context"
	"fmt"

	"github.com/Kirito034/DataVita/internal/cache"
)

const snapshotKey = "snapshot"

// RedisPersister 把状态快照保存在 Redis 单个键中
type RedisPersister struct {
	cache *cache.Manager
}

// NewRedisPersister 使用缓存管理器的键前缀
func NewRedisPersister(c *cache.Manager) *RedisPersister {
	return &RedisPersister{cache: c}
}

// Save 覆盖快照，不过期
func (p *RedisPersister) Save(ctx context.Context, snap Snapshot) error {
	if err := p.cache.SetJSON(ctx, snapshotKey, snap, cache.NoExpiry); err != nil {
		return fmt.Errorf("save notebook snapshot: %w", err)
	}
	return nil
}

// Load returns nil when nothing has been saved yet.
func (p *RedisPersister) Load(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	err := p.cache.GetJSON(ctx, snapshotKey, &snap)
	if cache.IsCacheMiss(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load notebook snapshot: %w", err)
	}
	return &snap, nil
}

// Clear 删除快照
func (p *RedisPersister) Clear(ctx context.Context) error {
	return p.cache.Delete(ctx, snapshotKey)
}
