// =============================================================================
// 🗄️ 存储模拟实现
// =============================================================================
// 内存版 ResultRepository / MetadataStore / IdentityStore，支持错误注入
//
// 使用方法:
//
//	results := mocks.NewMockResultStore()
//	executor := kernel.NewFrameExecutor(manager, cfg, dir, results, logger)
//	records := results.Records()
// =============================================================================
package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kirito034/DataVita/internal/store"
	"github.com/Kirito034/DataVita/types"
)

// =============================================================================
// 🎯 MockResultStore
// =============================================================================

// MockResultStore 内存结果库
type MockResultStore struct {
	mu      sync.RWMutex
	records []store.ResultRecord
	saveErr error
}

// NewMockResultStore 创建内存结果库
func NewMockResultStore() *MockResultStore {
	return &MockResultStore{}
}

// WithSaveError 让 Save 返回 err
func (m *MockResultStore) WithSaveError(err error) *MockResultStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
	return m
}

// Save 实现 store.ResultRepository
func (m *MockResultStore) Save(ctx context.Context, rec *store.ResultRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.records = append(m.records, *rec)
	return nil
}

// Get 实现 store.ResultRepository
func (m *MockResultStore) Get(ctx context.Context, id string) (*store.ResultRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.records {
		if m.records[i].ID == id {
			rec := m.records[i]
			return &rec, nil
		}
	}
	return nil, types.NewNotFoundError(fmt.Sprintf("execution result %s not found", id))
}

// List 实现 store.ResultRepository，最新记录在前
func (m *MockResultStore) List(ctx context.Context, filter store.ResultFilter) ([]store.ResultRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []store.ResultRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		rec := m.records[i]
		if filter.Dialect != "" && rec.Dialect != filter.Dialect {
			continue
		}
		if filter.FailedOnly && !rec.Failed() {
			continue
		}
		out = append(out, rec)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Records 返回已保存记录的副本
func (m *MockResultStore) Records() []store.ResultRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]store.ResultRecord(nil), m.records...)
}

// =============================================================================
// 📚 MockMetadataStore
// =============================================================================

// MockMetadataStore 内存版本库
type MockMetadataStore struct {
	mu       sync.Mutex
	versions map[string][]store.NotebookVersion
	saveErr  error
}

// NewMockMetadataStore 创建内存版本库
func NewMockMetadataStore() *MockMetadataStore {
	return &MockMetadataStore{versions: make(map[string][]store.NotebookVersion)}
}

// WithSaveError 让 Save 返回 err
func (m *MockMetadataStore) WithSaveError(err error) *MockMetadataStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
	return m
}

// Get 实现 store.MetadataStore；version <= 0 取最新
func (m *MockMetadataStore) Get(ctx context.Context, notebookID string, version int) (*store.NotebookVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.versions[notebookID]
	if len(list) == 0 {
		return nil, types.NewNotFoundError(fmt.Sprintf("notebook %s has no versions", notebookID))
	}
	if version <= 0 {
		v := list[len(list)-1]
		return &v, nil
	}
	for _, v := range list {
		if v.Version == version {
			return &v, nil
		}
	}
	return nil, types.NewNotFoundError(fmt.Sprintf("notebook %s version %d not found", notebookID, version))
}

// List 实现 store.MetadataStore，按版本倒序
func (m *MockMetadataStore) List(ctx context.Context, filter store.VersionFilter) ([]store.NotebookVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.NotebookVersion
	for id, list := range m.versions {
		if filter.NotebookID != "" && id != filter.NotebookID {
			continue
		}
		for _, v := range list {
			if filter.Format != "" && v.Format != filter.Format {
				continue
			}
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NotebookID != out[j].NotebookID {
			return out[i].NotebookID < out[j].NotebookID
		}
		return out[i].Version > out[j].Version
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Save 实现 store.MetadataStore，分配下一个版本号
func (m *MockMetadataStore) Save(ctx context.Context, v *store.NotebookVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if v.NotebookID == "" {
		return types.NewInvalidRequestError("notebook id is required")
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Format == "" {
		v.Format = "json"
	}
	list := m.versions[v.NotebookID]
	v.Version = 1
	if n := len(list); n > 0 {
		v.Version = list[n-1].Version + 1
	}
	v.CreatedAt = time.Now().UTC()
	m.versions[v.NotebookID] = append(list, *v)
	return nil
}

// Delete 实现 store.MetadataStore
func (m *MockMetadataStore) Delete(ctx context.Context, notebookID string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.versions[notebookID]
	for i, v := range list {
		if v.Version == version {
			m.versions[notebookID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return types.NewNotFoundError(fmt.Sprintf("notebook %s version %d not found", notebookID, version))
}

// =============================================================================
// 👤 MockIdentityStore
// =============================================================================

// MockIdentityStore 内存身份库
type MockIdentityStore struct {
	mu         sync.RWMutex
	identities map[string]store.Identity
}

// NewMockIdentityStore 创建内存身份库
func NewMockIdentityStore(ids ...store.Identity) *MockIdentityStore {
	m := &MockIdentityStore{identities: make(map[string]store.Identity)}
	for _, id := range ids {
		m.identities[id.UserID] = id
	}
	return m
}

// Lookup 实现 store.IdentityStore
func (m *MockIdentityStore) Lookup(ctx context.Context, userID string) (store.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.identities[userID]
	if !ok {
		return store.Identity{}, types.NewNotFoundError(fmt.Sprintf("user %s not found", userID))
	}
	return id, nil
}
