package notebook

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 📓 Notebook 状态
// =============================================================================

// Artifact 单元格执行产生的文件
type Artifact struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// 产物类型
const (
	ArtifactImage = "image"
	ArtifactCSV   = "csv"
)

// Cell 一次成功执行的单元格记录；同一 ID 再次执行时覆盖
type Cell struct {
	ID         string     `json:"id"`
	Code       string     `json:"code"`
	Stdout     string     `json:"stdout"`
	Stderr     string     `json:"stderr"`
	Artifacts  []Artifact `json:"artifacts"`
	ExecutedAt time.Time  `json:"executed_at"`
}

// Snapshot 可持久化的状态快照
type Snapshot struct {
	Namespace map[string]any `json:"namespace"`
	Cells     []Cell         `json:"cells"`
}

// Persister 状态持久化后端
type Persister interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
	Clear(ctx context.Context) error
}

// Store is the process-wide namespace shared by every cell, plus the
// per-cell records used for exports. All mutation happens under one lock.
type Store struct {
	mu        sync.RWMutex
	namespace map[string]any
	cells     map[string]Cell
	order     []string

	version uint64

	persistMu sync.Mutex
	persisted uint64

	persister   Persister
	notebookDir string
	logger      *zap.Logger
	now         func() time.Time
}

// Option 配置 Store
type Option func(*Store)

// WithPersister 每次合并后写入持久化后端
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithNotebookDir 设置导出目录
func WithNotebookDir(dir string) Option {
	return func(s *Store) { s.notebookDir = dir }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore 创建空状态
func NewStore(opts ...Option) *Store {
	s := &Store{
		namespace:   make(map[string]any),
		cells:       make(map[string]Cell),
		notebookDir: "./notebooks",
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "notebook_store"))
	return s
}

// Restore loads the persisted snapshot, if any, replacing in-memory state.
func (s *Store) Restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	snap, err := s.persister.Load(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespace = make(map[string]any, len(snap.Namespace))
	for k, v := range snap.Namespace {
		s.namespace[k] = v
	}
	s.cells = make(map[string]Cell, len(snap.Cells))
	s.order = s.order[:0]
	for _, c := range snap.Cells {
		if _, dup := s.cells[c.ID]; !dup {
			s.order = append(s.order, c.ID)
		}
		s.cells[c.ID] = c
	}
	s.logger.Info("notebook state restored",
		zap.Int("bindings", len(s.namespace)),
		zap.Int("cells", len(s.cells)),
	)
	return nil
}

// Snapshot 返回命名空间的浅拷贝，作为执行种子
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.namespace))
	for k, v := range s.namespace {
		out[k] = v
	}
	return out
}

// Get 读取单个绑定
func (s *Store) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.namespace[name]
	return v, ok
}

// Serializable returns the JSON-compatible subset of the namespace. Other
// bindings stay live but are omitted.
func (s *Store) Serializable() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return serializable(s.namespace)
}

func serializable(ns map[string]any) map[string]any {
	out := make(map[string]any, len(ns))
	for k, v := range ns {
		if IsJSONCompatible(v) {
			out[k] = v
		}
	}
	return out
}

// IsJSONCompatible 判断值是否只由 null、布尔、数字、字符串、数组和对象组成
func IsJSONCompatible(v any) bool {
	switch x := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	case []any:
		for _, e := range x {
			if !IsJSONCompatible(e) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, e := range x {
			if !IsJSONCompatible(e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Merge applies bindings and records the cell in one critical section, so
// readers never observe a partially merged cell. Later writes win.
func (s *Store) Merge(ctx context.Context, cell Cell, bindings map[string]any) {
	if cell.ExecutedAt.IsZero() {
		cell.ExecutedAt = s.now()
	}

	s.mu.Lock()
	for k, v := range bindings {
		s.namespace[k] = v
	}
	if _, seen := s.cells[cell.ID]; !seen {
		s.order = append(s.order, cell.ID)
	}
	s.cells[cell.ID] = cell
	s.version++
	version, snap := s.version, s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, version, snap)
}

// Reset 清空命名空间与单元格记录
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	s.namespace = make(map[string]any)
	s.cells = make(map[string]Cell)
	s.order = nil
	s.version++
	version := s.version
	s.mu.Unlock()

	if s.persister != nil {
		s.persistMu.Lock()
		defer s.persistMu.Unlock()
		s.persisted = version
		if err := s.persister.Clear(ctx); err != nil {
			s.logger.Warn("clearing persisted notebook state", zap.Error(err))
		}
	}
	s.logger.Info("notebook state reset")
}

// Cells 按首次执行顺序返回单元格
func (s *Store) Cells() []Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cellsLocked()
}

// Cell 返回单个单元格记录
func (s *Store) Cell(id string) (Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cells[id]
	return c, ok
}

func (s *Store) cellsLocked() []Cell {
	out := make([]Cell, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.cells[id])
	}
	return out
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Namespace: serializable(s.namespace), Cells: s.cellsLocked()}
}

// persist drops snapshots older than one already written.
func (s *Store) persist(ctx context.Context, version uint64, snap Snapshot) {
	if s.persister == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if version <= s.persisted {
		return
	}
	s.persisted = version
	if err := s.persister.Save(ctx, snap); err != nil {
		s.logger.Warn("persisting notebook state", zap.Error(err))
	}
}
