package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Kirito034/DataVita/internal/database"
	"github.com/Kirito034/DataVita/types"
)

func setupPool(t *testing.T) *database.PoolManager {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	pool, err := database.NewPoolManager(db, database.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	require.NoError(t, db.AutoMigrate(Models()...))
	return pool
}

// =============================================================================
// 🧪 ResultRepository
// =============================================================================

func TestResultRepository_SaveAndGet(t *testing.T) {
	repo := NewResultRepository(setupPool(t))
	ctx := context.Background()

	rec := &ResultRecord{Source: "result = spark.range(3)", Result: `{"id": 0}`}
	require.NoError(t, repo.Save(ctx, rec))
	assert.Len(t, rec.ID, 36)
	assert.Equal(t, "frame", rec.Dialect)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Source, got.Source)
	assert.Equal(t, rec.Result, got.Result)
	assert.False(t, got.Failed())
}

func TestResultRepository_GetMissing(t *testing.T) {
	repo := NewResultRepository(setupPool(t))
	_, err := repo.Get(context.Background(), "nope")
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))
}

func TestResultRepository_SaveNil(t *testing.T) {
	repo := NewResultRepository(setupPool(t))
	err := repo.Save(context.Background(), nil)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestResultRepository_List(t *testing.T) {
	repo := NewResultRepository(setupPool(t))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &ResultRecord{Source: "a.js", Result: "1"}))
	require.NoError(t, repo.Save(ctx, &ResultRecord{Source: "b.js", Error: "AnalysisException: boom"}))
	require.NoError(t, repo.Save(ctx, &ResultRecord{Source: "c.js", Result: "3", Dialect: "script"}))

	all, err := repo.List(ctx, ResultFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c.js", all[0].Source)
	assert.Equal(t, "a.js", all[2].Source)

	failed, err := repo.List(ctx, ResultFilter{FailedOnly: true})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b.js", failed[0].Source)

	frames, err := repo.List(ctx, ResultFilter{Dialect: "frame", Limit: 1})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "b.js", frames[0].Source)

	recent, err := repo.List(ctx, ResultFilter{Since: base.Add(2 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestResultFilter_Limit(t *testing.T) {
	assert.Equal(t, defaultListLimit, ResultFilter{}.limit())
	assert.Equal(t, maxListLimit, ResultFilter{Limit: 10_000}.limit())
	assert.Equal(t, 7, ResultFilter{Limit: 7}.limit())
}

// =============================================================================
// 🧪 MetadataStore
// =============================================================================

func TestMetadataStore_Versions(t *testing.T) {
	s := NewMetadataStore(setupPool(t))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		v := &NotebookVersion{NotebookID: "nb", Content: fmt.Sprintf(`{"rev": %d}`, i), Author: "ada"}
		require.NoError(t, s.Save(ctx, v))
		assert.Equal(t, i, v.Version)
		assert.Equal(t, "json", v.Format)
	}
	require.NoError(t, s.Save(ctx, &NotebookVersion{NotebookID: "other", Content: "# Cell 1", Format: "script"}))

	latest, err := s.Get(ctx, "nb", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Version)

	second, err := s.Get(ctx, "nb", 2)
	require.NoError(t, err)
	assert.Equal(t, `{"rev": 2}`, second.Content)

	list, err := s.List(ctx, VersionFilter{NotebookID: "nb"})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 3, list[0].Version)

	scripts, err := s.List(ctx, VersionFilter{Format: "script"})
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	assert.Equal(t, "other", scripts[0].NotebookID)

	require.NoError(t, s.Delete(ctx, "nb", 2))
	_, err = s.Get(ctx, "nb", 2)
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))

	err = s.Delete(ctx, "nb", 2)
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))

	// 删除中间版本后编号继续递增
	v := &NotebookVersion{NotebookID: "nb", Content: "{}"}
	require.NoError(t, s.Save(ctx, v))
	assert.Equal(t, 4, v.Version)
}

func TestMetadataStore_SaveRequiresNotebook(t *testing.T) {
	s := NewMetadataStore(setupPool(t))
	err := s.Save(context.Background(), &NotebookVersion{Content: "{}"})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

// =============================================================================
// 🧪 IdentityStore
// =============================================================================

func TestIdentityStore(t *testing.T) {
	s := NewIdentityStore(setupPool(t))
	ctx := context.Background()

	_, err := s.Lookup(ctx, "u1")
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))

	require.NoError(t, s.Upsert(ctx, &User{ID: "u1", FullName: "Ada Lovelace"}))
	id, err := s.Lookup(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", FullName: "Ada Lovelace", Role: "analyst"}, id)

	require.NoError(t, s.Upsert(ctx, &User{ID: "u1", FullName: "Ada King", Role: "admin"}))
	id, err = s.Lookup(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada King", id.FullName)
	assert.Equal(t, "admin", id.Role)

	assert.Error(t, s.Upsert(ctx, &User{}))
}
