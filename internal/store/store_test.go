package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/keepsake/internal/config"
	"github.com/scrypster/keepsake/internal/memory"
	"github.com/scrypster/keepsake/pkg/types"
)

func testRecord(userID, content string, importance float64, age time.Duration) *Record {
	return &Record{
		ID:         types.NewID(),
		UserID:     userID,
		Content:    content,
		Importance: importance,
		CreatedAt:  time.Now().Add(-age),
	}
}

func TestKeywordStoreSaveAndGet(t *testing.T) {
	s, err := OpenKeywordStore(filepath.Join(t.TempDir(), "kw.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	rec := testRecord("u1", "周末去香山爬山", 0.7, time.Hour)
	rec.TopicTags = []string{"运动"}
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Get(ctx, "u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "周末去香山爬山", got.Content)
	assert.Equal(t, []string{"运动"}, got.TopicTags)
	assert.InDelta(t, 0.7, got.Importance, 1e-9)

	_, err = s.Get(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeywordStoreUpsert(t *testing.T) {
	s, err := OpenKeywordStore(filepath.Join(t.TempDir(), "kw.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	rec := testRecord("u1", "开始学吉他", 0.5, time.Hour)
	require.NoError(t, s.Save(ctx, rec))

	rec.Content = "开始学钢琴"
	rec.Importance = 0.9
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Get(ctx, "u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "开始学钢琴", got.Content)
	assert.InDelta(t, 0.9, got.Importance, 1e-9)
}

func TestKeywordStoreSearchRanking(t *testing.T) {
	s, err := OpenKeywordStore(filepath.Join(t.TempDir(), "kw.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	hiking := testRecord("u1", "周末去爬山看红叶", 0.5, 48*time.Hour)
	guitar := testRecord("u1", "练习吉他和弦", 0.9, 24*time.Hour)
	other := testRecord("u1", "today was uneventful", 0.9, time.Hour)
	for _, r := range []*Record{hiking, guitar, other} {
		require.NoError(t, s.Save(ctx, r))
	}

	results, err := s.Search(ctx, "u1", "爬山", 10)
	require.NoError(t, err)
	require.Len(t, results, 1, "zero-overlap records must be dropped")
	assert.Equal(t, hiking.ID, results[0].ID)

	// A different user sees nothing.
	results, err = s.Search(ctx, "u2", "爬山", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestKeywordStoreRecentAndDelete(t *testing.T) {
	s, err := OpenKeywordStore(filepath.Join(t.TempDir(), "kw.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	old := testRecord("u1", "older memory", 0.5, 72*time.Hour)
	mid := testRecord("u1", "middle memory", 0.5, 36*time.Hour)
	fresh := testRecord("u1", "fresh memory", 0.5, time.Hour)
	for _, r := range []*Record{old, mid, fresh} {
		require.NoError(t, s.Save(ctx, r))
	}

	recent, err := s.Recent(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, fresh.ID, recent[0].ID)
	assert.Equal(t, mid.ID, recent[1].ID)

	require.NoError(t, s.Delete(ctx, "u1", fresh.ID))
	require.NoError(t, s.Delete(ctx, "u1", fresh.ID)) // absent id is fine

	recent, err = s.Recent(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestSimpleStoreSQLite(t *testing.T) {
	s, err := OpenSimpleSQLite(filepath.Join(t.TempDir(), "simple.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	hotpot := testRecord("u1", "和同事聚餐吃了火锅", 0.4, 24*time.Hour)
	hiking := testRecord("u1", "周末去爬山", 0.8, 48*time.Hour)
	for _, r := range []*Record{hotpot, hiking} {
		require.NoError(t, s.Save(ctx, r))
	}

	results, err := s.Search(ctx, "u1", "火锅", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, hotpot.ID, results[0].ID)

	got, err := s.Get(ctx, "u1", hiking.ID)
	require.NoError(t, err)
	assert.Equal(t, "周末去爬山", got.Content)

	require.NoError(t, s.Delete(ctx, "u1", hotpot.ID))
	_, err = s.Get(ctx, "u1", hotpot.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSimpleStoreRebind(t *testing.T) {
	sqlite := &SimpleStore{}
	assert.Equal(t, "SELECT ? WHERE a = ?", sqlite.rebind("SELECT ? WHERE a = ?"))

	pg := &SimpleStore{postgres: true}
	assert.Equal(t, "SELECT $1 WHERE a = $2", pg.rebind("SELECT ? WHERE a = ?"))
}

func TestTreeBackendRoundTrip(t *testing.T) {
	b := NewTreeBackend(NewManagers(memory.Options{}))
	ctx := context.Background()

	rec := &Record{
		UserID:     "u1",
		Content:    "去看了日出",
		Importance: 0.6,
		CreatedAt:  time.Now().Add(-2 * time.Hour),
	}
	require.NoError(t, b.Save(ctx, rec))
	require.NotEmpty(t, rec.ID, "save must write back the generated id")

	got, err := b.Get(ctx, "u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "去看了日出", got.Content)

	results, err := b.Search(ctx, "u1", "日出", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rec.ID, results[0].ID)

	require.NoError(t, b.Delete(ctx, "u1", rec.ID))
	_, err = b.Get(ctx, "u1", rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTreeBackendUpdateExisting(t *testing.T) {
	b := NewTreeBackend(NewManagers(memory.Options{}))
	ctx := context.Background()

	rec := &Record{UserID: "u1", Content: "学了一首新歌", Importance: 0.5}
	require.NoError(t, b.Save(ctx, rec))

	rec.Content = "学了两首新歌"
	rec.Importance = 0.8
	require.NoError(t, b.Save(ctx, rec))

	got, err := b.Get(ctx, "u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "学了两首新歌", got.Content)
	assert.InDelta(t, 0.8, got.Importance, 1e-9)
}

func TestSeedDemoIdempotent(t *testing.T) {
	s, err := OpenKeywordStore(filepath.Join(t.TempDir(), "demo.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, SeedDemo(ctx, s))
	first, err := s.Recent(ctx, demoUserID, 50)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	require.NoError(t, SeedDemo(ctx, s))
	second, err := s.Recent(ctx, demoUserID, 50)
	require.NoError(t, err)
	assert.Len(t, second, len(first))
}

func TestOpenDispatch(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(config.StorageConfig{Backend: config.BackendKeywordVector, SQLitePath: filepath.Join(dir, "a.db")})
	require.NoError(t, err)
	assert.IsType(t, &KeywordStore{}, b)
	b.Close()

	b, err = Open(config.StorageConfig{Backend: config.BackendSimpleStore, Engine: config.EngineSQLite, SQLitePath: filepath.Join(dir, "b.db")})
	require.NoError(t, err)
	assert.IsType(t, &SimpleStore{}, b)
	b.Close()

	_, err = Open(config.StorageConfig{Backend: config.BackendTemporalTree})
	assert.Error(t, err)

	_, err = Open(config.StorageConfig{Backend: "fancy"})
	assert.Error(t, err)
}
