package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookmarkeddit/bookmarkeddit/internal/client/normalize"
	"github.com/bookmarkeddit/bookmarkeddit/internal/client/storage"
)

func newCache(t *testing.T, now *time.Time) (*Cache, *storage.KV) {
	t.Helper()
	kv, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return New(kv, func() time.Time { return *now }), kv
}

func items(ids ...string) []normalize.SavedItem {
	out := make([]normalize.SavedItem, len(ids))
	for i, id := range ids {
		out[i] = normalize.SavedItem{ID: id, Subreddit: "golang"}
	}
	return out
}

func TestSaveLoadRoundTrip(t *testing.T) {
	now := time.Now()
	c, _ := newCache(t, &now)
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, items("a", "b")))

	got, ts, ok := c.Load(ctx)
	require.True(t, ok)
	assert.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.WithinDuration(t, now, ts, time.Second)
}

func TestLoadEmpty(t *testing.T) {
	now := time.Now()
	c, _ := newCache(t, &now)

	_, _, ok := c.Load(context.Background())
	assert.False(t, ok)
}

func TestCorruptCacheReadsAsAbsent(t *testing.T) {
	now := time.Now()
	c, kv := newCache(t, &now)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, storage.KeyCachedPosts, "{definitely not json"))
	require.NoError(t, kv.Set(ctx, storage.KeyCacheTimestamp, "123"))

	_, _, ok := c.Load(ctx)
	assert.False(t, ok)
}

func TestCorruptTimestampReadsAsAbsent(t *testing.T) {
	now := time.Now()
	c, kv := newCache(t, &now)
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, items("a")))
	require.NoError(t, kv.Set(ctx, storage.KeyCacheTimestamp, "yesterday-ish"))

	_, _, ok := c.Load(ctx)
	assert.False(t, ok)
}

func TestIsFresh(t *testing.T) {
	now := time.Now()
	c, _ := newCache(t, &now)

	assert.True(t, c.IsFresh(now.Add(-23*time.Hour)))
	assert.False(t, c.IsFresh(now.Add(-25*time.Hour)))
}

func TestClear(t *testing.T) {
	now := time.Now()
	c, _ := newCache(t, &now)
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, items("a")))
	require.NoError(t, c.Clear(ctx))

	_, _, ok := c.Load(ctx)
	assert.False(t, ok)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name   string
		cached []normalize.SavedItem
		fresh  []normalize.SavedItem
		want   Diff
	}{
		{
			name:   "one added one removed",
			cached: items("a", "b"),
			fresh:  items("b", "c"),
			want:   Diff{NewCount: 1, DeletedCount: 1, HasChanges: true},
		},
		{
			name:   "identical sets",
			cached: items("a", "b"),
			fresh:  items("a", "b"),
			want:   Diff{},
		},
		{
			name:   "order independent",
			cached: items("a", "b", "c"),
			fresh:  items("c", "a", "b"),
			want:   Diff{},
		},
		{
			name:   "both empty",
			cached: nil,
			fresh:  nil,
			want:   Diff{},
		},
		{
			name:   "all deleted",
			cached: items("a", "b"),
			fresh:  nil,
			want:   Diff{DeletedCount: 2, HasChanges: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.cached, tt.fresh))
		})
	}
}

func TestCompareIgnoresFieldEdits(t *testing.T) {
	cached := []normalize.SavedItem{{ID: "a", Title: "old title"}}
	fresh := []normalize.SavedItem{{ID: "a", Title: "edited title"}}

	assert.Equal(t, Diff{}, Compare(cached, fresh))
}
