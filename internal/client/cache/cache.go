// Package cache persists the normalized saved-items set locally so the
// app can render instantly on startup and refresh in the background.
package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/bookmarkeddit/bookmarkeddit/internal/client/normalize"
	"github.com/bookmarkeddit/bookmarkeddit/internal/client/storage"
)

// MaxAge is how long a cached item set is considered fresh enough to
// render before a foreground fetch is forced.
const MaxAge = 24 * time.Hour

// Diff summarizes the presence-only difference between two item sets.
type Diff struct {
	NewCount     int
	DeletedCount int
	HasChanges   bool
}

// Cache stores items and their save timestamp in the local state db.
type Cache struct {
	kv      *storage.KV
	timeNow func() time.Time
}

func New(kv *storage.KV, timeNow func() time.Time) *Cache {
	if timeNow == nil {
		timeNow = time.Now
	}
	return &Cache{kv: kv, timeNow: timeNow}
}

// Save persists items and records the current time as the cache timestamp.
func (c *Cache) Save(ctx context.Context, items []normalize.SavedItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := c.kv.Set(ctx, storage.KeyCachedPosts, string(raw)); err != nil {
		return err
	}
	return c.kv.Set(ctx, storage.KeyCacheTimestamp, strconv.FormatInt(c.timeNow().UnixMilli(), 10))
}

// Load returns the cached items and their timestamp. Any missing or
// malformed data reads as cache-absent; corruption is never surfaced.
func (c *Cache) Load(ctx context.Context) ([]normalize.SavedItem, time.Time, bool) {
	rawItems, ok, err := c.kv.Get(ctx, storage.KeyCachedPosts)
	if err != nil || !ok {
		return nil, time.Time{}, false
	}
	rawTS, ok, err := c.kv.Get(ctx, storage.KeyCacheTimestamp)
	if err != nil || !ok {
		return nil, time.Time{}, false
	}

	var items []normalize.SavedItem
	if err := json.Unmarshal([]byte(rawItems), &items); err != nil {
		return nil, time.Time{}, false
	}
	ms, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return nil, time.Time{}, false
	}
	return items, time.UnixMilli(ms), true
}

// IsFresh reports whether a cache saved at ts is still within MaxAge.
func (c *Cache) IsFresh(ts time.Time) bool {
	return c.timeNow().Sub(ts) < MaxAge
}

// Clear removes the cached items and timestamp.
func (c *Cache) Clear(ctx context.Context) error {
	return c.kv.Delete(ctx, storage.KeyCachedPosts, storage.KeyCacheTimestamp)
}

// Compare set-differences two item slices by id, in both directions.
// Order-independent, and blind to field-level edits: an item counts only
// as present or absent.
func Compare(cached, fresh []normalize.SavedItem) Diff {
	cachedIDs := make(map[string]struct{}, len(cached))
	for _, it := range cached {
		cachedIDs[it.ID] = struct{}{}
	}
	freshIDs := make(map[string]struct{}, len(fresh))
	for _, it := range fresh {
		freshIDs[it.ID] = struct{}{}
	}

	var d Diff
	for id := range freshIDs {
		if _, ok := cachedIDs[id]; !ok {
			d.NewCount++
		}
	}
	for id := range cachedIDs {
		if _, ok := freshIDs[id]; !ok {
			d.DeletedCount++
		}
	}
	d.HasChanges = d.NewCount > 0 || d.DeletedCount > 0
	return d
}
