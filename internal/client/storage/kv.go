// Package storage holds the client's persistent state: a single sqlite
// file with one key-value table, the moral equivalent of the browser's
// localStorage. Values are plain strings; structured ones are JSON-encoded
// by their owners.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Well-known keys. Kept in one place so the session-clear path can name
// everything it wipes.
const (
	KeyAccessToken    = "access_token"
	KeyRefreshToken   = "refresh_token"
	KeyExpiresAt      = "expires_at"
	KeyUserProfile    = "user_profile"
	KeyCachedPosts    = "cached_posts"
	KeyCacheTimestamp = "cache_timestamp"

	KeyTheme       = "theme"
	KeyLayout      = "layout"
	KeySortBy      = "sort_by"
	KeyShowFilters = "show_filters"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// KV is a sqlite-backed string key-value store.
type KV struct {
	db *sql.DB
}

// Open creates or opens the state database at path and ensures the schema
// exists. Use ":memory:" for throwaway stores in tests.
func Open(ctx context.Context, path string) (*KV, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create state dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state db: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init state db: %w", err)
	}

	return &KV{db: db}, nil
}

// Get returns the value for key. The second return is false when the key
// is absent.
func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts key to value.
func (s *KV) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *KV) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", key, err)
		}
	}
	return nil
}

func (s *KV) Close() error {
	return s.db.Close()
}
