// Package prefs persists UI preference flags in the local state db.
package prefs

import (
	"context"

	"github.com/bookmarkeddit/bookmarkeddit/internal/client/storage"
)

// Prefs are the user's display preferences. Unset values read as the
// zero-config defaults.
type Prefs struct {
	Theme       string // "dark" or "light"
	Layout      string // "grid" or "list"
	SortBy      string // "newest", "oldest", "score", "comments"
	ShowFilters bool
}

func Defaults() Prefs {
	return Prefs{Theme: "dark", Layout: "grid", SortBy: "newest", ShowFilters: true}
}

// Load reads preferences, falling back to defaults for unset or unknown
// values. Never fails on bad stored data.
func Load(ctx context.Context, kv *storage.KV) Prefs {
	p := Defaults()
	if v, ok, err := kv.Get(ctx, storage.KeyTheme); err == nil && ok {
		if v == "dark" || v == "light" {
			p.Theme = v
		}
	}
	if v, ok, err := kv.Get(ctx, storage.KeyLayout); err == nil && ok {
		if v == "grid" || v == "list" {
			p.Layout = v
		}
	}
	if v, ok, err := kv.Get(ctx, storage.KeySortBy); err == nil && ok {
		switch v {
		case "newest", "oldest", "score", "comments":
			p.SortBy = v
		}
	}
	if v, ok, err := kv.Get(ctx, storage.KeyShowFilters); err == nil && ok {
		p.ShowFilters = v != "false"
	}
	return p
}

// Save persists all preferences.
func Save(ctx context.Context, kv *storage.KV, p Prefs) error {
	showFilters := "true"
	if !p.ShowFilters {
		showFilters = "false"
	}
	pairs := [][2]string{
		{storage.KeyTheme, p.Theme},
		{storage.KeyLayout, p.Layout},
		{storage.KeySortBy, p.SortBy},
		{storage.KeyShowFilters, showFilters},
	}
	for _, kvp := range pairs {
		if err := kv.Set(ctx, kvp[0], kvp[1]); err != nil {
			return err
		}
	}
	return nil
}
