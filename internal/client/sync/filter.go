package sync

import (
	"slices"
	"strings"

	"github.com/bookmarkeddit/bookmarkeddit/internal/client/normalize"
)

// Selection is the active filter set applied to the displayed items.
type Selection struct {
	Communities []string // subreddit names; empty means no community filter
	Types       []string // "Post" / "Comment"; empty means both
	NSFW        *bool    // true = only NSFW, false = only non-NSFW, nil = both
	Search      string   // case-insensitive substring on title/description
}

// Apply returns the items matching the selection, preserving order.
func (s Selection) Apply(items []normalize.SavedItem) []normalize.SavedItem {
	out := make([]normalize.SavedItem, 0, len(items))
	needle := strings.ToLower(s.Search)
	for _, it := range items {
		if len(s.Communities) > 0 && !slices.Contains(s.Communities, it.Subreddit) {
			continue
		}
		if len(s.Types) > 0 && !slices.Contains(s.Types, it.Type) {
			continue
		}
		if s.NSFW != nil && it.NSFW != *s.NSFW {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(it.Title), needle) &&
			!strings.Contains(strings.ToLower(it.Description), needle) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Prune drops the parts of the selection that no longer match any item:
// communities whose last item is gone, and an NSFW bucket that emptied.
// Returns the pruned selection, the community names removed, and whether
// the NSFW filter was cleared, so the caller can tell the user.
func (s Selection) Prune(items []normalize.SavedItem) (Selection, []string, bool) {
	var removed []string
	if len(s.Communities) > 0 {
		remaining := make(map[string]struct{}, len(items))
		for _, it := range items {
			remaining[it.Subreddit] = struct{}{}
		}

		kept := make([]string, 0, len(s.Communities))
		for _, c := range s.Communities {
			if _, ok := remaining[c]; ok {
				kept = append(kept, c)
			} else {
				removed = append(removed, c)
			}
		}
		s.Communities = kept
	}

	nsfwCleared := false
	if s.NSFW != nil {
		inBucket := false
		for _, it := range items {
			if it.NSFW == *s.NSFW {
				inBucket = true
				break
			}
		}
		if !inBucket {
			s.NSFW = nil
			nsfwCleared = true
		}
	}

	return s, removed, nsfwCleared
}

// Communities lists the distinct subreddits present in items with their
// item counts, sorted by descending count then name.
func Communities(items []normalize.SavedItem) []CommunityCount {
	counts := make(map[string]int)
	for _, it := range items {
		counts[it.Subreddit]++
	}
	out := make([]CommunityCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, CommunityCount{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b CommunityCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

type CommunityCount struct {
	Name  string
	Count int
}
