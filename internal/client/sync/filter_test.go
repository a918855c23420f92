package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookmarkeddit/bookmarkeddit/internal/client/normalize"
)

func testItems() []normalize.SavedItem {
	return []normalize.SavedItem{
		{ID: "1", Subreddit: "golang", Type: "Post", Title: "Generics deep dive"},
		{ID: "2", Subreddit: "golang", Type: "Comment", Description: "use errgroup"},
		{ID: "3", Subreddit: "rust", Type: "Post", Title: "Borrow checker"},
		{ID: "4", Subreddit: "cooking", Type: "Post", Title: "Sourdough"},
		{ID: "5", Subreddit: "spicy", Type: "Post", Title: "Marked mature", NSFW: true},
	}
}

func boolPtr(v bool) *bool { return &v }

func TestApplyCommunityFilter(t *testing.T) {
	sel := Selection{Communities: []string{"golang"}}
	got := sel.Apply(testItems())

	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
}

func TestApplyTypeFilter(t *testing.T) {
	sel := Selection{Types: []string{"Comment"}}
	got := sel.Apply(testItems())

	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}

func TestApplySearchCaseInsensitive(t *testing.T) {
	sel := Selection{Search: "ERRGROUP"}
	got := sel.Apply(testItems())

	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}

func TestApplyCombined(t *testing.T) {
	sel := Selection{Communities: []string{"golang", "rust"}, Types: []string{"Post"}}
	got := sel.Apply(testItems())

	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}

func TestApplyNSFWOnly(t *testing.T) {
	sel := Selection{NSFW: boolPtr(true)}
	got := sel.Apply(testItems())

	require.Len(t, got, 1)
	assert.Equal(t, "5", got[0].ID)
}

func TestApplyNSFWNone(t *testing.T) {
	sel := Selection{NSFW: boolPtr(false)}
	got := sel.Apply(testItems())

	require.Len(t, got, 4)
	for _, it := range got {
		assert.False(t, it.NSFW)
	}
}

func TestApplyEmptySelectionPassesAll(t *testing.T) {
	assert.Len(t, Selection{}.Apply(testItems()), 5)
}

func TestPruneDropsEmptyCommunities(t *testing.T) {
	sel := Selection{Communities: []string{"golang", "rust", "gone"}}
	pruned, removed, nsfwCleared := sel.Prune(testItems())

	assert.Equal(t, []string{"golang", "rust"}, pruned.Communities)
	assert.Equal(t, []string{"gone"}, removed)
	assert.False(t, nsfwCleared)
}

func TestPruneClearsNSFWWhenBucketEmpty(t *testing.T) {
	sel := Selection{NSFW: boolPtr(true)}
	sfwOnly := testItems()[:4]
	pruned, removed, nsfwCleared := sel.Prune(sfwOnly)

	assert.Nil(t, pruned.NSFW)
	assert.Nil(t, removed)
	assert.True(t, nsfwCleared)
}

func TestPruneKeepsNSFWWhileBucketPopulated(t *testing.T) {
	sel := Selection{NSFW: boolPtr(true)}
	pruned, _, nsfwCleared := sel.Prune(testItems())

	require.NotNil(t, pruned.NSFW)
	assert.True(t, *pruned.NSFW)
	assert.False(t, nsfwCleared)
}

func TestPruneNoFilterNoOp(t *testing.T) {
	pruned, removed, nsfwCleared := Selection{}.Prune(testItems())

	assert.Empty(t, pruned.Communities)
	assert.Nil(t, removed)
	assert.False(t, nsfwCleared)
}

func TestCommunitiesCounts(t *testing.T) {
	got := Communities(testItems())

	require.Len(t, got, 4)
	assert.Equal(t, CommunityCount{Name: "golang", Count: 2}, got[0])
	// Ties break alphabetically.
	assert.Equal(t, CommunityCount{Name: "cooking", Count: 1}, got[1])
	assert.Equal(t, CommunityCount{Name: "rust", Count: 1}, got[2])
	assert.Equal(t, CommunityCount{Name: "spicy", Count: 1}, got[3])
}
