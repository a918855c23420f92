// Package search ranks saved items against a free-text query. Unlike the
// filter's plain substring match, ranking tolerates typos and partial
// words and orders results by relevance.
package search

import (
	"math"
	"sort"
	"strings"

	"github.com/bookmarkeddit/bookmarkeddit/internal/client/normalize"
)

const (
	// Scoring weights
	ScoreExactMatch     = 100.0
	ScorePrefixMatch    = 75.0
	ScoreSubstringMatch = 50.0
	ScoreFuzzyMatch     = 25.0

	// Position bonus (earlier words in the title are better)
	ScorePositionBonus = 10.0

	// Exact subreddit match bonus (huge boost)
	ScoreSubredditBonus = 200.0

	// Description matches count less than title matches
	descriptionWeight = 0.5

	// Upvote weight (popularity contributes to final score)
	ScoreUpvoteWeight = 0.1
)

// Match pairs an item with its relevance score.
type Match struct {
	Item          normalize.SavedItem
	LexicalScore  float64 // score from text matching
	PopularityTie float64 // score from upvote count
	TotalScore    float64
}

// Rank scores every item against query and returns matches sorted by
// descending score. Items with no lexical match are excluded entirely so
// popularity alone cannot surface unrelated results.
func Rank(query string, items []normalize.SavedItem) []Match {
	fragments := queryFragments(query)
	if len(fragments) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(items))
	for _, it := range items {
		lexical := scoreItem(fragments, it)
		if lexical == 0.0 {
			continue
		}

		// Logarithmic so a 10k-upvote post cannot drown out exact matches.
		popularity := 0.0
		if it.Score > 0 {
			popularity = math.Log10(float64(it.Score)+1) * ScoreUpvoteWeight * 100
		}

		matches = append(matches, Match{
			Item:          it,
			LexicalScore:  lexical,
			PopularityTie: popularity,
			TotalScore:    lexical + popularity,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].TotalScore > matches[j].TotalScore
	})
	return matches
}

// scoreItem scores one item: each query fragment takes its best score
// across the subreddit, the title words, and the description words.
func scoreItem(fragments []string, it normalize.SavedItem) float64 {
	subreddit := strings.ToLower(it.Subreddit)
	titleWords := strings.Fields(strings.ToLower(it.Title))
	descWords := strings.Fields(strings.ToLower(it.Description))

	var total float64
	for _, frag := range fragments {
		best := 0.0

		if frag == subreddit {
			best = ScoreExactMatch + ScoreSubredditBonus
		} else if s := scoreFragment(frag, subreddit, 0); s > best {
			best = s
		}

		for i, w := range titleWords {
			if s := scoreFragment(frag, w, i); s > best {
				best = s
			}
		}
		for i, w := range descWords {
			if s := scoreFragment(frag, w, i) * descriptionWeight; s > best {
				best = s
			}
		}

		total += best
	}
	return total
}

// scoreFragment scores a single query fragment against a single word.
func scoreFragment(queryFrag, word string, position int) float64 {
	if queryFrag == "" || word == "" {
		return 0.0
	}

	if queryFrag == word {
		return ScoreExactMatch + positionBonus(position)
	}

	if strings.HasPrefix(word, queryFrag) {
		return ScorePrefixMatch + positionBonus(position)
	}

	if idx := strings.Index(word, queryFrag); idx >= 0 {
		// Earlier substring matches score higher.
		substringBonus := ScorePositionBonus * (1.0 - float64(idx)/float64(len(word)))
		return ScoreSubstringMatch + substringBonus
	}

	sim := similarity(queryFrag, word)
	if sim > 0.5 {
		return ScoreFuzzyMatch * sim
	}

	return 0.0
}

func positionBonus(position int) float64 {
	return ScorePositionBonus * math.Exp(-float64(position)*0.3)
}

// similarity is the ratio of the fragment's characters present in word.
func similarity(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		return 0.0
	}
	matches := 0
	for _, c := range s1 {
		if strings.ContainsRune(s2, c) {
			matches++
		}
	}
	return float64(matches) / float64(len(s1))
}

func queryFragments(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimPrefix(f, "r/")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
