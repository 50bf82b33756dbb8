package search

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/0xADE/ade-launchd/internal/indexer"
)

// MatchFloor is the lowest score a successful match can have. The matcher
// penalizes long targets and can go below zero.
const MatchFloor = 1

// displayNames matches against lowercased display names.
type displayNames []indexer.Entry

func (d displayNames) String(i int) string { return strings.ToLower(d[i].DisplayName) }
func (d displayNames) Len() int            { return len(d) }

// shortNames matches against the short names, already lowercase.
type shortNames []indexer.Entry

func (s shortNames) String(i int) string { return s[i].Name }
func (s shortNames) Len() int            { return len(s) }

// matchScores returns the floored score of every element of src that
// contains query as an ordered subsequence, keyed by index.
func matchScores(query string, src fuzzy.Source) map[int]int {
	matches := fuzzy.FindFromNoSort(query, src)
	scores := make(map[int]int, len(matches))
	for _, m := range matches {
		scores[m.Index] = max(m.Score, MatchFloor)
	}
	return scores
}
