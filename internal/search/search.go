// Package search ranks index entries against a query.
package search

import (
	"sort"
	"strings"
	"time"

	"github.com/0xADE/ade-launchd/internal/indexer"
	"github.com/0xADE/ade-launchd/internal/metrics"
)

const (
	// BrowseLimit is the number of entries returned for an empty query.
	BrowseLimit = 20
	// MaxResults caps the ranked result list.
	MaxResults = 50
	// SourceBonus is added for entries from the primary source.
	SourceBonus = 50
	// PrefixBonus is added when the display name starts with the query.
	PrefixBonus = 100
)

// Result is a ranked entry.
type Result struct {
	Entry indexer.Entry
	Score int
}

// Search ranks entries against query. It has no side effects and keeps no
// state between calls.
//
// An empty query returns the first BrowseLimit entries in stored order with
// score 0. Otherwise each entry is fuzzy-matched against its lowercased
// display name and its short name; entries matching neither are dropped.
// The best of the two scores gets SourceBonus for primary entries and
// PrefixBonus when the lowercased display name starts with the lowercased
// query. Results are
// ordered by score, highest first; equal scores keep the order of entries.
// At most MaxResults are returned.
func Search(query string, entries []indexer.Entry) []Result {
	start := time.Now()
	defer func() {
		metrics.SearchesTotal.Inc()
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	if query == "" {
		n := min(BrowseLimit, len(entries))
		results := make([]Result, n)
		for i := 0; i < n; i++ {
			results[i] = Result{Entry: entries[i]}
		}
		return results
	}

	q := strings.ToLower(query)
	byDisplay := matchScores(q, displayNames(entries))
	byName := matchScores(q, shortNames(entries))

	var results []Result
	for i, e := range entries {
		ds, dok := byDisplay[i]
		ns, nok := byName[i]
		if !dok && !nok {
			continue
		}

		score := max(ds, ns)
		if e.Source == indexer.SourcePrimary {
			score += SourceBonus
		}
		if strings.HasPrefix(strings.ToLower(e.DisplayName), q) {
			score += PrefixBonus
		}
		results = append(results, Result{Entry: e, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > MaxResults {
		results = results[:MaxResults]
	}
	return results
}
