// Package search maintains an in-memory index of advertised games and
// answers game search queries against it.
package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/udisondev/mythmeta/internal/game"
)

// MaxResults caps the number of entries a query returns.
const MaxResults = 5

// Wildcard matches any value of a numeric predicate.
const Wildcard int16 = -1

// Query is a game search request. Numeric fields set to Wildcard match
// everything; string fields match as case-insensitive substrings, with
// the empty string matching everything.
type Query struct {
	GameName string
	MapName  string

	Scoring         int16
	UnitTrading     int16
	Veterans        int16
	Teams           int16
	Alliances       int16
	EnemyVisibility int16
}

// NewQuery returns a query with every predicate wildcarded.
func NewQuery() Query {
	return Query{
		Scoring:         Wildcard,
		UnitTrading:     Wildcard,
		Veterans:        Wildcard,
		Teams:           Wildcard,
		Alliances:       Wildcard,
		EnemyVisibility: Wildcard,
	}
}

type entry struct {
	info game.Info
	seq  uint64 // bumped on every add/change, orders results
}

// Index is the global game index. It implements game.Events and is
// updated synchronously by the coordinator, so events arrive in receipt
// order. One mutex guards everything; queries are infrequent enough
// that sharding would buy nothing.
type Index struct {
	mu      sync.Mutex
	entries map[uint32]*entry
	seq     uint64
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[uint32]*entry)}
}

// GameAdded indexes a newly advertised game.
func (ix *Index) GameAdded(info game.Info) {
	ix.upsert(info)
}

// GameChanged refreshes a game's entry and bumps its recency.
func (ix *Index) GameChanged(info game.Info) {
	ix.upsert(info)
}

func (ix *Index) upsert(info game.Info) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	// Terminal games fall out of the index immediately.
	if info.State.Terminal() {
		delete(ix.entries, info.ID)
		return
	}
	ix.seq++
	ix.entries[info.ID] = &entry{info: info, seq: ix.seq}
}

// GameRemoved drops the game from the index.
func (ix *Index) GameRemoved(id uint32, roomID uint16) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.entries, id)
}

// Len returns the number of indexed games.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.entries)
}

// Search returns up to MaxResults games matching q, most recently
// updated first.
func (ix *Index) Search(q Query) []game.Info {
	ix.mu.Lock()
	matched := make([]*entry, 0, len(ix.entries))
	for _, e := range ix.entries {
		if matches(q, e.info) {
			matched = append(matched, e)
		}
	}
	ix.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })
	if len(matched) > MaxResults {
		matched = matched[:MaxResults]
	}

	out := make([]game.Info, 0, len(matched))
	for _, e := range matched {
		out = append(out, e.info)
	}
	return out
}

func matches(q Query, info game.Info) bool {
	s := info.Settings
	if !substringMatch(q.GameName, s.Name) {
		return false
	}
	if !substringMatch(q.MapName, s.MapName) {
		return false
	}
	if q.Scoring != Wildcard && q.Scoring != s.Scoring {
		return false
	}
	if q.UnitTrading != Wildcard && q.UnitTrading != s.UnitTrading {
		return false
	}
	if q.Veterans != Wildcard && q.Veterans != s.Veterans {
		return false
	}
	if q.Teams != Wildcard && (q.Teams != 0) != s.TeamGame {
		return false
	}
	if q.Alliances != Wildcard && q.Alliances != s.Alliances {
		return false
	}
	if q.EnemyVisibility != Wildcard && q.EnemyVisibility != s.EnemyVisibility {
		return false
	}
	return true
}

func substringMatch(needle, haystack string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
