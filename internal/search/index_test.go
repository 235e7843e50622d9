package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/mythmeta/internal/game"
)

func info(id uint32, name, mapName string, tweak func(*game.Info)) game.Info {
	in := game.Info{
		ID:     id,
		RoomID: 1,
		State:  game.StateWaiting,
		Settings: game.Settings{
			Name:    name,
			MapName: mapName,
		},
	}
	if tweak != nil {
		tweak(&in)
	}
	return in
}

func TestIndex_SubstringMatch(t *testing.T) {
	ix := NewIndex()
	ix.GameAdded(info(1, "Morning Carnage", "desert between your ears", nil))
	ix.GameAdded(info(2, "quiet game", "the great library", nil))

	q := NewQuery()
	q.GameName = "CARNAGE"
	got := ix.Search(q)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(1), got[0].ID)

	q = NewQuery()
	q.MapName = "library"
	got = ix.Search(q)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(2), got[0].ID)

	q = NewQuery()
	q.GameName = "nope"
	assert.Empty(t, ix.Search(q))
}

func TestIndex_NumericPredicates(t *testing.T) {
	ix := NewIndex()
	ix.GameAdded(info(1, "a", "m", func(in *game.Info) {
		in.Settings.Scoring = 2
		in.Settings.TeamGame = true
		in.Settings.Veterans = 1
	}))
	ix.GameAdded(info(2, "b", "m", func(in *game.Info) {
		in.Settings.Scoring = 2
	}))

	q := NewQuery()
	q.Scoring = 2
	assert.Len(t, ix.Search(q), 2)

	q.Teams = 1
	got := ix.Search(q)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(1), got[0].ID)

	q.Teams = 0
	got = ix.Search(q)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(2), got[0].ID)

	q = NewQuery()
	q.Veterans = 0
	got = ix.Search(q)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(2), got[0].ID)
}

func TestIndex_MostRecentFirstCapped(t *testing.T) {
	ix := NewIndex()
	for i := uint32(1); i <= 8; i++ {
		ix.GameAdded(info(i, fmt.Sprintf("game %d", i), "m", nil))
	}

	// Touch game 3 so it jumps to the front.
	ix.GameChanged(info(3, "game 3", "m", nil))

	got := ix.Search(NewQuery())
	require.Len(t, got, MaxResults)
	assert.Equal(t, uint32(3), got[0].ID)
	assert.Equal(t, uint32(8), got[1].ID)
}

func TestIndex_RemovalAndTerminalStates(t *testing.T) {
	ix := NewIndex()
	ix.GameAdded(info(1, "a", "m", nil))
	ix.GameAdded(info(2, "b", "m", nil))
	require.Equal(t, 2, ix.Len())

	ix.GameRemoved(1, 1)
	assert.Equal(t, 1, ix.Len())

	// A change into a terminal state also drops the entry.
	ix.GameChanged(info(2, "b", "m", func(in *game.Info) { in.State = game.StateAborted }))
	assert.Zero(t, ix.Len())
}
