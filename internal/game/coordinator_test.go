package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/protocol"
	"github.com/udisondev/mythmeta/internal/testutil"
)

type recordingEvents struct {
	mu      sync.Mutex
	added   []uint32
	changed []uint32
	removed []uint32
}

func (r *recordingEvents) GameAdded(info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, info.ID)
}

func (r *recordingEvents) GameChanged(info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, info.ID)
}

func (r *recordingEvents) GameRemoved(id uint32, roomID uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
}

type fixture struct {
	coord   *Coordinator
	users   *testutil.MemoryUserStore
	journal *testutil.MemoryScoreJournal
	events  *recordingEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := testutil.NewMemoryUserStore()
	journal := testutil.NewMemoryScoreJournal()
	coord := NewCoordinator(NewScorer(users, journal, testutil.NewMemoryAuditLog()))
	events := &recordingEvents{}
	coord.Subscribe(events)
	return &fixture{coord: coord, users: users, journal: journal, events: events}
}

func (f *fixture) addUser(t *testing.T, login string) *model.User {
	t.Helper()
	u := &model.User{Login: login, Name: login}
	require.NoError(t, f.users.Insert(context.Background(), u))
	return u
}

// startThreePlayerGame builds the scenario shared by the standings
// tests: three users, all ready, solo teams, game in progress.
func startThreePlayerGame(t *testing.T, f *fixture) (*Game, []*model.User) {
	t.Helper()
	now := time.Now()

	players := []*model.User{
		f.addUser(t, "alice"),
		f.addUser(t, "bob"),
		f.addUser(t, "carol"),
	}

	g, err := f.coord.CreateGame(players[0].ID, 0, Settings{
		Name:       "standings test",
		MaxPlayers: 3,
		Ranked:     true,
	})
	require.NoError(t, err)

	for _, u := range players[1:] {
		_, err := f.coord.JoinGame(g.ID(), u.ID)
		require.NoError(t, err)
	}
	for i, u := range players {
		require.NoError(t, g.SetTeam(u.ID, int16(i), now))
		require.NoError(t, g.SetReady(u.ID, true, now))
	}
	require.NoError(t, f.coord.StartGame(g.ID(), players[0].ID))
	require.Equal(t, StateInProgress, g.State())
	return g, players
}

func threePlayerReport(players []*model.User, code int16, places [3]int16) *StandingsReport {
	r := &StandingsReport{
		GameEndedCode:   code,
		Version:         1,
		NumberOfPlayers: 3,
		TeamPlaces:      places[:],
	}
	for i, u := range players {
		r.Players = append(r.Players, PlayerStanding{UserID: u.ID, Team: int16(i)})
	}
	return r
}

func TestCoordinator_CreateRefusesSecondGame(t *testing.T) {
	f := newFixture(t)
	host := f.addUser(t, "host")

	_, err := f.coord.CreateGame(host.ID, 0, Settings{MaxPlayers: 4})
	require.NoError(t, err)

	_, err = f.coord.CreateGame(host.ID, 0, Settings{MaxPlayers: 4})
	var opErr *Error
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, protocol.CodeGameAlreadyExists, opErr.Code)
}

func TestCoordinator_JoinGates(t *testing.T) {
	f := newFixture(t)
	host := f.addUser(t, "host")
	guest := f.addUser(t, "guest")

	g, err := f.coord.CreateGame(host.ID, 0, Settings{MaxPlayers: 2})
	require.NoError(t, err)

	_, err = f.coord.JoinGame(g.ID(), guest.ID)
	require.NoError(t, err)
	assert.Same(t, g, f.coord.GameOf(guest.ID))

	// A third user bounces off the full game.
	late := f.addUser(t, "late")
	_, err = f.coord.JoinGame(g.ID(), late.ID)
	var opErr *Error
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, protocol.CodeGameFull, opErr.Code)

	// Guests already in a game cannot join another.
	other, err := f.coord.CreateGame(late.ID, 0, Settings{MaxPlayers: 4})
	require.NoError(t, err)
	_, err = f.coord.JoinGame(other.ID(), guest.ID)
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, protocol.CodeAlreadyInGame, opErr.Code)
}

func TestCoordinator_StartGameHostOnly(t *testing.T) {
	f := newFixture(t)
	host := f.addUser(t, "host")
	guest := f.addUser(t, "guest")

	g, err := f.coord.CreateGame(host.ID, 0, Settings{MaxPlayers: 2})
	require.NoError(t, err)
	_, err = f.coord.JoinGame(g.ID(), guest.ID)
	require.NoError(t, err)

	err = f.coord.StartGame(g.ID(), guest.ID)
	var opErr *Error
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, protocol.CodeNotGameHost, opErr.Code)
}

func TestCoordinator_StandingsReconciliation(t *testing.T) {
	f := newFixture(t)
	g, players := startThreePlayerGame(t, f)
	ctx := context.Background()

	// A and B agree; C blames a disconnect and shuffles the places.
	agreed := threePlayerReport(players, GameEndedNormally, [3]int16{0, 1, 1})
	require.NoError(t, f.coord.SubmitStandings(g.ID(), players[0].ID, agreed))
	require.NoError(t, f.coord.SubmitStandings(g.ID(), players[1].ID,
		threePlayerReport(players, GameEndedNormally, [3]int16{0, 1, 1})))
	require.NoError(t, f.coord.SubmitStandings(g.ID(), players[2].ID,
		threePlayerReport(players, GameEndedDisconnected, [3]int16{0, 2, 1})))

	require.NoError(t, f.coord.EndGame(ctx, g.ID(), players[0].ID))
	assert.Equal(t, StateCompleted, g.State())

	// First place wins; the teams tied for last both take the loss.
	alice, err := f.users.GetByID(ctx, players[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), alice.Ranked.Wins)
	assert.Equal(t, int32(3), alice.Ranked.Points)
	assert.Equal(t, int32(1), alice.Ranked.GamesPlayed)

	for _, loser := range players[1:] {
		u, err := f.users.GetByID(ctx, loser.ID)
		require.NoError(t, err)
		assert.Equal(t, int32(1), u.Ranked.Losses, "user %s", loser.Login)
		assert.Equal(t, int32(-1), u.Ranked.Points, "user %s", loser.Login)
		assert.Equal(t, int32(1), u.Ranked.GamesPlayed, "user %s", loser.Login)
	}
}

func TestCoordinator_NoAgreementAborts(t *testing.T) {
	f := newFixture(t)
	g, players := startThreePlayerGame(t, f)
	ctx := context.Background()

	// All three disagree on the end code: no authoritative result.
	codes := []int16{GameEndedNormally, GameEndedDisconnected, GameEndedAborted}
	for i, u := range players {
		require.NoError(t, f.coord.SubmitStandings(g.ID(), u.ID,
			threePlayerReport(players, codes[i], [3]int16{0, 1, 1})))
	}

	require.NoError(t, f.coord.EndGame(ctx, g.ID(), players[0].ID))
	assert.Equal(t, StateAborted, g.State())

	// No score mutations applied to anyone.
	for _, u := range players {
		stored, err := f.users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Zero(t, stored.Ranked.GamesPlayed, "user %s", u.Login)
		assert.Zero(t, stored.Ranked.Points, "user %s", u.Login)
	}
}

func TestCoordinator_ScoringIdempotentPerGame(t *testing.T) {
	f := newFixture(t)
	g, players := startThreePlayerGame(t, f)
	ctx := context.Background()

	rep := threePlayerReport(players, GameEndedNormally, [3]int16{0, 1, 1})
	scorer := NewScorer(f.users, f.journal, nil)
	require.NoError(t, scorer.Apply(ctx, g.ID(), rep))

	// Re-applying the same game id is a no-op.
	require.NoError(t, scorer.Apply(ctx, g.ID(), rep))

	alice, err := f.users.GetByID(ctx, players[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), alice.Ranked.GamesPlayed)
	assert.Equal(t, int32(3), alice.Ranked.Points)
}

func TestCoordinator_EndGameHostOnly(t *testing.T) {
	f := newFixture(t)
	g, players := startThreePlayerGame(t, f)

	err := f.coord.EndGame(context.Background(), g.ID(), players[1].ID)
	var opErr *Error
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, protocol.CodeNotGameHost, opErr.Code)
	assert.Equal(t, StateInProgress, g.State())
}

func TestCoordinator_LeaveLastPlayerFinalizes(t *testing.T) {
	f := newFixture(t)
	host := f.addUser(t, "loner")
	ctx := context.Background()

	g, err := f.coord.CreateGame(host.ID, 0, Settings{MaxPlayers: 2})
	require.NoError(t, err)

	f.coord.LeaveGame(ctx, host.ID)
	assert.Equal(t, StateAborted, g.State())
	assert.Nil(t, f.coord.GameOf(host.ID))
	assert.Contains(t, f.events.removed, g.ID())
}

func TestCoordinator_InactivityReap(t *testing.T) {
	f := newFixture(t)
	g, _ := startThreePlayerGame(t, f)

	base := time.Now()
	f.coord.SetClock(func() time.Time { return base.Add(InactivityTimeout + 2*ReapInterval) })

	f.coord.Reap(context.Background())
	assert.Equal(t, StateAborted, g.State())

	// Terminal games are GC'd once retention passes.
	f.coord.SetClock(func() time.Time {
		return base.Add(InactivityTimeout + 2*ReapInterval + CompletedRetention + time.Minute)
	})
	f.coord.Reap(context.Background())
	assert.Nil(t, f.coord.Get(g.ID()))
}

func TestCoordinator_GamesInRoom(t *testing.T) {
	f := newFixture(t)
	a := f.addUser(t, "a")
	b := f.addUser(t, "b")

	ga, err := f.coord.CreateGame(a.ID, 1, Settings{MaxPlayers: 4, Name: "in room 1"})
	require.NoError(t, err)
	_, err = f.coord.CreateGame(b.ID, 2, Settings{MaxPlayers: 4, Name: "in room 2"})
	require.NoError(t, err)

	infos := f.coord.GamesInRoom(1)
	require.Len(t, infos, 1)
	assert.Equal(t, ga.ID(), infos[0].ID)
}
