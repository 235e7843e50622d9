package rank

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/testutil"
)

func TestNewbieCaste(t *testing.T) {
	for _, tc := range []struct {
		games  int32
		caste  model.Caste
		pinned bool
	}{
		{0, model.CasteDagger, true},
		{1, model.CasteDagger, true},
		{2, model.CasteDaggerWithHilt, true},
		{3, model.CasteKrisKnife, true},
		{4, 0, false},
		{100, 0, false},
	} {
		caste, pinned := NewbieCaste(tc.games)
		assert.Equal(t, tc.pinned, pinned, "games=%d", tc.games)
		if pinned {
			assert.Equal(t, tc.caste, caste, "games=%d", tc.games)
		}
	}
}

func TestSortRanking_NewbiesSinkBelowRanked(t *testing.T) {
	rows := []rankedRow{
		{id: 1, points: 500, gamesPlayed: 2}, // newbie despite big points
		{id: 2, points: 10, gamesPlayed: 20},
		{id: 3, points: 10, gamesPlayed: 50},
		{id: 4, points: 80, gamesPlayed: 4},
	}
	sortRanking(rows)

	assert.Equal(t, uint32(4), rows[0].id)
	assert.Equal(t, uint32(3), rows[1].id, "ties break by games played")
	assert.Equal(t, uint32(2), rows[2].id)
	assert.Equal(t, uint32(1), rows[3].id)
}

// seedPopulation inserts 28 ranked users with strictly descending
// points (user id 1 is best) plus two newbies.
func seedPopulation(t *testing.T) *testutil.MemoryUserStore {
	t.Helper()
	users := testutil.NewMemoryUserStore()
	ctx := context.Background()
	for i := 1; i <= 28; i++ {
		u := &model.User{Login: fmt.Sprintf("vet%02d", i), Name: fmt.Sprintf("vet%02d", i)}
		u.Ranked.Points = int32(1000 - i)
		u.Ranked.GamesPlayed = 10
		require.NoError(t, users.Insert(ctx, u))
	}
	for i, games := range []int32{1, 3} {
		u := &model.User{Login: fmt.Sprintf("new%d", i), Name: fmt.Sprintf("new%d", i)}
		u.Ranked.Points = 2000 // points never outrank the games pin
		u.Ranked.GamesPlayed = games
		require.NoError(t, users.Insert(ctx, u))
	}
	return users
}

func TestRanker_Recompute(t *testing.T) {
	users := seedPopulation(t)
	r := NewRanker(users)
	ctx := context.Background()

	require.NoError(t, r.Recompute(ctx))
	bp := r.Breakpoints()
	assert.Equal(t, 28, bp.RankedPlayers)

	casteOf := func(id uint32) model.Caste {
		u, err := users.GetByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, u)
		return u.Caste
	}

	// Named castes come off the very top in draw order.
	assert.Equal(t, model.CasteComet, casteOf(1))
	assert.Equal(t, model.CasteSun, casteOf(2))
	assert.Equal(t, model.CasteEclipsedSun, casteOf(3))
	assert.Equal(t, model.CasteMoon, casteOf(4))
	assert.Equal(t, model.CasteMoon, casteOf(5))
	assert.Equal(t, model.CasteEclipsedMoon, casteOf(6))
	assert.Equal(t, model.CasteEclipsedMoon, casteOf(7))
	assert.Equal(t, model.CasteEclipsedMoon, casteOf(8))

	// 20 players split across the normal bands, highest caste first.
	assert.Equal(t, model.CasteNiceCrown, casteOf(9))
	assert.Equal(t, model.CasteCrown, casteOf(10))
	assert.Equal(t, model.CasteSimpleCrown, casteOf(11))
	assert.Equal(t, model.CasteShieldCrossedAxes, casteOf(12))
	assert.Equal(t, model.CasteShieldCrossedAxes, casteOf(13))
	assert.Equal(t, model.CasteShieldCrossedSwords, casteOf(14))
	assert.Equal(t, model.CasteShield, casteOf(16))
	assert.Equal(t, model.CasteCrossedAxes, casteOf(18))
	assert.Equal(t, model.CasteCrossedSwords, casteOf(20))
	assert.Equal(t, model.CasteSwordAndDagger, casteOf(23))
	assert.Equal(t, model.CasteSwordAndDagger, casteOf(28))

	// Newbies are pinned regardless of points.
	assert.Equal(t, model.CasteDagger, casteOf(29))
	assert.Equal(t, model.CasteKrisKnife, casteOf(30))

	// Numerical ranks follow the sorted population, 1-based.
	top, err := users.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), top.Ranked.NumericalRank)
}

func TestRanker_CasteForNewPlayer(t *testing.T) {
	users := seedPopulation(t)
	r := NewRanker(users)
	require.NoError(t, r.Recompute(context.Background()))

	// A ranked player outside the snapshot resolves by points alone.
	assert.Equal(t, model.CasteSwordAndDagger, r.CasteFor(999, 0, 10))
	assert.Equal(t, model.CasteNiceCrown, r.CasteFor(999, 991, 10))

	// Pins still win over points.
	assert.Equal(t, model.CasteDaggerWithHilt, r.CasteFor(999, 5000, 2))
}

func TestRanker_EmptyPopulation(t *testing.T) {
	r := NewRanker(testutil.NewMemoryUserStore())
	require.NoError(t, r.Recompute(context.Background()))

	bp := r.Breakpoints()
	assert.Zero(t, bp.RankedPlayers)
	assert.Equal(t, model.CasteSwordAndDagger, bp.CasteFor(1, 100, 10))
}

func TestOrderMaintainer_Sweep(t *testing.T) {
	orders := testutil.NewMemoryOrderStore()
	ctx := context.Background()

	small := &model.Order{Name: "duo", MemberIDs: []uint32{1, 2}}
	healthy := &model.Order{Name: "trio", MemberIDs: []uint32{1, 2, 3}}
	require.NoError(t, orders.Insert(ctx, small))
	require.NoError(t, orders.Insert(ctx, healthy))

	m := NewOrderMaintainer(orders, testutil.NewMemoryAuditLog())
	base := time.Now()
	m.SetClock(func() time.Time { return base })

	// First sweep starts the countdown for the small order.
	require.NoError(t, m.Sweep(ctx))
	got, err := orders.GetByID(ctx, small.ID)
	require.NoError(t, err)
	assert.Equal(t, base, got.BelowMinimumSince)

	// Inside the grace period nothing is retired.
	m.SetClock(func() time.Time { return base.Add(model.OrderBelowMinimumGrace - time.Hour) })
	require.NoError(t, m.Sweep(ctx))
	got, err = orders.GetByID(ctx, small.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	// Past the grace period the order is marked unused.
	m.SetClock(func() time.Time { return base.Add(model.OrderBelowMinimumGrace + time.Hour) })
	require.NoError(t, m.Sweep(ctx))
	got, err = orders.GetByID(ctx, small.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// The healthy order is untouched.
	got, err = orders.GetByID(ctx, healthy.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.BelowMinimumSince.IsZero())
}

func TestOrderMaintainer_RecoveryClearsCountdown(t *testing.T) {
	orders := testutil.NewMemoryOrderStore()
	ctx := context.Background()

	o := &model.Order{Name: "phoenix", MemberIDs: []uint32{1, 2}}
	require.NoError(t, orders.Insert(ctx, o))

	m := NewOrderMaintainer(orders, nil)
	base := time.Now()
	m.SetClock(func() time.Time { return base })
	require.NoError(t, m.Sweep(ctx))

	// Roster recovers before the grace period expires.
	got, err := orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	got.AddMember(3)
	require.NoError(t, orders.Update(ctx, got))

	m.SetClock(func() time.Time { return base.Add(model.OrderBelowMinimumGrace * 2) })
	require.NoError(t, m.Sweep(ctx))

	got, err = orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.BelowMinimumSince.IsZero())
}
