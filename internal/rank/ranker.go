package rank

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/store"
)

const (
	// RecomputeInterval is how often the full ranking pass runs.
	RecomputeInterval = 2 * time.Hour

	// writeBatchSize bounds the store writes between yields so a big
	// ranking pass cannot starve request handlers of the store.
	writeBatchSize = 1000
)

type rankedRow struct {
	id          uint32
	points      int32
	gamesPlayed int32
}

// Ranker owns the periodic caste recomputation. The current breakpoints
// snapshot is read lock-free via an atomic pointer.
type Ranker struct {
	users store.UserStore
	bp    atomic.Pointer[Breakpoints]
}

// NewRanker creates a ranker with an empty breakpoints snapshot.
func NewRanker(users store.UserStore) *Ranker {
	r := &Ranker{users: users}
	r.bp.Store(&Breakpoints{})
	return r
}

// Breakpoints returns the current snapshot. Never nil.
func (r *Ranker) Breakpoints() *Breakpoints {
	return r.bp.Load()
}

// CasteFor resolves a caste against the current snapshot.
func (r *Ranker) CasteFor(userID uint32, points, gamesPlayed int32) model.Caste {
	return r.bp.Load().CasteFor(userID, points, gamesPlayed)
}

// Run recomputes once at startup and then on every tick until ctx is
// done.
func (r *Ranker) Run(ctx context.Context) error {
	if err := r.Recompute(ctx); err != nil {
		slog.Error("initial ranking pass", "err", err)
	}
	ticker := time.NewTicker(RecomputeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Recompute(ctx); err != nil {
				slog.Error("ranking pass", "err", err)
			}
		}
	}
}

// Recompute runs one full ranking pass: sort the population, draw the
// named castes, derive the normal-caste breakpoints, then write castes
// and numerical ranks back in bounded batches.
func (r *Ranker) Recompute(ctx context.Context) error {
	started := time.Now()

	var rows []rankedRow
	err := r.users.IterateAll(ctx, func(u *model.User) bool {
		rows = append(rows, rankedRow{
			id:          u.ID,
			points:      u.Ranked.Points,
			gamesPlayed: u.Ranked.GamesPlayed,
		})
		return true
	})
	if err != nil {
		return fmt.Errorf("loading score rows: %w", err)
	}

	sortRanking(rows)
	bp := buildBreakpoints(rows)

	if err := r.writeBack(ctx, rows, bp); err != nil {
		return err
	}

	r.bp.Store(bp)
	slog.Info("ranking pass complete",
		"players", len(rows), "ranked", bp.RankedPlayers, "took", time.Since(started))
	return nil
}

// sortRanking orders rows best first: players past the newbie pin rank
// above pinned players, then points descending, then games descending.
func sortRanking(rows []rankedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		iRanked := rows[i].gamesPlayed > GamesPlayedKrisKnifeCaste
		jRanked := rows[j].gamesPlayed > GamesPlayedKrisKnifeCaste
		if iRanked != jRanked {
			return iRanked
		}
		if rows[i].points != rows[j].points {
			return rows[i].points > rows[j].points
		}
		return rows[i].gamesPlayed > rows[j].gamesPlayed
	})
}

// buildBreakpoints derives a snapshot from the sorted population.
func buildBreakpoints(rows []rankedRow) *Breakpoints {
	bp := &Breakpoints{}

	eligible := 0
	for _, row := range rows {
		if row.gamesPlayed > GamesPlayedKrisKnifeCaste {
			eligible++
		}
	}
	bp.RankedPlayers = eligible
	if eligible == 0 {
		return bp
	}

	// The named castes come off the very top, in draw order.
	idx := 0
	take := func(dst []uint32) {
		for i := range dst {
			if idx < eligible {
				dst[i] = rows[idx].id
				idx++
			}
		}
	}
	take(bp.CometPlayerIDs[:])
	take(bp.SunPlayerIDs[:])
	take(bp.EclipsedSunPlayerIDs[:])
	take(bp.MoonPlayerIDs[:])
	take(bp.EclipsedMoonPlayerIDs[:])

	// Everyone left splits into the normal castes, highest caste first.
	// The breakpoint of a caste is the points of the last player inside
	// its band; empty bands get an unreachable breakpoint so nobody
	// resolves into them. Rounding leftovers sink into the bottom band.
	for c := int(model.CasteSwordAndDagger); c < model.NumberOfNormalCastes; c++ {
		bp.NormalCastePoints[c] = math.MaxInt32
	}
	remaining := eligible - idx
	if remaining <= 0 {
		return bp
	}
	pos := idx
	for c := model.NumberOfNormalCastes - 1; c > int(model.CasteSwordAndDagger); c-- {
		inCaste := int(float64(remaining) * casteRatios[c])
		if inCaste <= 0 {
			continue
		}
		last := pos + inCaste - 1
		if last >= eligible {
			last = eligible - 1
		}
		bp.NormalCastePoints[c] = rows[last].points
		pos = last + 1
		if pos >= eligible {
			break
		}
	}
	if pos < eligible {
		bp.NormalCastePoints[model.CasteSwordAndDagger] = rows[eligible-1].points
	}
	return bp
}

// writeBack stores caste and numerical rank for every row, in batches,
// yielding between batches.
func (r *Ranker) writeBack(ctx context.Context, rows []rankedRow, bp *Breakpoints) error {
	for start := 0; start < len(rows); start += writeBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + writeBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		for i := start; i < end; i++ {
			row := rows[i]
			u, err := r.users.GetByID(ctx, row.id)
			if err != nil {
				return fmt.Errorf("loading user %d: %w", row.id, err)
			}
			if u == nil {
				continue
			}
			caste := bp.CasteFor(row.id, row.points, row.gamesPlayed)
			u.Caste = caste
			u.Ranked.Rank = int16(caste)
			u.Ranked.NumericalRank = int32(i + 1)
			if u.Ranked.HighestRank == 0 || int16(caste) > u.Ranked.HighestRank {
				u.Ranked.HighestRank = int16(caste)
			}
			if err := r.users.Update(ctx, u); err != nil {
				return fmt.Errorf("storing user %d: %w", row.id, err)
			}
		}
		time.Sleep(0)
	}
	return nil
}
