// Package rank computes caste assignments and numerical ranks from the
// persistent score records.
package rank

import (
	"github.com/udisondev/mythmeta/internal/model"
)

// Games-played pins for the bottom three castes. A player at or below
// the kris knife pin is not ranked by points at all.
const (
	GamesPlayedDaggerCaste         = 1
	GamesPlayedDaggerWithHiltCaste = 2
	GamesPlayedKrisKnifeCaste      = 3
)

// casteRatios is the fraction of the ranked population holding each
// normal caste. The first three are zero: those castes are reserved for
// players pinned by games played. Higher castes take smaller fractions.
var casteRatios = [model.NumberOfNormalCastes]float64{
	0, 0, 0, 0.16, 0.15, 0.14, 0.12, 0.11, 0.10, 0.09, 0.07, 0.06,
}

// Breakpoints is an immutable snapshot of one ranking pass: minimum
// points per normal caste plus the ids holding the named top castes.
// Published via atomic.Pointer; readers never lock.
type Breakpoints struct {
	// NormalCastePoints[c] is the minimum ranked points for caste c.
	// Entries for the pinned bottom castes stay zero.
	NormalCastePoints [model.NumberOfNormalCastes]int32

	CometPlayerIDs        [model.CometPlayerCount]uint32
	SunPlayerIDs          [model.SunPlayerCount]uint32
	EclipsedSunPlayerIDs  [model.EclipsedSunPlayerCount]uint32
	MoonPlayerIDs         [model.MoonPlayerCount]uint32
	EclipsedMoonPlayerIDs [model.EclipsedMoonPlayerCount]uint32

	// RankedPlayers is the population size the snapshot was built from.
	RankedPlayers int
}

// NewbieCaste returns the pinned caste for a player with too few games
// to be ranked, and whether the pin applies.
func NewbieCaste(gamesPlayed int32) (model.Caste, bool) {
	switch {
	case gamesPlayed <= GamesPlayedDaggerCaste:
		return model.CasteDagger, true
	case gamesPlayed <= GamesPlayedDaggerWithHiltCaste:
		return model.CasteDaggerWithHilt, true
	case gamesPlayed <= GamesPlayedKrisKnifeCaste:
		return model.CasteKrisKnife, true
	}
	return 0, false
}

// CasteFor resolves a player's caste against the snapshot.
func (b *Breakpoints) CasteFor(userID uint32, points, gamesPlayed int32) model.Caste {
	if c, pinned := NewbieCaste(gamesPlayed); pinned {
		return c
	}
	if named, ok := b.namedCaste(userID); ok {
		return named
	}

	// Walk the normal castes from the top down; the first breakpoint the
	// player clears is their caste.
	for c := model.NumberOfNormalCastes - 1; c > int(model.CasteKrisKnife); c-- {
		if points >= b.NormalCastePoints[c] {
			return model.Caste(c)
		}
	}
	return model.CasteSwordAndDagger
}

func (b *Breakpoints) namedCaste(userID uint32) (model.Caste, bool) {
	for _, id := range b.CometPlayerIDs {
		if id != 0 && id == userID {
			return model.CasteComet, true
		}
	}
	for _, id := range b.SunPlayerIDs {
		if id != 0 && id == userID {
			return model.CasteSun, true
		}
	}
	for _, id := range b.EclipsedSunPlayerIDs {
		if id != 0 && id == userID {
			return model.CasteEclipsedSun, true
		}
	}
	for _, id := range b.MoonPlayerIDs {
		if id != 0 && id == userID {
			return model.CasteMoon, true
		}
	}
	for _, id := range b.EclipsedMoonPlayerIDs {
		if id != 0 && id == userID {
			return model.CasteEclipsedMoon, true
		}
	}
	return 0, false
}
