package model

// Caste is a tier/rank class derived from ranked points. Twelve normal
// castes are assigned by population percentile; the five top castes are
// held by a fixed number of players each.
type Caste int16

const (
	CasteDagger Caste = iota
	CasteDaggerWithHilt
	CasteKrisKnife
	CasteSwordAndDagger
	CasteCrossedSwords
	CasteCrossedAxes
	CasteShield
	CasteShieldCrossedSwords
	CasteShieldCrossedAxes
	CasteSimpleCrown
	CasteCrown
	CasteNiceCrown
	CasteEclipsedMoon
	CasteMoon
	CasteEclipsedSun
	CasteSun
	CasteComet

	CasteCount
)

// NumberOfNormalCastes counts the percentile-assigned castes; everything
// above is a fixed-slot named caste.
const NumberOfNormalCastes = 12

// Fixed holder counts for the named top castes, drawn in order from the
// top of the ranked population.
const (
	CometPlayerCount        = 1
	SunPlayerCount          = 1
	EclipsedSunPlayerCount  = 1
	MoonPlayerCount         = 2
	EclipsedMoonPlayerCount = 3
)

// AdministratorCaste is what admins display as regardless of points.
const AdministratorCaste = CasteCount

var casteNames = [...]string{
	"dagger",
	"dagger with hilt",
	"kris knife",
	"sword and dagger",
	"crossed swords",
	"crossed axes",
	"shield",
	"shield crossed swords",
	"shield crossed axes",
	"simple crown",
	"crown",
	"nice crown",
	"eclipsed moon",
	"moon",
	"eclipsed sun",
	"sun",
	"comet",
}

func (c Caste) String() string {
	if c < 0 || int(c) >= len(casteNames) {
		return "unknown"
	}
	return casteNames[c]
}

// IsNamed reports whether c is one of the fixed-slot top castes.
func (c Caste) IsNamed() bool {
	return c >= CasteEclipsedMoon && c <= CasteComet
}
