package model

// MaximumGameTypes bounds the per-game-type score rows carried by every
// user and order record.
const MaximumGameTypes = 16

// ScoreDatum is the canonical score record, used for both the overall
// ranked/unranked rows and the per-game-type rows. Points are signed
// internally; they are clamped to zero only at display time.
type ScoreDatum struct {
	GamesPlayed     int32
	Wins            int32
	Losses          int32
	Ties            int32
	DamageInflicted int32
	DamageReceived  int32
	Disconnects     int32
	Points          int32
	Rank            int16
	HighestPoints   int32
	HighestRank     int16
	NumericalRank   int32
}

// DisplayPoints returns the points value surfaced to clients. Internal
// arithmetic may go negative; the wire never shows less than zero.
func (s ScoreDatum) DisplayPoints() int32 {
	if s.Points < 0 {
		return 0
	}
	return s.Points
}

// RecordWin applies a first-place result.
func (s *ScoreDatum) RecordWin() {
	s.GamesPlayed++
	s.Wins++
	s.Points += 3
	if s.Points > s.HighestPoints {
		s.HighestPoints = s.Points
	}
}

// RecordLoss applies a last-place result.
func (s *ScoreDatum) RecordLoss() {
	s.GamesPlayed++
	s.Losses++
	s.Points--
}

// RecordPlayed applies a mid-field result: the game counts, the score
// does not move.
func (s *ScoreDatum) RecordPlayed() {
	s.GamesPlayed++
}

// AddDamage accumulates the damage columns from one game.
func (s *ScoreDatum) AddDamage(inflicted, received int32) {
	s.DamageInflicted += inflicted
	s.DamageReceived += received
}
