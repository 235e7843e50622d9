package game

// Game-end codes carried in a standings report.
const (
	GameEndedNormally     int16 = 0
	GameEndedDisconnected int16 = 1
	GameEndedAborted      int16 = 2
)

// PlayerStanding is one player's row in a standings report.
type PlayerStanding struct {
	UserID       uint32
	Team         int16
	PointsKilled int32
	PointsLost   int32
}

// StandingsReport is one client's claim of the final game outcome.
// Every client in a game may submit one; the authoritative report is
// chosen by FindGoodStandings.
type StandingsReport struct {
	GameEndedCode   int16
	Version         uint16
	NumberOfPlayers int16
	GameScoring     int16 // per-game-type score row index

	Players []PlayerStanding

	// TeamPlaces maps team index to final place; place 0 is the
	// winner, the highest place the loser.
	TeamPlaces []int16
}

// NumberOfTeams returns how many teams the report places.
func (r *StandingsReport) NumberOfTeams() int {
	return len(r.TeamPlaces)
}

// SameStandings is the agreement predicate between two reports: same
// end code, same version, same player count. Deliberately shallow:
// two honest clients can disagree on per-player details but not on
// these three facts.
func SameStandings(a, b *StandingsReport) bool {
	if a == nil || b == nil {
		return false
	}
	return a.GameEndedCode == b.GameEndedCode &&
		a.Version == b.Version &&
		a.NumberOfPlayers == b.NumberOfPlayers
}

// FindGoodStandings picks the authoritative report: iterating in
// receipt order, the first report that agrees with the current
// candidate wins the pair and the candidate is returned. With no
// agreeing pair there is no authoritative result (nil). A single-player
// game accepts its lone report.
func FindGoodStandings(playerCount int, reports []*StandingsReport) *StandingsReport {
	if len(reports) == 0 {
		return nil
	}
	if playerCount == 1 {
		return reports[0]
	}

	var candidate *StandingsReport
	for _, report := range reports {
		if report == nil {
			continue
		}
		if candidate != nil {
			if SameStandings(report, candidate) {
				return candidate
			}
		} else {
			candidate = report
		}
	}
	return nil
}
