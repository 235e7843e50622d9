package game

import (
	"fmt"
	"sync"
	"time"
)

// Settings are the host-supplied game parameters, fixed at creation.
type Settings struct {
	Name       string
	MapName    string
	Scoring    int16 // game-type scoring index, 0..model.MaximumGameTypes-1
	MaxPlayers int
	TeamGame   bool
	Options    uint32
	Ranked     bool

	// PasswordHash is non-empty for private games. Verification is a
	// black box to the coordinator.
	PasswordHash string

	// Advertised query predicates beyond the options bitmask.
	UnitTrading     int16
	Veterans        int16
	Alliances       int16
	EnemyVisibility int16
}

// Player is one roster slot of a live game.
type Player struct {
	UserID     uint32
	Team       int16
	Ready      bool
	Score      int32
	LastActive time.Time
}

// Game is an advertised or in-progress match. One mutex per game; the
// coordinator's table lock is only ever held for insert/remove.
type Game struct {
	id     uint32
	hostID uint32
	roomID uint16

	mu        sync.Mutex
	state     State
	settings  Settings
	players   map[uint32]*Player
	roster    []uint32 // join order
	reports   []*StandingsReport
	reported  map[uint32]bool
	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time
}

func newGame(id, hostID uint32, roomID uint16, settings Settings, now time.Time) *Game {
	return &Game{
		id:        id,
		hostID:    hostID,
		roomID:    roomID,
		state:     StateInitializing,
		settings:  settings,
		players:   make(map[uint32]*Player),
		reported:  make(map[uint32]bool),
		createdAt: now,
	}
}

// ID returns the game id.
func (g *Game) ID() uint32 { return g.id }

// HostID returns the hosting user's id.
func (g *Game) HostID() uint32 { return g.hostID }

// RoomID returns the room the game is advertised in.
func (g *Game) RoomID() uint16 { return g.roomID }

// State returns the current lifecycle phase.
func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Settings returns the fixed game parameters.
func (g *Game) Settings() Settings {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settings
}

// PlayerCount returns the current roster size.
func (g *Game) PlayerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.players)
}

// Players returns a snapshot of the roster in join order.
func (g *Game) Players() []Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Player, 0, len(g.players))
	for _, id := range g.roster {
		if p, ok := g.players[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// setState applies a transition, enforcing monotonicity.
func (g *Game) setState(to State) error {
	if !canTransition(g.state, to) {
		return fmt.Errorf("game %d: illegal transition %s -> %s", g.id, g.state, to)
	}
	g.state = to
	return nil
}

// AddPlayer admits a user onto the roster. The first player moves the
// game from INITIALIZING to WAITING, making it visible to the room and
// the search index.
func (g *Game) AddPlayer(userID uint32, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateInitializing && g.state != StateWaiting {
		return fmt.Errorf("game %d: cannot join in state %s", g.id, g.state)
	}
	if _, ok := g.players[userID]; ok {
		return fmt.Errorf("game %d: user %d already on roster", g.id, userID)
	}
	if len(g.players) >= g.settings.MaxPlayers {
		return fmt.Errorf("game %d: full (%d players)", g.id, g.settings.MaxPlayers)
	}

	g.players[userID] = &Player{UserID: userID, Team: -1, LastActive: now}
	g.roster = append(g.roster, userID)

	if g.state == StateInitializing {
		if err := g.setState(StateWaiting); err != nil {
			return err
		}
	}
	return nil
}

// RemovePlayer drops a user from the roster. Reports whether the
// roster is now empty (the caller then ends or aborts the game).
func (g *Game) RemovePlayer(userID uint32) (empty bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.players, userID)
	return len(g.players) == 0
}

// SetReady flags a roster slot ready or not.
func (g *Game) SetReady(userID uint32, ready bool, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.players[userID]
	if !ok {
		return fmt.Errorf("game %d: user %d not on roster", g.id, userID)
	}
	p.Ready = ready
	p.LastActive = now
	return nil
}

// SetTeam assigns a roster slot to a team.
func (g *Game) SetTeam(userID uint32, team int16, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.players[userID]
	if !ok {
		return fmt.Errorf("game %d: user %d not on roster", g.id, userID)
	}
	p.Team = team
	p.LastActive = now
	return nil
}

// Touch records activity for a roster slot, feeding the inactivity
// reaper.
func (g *Game) Touch(userID uint32, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.players[userID]; ok {
		p.LastActive = now
	}
}

// checkReadiness validates the start invariants. Returns a
// human-readable reason on the first violation. Caller holds g.mu.
func (g *Game) checkReadiness() error {
	if g.state != StateWaiting {
		return fmt.Errorf("game is %s, not waiting", g.state)
	}
	if len(g.players) == 0 {
		return fmt.Errorf("no players in game")
	}
	for _, id := range g.roster {
		p, ok := g.players[id]
		if !ok {
			continue
		}
		if !p.Ready {
			return fmt.Errorf("player %d not ready", p.UserID)
		}
	}
	if g.settings.TeamGame {
		teamSizes := make(map[int16]int)
		for _, p := range g.players {
			if p.Team < 0 {
				return fmt.Errorf("player %d has no team", p.UserID)
			}
			teamSizes[p.Team]++
		}
		var size int
		for _, n := range teamSizes {
			if size == 0 {
				size = n
			} else if n != size {
				return fmt.Errorf("unbalanced teams")
			}
		}
	}
	return nil
}

// Start moves the game WAITING -> STARTING -> IN_PROGRESS after the
// readiness invariants pass. Only the host may start; a violation
// leaves the state untouched and carries the reason.
func (g *Game) Start(byUserID uint32, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if byUserID != g.hostID {
		return fmt.Errorf("only the host can start the game")
	}
	if err := g.checkReadiness(); err != nil {
		return err
	}
	if err := g.setState(StateStarting); err != nil {
		return err
	}
	if err := g.setState(StateInProgress); err != nil {
		return err
	}
	g.startedAt = now
	for _, p := range g.players {
		p.LastActive = now
	}
	return nil
}

// SubmitStandings records one client's post-game report, in receipt
// order. One report per reporter; repeats are dropped.
func (g *Game) SubmitStandings(reporterID uint32, report *StandingsReport, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateInProgress && g.state != StateEnding {
		return fmt.Errorf("game %d: standings in state %s", g.id, g.state)
	}
	if _, ok := g.players[reporterID]; !ok {
		return fmt.Errorf("game %d: reporter %d not on roster", g.id, reporterID)
	}
	if g.reported[reporterID] {
		return nil
	}
	g.reported[reporterID] = true
	g.reports = append(g.reports, report)
	if p, ok := g.players[reporterID]; ok {
		p.LastActive = now
	}
	return nil
}

// Reports returns the received standings reports in receipt order.
func (g *Game) Reports() []*StandingsReport {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*StandingsReport, len(g.reports))
	copy(out, g.reports)
	return out
}

// end moves IN_PROGRESS -> ENDING.
func (g *Game) end(now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.setState(StateEnding); err != nil {
		return err
	}
	g.endedAt = now
	return nil
}

// complete moves ENDING -> COMPLETED.
func (g *Game) complete() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setState(StateCompleted)
}

// abort forces the game into ABORTED from any non-terminal state.
func (g *Game) abort(now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.Terminal() {
		return fmt.Errorf("game %d already %s", g.id, g.state)
	}
	g.state = StateAborted
	g.endedAt = now
	return nil
}

// idleSince reports whether every player has been inactive since the
// given cutoff. An empty roster counts as idle.
func (g *Game) idleSince(cutoff time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.players {
		if p.LastActive.After(cutoff) {
			return false
		}
	}
	return true
}

// finishedAt returns when the game reached a terminal state.
func (g *Game) finishedAt() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.state.Terminal() {
		return time.Time{}, false
	}
	return g.endedAt, true
}
