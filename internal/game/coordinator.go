package game

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/mythmeta/internal/protocol"
)

// Coordinator timing knobs.
const (
	// ReapInterval is how often the inactivity loop runs.
	ReapInterval = time.Minute

	// InactivityTimeout aborts an in-progress game once every player
	// has been silent this long.
	InactivityTimeout = 30 * time.Minute

	// CompletedRetention keeps finished games visible before GC.
	CompletedRetention = 5 * time.Minute
)

// Info is a lock-free snapshot of a game, published with lifecycle
// events and used by the search index and the list packets.
type Info struct {
	ID          uint32
	HostID      uint32
	RoomID      uint16
	State       State
	Settings    Settings
	PlayerCount int
	CreatedAt   time.Time
}

// Events receives game lifecycle notifications. Implementations must
// not block: events are published synchronously from request handlers
// after all game locks are released.
type Events interface {
	GameAdded(info Info)
	GameChanged(info Info)
	GameRemoved(id uint32, roomID uint16)
}

// Error is a game-operation refusal carrying the wire code plus the
// human-readable reason sent to the client.
type Error struct {
	Code   protocol.MessageCode
	Reason string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return e.Code.Text()
}

func opError(code protocol.MessageCode, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

// Coordinator owns the global game table and drives every game's
// lifecycle. Lock order: coordinator table mutex, then per-game mutex,
// never the reverse.
type Coordinator struct {
	scorer *Scorer
	now    func() time.Time

	mu     sync.Mutex
	games  map[uint32]*Game
	inGame map[uint32]uint32 // user id -> game id
	nextID uint32
	events []Events
}

// NewCoordinator creates an empty coordinator. scorer may be nil in
// tests that never finalize games.
func NewCoordinator(scorer *Scorer) *Coordinator {
	return &Coordinator{
		scorer: scorer,
		now:    time.Now,
		games:  make(map[uint32]*Game),
		inGame: make(map[uint32]uint32),
		nextID: 1,
	}
}

// SetClock overrides the time source (tests).
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// Subscribe registers an event listener. Not safe to call after the
// server starts accepting traffic.
func (c *Coordinator) Subscribe(ev Events) {
	c.events = append(c.events, ev)
}

func (c *Coordinator) snapshot(g *Game) Info {
	return Info{
		ID:          g.ID(),
		HostID:      g.HostID(),
		RoomID:      g.RoomID(),
		State:       g.State(),
		Settings:    g.Settings(),
		PlayerCount: g.PlayerCount(),
		CreatedAt:   g.createdAt,
	}
}

func (c *Coordinator) publishAdded(g *Game) {
	info := c.snapshot(g)
	for _, ev := range c.events {
		ev.GameAdded(info)
	}
}

func (c *Coordinator) publishChanged(g *Game) {
	info := c.snapshot(g)
	for _, ev := range c.events {
		ev.GameChanged(info)
	}
}

func (c *Coordinator) publishRemoved(id uint32, roomID uint16) {
	for _, ev := range c.events {
		ev.GameRemoved(id, roomID)
	}
}

// CreateGame registers a new game hosted by hostID in roomID and joins
// the host as its first player, making the game visible.
func (c *Coordinator) CreateGame(hostID uint32, roomID uint16, settings Settings) (*Game, error) {
	if settings.MaxPlayers <= 0 {
		return nil, opError(protocol.CodeSyntaxError, "max players must be positive")
	}

	now := c.now()

	c.mu.Lock()
	if _, ok := c.inGame[hostID]; ok {
		c.mu.Unlock()
		return nil, opError(protocol.CodeGameAlreadyExists, "")
	}
	id := c.nextID
	c.nextID++
	g := newGame(id, hostID, roomID, settings, now)
	c.games[id] = g
	c.inGame[hostID] = id
	c.mu.Unlock()

	if err := g.AddPlayer(hostID, now); err != nil {
		// Cannot happen on a fresh game; clean up defensively anyway.
		c.mu.Lock()
		delete(c.games, id)
		delete(c.inGame, hostID)
		c.mu.Unlock()
		return nil, opError(protocol.CodeInternalError, err.Error())
	}

	slog.Info("game created", "game", id, "host", hostID, "room", roomID, "name", settings.Name)
	c.publishAdded(g)
	return g, nil
}

// Get returns the game with the given id, or nil.
func (c *Coordinator) Get(id uint32) *Game {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.games[id]
}

// GameOf returns the game the user is currently in, or nil.
func (c *Coordinator) GameOf(userID uint32) *Game {
	c.mu.Lock()
	id, ok := c.inGame[userID]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	g := c.games[id]
	c.mu.Unlock()
	return g
}

// JoinGame adds a user to a waiting game. There is no join opcode;
// clients connect to the host directly and the host reports the final
// roster in its standings, so this exists for the coordinator's own
// bookkeeping and for admin tooling.
func (c *Coordinator) JoinGame(gameID, userID uint32) (*Game, error) {
	c.mu.Lock()
	g, ok := c.games[gameID]
	if !ok {
		c.mu.Unlock()
		return nil, opError(protocol.CodeSyntaxError, fmt.Sprintf("no such game %d", gameID))
	}
	if _, busy := c.inGame[userID]; busy {
		c.mu.Unlock()
		return nil, opError(protocol.CodeAlreadyInGame, "")
	}
	c.inGame[userID] = gameID
	c.mu.Unlock()

	if err := g.AddPlayer(userID, c.now()); err != nil {
		c.mu.Lock()
		delete(c.inGame, userID)
		c.mu.Unlock()
		if g.PlayerCount() >= g.Settings().MaxPlayers {
			return nil, opError(protocol.CodeGameFull, "")
		}
		return nil, opError(protocol.CodeSyntaxError, err.Error())
	}

	c.publishChanged(g)
	return g, nil
}

// LeaveGame removes a user from their game. An emptied game is
// finalized (completed or aborted depending on phase).
func (c *Coordinator) LeaveGame(ctx context.Context, userID uint32) {
	c.mu.Lock()
	id, ok := c.inGame[userID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.inGame, userID)
	g := c.games[id]
	c.mu.Unlock()

	if g == nil {
		return
	}
	if empty := g.RemovePlayer(userID); empty {
		c.finalize(ctx, g)
	} else {
		c.publishChanged(g)
	}
}

// StartGame runs the readiness gate and moves the game into
// IN_PROGRESS. Only the host may start.
func (c *Coordinator) StartGame(gameID, byUserID uint32) error {
	g := c.Get(gameID)
	if g == nil {
		return opError(protocol.CodeSyntaxError, fmt.Sprintf("no such game %d", gameID))
	}
	if byUserID != g.HostID() {
		return opError(protocol.CodeNotGameHost, "")
	}
	if err := g.Start(byUserID, c.now()); err != nil {
		if g.State() != StateWaiting {
			return opError(protocol.CodeGameNotWaiting, err.Error())
		}
		return opError(protocol.CodeSyntaxError, err.Error())
	}

	slog.Info("game started", "game", gameID, "players", g.PlayerCount())
	c.publishChanged(g)
	return nil
}

// SubmitStandings records one player's post-game report.
func (c *Coordinator) SubmitStandings(gameID, reporterID uint32, report *StandingsReport) error {
	g := c.Get(gameID)
	if g == nil {
		return opError(protocol.CodeSyntaxError, fmt.Sprintf("no such game %d", gameID))
	}
	if err := g.SubmitStandings(reporterID, report, c.now()); err != nil {
		return opError(protocol.CodeSyntaxError, err.Error())
	}
	return nil
}

// EndGame finishes the game and resolves its standings. Only the host
// may end a game; disconnect-driven teardown goes through LeaveGame.
func (c *Coordinator) EndGame(ctx context.Context, gameID, byUserID uint32) error {
	g := c.Get(gameID)
	if g == nil {
		return opError(protocol.CodeSyntaxError, fmt.Sprintf("no such game %d", gameID))
	}
	if byUserID != g.HostID() {
		return opError(protocol.CodeNotGameHost, "")
	}
	c.finalize(ctx, g)
	return nil
}

// finalize drives a game to its terminal state: reconcile standings,
// apply scores when an authoritative report exists, abort otherwise.
func (c *Coordinator) finalize(ctx context.Context, g *Game) {
	now := c.now()

	switch g.State() {
	case StateInitializing, StateWaiting, StateStarting:
		if err := g.abort(now); err != nil {
			return
		}
		slog.Info("game aborted before start", "game", g.ID())
		c.release(g)
		c.publishRemoved(g.ID(), g.RoomID())
		return
	case StateCompleted, StateAborted:
		return
	}

	if g.State() == StateInProgress {
		if err := g.end(now); err != nil {
			return
		}
	}

	reports := g.Reports()
	standings := FindGoodStandings(g.PlayerCount(), reports)
	if standings == nil {
		// No two clients agreed: no authoritative result, no scores.
		_ = g.abort(now)
		slog.Warn("no agreeing standings, game aborted for ranking",
			"game", g.ID(), "reports", len(reports))
	} else {
		if c.scorer != nil && g.Settings().Ranked {
			if err := c.scorer.Apply(ctx, g.ID(), standings); err != nil {
				slog.Error("score application", "game", g.ID(), "err", err)
			}
		}
		_ = g.complete()
		slog.Info("game completed", "game", g.ID(), "players", g.PlayerCount())
	}

	c.release(g)
	c.publishRemoved(g.ID(), g.RoomID())
}

// release frees the user -> game bindings of a finished game. The game
// itself stays in the table until GC so late queries still see it.
func (c *Coordinator) release(g *Game) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for userID, id := range c.inGame {
		if id == g.ID() {
			delete(c.inGame, userID)
		}
	}
}

// Run drives the periodic reaper until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Reap(ctx)
		}
	}
}

// Reap aborts in-progress games whose every player has been silent past
// InactivityTimeout, and garbage-collects terminal games past their
// retention.
func (c *Coordinator) Reap(ctx context.Context) {
	now := c.now()
	cutoff := now.Add(-InactivityTimeout)
	gcCutoff := now.Add(-CompletedRetention)

	c.mu.Lock()
	candidates := make([]*Game, 0, len(c.games))
	for _, g := range c.games {
		candidates = append(candidates, g)
	}
	c.mu.Unlock()

	for _, g := range candidates {
		if g.State() == StateInProgress && g.idleSince(cutoff) {
			if err := g.abort(now); err == nil {
				slog.Info("game aborted for inactivity", "game", g.ID())
				c.release(g)
				c.publishRemoved(g.ID(), g.RoomID())
			}
		}

		if at, done := g.finishedAt(); done && at.Before(gcCutoff) {
			c.mu.Lock()
			delete(c.games, g.ID())
			c.mu.Unlock()
		}
	}
}

// GamesInRoom returns snapshots of the advertisable games of one room.
func (c *Coordinator) GamesInRoom(roomID uint16) []Info {
	c.mu.Lock()
	games := make([]*Game, 0, len(c.games))
	for _, g := range c.games {
		games = append(games, g)
	}
	c.mu.Unlock()

	var out []Info
	for _, g := range games {
		if g.RoomID() != roomID {
			continue
		}
		if st := g.State(); st != StateWaiting && st != StateInProgress {
			continue
		}
		out = append(out, c.snapshot(g))
	}
	return out
}
