package metaserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/udisondev/mythmeta/internal/game"
	"github.com/udisondev/mythmeta/internal/protocol"
	"github.com/udisondev/mythmeta/internal/protocol/packet"
	"github.com/udisondev/mythmeta/internal/room"
)

// handleRoomLogin authenticates a room-port connection with the bearer
// token issued on the player port. The IP binding means a token only
// works from the host it was minted for.
func (s *Server) handleRoomLogin(ctx context.Context, c *Client, payload []byte) error {
	req, err := decodeRoomLogin(payload)
	if err != nil {
		return err
	}

	userID, ok := s.tokens.Validate(req.Token, c.HostIP(), s.now())
	if !ok || userID == 0 {
		slog.Info("room login with invalid token", "ip", c.IP())
		sendMessage(c, protocol.CodeUserNotLoggedIn)
		c.CloseAsync()
		return nil
	}

	u, err := s.stores.Users.GetByID(ctx, userID)
	if err != nil {
		slog.Error("user lookup failed", "user", userID, "error", err)
		sendMessage(c, protocol.CodeInternalError)
		return nil
	}
	if u == nil || u.IsBanned(s.now()) {
		sendMessage(c, protocol.CodeAccountLocked)
		c.CloseAsync()
		return nil
	}

	if old := s.roomSessions.Register(userID, c); old != nil {
		sendBlammed(old, protocol.CodeAccountAlreadyLoggedIn)
		old.CloseAsync()
	}
	c.bindUser(u, req.Token)
	// Game flags were declared on the player port; carry them over so
	// room admission can check product compatibility.
	if pc := s.sessions.ClientOf(userID); pc != nil {
		c.SetGameFlags(pc.GameFlags())
	}
	if req.Name != "" {
		c.mu.Lock()
		c.name = req.Name
		c.mu.Unlock()
	}

	slog.Info("room login", "user", userID, "client", c.IP())
	sendRoomLoginSuccess(c, userID, s.cfg.RoomMaxMembers)
	sendRoomList(c, s.rooms.Rooms(), s.hostAddr, s.roomPort)
	return nil
}

// handleChangeRoom joins (or switches) the user's room, publishing
// player-list deltas on both sides of the move.
func (s *Server) handleChangeRoom(c *Client, payload []byte) error {
	roomID, err := decodeChangeRoom(payload)
	if err != nil {
		return err
	}

	joined, prior, departed, err := s.rooms.Join(roomID, c, c.Caste(), c.IsAdmin(), c.GameFlags())
	if err != nil {
		var admErr *room.Error
		if errors.As(err, &admErr) {
			sendMessage(c, admErr.Code)
			return nil
		}
		sendMessage(c, protocol.CodeInternalError)
		return nil
	}

	userID := c.UserID()
	s.fanOutPlayerDelta(departed, playerEntry{Verb: PlayerVerbDelete, UserID: userID})
	s.fanOutPlayerDelta(prior, playerEntryFor(PlayerVerbAdd, c, joined.Template().ID))

	// The joiner gets the room's full population and game list.
	s.sendRoomSnapshot(c, joined)
	return nil
}

// sendRoomSnapshot delivers the full player and game lists of a room
// to one member.
func (s *Server) sendRoomSnapshot(c *Client, r *room.Room) {
	members := r.Members()
	entries := make([]playerEntry, 0, len(members))
	for _, m := range members {
		if mc, ok := m.(*Client); ok {
			entries = append(entries, playerEntryFor(PlayerVerbAdd, mc, r.Template().ID))
		}
	}
	sendPlayerList(c, entries)
	sendGameList(c, GameVerbAdd, s.games.GamesInRoom(r.Template().ID))
}

// handleFullUpdate resends everything the client renders: room list,
// room population, advertised games.
func (s *Server) handleFullUpdate(c *Client) error {
	sendRoomList(c, s.rooms.Rooms(), s.hostAddr, s.roomPort)
	if r := s.rooms.RoomOf(c.UserID()); r != nil {
		s.sendRoomSnapshot(c, r)
	}
	return nil
}

// handleRoomBroadcast fans the payload out to the sender's room.
func (s *Server) handleRoomBroadcast(c *Client, payload []byte) error {
	w := packet.Get()
	defer w.Put()
	w.WriteDword(c.UserID())
	w.WriteBytes(payload)

	if _, err := s.rooms.Broadcast(c.UserID(), protocol.OpRoomBroadcast, w.Bytes()); err != nil {
		var admErr *room.Error
		if errors.As(err, &admErr) {
			sendMessage(c, admErr.Code)
			return nil
		}
		return err
	}
	if g := s.games.GameOf(c.UserID()); g != nil {
		g.Touch(c.UserID(), s.now())
	}
	return nil
}

// handleDirectedData delivers a payload to one recipient in the same
// room, prefixed with the sender id.
func (s *Server) handleDirectedData(c *Client, payload []byte) error {
	target, data, err := decodeDirectedData(payload)
	if err != nil {
		return err
	}

	w := packet.Get()
	defer w.Put()
	w.WriteDword(c.UserID())
	w.WriteBytes(data)

	if err := s.rooms.SendTo(c.UserID(), target, protocol.OpDirectedData, w.Bytes()); err != nil {
		var admErr *room.Error
		if errors.As(err, &admErr) {
			sendMessage(c, admErr.Code)
			return nil
		}
		slog.Debug("directed data undeliverable", "from", c.UserID(), "to", target, "error", err)
	}
	return nil
}

// handleCreateGame advertises a new game in the user's current room.
func (s *Server) handleCreateGame(c *Client, payload []byte) error {
	req, err := decodeCreateGame(payload)
	if err != nil {
		return err
	}

	r := s.rooms.RoomOf(c.UserID())
	if r == nil {
		sendMessage(c, protocol.CodePlayerNotInRoom)
		return nil
	}
	if req.Settings.Ranked && !r.Template().Ranked {
		req.Settings.Ranked = false
	}

	if _, err := s.games.CreateGame(c.UserID(), r.Template().ID, req.Settings); err != nil {
		s.sendGameError(c, err)
		return nil
	}
	return nil
}

// handleRemoveGame finalizes the caller's own game.
func (s *Server) handleRemoveGame(ctx context.Context, c *Client) error {
	g := s.games.GameOf(c.UserID())
	if g == nil {
		sendMessage(c, protocol.CodeSyntaxError)
		return nil
	}
	if err := s.games.EndGame(ctx, g.ID(), c.UserID()); err != nil {
		s.sendGameError(c, err)
	}
	return nil
}

func (s *Server) handleStartGame(c *Client) error {
	g := s.games.GameOf(c.UserID())
	if g == nil {
		sendMessage(c, protocol.CodeSyntaxError)
		return nil
	}
	if err := s.games.StartGame(g.ID(), c.UserID()); err != nil {
		s.sendGameError(c, err)
	}
	return nil
}

// handleResetGame ends the current game and re-advertises a fresh one
// with the same settings.
func (s *Server) handleResetGame(ctx context.Context, c *Client) error {
	g := s.games.GameOf(c.UserID())
	if g == nil {
		sendMessage(c, protocol.CodeSyntaxError)
		return nil
	}
	if c.UserID() != g.HostID() {
		sendMessage(c, protocol.CodeNotGameHost)
		return nil
	}
	settings := g.Settings()
	roomID := g.RoomID()

	if err := s.games.EndGame(ctx, g.ID(), c.UserID()); err != nil {
		s.sendGameError(c, err)
		return nil
	}
	if _, err := s.games.CreateGame(c.UserID(), roomID, settings); err != nil {
		s.sendGameError(c, err)
	}
	return nil
}

// handleSetPlayerMode updates the caller's team and readiness in their
// current game.
func (s *Server) handleSetPlayerMode(c *Client, payload []byte) error {
	pm, err := decodePlayerMode(payload)
	if err != nil {
		return err
	}
	g := s.games.GameOf(c.UserID())
	if g == nil {
		sendMessage(c, protocol.CodeSyntaxError)
		return nil
	}
	now := s.now()
	if err := g.SetTeam(c.UserID(), pm.Team, now); err != nil {
		sendMessage(c, protocol.CodeSyntaxError)
		return nil
	}
	if err := g.SetReady(c.UserID(), pm.Ready, now); err != nil {
		sendMessage(c, protocol.CodeSyntaxError)
	}
	return nil
}

// handleGameScore records the caller's standings report.
func (s *Server) handleGameScore(c *Client, payload []byte) error {
	rep, err := decodeGameScore(payload)
	if err != nil {
		return err
	}
	g := s.games.GameOf(c.UserID())
	if g == nil {
		sendMessage(c, protocol.CodeSyntaxError)
		return nil
	}
	if err := s.games.SubmitStandings(g.ID(), c.UserID(), rep); err != nil {
		s.sendGameError(c, err)
	}
	return nil
}

// handleGamePlayerList answers with the caller's game roster as a
// player list.
func (s *Server) handleGamePlayerList(c *Client) error {
	g := s.games.GameOf(c.UserID())
	if g == nil {
		sendMessage(c, protocol.CodeSyntaxError)
		return nil
	}
	players := g.Players()
	entries := make([]playerEntry, 0, len(players))
	for _, p := range players {
		e := playerEntry{Verb: PlayerVerbAdd, UserID: p.UserID, RoomID: g.RoomID()}
		if mc := s.roomSessions.ClientOf(p.UserID); mc != nil {
			e = playerEntryFor(PlayerVerbAdd, mc, g.RoomID())
		}
		entries = append(entries, e)
	}
	sendPlayerList(c, entries)
	return nil
}

// handleGameSearch answers a search query from the shared index.
func (s *Server) handleGameSearch(c *Client, payload []byte) error {
	q, err := decodeGameSearch(payload)
	if err != nil {
		return err
	}
	sendGameList(c, GameVerbAdd, s.index.Search(q))
	return nil
}

func (s *Server) sendGameError(c *Client, err error) {
	var opErr *game.Error
	if errors.As(err, &opErr) {
		sendMessage(c, opErr.Code)
		return
	}
	slog.Error("game operation failed", "user", c.UserID(), "error", err)
	sendMessage(c, protocol.CodeInternalError)
}
