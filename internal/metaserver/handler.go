package metaserver

import (
	"context"
	"fmt"

	"github.com/udisondev/mythmeta/internal/protocol"
)

// handleFrame dispatches one inbound frame. A returned error is a
// protocol violation: the caller replies SYNTAX_ERROR and terminates
// the connection. Soft failures (auth, admission, state) are reported
// by the handlers themselves and return nil.
func (s *Server) handleFrame(ctx context.Context, c *Client, f protocol.Frame) error {
	if !protocol.IsClientOpcode(f.Type) {
		return fmt.Errorf("server-direction opcode %s from client", protocol.OpName(f.Type))
	}

	switch f.Type {
	case protocol.OpKeepalive:
		return nil
	case protocol.OpLogout:
		// The read loop tears everything down once we close.
		sendMessage(c, protocol.CodeLogoutSuccessful)
		c.CloseAsync()
		return nil
	}

	switch c.Class() {
	case ClassPlayer:
		return s.handlePlayerFrame(ctx, c, f)
	case ClassRoom:
		return s.handleRoomFrame(ctx, c, f)
	default:
		return fmt.Errorf("frames on %s connection", c.Class())
	}
}

func (s *Server) handlePlayerFrame(ctx context.Context, c *Client, f protocol.Frame) error {
	switch f.Type {
	case protocol.OpLogin:
		return s.handleLogin(ctx, c, f.Payload)
	case protocol.OpPasswordResponse:
		return s.handlePasswordResponse(ctx, c, f.Payload)
	case protocol.OpVersionControl:
		return s.handleVersionControl(c, f.Payload)
	}

	// Everything below needs a completed login (guests included).
	if !c.Authed() {
		sendMessage(c, protocol.CodeUserNotLoggedIn)
		return nil
	}

	switch f.Type {
	case protocol.OpRequestFullUpdate:
		sendRoomList(c, s.rooms.Rooms(), s.hostAddr, s.roomPort)
		return nil
	case protocol.OpSetPlayerData:
		return s.handleSetPlayerData(ctx, c, f.Payload)
	case protocol.OpPlayerSearchQuery:
		return s.handlePlayerSearch(ctx, c, f.Payload)
	case protocol.OpBuddyQuery:
		return s.handleBuddyQuery(ctx, c)
	case protocol.OpUpdateBuddy:
		return s.handleBuddyUpdate(ctx, c, f.Payload)
	case protocol.OpOrderQuery:
		return s.handleOrderQuery(ctx, c, f.Payload)
	case protocol.OpPlayerInfoQuery:
		return s.handlePlayerInfoQuery(ctx, c, f.Payload)
	case protocol.OpUpdatePlayerInformation:
		return s.handleUpdatePlayerInformation(ctx, c, f.Payload)
	default:
		return fmt.Errorf("opcode %s not valid on the player port", protocol.OpName(f.Type))
	}
}

func (s *Server) handleRoomFrame(ctx context.Context, c *Client, f protocol.Frame) error {
	if f.Type == protocol.OpRoomLogin {
		return s.handleRoomLogin(ctx, c, f.Payload)
	}

	if c.UserID() == 0 {
		sendMessage(c, protocol.CodeUserNotLoggedIn)
		return nil
	}

	switch f.Type {
	case protocol.OpChangeRoom:
		return s.handleChangeRoom(c, f.Payload)
	case protocol.OpRoomBroadcast:
		return s.handleRoomBroadcast(c, f.Payload)
	case protocol.OpDirectedData:
		return s.handleDirectedData(c, f.Payload)
	case protocol.OpRequestFullUpdate:
		return s.handleFullUpdate(c)
	case protocol.OpSetPlayerData:
		return s.handleSetPlayerData(ctx, c, f.Payload)
	case protocol.OpCreateGame:
		return s.handleCreateGame(c, f.Payload)
	case protocol.OpRemoveGame:
		return s.handleRemoveGame(ctx, c)
	case protocol.OpStartGame:
		return s.handleStartGame(c)
	case protocol.OpResetGame:
		return s.handleResetGame(ctx, c)
	case protocol.OpSetPlayerMode:
		return s.handleSetPlayerMode(c, f.Payload)
	case protocol.OpGameScore:
		return s.handleGameScore(c, f.Payload)
	case protocol.OpGamePlayerList:
		return s.handleGamePlayerList(c)
	case protocol.OpGameSearchQuery:
		return s.handleGameSearch(c, f.Payload)
	case protocol.OpPlayerSearchQuery:
		return s.handlePlayerSearch(ctx, c, f.Payload)
	case protocol.OpBuddyQuery:
		return s.handleBuddyQuery(ctx, c)
	case protocol.OpUpdateBuddy:
		return s.handleBuddyUpdate(ctx, c, f.Payload)
	case protocol.OpOrderQuery:
		return s.handleOrderQuery(ctx, c, f.Payload)
	case protocol.OpPlayerInfoQuery:
		return s.handlePlayerInfoQuery(ctx, c, f.Payload)
	default:
		return fmt.Errorf("opcode %s not valid on the room port", protocol.OpName(f.Type))
	}
}
