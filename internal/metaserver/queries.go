package metaserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/protocol"
	"github.com/udisondev/mythmeta/internal/search"
	"github.com/udisondev/mythmeta/internal/store"
)

// handleSetPlayerData stores the opaque client blob and, when the user
// sits in a room, publishes the change to the other members.
func (s *Server) handleSetPlayerData(ctx context.Context, c *Client, payload []byte) error {
	if len(payload) > model.MaximumPlayerDataLength {
		return fmt.Errorf("player data %d bytes exceeds maximum %d", len(payload), model.MaximumPlayerDataLength)
	}
	data := make([]byte, len(payload))
	copy(data, payload)
	c.SetPlayerData(data)

	if userID := c.UserID(); userID != 0 {
		u, err := s.stores.Users.GetByID(ctx, userID)
		if err != nil || u == nil {
			slog.Error("loading user for player data", "user", userID, "error", err)
		} else {
			u.PlayerData = data
			if err := s.stores.Users.Update(ctx, u); err != nil {
				slog.Error("storing player data", "user", userID, "error", err)
			}
		}

		if r := s.rooms.RoomOf(userID); r != nil {
			frame := buildPlayerListFrame(playerEntryFor(PlayerVerbChange, c, r.Template().ID))
			for _, m := range r.Members() {
				if m.UserID() == userID {
					continue
				}
				m.Deliver(protocol.OpPlayerList, frame)
			}
		}
	}

	// Echo so the client knows what the server kept.
	c.Deliver(protocol.OpSetPlayerDataFromServer, data)
	return nil
}

// handlePlayerSearch answers a name-substring search over the user
// store, capped like game search.
func (s *Server) handlePlayerSearch(ctx context.Context, c *Client, payload []byte) error {
	needle, err := decodePlayerSearch(payload)
	if err != nil {
		return err
	}
	needle = strings.ToLower(needle)

	var rows []playerInfoRow
	err = s.stores.Users.IterateAll(ctx, func(u *model.User) bool {
		if needle != "" &&
			!strings.Contains(strings.ToLower(u.Name), needle) &&
			!strings.Contains(strings.ToLower(u.Login), needle) {
			return true
		}
		rows = append(rows, playerInfoRowFor(u))
		return len(rows) < search.MaxResults
	})
	if err != nil {
		slog.Error("player search failed", "error", err)
		sendMessage(c, protocol.CodeInternalError)
		return nil
	}
	sendPlayerRows(c, protocol.OpPlayerSearchList, rows)
	return nil
}

// handleBuddyQuery answers with the caller's buddy id list.
func (s *Server) handleBuddyQuery(ctx context.Context, c *Client) error {
	u, err := s.loadSessionUser(ctx, c)
	if err != nil || u == nil {
		return nil
	}
	sendBuddyList(c, protocol.OpBuddyList, u.Buddies)
	return nil
}

// handleBuddyUpdate adds or removes one buddy and echoes the new list
// under UPDATE_PLAYER_BUDDY_LIST.
func (s *Server) handleBuddyUpdate(ctx context.Context, c *Client, payload []byte) error {
	up, err := decodeBuddyUpdate(payload)
	if err != nil {
		return err
	}
	u, err := s.loadSessionUser(ctx, c)
	if err != nil || u == nil {
		return nil
	}

	changed := false
	switch up.Verb {
	case buddyVerbAdd:
		if up.BuddyID != u.ID {
			changed = u.AddBuddy(up.BuddyID)
		}
	case buddyVerbRemove:
		changed = u.RemoveBuddy(up.BuddyID)
	}
	if changed {
		if err := s.stores.Users.Update(ctx, u); err != nil {
			slog.Error("storing buddy list", "user", u.ID, "error", err)
			sendMessage(c, protocol.CodeInternalError)
			return nil
		}
	}

	sendBuddyList(c, protocol.OpUpdatePlayerBuddyList, u.Buddies)
	return nil
}

// handleOrderQuery answers with one order's roster and per-member
// score rows.
func (s *Server) handleOrderQuery(ctx context.Context, c *Client, payload []byte) error {
	orderID, err := decodeOrderQuery(payload)
	if err != nil {
		return err
	}
	o, err := s.stores.Orders.GetByID(ctx, orderID)
	if err != nil {
		slog.Error("order lookup failed", "order", orderID, "error", err)
		sendMessage(c, protocol.CodeInternalError)
		return nil
	}
	if o == nil {
		sendMessage(c, protocol.CodeSyntaxError)
		return nil
	}

	members := make([]*model.User, 0, len(o.MemberIDs))
	for _, id := range o.MemberIDs {
		m, err := s.stores.Users.GetByID(ctx, id)
		if err != nil {
			slog.Error("order member lookup failed", "order", orderID, "user", id, "error", err)
			continue
		}
		if m != nil {
			members = append(members, m)
		}
	}
	sendOrderList(c, o, members)
	return nil
}

// handlePlayerInfoQuery answers with one user's public row.
func (s *Server) handlePlayerInfoQuery(ctx context.Context, c *Client, payload []byte) error {
	userID, err := decodePlayerInfoQuery(payload)
	if err != nil {
		return err
	}
	u, err := s.stores.Users.GetByID(ctx, userID)
	if err != nil {
		slog.Error("player info lookup failed", "user", userID, "error", err)
		sendMessage(c, protocol.CodeInternalError)
		return nil
	}
	if u == nil {
		sendMessage(c, protocol.CodeSyntaxError)
		return nil
	}
	sendPlayerRows(c, protocol.OpPlayerInfo, []playerInfoRow{playerInfoRowFor(u)})
	return nil
}

// handleUpdatePlayerInformation moves the caller into (or out of) an
// order and keeps both rosters consistent.
func (s *Server) handleUpdatePlayerInformation(ctx context.Context, c *Client, payload []byte) error {
	orderID, err := decodeUpdatePlayerInformation(payload)
	if err != nil {
		return err
	}
	u, err := s.loadSessionUser(ctx, c)
	if err != nil || u == nil {
		return nil
	}
	if u.OrderID == orderID {
		sendUpdateInfo(c, u)
		return nil
	}

	// Leave the old roster first.
	if u.OrderID != 0 {
		if old, err := s.stores.Orders.GetByID(ctx, u.OrderID); err == nil && old != nil {
			if old.RemoveMember(u.ID) {
				if err := s.stores.Orders.Update(ctx, old); err != nil {
					slog.Error("storing order roster", "order", old.ID, "error", err)
				}
			}
		}
	}

	if orderID != 0 {
		o, err := s.stores.Orders.GetByID(ctx, orderID)
		if err != nil {
			slog.Error("order lookup failed", "order", orderID, "error", err)
			sendMessage(c, protocol.CodeInternalError)
			return nil
		}
		if o == nil {
			sendMessage(c, protocol.CodeSyntaxError)
			return nil
		}
		if o.AddMember(u.ID) {
			if err := s.stores.Orders.Update(ctx, o); err != nil {
				slog.Error("storing order roster", "order", o.ID, "error", err)
				sendMessage(c, protocol.CodeInternalError)
				return nil
			}
		}
	}

	u.OrderID = orderID
	if err := s.stores.Users.Update(ctx, u); err != nil {
		slog.Error("storing user order", "user", u.ID, "error", err)
		sendMessage(c, protocol.CodeInternalError)
		return nil
	}
	s.auditEvent(ctx, store.AuditEvent{Kind: "order_change", UserID: u.ID,
		Detail: fmt.Sprintf("order %d", orderID)})

	c.mu.Lock()
	c.orderID = orderID
	c.mu.Unlock()
	sendUpdateInfo(c, u)
	return nil
}

// loadSessionUser fetches the caller's persistent record. Failures are
// reported to the client; the nil, nil convention carries through.
func (s *Server) loadSessionUser(ctx context.Context, c *Client) (*model.User, error) {
	userID := c.UserID()
	if userID == 0 {
		sendMessage(c, protocol.CodeUserNotLoggedIn)
		return nil, nil
	}
	u, err := s.stores.Users.GetByID(ctx, userID)
	if err != nil {
		slog.Error("loading session user", "user", userID, "error", err)
		sendMessage(c, protocol.CodeInternalError)
		return nil, err
	}
	if u == nil {
		sendMessage(c, protocol.CodeUserNotLoggedIn)
		return nil, nil
	}
	return u, nil
}
