package metaserver

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/udisondev/mythmeta/internal/auth"
	"github.com/udisondev/mythmeta/internal/protocol"
	"github.com/udisondev/mythmeta/internal/room"
	"github.com/udisondev/mythmeta/internal/store"
)

// The web port speaks a line-oriented admin protocol instead of the
// binary frame format: one command per line, one "+OK ..." or
// "-ERR ..." reply per command. The first command must be a successful
// "auth <login> <password>" from an admin account.
//
// Commands after auth:
//
//	message <text>      broadcast SERVER_MESSAGE to every room member
//	kick <login>        close all of a user's connections
//	ban <ip> [hours]    ban a host (0 or absent hours = permanent)
//	unban <ip>
//	passwd <login> <new-password>
//	reload-rooms        re-read the room-list file
//	recompute-ranks     run the caste batch now
//	stats               one-line population snapshot
//	quit
func (s *Server) handleWebConn(ctx context.Context, conn net.Conn, ip string) {
	defer conn.Close()
	slog.Debug("web connection accepted", "ip", ip)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024), 4096)
	authed := false
	var adminID uint32

	for {
		// The 2-minute idle threshold is enforced by the read deadline.
		if err := conn.SetReadDeadline(time.Now().Add(ClassWeb.IdleTimeout())); err != nil {
			return
		}
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])

		if cmd == "quit" {
			fmt.Fprintln(conn, "+OK bye")
			return
		}
		if !authed {
			if cmd != "auth" {
				fmt.Fprintln(conn, "-ERR authenticate first")
				continue
			}
			id, err := s.webAuth(ctx, fields[1:], ip)
			if err != nil {
				fmt.Fprintf(conn, "-ERR %v\n", err)
				return
			}
			authed = true
			adminID = id
			fmt.Fprintln(conn, "+OK authenticated")
			continue
		}

		if reply, err := s.webCommand(ctx, adminID, cmd, fields[1:]); err != nil {
			fmt.Fprintf(conn, "-ERR %v\n", err)
		} else {
			fmt.Fprintf(conn, "+OK %s\n", reply)
		}
	}
}

// webAuth validates admin credentials. Every failure closes the
// connection; the web port gets no retries.
func (s *Server) webAuth(ctx context.Context, args []string, ip string) (uint32, error) {
	if len(args) != 2 {
		return 0, fmt.Errorf("usage: auth <login> <password>")
	}
	u, err := s.stores.Users.GetByLogin(ctx, args[0])
	if err != nil {
		return 0, fmt.Errorf("internal error")
	}
	if u == nil || !u.IsAdmin() || u.IsBanned(s.now()) {
		s.auditEvent(ctx, store.AuditEvent{Kind: "login_failed", IP: ip,
			Detail: fmt.Sprintf("web auth %q", args[0])})
		return 0, fmt.Errorf("bad credentials")
	}
	ok, err := auth.VerifyPassword(args[1], auth.PasswordRecord{
		Scheme: auth.Scheme(u.PasswordScheme),
		Hash:   u.PasswordHash,
		Salt:   u.PasswordSalt,
	})
	if err != nil || !ok {
		s.auditEvent(ctx, store.AuditEvent{Kind: "login_failed", UserID: u.ID, IP: ip,
			Detail: "web auth"})
		return 0, fmt.Errorf("bad credentials")
	}
	s.auditEvent(ctx, store.AuditEvent{Kind: "login", UserID: u.ID, IP: ip, Detail: "web"})
	slog.Info("web admin authenticated", "user", u.ID, "login", u.Login, "client", ip)
	return u.ID, nil
}

func (s *Server) webCommand(ctx context.Context, adminID uint32, cmd string, args []string) (string, error) {
	switch cmd {
	case "message":
		if len(args) == 0 {
			return "", fmt.Errorf("usage: message <text>")
		}
		return s.webGlobalMessage(ctx, adminID, strings.Join(args, " "))

	case "kick":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: kick <login>")
		}
		return s.webKick(ctx, adminID, args[0])

	case "ban":
		if len(args) < 1 || len(args) > 2 {
			return "", fmt.Errorf("usage: ban <ip> [hours]")
		}
		return s.webBan(ctx, adminID, args)

	case "unban":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: unban <ip>")
		}
		if err := s.stores.Bans.Unban(ctx, args[0]); err != nil {
			return "", fmt.Errorf("unban: %w", err)
		}
		return fmt.Sprintf("unbanned %s", args[0]), nil

	case "passwd":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: passwd <login> <new-password>")
		}
		if err := s.ChangePassword(ctx, args[0], args[1]); err != nil {
			return "", err
		}
		return fmt.Sprintf("password changed for %s", args[0]), nil

	case "reload-rooms":
		return s.webReloadRooms()

	case "recompute-ranks":
		if s.ranker == nil {
			return "", fmt.Errorf("ranking disabled")
		}
		if err := s.ranker.Recompute(ctx); err != nil {
			return "", fmt.Errorf("recompute: %w", err)
		}
		return "ranks recomputed", nil

	case "stats":
		users, err := s.stores.Users.Count(ctx)
		if err != nil {
			return "", fmt.Errorf("stats: %w", err)
		}
		return fmt.Sprintf("users=%d sessions=%d room_sessions=%d tokens=%d",
			users, s.sessions.Count(), s.roomSessions.Count(), s.tokens.Count()), nil

	default:
		return "", fmt.Errorf("unknown command %q", cmd)
	}
}

func (s *Server) webGlobalMessage(ctx context.Context, adminID uint32, text string) (string, error) {
	frame := buildServerMessageFrame(protocol.CodeLoginSuccessful, text)
	sent := s.rooms.BroadcastGlobal(protocol.OpServerMessage, frame)
	s.auditEvent(ctx, store.AuditEvent{Kind: "admin_message", UserID: adminID, Detail: text})
	return fmt.Sprintf("delivered to %d members", sent), nil
}

func (s *Server) webKick(ctx context.Context, adminID uint32, login string) (string, error) {
	u, err := s.stores.Users.GetByLogin(ctx, login)
	if err != nil {
		return "", fmt.Errorf("lookup: %w", err)
	}
	if u == nil {
		return "", fmt.Errorf("no such user %q", login)
	}
	s.tokens.InvalidateUser(u.ID)
	s.sessions.CloseAllFor(u.ID)
	s.roomSessions.CloseAllFor(u.ID)
	s.auditEvent(ctx, store.AuditEvent{Kind: "kick", UserID: u.ID,
		Detail: fmt.Sprintf("by admin %d", adminID)})
	return fmt.Sprintf("kicked %s", login), nil
}

func (s *Server) webBan(ctx context.Context, adminID uint32, args []string) (string, error) {
	ip := args[0]
	var until time.Time
	if len(args) == 2 {
		hours, err := strconv.Atoi(args[1])
		if err != nil || hours < 0 {
			return "", fmt.Errorf("invalid hours %q", args[1])
		}
		if hours > 0 {
			until = s.now().Add(time.Duration(hours) * time.Hour)
		}
	}
	if err := s.stores.Bans.Ban(ctx, ip, until); err != nil {
		return "", fmt.Errorf("ban: %w", err)
	}
	s.auditEvent(ctx, store.AuditEvent{Kind: "ban", UserID: adminID, IP: ip,
		Detail: fmt.Sprintf("until %v", until)})
	return fmt.Sprintf("banned %s", ip), nil
}

// webReloadRooms re-reads the room-list file and swaps the registry.
// Members of removed rooms are dropped back to the lobby.
func (s *Server) webReloadRooms() (string, error) {
	templates, err := room.LoadRoomList(s.cfg.RoomListPath)
	if err != nil {
		return "", fmt.Errorf("reload rooms: %w", err)
	}
	dropped := s.rooms.Reload(templates)
	for _, m := range dropped {
		if c, ok := m.(*Client); ok {
			sendMessage(c, protocol.CodePlayerNotInRoom)
		}
	}
	slog.Info("room list reloaded", "rooms", len(templates), "dropped_members", len(dropped))
	return fmt.Sprintf("%d rooms, %d members dropped", len(templates), len(dropped)), nil
}
