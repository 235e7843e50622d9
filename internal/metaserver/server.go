package metaserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/udisondev/mythmeta/internal/auth"
	"github.com/udisondev/mythmeta/internal/config"
	"github.com/udisondev/mythmeta/internal/game"
	"github.com/udisondev/mythmeta/internal/protocol"
	"github.com/udisondev/mythmeta/internal/rank"
	"github.com/udisondev/mythmeta/internal/room"
	"github.com/udisondev/mythmeta/internal/search"
	"github.com/udisondev/mythmeta/internal/store"
)

// reapInterval is how often idle connections are swept.
const reapInterval = time.Minute

// Stores bundles the persistence seams the server consumes.
type Stores struct {
	Users  store.UserStore
	Orders store.OrderStore
	Bans   store.BanList
	Audit  store.AuditLog
}

// Server owns the three listeners and every live connection. One
// instance per process.
type Server struct {
	cfg    config.Metaserver
	stores Stores

	tokens       *auth.TokenRegistry
	sessions     *SessionManager // player port
	roomSessions *SessionManager // room port
	rooms        *room.Registry
	games        *game.Coordinator
	index        *search.Index
	ranker       *rank.Ranker

	pool *BytePool
	now  func() time.Time

	// hostAddr/roomPort are advertised in ROOM_LIST entries.
	hostAddr uint32
	roomPort uint16

	mu       sync.Mutex
	clients  map[uuid.UUID]*Client
	limiters map[string]*rate.Limiter

	listeners []net.Listener
}

// NewServer wires the server. The coordinator's events are subscribed
// to the search index and to the room game-list fan-out here.
func NewServer(cfg config.Metaserver, stores Stores, rooms *room.Registry, games *game.Coordinator, index *search.Index, ranker *rank.Ranker) *Server {
	s := &Server{
		cfg:          cfg,
		stores:       stores,
		tokens:       auth.NewTokenRegistry(),
		sessions:     NewSessionManager(),
		roomSessions: NewSessionManager(),
		rooms:        rooms,
		games:        games,
		index:        index,
		ranker:       ranker,
		pool:         NewBytePool(4096),
		now:          time.Now,
		hostAddr:     auth.IPv4ToUint32(cfg.BindAddress),
		roomPort:     uint16(cfg.RoomPort),
		clients:      make(map[uuid.UUID]*Client),
		limiters:     make(map[string]*rate.Limiter),
	}
	games.Subscribe(index)
	games.Subscribe(&gameFanout{s: s})
	return s
}

// Tokens exposes the token registry for tests and the web commands.
func (s *Server) Tokens() *auth.TokenRegistry { return s.tokens }

// SetClock overrides the time source (tests).
func (s *Server) SetClock(now func() time.Time) { s.now = now }

// Run binds the three listeners and serves until ctx is done. Bind
// failures are fatal.
func (s *Server) Run(ctx context.Context) error {
	type bind struct {
		port  int
		class Class
	}
	binds := []bind{
		{s.cfg.UserdPort, ClassPlayer},
		{s.cfg.RoomPort, ClassRoom},
		{s.cfg.WebPort, ClassWeb},
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, b := range binds {
		b := b
		addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, b.port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("binding %s listener on %s: %w", b.class, addr, err)
		}
		s.listeners = append(s.listeners, ln)
		slog.Info("listener up", "class", b.class.String(), "addr", addr)

		g.Go(func() error {
			return s.acceptLoop(ctx, ln, b.class)
		})
	}

	g.Go(func() error {
		return s.reapLoop(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		s.closeListeners()
		s.closeAllClients()
		return nil
	})

	return g.Wait()
}

func (s *Server) closeListeners() {
	for _, ln := range s.listeners {
		_ = ln.Close()
	}
}

func (s *Server) closeAllClients() {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		c.CloseAsync()
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, class Class) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Warn("accept failed", "class", class.String(), "error", err)
			continue
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetKeepAlive(true)
			_ = tc.SetKeepAlivePeriod(time.Minute)
		}
		go s.handleConn(ctx, conn, class)
	}
}

// admitHost runs the host-admission check: loopback and same-/24 as
// the bound address always pass; everyone else goes through the ban
// list and the per-IP rate limiter.
func (s *Server) admitHost(ctx context.Context, ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed != nil && parsed.IsLoopback() {
		return true
	}
	hostIP := auth.IPv4ToUint32(ip)
	if s.hostAddr != 0 && auth.SameSlash24(hostIP, s.hostAddr) {
		return true
	}

	banned, err := s.stores.Bans.IsBanned(ctx, ip, s.now())
	if err != nil {
		slog.Error("ban lookup failed, refusing connection", "ip", ip, "error", err)
		return false
	}
	if banned {
		slog.Info("refused banned host", "ip", ip)
		return false
	}
	return s.limiterFor(ip).Allow()
}

func (s *Server) limiterFor(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[ip]
	if !ok {
		perMinute := s.cfg.ConnectionsPerIP
		if perMinute <= 0 {
			perMinute = 10
		}
		burst := s.cfg.ConnectionRateBurst
		if burst <= 0 {
			burst = perMinute
		}
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
		s.limiters[ip] = lim
	}
	return lim
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn, class Class) {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		_ = conn.Close()
		return
	}
	if !s.admitHost(ctx, host) {
		_ = conn.Close()
		return
	}

	if class == ClassWeb {
		s.handleWebConn(ctx, conn, host)
		return
	}

	c, err := NewClient(conn, class, s.pool)
	if err != nil {
		slog.Warn("rejecting connection", "error", err)
		_ = conn.Close()
		return
	}

	s.mu.Lock()
	s.clients[c.ID()] = c
	s.mu.Unlock()
	slog.Debug("connection accepted", "class", class.String(), "ip", c.IP(), "conn", c.ID())

	go c.Run()
	s.readLoop(ctx, c)
	s.disconnect(ctx, c)
}

// readLoop decodes frames off the socket and dispatches them until a
// transport or protocol error ends the connection.
func (s *Server) readLoop(ctx context.Context, c *Client) {
	buf := make([]byte, readBufferSize)
	idle := c.Class().IdleTimeout()

	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(idle + reapInterval)); err != nil {
			return
		}
		frame, skipped, err := protocol.ReadFrame(c.conn, buf)
		if err != nil {
			if !c.Closed() {
				slog.Debug("connection read ended", "conn", c.ID(), "error", err)
			}
			return
		}
		if skipped > 0 {
			slog.Warn("resynchronized frame stream", "conn", c.ID(), "skipped", skipped)
		}
		c.Touch()

		if err := s.handleFrame(ctx, c, frame); err != nil {
			slog.Warn("protocol violation", "conn", c.ID(), "opcode", protocol.OpName(frame.Type), "error", err)
			sendMessage(c, protocol.CodeSyntaxError)
			return
		}
	}
}

// disconnect tears down all state owned by a dead connection: session
// binding, room membership, game membership.
func (s *Server) disconnect(ctx context.Context, c *Client) {
	c.CloseAsync()

	s.mu.Lock()
	delete(s.clients, c.ID())
	s.mu.Unlock()

	userID := c.UserID()
	switch c.Class() {
	case ClassPlayer:
		s.sessions.Unregister(c)
	case ClassRoom:
		s.roomSessions.Unregister(c)
		if userID != 0 {
			remaining := s.rooms.Leave(userID)
			s.fanOutPlayerDelta(remaining, playerEntry{Verb: PlayerVerbDelete, UserID: userID})
			s.games.LeaveGame(ctx, userID)
		}
	}
	slog.Debug("connection closed", "class", c.Class().String(), "conn", c.ID(), "user", userID)
}

// reapLoop closes connections idle past their class threshold and
// drops expired tokens.
func (s *Server) reapLoop(ctx context.Context) error {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.reapIdle()
			if dropped := s.tokens.CleanExpired(s.now()); dropped > 0 {
				slog.Debug("expired tokens dropped", "count", dropped)
			}
		}
	}
}

func (s *Server) reapIdle() {
	now := s.now()
	s.mu.Lock()
	var idle []*Client
	for _, c := range s.clients {
		if c.IdleSince(now.Add(-c.Class().IdleTimeout())) {
			idle = append(idle, c)
		}
	}
	s.mu.Unlock()

	for _, c := range idle {
		slog.Info("reaping idle connection", "class", c.Class().String(), "conn", c.ID(), "user", c.UserID())
		c.CloseAsync()
	}
}

// fanOutPlayerDelta publishes one player-list row to a member set.
func (s *Server) fanOutPlayerDelta(members []room.Member, e playerEntry) {
	if len(members) == 0 {
		return
	}
	frame := buildPlayerListFrame(e)
	for _, m := range members {
		m.Deliver(protocol.OpPlayerList, frame)
	}
}

// gameFanout forwards coordinator events to the hosting room: game
// rows to the members, game ids to the room's advertisement set.
type gameFanout struct {
	s *Server
}

func (f *gameFanout) GameAdded(info game.Info) {
	r := f.s.rooms.Get(info.RoomID)
	if r == nil {
		return
	}
	r.AddGame(info.ID)
	f.broadcast(r, buildGameListFrame(GameVerbAdd, info))
}

func (f *gameFanout) GameChanged(info game.Info) {
	r := f.s.rooms.Get(info.RoomID)
	if r == nil {
		return
	}
	f.broadcast(r, buildGameListFrame(GameVerbChange, info))
}

func (f *gameFanout) GameRemoved(id uint32, roomID uint16) {
	r := f.s.rooms.Get(roomID)
	if r == nil {
		return
	}
	r.RemoveGame(id)
	f.broadcast(r, buildGameDeleteFrame(id))
}

func (f *gameFanout) broadcast(r *room.Room, frame []byte) {
	for _, m := range r.Members() {
		m.Deliver(protocol.OpGameList, frame)
	}
}

// ChangePassword rehashes under the default scheme, revokes every
// token for the user and closes all their connections.
func (s *Server) ChangePassword(ctx context.Context, login, newPassword string) error {
	u, err := s.stores.Users.GetByLogin(ctx, login)
	if err != nil {
		return fmt.Errorf("loading user %q: %w", login, err)
	}
	if u == nil {
		return fmt.Errorf("no such user %q", login)
	}

	rec, err := auth.HashPassword(newPassword, auth.DefaultScheme)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	u.PasswordScheme = int16(rec.Scheme)
	u.PasswordHash = rec.Hash
	u.PasswordSalt = rec.Salt
	if err := s.stores.Users.Update(ctx, u); err != nil {
		return fmt.Errorf("storing user %q: %w", login, err)
	}

	dropped := s.tokens.InvalidateUser(u.ID)
	s.sessions.CloseAllFor(u.ID)
	s.roomSessions.CloseAllFor(u.ID)
	s.auditEvent(ctx, store.AuditEvent{Kind: "password_change", UserID: u.ID,
		Detail: fmt.Sprintf("%d tokens revoked", dropped)})
	// There is no mailer; the notice exists only as an audit entry and
	// --no-mail suppresses it.
	if !s.cfg.NoMail {
		s.auditEvent(ctx, store.AuditEvent{Kind: "notice", UserID: u.ID,
			Detail: "password change notice"})
	}
	slog.Info("password changed", "user", u.ID, "login", login, "tokens_revoked", dropped)
	return nil
}

func (s *Server) auditEvent(ctx context.Context, ev store.AuditEvent) {
	if s.stores.Audit == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	if err := s.stores.Audit.Record(ctx, ev); err != nil {
		slog.Error("audit record failed", "kind", ev.Kind, "error", err)
	}
}
