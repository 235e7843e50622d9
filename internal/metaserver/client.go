// Package metaserver runs the TCP front of the service: three listeners
// (player, room, web), per-connection reader/writer goroutines, the
// session registry and the opcode handlers that glue the transport to
// auth, rooms, games, search and ranking.
package metaserver

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/mythmeta/internal/auth"
	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/protocol"
)

// Class tells which listener accepted a connection. It selects the
// opcode table and the idle-reap threshold.
type Class int

const (
	ClassPlayer Class = iota
	ClassRoom
	ClassWeb
)

func (c Class) String() string {
	switch c {
	case ClassPlayer:
		return "player"
	case ClassRoom:
		return "room"
	case ClassWeb:
		return "web"
	default:
		return "unknown"
	}
}

// IdleTimeout returns how long a connection of this class may stay
// silent before the reaper closes it.
func (c Class) IdleTimeout() time.Duration {
	switch c {
	case ClassPlayer:
		return 10 * time.Minute
	case ClassRoom:
		return 5 * time.Minute
	default:
		return 2 * time.Minute
	}
}

// Write queue / timeout constants.
const (
	defaultSendQueueSize = 256
	defaultWriteTimeout  = 5 * time.Second

	// readBufferSize fits the largest legal frame payload.
	readBufferSize = protocol.MaxFrameSize
)

// loginState tracks the two-step login exchange on a player connection.
type loginState struct {
	login     string
	salt      []byte
	scheme    auth.Scheme
	userKnown bool // false fakes the challenge so missing users are indistinguishable
	attempts  int
}

// Client is one accepted connection. The reader goroutine lives in the
// server; writes go through sendCh and a dedicated writePump so every
// subsystem can deliver frames without blocking.
type Client struct {
	id     uuid.UUID
	class  Class
	conn   net.Conn
	ip     string
	hostIP uint32

	lastActivity atomic.Int64 // unix nanos

	// mu protects the session fields (rare mutations).
	mu         sync.Mutex
	authed     bool
	userID     uint32
	login      string
	name       string
	admin      bool
	caste      model.Caste
	orderID    uint32
	rank       uint32
	gameFlags  model.GameFlags
	build      uint32
	playerData []byte
	token      auth.Token
	pending    *loginState

	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once

	writePool    *BytePool
	writeTimeout time.Duration
}

// NewClient wraps an accepted connection. The caller starts the write
// pump with Run.
func NewClient(conn net.Conn, class Class, writePool *BytePool) (*Client, error) {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return nil, fmt.Errorf("splitting host port: %w", err)
	}

	c := &Client{
		id:           uuid.New(),
		class:        class,
		conn:         conn,
		ip:           host,
		hostIP:       auth.IPv4ToUint32(host),
		sendCh:       make(chan []byte, defaultSendQueueSize),
		closeCh:      make(chan struct{}),
		writePool:    writePool,
		writeTimeout: defaultWriteTimeout,
	}
	c.Touch()
	return c, nil
}

// ID returns the connection id.
func (c *Client) ID() uuid.UUID { return c.id }

// Class returns the listener class that accepted this connection.
func (c *Client) Class() Class { return c.class }

// IP returns the client's remote IP address.
func (c *Client) IP() string { return c.ip }

// HostIP returns the remote address as the 32-bit integer used in
// tokens and the /24 admission heuristic.
func (c *Client) HostIP() uint32 { return c.hostIP }

// Touch records inbound activity for the idle reaper.
func (c *Client) Touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// IdleSince reports whether the connection has been silent since the
// cutoff.
func (c *Client) IdleSince(cutoff time.Time) bool {
	return time.Unix(0, c.lastActivity.Load()).Before(cutoff)
}

// UserID returns the authenticated user id, 0 before login (and for
// guest sessions).
func (c *Client) UserID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Authed reports whether login completed, guests included.
func (c *Client) Authed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authed
}

// Login returns the authenticated login name.
func (c *Client) Login() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login
}

// IsAdmin reports whether the session belongs to an admin account.
func (c *Client) IsAdmin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.admin
}

// Caste returns the session user's caste.
func (c *Client) Caste() model.Caste {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caste
}

// GameFlags returns the game products the client declared at login.
func (c *Client) GameFlags() model.GameFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameFlags
}

// SetGameFlags records the client's declared game products.
func (c *Client) SetGameFlags(flags model.GameFlags) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gameFlags = flags
}

// Token returns the bearer token minted for this session.
func (c *Client) Token() auth.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// bindUser attaches an authenticated user to the connection.
func (c *Client) bindUser(u *model.User, token auth.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authed = true
	c.userID = u.ID
	c.login = u.Login
	c.name = u.Name
	c.admin = u.IsAdmin()
	c.caste = u.DisplayCaste()
	c.orderID = u.OrderID
	if u.Ranked.NumericalRank > 0 {
		c.rank = uint32(u.Ranked.NumericalRank)
	}
	c.playerData = u.PlayerData
	c.token = token
	c.pending = nil
}

// PlayerData returns the opaque client blob echoed in player lists.
func (c *Client) PlayerData() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerData
}

// SetPlayerData replaces the opaque blob. Oversized blobs are the
// handler's problem; this just stores.
func (c *Client) SetPlayerData(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerData = data
}

// Run drives the write pump until the connection closes. Blocks; the
// server runs it on its own goroutine.
func (c *Client) Run() {
	c.writePump()
	_ = c.conn.Close()
}

// writePump is the dedicated writer goroutine for this connection.
// Reads framed packets from sendCh and writes them to conn.
// Uses net.Buffers (writev syscall) for batching and pool.Put for buffer return.
func (c *Client) writePump() {
	bufs := make(net.Buffers, 0, 64)
	poolBufs := make([][]byte, 0, 64)

	defer func() {
		for {
			select {
			case pkt := <-c.sendCh:
				c.writePool.Put(pkt)
			default:
				return
			}
		}
	}()

	for {
		select {
		case pkt, ok := <-c.sendCh:
			if !ok {
				return
			}

			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				slog.Warn("set write deadline failed", "client", c.ip, "error", err)
				c.writePool.Put(pkt)
				return
			}

			// Batching: drain all queued packets before the syscall.
			queued := len(c.sendCh)
			if queued == 0 {
				_, err := c.conn.Write(pkt)
				c.writePool.Put(pkt)
				if err != nil {
					slog.Warn("write failed", "client", c.ip, "error", err)
					return
				}
				continue
			}

			bufs = bufs[:0]
			poolBufs = poolBufs[:0]
			bufs = append(bufs, pkt)
			poolBufs = append(poolBufs, pkt)
			for i := 0; i < queued; i++ {
				p := <-c.sendCh
				bufs = append(bufs, p)
				poolBufs = append(poolBufs, p)
			}

			_, err := bufs.WriteTo(c.conn)

			// Buffers go back to the pool even on error.
			for _, b := range poolBufs {
				c.writePool.Put(b)
			}
			if err != nil {
				slog.Warn("batch write failed", "client", c.ip, "error", err)
				return
			}

		case <-c.closeCh:
			return
		}
	}
}

// send queues a framed packet for async delivery. Non-blocking: a full
// queue means a slow client, which gets disconnected.
// OWNERSHIP: takes ownership of pkt (pool buffer); writePump returns it.
func (c *Client) send(pkt []byte) bool {
	select {
	case c.sendCh <- pkt:
		return true
	case <-c.closeCh:
		c.writePool.Put(pkt)
		return false
	default:
		c.writePool.Put(pkt)
		slog.Warn("send queue full, disconnecting slow client", "client", c.ip)
		c.CloseAsync()
		return false
	}
}

// Deliver frames the payload and queues it. Implements room.Member;
// never blocks.
func (c *Client) Deliver(typ uint16, payload []byte) bool {
	buf := c.writePool.GetEmpty(protocol.HeaderSize + len(payload))
	buf = protocol.AppendFrame(buf, typ, payload)
	return c.send(buf)
}

// CloseAsync signals the write pump to stop. Safe to call repeatedly
// and from any goroutine; the reader unblocks via the closed socket.
func (c *Client) CloseAsync() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		// Closing the socket kicks the reader out of its blocking read.
		_ = c.conn.Close()
	})
}

// Closed reports whether the connection has been shut down.
func (c *Client) Closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}
