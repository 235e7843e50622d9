package room

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/protocol"
)

// DefaultMaxMembers caps a single room's membership.
const DefaultMaxMembers = 64

// Member is the room registry's view of a connected player. Implemented
// by metaserver.Client. Deliver must never block: a slow member is the
// transport layer's problem, not the room's.
type Member interface {
	UserID() uint32
	Deliver(typ uint16, payload []byte) bool
}

// Error is a room admission refusal carrying the wire code sent back to
// the client. Admission refusals never close the connection.
type Error struct {
	Code protocol.MessageCode
}

func (e *Error) Error() string {
	return e.Code.Text()
}

func admissionError(code protocol.MessageCode) *Error {
	return &Error{Code: code}
}

// Room is one live lobby slot: the static template plus the dynamic
// member and hosted-game sets. One mutex per room; handlers copy what
// they need under the lock and fan out after releasing it.
type Room struct {
	tmpl       Template
	maxMembers int

	mu      sync.Mutex
	members map[uint32]Member
	games   map[uint32]struct{}
}

// Template returns the static room definition.
func (r *Room) Template() Template {
	return r.tmpl
}

// MemberCount returns the current population.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Members returns a snapshot of the current member set.
func (r *Room) Members() []Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	return out
}

// MemberIDs returns a snapshot of the current member user ids.
func (r *Room) MemberIDs() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint32, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	return out
}

// AddGame records a hosted game advertised in this room.
func (r *Room) AddGame(gameID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[gameID] = struct{}{}
}

// RemoveGame drops a hosted game.
func (r *Room) RemoveGame(gameID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, gameID)
}

// GameIDs returns a snapshot of the games advertised in this room.
func (r *Room) GameIDs() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint32, 0, len(r.games))
	for id := range r.games {
		out = append(out, id)
	}
	return out
}

// Registry owns the fixed set of rooms and the user -> room index. Rooms
// come exclusively from the room-list file.
type Registry struct {
	mu     sync.Mutex
	rooms  map[uint16]*Room
	inRoom map[uint32]uint16 // user id -> room id
	order  []uint16          // room ids in file order, for ROOM_LIST
}

// NewRegistry builds the registry from parsed templates.
func NewRegistry(templates []Template, maxMembers int) *Registry {
	if maxMembers <= 0 {
		maxMembers = DefaultMaxMembers
	}
	reg := &Registry{
		rooms:  make(map[uint16]*Room, len(templates)),
		inRoom: make(map[uint32]uint16),
	}
	for _, tmpl := range templates {
		reg.rooms[tmpl.ID] = &Room{
			tmpl:       tmpl,
			maxMembers: maxMembers,
			members:    make(map[uint32]Member),
			games:      make(map[uint32]struct{}),
		}
		reg.order = append(reg.order, tmpl.ID)
	}
	return reg
}

// Reload swaps in a fresh template set (admin op). Members of rooms
// that survive the reload stay put; members of removed rooms are
// dropped and reported to the caller for cleanup.
func (reg *Registry) Reload(templates []Template) (dropped []Member) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	fresh := make(map[uint16]*Room, len(templates))
	var order []uint16
	for _, tmpl := range templates {
		if old, ok := reg.rooms[tmpl.ID]; ok {
			old.mu.Lock()
			old.tmpl = tmpl
			old.mu.Unlock()
			fresh[tmpl.ID] = old
		} else {
			fresh[tmpl.ID] = &Room{
				tmpl:       tmpl,
				maxMembers: DefaultMaxMembers,
				members:    make(map[uint32]Member),
				games:      make(map[uint32]struct{}),
			}
		}
		order = append(order, tmpl.ID)
	}

	for id, old := range reg.rooms {
		if _, ok := fresh[id]; ok {
			continue
		}
		old.mu.Lock()
		for userID, m := range old.members {
			dropped = append(dropped, m)
			delete(reg.inRoom, userID)
		}
		old.members = make(map[uint32]Member)
		old.mu.Unlock()
	}

	reg.rooms = fresh
	reg.order = order
	return dropped
}

// Get returns the room with the given id, or nil.
func (reg *Registry) Get(id uint16) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rooms[id]
}

// Rooms returns the rooms in room-list file order.
func (reg *Registry) Rooms() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Room, 0, len(reg.order))
	for _, id := range reg.order {
		out = append(out, reg.rooms[id])
	}
	return out
}

// RoomOf returns the room the user currently occupies, or nil.
func (reg *Registry) RoomOf(userID uint32) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	id, ok := reg.inRoom[userID]
	if !ok {
		return nil
	}
	return reg.rooms[id]
}

// Join admits a user into a room, implicitly leaving any previous room
// first. caste and clientGames describe the joining user; admins bypass
// the caste gate. On success the remaining members of the departed room
// (if any) and the new room's prior members are returned so the caller
// can publish player-list deltas after releasing all locks.
func (reg *Registry) Join(roomID uint16, m Member, caste model.Caste, admin bool, clientGames model.GameFlags) (joined *Room, prior []Member, departed []Member, err error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	target, ok := reg.rooms[roomID]
	if !ok {
		return nil, nil, nil, admissionError(protocol.CodePlayerNotInRoom)
	}

	tmpl := target.tmpl
	if !admin && (caste < tmpl.MinCaste || caste > tmpl.MaxCaste) {
		return nil, nil, nil, admissionError(protocol.CodeCasteNotAllowed)
	}
	if !tmpl.GameFlags.Contains(clientGames) || clientGames == 0 {
		return nil, nil, nil, admissionError(protocol.CodeUnknownGameType)
	}

	userID := m.UserID()

	// Implicit leave before join.
	if prevID, ok := reg.inRoom[userID]; ok {
		if prevID == roomID {
			return nil, nil, nil, admissionError(protocol.CodeAlreadyInRoom)
		}
		departed = reg.leaveLocked(userID)
	}

	target.mu.Lock()
	if len(target.members) >= target.maxMembers {
		target.mu.Unlock()
		return nil, nil, nil, admissionError(protocol.CodeRoomFull)
	}
	prior = make([]Member, 0, len(target.members))
	for _, existing := range target.members {
		prior = append(prior, existing)
	}
	target.members[userID] = m
	target.mu.Unlock()

	reg.inRoom[userID] = roomID
	slog.Debug("user joined room", "user", userID, "room", roomID)
	return target, prior, departed, nil
}

// Leave removes the user from their current room and returns the
// remaining members for the departure delta. No-op when the user is
// not in a room.
func (reg *Registry) Leave(userID uint32) []Member {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.leaveLocked(userID)
}

func (reg *Registry) leaveLocked(userID uint32) []Member {
	id, ok := reg.inRoom[userID]
	if !ok {
		return nil
	}
	delete(reg.inRoom, userID)

	r := reg.rooms[id]
	if r == nil {
		return nil
	}
	r.mu.Lock()
	delete(r.members, userID)
	remaining := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		remaining = append(remaining, m)
	}
	r.mu.Unlock()

	slog.Debug("user left room", "user", userID, "room", id)
	return remaining
}

// Broadcast fans a frame out to every member of the sender's room
// except the sender. Returns how many members it reached; an error
// means the sender is not in a room.
func (reg *Registry) Broadcast(from uint32, typ uint16, payload []byte) (int, error) {
	r := reg.RoomOf(from)
	if r == nil {
		return 0, admissionError(protocol.CodePlayerNotInRoom)
	}

	sent := 0
	for _, m := range r.Members() {
		if m.UserID() == from {
			continue
		}
		if m.Deliver(typ, payload) {
			sent++
		}
	}
	return sent, nil
}

// SendTo delivers a frame to one named recipient iff both users occupy
// the same room.
func (reg *Registry) SendTo(from, to uint32, typ uint16, payload []byte) error {
	r := reg.RoomOf(from)
	if r == nil {
		return admissionError(protocol.CodePlayerNotInRoom)
	}

	r.mu.Lock()
	recipient, ok := r.members[to]
	r.mu.Unlock()
	if !ok {
		return admissionError(protocol.CodePlayerNotInRoom)
	}

	if !recipient.Deliver(typ, payload) {
		return fmt.Errorf("recipient %d egress full", to)
	}
	return nil
}

// BroadcastGlobal fans a frame out to every member of every room.
// Admin-only at the call sites.
func (reg *Registry) BroadcastGlobal(typ uint16, payload []byte) int {
	sent := 0
	for _, r := range reg.Rooms() {
		for _, m := range r.Members() {
			if m.Deliver(typ, payload) {
				sent++
			}
		}
	}
	return sent
}
