package room

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/protocol"
)

type fakeMember struct {
	id uint32

	mu       sync.Mutex
	received []uint16
}

func (f *fakeMember) UserID() uint32 { return f.id }

func (f *fakeMember) Deliver(typ uint16, payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, typ)
	return true
}

func (f *fakeMember) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func testTemplates() []Template {
	return []Template{
		{ID: 1, GameFlags: model.GameMyth2, Ranked: true, MinCaste: model.CasteDagger, MaxCaste: model.CasteComet},
		{ID: 2, GameFlags: model.GameMyth2 | model.GameMyth3, MinCaste: model.CasteSwordAndDagger, MaxCaste: model.CasteShieldCrossedAxes},
	}
}

func TestRegistry_JoinAndLeave(t *testing.T) {
	reg := NewRegistry(testTemplates(), 0)

	alice := &fakeMember{id: 1}
	joined, prior, departed, err := reg.Join(1, alice, model.CasteDagger, false, model.GameMyth2)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), joined.Template().ID)
	assert.Empty(t, prior)
	assert.Empty(t, departed)
	assert.Equal(t, 1, joined.MemberCount())
	assert.Same(t, joined, reg.RoomOf(1))

	remaining := reg.Leave(1)
	assert.Empty(t, remaining)
	assert.Nil(t, reg.RoomOf(1))
	assert.Equal(t, 0, joined.MemberCount())
}

func TestRegistry_JoinCasteGate(t *testing.T) {
	// Room 2 admits castes 3..8.
	reg := NewRegistry(testTemplates(), 0)
	u := &fakeMember{id: 5}

	_, _, _, err := reg.Join(2, u, model.Caste(2), false, model.GameMyth2)
	var admErr *Error
	require.True(t, errors.As(err, &admErr))
	assert.Equal(t, protocol.CodeCasteNotAllowed, admErr.Code)

	// Bumped to caste 5 the same user is admitted.
	_, _, _, err = reg.Join(2, u, model.Caste(5), false, model.GameMyth2)
	assert.NoError(t, err)

	// Admins bypass the caste gate.
	admin := &fakeMember{id: 6}
	_, _, _, err = reg.Join(2, admin, model.Caste(0), true, model.GameMyth2)
	assert.NoError(t, err)
}

func TestRegistry_JoinGameFlagGate(t *testing.T) {
	reg := NewRegistry(testTemplates(), 0)
	u := &fakeMember{id: 9}

	// Room 1 supports only MYTH2; a MARATHON client is refused.
	_, _, _, err := reg.Join(1, u, model.CasteShield, false, model.GameMarathon)
	var admErr *Error
	require.True(t, errors.As(err, &admErr))
	assert.Equal(t, protocol.CodeUnknownGameType, admErr.Code)
}

func TestRegistry_JoinFullRoom(t *testing.T) {
	reg := NewRegistry(testTemplates(), 2)
	for i := uint32(1); i <= 2; i++ {
		_, _, _, err := reg.Join(1, &fakeMember{id: i}, model.CasteShield, false, model.GameMyth2)
		require.NoError(t, err)
	}

	_, _, _, err := reg.Join(1, &fakeMember{id: 3}, model.CasteShield, false, model.GameMyth2)
	var admErr *Error
	require.True(t, errors.As(err, &admErr))
	assert.Equal(t, protocol.CodeRoomFull, admErr.Code)
}

func TestRegistry_ImplicitLeaveOnJoin(t *testing.T) {
	reg := NewRegistry(testTemplates(), 0)

	stayer := &fakeMember{id: 1}
	mover := &fakeMember{id: 2}
	_, _, _, err := reg.Join(1, stayer, model.CasteShield, false, model.GameMyth2)
	require.NoError(t, err)
	_, _, _, err = reg.Join(1, mover, model.CasteShield, false, model.GameMyth2)
	require.NoError(t, err)

	joined, prior, departed, err := reg.Join(2, mover, model.CasteShield, false, model.GameMyth2)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), joined.Template().ID)
	assert.Empty(t, prior)
	// The old room's remaining members get the departure delta.
	require.Len(t, departed, 1)
	assert.Equal(t, uint32(1), departed[0].UserID())
	assert.Equal(t, 1, reg.Get(1).MemberCount())

	// Re-joining the room you are in is refused.
	_, _, _, err = reg.Join(2, mover, model.CasteShield, false, model.GameMyth2)
	var admErr *Error
	require.True(t, errors.As(err, &admErr))
	assert.Equal(t, protocol.CodeAlreadyInRoom, admErr.Code)
}

func TestRegistry_BroadcastExcludesSender(t *testing.T) {
	reg := NewRegistry(testTemplates(), 0)

	members := []*fakeMember{{id: 1}, {id: 2}, {id: 3}}
	for _, m := range members {
		_, _, _, err := reg.Join(1, m, model.CasteShield, false, model.GameMyth2)
		require.NoError(t, err)
	}

	sent, err := reg.Broadcast(1, protocol.OpRoomBroadcast, []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 0, members[0].count())
	assert.Equal(t, 1, members[1].count())
	assert.Equal(t, 1, members[2].count())

	_, err = reg.Broadcast(99, protocol.OpRoomBroadcast, nil)
	assert.Error(t, err)
}

func TestRegistry_SendToRequiresSameRoom(t *testing.T) {
	reg := NewRegistry(testTemplates(), 0)

	a := &fakeMember{id: 1}
	b := &fakeMember{id: 2}
	c := &fakeMember{id: 3}
	_, _, _, err := reg.Join(1, a, model.CasteShield, false, model.GameMyth2)
	require.NoError(t, err)
	_, _, _, err = reg.Join(1, b, model.CasteShield, false, model.GameMyth2)
	require.NoError(t, err)
	_, _, _, err = reg.Join(2, c, model.CasteShield, false, model.GameMyth2)
	require.NoError(t, err)

	require.NoError(t, reg.SendTo(1, 2, protocol.OpDirectedData, []byte("psst")))
	assert.Equal(t, 1, b.count())

	// Recipient in a different room is unreachable.
	assert.Error(t, reg.SendTo(1, 3, protocol.OpDirectedData, nil))
	assert.Equal(t, 0, c.count())
}

func TestRegistry_GameSet(t *testing.T) {
	reg := NewRegistry(testTemplates(), 0)
	r := reg.Get(1)
	r.AddGame(100)
	r.AddGame(101)
	assert.ElementsMatch(t, []uint32{100, 101}, r.GameIDs())
	r.RemoveGame(100)
	assert.ElementsMatch(t, []uint32{101}, r.GameIDs())
}

func TestParseRoomList(t *testing.T) {
	input := `# production rooms
MYTH2 0 1 0 0 16 0
MYTH,MYTH3 1 0 1 3 8 0

MARATHON 2 1 0 0 16 1 # tournament slot
`
	rooms, err := ParseRoomList(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rooms, 3)

	assert.Equal(t, uint16(0), rooms[0].ID)
	assert.True(t, rooms[0].Ranked)
	assert.Equal(t, model.GameMyth2, rooms[0].GameFlags)

	// MYTH aliases MYTH2.
	assert.Equal(t, model.GameMyth2|model.GameMyth3, rooms[1].GameFlags)
	assert.Equal(t, model.Caste(3), rooms[1].MinCaste)
	assert.Equal(t, model.Caste(8), rooms[1].MaxCaste)

	assert.True(t, rooms[2].Tournament)
}

func TestParseRoomList_Malformed(t *testing.T) {
	tests := []string{
		"",                            // no rooms at all
		"MYTH2 0 1 0",                 // too few fields
		"DOOM 0 1 0 0 16 0",           // unknown game
		"MYTH2 0 1 0 9 3 0",           // min caste above max
		"MYTH2 0 maybe 0 0 16 0",      // bad boolean
		"MYTH2 0 1 0 0 16 0\nMYTH2 0 1 0 0 16 0", // duplicate id
	}
	for _, input := range tests {
		_, err := ParseRoomList(strings.NewReader(input))
		assert.Error(t, err, "input=%q", input)
	}
}
