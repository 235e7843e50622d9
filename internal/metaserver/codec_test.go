package metaserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/mythmeta/internal/game"
	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/protocol/packet"
	"github.com/udisondev/mythmeta/internal/search"
)

func TestDecodeLogin(t *testing.T) {
	w := packet.NewWriter(32)
	w.WriteWord(uint16(model.GameMyth2))
	w.WriteDword(347)
	w.WriteCString("alice")

	req, err := decodeLogin(w.Bytes())
	require.NoError(t, err)
	assert.Equal(t, model.GameMyth2, req.GameFlags)
	assert.Equal(t, uint32(347), req.Build)
	assert.Equal(t, "alice", req.Login)
}

func TestDecodeLoginRejectsEmptyName(t *testing.T) {
	w := packet.NewWriter(32)
	w.WriteWord(uint16(model.GameMyth2))
	w.WriteDword(347)
	w.WriteCString("")

	_, err := decodeLogin(w.Bytes())
	assert.Error(t, err)
}

func TestDecodeLoginRejectsOverlongName(t *testing.T) {
	w := packet.NewWriter(64)
	w.WriteWord(uint16(model.GameMyth2))
	w.WriteDword(347)
	w.WriteCString("thisloginiswaytoolong")

	_, err := decodeLogin(w.Bytes())
	assert.Error(t, err)
}

func TestDecodeCreateGame(t *testing.T) {
	w := packet.NewWriter(64)
	w.WriteWord(8)        // max players
	w.WriteShort(2)       // scoring
	w.WriteDword(0xC0DE)  // options
	w.WriteShort(1)       // team game
	w.WriteShort(1)       // unit trading
	w.WriteShort(0)       // veterans
	w.WriteShort(1)       // alliances
	w.WriteShort(0)       // enemy visibility
	w.WriteShort(1)       // ranked
	w.WriteCString("carnage at dawn")
	w.WriteCString("desert between your ears")
	w.WriteCString("")

	req, err := decodeCreateGame(w.Bytes())
	require.NoError(t, err)
	s := req.Settings
	assert.Equal(t, 8, s.MaxPlayers)
	assert.Equal(t, int16(2), s.Scoring)
	assert.Equal(t, uint32(0xC0DE), s.Options)
	assert.True(t, s.TeamGame)
	assert.True(t, s.Ranked)
	assert.Equal(t, int16(1), s.UnitTrading)
	assert.Equal(t, int16(0), s.Veterans)
	assert.Equal(t, "carnage at dawn", s.Name)
	assert.Equal(t, "desert between your ears", s.MapName)
	assert.Empty(t, s.PasswordHash)
}

func TestDecodeCreateGameRejectsScoringOutOfRange(t *testing.T) {
	w := packet.NewWriter(64)
	w.WriteWord(8)
	w.WriteShort(model.MaximumGameTypes) // one past the last valid scoring
	w.WriteDword(0)
	for i := 0; i < 6; i++ {
		w.WriteShort(0)
	}
	w.WriteCString("g")
	w.WriteCString("m")
	w.WriteCString("")

	_, err := decodeCreateGame(w.Bytes())
	assert.Error(t, err)
}

// encodeGameScore is the inverse of decodeGameScore, for round-trip
// tests and the loopback harness.
func encodeGameScore(rep *game.StandingsReport) []byte {
	w := packet.NewWriter(64)
	w.WriteShort(rep.GameEndedCode)
	w.WriteWord(rep.Version)
	w.WriteShort(rep.NumberOfPlayers)
	w.WriteShort(rep.GameScoring)
	w.WriteShort(int16(len(rep.TeamPlaces)))
	for _, place := range rep.TeamPlaces {
		w.WriteShort(place)
	}
	for _, p := range rep.Players {
		w.WriteDword(p.UserID)
		w.WriteShort(p.Team)
		w.WriteInt(p.PointsKilled)
		w.WriteInt(p.PointsLost)
	}
	return w.Bytes()
}

func TestGameScoreRoundTrip(t *testing.T) {
	rep := &game.StandingsReport{
		GameEndedCode:   0,
		Version:         1,
		NumberOfPlayers: 3,
		GameScoring:     2,
		TeamPlaces:      []int16{0, 1, 1},
		Players: []game.PlayerStanding{
			{UserID: 11, Team: 0, PointsKilled: 40, PointsLost: 5},
			{UserID: 12, Team: 1, PointsKilled: 10, PointsLost: 20},
			{UserID: 13, Team: 2, PointsKilled: 5, PointsLost: 30},
		},
	}

	got, err := decodeGameScore(encodeGameScore(rep))
	require.NoError(t, err)
	assert.Equal(t, rep, got)
}

func TestDecodeGameScoreRejectsHugeTeamCount(t *testing.T) {
	w := packet.NewWriter(16)
	w.WriteShort(0)  // end code
	w.WriteWord(1)   // version
	w.WriteShort(2)  // players
	w.WriteShort(0)  // scoring
	w.WriteShort(99) // team count

	_, err := decodeGameScore(w.Bytes())
	assert.Error(t, err)
}

func TestDecodeGameSearch(t *testing.T) {
	w := packet.NewWriter(32)
	w.WriteShort(2)               // scoring
	w.WriteShort(search.Wildcard) // unit trading
	w.WriteShort(search.Wildcard) // veterans
	w.WriteShort(1)               // teams
	w.WriteShort(search.Wildcard) // alliances
	w.WriteShort(search.Wildcard) // enemy visibility
	w.WriteCString("dawn")
	w.WriteCString("")

	q, err := decodeGameSearch(w.Bytes())
	require.NoError(t, err)
	assert.Equal(t, int16(2), q.Scoring)
	assert.Equal(t, search.Wildcard, q.UnitTrading)
	assert.Equal(t, int16(1), q.Teams)
	assert.Equal(t, "dawn", q.GameName)
	assert.Empty(t, q.MapName)
}

func TestDecodeBuddyUpdateRejectsUnknownVerb(t *testing.T) {
	w := packet.NewWriter(8)
	w.WriteWord(7)
	w.WriteDword(42)

	_, err := decodeBuddyUpdate(w.Bytes())
	assert.Error(t, err)
}

func TestDecodeRoomLogin(t *testing.T) {
	var token [32]byte
	for i := range token {
		token[i] = byte(i)
	}
	w := packet.NewWriter(64)
	w.WriteBytes(token[:])
	w.WriteCString("alice")

	req, err := decodeRoomLogin(w.Bytes())
	require.NoError(t, err)
	assert.Equal(t, token[:], req.Token[:])
	assert.Equal(t, "alice", req.Name)
}

// TestPlayerEntryWireLayout pins the aux block field order:
// {verb:u16, flags:u16, ranking:u32, player_id:u32, room_id:u16,
// caste:u16, data_len:u16, order:u16} + name cstring + data bytes.
func TestPlayerEntryWireLayout(t *testing.T) {
	e := playerEntry{
		Verb:    PlayerVerbChange,
		Flags:   playerEntryAdminFlag,
		Ranking: 7,
		UserID:  42,
		RoomID:  3,
		Caste:   model.CasteComet,
		OrderID: 9,
		Name:    "alice",
		Data:    []byte{0xAA, 0xBB},
	}
	w := packet.NewWriter(64)
	writePlayerEntry(w, e)

	r := packet.NewReader(w.Bytes())
	verb, err := r.ReadWord()
	require.NoError(t, err)
	assert.Equal(t, PlayerVerbChange, verb)
	flags, err := r.ReadWord()
	require.NoError(t, err)
	assert.Equal(t, playerEntryAdminFlag, flags)
	ranking, err := r.ReadDword()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), ranking)
	playerID, err := r.ReadDword()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), playerID)
	roomID, err := r.ReadWord()
	require.NoError(t, err)
	assert.Equal(t, uint16(3), roomID)
	caste, err := r.ReadWord()
	require.NoError(t, err)
	assert.Equal(t, uint16(model.CasteComet), caste)
	dataLen, err := r.ReadWord()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), dataLen)
	order, err := r.ReadWord()
	require.NoError(t, err)
	assert.Equal(t, uint16(9), order)
	name, err := r.ReadCString()
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
	data, err := r.ReadBytes(int(dataLen))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, data)
}

func TestDecodeDirectedData(t *testing.T) {
	w := packet.NewWriter(16)
	w.WriteDword(77)
	w.WriteBytes([]byte("hello"))

	target, data, err := decodeDirectedData(w.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(77), target)
	assert.Equal(t, []byte("hello"), data)
}
