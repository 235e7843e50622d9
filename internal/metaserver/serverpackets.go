package metaserver

import (
	"github.com/udisondev/mythmeta/internal/auth"
	"github.com/udisondev/mythmeta/internal/game"
	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/protocol"
	"github.com/udisondev/mythmeta/internal/protocol/packet"
	"github.com/udisondev/mythmeta/internal/room"
)

// Player-list verbs carried in the entry header.
const (
	PlayerVerbAdd    uint16 = 0
	PlayerVerbDelete uint16 = 1
	PlayerVerbChange uint16 = 2
)

// Game-list verbs.
const (
	GameVerbAdd    uint16 = 0
	GameVerbDelete uint16 = 1
	GameVerbChange uint16 = 2
)

// deliverPacket frames a built payload and queues it on the client.
func deliverPacket(c *Client, typ uint16, w *packet.Writer) bool {
	defer w.Put()
	return c.Deliver(typ, w.Bytes())
}

// sendMessage delivers SERVER_MESSAGE {code:i16, text:cstring}.
func sendMessage(c *Client, code protocol.MessageCode) bool {
	w := packet.Get()
	w.WriteShort(int16(code))
	w.WriteCString(code.Text())
	return deliverPacket(c, protocol.OpServerMessage, w)
}

// buildServerMessageFrame builds a SERVER_MESSAGE payload with custom
// text for fan-out paths that hit many recipients.
func buildServerMessageFrame(code protocol.MessageCode, text string) []byte {
	w := packet.Get()
	defer w.Put()
	w.WriteShort(int16(code))
	w.WriteCString(text)
	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	return out
}

// sendMOTD delivers MESSAGE_OF_THE_DAY with the configured text.
func sendMOTD(c *Client, motd string) bool {
	w := packet.Get()
	w.WriteCString(motd)
	return deliverPacket(c, protocol.OpMessageOfTheDay, w)
}

// sendPasswordChallenge delivers PASSWORD_CHALLENGE
// {scheme:i16, salt:16 bytes}.
func sendPasswordChallenge(c *Client, scheme auth.Scheme, salt []byte) bool {
	w := packet.Get()
	w.WriteShort(int16(scheme))
	if len(salt) >= 16 {
		w.WriteBytes(salt[:16])
	} else {
		w.WriteBytes(salt)
		w.WriteZeros(16 - len(salt))
	}
	return deliverPacket(c, protocol.OpPasswordChallenge, w)
}

// sendLoginSuccess delivers USER_SUCCESSFUL_LOGIN
// {user_id:i32, order:i16, token:32 bytes}.
func sendLoginSuccess(c *Client, userID uint32, orderID uint32, token auth.Token) bool {
	w := packet.Get()
	w.WriteInt(int32(userID))
	w.WriteShort(int16(orderID))
	w.WriteBytes(token[:])
	return deliverPacket(c, protocol.OpUserSuccessfulLogin, w)
}

// sendURL delivers URL {text:cstring, url:cstring}, pointing stale
// clients at the updater.
func sendURL(c *Client, text, url string) bool {
	w := packet.Get()
	w.WriteCString(text)
	w.WriteCString(url)
	return deliverPacket(c, protocol.OpURL, w)
}

// sendVersions delivers SEND_VERSIONS {minimum_build:u32}.
func sendVersions(c *Client, minimumBuild uint32) bool {
	w := packet.Get()
	w.WriteDword(minimumBuild)
	return deliverPacket(c, protocol.OpSendVersions, w)
}

// sendBlammed delivers YOU_JUST_GOT_BLAMMED_SUCKA {code:i16,
// text:cstring} to a session about to be revoked.
func sendBlammed(c *Client, code protocol.MessageCode) bool {
	w := packet.Get()
	w.WriteShort(int16(code))
	w.WriteCString(code.Text())
	return deliverPacket(c, protocol.OpYouJustGotBlammed, w)
}

// writeRoomEntry appends one ROOM_LIST row:
// {room_id:u16, player_count:u16, host:u32, port:u16, game_flags:u16,
// country:i16, min_caste:i16, max_caste:i16, ranked:i16, tournament:i16}.
func writeRoomEntry(w *packet.Writer, r *room.Room, hostAddr uint32, port uint16) {
	tmpl := r.Template()
	w.WriteWord(tmpl.ID)
	w.WriteWord(uint16(r.MemberCount()))
	w.WriteDword(hostAddr)
	w.WriteWord(port)
	w.WriteWord(uint16(tmpl.GameFlags))
	w.WriteShort(tmpl.Country)
	w.WriteShort(int16(tmpl.MinCaste))
	w.WriteShort(int16(tmpl.MaxCaste))
	w.WriteShort(boolShort(tmpl.Ranked))
	w.WriteShort(boolShort(tmpl.Tournament))
}

// sendRoomList delivers ROOM_LIST {count:u16, entries...}.
func sendRoomList(c *Client, rooms []*room.Room, hostAddr uint32, port uint16) bool {
	w := packet.Get()
	w.WriteWord(uint16(len(rooms)))
	for _, r := range rooms {
		writeRoomEntry(w, r, hostAddr, port)
	}
	return deliverPacket(c, protocol.OpRoomList, w)
}

// playerEntry is the player-list row for one connected user.
type playerEntry struct {
	Verb    uint16
	Flags   uint16
	Ranking uint32
	UserID  uint32
	RoomID  uint16
	Caste   model.Caste
	OrderID uint32
	Name    string
	Data    []byte
}

const playerEntryAdminFlag uint16 = 1

func playerEntryFor(verb uint16, c *Client, roomID uint16) playerEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := playerEntry{
		Verb:    verb,
		Ranking: c.rank,
		UserID:  c.userID,
		RoomID:  roomID,
		Caste:   c.caste,
		OrderID: c.orderID,
		Name:    c.name,
		Data:    c.playerData,
	}
	if c.admin {
		e.Flags |= playerEntryAdminFlag
	}
	return e
}

// writePlayerEntry appends one PLAYER_LIST row: the fixed aux header
// {verb:u16, flags:u16, ranking:u32, player_id:u32, room_id:u16,
// caste:u16, data_len:u16, order:u16} followed by the name cstring and
// data_len opaque bytes.
func writePlayerEntry(w *packet.Writer, e playerEntry) {
	data := e.Data
	if len(data) > model.MaximumPlayerDataLength {
		data = data[:model.MaximumPlayerDataLength]
	}
	w.WriteWord(e.Verb)
	w.WriteWord(e.Flags)
	w.WriteDword(e.Ranking)
	w.WriteDword(e.UserID)
	w.WriteWord(e.RoomID)
	w.WriteWord(uint16(e.Caste))
	w.WriteWord(uint16(len(data)))
	w.WriteWord(uint16(e.OrderID))
	w.WriteCString(e.Name)
	w.WriteBytes(data)
}

// sendPlayerList delivers PLAYER_LIST {count:u16, entries...}.
func sendPlayerList(c *Client, entries []playerEntry) bool {
	w := packet.Get()
	w.WriteWord(uint16(len(entries)))
	for _, e := range entries {
		writePlayerEntry(w, e)
	}
	return deliverPacket(c, protocol.OpPlayerList, w)
}

// buildPlayerListFrame builds a PLAYER_LIST payload for fan-out to many
// recipients.
func buildPlayerListFrame(entries ...playerEntry) []byte {
	w := packet.Get()
	defer w.Put()
	w.WriteWord(uint16(len(entries)))
	for _, e := range entries {
		writePlayerEntry(w, e)
	}
	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	return out
}

// writeGameEntry appends one GAME_LIST row:
// {verb:u16, game_id:u32, host_id:u32, room_id:u16, state:u16,
// player_count:u16, max_players:u16, scoring:i16, options:u32,
// unit_trading:i16, veterans:i16, team_game:i16, alliances:i16,
// enemy_visibility:i16, ranked:i16} then name and map cstrings.
func writeGameEntry(w *packet.Writer, verb uint16, info game.Info) {
	s := info.Settings
	w.WriteWord(verb)
	w.WriteDword(info.ID)
	w.WriteDword(info.HostID)
	w.WriteWord(info.RoomID)
	w.WriteWord(uint16(info.State))
	w.WriteWord(uint16(info.PlayerCount))
	w.WriteWord(uint16(s.MaxPlayers))
	w.WriteShort(s.Scoring)
	w.WriteDword(s.Options)
	w.WriteShort(s.UnitTrading)
	w.WriteShort(s.Veterans)
	w.WriteShort(boolShort(s.TeamGame))
	w.WriteShort(s.Alliances)
	w.WriteShort(s.EnemyVisibility)
	w.WriteShort(boolShort(s.Ranked))
	w.WriteCString(s.Name)
	w.WriteCString(s.MapName)
}

// sendGameList delivers GAME_LIST {count:u16, entries...} with a
// uniform verb.
func sendGameList(c *Client, verb uint16, infos []game.Info) bool {
	w := packet.Get()
	w.WriteWord(uint16(len(infos)))
	for _, info := range infos {
		writeGameEntry(w, verb, info)
	}
	return deliverPacket(c, protocol.OpGameList, w)
}

// buildGameListFrame builds a single-entry GAME_LIST payload for room
// fan-out.
func buildGameListFrame(verb uint16, info game.Info) []byte {
	w := packet.Get()
	defer w.Put()
	w.WriteWord(1)
	writeGameEntry(w, verb, info)
	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	return out
}

// buildGameDeleteFrame builds the GAME_LIST delete row, which carries
// only the id.
func buildGameDeleteFrame(gameID uint32) []byte {
	w := packet.Get()
	defer w.Put()
	w.WriteWord(1)
	w.WriteWord(GameVerbDelete)
	w.WriteDword(gameID)
	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	return out
}

// scoreEntry is one row of the score list surfaced by player search
// and order queries: {player_id:u32, place:u16, kills:u16,
// casualties:u16, points_killed:i32, points_lost:i32, unused:2×i32}.
type scoreEntry struct {
	PlayerID     uint32
	Place        uint16
	Kills        uint16
	Casualties   uint16
	PointsKilled int32
	PointsLost   int32
}

func writeScoreEntry(w *packet.Writer, e scoreEntry) {
	w.WriteDword(e.PlayerID)
	w.WriteWord(e.Place)
	w.WriteWord(e.Kills)
	w.WriteWord(e.Casualties)
	w.WriteInt(e.PointsKilled)
	w.WriteInt(e.PointsLost)
	w.WriteInt(0)
	w.WriteInt(0)
}

// playerInfoRow is one row of PLAYER_SEARCH_LIST and PLAYER_INFO:
// {user_id:u32, caste:i16, order:u16, points:i32 (clamped ≥0),
// games_played:i32, wins:i32, losses:i32, rank:i32} + name cstring.
type playerInfoRow struct {
	UserID      uint32
	Caste       model.Caste
	OrderID     uint32
	Points      int32
	GamesPlayed int32
	Wins        int32
	Losses      int32
	Rank        int32
	Name        string
}

func playerInfoRowFor(u *model.User) playerInfoRow {
	points := u.Ranked.Points
	if points < 0 {
		points = 0
	}
	return playerInfoRow{
		UserID:      u.ID,
		Caste:       u.DisplayCaste(),
		OrderID:     u.OrderID,
		Points:      points,
		GamesPlayed: u.Ranked.GamesPlayed,
		Wins:        u.Ranked.Wins,
		Losses:      u.Ranked.Losses,
		Rank:        u.Ranked.NumericalRank,
		Name:        u.Name,
	}
}

func writePlayerInfoRow(w *packet.Writer, row playerInfoRow) {
	w.WriteDword(row.UserID)
	w.WriteShort(int16(row.Caste))
	w.WriteWord(uint16(row.OrderID))
	w.WriteInt(row.Points)
	w.WriteInt(row.GamesPlayed)
	w.WriteInt(row.Wins)
	w.WriteInt(row.Losses)
	w.WriteInt(row.Rank)
	w.WriteCString(row.Name)
}

// sendPlayerRows delivers a {count:u16, rows...} packet under the given
// opcode (PLAYER_SEARCH_LIST, PLAYER_INFO).
func sendPlayerRows(c *Client, typ uint16, rows []playerInfoRow) bool {
	w := packet.Get()
	w.WriteWord(uint16(len(rows)))
	for _, row := range rows {
		writePlayerInfoRow(w, row)
	}
	return deliverPacket(c, typ, w)
}

// sendBuddyList delivers {count:u16, buddy ids...} under the given
// opcode (BUDDY_LIST for queries, UPDATE_PLAYER_BUDDY_LIST after a
// mutation).
func sendBuddyList(c *Client, typ uint16, buddies []uint32) bool {
	w := packet.Get()
	w.WriteWord(uint16(len(buddies)))
	for _, id := range buddies {
		w.WriteDword(id)
	}
	return deliverPacket(c, typ, w)
}

// sendOrderList delivers ORDER_LIST: order header {order_id:u32,
// leader_id:u32, member_count:u16, founded:u32} + name/motd/url
// cstrings + member score rows.
func sendOrderList(c *Client, o *model.Order, members []*model.User) bool {
	w := packet.Get()
	w.WriteDword(o.ID)
	w.WriteDword(o.LeaderID)
	w.WriteWord(uint16(len(members)))
	w.WriteDword(uint32(o.FoundedAt.Unix()))
	w.WriteCString(o.Name)
	w.WriteCString(o.MOTD)
	w.WriteCString(o.URL)
	for place, m := range members {
		writeScoreEntry(w, scoreEntry{
			PlayerID:     m.ID,
			Place:        uint16(place),
			Kills:        uint16(clampInt32(m.Ranked.Wins)),
			Casualties:   uint16(clampInt32(m.Ranked.Losses)),
			PointsKilled: m.Ranked.DamageInflicted,
			PointsLost:   m.Ranked.DamageReceived,
		})
	}
	return deliverPacket(c, protocol.OpOrderList, w)
}

// sendRoomLoginSuccess delivers ROOM_LOGIN_SUCCESSFUL {user_id:u32,
// max_players:i16}.
func sendRoomLoginSuccess(c *Client, userID uint32, maxPlayers int) bool {
	w := packet.Get()
	w.WriteDword(userID)
	w.WriteShort(int16(maxPlayers))
	return deliverPacket(c, protocol.OpRoomLoginSuccessful, w)
}

// sendUpdateInfo delivers UPDATE_INFO {user_id:u32, order:u32,
// caste:i16} after a profile mutation.
func sendUpdateInfo(c *Client, u *model.User) bool {
	w := packet.Get()
	w.WriteDword(u.ID)
	w.WriteDword(u.OrderID)
	w.WriteShort(int16(u.DisplayCaste()))
	return deliverPacket(c, protocol.OpUpdateInfo, w)
}

func boolShort(v bool) int16 {
	if v {
		return 1
	}
	return 0
}

func clampInt32(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return v
}
