package metaserver

import (
	"fmt"

	"github.com/udisondev/mythmeta/internal/auth"
	"github.com/udisondev/mythmeta/internal/game"
	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/protocol/packet"
	"github.com/udisondev/mythmeta/internal/search"
)

// loginRequest is LOGIN(100): {game_flags:u16, build:u32, login:cstring}.
type loginRequest struct {
	GameFlags model.GameFlags
	Build     uint32
	Login     string
}

func decodeLogin(payload []byte) (loginRequest, error) {
	r := packet.NewReader(payload)
	var req loginRequest
	flags, err := r.ReadWord()
	if err != nil {
		return req, fmt.Errorf("login game flags: %w", err)
	}
	req.GameFlags = model.GameFlags(flags)
	if req.Build, err = r.ReadDword(); err != nil {
		return req, fmt.Errorf("login build: %w", err)
	}
	if req.Login, err = r.ReadCString(); err != nil {
		return req, fmt.Errorf("login name: %w", err)
	}
	if len(req.Login) == 0 || len(req.Login) > model.MaximumLoginLength {
		return req, fmt.Errorf("login name length %d out of range", len(req.Login))
	}
	return req, nil
}

// passwordResponse is PASSWORD_RESPONSE(109): {password:cstring}.
func decodePasswordResponse(payload []byte) (string, error) {
	r := packet.NewReader(payload)
	password, err := r.ReadCString()
	if err != nil {
		return "", fmt.Errorf("password response: %w", err)
	}
	if len(password) > model.MaximumPasswordLength {
		return "", fmt.Errorf("password length %d out of range", len(password))
	}
	return password, nil
}

// versionControl is VERSION_CONTROL(115): {build:u32}.
func decodeVersionControl(payload []byte) (uint32, error) {
	r := packet.NewReader(payload)
	build, err := r.ReadDword()
	if err != nil {
		return 0, fmt.Errorf("version control: %w", err)
	}
	return build, nil
}

// roomLoginRequest is ROOM_LOGIN(101): {token:32 bytes, name:cstring}.
type roomLoginRequest struct {
	Token auth.Token
	Name  string
}

func decodeRoomLogin(payload []byte) (roomLoginRequest, error) {
	r := packet.NewReader(payload)
	var req roomLoginRequest
	raw, err := r.ReadBytes(auth.TokenSize)
	if err != nil {
		return req, fmt.Errorf("room login token: %w", err)
	}
	if req.Token, err = auth.TokenFromBytes(raw); err != nil {
		return req, err
	}
	if req.Name, err = r.ReadCString(); err != nil {
		return req, fmt.Errorf("room login name: %w", err)
	}
	return req, nil
}

// changeRoom is CHANGE_ROOM(106): {room_id:u16}.
func decodeChangeRoom(payload []byte) (uint16, error) {
	r := packet.NewReader(payload)
	id, err := r.ReadWord()
	if err != nil {
		return 0, fmt.Errorf("change room: %w", err)
	}
	return id, nil
}

// createGameRequest is CREATE_GAME(104): the fixed block
// {max_players:u16, scoring:i16, options:u32, team_game:i16,
// unit_trading:i16, veterans:i16, alliances:i16, enemy_visibility:i16,
// ranked:i16} followed by name, map and password cstrings.
type createGameRequest struct {
	Settings game.Settings
}

func decodeCreateGame(payload []byte) (createGameRequest, error) {
	r := packet.NewReader(payload)
	var req createGameRequest
	s := &req.Settings

	maxPlayers, err := r.ReadWord()
	if err != nil {
		return req, fmt.Errorf("create game max players: %w", err)
	}
	s.MaxPlayers = int(maxPlayers)

	if s.Scoring, err = r.ReadShort(); err != nil {
		return req, fmt.Errorf("create game scoring: %w", err)
	}
	if s.Options, err = r.ReadDword(); err != nil {
		return req, fmt.Errorf("create game options: %w", err)
	}

	var teamGame, ranked int16
	if teamGame, err = r.ReadShort(); err != nil {
		return req, fmt.Errorf("create game team flag: %w", err)
	}
	if s.UnitTrading, err = r.ReadShort(); err != nil {
		return req, fmt.Errorf("create game unit trading: %w", err)
	}
	if s.Veterans, err = r.ReadShort(); err != nil {
		return req, fmt.Errorf("create game veterans: %w", err)
	}
	if s.Alliances, err = r.ReadShort(); err != nil {
		return req, fmt.Errorf("create game alliances: %w", err)
	}
	if s.EnemyVisibility, err = r.ReadShort(); err != nil {
		return req, fmt.Errorf("create game enemy visibility: %w", err)
	}
	if ranked, err = r.ReadShort(); err != nil {
		return req, fmt.Errorf("create game ranked flag: %w", err)
	}
	s.TeamGame = teamGame != 0
	s.Ranked = ranked != 0

	if s.Name, err = r.ReadCString(); err != nil {
		return req, fmt.Errorf("create game name: %w", err)
	}
	if s.MapName, err = r.ReadCString(); err != nil {
		return req, fmt.Errorf("create game map: %w", err)
	}
	if s.PasswordHash, err = r.ReadCString(); err != nil {
		return req, fmt.Errorf("create game password: %w", err)
	}
	if s.Scoring < 0 || s.Scoring >= model.MaximumGameTypes {
		return req, fmt.Errorf("create game scoring %d out of range", s.Scoring)
	}
	return req, nil
}

// playerMode is SET_PLAYER_MODE(107): {team:i16, ready:i16}.
type playerMode struct {
	Team  int16
	Ready bool
}

func decodePlayerMode(payload []byte) (playerMode, error) {
	r := packet.NewReader(payload)
	var pm playerMode
	var err error
	if pm.Team, err = r.ReadShort(); err != nil {
		return pm, fmt.Errorf("player mode team: %w", err)
	}
	ready, err := r.ReadShort()
	if err != nil {
		return pm, fmt.Errorf("player mode ready: %w", err)
	}
	pm.Ready = ready != 0
	return pm, nil
}

// decodeGameScore parses GAME_SCORE(112) into a StandingsReport:
// {game_ended_code:i16, version:u16, number_of_players:i16,
// game_scoring:i16, team_count:i16, places:[team_count]i16,
// rows:[number_of_players]{user_id:u32, team:i16, points_killed:i32,
// points_lost:i32}}.
func decodeGameScore(payload []byte) (*game.StandingsReport, error) {
	r := packet.NewReader(payload)
	rep := &game.StandingsReport{}
	var err error

	if rep.GameEndedCode, err = r.ReadShort(); err != nil {
		return nil, fmt.Errorf("game score end code: %w", err)
	}
	if rep.Version, err = r.ReadWord(); err != nil {
		return nil, fmt.Errorf("game score version: %w", err)
	}
	if rep.NumberOfPlayers, err = r.ReadShort(); err != nil {
		return nil, fmt.Errorf("game score player count: %w", err)
	}
	if rep.GameScoring, err = r.ReadShort(); err != nil {
		return nil, fmt.Errorf("game score scoring: %w", err)
	}

	teamCount, err := r.ReadShort()
	if err != nil {
		return nil, fmt.Errorf("game score team count: %w", err)
	}
	if teamCount < 0 || int(teamCount) > 64 {
		return nil, fmt.Errorf("game score team count %d out of range", teamCount)
	}
	if rep.NumberOfPlayers < 0 || int(rep.NumberOfPlayers) > 64 {
		return nil, fmt.Errorf("game score player count %d out of range", rep.NumberOfPlayers)
	}

	rep.TeamPlaces = make([]int16, teamCount)
	for i := range rep.TeamPlaces {
		if rep.TeamPlaces[i], err = r.ReadShort(); err != nil {
			return nil, fmt.Errorf("game score place %d: %w", i, err)
		}
	}

	rep.Players = make([]game.PlayerStanding, rep.NumberOfPlayers)
	for i := range rep.Players {
		p := &rep.Players[i]
		if p.UserID, err = r.ReadDword(); err != nil {
			return nil, fmt.Errorf("game score row %d user: %w", i, err)
		}
		if p.Team, err = r.ReadShort(); err != nil {
			return nil, fmt.Errorf("game score row %d team: %w", i, err)
		}
		if p.PointsKilled, err = r.ReadInt(); err != nil {
			return nil, fmt.Errorf("game score row %d points killed: %w", i, err)
		}
		if p.PointsLost, err = r.ReadInt(); err != nil {
			return nil, fmt.Errorf("game score row %d points lost: %w", i, err)
		}
	}
	return rep, nil
}

// decodeGameSearch parses GAME_SEARCH_QUERY(116):
// {scoring:i16, unit_trading:i16, veterans:i16, teams:i16,
// alliances:i16, enemy_visibility:i16, game_name:cstring,
// map_name:cstring}. -1 wildcards a numeric predicate.
func decodeGameSearch(payload []byte) (search.Query, error) {
	r := packet.NewReader(payload)
	q := search.NewQuery()
	var err error
	if q.Scoring, err = r.ReadShort(); err != nil {
		return q, fmt.Errorf("game search scoring: %w", err)
	}
	if q.UnitTrading, err = r.ReadShort(); err != nil {
		return q, fmt.Errorf("game search unit trading: %w", err)
	}
	if q.Veterans, err = r.ReadShort(); err != nil {
		return q, fmt.Errorf("game search veterans: %w", err)
	}
	if q.Teams, err = r.ReadShort(); err != nil {
		return q, fmt.Errorf("game search teams: %w", err)
	}
	if q.Alliances, err = r.ReadShort(); err != nil {
		return q, fmt.Errorf("game search alliances: %w", err)
	}
	if q.EnemyVisibility, err = r.ReadShort(); err != nil {
		return q, fmt.Errorf("game search enemy visibility: %w", err)
	}
	if q.GameName, err = r.ReadCString(); err != nil {
		return q, fmt.Errorf("game search game name: %w", err)
	}
	if q.MapName, err = r.ReadCString(); err != nil {
		return q, fmt.Errorf("game search map name: %w", err)
	}
	return q, nil
}

// decodePlayerSearch parses PLAYER_SEARCH_QUERY(117): {name:cstring}.
func decodePlayerSearch(payload []byte) (string, error) {
	r := packet.NewReader(payload)
	name, err := r.ReadCString()
	if err != nil {
		return "", fmt.Errorf("player search: %w", err)
	}
	return name, nil
}

// Buddy verbs for UPDATE_BUDDY(120).
const (
	buddyVerbAdd    uint16 = 0
	buddyVerbRemove uint16 = 1
)

// buddyUpdate is UPDATE_BUDDY(120): {verb:u16, buddy_id:u32}.
type buddyUpdate struct {
	Verb    uint16
	BuddyID uint32
}

func decodeBuddyUpdate(payload []byte) (buddyUpdate, error) {
	r := packet.NewReader(payload)
	var up buddyUpdate
	var err error
	if up.Verb, err = r.ReadWord(); err != nil {
		return up, fmt.Errorf("buddy update verb: %w", err)
	}
	if up.BuddyID, err = r.ReadDword(); err != nil {
		return up, fmt.Errorf("buddy update id: %w", err)
	}
	if up.Verb != buddyVerbAdd && up.Verb != buddyVerbRemove {
		return up, fmt.Errorf("buddy update verb %d unknown", up.Verb)
	}
	return up, nil
}

// decodeOrderQuery parses ORDER_QUERY(119): {order_id:u32}.
func decodeOrderQuery(payload []byte) (uint32, error) {
	r := packet.NewReader(payload)
	id, err := r.ReadDword()
	if err != nil {
		return 0, fmt.Errorf("order query: %w", err)
	}
	return id, nil
}

// decodeUpdatePlayerInformation parses UPDATE_PLAYER_INFORMATION(122):
// {order_id:u32}; 0 leaves the current order.
func decodeUpdatePlayerInformation(payload []byte) (uint32, error) {
	r := packet.NewReader(payload)
	id, err := r.ReadDword()
	if err != nil {
		return 0, fmt.Errorf("update player information: %w", err)
	}
	return id, nil
}

// decodeDirectedData parses DIRECTED_DATA(201): {target:u32, data...}.
// The data slice aliases the payload; callers copy before retaining.
func decodeDirectedData(payload []byte) (uint32, []byte, error) {
	r := packet.NewReader(payload)
	target, err := r.ReadDword()
	if err != nil {
		return 0, nil, fmt.Errorf("directed data target: %w", err)
	}
	return target, r.Rest(), nil
}

// decodePlayerInfoQuery parses PLAYER_INFO_QUERY(121): {user_id:u32}.
func decodePlayerInfoQuery(payload []byte) (uint32, error) {
	r := packet.NewReader(payload)
	id, err := r.ReadDword()
	if err != nil {
		return 0, fmt.Errorf("player info query: %w", err)
	}
	return id, nil
}
