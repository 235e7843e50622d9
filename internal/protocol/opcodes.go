package protocol

// Packet types. The opcode space is partitioned by direction:
// 0-99 server to client, 100-199 client to server, 200+ either way.
const (
	// Server to client.
	OpRoomList                  uint16 = 0
	OpPlayerList                uint16 = 1
	OpGameList                  uint16 = 2
	OpServerMessage             uint16 = 3
	OpURL                       uint16 = 4
	OpDataChunk                 uint16 = 5
	OpPasswordChallenge         uint16 = 6
	OpUserSuccessfulLogin       uint16 = 7
	OpSetPlayerDataFromServer   uint16 = 8
	OpRoomLoginSuccessful       uint16 = 9
	OpMessageOfTheDay           uint16 = 10
	OpPatch                     uint16 = 11
	OpSendVersions              uint16 = 12
	OpGameListPref              uint16 = 13
	OpPlayerSearchList          uint16 = 14
	OpBuddyList                 uint16 = 15
	OpOrderList                 uint16 = 16
	OpPlayerInfo                uint16 = 17
	OpUpdateInfo                uint16 = 18
	OpUpdatePlayerBuddyList     uint16 = 19
	OpUpdateOrderMemberList     uint16 = 20
	OpYouJustGotBlammed         uint16 = 21

	// Client to server.
	OpLogin                   uint16 = 100
	OpRoomLogin               uint16 = 101
	OpLogout                  uint16 = 102
	OpSetPlayerData           uint16 = 103
	OpCreateGame              uint16 = 104
	OpRemoveGame              uint16 = 105
	OpChangeRoom              uint16 = 106
	OpSetPlayerMode           uint16 = 107
	OpDataChunkReply          uint16 = 108
	OpPasswordResponse        uint16 = 109
	OpRequestFullUpdate       uint16 = 110
	OpGamePlayerList          uint16 = 111
	OpGameScore               uint16 = 112
	OpResetGame               uint16 = 113
	OpStartGame               uint16 = 114
	OpVersionControl          uint16 = 115
	OpGameSearchQuery         uint16 = 116
	OpPlayerSearchQuery       uint16 = 117
	OpBuddyQuery              uint16 = 118
	OpOrderQuery              uint16 = 119
	OpUpdateBuddy             uint16 = 120
	OpPlayerInfoQuery         uint16 = 121
	OpUpdatePlayerInformation uint16 = 122

	// Either direction.
	OpRoomBroadcast uint16 = 200
	OpDirectedData  uint16 = 201
	OpKeepalive     uint16 = 202
	OpSessionKey    uint16 = 203
)

// OpName returns a readable name for logging. Unknown opcodes format as
// their decimal value.
func OpName(op uint16) string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "OP_" + itoa(op)
}

var opNames = map[uint16]string{
	OpRoomList:                "ROOM_LIST",
	OpPlayerList:              "PLAYER_LIST",
	OpGameList:                "GAME_LIST",
	OpServerMessage:           "SERVER_MESSAGE",
	OpURL:                     "URL",
	OpDataChunk:               "DATA_CHUNK",
	OpPasswordChallenge:       "PASSWORD_CHALLENGE",
	OpUserSuccessfulLogin:     "USER_SUCCESSFUL_LOGIN",
	OpSetPlayerDataFromServer: "SET_PLAYER_DATA_FROM_METASERVER",
	OpRoomLoginSuccessful:     "ROOM_LOGIN_SUCCESSFUL",
	OpMessageOfTheDay:         "MESSAGE_OF_THE_DAY",
	OpPatch:                   "PATCH",
	OpSendVersions:            "SEND_VERSIONS",
	OpGameListPref:            "GAME_LIST_PREF",
	OpPlayerSearchList:        "PLAYER_SEARCH_LIST",
	OpBuddyList:               "BUDDY_LIST",
	OpOrderList:               "ORDER_LIST",
	OpPlayerInfo:              "PLAYER_INFO",
	OpUpdateInfo:              "UPDATE_INFO",
	OpUpdatePlayerBuddyList:   "UPDATE_PLAYER_BUDDY_LIST",
	OpUpdateOrderMemberList:   "UPDATE_ORDER_MEMBER_LIST",
	OpYouJustGotBlammed:       "YOU_JUST_GOT_BLAMMED_SUCKA",
	OpLogin:                   "LOGIN",
	OpRoomLogin:               "ROOM_LOGIN",
	OpLogout:                  "LOGOUT",
	OpSetPlayerData:           "SET_PLAYER_DATA",
	OpCreateGame:              "CREATE_GAME",
	OpRemoveGame:              "REMOVE_GAME",
	OpChangeRoom:              "CHANGE_ROOM",
	OpSetPlayerMode:           "SET_PLAYER_MODE",
	OpDataChunkReply:          "DATA_CHUNK_REPLY",
	OpPasswordResponse:        "PASSWORD_RESPONSE",
	OpRequestFullUpdate:       "REQUEST_FULL_UPDATE",
	OpGamePlayerList:          "GAME_PLAYER_LIST",
	OpGameScore:               "GAME_SCORE",
	OpResetGame:               "RESET_GAME",
	OpStartGame:               "START_GAME",
	OpVersionControl:          "VERSION_CONTROL",
	OpGameSearchQuery:         "GAME_SEARCH_QUERY",
	OpPlayerSearchQuery:       "PLAYER_SEARCH_QUERY",
	OpBuddyQuery:              "BUDDY_QUERY",
	OpOrderQuery:              "ORDER_QUERY",
	OpUpdateBuddy:             "UPDATE_BUDDY",
	OpPlayerInfoQuery:         "PLAYER_INFO_QUERY",
	OpUpdatePlayerInformation: "UPDATE_PLAYER_INFORMATION",
	OpRoomBroadcast:           "ROOM_BROADCAST",
	OpDirectedData:            "DIRECTED_DATA",
	OpKeepalive:               "KEEPALIVE",
	OpSessionKey:              "SESSION_KEY",
}

func itoa(v uint16) string {
	if v == 0 {
		return "0"
	}
	var b [5]byte
	i := len(b)
	for v > 0 {
		i--
		b[i] = byte('0' + v%10)
		v /= 10
	}
	return string(b[i:])
}

// IsClientOpcode reports whether op may legally originate from a client.
func IsClientOpcode(op uint16) bool {
	return op >= 100
}
