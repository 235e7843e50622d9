package protocol

// MessageCode is carried in SERVER_MESSAGE payloads to report the outcome
// of a request or the reason for a refusal.
type MessageCode int16

const (
	CodeSyntaxError                MessageCode = 0
	CodeLoginFailedGamesNotAllowed MessageCode = 1
	CodeLoginFailedInvalidVersion  MessageCode = 2
	CodeLoginFailedBadUserOrPass   MessageCode = 3
	CodeUserNotLoggedIn            MessageCode = 4
	CodeBadMetaserverVersion       MessageCode = 5
	CodeUserAlreadyLoggedIn        MessageCode = 6
	CodeUnknownGameType            MessageCode = 7
	CodeLoginSuccessful            MessageCode = 8
	CodeLogoutSuccessful           MessageCode = 9
	CodePlayerNotInRoom            MessageCode = 10
	CodeGameAlreadyExists          MessageCode = 11
	CodeAccountAlreadyLoggedIn     MessageCode = 12
	CodeRoomFull                   MessageCode = 13
	CodeAccountLocked              MessageCode = 14
	CodeNotSupported               MessageCode = 15

	// Extended codes, outside the classic range. "Already in room" and
	// "already in game" are deliberately distinct.
	CodeCasteNotAllowed MessageCode = 16
	CodeGameFull        MessageCode = 17
	CodeAlreadyInRoom   MessageCode = 18
	CodeAlreadyInGame   MessageCode = 19
	CodeNotGameHost     MessageCode = 20
	CodeGameNotWaiting  MessageCode = 21
	CodeInternalError   MessageCode = 22
)

func (c MessageCode) String() string {
	switch c {
	case CodeSyntaxError:
		return "SYNTAX_ERROR"
	case CodeLoginFailedGamesNotAllowed:
		return "LOGIN_FAILED_GAMES_NOT_ALLOWED"
	case CodeLoginFailedInvalidVersion:
		return "LOGIN_FAILED_INVALID_VERSION"
	case CodeLoginFailedBadUserOrPass:
		return "LOGIN_FAILED_BAD_USER_OR_PASSWORD"
	case CodeUserNotLoggedIn:
		return "USER_NOT_LOGGED_IN"
	case CodeBadMetaserverVersion:
		return "BAD_METASERVER_VERSION"
	case CodeUserAlreadyLoggedIn:
		return "USER_ALREADY_LOGGED_IN"
	case CodeUnknownGameType:
		return "UNKNOWN_GAME_TYPE"
	case CodeLoginSuccessful:
		return "LOGIN_SUCCESSFUL"
	case CodeLogoutSuccessful:
		return "LOGOUT_SUCCESSFUL"
	case CodePlayerNotInRoom:
		return "PLAYER_NOT_IN_ROOM"
	case CodeGameAlreadyExists:
		return "GAME_ALREADY_EXISTS"
	case CodeAccountAlreadyLoggedIn:
		return "ACCOUNT_ALREADY_LOGGED_IN"
	case CodeRoomFull:
		return "ROOM_FULL"
	case CodeAccountLocked:
		return "ACCOUNT_LOCKED"
	case CodeNotSupported:
		return "METASERVER_NOT_SUPPORTED"
	case CodeCasteNotAllowed:
		return "CASTE_NOT_ALLOWED"
	case CodeGameFull:
		return "GAME_FULL"
	case CodeAlreadyInRoom:
		return "ALREADY_IN_ROOM"
	case CodeAlreadyInGame:
		return "ALREADY_IN_GAME"
	case CodeNotGameHost:
		return "NOT_GAME_HOST"
	case CodeGameNotWaiting:
		return "GAME_NOT_WAITING"
	case CodeInternalError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN_CODE"
	}
}

// Text returns the client-facing message for a code.
func (c MessageCode) Text() string {
	switch c {
	case CodeSyntaxError:
		return "Syntax error (unrecognized command)."
	case CodeLoginFailedGamesNotAllowed:
		return "Login failed (Games not allowed at this time)."
	case CodeLoginFailedInvalidVersion:
		return "Login failed (Invalid Game Version number)."
	case CodeLoginFailedBadUserOrPass:
		return "Login failed (Bad user or Password)."
	case CodeUserNotLoggedIn:
		return "User not logged in."
	case CodeBadMetaserverVersion:
		return "Bad metaserver version."
	case CodeUserAlreadyLoggedIn:
		return "User already logged in!"
	case CodeUnknownGameType:
		return "Unknown game type!"
	case CodeLoginSuccessful:
		return "User logged in."
	case CodeLogoutSuccessful:
		return "User logged out."
	case CodePlayerNotInRoom:
		return "Player not in a room!"
	case CodeGameAlreadyExists:
		return "You already created a game!"
	case CodeAccountAlreadyLoggedIn:
		return "This account is already logged in!"
	case CodeRoomFull:
		return "The desired room is full!"
	case CodeAccountLocked:
		return "Your account has been locked"
	case CodeNotSupported:
		return "The game server for your product has been shutdown"
	case CodeCasteNotAllowed:
		return "Your caste is not welcome in that room."
	case CodeGameFull:
		return "That game is full."
	case CodeAlreadyInRoom:
		return "You are already in a room."
	case CodeAlreadyInGame:
		return "You are already in a game."
	case CodeNotGameHost:
		return "Only the game host can do that."
	case CodeGameNotWaiting:
		return "That game has already started."
	case CodeInternalError:
		return "Internal server error."
	default:
		return "Unknown message type"
	}
}
