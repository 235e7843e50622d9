// Package game implements the game lifecycle state machine, readiness
// gating, post-game standings reconciliation and score application.
package game

// State is a game's lifecycle phase. Transitions are monotonic: a game
// never returns to an earlier phase, and in particular never goes back
// to Waiting once started.
type State int32

const (
	StateInitializing State = iota
	StateWaiting
	StateStarting
	StateInProgress
	StateEnding
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateWaiting:
		return "WAITING"
	case StateStarting:
		return "STARTING"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateEnding:
		return "ENDING"
	case StateCompleted:
		return "COMPLETED"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the game can never change state again.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// canTransition is the full transition relation.
func canTransition(from, to State) bool {
	switch from {
	case StateInitializing:
		return to == StateWaiting || to == StateAborted
	case StateWaiting:
		return to == StateStarting || to == StateAborted
	case StateStarting:
		return to == StateInProgress || to == StateAborted
	case StateInProgress:
		return to == StateEnding || to == StateAborted
	case StateEnding:
		return to == StateCompleted || to == StateAborted
	default:
		return false
	}
}
