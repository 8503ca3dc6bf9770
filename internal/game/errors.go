package game

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrInvalidPhase     = errors.New("action not allowed in the current phase")
	ErrUnauthorized     = errors.New("not allowed to perform this action")
	ErrDuplicateName    = errors.New("a player with that name already exists")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrInvalidInput     = errors.New("invalid input")
)

// Refinements of the base taxonomy. Each wraps exactly one base error so
// callers can match with errors.Is on either.
var (
	ErrGameAlreadyStarted = fmt.Errorf("%w: game has already started", ErrInvalidPhase)
	ErrNoGame             = fmt.Errorf("%w: no game in progress", ErrInvalidPhase)
	ErrNotHost            = fmt.Errorf("%w: only the host can do that", ErrUnauthorized)
	ErrNotInRoom          = fmt.Errorf("%w: player is not in this room", ErrUnauthorized)
	ErrNotYourTurn        = fmt.Errorf("%w: it is not your turn", ErrUnauthorized)
	ErrAlreadyVoted       = fmt.Errorf("%w: already voted", ErrInvalidInput)
	ErrInvalidVote        = fmt.Errorf("%w: invalid vote target", ErrInvalidInput)
	ErrChatDisabled       = fmt.Errorf("%w: chat is disabled", ErrInvalidPhase)
	ErrInvalidName        = fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	ErrInvalidSettings    = fmt.Errorf("%w: settings out of range", ErrInvalidInput)
	ErrTooManyPlayers     = fmt.Errorf("%w: too many players", ErrRoomFull)
)

// ErrorCode maps an error chain onto a stable code for the wire.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrInvalidPhase):
		return "invalid_phase"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrDuplicateName):
		return "duplicate_name"
	case errors.Is(err, ErrNotEnoughPlayers):
		return "insufficient_players"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
