package server

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/lox/holdemtables/internal/game"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotCreator   = errors.New("only the room creator can start the game")
	ErrNotSeated    = errors.New("player is not seated")
	ErrNoBankroll   = errors.New("no chips available")
	ErrInvalidID    = errors.New("invalid id")
)

// Room and player ids end up in storage keys, file names and NATS subject
// tokens, so they are limited to a safe alphabet.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateID reports whether id may name a room or a player.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// errorCode maps an error to the code sent to clients.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrNotCreator):
		return "not_creator"
	case errors.Is(err, ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, ErrNoBankroll):
		return "no_bankroll"
	case errors.Is(err, ErrNotSeated), errors.Is(err, game.ErrUnknownSeat):
		return "not_seated"
	case errors.Is(err, game.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, game.ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, game.ErrSeatFull):
		return "seat_full"
	case errors.Is(err, game.ErrDuplicateSeat):
		return "already_seated"
	case errors.Is(err, game.ErrInsufficientPlayers):
		return "insufficient_players"
	case errors.Is(err, game.ErrAlreadyStarted):
		return "hand_in_progress"
	case errors.Is(err, game.ErrNotStarted):
		return "not_started"
	default:
		return "internal_error"
	}
}
