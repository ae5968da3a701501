package game

import "errors"

var (
	ErrInvalidAction       = errors.New("invalid action")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrInsufficientPlayers = errors.New("insufficient players")
	ErrAlreadyStarted      = errors.New("hand already in progress")
	ErrNotStarted          = errors.New("no hand in progress")
	ErrSeatFull            = errors.New("table is full")
	ErrDuplicateSeat       = errors.New("already seated")
	ErrUnknownSeat         = errors.New("unknown seat")
)
