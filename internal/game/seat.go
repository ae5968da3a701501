package game

import "github.com/lox/holdemtables/internal/deck"

// NoSeat marks the absence of a seat that can act.
const NoSeat = -1

// Seat is a player at the table, human or AI.
type Seat struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Chips         int         `json:"chips"`
	IsAI          bool        `json:"is_ai"`
	HoleCards     []deck.Card `json:"hole_cards,omitempty"`
	CurrentBet    int         `json:"current_bet"`
	TotalBet      int         `json:"total_bet"`
	Folded        bool        `json:"folded"`
	AllIn         bool        `json:"all_in"`
	Active        bool        `json:"active"`
	HasActed      bool        `json:"has_acted"`
	LastAction    Action      `json:"last_action"`
	StartingChips int         `json:"starting_chips"`
	// Left is set when the seat leaves mid-hand; it is removed once the hand ends.
	Left bool `json:"left,omitempty"`
}

// CanAct reports whether the seat can still make betting decisions this hand.
func (s *Seat) CanAct() bool {
	return s.Active && !s.Folded && !s.AllIn && s.Chips > 0
}

// InHand reports whether the seat still contests the pot.
func (s *Seat) InHand() bool {
	return s.Active && !s.Folded
}

func (s *Seat) resetForHand() {
	s.HoleCards = nil
	s.CurrentBet = 0
	s.TotalBet = 0
	s.AllIn = false
	s.HasActed = false
	s.LastAction = NoAction
	s.Active = s.Chips > 0 && !s.Left
	s.Folded = !s.Active
	s.StartingChips = s.Chips
}

// commit moves up to amount chips from the stack into the seat's bets and
// returns how many were moved.
func (s *Seat) commit(amount int) int {
	if amount > s.Chips {
		amount = s.Chips
	}
	s.Chips -= amount
	s.CurrentBet += amount
	s.TotalBet += amount
	if s.Chips == 0 && s.Active && !s.Folded {
		s.AllIn = true
	}
	return amount
}

func (s Seat) clone() Seat {
	if s.HoleCards != nil {
		s.HoleCards = append([]deck.Card(nil), s.HoleCards...)
	}
	return s
}
