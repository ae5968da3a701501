package game

import (
	"slices"

	"github.com/lox/holdemtables/internal/deck"
)

// SeatView is the serializable projection of a seat.
type SeatView struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Chips      int         `json:"chips"`
	IsAI       bool        `json:"is_ai"`
	HoleCards  []deck.Card `json:"hole_cards,omitempty"`
	CurrentBet int         `json:"current_bet"`
	TotalBet   int         `json:"total_bet"`
	Folded     bool        `json:"folded"`
	AllIn      bool        `json:"all_in"`
	Active     bool        `json:"active"`
	HasActed   bool        `json:"has_acted"`
	LastAction Action      `json:"last_action,omitempty"`
	IsDealer   bool        `json:"is_dealer,omitempty"`
	IsCurrent  bool        `json:"is_current,omitempty"`
}

// Snapshot is the serializable projection of a table. Snapshot() includes
// every seat's hole cards; use RedactFor before sending it to a player.
type Snapshot struct {
	RoomID           string          `json:"room_id"`
	HandNumber       int             `json:"hand_number"`
	HandID           string          `json:"hand_id,omitempty"`
	Phase            Phase           `json:"phase"`
	Pot              int             `json:"pot"`
	CurrentBet       int             `json:"current_bet"`
	MinRaise         int             `json:"min_raise"`
	SmallBlind       int             `json:"small_blind"`
	BigBlind         int             `json:"big_blind"`
	DealerIndex      int             `json:"dealer_index"`
	CurrentSeatIndex int             `json:"current_seat_index"`
	CurrentSeatID    string          `json:"current_seat_id,omitempty"`
	CommunityCards   []deck.Card     `json:"community_cards"`
	Seats            []SeatView      `json:"seats"`
	MaxSeats         int             `json:"max_seats"`
	DesiredSeatCount int             `json:"desired_seat_count"`
	GameStarted      bool            `json:"game_started"`
	GameFinished     bool            `json:"game_finished"`
	LastResult       *ShowdownResult `json:"last_result,omitempty"`
	ValidActions     *ValidActions   `json:"valid_actions,omitempty"`
}

// Snapshot captures the full table state.
func (t *Table) Snapshot() Snapshot {
	snap := Snapshot{
		RoomID:           t.cfg.RoomID,
		HandNumber:       t.handNumber,
		HandID:           t.handID,
		Phase:            t.phase,
		Pot:              t.pot,
		CurrentBet:       t.currentBet,
		MinRaise:         t.minRaise,
		SmallBlind:       t.cfg.SmallBlind,
		BigBlind:         t.cfg.BigBlind,
		DealerIndex:      t.dealer,
		CurrentSeatIndex: t.current,
		CommunityCards:   t.CommunityCards(),
		MaxSeats:         t.cfg.MaxSeats,
		DesiredSeatCount: t.desiredSeats,
		GameStarted:      t.gameStarted,
		GameFinished:     t.gameFinished,
		LastResult:       t.lastResult,
	}
	for i, s := range t.seats {
		snap.Seats = append(snap.Seats, SeatView{
			ID:         s.ID,
			Name:       s.Name,
			Chips:      s.Chips,
			IsAI:       s.IsAI,
			HoleCards:  slices.Clone(s.HoleCards),
			CurrentBet: s.CurrentBet,
			TotalBet:   s.TotalBet,
			Folded:     s.Folded,
			AllIn:      s.AllIn,
			Active:     s.Active,
			HasActed:   s.HasActed,
			LastAction: s.LastAction,
			IsDealer:   i == t.dealer,
			IsCurrent:  i == t.current,
		})
	}
	if cs, ok := t.CurrentSeat(); ok {
		snap.CurrentSeatID = cs.ID
	}
	if va, ok := t.ValidActions(); ok {
		snap.ValidActions = &va
	}
	return snap
}

// Seat returns the view of a seat by id.
func (s Snapshot) Seat(id string) (SeatView, bool) {
	for _, v := range s.Seats {
		if v.ID == id {
			return v, true
		}
	}
	return SeatView{}, false
}

// RedactFor returns a copy of the snapshot as viewerID may see it: only the
// viewer's hole cards, plus every hand shown at a showdown. Valid actions are
// kept only for the seat to act.
func (s Snapshot) RedactFor(viewerID string) Snapshot {
	shown := make(map[string]bool)
	if s.Phase == Showdown && s.LastResult != nil && !s.LastResult.FoldOut {
		for _, r := range s.LastResult.Revealed {
			shown[r.SeatID] = true
		}
	}

	out := s
	out.Seats = make([]SeatView, len(s.Seats))
	for i, v := range s.Seats {
		if v.ID != viewerID && !shown[v.ID] {
			v.HoleCards = nil
		} else {
			v.HoleCards = slices.Clone(v.HoleCards)
		}
		out.Seats[i] = v
	}
	if s.CurrentSeatID != viewerID {
		out.ValidActions = nil
	}
	return out
}
