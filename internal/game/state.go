package game

import (
	"fmt"
	rand "math/rand/v2"

	jsoniter "github.com/json-iterator/go"

	"github.com/lox/holdemtables/internal/deck"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// stateVersion is bumped whenever TableState changes incompatibly.
const stateVersion = 1

// TableState is the persisted form of a Table, sufficient to resume a hand
// after a restart.
type TableState struct {
	Version      int             `json:"version"`
	Config       TableConfig     `json:"config"`
	Seats        []Seat          `json:"seats"`
	Dealer       int             `json:"dealer"`
	Pot          int             `json:"pot"`
	CurrentBet   int             `json:"current_bet"`
	MinRaise     int             `json:"min_raise"`
	Phase        Phase           `json:"phase"`
	Current      int             `json:"current"`
	Community    []deck.Card     `json:"community"`
	Deck         []deck.Card     `json:"deck"`
	History      []ActionRecord  `json:"history,omitempty"`
	DesiredSeats int             `json:"desired_seats"`
	PendingSync  bool            `json:"pending_sync,omitempty"`
	LastResult   *ShowdownResult `json:"last_result,omitempty"`
	HandNumber   int             `json:"hand_number"`
	HandID       string          `json:"hand_id,omitempty"`
	GameStarted  bool            `json:"game_started"`
	GameFinished bool            `json:"game_finished"`
}

// State captures everything needed to rebuild the table.
func (t *Table) State() TableState {
	return TableState{
		Version:      stateVersion,
		Config:       t.cfg,
		Seats:        t.Seats(),
		Dealer:       t.dealer,
		Pot:          t.pot,
		CurrentBet:   t.currentBet,
		MinRaise:     t.minRaise,
		Phase:        t.phase,
		Current:      t.current,
		Community:    t.CommunityCards(),
		Deck:         t.deck.Cards(),
		History:      t.History(),
		DesiredSeats: t.desiredSeats,
		PendingSync:  t.pendingSync,
		LastResult:   t.lastResult,
		HandNumber:   t.handNumber,
		HandID:       t.handID,
		GameStarted:  t.gameStarted,
		GameFinished: t.gameFinished,
	}
}

// EncodeState serializes the table state as JSON.
func (t *Table) EncodeState() ([]byte, error) {
	return t.State().Encode()
}

// Encode serializes st in the format read by DecodeState.
func (st TableState) Encode() ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode table state: %w", err)
	}
	return data, nil
}

// DecodeState parses state written by EncodeState.
func DecodeState(data []byte) (TableState, error) {
	var st TableState
	if err := json.Unmarshal(data, &st); err != nil {
		return TableState{}, fmt.Errorf("decode table state: %w", err)
	}
	if st.Version != stateVersion {
		return TableState{}, fmt.Errorf("decode table state: unsupported version %d", st.Version)
	}
	return st, nil
}

// RestoreTable rebuilds a table from persisted state.
func RestoreTable(rng *rand.Rand, st TableState, opts ...TableOption) (*Table, error) {
	if err := st.Config.withDefaults().Validate(); err != nil {
		return nil, fmt.Errorf("restore table: %w", err)
	}
	t := NewTable(rng, st.Config, opts...)
	if err := t.deck.Restore(st.Deck); err != nil {
		return nil, fmt.Errorf("restore table: %w", err)
	}
	for i := range st.Seats {
		s := st.Seats[i].clone()
		t.seats = append(t.seats, &s)
	}
	if st.Current >= len(t.seats) || st.Dealer >= len(t.seats) {
		return nil, fmt.Errorf("restore table: seat index out of range")
	}
	t.dealer = st.Dealer
	t.pot = st.Pot
	t.currentBet = st.CurrentBet
	t.minRaise = st.MinRaise
	t.phase = st.Phase
	t.current = st.Current
	t.community = append(t.community[:0], st.Community...)
	t.history = append([]ActionRecord(nil), st.History...)
	t.desiredSeats = st.DesiredSeats
	t.pendingSync = st.PendingSync
	t.lastResult = st.LastResult
	t.handNumber = st.HandNumber
	t.handID = st.HandID
	t.gameStarted = st.GameStarted
	t.gameFinished = st.GameFinished
	return t, nil
}
