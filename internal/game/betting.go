package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lox/holdemtables/internal/deck"
)

// StartGame deals the first hand. It needs at least two funded seats.
func (t *Table) StartGame() error {
	if t.HandInProgress() {
		return ErrAlreadyStarted
	}
	return t.startHand()
}

// StartNextHand deals the next hand after a showdown or fold-out. With fewer
// than two funded seats the table returns to waiting and
// ErrInsufficientPlayers is returned.
func (t *Table) StartNextHand() error {
	if t.HandInProgress() {
		return ErrAlreadyStarted
	}
	return t.startHand()
}

func (t *Table) startHand() error {
	t.pruneLeft()
	if t.pendingSync || t.desiredSeats > 0 {
		t.syncAIPlayers()
	}
	if n := t.count(funded); n < 2 {
		t.phase = Waiting
		t.gameStarted = false
		t.current = NoSeat
		return fmt.Errorf("%w: %d funded seats", ErrInsufficientPlayers, n)
	}
	t.gameStarted = true
	return t.beginHand()
}

func (t *Table) beginHand() error {
	for _, s := range t.seats {
		s.resetForHand()
	}
	t.community = t.community[:0]
	t.history = nil
	t.pot = 0
	t.lastResult = nil
	t.gameFinished = false
	t.handNumber++
	t.handID = uuid.NewString()

	t.dealer = t.nextIndex(t.dealer, active)
	t.deck.Reset()

	// Two passes, one card each, starting left of the dealer.
	for pass := 0; pass < 2; pass++ {
		for i := 1; i <= len(t.seats); i++ {
			s := t.seats[(t.dealer+i)%len(t.seats)]
			if !s.Active {
				continue
			}
			c, err := t.deck.Deal()
			if err != nil {
				t.logger.Error("deal hole cards", "error", err)
				return err
			}
			s.HoleCards = append(s.HoleCards, c)
		}
	}

	t.phase = PreFlop
	sb, bb := t.blindSeats()
	t.publish(HandStartedEvent{
		HandNumber: t.handNumber,
		HandID:     t.handID,
		Dealer:     t.seats[t.dealer].ID,
		SmallBlind: t.seats[sb].ID,
		BigBlind:   t.seats[bb].ID,
		Seats:      t.count(active),
		timestamp:  time.Now(),
	})
	t.postBlind(sb, t.cfg.SmallBlind)
	t.postBlind(bb, t.cfg.BigBlind)
	t.currentBet = max(t.seats[sb].CurrentBet, t.seats[bb].CurrentBet)
	t.minRaise = t.cfg.BigBlind

	if t.count(active) == 2 {
		// Heads-up: the dealer is the small blind and acts first.
		t.current = t.nextIndex(t.dealer-1, canAct)
	} else {
		t.current = t.nextIndex(bb, canAct)
	}

	t.logger.Info("hand started",
		"hand", t.handNumber,
		"dealer", t.seats[t.dealer].ID,
		"seats", t.count(active),
		"pot", t.pot)

	if t.IsRoundComplete() {
		return t.advancePhase()
	}
	return nil
}

func (t *Table) blindSeats() (sb, bb int) {
	if t.count(active) == 2 {
		sb = t.dealer
	} else {
		sb = t.nextIndex(t.dealer, active)
	}
	bb = t.nextIndex(sb, active)
	return sb, bb
}

func (t *Table) postBlind(i, amount int) {
	s := t.seats[i]
	paid := s.commit(amount)
	t.pot += paid
	t.record(s, Bet, paid, true)
}

// HandlePlayerAction applies a betting action for seatID. For bet and raise,
// amount is the seat's total bet for the round after raising. A rejected
// action leaves the table unchanged.
func (t *Table) HandlePlayerAction(seatID string, action Action, amount int) error {
	if !t.HandInProgress() {
		return ErrNotStarted
	}
	i := t.indexOf(seatID)
	if i < 0 {
		return fmt.Errorf("%w: %w %q", ErrInvalidAction, ErrUnknownSeat, seatID)
	}
	s := t.seats[i]
	if !s.Active || s.Folded || s.AllIn {
		return fmt.Errorf("%w: %s cannot act (folded=%t all_in=%t)", ErrInvalidAction, seatID, s.Folded, s.AllIn)
	}
	if i != t.current {
		return fmt.Errorf("%w: %s", ErrNotYourTurn, seatID)
	}

	if err := t.apply(s, action, amount); err != nil {
		return err
	}
	return t.progress(i, true)
}

func (t *Table) apply(s *Seat, action Action, amount int) error {
	owed := t.currentBet - s.CurrentBet

	switch action {
	case Fold:
		s.Folded = true
		t.commitAction(s, Fold, 0)

	case Check:
		if owed > 0 {
			return fmt.Errorf("%w: cannot check facing %d", ErrInvalidAction, owed)
		}
		t.commitAction(s, Check, 0)

	case Call:
		if owed == 0 {
			t.commitAction(s, Check, 0)
			return nil
		}
		paid := s.commit(owed)
		t.pot += paid
		if s.AllIn {
			t.commitAction(s, AllIn, paid)
		} else {
			t.commitAction(s, Call, paid)
		}

	case Bet, Raise:
		return t.raiseTo(s, amount, false)

	case AllIn:
		target := s.CurrentBet + s.Chips
		if target <= t.currentBet {
			paid := s.commit(s.Chips)
			t.pot += paid
			t.commitAction(s, AllIn, paid)
			return nil
		}
		return t.raiseTo(s, target, true)

	default:
		return fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}
	return nil
}

// raiseTo validates and applies a bet or raise to a round total of target.
//
// Betting reopens only on a full raise (at least the previous raise size).
// A short all-in raises the bet to call but does not let seats that have
// already acted raise again.
func (t *Table) raiseTo(s *Seat, target int, allIn bool) error {
	maxTarget := s.CurrentBet + s.Chips
	if target <= t.currentBet {
		return fmt.Errorf("%w: raise to %d does not exceed current bet %d", ErrInvalidAction, target, t.currentBet)
	}
	if target > maxTarget {
		return fmt.Errorf("%w: raise to %d exceeds stack (max %d)", ErrInvalidAction, target, maxTarget)
	}
	if s.HasActed {
		return fmt.Errorf("%w: betting is not reopened for %s", ErrInvalidAction, s.ID)
	}
	increment := target - t.currentBet
	full := increment >= t.minRaise
	if !full && target != maxTarget {
		return fmt.Errorf("%w: minimum raise is to %d", ErrInvalidAction, t.currentBet+t.minRaise)
	}

	name := Raise
	if t.currentBet == 0 {
		name = Bet
	}
	paid := s.commit(target - s.CurrentBet)
	t.pot += paid
	if s.AllIn || allIn {
		name = AllIn
	}
	if full {
		t.minRaise = increment
		for _, other := range t.seats {
			if other != s && other.CanAct() {
				other.HasActed = false
			}
		}
	}
	t.currentBet = target
	t.commitAction(s, name, paid)
	return nil
}

func (t *Table) commitAction(s *Seat, action Action, paid int) {
	s.HasActed = true
	s.LastAction = action
	t.record(s, action, paid, false)
}

func (t *Table) record(s *Seat, action Action, paid int, blind bool) {
	rec := ActionRecord{
		Phase:  t.phase,
		SeatID: s.ID,
		Name:   s.Name,
		Action: action,
		Paid:   paid,
		To:     s.CurrentBet,
		Pot:    t.pot,
		Blind:  blind,
	}
	t.history = append(t.history, rec)
	t.logger.Debug("action", "seat", s.ID, "action", action, "paid", paid, "to", s.CurrentBet, "pot", t.pot)
	t.publish(ActionTakenEvent{Record: rec, timestamp: time.Now()})
}

// progress moves the hand on after seat i acted or dropped out. moveTurn is
// false when the seat was not the one to act.
func (t *Table) progress(i int, moveTurn bool) error {
	if t.count(inHand) <= 1 {
		t.finishFoldOut()
		return nil
	}
	if t.IsRoundComplete() {
		return t.advancePhase()
	}
	if moveTurn {
		t.current = t.nextIndex(i, canAct)
	}
	return nil
}

// IsRoundComplete reports whether the current betting round is over: every
// seat that can act has matched the bet and acted, at most one seat is left
// in the hand, or nobody (or only one seat already covering the bet) can act.
func (t *Table) IsRoundComplete() bool {
	if t.count(inHand) <= 1 {
		return true
	}
	var actors []*Seat
	for _, s := range t.seats {
		if s.CanAct() {
			actors = append(actors, s)
		}
	}
	if len(actors) == 0 {
		return true
	}
	if len(actors) == 1 && actors[0].CurrentBet >= t.currentBet {
		return true
	}
	for _, s := range actors {
		if s.CurrentBet != t.currentBet || !s.HasActed {
			return false
		}
	}
	return true
}

func (t *Table) advancePhase() error {
	for {
		for _, s := range t.seats {
			s.CurrentBet = 0
			s.HasActed = false
		}
		t.currentBet = 0
		t.minRaise = t.cfg.BigBlind
		t.current = NoSeat

		var n int
		switch t.phase {
		case PreFlop:
			t.phase, n = Flop, 3
		case Flop:
			t.phase, n = Turn, 1
		case Turn:
			t.phase, n = River, 1
		default:
			t.finishShowdown()
			return nil
		}

		if err := t.deck.Burn(); err != nil {
			t.logger.Error("burn card", "phase", t.phase, "error", err)
			return err
		}
		cards, err := t.deck.DealN(n)
		if err != nil {
			t.logger.Error("deal community cards", "phase", t.phase, "error", err)
			return err
		}
		t.community = append(t.community, cards...)
		t.logger.Debug("phase", "phase", t.phase, "board", deck.FormatCards(t.community), "pot", t.pot)
		t.publish(PhaseChangedEvent{
			Phase:          t.phase,
			CommunityCards: t.CommunityCards(),
			Pot:            t.pot,
			timestamp:      time.Now(),
		})

		// Run the board out when fewer than two seats can still bet.
		if t.count(canAct) >= 2 {
			t.current = t.nextIndex(t.dealer, canAct)
			return nil
		}
	}
}

// ValidActions describes what the seat to act may do.
type ValidActions struct {
	SeatID     string   `json:"seat_id"`
	Actions    []Action `json:"actions"`
	CallAmount int      `json:"call_amount"`
	MinRaiseTo int      `json:"min_raise_to"`
	MaxRaiseTo int      `json:"max_raise_to"`
}

// Allows reports whether a is among the legal actions.
func (v ValidActions) Allows(a Action) bool {
	for _, x := range v.Actions {
		if x == a {
			return true
		}
	}
	return false
}

// ValidActions returns the legal actions for the seat to act.
func (t *Table) ValidActions() (ValidActions, bool) {
	if !t.HandInProgress() || t.current == NoSeat {
		return ValidActions{}, false
	}
	s := t.seats[t.current]
	owed := t.currentBet - s.CurrentBet
	va := ValidActions{
		SeatID:     s.ID,
		Actions:    []Action{Fold},
		CallAmount: min(owed, s.Chips),
		MaxRaiseTo: s.CurrentBet + s.Chips,
	}
	if owed == 0 {
		va.Actions = append(va.Actions, Check)
	} else {
		va.Actions = append(va.Actions, Call)
	}
	canRaise := !s.HasActed && s.Chips > owed
	if canRaise {
		va.MinRaiseTo = min(t.currentBet+t.minRaise, va.MaxRaiseTo)
		if t.currentBet == 0 {
			va.Actions = append(va.Actions, Bet)
		} else {
			va.Actions = append(va.Actions, Raise)
		}
	}
	if canRaise || s.Chips <= owed {
		va.Actions = append(va.Actions, AllIn)
	}
	return va, true
}
