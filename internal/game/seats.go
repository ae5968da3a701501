package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// aiNames is the roster used for filler seats, in fill order.
var aiNames = []string{"Alice", "Bob", "Charlie", "Diana", "Eve", "Frank", "Grace", "Henry"}

// maxSyncSteps bounds a single AI sync pass.
const maxSyncSteps = 10

// Join seats a player. It fails with ErrSeatFull or ErrDuplicateSeat. A seat
// that joins during a hand sits out until the next one.
func (t *Table) Join(id, name string, chips int) error {
	if id == "" {
		return fmt.Errorf("%w: empty seat id", ErrInvalidAction)
	}
	if t.indexOf(id) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateSeat, id)
	}
	if len(t.seats) >= t.cfg.MaxSeats {
		return fmt.Errorf("%w: %d/%d seats", ErrSeatFull, len(t.seats), t.cfg.MaxSeats)
	}
	if chips < 0 {
		return fmt.Errorf("%w: negative stack", ErrInvalidAction)
	}
	t.addSeat(&Seat{ID: id, Name: name, Chips: chips})
	return nil
}

// AddPlayer seats a human and reports whether it succeeded.
func (t *Table) AddPlayer(id, name string, chips int) bool {
	if err := t.Join(id, name, chips); err != nil {
		t.logger.Debug("seat rejected", "seat", id, "error", err)
		return false
	}
	return true
}

func (t *Table) addSeat(s *Seat) {
	mid := t.HandInProgress()
	s.Active = s.Chips > 0 && !mid
	s.Folded = mid
	s.StartingChips = s.Chips
	t.seats = append(t.seats, s)
	t.logger.Info("seat joined", "seat", s.ID, "name", s.Name, "ai", s.IsAI, "chips", s.Chips)
	t.publish(SeatJoinedEvent{SeatID: s.ID, Name: s.Name, IsAI: s.IsAI, Chips: s.Chips, timestamp: time.Now()})
}

// AddAIPlayer appends a filler seat between hands.
func (t *Table) AddAIPlayer() bool {
	if t.HandInProgress() || len(t.seats) >= t.cfg.MaxSeats {
		return false
	}
	t.addSeat(&Seat{
		ID:    t.newAIID(),
		Name:  t.nextAIName(),
		Chips: t.cfg.AIStartingChips,
		IsAI:  true,
	})
	return true
}

func (t *Table) newAIID() string {
	for {
		id := "ai-" + uuid.NewString()[:8]
		if t.indexOf(id) < 0 {
			return id
		}
	}
}

func (t *Table) nextAIName() string {
	used := make(map[string]bool, len(t.seats))
	for _, s := range t.seats {
		used[s.Name] = true
	}
	for _, name := range aiNames {
		if !used[name] {
			return name
		}
	}
	for i := len(aiNames) + 1; ; i++ {
		if name := fmt.Sprintf("Bot %d", i); !used[name] {
			return name
		}
	}
}

// RemoveAIPlayer removes the most recently added AI seat between hands.
func (t *Table) RemoveAIPlayer() bool {
	if t.HandInProgress() {
		return false
	}
	for i := len(t.seats) - 1; i >= 0; i-- {
		if t.seats[i].IsAI {
			s := t.seats[i]
			t.removeAt(i)
			t.publish(SeatLeftEvent{SeatID: s.ID, Name: s.Name, IsAI: true, Chips: s.Chips, timestamp: time.Now()})
			return true
		}
	}
	return false
}

// RemovePlayer removes a seat and returns the stack it leaves with. During a
// hand the seat is folded, its remaining stack is withdrawn immediately and
// the seat itself is removed once the hand ends.
func (t *Table) RemovePlayer(id string) (int, bool) {
	i := t.indexOf(id)
	if i < 0 || t.seats[i].Left {
		return 0, false
	}
	s := t.seats[i]
	chips := s.Chips

	if !t.HandInProgress() {
		t.removeAt(i)
		t.logger.Info("seat left", "seat", id, "chips", chips)
		t.publish(SeatLeftEvent{SeatID: id, Name: s.Name, IsAI: s.IsAI, Chips: chips, timestamp: time.Now()})
		return chips, true
	}

	wasInHand := s.InHand()
	wasCurrent := i == t.current
	s.Chips = 0
	s.Left = true
	t.logger.Info("seat left mid-hand", "seat", id, "chips", chips)
	t.publish(SeatLeftEvent{SeatID: id, Name: s.Name, IsAI: s.IsAI, Chips: chips, Deferred: true, timestamp: time.Now()})

	if wasInHand {
		s.Folded = true
		s.LastAction = Fold
		t.record(s, Fold, 0, false)
		if err := t.progress(i, wasCurrent); err != nil {
			t.logger.Error("advance after leave", "error", err)
		}
	}
	return chips, true
}

// removeAt deletes a seat, keeping the dealer button on the same logical
// position so the next hand's dealer is the seat that followed.
func (t *Table) removeAt(i int) {
	t.seats = append(t.seats[:i], t.seats[i+1:]...)
	if t.dealer >= i {
		t.dealer--
	}
	if t.current > i {
		t.current--
	} else if t.current == i {
		t.current = NoSeat
	}
}

func (t *Table) pruneLeft() {
	for i := len(t.seats) - 1; i >= 0; i-- {
		if t.seats[i].Left {
			t.removeAt(i)
		}
	}
}

// Deposit credits chips from outside the game, e.g. rewards.
func (t *Table) Deposit(id string, amount int) error {
	if t.HandInProgress() {
		return fmt.Errorf("%w: deposits are only accepted between hands", ErrAlreadyStarted)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: deposit must be positive", ErrInvalidAction)
	}
	i := t.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSeat, id)
	}
	s := t.seats[i]
	s.Chips += amount
	t.publish(DepositEvent{SeatID: id, Amount: amount, Chips: s.Chips, timestamp: time.Now()})
	return nil
}

// HumanCount returns the number of seated humans.
func (t *Table) HumanCount() int {
	return t.count(isHuman)
}

// AICount returns the number of AI seats.
func (t *Table) AICount() int {
	return t.count(func(s *Seat) bool { return s.IsAI && !s.Left })
}

// SetDesiredSeatCount clamps n to [max(3, humans), MaxSeats], stores it and
// returns the stored value. AI seats are synced now if no hand is running,
// otherwise when the next hand starts.
func (t *Table) SetDesiredSeatCount(n int) int {
	lo := max(3, t.HumanCount())
	hi := t.cfg.MaxSeats
	n = max(min(n, hi), min(lo, hi))

	changed := n != t.desiredSeats
	t.desiredSeats = n
	if t.HandInProgress() {
		t.pendingSync = true
	} else {
		t.syncAIPlayers()
	}
	if changed {
		t.logger.Info("desired seat count", "desired", n)
	}
	return n
}

// syncAIPlayers adds or removes AI seats until the table holds the desired
// number of seats. Humans are never removed. It returns the number of seats
// added and removed; a second call with no roster change does nothing.
func (t *Table) syncAIPlayers() (added, removed int) {
	t.pendingSync = false
	if t.desiredSeats == 0 || t.HandInProgress() {
		return 0, 0
	}
	target := max(t.desiredSeats, t.HumanCount())
loop:
	for steps := 0; steps < maxSyncSteps; steps++ {
		seated := t.count(func(s *Seat) bool { return !s.Left })
		switch {
		case seated < target && t.AddAIPlayer():
			added++
		case seated > target && t.RemoveAIPlayer():
			removed++
		default:
			break loop
		}
	}
	if added > 0 || removed > 0 {
		t.publish(SeatCountChangedEvent{
			Desired:   t.desiredSeats,
			Seats:     len(t.seats),
			Added:     added,
			Removed:   removed,
			timestamp: time.Now(),
		})
	}
	return added, removed
}
