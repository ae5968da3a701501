// Package game implements a single-table Texas Hold'em cash game.
//
// The main type is Table, which owns the seat roster, the betting state
// machine for the hand in progress, side-pot settlement and the heuristic
// policy used for computer-controlled seats.
//
// # Basic Usage
//
//	t := game.NewTable(randutil.New(42), game.TableConfig{
//		RoomID:     "room-1",
//		SmallBlind: 10,
//		BigBlind:   20,
//		MaxSeats:   6,
//	})
//	t.AddPlayer("alice", "Alice", 1000)
//	t.SetDesiredSeatCount(4) // fills with AI seats
//	if err := t.StartGame(); err != nil {
//		return err
//	}
//	for t.HandInProgress() {
//		if t.CurrentIsAI() {
//			t.PlayAITurn()
//			continue
//		}
//		// wait for the human and call t.HandlePlayerAction
//	}
//
// A Table is not safe for concurrent use. Callers serialize access per table
// (see internal/server).
//
// # Chips
//
// Chips committed during a betting round are added to the pot immediately, so
// the sum of every seat's stack plus the pot stays constant within a hand.
// Only Deposit and a departing seat's withdrawal change the total.
package game
