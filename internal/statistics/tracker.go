package statistics

import (
	"slices"
	"sync"

	"github.com/lox/holdemtables/internal/game"
)

// Tracker keeps Statistics per seat name across hands and tables.
type Tracker struct {
	mu       sync.Mutex
	bigBlind int
	seats    map[string]*Statistics
	hands    int
}

func NewTracker(bigBlind int) *Tracker {
	return &Tracker{bigBlind: max(bigBlind, 1), seats: make(map[string]*Statistics)}
}

// Record adds every seat delta of a finished hand. positions holds each
// seat's position as the hand was dealt; missing seats count as late.
func (t *Tracker) Record(res game.ShowdownResult, positions map[string]game.Position) {
	t.mu.Lock()
	defer t.mu.Unlock()

	bb := float64(t.bigBlind)
	t.hands++
	for _, d := range res.Deltas {
		pos, ok := positions[d.SeatID]
		if !ok {
			pos = game.Late
		}
		s := t.seats[d.Name]
		if s == nil {
			s = &Statistics{}
			t.seats[d.Name] = s
		}
		s.Add(HandResult{
			NetBB:          float64(d.Delta) / bb,
			Position:       pos,
			WentToShowdown: !res.FoldOut,
			Won:            d.Won,
			FinalPotBB:     float64(res.Pot) / bb,
		})
	}
}

// Hands returns the number of hands recorded.
func (t *Tracker) Hands() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hands
}

// Names returns the tracked seat names in order.
func (t *Tracker) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.seats))
	for n := range t.seats {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Seat returns a copy of the statistics for name.
func (t *Tracker) Seat(name string) (Statistics, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.seats[name]
	if !ok {
		return Statistics{}, false
	}
	cp := *s
	cp.Values = slices.Clone(s.Values)
	return cp, true
}

// Net returns the summed chip result across seats, in big blinds. Chips only
// move between seats, so it is zero for a complete record.
func (t *Tracker) Net() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var sum float64
	for _, s := range t.seats {
		sum += s.AllBB
	}
	return sum
}
