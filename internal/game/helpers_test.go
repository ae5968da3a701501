package game

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/lox/holdemtables/internal/deck"
	"github.com/lox/holdemtables/internal/randutil"
)

type testTableOption func(*testTableBuilder)

type testTableBuilder struct {
	seed   int64
	config TableConfig
	opts   []TableOption
	stacks []int
}

func withSeed(seed int64) testTableOption {
	return func(b *testTableBuilder) { b.seed = seed }
}

func withBlinds(small, big int) testTableOption {
	return func(b *testTableBuilder) {
		b.config.SmallBlind = small
		b.config.BigBlind = big
	}
}

func withMaxSeats(n int) testTableOption {
	return func(b *testTableBuilder) { b.config.MaxSeats = n }
}

// withStacks seats humans p0, p1, ... with the given chip counts.
func withStacks(stacks ...int) testTableOption {
	return func(b *testTableBuilder) { b.stacks = stacks }
}

func withTableOptions(opts ...TableOption) testTableOption {
	return func(b *testTableBuilder) { b.opts = append(b.opts, opts...) }
}

func newTestTable(opts ...testTableOption) *Table {
	b := &testTableBuilder{
		seed: 42,
		config: TableConfig{
			RoomID:          "test",
			SmallBlind:      10,
			BigBlind:        20,
			MaxSeats:        6,
			AIStartingChips: 1000,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	tableOpts := append([]TableOption{WithLogger(log.New(io.Discard))}, b.opts...)
	t := NewTable(randutil.New(b.seed), b.config, tableOpts...)
	for i, chips := range b.stacks {
		id := fmt.Sprintf("p%d", i)
		if !t.AddPlayer(id, "Player "+id, chips) {
			panic("seat " + id)
		}
	}
	return t
}

// eventRecorder captures every published event.
type eventRecorder struct {
	events []GameEvent
}

func (r *eventRecorder) OnEvent(e GameEvent) { r.events = append(r.events, e) }

func (r *eventRecorder) count(et EventType) int {
	n := 0
	for _, e := range r.events {
		if e.EventType() == et {
			n++
		}
	}
	return n
}

func (r *eventRecorder) types() []EventType {
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

// setHand rigs hole cards, contributions and the board for settlement tests.
func setHand(t *Table, board string, seats map[string]struct {
	hole  string
	total int
	fold  bool
}) {
	t.community = deck.MustParseCards(board)
	t.pot = 0
	for _, s := range t.seats {
		cfg, ok := seats[s.ID]
		if !ok {
			continue
		}
		s.Active = true
		s.HoleCards = deck.MustParseCards(cfg.hole)
		s.TotalBet = cfg.total
		s.Folded = cfg.fold
		s.AllIn = !cfg.fold && s.Chips == 0
		t.pot += cfg.total
	}
}
