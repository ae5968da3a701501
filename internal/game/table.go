package game

import (
	"fmt"
	"io"
	rand "math/rand/v2"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/holdemtables/internal/deck"
)

// TableConfig holds the stakes and capacity of a table.
type TableConfig struct {
	RoomID     string `json:"room_id"`
	SmallBlind int    `json:"small_blind"`
	BigBlind   int    `json:"big_blind"`
	MaxSeats   int    `json:"max_seats"`
	// DesiredSeatCount is the initial AI fill target; zero disables filling
	// until SetDesiredSeatCount is called.
	DesiredSeatCount int `json:"desired_seat_count"`
	AIStartingChips  int `json:"ai_starting_chips"`
}

// DefaultTableConfig returns 10/20 blinds at a six-seat table.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		SmallBlind:      10,
		BigBlind:        20,
		MaxSeats:        6,
		AIStartingChips: 1000,
	}
}

// Validate checks the stakes and capacity.
func (c TableConfig) Validate() error {
	if c.SmallBlind <= 0 || c.BigBlind <= 0 {
		return fmt.Errorf("blinds must be positive, got %d/%d", c.SmallBlind, c.BigBlind)
	}
	if c.SmallBlind > c.BigBlind {
		return fmt.Errorf("small blind %d exceeds big blind %d", c.SmallBlind, c.BigBlind)
	}
	if c.MaxSeats < 2 || c.MaxSeats > 10 {
		return fmt.Errorf("max seats must be between 2 and 10, got %d", c.MaxSeats)
	}
	if c.AIStartingChips < 0 {
		return fmt.Errorf("ai starting chips must not be negative, got %d", c.AIStartingChips)
	}
	return nil
}

func (c TableConfig) withDefaults() TableConfig {
	d := DefaultTableConfig()
	if c.SmallBlind == 0 && c.BigBlind == 0 {
		c.SmallBlind, c.BigBlind = d.SmallBlind, d.BigBlind
	}
	if c.MaxSeats == 0 {
		c.MaxSeats = d.MaxSeats
	}
	if c.AIStartingChips == 0 {
		c.AIStartingChips = d.AIStartingChips
	}
	return c
}

// Table is a single poker table: the seat roster plus the hand in progress.
type Table struct {
	cfg    TableConfig
	rng    *rand.Rand
	deck   *deck.Deck
	bus    EventBus
	logger *log.Logger
	policy Decider

	seats      []*Seat
	dealer     int
	pot        int
	currentBet int
	minRaise   int
	phase      Phase
	current    int
	community  []deck.Card
	history    []ActionRecord

	desiredSeats int
	pendingSync  bool
	lastResult   *ShowdownResult
	handNumber   int
	handID       string

	gameStarted  bool
	gameFinished bool
}

// TableOption configures optional Table collaborators.
type TableOption func(*Table)

// WithEventBus publishes table events to bus.
func WithEventBus(bus EventBus) TableOption {
	return func(t *Table) { t.bus = bus }
}

// WithLogger sets the logger used for engine diagnostics.
func WithLogger(logger *log.Logger) TableOption {
	return func(t *Table) { t.logger = logger }
}

// WithPolicy overrides the decider used by PlayAITurn.
func WithPolicy(p Decider) TableOption {
	return func(t *Table) { t.policy = p }
}

// NewTable creates an empty table. All randomness (shuffles, AI jitter) is
// drawn from rng.
func NewTable(rng *rand.Rand, cfg TableConfig, opts ...TableOption) *Table {
	cfg = cfg.withDefaults()
	t := &Table{
		cfg:     cfg,
		rng:     rng,
		deck:    deck.New(rng),
		bus:     NewEventBus(),
		logger:  log.New(io.Discard),
		dealer:  NoSeat,
		current: NoSeat,
		phase:   Waiting,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.policy == nil {
		t.policy = NewPolicy(rng, DefaultAIConfig())
	}
	t.logger = t.logger.With("room", cfg.RoomID)
	if cfg.DesiredSeatCount > 0 {
		t.desiredSeats = cfg.DesiredSeatCount
		t.pendingSync = true
	}
	return t
}

func (t *Table) publish(e GameEvent) {
	if t.bus != nil {
		t.bus.Publish(e)
	}
}

// EventBus returns the bus the table publishes to.
func (t *Table) EventBus() EventBus { return t.bus }

func (t *Table) RoomID() string        { return t.cfg.RoomID }
func (t *Table) Config() TableConfig   { return t.cfg }
func (t *Table) Phase() Phase          { return t.phase }
func (t *Table) Pot() int              { return t.pot }
func (t *Table) CurrentBet() int       { return t.currentBet }
func (t *Table) MinRaise() int         { return t.minRaise }
func (t *Table) DealerIndex() int      { return t.dealer }
func (t *Table) CurrentSeatIndex() int { return t.current }
func (t *Table) HandNumber() int       { return t.handNumber }
func (t *Table) HandID() string        { return t.handID }
func (t *Table) DesiredSeatCount() int { return t.desiredSeats }
func (t *Table) GameStarted() bool     { return t.gameStarted }
func (t *Table) GameFinished() bool    { return t.gameFinished }

// HandInProgress reports whether a hand is being played. Seat counts and
// stakes can only change when it is false.
func (t *Table) HandInProgress() bool {
	return t.phase.Betting() && !t.gameFinished
}

// CommunityCards returns a copy of the board.
func (t *Table) CommunityCards() []deck.Card {
	return append([]deck.Card(nil), t.community...)
}

// History returns the actions taken in the current (or last) hand.
func (t *Table) History() []ActionRecord {
	return append([]ActionRecord(nil), t.history...)
}

// LastResult returns the settlement of the most recent hand, if any.
func (t *Table) LastResult() *ShowdownResult {
	return t.lastResult
}

// Seats returns copies of every seat in table order.
func (t *Table) Seats() []Seat {
	out := make([]Seat, len(t.seats))
	for i, s := range t.seats {
		out[i] = s.clone()
	}
	return out
}

// Seat returns a copy of the seat with the given id.
func (t *Table) Seat(id string) (Seat, bool) {
	if i := t.indexOf(id); i >= 0 {
		return t.seats[i].clone(), true
	}
	return Seat{}, false
}

// CurrentSeat returns the seat to act, if any.
func (t *Table) CurrentSeat() (Seat, bool) {
	if t.current < 0 || t.current >= len(t.seats) {
		return Seat{}, false
	}
	return t.seats[t.current].clone(), true
}

// CurrentIsAI reports whether the seat to act is computer-controlled.
func (t *Table) CurrentIsAI() bool {
	s, ok := t.CurrentSeat()
	return ok && s.IsAI
}

// TotalChips returns the chips on the table: every stack plus the pot.
func (t *Table) TotalChips() int {
	total := t.pot
	for _, s := range t.seats {
		total += s.Chips
	}
	return total
}

// SetBlinds changes the stakes between hands.
func (t *Table) SetBlinds(small, big int) error {
	if t.HandInProgress() {
		return fmt.Errorf("%w: cannot change blinds mid-hand", ErrAlreadyStarted)
	}
	cfg := t.cfg
	cfg.SmallBlind, cfg.BigBlind = small, big
	if err := cfg.Validate(); err != nil {
		return err
	}
	t.cfg = cfg
	t.logger.Info("blinds", "small", small, "big", big)
	t.publishConfig()
	return nil
}

// SetMaxSeats changes the table capacity between hands. AI seats are given
// up to fit; it cannot drop below the number of seated humans.
func (t *Table) SetMaxSeats(n int) error {
	if t.HandInProgress() {
		return fmt.Errorf("%w: cannot change capacity mid-hand", ErrAlreadyStarted)
	}
	cfg := t.cfg
	cfg.MaxSeats = n
	if err := cfg.Validate(); err != nil {
		return err
	}
	if humans := t.HumanCount(); n < humans {
		return fmt.Errorf("%w: %d players seated", ErrSeatFull, humans)
	}
	t.cfg = cfg
	if t.desiredSeats > n {
		t.desiredSeats = n
		t.syncAIPlayers()
	}
	for len(t.seats) > n && t.RemoveAIPlayer() {
	}
	t.logger.Info("max seats", "max", n, "seats", len(t.seats))
	t.publishConfig()
	return nil
}

func (t *Table) publishConfig() {
	t.publish(ConfigChangedEvent{
		SmallBlind: t.cfg.SmallBlind,
		BigBlind:   t.cfg.BigBlind,
		MaxSeats:   t.cfg.MaxSeats,
		timestamp:  time.Now(),
	})
}

func (t *Table) indexOf(id string) int {
	for i, s := range t.seats {
		if s.ID == id {
			return i
		}
	}
	return NoSeat
}

// nextIndex returns the first seat after from (wrapping, from excluded)
// matching pred, or NoSeat.
func (t *Table) nextIndex(from int, pred func(*Seat) bool) int {
	n := len(t.seats)
	if n == 0 {
		return NoSeat
	}
	for i := 1; i <= n; i++ {
		idx := ((from+i)%n + n) % n
		if pred(t.seats[idx]) {
			return idx
		}
	}
	return NoSeat
}

func (t *Table) count(pred func(*Seat) bool) int {
	n := 0
	for _, s := range t.seats {
		if pred(s) {
			n++
		}
	}
	return n
}

func funded(s *Seat) bool  { return s.Chips > 0 && !s.Left }
func active(s *Seat) bool  { return s.Active }
func canAct(s *Seat) bool  { return s.CanAct() }
func inHand(s *Seat) bool  { return s.InHand() }
func isHuman(s *Seat) bool { return !s.IsAI && !s.Left }
