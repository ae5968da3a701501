package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/holdemtables/internal/game"
	"github.com/lox/holdemtables/internal/randutil"
)

// Identity is an authenticated player. Authentication happens upstream.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OrchestratorConfig controls room defaults and AI pacing.
type OrchestratorConfig struct {
	AIPacing      time.Duration
	MaxAITurns    int
	NextHandDelay time.Duration
	AutoDeal      bool
	OpenRooms     bool
	// BuyIn is the stack a human sits down with unless a Bankroll is set.
	BuyIn    int
	Defaults game.TableConfig
}

// RoomSummary is the public listing of a live room.
type RoomSummary struct {
	ID          string     `json:"id"`
	Phase       game.Phase `json:"phase"`
	HandNumber  int        `json:"hand_number"`
	Seats       int        `json:"seats"`
	Humans      int        `json:"humans"`
	MaxSeats    int        `json:"max_seats"`
	GameStarted bool       `json:"game_started"`
}

// Orchestrator serializes player commands onto tables, runs AI turns and
// fans the results out to persistence and broadcasters.
type Orchestrator struct {
	cfg         OrchestratorConfig
	registry    *Registry
	rooms       RoomStore
	states      StateStore
	results     ResultRecorder
	broadcaster Broadcaster
	bankroll    Bankroll
	clock       quartz.Clock
	base        *log.Logger
	logger      *log.Logger
	seed        int64
	streams     atomic.Uint64
	loops       sync.WaitGroup
}

type OrchestratorOption func(*Orchestrator)

func WithStateStore(s StateStore) OrchestratorOption {
	return func(o *Orchestrator) { o.states = s }
}

func WithResultRecorder(r ResultRecorder) OrchestratorOption {
	return func(o *Orchestrator) { o.results = r }
}

func WithBroadcaster(b Broadcaster) OrchestratorOption {
	return func(o *Orchestrator) { o.broadcaster = b }
}

// WithBankroll sets the source of buy-ins for joining humans.
func WithBankroll(b Bankroll) OrchestratorOption {
	return func(o *Orchestrator) { o.bankroll = b }
}

// WithClock sets the clock used for AI pacing. Tests pass quartz.NewMock.
func WithClock(c quartz.Clock) OrchestratorOption {
	return func(o *Orchestrator) { o.clock = c }
}

func WithLogger(l *log.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.base = l }
}

// WithSeed makes every room's shuffles and AI choices reproducible.
func WithSeed(seed int64) OrchestratorOption {
	return func(o *Orchestrator) { o.seed = seed }
}

func NewOrchestrator(registry *Registry, rooms RoomStore, cfg OrchestratorConfig, opts ...OrchestratorOption) *Orchestrator {
	_, seed := randutil.NewFromTime()
	o := &Orchestrator{
		cfg:         cfg,
		registry:    registry,
		rooms:       rooms,
		states:      NewMemoryStateStore(),
		results:     NewMemoryResultRecorder(),
		broadcaster: MultiBroadcaster{},
		clock:       quartz.NewReal(),
		base:        log.New(io.Discard),
		seed:        seed,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg.BuyIn <= 0 {
		o.cfg.BuyIn = o.cfg.Defaults.BigBlind * 50
	}
	if o.bankroll == nil {
		o.bankroll = FixedBuyIn(o.cfg.BuyIn)
	}
	o.logger = o.base.WithPrefix("orchestrator")
	o.logger.Debug("orchestrator ready", "seed", o.seed, "pacing", o.cfg.AIPacing, "auto_deal", o.cfg.AutoDeal)
	return o
}

// Registry returns the live room registry.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Join seats who in roomID, creating the room from the RoomStore (and any
// saved state) on first use. The stack comes from the Bankroll. Joining a
// room one is already seated in is a reconnect and succeeds.
func (o *Orchestrator) Join(ctx context.Context, roomID string, who Identity) (game.Snapshot, error) {
	if err := ValidateID(roomID); err != nil {
		return game.Snapshot{}, fmt.Errorf("room id: %w", err)
	}
	if err := ValidateID(who.ID); err != nil {
		return game.Snapshot{}, fmt.Errorf("player id: %w", err)
	}
	chips, err := o.bankroll.BuyIn(ctx, roomID, who)
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("buy-in for %s: %w", who.ID, err)
	}
	if chips <= 0 {
		return game.Snapshot{}, fmt.Errorf("%w: %s has no chips to bring", ErrNoBankroll, who.ID)
	}
	room, created, err := o.acquire(ctx, roomID, &who)
	if err != nil {
		return game.Snapshot{}, err
	}
	defer room.mu.Unlock()

	if created {
		o.setStatus(ctx, room, RoomWaiting)
	}
	if err := o.seat(room, who, chips); err != nil {
		if room.table.HumanCount() == 0 {
			o.evict(ctx, room)
		}
		return game.Snapshot{}, err
	}
	o.commit(ctx, room)
	return room.table.Snapshot().RedactFor(who.ID), nil
}

func (o *Orchestrator) seat(room *Room, who Identity, chips int) error {
	t := room.table
	if s, ok := t.Seat(who.ID); ok {
		if s.Left {
			return fmt.Errorf("%w: %s can rejoin when the hand ends", game.ErrAlreadyStarted, who.ID)
		}
		room.logger.Info("player reconnected", "player", who.ID)
		return nil
	}
	// Make room for a human by giving up a filler seat.
	if len(t.Seats()) >= t.Config().MaxSeats && !t.HandInProgress() && t.AICount() > 0 {
		t.RemoveAIPlayer()
	}
	if err := t.Join(who.ID, who.Name, chips); err != nil {
		return err
	}
	if n := t.DesiredSeatCount(); n > 0 && !t.HandInProgress() {
		t.SetDesiredSeatCount(n)
	}
	return nil
}

// Leave removes playerID from the room. The room is evicted, and its saved
// state discarded, once no human remains.
func (o *Orchestrator) Leave(ctx context.Context, roomID, playerID string) error {
	room, _, err := o.acquire(ctx, roomID, nil)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	t := room.table
	if s, ok := t.Seat(playerID); !ok || s.IsAI {
		return fmt.Errorf("%w: %s", ErrNotSeated, playerID)
	}
	chips, ok := t.RemovePlayer(playerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSeated, playerID)
	}
	room.logger.Info("player left", "player", playerID, "chips", chips)

	if t.HumanCount() == 0 {
		o.evict(ctx, room)
		return nil
	}
	o.commit(ctx, room)
	return nil
}

// Act applies a betting action for a human seat. A rejected action changes
// nothing and nothing is broadcast.
func (o *Orchestrator) Act(ctx context.Context, roomID, playerID string, action game.Action, amount int) (game.Snapshot, error) {
	room, _, err := o.acquire(ctx, roomID, nil)
	if err != nil {
		return game.Snapshot{}, err
	}
	defer room.mu.Unlock()

	t := room.table
	s, ok := t.Seat(playerID)
	if !ok {
		return game.Snapshot{}, fmt.Errorf("%w: %s", ErrNotSeated, playerID)
	}
	if s.IsAI {
		return game.Snapshot{}, fmt.Errorf("%w: %s is played by the house", game.ErrNotYourTurn, playerID)
	}
	if err := t.HandlePlayerAction(playerID, action, amount); err != nil {
		room.logger.Debug("action rejected", "player", playerID, "action", action, "amount", amount, "error", err)
		return game.Snapshot{}, err
	}
	o.commit(ctx, room)
	return t.Snapshot().RedactFor(playerID), nil
}

// StartGame deals the next hand. Only the room creator may start a room
// that has one.
func (o *Orchestrator) StartGame(ctx context.Context, roomID, playerID string) error {
	room, _, err := o.acquire(ctx, roomID, nil)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	if room.CreatorID != "" && room.CreatorID != playerID {
		return ErrNotCreator
	}
	t := room.table
	if t.HandInProgress() {
		return game.ErrAlreadyStarted
	}
	if err := t.StartGame(); err != nil {
		// A failed start may still have synced AI seats.
		o.commit(ctx, room)
		return err
	}
	o.setStatus(ctx, room, RoomPlaying)
	o.commit(ctx, room)
	return nil
}

// SetDesiredSeatCount resizes the AI roster between hands and returns the
// clamped count.
func (o *Orchestrator) SetDesiredSeatCount(ctx context.Context, roomID string, n int) (int, error) {
	room, _, err := o.acquire(ctx, roomID, nil)
	if err != nil {
		return 0, err
	}
	defer room.mu.Unlock()

	t := room.table
	if t.HandInProgress() {
		return 0, fmt.Errorf("%w: seat count changes between hands", game.ErrAlreadyStarted)
	}
	stored := t.SetDesiredSeatCount(n)
	o.commit(ctx, room)
	return stored, nil
}

// Configure changes a room's blinds and capacity between hands. Only the
// room creator may, when the room has one. The new configuration is saved to
// the RoomStore and returned.
func (o *Orchestrator) Configure(ctx context.Context, roomID, playerID string, change ConfigData) (RoomConfig, error) {
	room, _, err := o.acquire(ctx, roomID, nil)
	if err != nil {
		return RoomConfig{}, err
	}
	defer room.mu.Unlock()

	if room.CreatorID != "" && room.CreatorID != playerID {
		return RoomConfig{}, ErrNotCreator
	}
	t := room.table
	if t.HandInProgress() {
		return RoomConfig{}, fmt.Errorf("%w: configuration changes between hands", game.ErrAlreadyStarted)
	}

	cur := t.Config()
	want := cur
	if change.SmallBlind > 0 {
		want.SmallBlind = change.SmallBlind
	}
	if change.BigBlind > 0 {
		want.BigBlind = change.BigBlind
	}
	if change.MaxSeats > 0 {
		want.MaxSeats = change.MaxSeats
	}
	if err := want.Validate(); err != nil {
		return RoomConfig{}, fmt.Errorf("%w: %v", game.ErrInvalidAction, err)
	}
	if want.MaxSeats != cur.MaxSeats {
		if err := t.SetMaxSeats(want.MaxSeats); err != nil {
			return RoomConfig{}, err
		}
	}
	if want.SmallBlind != cur.SmallBlind || want.BigBlind != cur.BigBlind {
		if err := t.SetBlinds(want.SmallBlind, want.BigBlind); err != nil {
			return RoomConfig{}, err
		}
	}

	rc := RoomConfig{SmallBlind: want.SmallBlind, BigBlind: want.BigBlind, MaxPlayers: want.MaxSeats, CreatorID: room.CreatorID}
	if err := o.rooms.SaveRoomConfig(context.WithoutCancel(ctx), roomID, rc); err != nil {
		room.logger.Error("save room config", "error", err)
	}
	room.logger.Info("room configured", "blinds", fmt.Sprintf("%d/%d", rc.SmallBlind, rc.BigBlind), "max_seats", rc.MaxPlayers)
	o.commit(ctx, room)
	return rc, nil
}

// Snapshot returns the room as viewerID may see it. An empty viewer gets the
// spectator view.
func (o *Orchestrator) Snapshot(roomID, viewerID string) (game.Snapshot, error) {
	room, _, err := o.acquire(context.Background(), roomID, nil)
	if err != nil {
		return game.Snapshot{}, err
	}
	defer room.mu.Unlock()
	return room.table.Snapshot().RedactFor(viewerID), nil
}

// Rooms lists the live rooms.
func (o *Orchestrator) Rooms() []RoomSummary {
	var out []RoomSummary
	for _, id := range o.registry.List() {
		room, ok := o.registry.Get(id)
		if !ok {
			continue
		}
		room.mu.Lock()
		t := room.table
		out = append(out, RoomSummary{
			ID:          id,
			Phase:       t.Phase(),
			HandNumber:  t.HandNumber(),
			Seats:       len(t.Seats()),
			Humans:      t.HumanCount(),
			MaxSeats:    t.Config().MaxSeats,
			GameStarted: t.GameStarted(),
		})
		room.mu.Unlock()
	}
	return out
}

// Shutdown stops every AI loop, keeping saved state so rooms resume after a
// restart.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	for _, id := range o.registry.List() {
		o.registry.Evict(id)
	}
	done := make(chan struct{})
	go func() {
		o.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire returns the live room locked. With who set, a missing room is
// opened on behalf of who.
func (o *Orchestrator) acquire(ctx context.Context, roomID string, who *Identity) (*Room, bool, error) {
	for {
		var (
			room    *Room
			created bool
		)
		if who != nil {
			var err error
			room, created, err = o.registry.GetOrCreate(roomID, func() (*Room, error) {
				return o.openRoom(ctx, roomID, *who)
			})
			if err != nil {
				return nil, false, err
			}
		} else {
			var ok bool
			if room, ok = o.registry.Get(roomID); !ok {
				return nil, false, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
			}
		}
		room.mu.Lock()
		if room.ctx.Err() == nil {
			return room, created, nil
		}
		// Evicted while we waited for the lock.
		room.mu.Unlock()
		if who == nil {
			return nil, false, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
		}
	}
}

func (o *Orchestrator) openRoom(ctx context.Context, roomID string, who Identity) (*Room, error) {
	rc, err := o.rooms.LoadRoomConfig(ctx, roomID)
	adhoc := errors.Is(err, ErrRoomNotFound) && o.cfg.OpenRooms
	if adhoc {
		d := o.cfg.Defaults
		rc, err = RoomConfig{SmallBlind: d.SmallBlind, BigBlind: d.BigBlind, MaxPlayers: d.MaxSeats, CreatorID: who.ID}, nil
	}
	if err != nil {
		return nil, err
	}
	cfg := rc.Apply(o.cfg.Defaults)
	cfg.RoomID = roomID
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("room %s: %w", roomID, err)
	}
	if adhoc {
		// Statuses and hand results are keyed on the stored room.
		if err := o.rooms.SaveRoomConfig(ctx, roomID, rc); err != nil {
			return nil, fmt.Errorf("register room %s: %w", roomID, err)
		}
	}

	logger := o.logger.With("room", roomID)
	notices := &noticeCollector{}
	bus := game.NewEventBus()
	bus.Subscribe(notices)
	opts := []game.TableOption{
		game.WithEventBus(bus),
		game.WithLogger(o.base.WithPrefix("table")),
	}
	rng := randutil.Derive(o.seed, o.streams.Add(1))

	var table *game.Table
	st, err := o.states.LoadState(ctx, roomID)
	if err != nil {
		logger.Warn("load table state failed, starting fresh", "error", err)
	}
	if st != nil {
		table, err = game.RestoreTable(rng, *st, opts...)
		if err != nil {
			logger.Warn("restore table failed, starting fresh", "error", err)
			table = nil
		} else {
			logger.Info("table restored", "hand", table.HandNumber(), "seats", len(table.Seats()))
		}
	}
	if table == nil {
		table = game.NewTable(rng, cfg, opts...)
	}
	logger.Info("room opened", "creator", rc.CreatorID, "blinds", fmt.Sprintf("%d/%d", cfg.SmallBlind, cfg.BigBlind))
	return newRoom(roomID, rc.CreatorID, table, notices, logger), nil
}

// commit persists and broadcasts the room after a mutation and wakes the AI
// loop. Failures are logged; the table has already moved on. Caller holds
// room.mu.
func (o *Orchestrator) commit(ctx context.Context, room *Room) {
	ctx = context.WithoutCancel(ctx)
	t := room.table
	notices, results := room.notices.drain()

	if err := o.states.SaveState(ctx, room.ID, t.State()); err != nil {
		room.logger.Error("save table state", "error", err)
	}
	o.record(ctx, room, results)
	o.publish(ctx, room, notices)
	o.scheduleAI(room)
}

func (o *Orchestrator) record(ctx context.Context, room *Room, results []game.ShowdownResult) {
	for _, res := range results {
		if err := o.results.RecordHandResult(ctx, room.ID, res.Deltas); err != nil {
			room.logger.Error("record hand result", "hand", res.HandNumber, "error", err)
		}
	}
}

func (o *Orchestrator) publish(ctx context.Context, room *Room, notices []Notice) {
	msg := Message{RoomID: room.ID, Snapshot: room.table.Snapshot(), Notices: notices}
	if err := o.broadcaster.Publish(ctx, room.ID, msg); err != nil {
		room.logger.Warn("broadcast failed", "error", err)
	}
}

// evict tears the room down once its last human has gone. Caller holds
// room.mu.
func (o *Orchestrator) evict(ctx context.Context, room *Room) {
	ctx = context.WithoutCancel(ctx)
	notices, results := room.notices.drain()
	o.record(ctx, room, results)
	o.publish(ctx, room, notices)
	o.registry.Evict(room.ID)
	if err := o.states.RemoveState(ctx, room.ID); err != nil {
		room.logger.Error("remove table state", "error", err)
	}
	o.setStatus(ctx, room, RoomFinished)
	room.logger.Info("room evicted", "hands", room.table.HandNumber())
}

func (o *Orchestrator) setStatus(ctx context.Context, room *Room, status string) {
	if err := o.rooms.SetRoomStatus(ctx, room.ID, status); err != nil {
		room.logger.Error("set room status", "status", status, "error", err)
	}
}

type aiStep int

const (
	stepNone aiStep = iota
	stepTurn
	stepDeal
)

func (s aiStep) String() string {
	switch s {
	case stepTurn:
		return "turn"
	case stepDeal:
		return "deal"
	default:
		return "none"
	}
}

func (o *Orchestrator) nextStep(t *game.Table) aiStep {
	if t.HandInProgress() {
		if t.CurrentIsAI() {
			return stepTurn
		}
		return stepNone
	}
	if o.cfg.AutoDeal && t.GameStarted() && t.GameFinished() && t.HumanCount() > 0 {
		return stepDeal
	}
	return stepNone
}

// scheduleAI starts the room's AI loop if there is work and none is running.
// Caller holds room.mu.
func (o *Orchestrator) scheduleAI(room *Room) {
	if room.aiRunning || room.ctx.Err() != nil || o.nextStep(room.table) == stepNone {
		return
	}
	room.aiRunning = true
	o.loops.Add(1)
	go o.runAI(room)
}

// runAI plays AI turns, and with AutoDeal deals new hands, until a human is
// to act. Each step waits on the clock without holding the room lock.
func (o *Orchestrator) runAI(room *Room) {
	defer o.loops.Done()
	stop := func() {
		room.aiRunning = false
		room.mu.Unlock()
	}

	turns := 0
	for {
		room.mu.Lock()
		step := o.nextStep(room.table)
		if step == stepNone || room.ctx.Err() != nil {
			stop()
			return
		}
		room.mu.Unlock()

		delay := o.cfg.AIPacing
		if step == stepDeal {
			delay = o.cfg.NextHandDelay
		}
		if err := o.wait(room.ctx, delay, step.String()); err != nil {
			room.mu.Lock()
			stop()
			return
		}

		room.mu.Lock()
		if room.ctx.Err() != nil {
			stop()
			return
		}
		if o.nextStep(room.table) != step {
			room.mu.Unlock()
			continue
		}
		switch step {
		case stepTurn:
			if o.cfg.MaxAITurns > 0 && turns >= o.cfg.MaxAITurns {
				room.logger.Error("ai turn limit reached, pausing table", "turns", turns, "hand", room.table.HandNumber())
				stop()
				return
			}
			turns++
			if _, err := room.table.PlayAITurn(); err != nil {
				room.logger.Error("ai turn failed", "error", err)
			}
		case stepDeal:
			turns = 0
			if err := room.table.StartNextHand(); err != nil {
				room.logger.Info("next hand not dealt", "error", err)
			}
		}
		o.commit(room.ctx, room)
		room.mu.Unlock()
	}
}

func (o *Orchestrator) wait(ctx context.Context, d time.Duration, tag string) error {
	if d <= 0 {
		return ctx.Err()
	}
	fired := make(chan struct{})
	timer := o.clock.AfterFunc(d, func() { close(fired) }, "orchestrator", tag)
	defer timer.Stop()
	select {
	case <-fired:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
