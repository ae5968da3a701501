package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdemtables/internal/game"
)

func TestOrchestratorJoinFillsAISeats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	snap, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)

	require.Len(t, snap.Seats, 3)
	assert.Equal(t, "alice", snap.Seats[0].ID)
	assert.Equal(t, 1000, snap.Seats[0].Chips, "default buy-in")
	assert.True(t, snap.Seats[1].IsAI)
	assert.True(t, snap.Seats[2].IsAI)
	assert.Equal(t, 10, snap.SmallBlind)
	assert.Equal(t, 20, snap.BigBlind)
	assert.Equal(t, 1, h.orch.Registry().Len())

	st, err := h.states.LoadState(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, st, "state is saved after every mutation")
	assert.Len(t, st.Seats, 3)
	assert.Equal(t, RoomWaiting, h.rooms.Status("r1"))

	var kinds []NoticeKind
	for _, n := range h.bcast.notices() {
		kinds = append(kinds, n.Kind)
	}
	assert.Contains(t, kinds, NoticeJoined)
	assert.Contains(t, kinds, NoticeSeats)
}

func TestOrchestratorRejoinIsReconnect(t *testing.T) {
	stacks := []int{500, 2000}
	h := newHarness(t, withOption(WithBankroll(bankrollFunc(func(context.Context, string, Identity) (int, error) {
		next := stacks[0]
		stacks = stacks[1:]
		return next, nil
	}))))
	ctx := context.Background()

	_, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)
	snap, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)

	require.Len(t, snap.Seats, 3)
	assert.Equal(t, 500, snap.Seats[0].Chips, "a reconnect keeps the original stack")
}

func TestOrchestratorJoinStackComesFromBankroll(t *testing.T) {
	broke := errors.New("account frozen")
	h := newHarness(t, withOption(WithBankroll(bankrollFunc(func(_ context.Context, roomID string, who Identity) (int, error) {
		require.Equal(t, "r1", roomID)
		switch who.ID {
		case "alice":
			return 750, nil
		case "bob":
			return 0, nil
		default:
			return 0, broke
		}
	}))))
	ctx := context.Background()

	snap, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)
	v, ok := snap.Seat("alice")
	require.True(t, ok)
	assert.Equal(t, 750, v.Chips)

	_, err = h.orch.Join(ctx, "r1", bob)
	require.ErrorIs(t, err, ErrNoBankroll)
	assert.Equal(t, "no_bankroll", errorCode(err))

	_, err = h.orch.Join(ctx, "r1", Identity{ID: "carol", Name: "Carol"})
	require.ErrorIs(t, err, broke)
	assert.Len(t, h.snapshot("").Seats, 3, "refused players are not seated")
}

func TestOrchestratorJoinRejectsUnsafeIDs(t *testing.T) {
	h := newHarness(t, withConfig(func(c *OrchestratorConfig) { c.OpenRooms = true }))
	ctx := context.Background()

	for _, tc := range []struct {
		room string
		who  Identity
	}{
		{"r1", Identity{ID: ""}},
		{"r1", Identity{ID: "eve.admin"}},
		{"r1", Identity{ID: "*"}},
		{"r1", Identity{ID: ">"}},
		{"lobby.*", alice},
		{"a b", alice},
		{"", alice},
	} {
		_, err := h.orch.Join(ctx, tc.room, tc.who)
		require.ErrorIsf(t, err, ErrInvalidID, "room %q player %q", tc.room, tc.who.ID)
	}
	assert.Equal(t, 0, h.orch.Registry().Len())
}

func TestOrchestratorUnknownRoom(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.Join(ctx, "nope", alice)
	require.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, 0, h.orch.Registry().Len())

	_, err = h.orch.Act(ctx, "nope", "alice", game.Check, 0)
	require.ErrorIs(t, err, ErrRoomNotFound)
	require.ErrorIs(t, h.orch.StartGame(ctx, "nope", "alice"), ErrRoomNotFound)
}

func TestOrchestratorOpenRooms(t *testing.T) {
	h := newHarness(t, withConfig(func(c *OrchestratorConfig) { c.OpenRooms = true }))
	ctx := context.Background()

	_, err := h.orch.Join(ctx, "adhoc", bob)
	require.NoError(t, err)
	_, err = h.orch.Join(ctx, "adhoc", alice)
	require.NoError(t, err)

	require.ErrorIs(t, h.orch.StartGame(ctx, "adhoc", "alice"), ErrNotCreator)
	require.NoError(t, h.orch.StartGame(ctx, "adhoc", "bob"))

	// The room was registered with the store when bob opened it, so its
	// status and results have a home.
	rc, err := h.rooms.LoadRoomConfig(ctx, "adhoc")
	require.NoError(t, err)
	assert.Equal(t, RoomConfig{SmallBlind: 10, BigBlind: 20, MaxPlayers: 6, CreatorID: "bob"}, rc)
	assert.Equal(t, RoomPlaying, h.rooms.Status("adhoc"))
}

func TestOrchestratorOnlyCreatorStarts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)
	_, err = h.orch.Join(ctx, "r1", bob)
	require.NoError(t, err)

	require.ErrorIs(t, h.orch.StartGame(ctx, "r1", "bob"), ErrNotCreator)
	assert.Equal(t, game.Waiting, h.snapshot("").Phase)

	require.NoError(t, h.orch.StartGame(ctx, "r1", "alice"))
	assert.Equal(t, RoomPlaying, h.rooms.Status("r1"))
	require.ErrorIs(t, h.orch.StartGame(ctx, "r1", "alice"), game.ErrAlreadyStarted)
}

func TestOrchestratorActValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)
	require.NoError(t, h.orch.StartGame(ctx, "r1", "alice"))

	snap := h.snapshot("alice")
	require.Equal(t, "alice", snap.CurrentSeatID, "three-handed, the dealer is first to act preflop")
	before := h.bcast.count()

	_, err = h.orch.Act(ctx, "r1", "mallory", game.Fold, 0)
	require.ErrorIs(t, err, ErrNotSeated)

	_, err = h.orch.Act(ctx, "r1", snap.Seats[1].ID, game.Fold, 0)
	require.ErrorIs(t, err, game.ErrNotYourTurn, "humans cannot act for AI seats")

	_, err = h.orch.Act(ctx, "r1", "alice", game.Check, 0)
	require.ErrorIs(t, err, game.ErrInvalidAction, "cannot check facing the big blind")

	assert.Equal(t, before, h.bcast.count(), "rejected actions are not broadcast")
	assert.Equal(t, snap.Pot, h.snapshot("alice").Pot)
}

func TestOrchestratorRunsAITurnsUntilHumanActs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)
	require.NoError(t, h.orch.StartGame(ctx, "r1", "alice"))

	snap, err := h.orch.Act(ctx, "r1", "alice", game.Call, 0)
	require.NoError(t, err)
	for _, s := range snap.Seats {
		if s.ID != "alice" {
			assert.Empty(t, s.HoleCards, "acting player only sees their own cards")
		}
	}

	snap = h.settle()
	assert.Equal(t, 3000, chipsInPlay(snap))
	if snap.Phase.Betting() && !snap.GameFinished {
		mine := h.snapshot("alice")
		assert.Equal(t, "alice", mine.CurrentSeatID)
		assert.NotNil(t, mine.ValidActions)
		assert.Nil(t, snap.ValidActions, "spectators get no action menu")
	}

	var aiActions int
	for _, n := range h.bcast.notices() {
		if n.Kind == NoticeAction && n.Action != nil && !n.Action.Blind && n.SeatID != "alice" {
			aiActions++
		}
	}
	assert.Positive(t, aiActions, "the small blind acts after alice")
}

func TestOrchestratorRecordsHandResults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)
	require.NoError(t, h.orch.StartGame(ctx, "r1", "alice"))
	_, err = h.orch.Act(ctx, "r1", "alice", game.Fold, 0)
	require.NoError(t, err)

	snap := h.settle()
	require.True(t, snap.GameFinished, "AI seats finish the hand alone")
	require.NotNil(t, snap.LastResult)

	results := h.results.Results("r1")
	require.Len(t, results, 1)
	sum := 0
	for _, d := range results[0] {
		sum += d.Delta
		if d.SeatID == "alice" {
			assert.Equal(t, 0, d.Delta, "alice folded without putting chips in")
			assert.False(t, d.Won)
		}
	}
	assert.Equal(t, 0, sum, "chips only move between seats")

	var finished int
	for _, n := range h.bcast.notices() {
		if n.Kind == NoticeHandFinished {
			finished++
			require.NotNil(t, n.Result)
		}
	}
	assert.Equal(t, 1, finished)
}

func TestOrchestratorAutoDeal(t *testing.T) {
	h := newHarness(t, withConfig(func(c *OrchestratorConfig) {
		c.AutoDeal = true
		c.NextHandDelay = time.Millisecond
	}))
	ctx := context.Background()

	_, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)
	require.NoError(t, h.orch.StartGame(ctx, "r1", "alice"))
	_, err = h.orch.Act(ctx, "r1", "alice", game.Fold, 0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.snapshot("").HandNumber >= 2
	}, 5*time.Second, 2*time.Millisecond)
	assert.Equal(t, 3000, chipsInPlay(h.settle()))
}

func TestOrchestratorPacesAITurnsOnClock(t *testing.T) {
	mClock := quartz.NewMock(t)
	h := newHarness(t, withClock(mClock), withConfig(func(c *OrchestratorConfig) {
		c.AIPacing = time.Second
	}))
	ctx := context.Background()

	_, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)
	require.NoError(t, h.orch.StartGame(ctx, "r1", "alice"))
	snap, err := h.orch.Act(ctx, "r1", "alice", game.Call, 0)
	require.NoError(t, err)
	ai := snap.CurrentSeatID
	require.NotEqual(t, "alice", ai)

	var next time.Duration
	require.Eventually(t, func() bool {
		d, ok := mClock.Peek()
		next = d
		return ok
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, time.Second, next)
	assert.Equal(t, ai, h.snapshot("").CurrentSeatID, "no AI turn before the pacing delay")

	advCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	mClock.Advance(next).MustWait(advCtx)

	require.Eventually(t, func() bool {
		return h.snapshot("").CurrentSeatID != ai
	}, 5*time.Second, time.Millisecond)
}

func TestOrchestratorAITurnLimit(t *testing.T) {
	h := newHarness(t, withConfig(func(c *OrchestratorConfig) { c.MaxAITurns = 1 }))
	ctx := context.Background()

	_, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)
	require.NoError(t, h.orch.StartGame(ctx, "r1", "alice"))
	_, err = h.orch.Act(ctx, "r1", "alice", game.Fold, 0)
	require.NoError(t, err)

	// The loop stops at the limit whether or not the hand is over.
	require.Eventually(t, func() bool {
		room, ok := h.orch.Registry().Get("r1")
		if !ok {
			return false
		}
		room.mu.Lock()
		defer room.mu.Unlock()
		return !room.aiRunning
	}, 5*time.Second, time.Millisecond)

	var actions int
	for _, n := range h.bcast.notices() {
		if n.Kind == NoticeAction && n.Action != nil && !n.Action.Blind && n.SeatID != "alice" {
			actions++
		}
	}
	assert.LessOrEqual(t, actions, 1)
}

func TestOrchestratorSetDesiredSeatCount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)

	n, err := h.orch.SetDesiredSeatCount(ctx, "r1", 10)
	require.NoError(t, err)
	assert.Equal(t, 6, n, "clamped to the table size")
	assert.Len(t, h.snapshot("").Seats, 6)

	n, err = h.orch.SetDesiredSeatCount(ctx, "r1", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "never below three")
	assert.Len(t, h.snapshot("").Seats, 3)

	require.NoError(t, h.orch.StartGame(ctx, "r1", "alice"))
	_, err = h.orch.SetDesiredSeatCount(ctx, "r1", 4)
	require.ErrorIs(t, err, game.ErrAlreadyStarted)
}

func TestOrchestratorHumanTakesFillerSeat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)
	_, err = h.orch.SetDesiredSeatCount(ctx, "r1", 6)
	require.NoError(t, err)
	require.Len(t, h.snapshot("").Seats, 6)

	snap, err := h.orch.Join(ctx, "r1", bob)
	require.NoError(t, err)
	require.Len(t, snap.Seats, 6)
	_, ok := snap.Seat("bob")
	assert.True(t, ok)
}

func TestOrchestratorLeaveEvictsEmptyRoom(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)
	_, err = h.orch.Join(ctx, "r1", bob)
	require.NoError(t, err)
	room, ok := h.orch.Registry().Get("r1")
	require.True(t, ok)

	require.NoError(t, h.orch.Leave(ctx, "r1", "bob"))
	assert.Equal(t, 1, h.orch.Registry().Len())
	require.ErrorIs(t, h.orch.Leave(ctx, "r1", "bob"), ErrNotSeated)

	require.NoError(t, h.orch.Leave(ctx, "r1", "alice"))
	assert.Equal(t, 0, h.orch.Registry().Len())
	assert.Equal(t, RoomFinished, h.rooms.Status("r1"))
	select {
	case <-room.Done():
	default:
		t.Fatal("evicted room context not cancelled")
	}

	st, err := h.states.LoadState(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, st, "state is discarded with the room")

	_, err = h.orch.Snapshot("r1", "")
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestOrchestratorLeaveMidHandFolds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)
	_, err = h.orch.Join(ctx, "r1", bob)
	require.NoError(t, err)
	require.NoError(t, h.orch.StartGame(ctx, "r1", "alice"))

	require.NoError(t, h.orch.Leave(ctx, "r1", "bob"))
	snap := h.settle()
	if v, ok := snap.Seat("bob"); ok {
		assert.True(t, v.Folded)
		assert.Zero(t, v.Chips, "stack withdrawn on leave")
	}
	assert.Equal(t, 1, h.orch.Registry().Len())
}

func TestOrchestratorResumesSavedState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)
	require.NoError(t, h.orch.StartGame(ctx, "r1", "alice"))
	before := h.snapshot("alice")
	require.Equal(t, "alice", before.CurrentSeatID)

	// A second process over the same stores.
	restarted := NewOrchestrator(NewRegistry(), h.rooms, h.orch.cfg,
		WithStateStore(h.states),
		WithResultRecorder(h.results),
		WithLogger(testLogger()),
	)
	t.Cleanup(func() { _ = restarted.Shutdown(context.Background()) })

	after, err := restarted.Join(ctx, "r1", alice)
	require.NoError(t, err)
	assert.Equal(t, before.HandNumber, after.HandNumber)
	assert.Equal(t, game.PreFlop, after.Phase)
	assert.Equal(t, before.Pot, after.Pot)
	assert.Equal(t, "alice", after.CurrentSeatID)

	mine, _ := before.Seat("alice")
	resumed, _ := after.Seat("alice")
	assert.Equal(t, mine.HoleCards, resumed.HoleCards)
}

func TestOrchestratorRooms(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.Empty(t, h.orch.Rooms())
	_, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)

	rooms := h.orch.Rooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, RoomSummary{ID: "r1", Phase: game.Waiting, Seats: 3, Humans: 1, MaxSeats: 6}, rooms[0])
}

func TestOrchestratorConfigure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	carol := Identity{ID: "carol", Name: "Carol"}

	_, err := h.orch.Join(ctx, "r1", alice)
	require.NoError(t, err)
	_, err = h.orch.Join(ctx, "r1", bob)
	require.NoError(t, err)

	_, err = h.orch.Configure(ctx, "r1", "bob", ConfigData{BigBlind: 100})
	require.ErrorIs(t, err, ErrNotCreator)

	rc, err := h.orch.Configure(ctx, "r1", "alice", ConfigData{SmallBlind: 25, BigBlind: 50, MaxSeats: 4})
	require.NoError(t, err)
	want := RoomConfig{SmallBlind: 25, BigBlind: 50, MaxPlayers: 4, CreatorID: "alice"}
	assert.Equal(t, want, rc)
	stored, err := h.rooms.LoadRoomConfig(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, want, stored, "the change outlives the room")

	snap := h.snapshot("")
	assert.Equal(t, 25, snap.SmallBlind)
	assert.Equal(t, 50, snap.BigBlind)
	assert.Equal(t, 4, snap.MaxSeats)
	var texts []string
	for _, n := range h.bcast.notices() {
		if n.Kind == NoticeConfig {
			texts = append(texts, n.Text)
		}
	}
	assert.Contains(t, texts, "Blinds 25/50, 4 seats")

	_, err = h.orch.Configure(ctx, "r1", "alice", ConfigData{BigBlind: 10})
	require.ErrorIs(t, err, game.ErrInvalidAction, "small blind above big blind")
	assert.Equal(t, 50, h.snapshot("").BigBlind)

	_, err = h.orch.Join(ctx, "r1", carol)
	require.NoError(t, err)
	_, err = h.orch.Configure(ctx, "r1", "alice", ConfigData{MaxSeats: 2})
	require.ErrorIs(t, err, game.ErrSeatFull, "three humans are seated")
	assert.Equal(t, "seat_full", errorCode(err))
	assert.Equal(t, 4, h.snapshot("").MaxSeats)

	require.NoError(t, h.orch.StartGame(ctx, "r1", "alice"))
	assert.Equal(t, 75, h.snapshot("").Pot, "blinds posted at the new stakes")
	_, err = h.orch.Configure(ctx, "r1", "alice", ConfigData{SmallBlind: 5, BigBlind: 10})
	require.ErrorIs(t, err, game.ErrAlreadyStarted)

	_, err = h.orch.Configure(ctx, "nope", "alice", ConfigData{})
	require.ErrorIs(t, err, ErrRoomNotFound)
}
