package server

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdemtables/internal/game"
)

var (
	alice = Identity{ID: "alice", Name: "Alice"}
	bob   = Identity{ID: "bob", Name: "Bob"}
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recordingBroadcaster) Publish(_ context.Context, _ string, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingBroadcaster) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func (r *recordingBroadcaster) notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notice
	for _, m := range r.msgs {
		out = append(out, m.Notices...)
	}
	return out
}

type bankrollFunc func(ctx context.Context, roomID string, who Identity) (int, error)

func (f bankrollFunc) BuyIn(ctx context.Context, roomID string, who Identity) (int, error) {
	return f(ctx, roomID, who)
}

type harness struct {
	t       *testing.T
	orch    *Orchestrator
	rooms   *MemoryRoomStore
	states  *MemoryStateStore
	results *MemoryResultRecorder
	bcast   *recordingBroadcaster
}

type harnessOption func(*OrchestratorConfig, *[]OrchestratorOption)

func withClock(c quartz.Clock) harnessOption {
	return func(_ *OrchestratorConfig, opts *[]OrchestratorOption) {
		*opts = append(*opts, WithClock(c))
	}
}

func withOption(o OrchestratorOption) harnessOption {
	return func(_ *OrchestratorConfig, opts *[]OrchestratorOption) {
		*opts = append(*opts, o)
	}
}

func withConfig(f func(*OrchestratorConfig)) harnessOption {
	return func(cfg *OrchestratorConfig, _ *[]OrchestratorOption) { f(cfg) }
}

// newHarness builds an orchestrator over memory stores with room "r1"
// (10/20, six seats, created by alice) and an AI fill target of three seats.
func newHarness(t *testing.T, hopts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		rooms:   NewMemoryRoomStore(),
		states:  NewMemoryStateStore(),
		results: NewMemoryResultRecorder(),
		bcast:   &recordingBroadcaster{},
	}
	h.rooms.PutRoom("r1", RoomConfig{SmallBlind: 10, BigBlind: 20, MaxPlayers: 6, CreatorID: "alice"})

	defaults := game.DefaultTableConfig()
	defaults.DesiredSeatCount = 3
	cfg := OrchestratorConfig{
		AIPacing:   time.Millisecond,
		MaxAITurns: 200,
		BuyIn:      1000,
		Defaults:   defaults,
	}
	opts := []OrchestratorOption{
		WithStateStore(h.states),
		WithResultRecorder(h.results),
		WithBroadcaster(h.bcast),
		WithLogger(testLogger()),
		WithSeed(42),
	}
	for _, o := range hopts {
		o(&cfg, &opts)
	}
	h.orch = NewOrchestrator(NewRegistry(), h.rooms, cfg, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.orch.Shutdown(ctx)
	})
	return h
}

func (h *harness) snapshot(viewer string) game.Snapshot {
	h.t.Helper()
	snap, err := h.orch.Snapshot("r1", viewer)
	require.NoError(h.t, err)
	return snap
}

// settle waits until no AI turn is pending: a human is to act or the hand
// is over.
func (h *harness) settle() game.Snapshot {
	h.t.Helper()
	var snap game.Snapshot
	require.Eventually(h.t, func() bool {
		s, err := h.orch.Snapshot("r1", "")
		if err != nil {
			return false
		}
		snap = s
		if !s.Phase.Betting() || s.GameFinished {
			return true
		}
		cur, ok := s.Seat(s.CurrentSeatID)
		return ok && !cur.IsAI
	}, 5*time.Second, 2*time.Millisecond)
	return snap
}

func chipsInPlay(s game.Snapshot) int {
	total := s.Pot
	for _, v := range s.Seats {
		total += v.Chips
	}
	return total
}
