package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/lox/holdemtables/internal/game"
)

// Room statuses written through RoomStore.SetRoomStatus.
const (
	RoomWaiting  = "waiting"
	RoomPlaying  = "playing"
	RoomFinished = "finished"
)

// RoomConfig is the stored configuration of a room. Zero blinds or seats
// fall back to the server defaults.
type RoomConfig struct {
	SmallBlind int
	BigBlind   int
	MaxPlayers int
	// CreatorID may start the game; empty lets anyone start it.
	CreatorID string
}

// Apply overlays the room's stakes on base.
func (rc RoomConfig) Apply(base game.TableConfig) game.TableConfig {
	if rc.SmallBlind > 0 || rc.BigBlind > 0 {
		base.SmallBlind, base.BigBlind = rc.SmallBlind, rc.BigBlind
	}
	if rc.MaxPlayers > 0 {
		base.MaxSeats = rc.MaxPlayers
		base.DesiredSeatCount = min(base.DesiredSeatCount, rc.MaxPlayers)
	}
	return base
}

// RoomStore looks up room configuration. LoadRoomConfig returns an error
// wrapping ErrRoomNotFound for unknown rooms. SaveRoomConfig registers a
// room or replaces its configuration, keeping its status.
type RoomStore interface {
	LoadRoomConfig(ctx context.Context, roomID string) (RoomConfig, error)
	SaveRoomConfig(ctx context.Context, roomID string, rc RoomConfig) error
	SetRoomStatus(ctx context.Context, roomID, status string) error
}

// StateStore persists table state between process restarts. LoadState
// returns nil when nothing is stored.
type StateStore interface {
	SaveState(ctx context.Context, roomID string, st game.TableState) error
	LoadState(ctx context.Context, roomID string) (*game.TableState, error)
	RemoveState(ctx context.Context, roomID string) error
}

// ResultRecorder stores the per-seat outcome of every finished hand.
type ResultRecorder interface {
	RecordHandResult(ctx context.Context, roomID string, deltas []game.SeatDelta) error
}

// Bankroll decides how many chips a human brings to a table. It is the only
// source of buy-ins; clients never name their own stack.
type Bankroll interface {
	BuyIn(ctx context.Context, roomID string, who Identity) (int, error)
}

// FixedBuyIn seats every human with the same stack.
type FixedBuyIn int

func (f FixedBuyIn) BuyIn(context.Context, string, Identity) (int, error) {
	return int(f), nil
}

// MemoryRoomStore keeps room configuration in memory.
type MemoryRoomStore struct {
	mu     sync.RWMutex
	rooms  map[string]RoomConfig
	status map[string]string
}

func NewMemoryRoomStore() *MemoryRoomStore {
	return &MemoryRoomStore{
		rooms:  make(map[string]RoomConfig),
		status: make(map[string]string),
	}
}

// PutRoom registers or replaces a room.
func (m *MemoryRoomStore) PutRoom(roomID string, rc RoomConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[roomID] = rc
	if _, ok := m.status[roomID]; !ok {
		m.status[roomID] = RoomWaiting
	}
}

func (m *MemoryRoomStore) SaveRoomConfig(_ context.Context, roomID string, rc RoomConfig) error {
	m.PutRoom(roomID, rc)
	return nil
}

func (m *MemoryRoomStore) LoadRoomConfig(_ context.Context, roomID string) (RoomConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rc, ok := m.rooms[roomID]
	if !ok {
		return RoomConfig{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return rc, nil
}

func (m *MemoryRoomStore) SetRoomStatus(_ context.Context, roomID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[roomID]; !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	m.status[roomID] = status
	return nil
}

// Status returns the last status written for roomID.
func (m *MemoryRoomStore) Status(roomID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status[roomID]
}

// MemoryStateStore keeps encoded table state in memory.
type MemoryStateStore struct {
	mu    sync.RWMutex
	state map[string][]byte
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{state: make(map[string][]byte)}
}

func (m *MemoryStateStore) SaveState(_ context.Context, roomID string, st game.TableState) error {
	data, err := st.Encode()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[roomID] = data
	return nil
}

func (m *MemoryStateStore) LoadState(_ context.Context, roomID string) (*game.TableState, error) {
	m.mu.RLock()
	data, ok := m.state[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	st, err := game.DecodeState(data)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (m *MemoryStateStore) RemoveState(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, roomID)
	return nil
}

// MemoryResultRecorder accumulates hand results in memory.
type MemoryResultRecorder struct {
	mu      sync.Mutex
	results map[string][][]game.SeatDelta
}

func NewMemoryResultRecorder() *MemoryResultRecorder {
	return &MemoryResultRecorder{results: make(map[string][][]game.SeatDelta)}
}

func (m *MemoryResultRecorder) RecordHandResult(_ context.Context, roomID string, deltas []game.SeatDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[roomID] = append(m.results[roomID], append([]game.SeatDelta(nil), deltas...))
	return nil
}

// Results returns the recorded hands for roomID, oldest first.
func (m *MemoryResultRecorder) Results(roomID string) [][]game.SeatDelta {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]game.SeatDelta(nil), m.results[roomID]...)
}
