package server

import (
	"context"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/lox/holdemtables/internal/game"
)

// Room owns one table. Every access to the table holds mu.
type Room struct {
	ID        string
	CreatorID string

	mu        sync.Mutex
	table     *game.Table
	ctx       context.Context
	cancel    context.CancelFunc
	aiRunning bool
	notices   *noticeCollector
	logger    *log.Logger
}

func newRoom(id, creatorID string, table *game.Table, notices *noticeCollector, logger *log.Logger) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	return &Room{
		ID:        id,
		CreatorID: creatorID,
		table:     table,
		ctx:       ctx,
		cancel:    cancel,
		notices:   notices,
		logger:    logger,
	}
}

// Done is closed when the room is evicted.
func (r *Room) Done() <-chan struct{} {
	return r.ctx.Done()
}

// noticeCollector buffers table events between broadcasts. It is only
// touched while the room mutex is held.
type noticeCollector struct {
	notices []Notice
	results []game.ShowdownResult
}

func (c *noticeCollector) OnEvent(ev game.GameEvent) {
	if e, ok := ev.(game.HandFinishedEvent); ok {
		c.results = append(c.results, e.Result)
	}
	if n, ok := noticeFor(ev); ok {
		c.notices = append(c.notices, n)
	}
}

func (c *noticeCollector) drain() ([]Notice, []game.ShowdownResult) {
	notices, results := c.notices, c.results
	c.notices, c.results = nil, nil
	return notices, results
}

// Registry holds the live rooms.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	opening singleflight.Group
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room, calling create to build it if it is not live.
// create runs without the registry lock held; concurrent callers for the
// same id share one call. The bool reports whether this caller created the
// room.
func (r *Registry) GetOrCreate(id string, create func() (*Room, error)) (*Room, bool, error) {
	if room, ok := r.Get(id); ok {
		return room, false, nil
	}
	created := false
	v, err, _ := r.opening.Do(id, func() (any, error) {
		if room, ok := r.Get(id); ok {
			return room, nil
		}
		room, err := create()
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.rooms[id] = room
		r.mu.Unlock()
		created = true
		return room, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*Room), created, nil
}

func (r *Registry) Get(id string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	return room, ok
}

// Evict removes the room and cancels its context, stopping its AI loop.
func (r *Registry) Evict(id string) (*Room, bool) {
	r.mu.Lock()
	room, ok := r.rooms[id]
	delete(r.rooms, id)
	r.mu.Unlock()
	if ok {
		room.cancel()
	}
	return room, ok
}

// List returns the live room ids in order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
