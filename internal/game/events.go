package game

import (
	"sync"
	"time"

	"github.com/lox/holdemtables/internal/deck"
)

// EventType represents a table event type
type EventType string

const (
	EventTypeSeatJoined       EventType = "seat_joined"
	EventTypeSeatLeft         EventType = "seat_left"
	EventTypeHandStarted      EventType = "hand_started"
	EventTypeActionTaken      EventType = "action_taken"
	EventTypePhaseChanged     EventType = "phase_changed"
	EventTypeHandFinished     EventType = "hand_finished"
	EventTypeAIDecision       EventType = "ai_decision"
	EventTypeSeatCountChanged EventType = "seat_count_changed"
	EventTypeDeposit          EventType = "deposit"
	EventTypeConfigChanged    EventType = "config_changed"
)

func (et EventType) String() string {
	return string(et)
}

// GameEvent represents anything that happens at a table
type GameEvent interface {
	EventType() EventType
	Timestamp() time.Time
}

// SeatJoinedEvent is published when a human or AI takes a seat
type SeatJoinedEvent struct {
	SeatID    string
	Name      string
	IsAI      bool
	Chips     int
	timestamp time.Time
}

func (e SeatJoinedEvent) EventType() EventType { return EventTypeSeatJoined }
func (e SeatJoinedEvent) Timestamp() time.Time { return e.timestamp }

// SeatLeftEvent is published when a seat leaves the table. Deferred is true
// when the seat left mid-hand and will be removed when the hand ends.
type SeatLeftEvent struct {
	SeatID    string
	Name      string
	IsAI      bool
	Chips     int
	Deferred  bool
	timestamp time.Time
}

func (e SeatLeftEvent) EventType() EventType { return EventTypeSeatLeft }
func (e SeatLeftEvent) Timestamp() time.Time { return e.timestamp }

// HandStartedEvent is published after hole cards are dealt, before blinds
type HandStartedEvent struct {
	HandNumber int
	HandID     string
	Dealer     string
	SmallBlind string
	BigBlind   string
	Seats      int
	timestamp  time.Time
}

func (e HandStartedEvent) EventType() EventType { return EventTypeHandStarted }
func (e HandStartedEvent) Timestamp() time.Time { return e.timestamp }

// ActionTakenEvent is published for every accepted betting action
type ActionTakenEvent struct {
	Record    ActionRecord
	timestamp time.Time
}

func (e ActionTakenEvent) EventType() EventType { return EventTypeActionTaken }
func (e ActionTakenEvent) Timestamp() time.Time { return e.timestamp }

// PhaseChangedEvent is published when community cards are dealt
type PhaseChangedEvent struct {
	Phase          Phase
	CommunityCards []deck.Card
	Pot            int
	timestamp      time.Time
}

func (e PhaseChangedEvent) EventType() EventType { return EventTypePhaseChanged }
func (e PhaseChangedEvent) Timestamp() time.Time { return e.timestamp }

// HandFinishedEvent carries the settlement of a hand
type HandFinishedEvent struct {
	Result    ShowdownResult
	timestamp time.Time
}

func (e HandFinishedEvent) EventType() EventType { return EventTypeHandFinished }
func (e HandFinishedEvent) Timestamp() time.Time { return e.timestamp }

// AIDecisionEvent records what the AI policy chose and why. Forced is set
// when the engine rejected the decision and the seat was folded instead.
type AIDecisionEvent struct {
	SeatID    string
	Decision  Decision
	Forced    bool
	Err       string
	timestamp time.Time
}

func (e AIDecisionEvent) EventType() EventType { return EventTypeAIDecision }
func (e AIDecisionEvent) Timestamp() time.Time { return e.timestamp }

// SeatCountChangedEvent is published when the desired seat count changes or
// AI seats are synced to it.
type SeatCountChangedEvent struct {
	Desired   int
	Seats     int
	Added     int
	Removed   int
	timestamp time.Time
}

func (e SeatCountChangedEvent) EventType() EventType { return EventTypeSeatCountChanged }
func (e SeatCountChangedEvent) Timestamp() time.Time { return e.timestamp }

// DepositEvent is published when chips are credited from outside the game
type DepositEvent struct {
	SeatID    string
	Amount    int
	Chips     int
	timestamp time.Time
}

func (e DepositEvent) EventType() EventType { return EventTypeDeposit }
func (e DepositEvent) Timestamp() time.Time { return e.timestamp }

// ConfigChangedEvent is published when the stakes or capacity change
type ConfigChangedEvent struct {
	SmallBlind int
	BigBlind   int
	MaxSeats   int
	timestamp  time.Time
}

func (e ConfigChangedEvent) EventType() EventType { return EventTypeConfigChanged }
func (e ConfigChangedEvent) Timestamp() time.Time { return e.timestamp }

// EventSubscriber can subscribe to table events
type EventSubscriber interface {
	OnEvent(event GameEvent)
}

// EventBus manages event publishing and subscription
type EventBus interface {
	Subscribe(subscriber EventSubscriber)
	Unsubscribe(subscriber EventSubscriber)
	Publish(event GameEvent)
}

// SimpleEventBus is a synchronous in-memory event bus
type SimpleEventBus struct {
	mu          sync.RWMutex
	subscribers []EventSubscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{}
}

func (bus *SimpleEventBus) Subscribe(subscriber EventSubscriber) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subscribers = append(bus.subscribers, subscriber)
}

func (bus *SimpleEventBus) Unsubscribe(subscriber EventSubscriber) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i, sub := range bus.subscribers {
		if sub == subscriber {
			bus.subscribers = append(bus.subscribers[:i], bus.subscribers[i+1:]...)
			break
		}
	}
}

func (bus *SimpleEventBus) Publish(event GameEvent) {
	bus.mu.RLock()
	subs := append([]EventSubscriber(nil), bus.subscribers...)
	bus.mu.RUnlock()
	for _, subscriber := range subs {
		subscriber.OnEvent(event)
	}
}
