package server

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/lox/holdemtables/internal/deck"
	"github.com/lox/holdemtables/internal/game"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MessageType identifies a WebSocket frame
type MessageType string

const (
	// Client to server
	MessageTypeJoin   MessageType = "join"
	MessageTypeLeave  MessageType = "leave"
	MessageTypeAction MessageType = "action"
	MessageTypeStart  MessageType = "start"
	MessageTypeSeats  MessageType = "seats"
	MessageTypeConfig MessageType = "config"

	// Server to client
	MessageTypeState MessageType = "state"
	MessageTypeError MessageType = "error"
)

func (mt MessageType) String() string {
	return string(mt)
}

// Frame is the envelope of every WebSocket message, in both directions.
type Frame struct {
	Type      MessageType         `json:"type"`
	Data      jsoniter.RawMessage `json:"data,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	RequestID string              `json:"request_id,omitempty"`
}

// NewFrame creates a frame with the current timestamp
func NewFrame(messageType MessageType, data any) (*Frame, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server payloads

type JoinData struct {
	RoomID string `json:"room_id"`
}

type ActionData struct {
	Action game.Action `json:"action"`
	Amount int         `json:"amount,omitempty"`
}

type SeatsData struct {
	Count int `json:"count"`
}

// ConfigData changes a room between hands. Zero fields are left alone.
type ConfigData struct {
	SmallBlind int `json:"small_blind,omitempty"`
	BigBlind   int `json:"big_blind,omitempty"`
	MaxSeats   int `json:"max_seats,omitempty"`
}

// Server → Client payloads

// StateData is a snapshot redacted for the receiving player plus the notices
// that led to it.
type StateData struct {
	Snapshot game.Snapshot `json:"snapshot"`
	Notices  []Notice      `json:"notices,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NoticeKind classifies a Notice.
type NoticeKind string

const (
	NoticeJoined       NoticeKind = "joined"
	NoticeLeft         NoticeKind = "left"
	NoticeAction       NoticeKind = "action"
	NoticeHandStarted  NoticeKind = "hand_started"
	NoticePhase        NoticeKind = "phase"
	NoticeHandFinished NoticeKind = "hand_finished"
	NoticeSeats        NoticeKind = "seats"
	NoticeDeposit      NoticeKind = "deposit"
	NoticeConfig       NoticeKind = "config"
)

// Notice is a human-readable account of one table event.
type Notice struct {
	Kind   NoticeKind           `json:"kind"`
	SeatID string               `json:"seat_id,omitempty"`
	Action *game.ActionRecord   `json:"action,omitempty"`
	Phase  game.Phase           `json:"phase,omitempty"`
	Result *game.ShowdownResult `json:"result,omitempty"`
	Text   string               `json:"text"`
}

// Message is what the orchestrator hands to broadcasters: the unredacted
// snapshot and the notices since the last broadcast. Broadcasters must call
// Snapshot.RedactFor before sending it to anyone.
type Message struct {
	RoomID   string
	Snapshot game.Snapshot
	Notices  []Notice
}

// For returns the payload viewerID may see.
func (m Message) For(viewerID string) StateData {
	return StateData{
		Snapshot: m.Snapshot.RedactFor(viewerID),
		Notices:  m.Notices,
	}
}

// noticeFor converts a table event. AI decisions are logged, not broadcast.
func noticeFor(ev game.GameEvent) (Notice, bool) {
	switch e := ev.(type) {
	case game.SeatJoinedEvent:
		return Notice{Kind: NoticeJoined, SeatID: e.SeatID, Text: fmt.Sprintf("%s joined with %d chips", e.Name, e.Chips)}, true
	case game.SeatLeftEvent:
		return Notice{Kind: NoticeLeft, SeatID: e.SeatID, Text: fmt.Sprintf("%s left", e.Name)}, true
	case game.HandStartedEvent:
		return Notice{Kind: NoticeHandStarted, Text: fmt.Sprintf("Hand #%d started", e.HandNumber)}, true
	case game.ActionTakenEvent:
		r := e.Record
		return Notice{Kind: NoticeAction, SeatID: r.SeatID, Action: &r, Text: describeAction(r)}, true
	case game.PhaseChangedEvent:
		return Notice{Kind: NoticePhase, Phase: e.Phase, Text: fmt.Sprintf("%s: %s", e.Phase, deck.FormatCards(e.CommunityCards))}, true
	case game.HandFinishedEvent:
		res := e.Result
		return Notice{Kind: NoticeHandFinished, Result: &res, Text: describeResult(res)}, true
	case game.SeatCountChangedEvent:
		return Notice{Kind: NoticeSeats, Text: fmt.Sprintf("Seats set to %d (+%d/-%d)", e.Desired, e.Added, e.Removed)}, true
	case game.ConfigChangedEvent:
		return Notice{Kind: NoticeConfig, Text: fmt.Sprintf("Blinds %d/%d, %d seats", e.SmallBlind, e.BigBlind, e.MaxSeats)}, true
	case game.DepositEvent:
		return Notice{Kind: NoticeDeposit, SeatID: e.SeatID, Text: fmt.Sprintf("%s received %d chips", e.SeatID, e.Amount)}, true
	}
	return Notice{}, false
}

func describeAction(r game.ActionRecord) string {
	switch {
	case r.Blind:
		return fmt.Sprintf("%s posts %d", r.Name, r.Paid)
	case r.Action == game.Fold || r.Action == game.Check:
		return fmt.Sprintf("%s %ss", r.Name, r.Action)
	case r.Action == game.Call:
		return fmt.Sprintf("%s calls %d", r.Name, r.Paid)
	case r.Action == game.AllIn:
		return fmt.Sprintf("%s is all in for %d", r.Name, r.To)
	default:
		return fmt.Sprintf("%s %ss to %d", r.Name, r.Action, r.To)
	}
}

func describeResult(res game.ShowdownResult) string {
	if len(res.Winners) == 0 {
		return fmt.Sprintf("Hand #%d finished", res.HandNumber)
	}
	w := res.Winners[0]
	if w.HandName == "" {
		return fmt.Sprintf("%s wins %d", w.Name, w.Amount)
	}
	return fmt.Sprintf("%s wins %d with %s", w.Name, w.Amount, w.HandName)
}
