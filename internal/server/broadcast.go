package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	natsgo "github.com/nats-io/nats.go"
)

// Broadcaster delivers room updates to viewers. Implementations must redact
// the snapshot per viewer with Message.For.
type Broadcaster interface {
	Publish(ctx context.Context, roomID string, msg Message) error
}

// MultiBroadcaster fans a message out to several broadcasters.
type MultiBroadcaster []Broadcaster

func (m MultiBroadcaster) Publish(ctx context.Context, roomID string, msg Message) error {
	var errs []error
	for _, b := range m {
		if err := b.Publish(ctx, roomID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NATSBroadcaster publishes room updates on NATS. Spectators subscribe to
// <prefix>.<room>; each human seat gets its own view, including its hole
// cards, on <prefix>.<room>.seat.<id>.
type NATSBroadcaster struct {
	nc     *natsgo.Conn
	prefix string
	logger *log.Logger
}

// NewNATSBroadcaster connects to the NATS server at url.
func NewNATSBroadcaster(url, prefix string, logger *log.Logger) (*NATSBroadcaster, error) {
	nc, err := natsgo.Connect(url,
		natsgo.Name("holdemtables"),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSBroadcaster{nc: nc, prefix: prefix, logger: logger.WithPrefix("nats")}, nil
}

// RoomSubject is the spectator subject for roomID.
func (n *NATSBroadcaster) RoomSubject(roomID string) string {
	return n.prefix + "." + roomID
}

// SeatSubject is the private subject for one seat.
func (n *NATSBroadcaster) SeatSubject(roomID, seatID string) string {
	return n.RoomSubject(roomID) + ".seat." + seatID
}

// Publish sends the spectator view and one private view per human seat.
// Ids that are not valid subject tokens are refused rather than published
// on a wildcard.
func (n *NATSBroadcaster) Publish(_ context.Context, roomID string, msg Message) error {
	if err := ValidateID(roomID); err != nil {
		return fmt.Errorf("nats subject: %w", err)
	}
	if err := n.publish(n.RoomSubject(roomID), msg.For("")); err != nil {
		return err
	}
	for _, s := range msg.Snapshot.Seats {
		if s.IsAI {
			continue
		}
		if err := ValidateID(s.ID); err != nil {
			n.logger.Warn("skipping seat subject", "room", roomID, "error", err)
			continue
		}
		if err := n.publish(n.SeatSubject(roomID, s.ID), msg.For(s.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (n *NATSBroadcaster) publish(subject string, data StateData) error {
	frame, err := NewFrame(MessageTypeState, data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if err := n.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	n.logger.Debug("published", "subject", subject, "bytes", len(payload))
	return nil
}

// Close flushes pending messages and closes the connection.
func (n *NATSBroadcaster) Close() error {
	return n.nc.Drain()
}
