package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	send      chan *Frame
	identity  Identity
	roomID    string
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
	orch      *Orchestrator
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, who Identity, orch *Orchestrator, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:     conn,
		send:     make(chan *Frame, 256),
		identity: who,
		logger:   logger.WithPrefix("conn").With("player", who.ID),
		ctx:      ctx,
		cancel:   cancel,
		orch:     orch,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the connection shuts down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// SendFrame queues a frame for the client without blocking.
func (c *Connection) SendFrame(frame *Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			// Send on a connection closed concurrently.
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
			err = ErrConnectionClosed
		}
	}()

	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// Identity returns the authenticated player behind the connection.
func (c *Connection) Identity() Identity {
	return c.identity
}

func (c *Connection) SetRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
}

func (c *Connection) Room() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = errors.New("connection closed")

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError("", "invalid_message", "Failed to parse message")
			continue
		}
		c.handleFrame(&frame)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(frame)
			if err != nil {
				c.logger.Error("Failed to encode message", "type", frame.Type, "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleFrame processes one client command
func (c *Connection) handleFrame(frame *Frame) {
	c.logger.Debug("Received message", "type", frame.Type)

	var err error
	switch frame.Type {
	case MessageTypeJoin:
		var data JoinData
		if err := json.Unmarshal(frame.Data, &data); err != nil || data.RoomID == "" {
			c.sendError(frame.RequestID, "invalid_message", "Failed to parse join data")
			return
		}
		err = c.handleJoin(frame.RequestID, data)

	case MessageTypeLeave:
		err = c.handleLeave()

	case MessageTypeAction:
		var data ActionData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			c.sendError(frame.RequestID, "invalid_message", "Failed to parse action data")
			return
		}
		_, err = c.orch.Act(c.ctx, c.Room(), c.identity.ID, data.Action, data.Amount)

	case MessageTypeStart:
		err = c.orch.StartGame(c.ctx, c.Room(), c.identity.ID)

	case MessageTypeSeats:
		var data SeatsData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			c.sendError(frame.RequestID, "invalid_message", "Failed to parse seats data")
			return
		}
		_, err = c.orch.SetDesiredSeatCount(c.ctx, c.Room(), data.Count)

	case MessageTypeConfig:
		var data ConfigData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			c.sendError(frame.RequestID, "invalid_message", "Failed to parse config data")
			return
		}
		_, err = c.orch.Configure(c.ctx, c.Room(), c.identity.ID, data)

	default:
		c.sendError(frame.RequestID, "unknown_message_type", "Unknown message type: "+frame.Type.String())
		return
	}

	if err != nil {
		c.sendError(frame.RequestID, errorCode(err), err.Error())
	}
}

func (c *Connection) handleJoin(requestID string, data JoinData) error {
	if current := c.Room(); current != "" && current != data.RoomID {
		if err := c.handleLeave(); err != nil && !errors.Is(err, ErrRoomNotFound) {
			return err
		}
	}
	snap, err := c.orch.Join(c.ctx, data.RoomID, c.identity)
	if err != nil {
		return err
	}
	c.SetRoom(data.RoomID)

	frame, err := NewFrame(MessageTypeState, StateData{Snapshot: snap})
	if err != nil {
		return err
	}
	frame.RequestID = requestID
	return c.SendFrame(frame)
}

func (c *Connection) handleLeave() error {
	roomID := c.Room()
	if roomID == "" {
		return ErrNotSeated
	}
	c.SetRoom("")
	return c.orch.Leave(c.ctx, roomID, c.identity.ID)
}

// sendError sends an error frame to the client
func (c *Connection) sendError(requestID, code, message string) {
	frame, err := NewFrame(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}
	frame.RequestID = requestID
	_ = c.SendFrame(frame)
}
