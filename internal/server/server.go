package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Identity headers set by the authenticating proxy in front of the server.
const (
	HeaderPlayerID   = "X-Player-ID"
	HeaderPlayerName = "X-Player-Name"
)

// StatsSource reports aggregated hand results for a player.
type StatsSource interface {
	PlayerStats(ctx context.Context, seatID string) (PlayerStats, error)
}

// Server is the HTTP and WebSocket front end. It is also the Broadcaster
// that pushes room updates to connected players.
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	runOnce     sync.Once
	httpServer  *http.Server
	orch        *Orchestrator
	stats       StatsSource
}

// NewServer creates a new server listening on addr
func NewServer(addr string, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			// Identity is established upstream, so any origin may connect.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetOrchestrator sets the orchestrator commands are routed to
func (s *Server) SetOrchestrator(orch *Orchestrator) {
	s.orch = orch
}

// SetStatsSource enables the player stats endpoint
func (s *Server) SetStatsSource(stats StatsSource) {
	s.stats = stats
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	s.runOnce.Do(func() { go s.run() })

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /rooms", s.handleRooms)
	mux.HandleFunc("GET /rooms/{id}", s.handleRoom)
	mux.HandleFunc("GET /players", s.handlePlayers)
	mux.HandleFunc("GET /players/{id}/stats", s.handlePlayerStats)
	return mux
}

// Start listens on the configured address and serves until Shutdown
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve serves on an existing listener
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("Starting server", "addr", l.Addr().String())
	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and closes every connection
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	srv := s.httpServer
	conns := make([]*Connection, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// run handles connection lifecycle
func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client connected", "player", conn.Identity().ID, "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			_, ok := s.connections[conn]
			delete(s.connections, conn)
			total := len(s.connections)
			s.mu.Unlock()
			if !ok {
				continue
			}
			_ = conn.Close()
			s.logger.Info("Client disconnected", "player", conn.Identity().ID, "total", total)

			if roomID := conn.Room(); roomID != "" && !s.hasConnection(conn.Identity().ID, roomID) {
				// Leave publishes to s, so it must not run on this goroutine.
				go s.cleanup(roomID, conn.Identity().ID)
			}

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) cleanup(roomID, playerID string) {
	if s.orch == nil {
		return
	}
	s.logger.Info("Cleaning up disconnected player", "player", playerID, "room", roomID)
	if err := s.orch.Leave(context.Background(), roomID, playerID); err != nil {
		s.logger.Debug("Cleanup leave failed", "player", playerID, "room", roomID, "error", err)
	}
}

func (s *Server) hasConnection(playerID, roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.connections {
		if conn.Identity().ID == playerID && conn.Room() == roomID {
			return true
		}
	}
	return false
}

// handleWebSocket upgrades an authenticated request
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	who, ok := identityFrom(r)
	if !ok {
		http.Error(w, "missing "+HeaderPlayerID, http.StatusUnauthorized)
		return
	}
	if err := ValidateID(who.ID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.orch == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, who, s.orch, s.logger)
	select {
	case s.register <- client:
	case <-s.ctx.Done():
		_ = client.Close()
		return
	}
	client.Start()

	go func() {
		<-client.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}

func identityFrom(r *http.Request) (Identity, bool) {
	id := r.Header.Get(HeaderPlayerID)
	if id == "" {
		return Identity{}, false
	}
	name := r.Header.Get(HeaderPlayerName)
	if name == "" {
		name = id
	}
	return Identity{ID: id, Name: name}, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		writeJSON(w, http.StatusOK, []RoomSummary{})
		return
	}
	rooms := s.orch.Rooms()
	if rooms == nil {
		rooms = []RoomSummary{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

// handleRoom returns the room as the caller may see it: their own hole cards
// when they are seated, the spectator view otherwise.
func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	who, _ := identityFrom(r)
	snap, err := s.orch.Snapshot(r.PathValue("id"), who.ID)
	if errors.Is(err, ErrRoomNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorData{Code: errorCode(err), Message: err.Error()})
		return
	} else if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorData{Code: errorCode(err), Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handlePlayers lists the players with a live connection.
func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ConnectedPlayers())
}

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.NotFound(w, r)
		return
	}
	st, err := s.stats.PlayerStats(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("Failed to load player stats", "player", r.PathValue("id"), "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorData{Code: "internal_error", Message: "stats unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Publish sends every connection in roomID its own view of msg
func (s *Server) Publish(_ context.Context, roomID string, msg Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for conn := range s.connections {
		if conn.Room() != roomID {
			continue
		}
		frame, err := NewFrame(MessageTypeState, msg.For(conn.Identity().ID))
		if err != nil {
			return err
		}
		if err := conn.SendFrame(frame); err != nil {
			s.logger.Debug("Failed to send message to client", "error", err, "player", conn.Identity().ID)
			continue
		}
		count++
	}

	s.logger.Debug("Broadcasted message to room", "room", roomID, "notices", len(msg.Notices), "recipients", count)
	return nil
}

// ConnectedPlayers returns the sorted ids of connected players. A player
// with several connections is listed once.
func (s *Server) ConnectedPlayers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]string, 0, len(s.connections))
	for conn := range s.connections {
		players = append(players, conn.Identity().ID)
	}
	slices.Sort(players)
	return slices.Compact(players)
}
