package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/holdemtables/internal/game"
)

type testServer struct {
	*harness
	srv  *Server
	http *httptest.Server
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()
	srv := NewServer("127.0.0.1:0", testLogger())
	h := newHarness(t, withOption(WithBroadcaster(MultiBroadcaster{srv})))
	srv.SetOrchestrator(h.orch)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})
	return &testServer{harness: h, srv: srv, http: ts}
}

func (ts *testServer) dial(t *testing.T, who Identity) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	header := http.Header{}
	header.Set(HeaderPlayerID, who.ID)
	header.Set(HeaderPlayerName, who.Name)
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (ts *testServer) get(t *testing.T, path, playerID string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.http.URL+path, nil)
	require.NoError(t, err)
	if playerID != "" {
		req.Header.Set(HeaderPlayerID, playerID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func send(t *testing.T, conn *websocket.Conn, mt MessageType, data any, requestID string) {
	t.Helper()
	frame, err := NewFrame(mt, data)
	require.NoError(t, err)
	frame.RequestID = requestID
	payload, err := json.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

// readUntil reads frames until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(*Frame) bool) *Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var frame Frame
		require.NoError(t, json.Unmarshal(data, &frame))
		if match(&frame) {
			return &frame
		}
	}
}

func stateOf(t *testing.T, f *Frame) StateData {
	t.Helper()
	require.Equal(t, MessageTypeState, f.Type)
	var sd StateData
	require.NoError(t, json.Unmarshal(f.Data, &sd))
	return sd
}

func TestServerHealth(t *testing.T) {
	ts := startTestServer(t)
	code, body := ts.get(t, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)
}

func TestServerRejectsAnonymousWebSocket(t *testing.T) {
	ts := startTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServerPlayHand(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t, alice)

	send(t, conn, MessageTypeJoin, JoinData{RoomID: "r1"}, "join-1")
	joined := readUntil(t, conn, func(f *Frame) bool { return f.RequestID == "join-1" })
	sd := stateOf(t, joined)
	assert.Len(t, sd.Snapshot.Seats, 3)
	assert.Equal(t, game.Waiting, sd.Snapshot.Phase)

	send(t, conn, MessageTypeStart, nil, "start-1")
	started := readUntil(t, conn, func(f *Frame) bool {
		return f.Type == MessageTypeState && stateOf(t, f).Snapshot.Phase == game.PreFlop
	})
	sd = stateOf(t, started)
	for _, s := range sd.Snapshot.Seats {
		if s.ID == "alice" {
			assert.Len(t, s.HoleCards, 2)
		} else {
			assert.Empty(t, s.HoleCards, "other seats are hidden")
		}
	}
	require.Equal(t, "alice", sd.Snapshot.CurrentSeatID)
	require.NotNil(t, sd.Snapshot.ValidActions)

	send(t, conn, MessageTypeAction, ActionData{Action: game.Check}, "act-1")
	errFrame := readUntil(t, conn, func(f *Frame) bool { return f.Type == MessageTypeError })
	assert.Equal(t, "act-1", errFrame.RequestID)
	var ed ErrorData
	require.NoError(t, json.Unmarshal(errFrame.Data, &ed))
	assert.Equal(t, "invalid_action", ed.Code)

	send(t, conn, MessageTypeAction, ActionData{Action: game.Call}, "act-2")
	called := readUntil(t, conn, func(f *Frame) bool {
		if f.Type != MessageTypeState {
			return false
		}
		for _, n := range stateOf(t, f).Notices {
			if n.Kind == NoticeAction && n.SeatID == "alice" {
				return true
			}
		}
		return false
	})
	assert.Contains(t, stateOf(t, called).Notices[0].Text, "Alice calls")

	code, body := ts.get(t, "/rooms", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"id":"r1"`)

	code, body = ts.get(t, "/rooms/r1", "alice")
	assert.Equal(t, http.StatusOK, code)
	var mine game.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &mine))
	v, ok := mine.Seat("alice")
	require.True(t, ok)
	assert.Len(t, v.HoleCards, 2)

	code, _ = ts.get(t, "/rooms/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServerErrorsBeforeJoin(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t, bob)

	send(t, conn, MessageTypeStart, nil, "s")
	f := readUntil(t, conn, func(f *Frame) bool { return f.Type == MessageTypeError })
	var ed ErrorData
	require.NoError(t, json.Unmarshal(f.Data, &ed))
	assert.Equal(t, "room_not_found", ed.Code)

	send(t, conn, MessageType("shuffle"), nil, "x")
	f = readUntil(t, conn, func(f *Frame) bool { return f.Type == MessageTypeError })
	require.NoError(t, json.Unmarshal(f.Data, &ed))
	assert.Equal(t, "unknown_message_type", ed.Code)
}

func TestServerDisconnectLeavesRoom(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t, alice)

	send(t, conn, MessageTypeJoin, JoinData{RoomID: "r1"}, "j")
	readUntil(t, conn, func(f *Frame) bool { return f.RequestID == "j" })
	require.Equal(t, 1, ts.orch.Registry().Len())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return ts.orch.Registry().Len() == 0
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, RoomFinished, ts.rooms.Status("r1"))
}

func TestServerPlayerStatsDisabled(t *testing.T) {
	ts := startTestServer(t)
	code, _ := ts.get(t, "/players/alice/stats", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServerJoinIgnoresRequestedStack(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t, alice)

	send(t, conn, MessageTypeJoin, map[string]any{"room_id": "r1", "chips": 1_000_000_000}, "j")
	sd := stateOf(t, readUntil(t, conn, func(f *Frame) bool { return f.RequestID == "j" }))
	v, ok := sd.Snapshot.Seat("alice")
	require.True(t, ok)
	assert.Equal(t, 1000, v.Chips, "the stack is the configured buy-in")
}

func TestServerRejectsUnsafePlayerID(t *testing.T) {
	ts := startTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	header := http.Header{}
	header.Set(HeaderPlayerID, "room.>")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerConfigureRoom(t *testing.T) {
	ts := startTestServer(t)
	conn := ts.dial(t, alice)

	send(t, conn, MessageTypeJoin, JoinData{RoomID: "r1"}, "j")
	readUntil(t, conn, func(f *Frame) bool { return f.RequestID == "j" })

	send(t, conn, MessageTypeConfig, ConfigData{SmallBlind: 50, BigBlind: 100}, "c")
	f := readUntil(t, conn, func(f *Frame) bool {
		return f.Type == MessageTypeState && stateOf(t, f).Snapshot.BigBlind == 100
	})
	assert.Equal(t, 50, stateOf(t, f).Snapshot.SmallBlind)

	send(t, conn, MessageTypeConfig, ConfigData{MaxSeats: 1}, "bad")
	errFrame := readUntil(t, conn, func(f *Frame) bool { return f.Type == MessageTypeError })
	assert.Equal(t, "bad", errFrame.RequestID)
	var ed ErrorData
	require.NoError(t, json.Unmarshal(errFrame.Data, &ed))
	assert.Equal(t, "invalid_action", ed.Code)
}

func TestServerListsConnectedPlayers(t *testing.T) {
	ts := startTestServer(t)
	ts.dial(t, bob)
	ts.dial(t, alice)
	ts.dial(t, alice)

	require.Eventually(t, func() bool {
		_, body := ts.get(t, "/players", "")
		return strings.TrimSpace(body) == `["alice","bob"]`
	}, 5*time.Second, 5*time.Millisecond)
}
