package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/drivesim/game/engine"
	"github.com/wricardo/drivesim/game/service"
)

// fakeHandler records what clients send
type fakeHandler struct {
	mu      sync.Mutex
	inputs  []engine.InputEvent
	answers []int
}

func (f *fakeHandler) SendInput(ctx context.Context, sessionID string, ev engine.InputEvent) (*engine.State, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.inputs = append(f.inputs, ev)
	f.mu.Unlock()
	return &engine.State{ConfigName: "standard", Phase: engine.PhaseIdle}, nil
}

func (f *fakeHandler) SubmitAnswer(ctx context.Context, sessionID string, option int) (*service.AnswerResult, error) {
	if option < 0 {
		return nil, errors.New("bad option")
	}
	f.mu.Lock()
	f.answers = append(f.answers, option)
	f.mu.Unlock()
	return &service.AnswerResult{Accepted: true, Message: "Correct! +20 points", State: &engine.State{Phase: engine.PhasePresenting}}, nil
}

func newTestClient(hub *Hub, sessionID string) *Client {
	return &Client{hub: hub, sessionID: sessionID, send: make(chan []byte, 256)}
}

func readQueued(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case data := <-client.send:
		var message Message
		require.NoError(t, json.Unmarshal(data, &message))
		return message
	case <-time.After(100 * time.Millisecond):
		t.Fatal("No message received within timeout")
	}
	return Message{}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if hub.broadcast == nil || hub.states == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels are not initialised")
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered in session")
	}
	if len(hub.sessions["test-session"]) != 1 {
		t.Errorf("Expected 1 client in session, got %d", len(hub.sessions["test-session"]))
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "test-session")

	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Error("Expected send channel to be closed")
	}
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := NewHub(nil)
	sessionID := "multi-client-session"

	client1 := newTestClient(hub, sessionID)
	client2 := newTestClient(hub, sessionID)
	hub.registerClient(client1)
	hub.registerClient(client2)

	if len(hub.sessions[sessionID]) != 2 {
		t.Errorf("Expected 2 clients in session, got %d", len(hub.sessions[sessionID]))
	}

	hub.unregisterClient(client1)
	if len(hub.sessions[sessionID]) != 1 {
		t.Errorf("Expected 1 client remaining in session, got %d", len(hub.sessions[sessionID]))
	}
	if !hub.sessions[sessionID][client2] {
		t.Error("client2 should still be registered")
	}
}

func TestHubBroadcastState(t *testing.T) {
	hub := NewHub(nil)
	sessionID := "broadcast-test"
	client := newTestClient(hub, sessionID)
	other := newTestClient(hub, "other")
	hub.registerClient(client)
	hub.registerClient(other)

	welcome := engine.Notice{Seq: 1, Kind: engine.NoticeAdvisory, Message: "Welcome", Frame: 0}
	st := engine.State{
		Frame:   3,
		Vehicle: engine.Vehicle{Position: engine.Vec2{X: 1200, Y: 2280}},
		Notices: []engine.Notice{welcome},
	}
	hub.broadcastState(sessionID, st)

	message := readQueued(t, client)
	assert.Equal(t, sessionID, message.SessionID)
	assert.Equal(t, EventState, message.Event)
	require.NotNil(t, message.State)
	assert.Equal(t, 2280.0, message.State.Vehicle.Position.Y)

	message = readQueued(t, client)
	assert.Equal(t, EventNotice, message.Event)
	assert.Equal(t, "Welcome", message.Notice.Message)

	assert.Empty(t, other.send, "other sessions receive nothing")

	t.Run("only unseen notices are sent", func(t *testing.T) {
		trigger := engine.Notice{Seq: 2, Kind: engine.NoticeTrigger, Message: "Red light ahead", Frame: 40}
		st.Frame = 40
		st.Notices = []engine.Notice{welcome, trigger}
		hub.broadcastState(sessionID, st)

		assert.Equal(t, EventState, readQueued(t, client).Event)
		message := readQueued(t, client)
		assert.Equal(t, EventNotice, message.Event)
		assert.Equal(t, "Red light ahead", message.Notice.Message)
		assert.Empty(t, client.send)

		// Same snapshot again
		hub.broadcastState(sessionID, st)
		assert.Equal(t, EventState, readQueued(t, client).Event)
		assert.Empty(t, client.send)
	})
}

func TestHubNoticesAfterRingRollsOver(t *testing.T) {
	hub := NewHub(nil)
	client := &Client{hub: hub, sessionID: "ring", send: make(chan []byte, 64)}
	hub.registerClient(client)

	hub.broadcastState("ring", engine.State{Notices: []engine.Notice{{Seq: 3, Message: "c"}}})
	assert.Equal(t, EventState, readQueued(t, client).Event)
	assert.Equal(t, "c", readQueued(t, client).Notice.Message)

	// Notice 3 has already rolled out of the snapshot's ring
	hub.broadcastState("ring", engine.State{Notices: []engine.Notice{
		{Seq: 4, Message: "d"},
		{Seq: 5, Message: "e"},
	}})
	assert.Equal(t, EventState, readQueued(t, client).Event)
	assert.Equal(t, "d", readQueued(t, client).Notice.Message)
	assert.Equal(t, "e", readQueued(t, client).Notice.Message)
	assert.Empty(t, client.send)

	hub.broadcastState("ring", engine.State{Notices: []engine.Notice{{Seq: 5, Message: "e"}}})
	assert.Equal(t, EventState, readQueued(t, client).Event)
	assert.Empty(t, client.send, "nothing is sent twice")
}

func TestHubForgetsSessionWhenDeliveryDropsLastClient(t *testing.T) {
	hub := NewHub(nil)
	client := &Client{hub: hub, sessionID: "gone", send: make(chan []byte, 1)}
	hub.registerClient(client)

	hub.broadcastState("gone", engine.State{Notices: []engine.Notice{{Seq: 1, Message: "a"}}})

	assert.Empty(t, hub.sessions["gone"])
	_, kept := hub.lastNotice["gone"]
	assert.False(t, kept)
}

func TestHubSlowClientIsDropped(t *testing.T) {
	hub := NewHub(nil)
	client := &Client{hub: hub, sessionID: "slow", send: make(chan []byte, 1)}
	hub.registerClient(client)

	hub.broadcastMessage(&Message{SessionID: "slow", Event: "a"})
	hub.broadcastMessage(&Message{SessionID: "slow", Event: "b"})

	assert.Empty(t, hub.sessions["slow"])
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish("s", engine.State{Frame: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked without a running hub")
	}
}

func TestHubRunStopsWithContext(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	hub.BroadcastEvent("s", "custom-event", "data")
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 0, hub.ClientCount("s"))
	hub.BroadcastEvent("s", "after-stop", nil)
}

func startTestServer(t *testing.T, handler InputHandler) (*Hub, string) {
	t.Helper()
	hub := NewHub(handler)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session_id")
		if sessionID == "" {
			sessionID = "default"
		}
		hub.ServeWS(w, r, sessionID)
	}))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var message Message
	require.NoError(t, json.Unmarshal(data, &message))
	return message
}

func TestWebSocketConnectAndDisconnect(t *testing.T) {
	hub, url := startTestServer(t, nil)

	conn := dial(t, url+"?session_id=ws-test")
	require.Eventually(t, func() bool { return hub.ClientCount("ws-test") == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount("ws-test") == 0 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketReceivesSnapshots(t *testing.T) {
	hub, url := startTestServer(t, nil)
	conn := dial(t, url+"?session_id=msg-test")
	require.Eventually(t, func() bool { return hub.ClientCount("msg-test") == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish("msg-test", engine.State{
		Frame:    12,
		SpeedKmh: 42,
		Notices:  []engine.Notice{{Kind: engine.NoticeAdvisory, Message: "Stay on the road!", Frame: 12}},
	})

	message := readMessage(t, conn)
	assert.Equal(t, EventState, message.Event)
	assert.Equal(t, 42.0, message.State.SpeedKmh)

	message = readMessage(t, conn)
	assert.Equal(t, EventNotice, message.Event)
	assert.Equal(t, "Stay on the road!", message.Notice.Message)
}

func TestWebSocketClientInput(t *testing.T) {
	handler := &fakeHandler{}
	hub, url := startTestServer(t, handler)
	conn := dial(t, url+"?session_id=input-test")
	require.Eventually(t, func() bool { return hub.ClientCount("input-test") == 1 }, time.Second, 10*time.Millisecond)

	t.Run("key transition", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(ClientMessage{Type: string(engine.KeyDown), Control: engine.ControlAccelerate}))
		message := readMessage(t, conn)
		assert.Equal(t, EventState, message.Event)
		require.NotNil(t, message.State)

		handler.mu.Lock()
		defer handler.mu.Unlock()
		require.Len(t, handler.inputs, 1)
		assert.Equal(t, engine.ControlAccelerate, handler.inputs[0].Control)
	})

	t.Run("answer", func(t *testing.T) {
		option := 2
		require.NoError(t, conn.WriteJSON(ClientMessage{Type: "answer", Option: &option}))
		message := readMessage(t, conn)
		assert.Equal(t, EventAnswer, message.Event)
		require.NotNil(t, message.Answer)
		assert.True(t, message.Answer.Accepted)

		handler.mu.Lock()
		defer handler.mu.Unlock()
		assert.Equal(t, []int{2}, handler.answers)
	})

	t.Run("invalid input", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(ClientMessage{Type: string(engine.KeyDown), Control: "horn"}))
		message := readMessage(t, conn)
		assert.Equal(t, EventError, message.Event)
		assert.Contains(t, message.Error, "input rejected")
	})

	t.Run("answer without option", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(ClientMessage{Type: "answer"}))
		message := readMessage(t, conn)
		assert.Equal(t, EventError, message.Event)
	})

	t.Run("malformed", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
		message := readMessage(t, conn)
		assert.Equal(t, EventError, message.Event)
		assert.Equal(t, "malformed message", message.Error)
	})
}

func TestWebSocketReadOnlyHub(t *testing.T) {
	hub, url := startTestServer(t, nil)
	conn := dial(t, url+"?session_id=ro")
	require.Eventually(t, func() bool { return hub.ClientCount("ro") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: string(engine.CommandEvent), Command: engine.CommandTogglePause}))
	message := readMessage(t, conn)
	assert.Equal(t, EventError, message.Event)
}
