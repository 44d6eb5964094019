package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/wricardo/drivesim/game/engine"
	"github.com/wricardo/drivesim/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Time allowed for one client command to reach the simulation.
	commandTimeout = 5 * time.Second
)

// Outgoing events
const (
	EventState  = "state_update"
	EventNotice = "notice"
	EventAnswer = "answer"
	EventError  = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is sent to clients
type Message struct {
	SessionID string                `json:"session_id"`
	Event     string                `json:"event"`
	State     *engine.State         `json:"state,omitempty"`
	Notice    *engine.Notice        `json:"notice,omitempty"`
	Answer    *service.AnswerResult `json:"answer,omitempty"`
	Data      interface{}           `json:"data,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// ClientMessage is received from clients. Type is an engine.InputEventType
// or "answer".
type ClientMessage struct {
	Type    string         `json:"type"`
	Control engine.Control `json:"control,omitempty"`
	Command engine.Command `json:"command,omitempty"`
	Option  *int           `json:"option,omitempty"`
}

// InputHandler applies client input to a session
type InputHandler interface {
	SendInput(ctx context.Context, sessionID string, ev engine.InputEvent) (*engine.State, error)
	SubmitAnswer(ctx context.Context, sessionID string, option int) (*service.AnswerResult, error)
}

// Client represents a WebSocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

type sessionState struct {
	sessionID string
	state     engine.State
}

type directMessage struct {
	client *Client
	data   []byte
}

type countRequest struct {
	sessionID string
	reply     chan int
}

// Hub maintains the set of active clients per session. All of its maps are
// owned by the Run goroutine.
type Hub struct {
	sessions   map[string]map[*Client]bool
	lastNotice map[string]uint64

	broadcast  chan *Message
	states     chan sessionState
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client
	counts     chan countRequest
	done       chan struct{}

	handler InputHandler
	logger  *log.Entry
}

// NewHub creates a new WebSocket hub. handler may be nil for a read-only hub.
func NewHub(handler InputHandler) *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		lastNotice: make(map[string]uint64),
		broadcast:  make(chan *Message, 64),
		states:     make(chan sessionState, 256),
		direct:     make(chan directMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		counts:     make(chan countRequest),
		done:       make(chan struct{}),
		handler:    handler,
		logger:     log.WithField("component", "websocket_hub"),
	}
}

// Run starts the hub's event loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for _, clients := range h.sessions {
			for client := range clients {
				close(client.send)
			}
		}
		h.sessions = make(map[string]map[*Client]bool)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case update := <-h.states:
			h.broadcastState(update.sessionID, update.state)

		case dm := <-h.direct:
			if h.sessions[dm.client.sessionID][dm.client] {
				h.deliver(dm.client, dm.data)
			}

		case req := <-h.counts:
			req.reply <- len(h.sessions[req.sessionID])
		}
	}
}

// ServeWS handles WebSocket requests from clients
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// Publish queues a snapshot for the session's clients. It never blocks, so it
// is safe to call from a runner hook; snapshots are dropped while the hub is
// backed up.
func (h *Hub) Publish(sessionID string, st engine.State) {
	select {
	case h.states <- sessionState{sessionID: sessionID, state: st}:
	case <-h.done:
	default:
		h.logger.WithField("session_id", sessionID).Debug("hub backed up, snapshot dropped")
	}
}

// BroadcastEvent sends a custom event to all clients in a session
func (h *Hub) BroadcastEvent(sessionID string, event string, data interface{}) {
	select {
	case h.broadcast <- &Message{SessionID: sessionID, Event: event, Data: data}:
	case <-h.done:
	}
}

// ClientCount returns the number of clients connected to a session
func (h *Hub) ClientCount(sessionID string) int {
	req := countRequest{sessionID: sessionID, reply: make(chan int, 1)}
	select {
	case h.counts <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

// registerClient adds a client to a session
func (h *Hub) registerClient(client *Client) {
	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true

	h.logger.WithFields(log.Fields{
		"session_id": client.sessionID,
		"clients":    len(h.sessions[client.sessionID]),
	}).Debug("client registered")
}

// unregisterClient removes a client from a session
func (h *Hub) unregisterClient(client *Client) {
	if clients, ok := h.sessions[client.sessionID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)

			// Clean up empty sessions
			if len(clients) == 0 {
				delete(h.sessions, client.sessionID)
				delete(h.lastNotice, client.sessionID)
			}

			h.logger.WithFields(log.Fields{
				"session_id": client.sessionID,
				"clients":    len(clients),
			}).Debug("client unregistered")
		}
	}
}

// broadcastState sends the snapshot, then every notice the session's clients
// have not seen yet
func (h *Hub) broadcastState(sessionID string, st engine.State) {
	if len(h.sessions[sessionID]) == 0 {
		return
	}
	h.broadcastMessage(&Message{SessionID: sessionID, Event: EventState, State: &st})

	last := h.lastNotice[sessionID]
	for _, n := range unseenNotices(st.Notices, last) {
		n := n
		h.broadcastMessage(&Message{SessionID: sessionID, Event: EventNotice, Notice: &n})
		if n.Seq > last {
			last = n.Seq
		}
	}
	// Delivery may have dropped the last client
	if len(h.sessions[sessionID]) > 0 {
		h.lastNotice[sessionID] = last
	}
}

// unseenNotices returns the notices numbered after last
func unseenNotices(notices []engine.Notice, last uint64) []engine.Notice {
	var out []engine.Notice
	for _, n := range notices {
		if n.Seq > last {
			out = append(out, n)
		}
	}
	return out
}

// broadcastMessage sends a message to all clients in a session
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("failed to marshal broadcast message")
		return
	}

	for client := range h.sessions[message.SessionID] {
		h.deliver(client, data)
	}
}

func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		// Client's send channel is full, drop it
		h.unregisterClient(client)
	}
}

// reply queues a message for one client through the hub goroutine
func (c *Client) reply(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		c.hub.logger.WithError(err).Error("failed to marshal reply")
		return
	}
	select {
	case c.hub.direct <- directMessage{client: c, data: data}:
	case <-c.hub.done:
	}
}

// handle applies one client message and answers the sender
func (c *Client) handle(raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.reply(&Message{SessionID: c.sessionID, Event: EventError, Error: "malformed message"})
		return
	}
	if c.hub.handler == nil {
		c.reply(&Message{SessionID: c.sessionID, Event: EventError, Error: "input is not accepted on this connection"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if msg.Type == "answer" {
		if msg.Option == nil {
			c.reply(&Message{SessionID: c.sessionID, Event: EventError, Error: "answer requires an option"})
			return
		}
		result, err := c.hub.handler.SubmitAnswer(ctx, c.sessionID, *msg.Option)
		if err != nil {
			c.reply(&Message{SessionID: c.sessionID, Event: EventError, Error: err.Error()})
			return
		}
		c.reply(&Message{SessionID: c.sessionID, Event: EventAnswer, Answer: result, State: result.State})
		return
	}

	ev := engine.InputEvent{Type: engine.InputEventType(msg.Type), Control: msg.Control, Command: msg.Command}
	st, err := c.hub.handler.SendInput(ctx, c.sessionID, ev)
	if err != nil {
		c.reply(&Message{SessionID: c.sessionID, Event: EventError, Error: fmt.Sprintf("input rejected: %v", err)})
		return
	}
	c.reply(&Message{SessionID: c.sessionID, Event: EventState, State: st})
}

// readPump pumps messages from the WebSocket connection to the simulation
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).WithField("session_id", c.sessionID).Warn("websocket read failed")
			}
			break
		}
		c.handle(raw)
	}
}

// writePump pumps messages from the hub to the WebSocket connection, one
// JSON document per frame
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
