package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sohbat-app/chat-service/internal/models"
	"github.com/sohbat-app/chat-service/internal/presence"
	"github.com/sohbat-app/chat-service/internal/realtime"
	"github.com/sohbat-app/chat-service/internal/timeline"
)

// Backend is what the hub needs from the chat service.
type Backend interface {
	History(ctx context.Context, roomID string) ([]*models.Message, error)
	CanAccess(ctx context.Context, roomID, userID string) (bool, error)
}

// FeedSource provides the per-room change event streams.
type FeedSource interface {
	SubscribeMessages(ctx context.Context, roomID string) (<-chan realtime.MessageEvent, func())
	SubscribeMembers(ctx context.Context, roomID string) (<-chan realtime.MemberEvent, func())
}

// Client represents a WebSocket client
type Client struct {
	Conn      *websocket.Conn
	Send      chan []byte
	Hub       *Hub
	UserID    string
	Username  string
	AvatarURL string
	Rooms     map[string]bool
}

// Frame is one outbound WebSocket payload.
type Frame struct {
	Type         string                 `json:"type"`
	RoomID       string                 `json:"room_id,omitempty"`
	Messages     []*models.Message      `json:"messages,omitempty"`
	MessageEvent *realtime.MessageEvent `json:"message_event,omitempty"`
	MemberEvent  *realtime.MemberEvent  `json:"member_event,omitempty"`
	Presence     []presence.Record      `json:"presence,omitempty"`
	TypingText   string                 `json:"typing_text,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// clientMessage is one inbound WebSocket payload.
type clientMessage struct {
	Action string `json:"action"` // "join", "leave", "typing"
	RoomID string `json:"room_id"`
	Typing bool   `json:"typing"`
}

// roomSession is the server-held synchronized state for one active room:
// a timeline seeded from the bounded history fetch with live feed events
// applied, plus the subscriptions feeding it. It exists while at least one
// client has the room joined.
type roomSession struct {
	timeline *timeline.Timeline
	cancel   context.CancelFunc
}

// Hub maintains active WebSocket connections and one session per active room.
type Hub struct {
	backend Backend
	feed    FeedSource
	tracker *presence.Tracker

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	sessions   map[string]*roomSession
	mutex      sync.RWMutex

	ctx      context.Context
	cancel   context.CancelFunc
	shutdown sync.Once
}

// NewHub creates a hub over the given backend and feed.
func NewHub(backend Backend, feed FeedSource) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		backend:    backend,
		feed:       feed,
		tracker:    presence.NewTracker(),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		sessions:   make(map[string]*roomSession),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.ctx.Done():
			return
		}
	}
}

// Close gracefully shuts down the hub.
func (h *Hub) Close() {
	h.shutdown.Do(func() {
		h.cancel()

		h.mutex.Lock()
		defer h.mutex.Unlock()

		for _, session := range h.sessions {
			session.cancel()
		}
		h.sessions = make(map[string]*roomSession)

		for client := range h.clients {
			close(client.Send)
			client.Conn.Close()
		}
		h.clients = make(map[*Client]bool)
	})
}

// RegisterClient hands a new connection to the hub loop.
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	log.Printf("Client registered: %s (%s)", client.Username, client.UserID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}

	// The room sweep runs even when the broadcast path already dropped the
	// client, so its presence records are still cleaned up.
	rooms := make([]string, 0, len(client.Rooms))
	for roomID := range client.Rooms {
		h.dropFromRoomLocked(client, roomID)
		delete(client.Rooms, roomID)
		rooms = append(rooms, roomID)
	}
	log.Printf("Client unregistered: %s (%s)", client.Username, client.UserID)
	h.mutex.Unlock()

	// Presence vanishes immediately on disconnect.
	for _, roomID := range rooms {
		h.tracker.Untrack(roomID, client.Username)
		h.broadcastPresence(roomID)
	}
}

// JoinRoom subscribes a client to a room's event streams, seeding it with the
// current synchronized history.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	ctx, cancelCheck := context.WithTimeout(h.ctx, 10*time.Second)
	ok, err := h.backend.CanAccess(ctx, roomID, client.UserID)
	cancelCheck()
	if err != nil {
		log.Printf("Access check failed for room %s: %v", roomID, err)
		client.sendFrame(Frame{Type: "error", RoomID: roomID, Error: "failed to join room"})
		return
	}
	if !ok {
		client.sendFrame(Frame{Type: "error", RoomID: roomID, Error: "not a member of this room"})
		return
	}

	h.mutex.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.Rooms[roomID] = true

	session := h.sessions[roomID]
	h.mutex.Unlock()

	if session == nil {
		session = h.startSession(roomID)
	}
	if session == nil {
		client.sendFrame(Frame{Type: "error", RoomID: roomID, Error: "failed to load room history"})
		return
	}

	client.sendFrame(Frame{Type: "history", RoomID: roomID, Messages: session.timeline.Snapshot()})

	h.tracker.Track(roomID, client.Username, presence.Record{
		Username:   client.Username,
		AvatarURL:  client.AvatarURL,
		LastActive: time.Now(),
	})
	h.broadcastPresence(roomID)

	log.Printf("Client %s joined room %s", client.Username, roomID)
}

// LeaveRoom removes a client from a room.
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mutex.Lock()
	h.dropFromRoomLocked(client, roomID)
	delete(client.Rooms, roomID)
	h.mutex.Unlock()

	h.tracker.Untrack(roomID, client.Username)
	h.broadcastPresence(roomID)

	log.Printf("Client %s left room %s", client.Username, roomID)
}

// SetTyping updates a client's typing flag and re-broadcasts the room's
// full presence snapshot.
func (h *Hub) SetTyping(client *Client, roomID string, typing bool) {
	h.mutex.RLock()
	joined := client.Rooms[roomID]
	h.mutex.RUnlock()
	if !joined {
		return
	}

	h.tracker.Track(roomID, client.Username, presence.Record{
		Username:   client.Username,
		AvatarURL:  client.AvatarURL,
		LastActive: time.Now(),
		Typing:     typing,
	})
	h.broadcastPresence(roomID)
}

// dropFromRoomLocked removes the client from the room set and tears down the
// session once the room has no clients left. Callers hold h.mutex.
func (h *Hub) dropFromRoomLocked(client *Client, roomID string) {
	room, exists := h.rooms[roomID]
	if !exists {
		return
	}

	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, roomID)
		if session, ok := h.sessions[roomID]; ok {
			session.cancel()
			delete(h.sessions, roomID)
		}
	}
}

// startSession seeds the room timeline and wires the feed subscriptions.
func (h *Hub) startSession(roomID string) *roomSession {
	fetchCtx, cancelFetch := context.WithTimeout(h.ctx, 10*time.Second)
	history, err := h.backend.History(fetchCtx, roomID)
	cancelFetch()
	if err != nil {
		log.Printf("Failed to load history for room %s: %v", roomID, err)
		return nil
	}

	tl := timeline.New()
	tl.Load(history)

	ctx, cancel := context.WithCancel(h.ctx)
	messages, stopMessages := h.feed.SubscribeMessages(ctx, roomID)
	members, stopMembers := h.feed.SubscribeMembers(ctx, roomID)

	session := &roomSession{
		timeline: tl,
		cancel: func() {
			cancel()
			stopMessages()
			stopMembers()
		},
	}

	h.mutex.Lock()
	if existing := h.sessions[roomID]; existing != nil {
		// Lost the race with another joiner; keep theirs.
		h.mutex.Unlock()
		session.cancel()
		return existing
	}
	h.sessions[roomID] = session
	h.mutex.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-messages:
				if !ok {
					return
				}
				tl.Apply(event)
				h.BroadcastToRoom(roomID, Frame{Type: "message", RoomID: roomID, MessageEvent: &event})

			case event, ok := <-members:
				if !ok {
					return
				}
				h.BroadcastToRoom(roomID, Frame{Type: "member", RoomID: roomID, MemberEvent: &event})

			case <-ctx.Done():
				return
			}
		}
	}()

	return session
}

// BroadcastToRoom marshals one frame and sends it to every client in a room.
func (h *Hub) BroadcastToRoom(roomID string, frame Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("Failed to marshal frame: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, exists := h.rooms[roomID]
	if !exists {
		return
	}

	for client := range room {
		select {
		case client.Send <- payload:
		default:
			h.removeDeadClientLocked(client)
		}
	}
}

// removeDeadClientLocked drops a client whose send buffer is full from every
// room it joined before closing its channel; leaving it in another room's map
// would make the next broadcast send on a closed channel. client.Rooms is
// kept so the unregister path can still clean up presence. Callers hold
// h.mutex.
func (h *Hub) removeDeadClientLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for roomID := range client.Rooms {
		h.dropFromRoomLocked(client, roomID)
	}
	close(client.Send)
}

// broadcastPresence sends the full snapshot to every room client, with the
// typing text derived per recipient (the recipient is excluded from it).
func (h *Hub) broadcastPresence(roomID string) {
	snapshot := h.tracker.Snapshot(roomID)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, exists := h.rooms[roomID]
	if !exists {
		return
	}

	for client := range room {
		frame := Frame{
			Type:       "presence",
			RoomID:     roomID,
			Presence:   snapshot,
			TypingText: presence.TypingText(presence.TypingUsers(snapshot, client.Username)),
		}
		payload, err := json.Marshal(frame)
		if err != nil {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			h.removeDeadClientLocked(client)
		}
	}
}

func (c *Client) sendFrame(frame Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case c.Send <- payload:
	default:
	}
}

// ReadPump handles messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("Malformed client message from %s: %v", c.Username, err)
			continue
		}

		switch msg.Action {
		case "join":
			c.Hub.JoinRoom(c, msg.RoomID)
		case "leave":
			c.Hub.LeaveRoom(c, msg.RoomID)
		case "typing":
			c.Hub.SetTyping(c, msg.RoomID, msg.Typing)
		default:
			log.Printf("Unknown action %q from %s", msg.Action, c.Username)
		}
	}
}

// WritePump handles messages to the WebSocket connection
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}

	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
