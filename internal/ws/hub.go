package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Event is the wire envelope for everything sent over the realtime channel,
// in both directions.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Outbound event names.
const (
	EventMessageSent      = "message_sent"
	EventNewMessage       = "new_message"
	EventUserTyping       = "user_typing"
	EventMessagesRead     = "messages_read"
	EventOnlineStatusList = "online_status_list"
	EventUserStatus       = "user_status"
	EventError            = "error"
)

// Client is one authenticated websocket connection. The identity is bound at
// handshake and never changes for the connection's lifetime.
type Client struct {
	ID       string
	UserID   string
	Username string
	Send     chan Event

	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(userID, username string, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		Send:     make(chan Event, 64),
		conn:     conn,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// TrySend queues an event without blocking. A full buffer drops the event;
// pushes to live clients are best-effort, durable state is the source of
// truth.
func (c *Client) TrySend(ev Event) {
	select {
	case c.Send <- ev:
	default:
	}
}

func (c *Client) close(reason string) {
	c.cancel()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, reason)
	}
}

// Hub is the process-wide connection registry: one live handle per user,
// last register wins. Absence of an entry only means this process cannot
// reach the user directly.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: map[string]*Client{}}
}

// Register stores the client as the user's only handle. A previous handle for
// the same user is superseded and closed, so reconnects need no client-side
// cleanup. Broadcasts the user's online status to everyone connected.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	old := h.clients[c.UserID]
	h.clients[c.UserID] = c
	h.mu.Unlock()

	if old != nil {
		old.close("superseded by new connection")
	}
	log.Printf("client registered: user=%s conn=%s", c.UserID, c.ID)

	h.broadcast(Event{Event: EventUserStatus, Data: StatusPayload{UserID: c.UserID, Status: "online"}})
}

// Unregister removes the entry only if it still points at this client's
// connection. A late unregister from a stale connection must not evict the
// handle a reconnect registered after it.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	cur, ok := h.clients[c.UserID]
	removed := ok && cur.ID == c.ID
	if removed {
		delete(h.clients, c.UserID)
	}
	h.mu.Unlock()

	c.close("bye")
	if !removed {
		return
	}
	log.Printf("client unregistered: user=%s conn=%s", c.UserID, c.ID)

	h.broadcast(Event{Event: EventUserStatus, Data: StatusPayload{UserID: c.UserID, Status: "offline"}})
}

// Lookup decides reachability for push delivery only; it never authorizes
// anything.
func (h *Hub) Lookup(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[userID]
	return c, ok
}

func (h *Hub) Status(userIDs []string) map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	statuses := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if _, ok := h.clients[id]; ok {
			statuses[id] = "online"
		} else {
			statuses[id] = "offline"
		}
	}
	return statuses
}

// broadcast fans an event out to every connected handle. Best-effort: a slow
// or stale handle drops the event, it never blocks the triggering mutation.
func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.TrySend(ev)
	}
}

// StatusPayload is the user_status broadcast body.
type StatusPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// WriteLoop drains the send channel onto the websocket. Runs as a goroutine
// per connection; exits when the client context is cancelled.
func (c *Client) WriteLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.Send:
			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = wsjson.Write(writeCtx, c.conn, ev)
			cancel()
		}
	}
}

func (c *Client) KeepAlive() {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.conn.Ping(pingCtx)
			cancel()
		}
	}
}
