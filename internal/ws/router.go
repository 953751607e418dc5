package ws

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"

	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/models"
	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/store"
)

// Inbound event names.
const (
	EventPrivateMessage  = "private_message"
	EventTyping          = "typing"
	EventMarkRead        = "mark_read"
	EventGetOnlineStatus = "get_online_status"
)

// Inbound is the decoded client frame; Data stays raw until the handler for
// the named event picks its payload shape.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// messageID accepts both JSON numbers and numeric strings, since clients of
// the old service sent string ids.
type messageID uint64

func (m *messageID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*m = messageID(v)
	return nil
}

type newMessagePayload struct {
	*models.Message
	SenderUsername string `json:"senderUsername"`
}

type typingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type messagesReadPayload struct {
	UserID     string   `json:"userId"`
	MessageIDs []uint64 `json:"messageIds"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Router dispatches inbound realtime events: persists what must be durable,
// then pushes to whichever recipients the hub can currently reach.
type Router struct {
	hub   *Hub
	store *store.Store
}

func NewRouter(hub *Hub, st *store.Store) *Router {
	return &Router{hub: hub, store: st}
}

// Serve reads frames from the client's connection until it closes. Each
// connection has exactly one read loop, so its events are handled in arrival
// order.
func (r *Router) Serve(ctx context.Context, c *Client) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.TrySend(errorEvent("invalid event payload"))
			continue
		}
		r.dispatch(ctx, c, in)
	}
}

// dispatch never lets a handler error escape: a bad event gets an error
// event back and the connection stays open.
func (r *Router) dispatch(ctx context.Context, c *Client, in Inbound) {
	switch in.Event {
	case EventPrivateMessage:
		r.handlePrivateMessage(ctx, c, in.Data)
	case EventTyping:
		r.handleTyping(c, in.Data)
	case EventMarkRead:
		r.handleMarkRead(ctx, c, in.Data)
	case EventGetOnlineStatus:
		r.handleOnlineStatus(c, in.Data)
	default:
		c.TrySend(errorEvent("unknown event type"))
	}
}

func (r *Router) handlePrivateMessage(ctx context.Context, c *Client, data json.RawMessage) {
	var p struct {
		RecipientID string `json:"recipientId"`
		Content     string `json:"content"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RecipientID == "" || p.Content == "" {
		c.TrySend(errorEvent("recipient id and content are required"))
		return
	}

	msg, err := r.store.Append(ctx, c.UserID, p.RecipientID, p.Content)
	if err != nil {
		log.Printf("send private message: %v", err)
		c.TrySend(errorEvent("failed to send message"))
		return
	}

	// Ack means delivered to storage, not delivered to the recipient.
	c.TrySend(Event{Event: EventMessageSent, Data: msg})

	if rc, ok := r.hub.Lookup(p.RecipientID); ok {
		rc.TrySend(Event{Event: EventNewMessage, Data: newMessagePayload{
			Message:        msg,
			SenderUsername: c.Username,
		}})
	}
	// Offline recipients pick the message up via REST; no retry, no queue.
}

func (r *Router) handleTyping(c *Client, data json.RawMessage) {
	var p struct {
		RecipientID string `json:"recipientId"`
		IsTyping    bool   `json:"isTyping"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.RecipientID == "" {
		c.TrySend(errorEvent("recipient id is required"))
		return
	}

	// Ephemeral signal, dropped when the recipient is offline.
	if rc, ok := r.hub.Lookup(p.RecipientID); ok {
		rc.TrySend(Event{Event: EventUserTyping, Data: typingPayload{
			UserID:   c.UserID,
			Username: c.Username,
			IsTyping: p.IsTyping,
		}})
	}
}

func (r *Router) handleMarkRead(ctx context.Context, c *Client, data json.RawMessage) {
	var p struct {
		MessageIDs []messageID `json:"messageIds"`
	}
	if err := json.Unmarshal(data, &p); err != nil || len(p.MessageIDs) == 0 {
		c.TrySend(errorEvent("message ids are required"))
		return
	}

	ids := make([]uint64, len(p.MessageIDs))
	for i, id := range p.MessageIDs {
		ids[i] = uint64(id)
	}

	msgs, err := r.store.MarkRead(ctx, ids, c.UserID)
	if err != nil {
		log.Printf("mark messages read: %v", err)
		c.TrySend(errorEvent("failed to mark messages as read"))
		return
	}

	// Tell each online sender which of their messages were just read.
	bySender := map[string][]uint64{}
	for _, m := range msgs {
		bySender[m.Sender] = append(bySender[m.Sender], m.ID)
	}
	for sender, senderIDs := range bySender {
		if sc, ok := r.hub.Lookup(sender); ok {
			sc.TrySend(Event{Event: EventMessagesRead, Data: messagesReadPayload{
				UserID:     c.UserID,
				MessageIDs: senderIDs,
			}})
		}
	}
}

func (r *Router) handleOnlineStatus(c *Client, data json.RawMessage) {
	var p struct {
		UserIDs []string `json:"userIds"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.UserIDs == nil {
		c.TrySend(errorEvent("user ids are required"))
		return
	}
	c.TrySend(Event{Event: EventOnlineStatusList, Data: r.hub.Status(p.UserIDs)})
}

func errorEvent(msg string) Event {
	return Event{Event: EventError, Data: errorPayload{Message: msg}}
}
