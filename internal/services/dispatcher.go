package services

import (
	"context"
	"encoding/json"

	"github.com/ruslan-synytsia/chat-ws-api/internal/ledger"
	"github.com/ruslan-synytsia/chat-ws-api/internal/realtime"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Dispatcher routes one connection's inbound events to the registry,
// the persistence services and the unread ledger, and decides which
// connections receive which push. It holds no state of its own.
//
// Every handler runs to completion on the connection's read loop;
// handlers for different connections run concurrently and meet only
// inside the Registry and Ledger locks.
type Dispatcher struct {
	registry *realtime.Registry
	ledger   *ledger.Ledger
	rooms    *RoomService
	chat     *ChatService
}

func NewDispatcher(registry *realtime.Registry, ldg *ledger.Ledger, rooms *RoomService, chat *ChatService) *Dispatcher {
	return &Dispatcher{registry: registry, ledger: ldg, rooms: rooms, chat: chat}
}

// Dispatch is wired into every connection's read loop.
func (d *Dispatcher) Dispatch(ctx context.Context, c realtime.Client, ev realtime.Event) {
	realtime.CountEvent(ev.Name)

	switch ev.Name {
	case realtime.EventSetUserID:
		d.handleAnnounce(ctx, c, ev.Data)
	case realtime.EventSavePublicMessage:
		d.handlePublicMessage(ctx, c, ev.Data)
	case realtime.EventJoinPrivateRoom:
		d.handleJoinPrivateRoom(ctx, c, ev.Data)
	case realtime.EventSetPrivateMessage:
		d.handlePrivateMessage(ctx, c, ev.Data)
	case realtime.EventGetFavoriteUserIDs:
		d.handleFavorites(ctx, c, ev.Data)
	case realtime.EventResetUnread:
		d.handleResetUnread(ctx, c, ev.Data)
	default:
		d.reject(c, "unknown event")
	}
}

// Disconnected is wired into the connection close path. The registry
// entry is removed unconditionally, even if handlers for this connection
// are still in flight; their late sends are dropped by the closed conn.
func (d *Dispatcher) Disconnected(c realtime.Client) {
	if !d.registry.Unregister(c.ID()) {
		return // never announced a user id
	}
	log.Info().Str("conn_id", c.ID()).Msg("User disconnected")
	ids := d.registry.OnlineUserIDs()
	if ev, err := realtime.NewEvent(realtime.EventSetOnlineUserIDs, ids); err == nil {
		d.registry.Broadcast(ev)
	}
}

// ------------------------------------------------------------------
// event handlers
// ------------------------------------------------------------------

func (d *Dispatcher) handleAnnounce(ctx context.Context, c realtime.Client, data json.RawMessage) {
	var userID string
	if err := json.Unmarshal(data, &userID); err != nil || userID == "" {
		d.reject(c, "userId is required")
		return
	}

	d.registry.Register(c, userID)
	d.broadcastPresence(c)

	// Lobby backlog for the fresh connection.
	if history, err := d.chat.PublicHistory(ctx); err == nil {
		d.send(c, realtime.EventPublicAllMessages, history)
	}

	// Unread counters accumulated while the user was offline.
	if notifs := d.ledger.NotificationsFor(userID); len(notifs) > 0 {
		d.send(c, realtime.EventSetUnreadMessages, notifs)
	}
}

type publicMessagePayload struct {
	UserID    string `json:"userId"`
	Login     string `json:"login"`
	Text      string `json:"text"`
	Recipient string `json:"recipient"`
}

func (d *Dispatcher) handlePublicMessage(ctx context.Context, c realtime.Client, data json.RawMessage) {
	var in publicMessagePayload
	if err := json.Unmarshal(data, &in); err != nil || in.UserID == "" || in.Login == "" || in.Text == "" {
		d.reject(c, "userId, login and text are required")
		return
	}

	msg, err := d.chat.SavePublic(ctx, in.UserID, in.Login, in.Text, in.Recipient)
	if err != nil {
		return // logged by the service; the sender gets no echo
	}
	if ev, err := realtime.NewEvent(realtime.EventPublicMessage, msg); err == nil {
		d.registry.Broadcast(ev)
	}
}

type joinRoomPayload struct {
	CurrentID   string `json:"currentId"`
	RecipientID string `json:"recepientId"` // historical field name, kept for client compatibility
}

func (d *Dispatcher) handleJoinPrivateRoom(ctx context.Context, c realtime.Client, data json.RawMessage) {
	var in joinRoomPayload
	if err := json.Unmarshal(data, &in); err != nil || in.CurrentID == "" || in.RecipientID == "" {
		d.reject(c, "currentId and recepientId are required")
		return
	}

	room, err := d.rooms.Resolve(ctx, in.CurrentID, in.RecipientID)
	if err != nil {
		return
	}
	d.registry.Join(room.ID, c)
	d.send(c, realtime.EventPrivateRoomData, room)

	history, err := d.chat.RoomHistory(ctx, room.ID)
	if err != nil {
		return
	}
	if ev, err := realtime.NewEvent(realtime.EventAllRoomMessages, history); err == nil {
		d.registry.ToRoom(room.ID, ev)
	}
}

type privateMessagePayload struct {
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	Login     string `json:"login"`
	Text      string `json:"text"`
	Recipient string `json:"recipient"`
}

func (d *Dispatcher) handlePrivateMessage(ctx context.Context, c realtime.Client, data json.RawMessage) {
	var in privateMessagePayload
	if err := json.Unmarshal(data, &in); err != nil || in.UserID == "" || in.Login == "" || in.Text == "" || in.Recipient == "" {
		d.reject(c, "roomId, userId, login, text and recipient are required")
		return
	}
	roomID, err := uuid.Parse(in.RoomID)
	if err != nil {
		d.reject(c, "roomId is not a valid id")
		return
	}

	msg, err := d.chat.SavePrivate(ctx, roomID, in.UserID, in.Login, in.Text, in.Recipient)
	if err != nil {
		return // persistence failed: no echo, no unread increment
	}

	d.registry.Join(roomID, c)
	if ev, err := realtime.NewEvent(realtime.EventNewPrivateMessage, msg); err == nil {
		d.registry.ToRoom(roomID, ev)
	}

	entry := d.ledger.Increment(in.UserID, roomID, in.Recipient)
	if rc, ok := d.registry.FindConnection(in.Recipient); ok {
		if ev, err := realtime.NewEvent(realtime.EventNewUnreadMessage, entry); err == nil {
			_ = rc.Send(ev)
		}
	}
	// Recipient offline: the entry waits in the ledger for their next announce.
}

func (d *Dispatcher) handleFavorites(ctx context.Context, c realtime.Client, data json.RawMessage) {
	var userID string
	if err := json.Unmarshal(data, &userID); err != nil || userID == "" {
		d.reject(c, "userId is required")
		return
	}
	ids, err := d.rooms.FavoriteUserIDs(ctx, userID)
	if err != nil {
		return
	}
	d.send(c, realtime.EventSetFavoriteUserIDs, ids)
}

type resetUnreadPayload struct {
	CurrentID   string `json:"currentId"`
	RecipientID string `json:"recipientId"`
}

func (d *Dispatcher) handleResetUnread(ctx context.Context, c realtime.Client, data json.RawMessage) {
	var in resetUnreadPayload
	if err := json.Unmarshal(data, &in); err != nil || in.CurrentID == "" || in.RecipientID == "" {
		d.reject(c, "currentId and recipientId are required")
		return
	}

	d.ledger.Reset(in.CurrentID, in.RecipientID)
	remainder := d.ledger.NotificationsFor(in.CurrentID)
	if remainder == nil {
		remainder = []ledger.Entry{}
	}
	d.send(c, realtime.EventSetUnreadMessages, remainder)
}

// ------------------------------------------------------------------
// helpers
// ------------------------------------------------------------------

func (d *Dispatcher) broadcastPresence(c realtime.Client) {
	ids := d.registry.OnlineUserIDs()
	ev, err := realtime.NewEvent(realtime.EventSetOnlineUserIDs, ids)
	if err != nil {
		return
	}
	_ = c.Send(ev)
	d.registry.Broadcast(ev, c.ID())
}

func (d *Dispatcher) send(c realtime.Client, name string, payload any) {
	ev, err := realtime.NewEvent(name, payload)
	if err != nil {
		log.Error().Err(err).Str("event", name).Msg("Failed to encode event payload")
		return
	}
	_ = c.Send(ev)
}

// reject answers a malformed request on the originating connection only.
func (d *Dispatcher) reject(c realtime.Client, reason string) {
	d.send(c, realtime.EventError, realtime.ErrorPayload{Message: reason})
}
