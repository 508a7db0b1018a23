package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/ruslan-synytsia/chat-ws-api/internal/ledger"
	"github.com/ruslan-synytsia/chat-ws-api/internal/models"
	"github.com/ruslan-synytsia/chat-ws-api/internal/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient is a realtime.Client capturing every event pushed to it.
type testClient struct {
	id string

	mu     sync.Mutex
	events []realtime.Event
}

func newTestClient(id string) *testClient { return &testClient{id: id} }

func (c *testClient) ID() string { return c.id }

func (c *testClient) Send(ev realtime.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

// lastEvent returns the most recent event with the given name, if any.
func (c *testClient) lastEvent(name string) (realtime.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Name == name {
			return c.events[i], true
		}
	}
	return realtime.Event{}, false
}

func (c *testClient) countEvents(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

// fakeMessageStore is an in-memory MessageStore.
type fakeMessageStore struct {
	mu        sync.Mutex
	messages  []models.Message
	createErr error
}

func (f *fakeMessageStore) Create(m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if err := m.BeforeCreate(nil); err != nil {
		return err
	}
	m.Timestamp = int64(len(f.messages) + 1)
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeMessageStore) ListPublic() ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.messages {
		if m.RoomID == nil {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) ListByRoom(roomID uuid.UUID) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.messages {
		if m.RoomID != nil && *m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

type harness struct {
	registry *realtime.Registry
	ledger   *ledger.Ledger
	rooms    *fakeRoomStore
	msgs     *fakeMessageStore
	d        *Dispatcher
}

func newHarness() *harness {
	rooms := newFakeRoomStore()
	msgs := &fakeMessageStore{}
	registry := realtime.NewRegistry()
	ldg := ledger.New()
	d := NewDispatcher(registry, ldg, NewRoomService(rooms), NewChatService(msgs))
	return &harness{registry: registry, ledger: ldg, rooms: rooms, msgs: msgs, d: d}
}

func (h *harness) dispatch(t *testing.T, c realtime.Client, name string, payload any) {
	t.Helper()
	ev, err := realtime.NewEvent(name, payload)
	require.NoError(t, err)
	h.d.Dispatch(context.Background(), c, ev)
}

func TestAnnounceBroadcastsPresence(t *testing.T) {
	h := newHarness()
	alice := newTestClient("conn-alice")
	bob := newTestClient("conn-bob")

	h.dispatch(t, alice, realtime.EventSetUserID, "alice")
	h.dispatch(t, bob, realtime.EventSetUserID, "bob")

	// bob sees both users in his own presence push
	ev, ok := bob.lastEvent(realtime.EventSetOnlineUserIDs)
	require.True(t, ok)
	var ids []string
	require.NoError(t, json.Unmarshal(ev.Data, &ids))
	assert.ElementsMatch(t, []string{"alice", "bob"}, ids)

	// alice got the updated list broadcast when bob arrived
	ev, ok = alice.lastEvent(realtime.EventSetOnlineUserIDs)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(ev.Data, &ids))
	assert.ElementsMatch(t, []string{"alice", "bob"}, ids)
}

func TestAnnounceDeliversPublicBacklog(t *testing.T) {
	h := newHarness()
	alice := newTestClient("conn-alice")
	h.dispatch(t, alice, realtime.EventSetUserID, "alice")
	h.dispatch(t, alice, realtime.EventSavePublicMessage, map[string]string{
		"userId": "alice", "login": "Alice", "text": "hello",
	})

	bob := newTestClient("conn-bob")
	h.dispatch(t, bob, realtime.EventSetUserID, "bob")

	ev, ok := bob.lastEvent(realtime.EventPublicAllMessages)
	require.True(t, ok)
	var history []models.Message
	require.NoError(t, json.Unmarshal(ev.Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Text)
}

func TestPublicMessageEchoesToEveryone(t *testing.T) {
	h := newHarness()
	alice := newTestClient("conn-alice")
	bob := newTestClient("conn-bob")
	h.dispatch(t, alice, realtime.EventSetUserID, "alice")
	h.dispatch(t, bob, realtime.EventSetUserID, "bob")

	h.dispatch(t, alice, realtime.EventSavePublicMessage, map[string]string{
		"userId": "alice", "login": "Alice", "text": "hi all",
	})

	for _, c := range []*testClient{alice, bob} {
		ev, ok := c.lastEvent(realtime.EventPublicMessage)
		require.True(t, ok, "%s must receive the echo", c.ID())
		var msg models.Message
		require.NoError(t, json.Unmarshal(ev.Data, &msg))
		assert.Equal(t, "hi all", msg.Text)
		assert.NotEqual(t, uuid.Nil, msg.ID)
	}
}

func TestPersistenceFailureSuppressesEcho(t *testing.T) {
	h := newHarness()
	alice := newTestClient("conn-alice")
	h.dispatch(t, alice, realtime.EventSetUserID, "alice")

	h.msgs.createErr = errors.New("write rejected")
	h.dispatch(t, alice, realtime.EventSavePublicMessage, map[string]string{
		"userId": "alice", "login": "Alice", "text": "lost",
	})

	_, ok := alice.lastEvent(realtime.EventPublicMessage)
	assert.False(t, ok, "no echo after a failed write")
	_, ok = alice.lastEvent(realtime.EventError)
	assert.False(t, ok, "a store failure is not a client error")
}

func TestJoinPrivateRoomReturnsRoomAndHistory(t *testing.T) {
	h := newHarness()
	alice := newTestClient("conn-alice")
	h.dispatch(t, alice, realtime.EventSetUserID, "alice")

	h.dispatch(t, alice, realtime.EventJoinPrivateRoom, map[string]string{
		"currentId": "alice", "recepientId": "bob",
	})

	ev, ok := alice.lastEvent(realtime.EventPrivateRoomData)
	require.True(t, ok)
	var room struct {
		ID      uuid.UUID `json:"_id"`
		Members []string  `json:"members"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &room))
	assert.NotEqual(t, uuid.Nil, room.ID)
	assert.ElementsMatch(t, []string{"alice", "bob"}, room.Members)

	_, ok = alice.lastEvent(realtime.EventAllRoomMessages)
	assert.True(t, ok, "room history goes to the room channel the joiner is now in")
}

func TestPrivateMessageToOfflineRecipient(t *testing.T) {
	h := newHarness()
	alice := newTestClient("conn-alice")
	h.dispatch(t, alice, realtime.EventSetUserID, "alice")

	h.dispatch(t, alice, realtime.EventJoinPrivateRoom, map[string]string{
		"currentId": "alice", "recepientId": "bob",
	})
	roomEv, ok := alice.lastEvent(realtime.EventPrivateRoomData)
	require.True(t, ok)
	var room struct {
		ID uuid.UUID `json:"_id"`
	}
	require.NoError(t, json.Unmarshal(roomEv.Data, &room))

	h.dispatch(t, alice, realtime.EventSetPrivateMessage, map[string]string{
		"roomId": room.ID.String(), "userId": "alice", "login": "Alice",
		"text": "psst", "recipient": "bob",
	})

	// message echoed to the room channel (alice is joined)
	ev, ok := alice.lastEvent(realtime.EventNewPrivateMessage)
	require.True(t, ok)
	var msg models.Message
	require.NoError(t, json.Unmarshal(ev.Data, &msg))
	assert.Equal(t, "psst", msg.Text)

	// ledger holds the unread entry for offline bob, no live push happened
	notifs := h.ledger.NotificationsFor("bob")
	require.Len(t, notifs, 1)
	assert.Equal(t, 1, notifs[0].Count)
	assert.Equal(t, "alice", notifs[0].UserID)
	assert.Equal(t, room.ID, notifs[0].RoomID)

	// bob announces and receives the backlog
	bob := newTestClient("conn-bob")
	h.dispatch(t, bob, realtime.EventSetUserID, "bob")
	backlog, ok := bob.lastEvent(realtime.EventSetUnreadMessages)
	require.True(t, ok)
	var entries []ledger.Entry
	require.NoError(t, json.Unmarshal(backlog.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Count)

	// bob acknowledges: counter resets and the remainder comes back
	h.dispatch(t, bob, realtime.EventResetUnread, map[string]string{
		"currentId": "bob", "recipientId": "alice",
	})
	remainder, ok := bob.lastEvent(realtime.EventSetUnreadMessages)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(remainder.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].Count)

	// alice sends again: fresh count of 1, pushed live to bob this time
	h.dispatch(t, alice, realtime.EventSetPrivateMessage, map[string]string{
		"roomId": room.ID.String(), "userId": "alice", "login": "Alice",
		"text": "again", "recipient": "bob",
	})
	push, ok := bob.lastEvent(realtime.EventNewUnreadMessage)
	require.True(t, ok)
	var entry ledger.Entry
	require.NoError(t, json.Unmarshal(push.Data, &entry))
	assert.Equal(t, 1, entry.Count)
}

func TestPrivateMessagePersistenceFailureSkipsLedger(t *testing.T) {
	h := newHarness()
	alice := newTestClient("conn-alice")
	h.dispatch(t, alice, realtime.EventSetUserID, "alice")
	room, err := NewRoomService(h.rooms).Resolve(context.Background(), "alice", "bob")
	require.NoError(t, err)

	h.msgs.createErr = errors.New("store unreachable")
	h.dispatch(t, alice, realtime.EventSetPrivateMessage, map[string]string{
		"roomId": room.ID.String(), "userId": "alice", "login": "Alice",
		"text": "lost", "recipient": "bob",
	})

	assert.Empty(t, h.ledger.NotificationsFor("bob"), "no unread count for a message that was never stored")
}

func TestFavorites(t *testing.T) {
	h := newHarness()
	alice := newTestClient("conn-alice")
	h.dispatch(t, alice, realtime.EventSetUserID, "alice")
	h.dispatch(t, alice, realtime.EventJoinPrivateRoom, map[string]string{
		"currentId": "alice", "recepientId": "bob",
	})
	h.dispatch(t, alice, realtime.EventJoinPrivateRoom, map[string]string{
		"currentId": "alice", "recepientId": "carol",
	})

	h.dispatch(t, alice, realtime.EventGetFavoriteUserIDs, "alice")
	ev, ok := alice.lastEvent(realtime.EventSetFavoriteUserIDs)
	require.True(t, ok)
	var ids []string
	require.NoError(t, json.Unmarshal(ev.Data, &ids))
	assert.ElementsMatch(t, []string{"bob", "carol"}, ids)
}

func TestMalformedPayloadRejectsOriginOnly(t *testing.T) {
	h := newHarness()
	alice := newTestClient("conn-alice")
	bob := newTestClient("conn-bob")
	h.dispatch(t, alice, realtime.EventSetUserID, "alice")
	h.dispatch(t, bob, realtime.EventSetUserID, "bob")

	h.dispatch(t, alice, realtime.EventSavePublicMessage, map[string]string{
		"userId": "alice", "login": "Alice", // text missing
	})

	ev, ok := alice.lastEvent(realtime.EventError)
	require.True(t, ok)
	var p realtime.ErrorPayload
	require.NoError(t, json.Unmarshal(ev.Data, &p))
	assert.NotEmpty(t, p.Message)

	assert.Zero(t, bob.countEvents(realtime.EventError))
	assert.Zero(t, bob.countEvents(realtime.EventPublicMessage))
}

func TestUnknownEventRejected(t *testing.T) {
	h := newHarness()
	alice := newTestClient("conn-alice")
	h.dispatch(t, alice, "no_such_event", nil)

	_, ok := alice.lastEvent(realtime.EventError)
	assert.True(t, ok)
}

func TestDisconnectedBroadcastsPresence(t *testing.T) {
	h := newHarness()
	alice := newTestClient("conn-alice")
	bob := newTestClient("conn-bob")
	h.dispatch(t, alice, realtime.EventSetUserID, "alice")
	h.dispatch(t, bob, realtime.EventSetUserID, "bob")

	h.d.Disconnected(alice)

	ev, ok := bob.lastEvent(realtime.EventSetOnlineUserIDs)
	require.True(t, ok)
	var ids []string
	require.NoError(t, json.Unmarshal(ev.Data, &ids))
	assert.Equal(t, []string{"bob"}, ids)

	// a connection that never announced disconnects silently
	before := bob.countEvents(realtime.EventSetOnlineUserIDs)
	h.d.Disconnected(newTestClient("conn-ghost"))
	assert.Equal(t, before, bob.countEvents(realtime.EventSetOnlineUserIDs))
}
