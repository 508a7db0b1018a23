package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Client is one live connection as seen by the rest of the application.
// *Conn implements it; tests substitute fakes.
type Client interface {
	ID() string
	Send(ev Event) error
}

type entry struct {
	client Client
	userID string
}

// Registry maps live connections to the user each one announced, and
// tracks which room channels a connection has joined. It is the single
// shared structure touched by every connection's handlers, so all state
// sits behind one lock.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*entry               // connID -> entry
	rooms  map[uuid.UUID]map[string]Client // roomID -> connID -> client
	joined map[string][]uuid.UUID          // connID -> rooms joined
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*entry),
		rooms:  make(map[uuid.UUID]map[string]Client),
		joined: make(map[string][]uuid.UUID),
	}
}

// Register records the user id a connection announced. Re-announcing on
// the same connection overwrites the previous entry. A user with several
// open tabs gets one entry per connection.
func (r *Registry) Register(c Client, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = &entry{client: c, userID: userID}
}

// Unregister removes a connection and its room memberships. It reports
// whether the connection was registered; unregistering twice is a no-op.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[connID]
	if !ok {
		return false
	}
	delete(r.conns, connID)
	for _, roomID := range r.joined[connID] {
		if members := r.rooms[roomID]; members != nil {
			delete(members, connID)
			if len(members) == 0 {
				delete(r.rooms, roomID)
			}
		}
	}
	delete(r.joined, connID)
	return true
}

// OnlineUserIDs returns the announced user id of every live connection.
// A user connected from several tabs appears once per connection; the
// presence UI tolerates duplicates.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for _, e := range r.conns {
		ids = append(ids, e.userID)
	}
	return ids
}

// FindConnection returns some connection announced by userID. When the
// user has several connections an arbitrary one is chosen, so only one
// tab receives a targeted push. Known limitation, kept as-is.
func (r *Registry) FindConnection(userID string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.conns {
		if e.userID == userID {
			return e.client, true
		}
	}
	return nil, false
}

// Broadcast sends an event to every registered connection except the
// listed connection ids. Send failures are per-connection and ignored.
func (r *Registry) Broadcast(ev Event, except ...string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for connID, e := range r.conns {
		if contains(except, connID) {
			continue
		}
		_ = e.client.Send(ev)
	}
}

// Join subscribes a connection to a room channel. Joining twice is a no-op.
func (r *Registry) Join(roomID uuid.UUID, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.rooms[roomID]
	if members == nil {
		members = make(map[string]Client)
		r.rooms[roomID] = members
	}
	if _, ok := members[c.ID()]; ok {
		return
	}
	members[c.ID()] = c
	r.joined[c.ID()] = append(r.joined[c.ID()], roomID)
}

// ToRoom sends an event to every connection joined to the room channel.
func (r *Registry) ToRoom(roomID uuid.UUID, ev Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.rooms[roomID] {
		_ = c.Send(ev)
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
