// Package ledger tracks unread private-message counts for recipients that
// were offline (or simply elsewhere) when a message arrived. The ledger is
// process-local and rebuilt empty on restart; persisted messages remain the
// source of truth for delivery, this is only badge-count state.
package ledger

import (
	"sync"

	"github.com/google/uuid"
)

// Entry is the unread counter for one sender→room→recipient relationship.
type Entry struct {
	UserID      string    `json:"userId"` // sender
	RoomID      uuid.UUID `json:"roomId"`
	RecipientID string    `json:"recipientId"`
	Count       int       `json:"countMessages"`
}

type key struct {
	userID string
	roomID uuid.UUID
}

// Ledger is safe for concurrent use. All methods return copies; callers
// never hold references into internal state.
type Ledger struct {
	mu      sync.Mutex
	entries map[key]*Entry
}

func New() *Ledger {
	return &Ledger{entries: make(map[key]*Entry)}
}

// Increment bumps the unread count for (sender, room), creating the entry
// with count 1 on first sight, and returns the updated entry.
func (l *Ledger) Increment(senderID string, roomID uuid.UUID, recipientID string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{userID: senderID, roomID: roomID}
	e, ok := l.entries[k]
	if !ok {
		e = &Entry{UserID: senderID, RoomID: roomID, RecipientID: recipientID}
		l.entries[k] = e
	}
	e.Count++
	return *e
}

// NotificationsFor returns the current set of entries addressed to the
// recipient. Entries zeroed by a reset are included (clients render them
// as "0 unread"); order is unspecified.
func (l *Ledger) NotificationsFor(recipientID string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Entry
	for _, e := range l.entries {
		if e.RecipientID == recipientID {
			out = append(out, *e)
		}
	}
	return out
}

// Reset marks every message sent by senderID to currentID as seen by
// zeroing the matching counters in place. Counters from other senders to
// currentID are left untouched.
func (l *Ledger) Reset(currentID, senderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if e.UserID == senderID && e.RecipientID == currentID {
			e.Count = 0
		}
	}
}
