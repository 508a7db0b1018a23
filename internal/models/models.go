package models

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is one chat message. RoomID is nil for public (lobby) messages
// and set for private-room messages.
type Message struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"_id"`
	RoomID    *uuid.UUID `gorm:"type:uuid;index" json:"roomId"`
	UserID    string     `gorm:"type:text;not null;index" json:"userId"`
	Login     string     `gorm:"type:text;not null" json:"login"`
	Text      string     `gorm:"type:text;not null" json:"text"`
	Recipient string     `gorm:"type:text" json:"recipient"`
	Timestamp int64      `gorm:"autoCreateTime:milli" json:"timestamp"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Room is the persisted record of a private conversation between exactly
// two users. Members are stored sorted so that the pair is unordered:
// (alice, bob) and (bob, alice) land on the same row, and the composite
// unique index rejects a duplicate created by a concurrent first contact.
type Room struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	MemberA string    `gorm:"type:text;not null;uniqueIndex:idx_room_pair"`
	MemberB string    `gorm:"type:text;not null;uniqueIndex:idx_room_pair"`
}

func (r *Room) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// NewRoom builds an unsaved room for the given pair, normalizing member order.
func NewRoom(a, b string) *Room {
	a, b = NormalizePair(a, b)
	return &Room{MemberA: a, MemberB: b}
}

// NormalizePair returns the two user ids in canonical (sorted) order.
func NormalizePair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// MemberIDs returns both members in stored order.
func (r *Room) MemberIDs() []string {
	return []string{r.MemberA, r.MemberB}
}

// OtherMember returns the member that is not userID. For the degenerate
// self-chat room it returns userID itself.
func (r *Room) OtherMember(userID string) string {
	if r.MemberA == userID {
		return r.MemberB
	}
	return r.MemberA
}

// MarshalJSON keeps the wire shape clients expect: an id plus a members array.
func (r Room) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID      uuid.UUID `json:"_id"`
		Members []string  `json:"members"`
	}{ID: r.ID, Members: r.MemberIDs()})
}
