package realtime

import "encoding/json"

// Event names received from clients.
const (
	EventSetUserID          = "set_user_id"
	EventSavePublicMessage  = "save_public_message"
	EventJoinPrivateRoom    = "join_to_private_room_with_recepient"
	EventSetPrivateMessage  = "set_new_private_message"
	EventGetFavoriteUserIDs = "get_favorite_users_ids"
	EventResetUnread        = "reset_unread_messages"
)

// Event names pushed to clients.
const (
	EventSetOnlineUserIDs   = "set_online_user_ids"
	EventPublicAllMessages  = "get_public_all_messages"
	EventPublicMessage      = "get_public_message"
	EventPrivateRoomData    = "get_private_room_data"
	EventAllRoomMessages    = "get_all_private_room_messages"
	EventNewPrivateMessage  = "get_new_private_message"
	EventSetFavoriteUserIDs = "set_favorite_users_ids"
	EventNewUnreadMessage   = "new_unread_message"
	EventSetUnreadMessages  = "set_unread_messages"
	EventError              = "error"
)

// Event is the wire envelope: an event name plus a JSON payload.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an outbound event from any JSON-marshalable payload.
func NewEvent(name string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Data: data}, nil
}

// ErrorPayload is the body of an "error" event.
type ErrorPayload struct {
	Message string `json:"message"`
}
