package services

import (
	"context"
	"fmt"

	"github.com/ruslan-synytsia/chat-ws-api/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MessageStore is the persistence collaborator for chat messages.
// *repository.MessageRepo implements it; tests substitute fakes.
type MessageStore interface {
	Create(m *models.Message) error
	ListPublic() ([]models.Message, error)
	ListByRoom(roomID uuid.UUID) ([]models.Message, error)
}

// ChatService persists public and private messages and serves history.
type ChatService struct {
	store MessageStore
}

func NewChatService(store MessageStore) *ChatService {
	return &ChatService{store: store}
}

// SavePublic persists a lobby message and returns the stored record with
// its generated id and timestamp.
func (s *ChatService) SavePublic(ctx context.Context, userID, login, text, recipient string) (*models.Message, error) {
	m := &models.Message{UserID: userID, Login: login, Text: text, Recipient: recipient}
	if err := s.store.Create(m); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to save public message")
		return nil, fmt.Errorf("save public message: %w", err)
	}
	return m, nil
}

// SavePrivate persists a message into a private room.
func (s *ChatService) SavePrivate(ctx context.Context, roomID uuid.UUID, userID, login, text, recipient string) (*models.Message, error) {
	m := &models.Message{RoomID: &roomID, UserID: userID, Login: login, Text: text, Recipient: recipient}
	if err := s.store.Create(m); err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("room_id", roomID.String()).Msg("Failed to save private message")
		return nil, fmt.Errorf("save private message: %w", err)
	}
	return m, nil
}

// PublicHistory returns all lobby messages in insertion order.
func (s *ChatService) PublicHistory(ctx context.Context) ([]models.Message, error) {
	messages, err := s.store.ListPublic()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load public history")
		return nil, fmt.Errorf("list public messages: %w", err)
	}
	return messages, nil
}

// RoomHistory returns a private room's messages in insertion order.
func (s *ChatService) RoomHistory(ctx context.Context, roomID uuid.UUID) ([]models.Message, error) {
	messages, err := s.store.ListByRoom(roomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("Failed to load room history")
		return nil, fmt.Errorf("list room messages: %w", err)
	}
	return messages, nil
}
