package repository

import (
	"github.com/ruslan-synytsia/chat-ws-api/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Create inserts a new message record.
func (r *MessageRepo) Create(m *models.Message) error {
	return r.db.Create(m).Error
}

// ListPublic retrieves all lobby messages (no room) in insertion order.
func (r *MessageRepo) ListPublic() ([]models.Message, error) {
	var messages []models.Message
	err := r.db.
		Where("room_id IS NULL").
		Order("timestamp ASC").
		Find(&messages).Error
	return messages, err
}

// ListByRoom retrieves a private room's messages in insertion order.
func (r *MessageRepo) ListByRoom(roomID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.
		Where("room_id = ?", roomID).
		Order("timestamp ASC").
		Find(&messages).Error
	return messages, err
}
