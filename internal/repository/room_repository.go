package repository

import (
	"github.com/ruslan-synytsia/chat-ws-api/internal/models"

	"gorm.io/gorm"
)

type RoomRepo struct {
	db *gorm.DB
}

func NewRoomRepo(db *gorm.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// FindByMembers looks up the room whose member set equals {a, b}.
// Membership is unordered; returns gorm.ErrRecordNotFound on a miss.
func (r *RoomRepo) FindByMembers(a, b string) (*models.Room, error) {
	a, b = models.NormalizePair(a, b)
	var room models.Room
	err := r.db.
		Where("member_a = ? AND member_b = ?", a, b).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// Create persists a new room. The idx_room_pair unique index makes a
// concurrent duplicate insert fail rather than produce a second room.
func (r *RoomRepo) Create(room *models.Room) error {
	return r.db.Create(room).Error
}

// FindByUser retrieves every room the user is a member of.
func (r *RoomRepo) FindByUser(userID string) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.
		Where("member_a = ? OR member_b = ?", userID, userID).
		Find(&rooms).Error
	return rooms, err
}
