package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ruslan-synytsia/chat-ws-api/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// RoomStore is the persistence collaborator for private rooms.
// *repository.RoomRepo implements it; tests substitute fakes.
type RoomStore interface {
	FindByMembers(a, b string) (*models.Room, error)
	Create(room *models.Room) error
	FindByUser(userID string) ([]models.Room, error)
}

// RoomService resolves the unique private room for a pair of users.
type RoomService struct {
	store RoomStore

	mu    sync.Mutex
	pairs map[string]*sync.Mutex
}

func NewRoomService(store RoomStore) *RoomService {
	return &RoomService{store: store, pairs: make(map[string]*sync.Mutex)}
}

// Resolve finds the room whose member set equals {a, b}, creating it on
// first contact. Creation is serialized per unordered pair, and the room
// table's unique pair index covers writers in other processes: a loser of
// that race re-reads the winner's row.
func (s *RoomService) Resolve(ctx context.Context, a, b string) (*models.Room, error) {
	lock := s.pairLock(a, b)
	lock.Lock()
	defer lock.Unlock()

	room, err := s.store.FindByMembers(a, b)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error().Err(err).Str("member_a", a).Str("member_b", b).Msg("Failed to look up private room")
		return nil, fmt.Errorf("find room: %w", err)
	}

	room = models.NewRoom(a, b)
	if err := s.store.Create(room); err != nil {
		if existing, ferr := s.store.FindByMembers(a, b); ferr == nil {
			return existing, nil
		}
		log.Error().Err(err).Str("member_a", a).Str("member_b", b).Msg("Failed to create private room")
		return nil, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

// FavoriteUserIDs returns the other member of every room containing
// userID: the users this user has ever privately messaged. Repeated
// partners are not deduplicated.
func (s *RoomService) FavoriteUserIDs(ctx context.Context, userID string) ([]string, error) {
	rooms, err := s.store.FindByUser(userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list user rooms")
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		ids = append(ids, room.OtherMember(userID))
	}
	return ids, nil
}

func (s *RoomService) pairLock(a, b string) *sync.Mutex {
	a, b = models.NormalizePair(a, b)
	key := a + ":" + b

	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.pairs[key]
	if !ok {
		lock = &sync.Mutex{}
		s.pairs[key] = lock
	}
	return lock
}
