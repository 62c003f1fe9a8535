package membership

import (
	"errors"
	"time"

	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const roomNotFoundMessage = "Room not found."

// Store owns the room_memberships table. Every method runs on the handle it
// is given, so callers decide the transaction boundary.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// Get loads the current membership of userID in roomID and locks the row
// until the surrounding transaction ends. It returns nil, nil when the pair
// has no row yet.
func (s *Store) Get(tx *gorm.DB, roomID, userID string) (*models.RoomMembership, error) {
	return s.get(tx.Clauses(clause.Locking{Strength: "UPDATE"}), roomID, userID)
}

// Peek is Get without the row lock.
func (s *Store) Peek(tx *gorm.DB, roomID, userID string) (*models.RoomMembership, error) {
	return s.get(tx, roomID, userID)
}

func (s *Store) get(tx *gorm.DB, roomID, userID string) (*models.RoomMembership, error) {
	var m models.RoomMembership
	err := tx.Where("room_id = ? AND user_id = ?", roomID, userID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromStorage(err, "")
	}
	return &m, nil
}

// Upsert writes m as the current membership of its (room, user) pair,
// overwriting any existing row, and returns the stored row.
func (s *Store) Upsert(tx *gorm.DB, m models.RoomMembership) (*models.RoomMembership, error) {
	now := time.Now().UTC()
	row := models.RoomMembership{
		RoomID:     m.RoomID,
		UserID:     m.UserID,
		Sender:     m.Sender,
		Membership: m.Membership,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sender", "membership", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "")
	}

	stored, err := s.get(tx, m.RoomID, m.UserID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, apperr.Storage(errors.New("membership row missing after upsert"))
	}
	return stored, nil
}

// FindByUser returns every membership row of userID, whatever its value.
func (s *Store) FindByUser(tx *gorm.DB, userID string) ([]models.RoomMembership, error) {
	var rows []models.RoomMembership
	err := tx.Where("user_id = ?", userID).Order("room_id").Find(&rows).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "")
	}
	return rows, nil
}

// FindJoinedByUser returns the rows where userID is currently joined.
func (s *Store) FindJoinedByUser(tx *gorm.DB, userID string) ([]models.RoomMembership, error) {
	var rows []models.RoomMembership
	err := tx.Where("user_id = ? AND membership = ?", userID, models.MembershipJoin).
		Order("room_id").
		Find(&rows).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "")
	}
	return rows, nil
}

// FindByRoom returns every membership row of roomID.
func (s *Store) FindByRoom(tx *gorm.DB, roomID string) ([]models.RoomMembership, error) {
	var rows []models.RoomMembership
	err := tx.Where("room_id = ?", roomID).Order("user_id").Find(&rows).Error
	if err != nil {
		return nil, apperr.FromStorage(err, "")
	}
	return rows, nil
}

// Room loads the room a transition targets.
func (s *Store) Room(tx *gorm.DB, roomID string) (*models.Room, error) {
	var room models.Room
	if err := tx.Where("room_id = ?", roomID).Take(&room).Error; err != nil {
		return nil, apperr.FromStorage(err, roomNotFoundMessage)
	}
	return &room, nil
}
