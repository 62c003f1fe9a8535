package services

import (
	"context"
	"time"

	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	PresenceOnline      = "online"
	PresenceOffline     = "offline"
	PresenceUnavailable = "unavailable"
)

type PresenceService struct {
	db *gorm.DB
}

func NewPresenceService(db *gorm.DB) *PresenceService {
	return &PresenceService{db: db}
}

type SetPresenceRequest struct {
	Presence  string  `json:"presence" binding:"required,oneof=online offline unavailable"`
	StatusMsg *string `json:"status_msg"`
}

type PresenceResponse struct {
	Presence        string  `json:"presence"`
	StatusMsg       *string `json:"status_msg,omitempty"`
	LastActiveAgo   int64   `json:"last_active_ago"`
	CurrentlyActive bool    `json:"currently_active"`
}

// Touch marks userID as online inside tx, creating the row when absent.
func (s *PresenceService) Touch(tx *gorm.DB, userID string, now time.Time) error {
	row := models.PresenceStatus{
		UserID:       userID,
		Presence:     PresenceOnline,
		LastActiveAt: now.UTC(),
		UpdatedAt:    now.UTC(),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"presence", "last_active_at", "updated_at"}),
	}).Create(&row).Error
	return apperr.FromStorage(err, "")
}

// Set stores an explicit presence state and status message.
func (s *PresenceService) Set(ctx context.Context, userID string, req *SetPresenceRequest) error {
	now := time.Now().UTC()
	row := models.PresenceStatus{
		UserID:       userID,
		Presence:     req.Presence,
		StatusMsg:    req.StatusMsg,
		LastActiveAt: now,
		UpdatedAt:    now,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"presence", "status_msg", "last_active_at", "updated_at"}),
	}).Create(&row).Error
	return apperr.FromStorage(err, "")
}

func (s *PresenceService) Get(ctx context.Context, userID string) (*PresenceResponse, error) {
	var row models.PresenceStatus
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error; err != nil {
		return nil, apperr.FromStorage(err, "Presence not found.")
	}

	ago := time.Since(row.LastActiveAt)
	return &PresenceResponse{
		Presence:        row.Presence,
		StatusMsg:       row.StatusMsg,
		LastActiveAgo:   ago.Milliseconds(),
		CurrentlyActive: row.Presence == PresenceOnline && ago < 5*time.Minute,
	}, nil
}
