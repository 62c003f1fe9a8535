package services

import (
	"context"
	"time"

	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/models"
	"github.com/ruma-go/homeserver/internal/services/membership"
	"github.com/ruma-go/homeserver/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const profileNotFoundMessage = "Profile not found."

// ProfileService owns profile rows and keeps room state in step with them:
// every change is re-announced as a join in each room the user is joined to.
type ProfileService struct {
	db       *gorm.DB
	engine   *membership.Engine
	presence *PresenceService
}

func NewProfileService(db *gorm.DB, engine *membership.Engine, presence *PresenceService) *ProfileService {
	return &ProfileService{db: db, engine: engine, presence: presence}
}

type DisplaynameRequest struct {
	Displayname *string `json:"displayname"`
}

type AvatarURLRequest struct {
	AvatarURL *string `json:"avatar_url"`
}

// UpdateAvatarURL sets or clears the avatar and fans the change out.
func (s *ProfileService) UpdateAvatarURL(ctx context.Context, userID string, avatarURL *string) (*models.Profile, error) {
	return s.update(ctx, userID, func(p *models.Profile) { p.AvatarURL = avatarURL })
}

// UpdateDisplayname sets or clears the display name and fans the change out.
func (s *ProfileService) UpdateDisplayname(ctx context.Context, userID string, displayname *string) (*models.Profile, error) {
	return s.update(ctx, userID, func(p *models.Profile) { p.Displayname = displayname })
}

// UpdateMemberships re-announces the user's joins without touching the
// profile. It returns the rooms that were updated.
func (s *ProfileService) UpdateMemberships(ctx context.Context, userID string) ([]string, error) {
	var rows []models.RoomMembership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rows, err = s.fanOut(tx, userID)
		return err
	})
	if err != nil {
		return nil, apperr.FromStorage(err, "")
	}

	s.engine.Notify(rows...)
	return roomIDs(rows), nil
}

func (s *ProfileService) update(ctx context.Context, userID string, mutate func(*models.Profile)) (*models.Profile, error) {
	var profile models.Profile
	var rows []models.RoomMembership

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Concurrent first writes race on the insert; the loser becomes a
		// no-op and both then serialise on the row lock.
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Profile{UserID: userID}).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Take(&profile).Error; err != nil {
			return err
		}
		mutate(&profile)
		if err := tx.Save(&profile).Error; err != nil {
			return err
		}

		if err := s.presence.Touch(tx, userID, time.Now()); err != nil {
			return err
		}

		var err error
		rows, err = s.fanOut(tx, userID)
		return err
	})
	if err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("profile update rolled back")
		return nil, apperr.FromStorage(err, "")
	}

	s.engine.Notify(rows...)
	return &profile, nil
}

// fanOut re-asserts every current join of userID through the privileged
// path. The first failing room aborts the whole transaction.
func (s *ProfileService) fanOut(tx *gorm.DB, userID string) ([]models.RoomMembership, error) {
	joined, err := s.engine.Store().FindJoinedByUser(tx, userID)
	if err != nil {
		return nil, err
	}

	rows := make([]models.RoomMembership, 0, len(joined))
	for _, m := range joined {
		stored, changed, err := s.engine.UpdateTx(tx, models.RoomMembershipOptions{
			RoomID:     m.RoomID,
			UserID:     userID,
			Sender:     userID,
			Membership: models.MembershipJoin,
		})
		if err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Str("room_id", m.RoomID).Msg("membership fan-out failed")
			return nil, err
		}
		if changed {
			rows = append(rows, *stored)
		}
	}
	return rows, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error; err != nil {
		return nil, apperr.FromStorage(err, profileNotFoundMessage)
	}
	return &profile, nil
}

// GetProfiles returns the profiles that exist among userIDs, keyed by user.
func (s *ProfileService) GetProfiles(ctx context.Context, userIDs []string) (map[string]models.Profile, error) {
	result := make(map[string]models.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	var profiles []models.Profile
	if err := s.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, apperr.FromStorage(err, "")
	}
	for _, p := range profiles {
		result[p.UserID] = p
	}
	return result, nil
}

func roomIDs(rows []models.RoomMembership) []string {
	ids := make([]string, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.RoomID)
	}
	return ids
}
