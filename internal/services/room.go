package services

import (
	"context"

	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/models"
	"github.com/ruma-go/homeserver/internal/services/membership"
	"github.com/ruma-go/homeserver/internal/utils"
	"gorm.io/gorm"
)

type RoomService struct {
	db       *gorm.DB
	engine   *membership.Engine
	profiles *ProfileService
	domain   string
}

func NewRoomService(db *gorm.DB, engine *membership.Engine, profiles *ProfileService, domain string) *RoomService {
	return &RoomService{db: db, engine: engine, profiles: profiles, domain: domain}
}

type CreateRoomRequest struct {
	Visibility string   `json:"visibility" binding:"omitempty,oneof=public private"`
	Name       string   `json:"name"`
	Topic      string   `json:"topic"`
	Invite     []string `json:"invite"`
}

type MembersResponse struct {
	Chunk []MemberEvent `json:"chunk"`
}

// Create makes a room with the creator joined and the requested users
// invited. These first rows are written directly: nothing exists yet for a
// transition to be validated against.
func (s *RoomService) Create(ctx context.Context, creator string, req *CreateRoomRequest) (*models.Room, error) {
	visibility := models.VisibilityPrivate
	if req.Visibility == string(models.VisibilityPublic) {
		visibility = models.VisibilityPublic
	}

	for _, invitee := range req.Invite {
		if _, _, err := utils.SplitUserID(invitee); err != nil {
			return nil, apperr.InvalidParam("Invalid user id in invite list: " + invitee)
		}
	}

	room := &models.Room{
		RoomID:     utils.NewRoomID(s.domain),
		CreatorID:  creator,
		Visibility: visibility,
		Name:       req.Name,
		Topic:      req.Topic,
	}

	store := s.engine.Store()
	var rows []models.RoomMembership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}

		joined, err := store.Upsert(tx, models.RoomMembership{
			RoomID:     room.RoomID,
			UserID:     creator,
			Sender:     creator,
			Membership: models.MembershipJoin,
		})
		if err != nil {
			return err
		}
		rows = append(rows, *joined)

		for _, invitee := range req.Invite {
			if invitee == creator {
				continue
			}
			invited, err := store.Upsert(tx, models.RoomMembership{
				RoomID:     room.RoomID,
				UserID:     invitee,
				Sender:     creator,
				Membership: models.MembershipInvite,
			})
			if err != nil {
				return err
			}
			rows = append(rows, *invited)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.FromStorage(err, "")
	}

	s.engine.Notify(rows...)
	return room, nil
}

// Transition applies a user-requested membership change.
func (s *RoomService) Transition(ctx context.Context, roomID, sender, target string, m models.Membership) (*models.RoomMembership, error) {
	return s.engine.Create(ctx, models.RoomMembershipOptions{
		RoomID:     roomID,
		UserID:     target,
		Sender:     sender,
		Membership: m,
	})
}

// Members lists the room's membership events. Only users with a membership
// in the room may read it.
func (s *RoomService) Members(ctx context.Context, roomID, requester string) (*MembersResponse, error) {
	db := s.db.WithContext(ctx)
	store := s.engine.Store()

	if _, err := store.Room(db, roomID); err != nil {
		return nil, err
	}
	mine, err := store.Peek(db, roomID, requester)
	if err != nil {
		return nil, err
	}
	if mine == nil {
		return nil, apperr.Forbidden("You aren't a member of the room.")
	}

	rows, err := store.FindByRoom(db, roomID)
	if err != nil {
		return nil, err
	}

	userIDs := make([]string, 0, len(rows))
	for _, m := range rows {
		userIDs = append(userIDs, m.UserID)
	}
	profiles, err := s.profiles.GetProfiles(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	resp := &MembersResponse{Chunk: make([]MemberEvent, 0, len(rows))}
	for _, m := range rows {
		var profile *models.Profile
		if p, ok := profiles[m.UserID]; ok {
			profile = &p
		}
		resp.Chunk = append(resp.Chunk, NewMemberEvent(m, profile))
	}
	return resp, nil
}

// JoinedRooms returns the ids of rooms userID is currently joined to.
func (s *RoomService) JoinedRooms(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.engine.Store().FindJoinedByUser(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}
	return roomIDs(rows), nil
}
