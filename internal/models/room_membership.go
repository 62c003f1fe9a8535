package models

import "time"

// Membership is the relationship state of a user to a room.
type Membership string

const (
	MembershipInvite Membership = "invite"
	MembershipJoin   Membership = "join"
	MembershipLeave  Membership = "leave"
	MembershipBan    Membership = "ban"
	MembershipKnock  Membership = "knock"
)

// Valid reports whether m is one of the known membership states.
func (m Membership) Valid() bool {
	switch m {
	case MembershipInvite, MembershipJoin, MembershipLeave, MembershipBan, MembershipKnock:
		return true
	}
	return false
}

// RoomMembership is the current membership of one user in one room.
// A transition overwrites the row; leave and ban are values, not deletions.
type RoomMembership struct {
	ID         uint       `gorm:"primaryKey" json:"-"`
	RoomID     string     `gorm:"uniqueIndex:idx_room_user;size:255;not null" json:"room_id"`
	UserID     string     `gorm:"uniqueIndex:idx_room_user;index;size:255;not null" json:"user_id"`
	Sender     string     `gorm:"size:255;not null" json:"sender"`
	Membership Membership `gorm:"size:20;index;not null" json:"membership"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (RoomMembership) TableName() string { return "room_memberships" }

// RoomMembershipOptions is the transient request for a transition.
type RoomMembershipOptions struct {
	RoomID     string
	UserID     string
	Sender     string
	Membership Membership
}
