package models

import "time"

// MembershipGuard remembers the last publicly applied membership for a
// (room, user) pair so an identical follow-up request can be refused.
type MembershipGuard struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	RoomID     string     `gorm:"uniqueIndex:idx_guard_room_user;size:255;not null" json:"room_id"`
	UserID     string     `gorm:"uniqueIndex:idx_guard_room_user;size:255;not null" json:"user_id"`
	Membership Membership `gorm:"size:20;not null" json:"membership"`
	AppliedAt  time.Time  `gorm:"index" json:"applied_at"`
}

func (MembershipGuard) TableName() string { return "membership_guards" }
