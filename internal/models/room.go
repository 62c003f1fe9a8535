package models

import "time"

// Visibility controls whether a room can be joined without an invite.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Room holds the room-level data the membership policy needs.
type Room struct {
	RoomID     string     `gorm:"primaryKey;size:255" json:"room_id"`
	CreatorID  string     `gorm:"size:255;not null;index" json:"creator"`
	Visibility Visibility `gorm:"size:20;not null;default:private" json:"visibility"`
	Name       string     `gorm:"size:255" json:"name,omitempty"`
	Topic      string     `gorm:"type:text" json:"topic,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Room) TableName() string { return "rooms" }
