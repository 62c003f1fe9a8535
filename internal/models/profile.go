package models

import "time"

// Profile is per-user display metadata. Each field is independently nullable.
type Profile struct {
	UserID      string    `gorm:"primaryKey;size:255" json:"-"`
	AvatarURL   *string   `gorm:"size:1000" json:"avatar_url,omitempty"`
	Displayname *string   `gorm:"size:255" json:"displayname,omitempty"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

func (Profile) TableName() string { return "profiles" }

// PresenceStatus tracks the last activity of a user.
type PresenceStatus struct {
	UserID       string    `gorm:"primaryKey;size:255" json:"-"`
	Presence     string    `gorm:"size:20;not null;default:offline" json:"presence"` // online, offline, unavailable
	StatusMsg    *string   `gorm:"size:500" json:"status_msg,omitempty"`
	LastActiveAt time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

func (PresenceStatus) TableName() string { return "presence_statuses" }
