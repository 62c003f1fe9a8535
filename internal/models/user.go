package models

import (
	"time"
)

// User is a local account.
type User struct {
	UserID       string     `gorm:"primaryKey;size:255" json:"user_id"` // @localpart:domain
	Localpart    string     `gorm:"uniqueIndex;size:100;not null" json:"localpart"`
	PasswordHash string     `gorm:"size:255" json:"-"`                      // empty for LDAP users
	AuthType     string     `gorm:"size:20;default:local" json:"auth_type"` // local, ldap
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Filter is an opaque per-user event filter.
type Filter struct {
	ID        uint      `gorm:"primaryKey" json:"filter_id"`
	UserID    string    `gorm:"index;size:255;not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (Filter) TableName() string { return "filters" }
