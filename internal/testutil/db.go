// Package testutil provides a migrated, file-backed sqlite database for tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/ruma-go/homeserver/internal/config"
	"github.com/ruma-go/homeserver/internal/models"
	"gorm.io/gorm"
)

// NewDB opens a fresh database in t.TempDir and migrates every model.
// Writers are serialized by sqlite, which stands in for row locks.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := models.OpenDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          dsn,
		MaxOpenConns: 4,
		MaxIdleConns: 4,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateRoom inserts a room row and returns it.
func CreateRoom(t testing.TB, db *gorm.DB, roomID, creator string, visibility models.Visibility) *models.Room {
	t.Helper()

	room := &models.Room{RoomID: roomID, CreatorID: creator, Visibility: visibility}
	if err := db.Create(room).Error; err != nil {
		t.Fatalf("create room %s: %v", roomID, err)
	}
	return room
}

// SetMembership writes a membership row directly, bypassing every check.
func SetMembership(t testing.TB, db *gorm.DB, roomID, userID, sender string, membership models.Membership) {
	t.Helper()

	row := &models.RoomMembership{RoomID: roomID, UserID: userID, Sender: sender, Membership: membership}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("set membership %s/%s: %v", roomID, userID, err)
	}
}
