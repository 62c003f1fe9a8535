package services

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SchedulerLock hands a named job to at most one instance at a time. A
// holder that dies loses the lock once ttl has passed.
type SchedulerLock struct {
	db    *gorm.DB
	owner string
	ttl   time.Duration
}

func NewSchedulerLock(db *gorm.DB, ttl time.Duration) *SchedulerLock {
	host, _ := os.Hostname()
	return &SchedulerLock{
		db:    db,
		owner: host + "-" + uuid.NewString()[:8],
		ttl:   ttl,
	}
}

// Owner identifies this instance in the locked_by column.
func (l *SchedulerLock) Owner() string {
	return l.owner
}

// TryAcquire takes the lock unless another owner holds an unexpired one.
func (l *SchedulerLock) TryAcquire(name, key string, now time.Time) (bool, error) {
	now = now.UTC()
	row := models.SchedulerLock{
		LockName:  name,
		LockKey:   key,
		LockedBy:  l.owner,
		LockedAt:  now,
		ExpiresAt: now.Add(l.ttl),
	}

	result := l.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lock_name"}, {Name: "lock_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"locked_by", "locked_at", "expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{clause.Expr{
			SQL:  "scheduler_locks.locked_by = ? OR scheduler_locks.expires_at <= ?",
			Vars: []interface{}{l.owner, now},
		}}},
	}).Create(&row)
	if result.Error != nil {
		return false, apperr.FromStorage(result.Error, "")
	}
	return result.RowsAffected > 0, nil
}

// Release drops the lock if this instance holds it.
func (l *SchedulerLock) Release(name, key string) error {
	err := l.db.Where("lock_name = ? AND lock_key = ? AND locked_by = ?", name, key, l.owner).
		Delete(&models.SchedulerLock{}).Error
	if err != nil {
		return apperr.FromStorage(err, "")
	}
	return nil
}
