package membership

import (
	"time"

	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Fingerprint keys the duplicate-transition gate.
type Fingerprint struct {
	RoomID     string
	UserID     string
	Membership models.Membership
}

// Guard refuses a public transition identical to the one just applied for
// the same (room, user) pair. Its state is the membership_guards table, so
// it commits and rolls back together with the membership write.
//
// With a zero window the gate holds until the stored membership changes;
// otherwise an identical request is admitted again once window has passed.
type Guard struct {
	window time.Duration
}

func NewGuard(window time.Duration) *Guard {
	return &Guard{window: window}
}

// Window returns the configured cooldown; zero means no time bound.
func (g *Guard) Window() time.Duration {
	return g.window
}

// Admit returns a RateLimited error when fp was the last publicly applied
// transition and is still in force.
func (g *Guard) Admit(tx *gorm.DB, fp Fingerprint, now time.Time) error {
	var rows []models.MembershipGuard
	err := tx.Where("room_id = ? AND user_id = ?", fp.RoomID, fp.UserID).Limit(1).Find(&rows).Error
	if err != nil {
		return apperr.FromStorage(err, "")
	}
	if len(rows) == 0 || rows[0].Membership != fp.Membership {
		return nil
	}
	if g.window > 0 && !rows[0].AppliedAt.After(now.Add(-g.window)) {
		return nil
	}
	return apperr.RateLimited()
}

// Record marks fp as just applied. The upsert only overwrites a row that
// Admit would have let through, so when a concurrent identical transaction
// recorded first nothing is written and RateLimited is returned.
func (g *Guard) Record(tx *gorm.DB, fp Fingerprint, now time.Time) error {
	row := models.MembershipGuard{
		RoomID:     fp.RoomID,
		UserID:     fp.UserID,
		Membership: fp.Membership,
		AppliedAt:  now.UTC(),
	}

	stale := clause.Expr{SQL: "membership_guards.membership <> excluded.membership"}
	if g.window > 0 {
		stale = clause.Expr{
			SQL:  "membership_guards.membership <> excluded.membership OR membership_guards.applied_at <= ?",
			Vars: []interface{}{now.Add(-g.window).UTC()},
		}
	}

	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"membership", "applied_at"}),
		Where:     clause.Where{Exprs: []clause.Expression{stale}},
	}).Create(&row)
	if result.Error != nil {
		return apperr.FromStorage(result.Error, "")
	}
	if result.RowsAffected == 0 {
		return apperr.RateLimited()
	}
	return nil
}

// Observe drops the gate for (roomID, userID) once the stored membership no
// longer matches the fingerprinted one.
func (g *Guard) Observe(tx *gorm.DB, roomID, userID string, current models.Membership) error {
	err := tx.Where("room_id = ? AND user_id = ? AND membership <> ?", roomID, userID, current).
		Delete(&models.MembershipGuard{}).Error
	return apperr.FromStorage(err, "")
}

// Prune deletes gates that can no longer deny anything: those whose
// membership differs from the stored one and, with a window, expired ones.
func (g *Guard) Prune(db *gorm.DB, now time.Time) (int64, error) {
	current := db.Model(&models.RoomMembership{}).
		Select("1").
		Where("room_memberships.room_id = membership_guards.room_id").
		Where("room_memberships.user_id = membership_guards.user_id").
		Where("room_memberships.membership = membership_guards.membership")

	query := db.Where("NOT EXISTS (?)", current)
	if g.window > 0 {
		query = db.Where(query).Or("applied_at <= ?", now.Add(-g.window).UTC())
	}

	result := query.Delete(&models.MembershipGuard{})
	if result.Error != nil {
		return 0, apperr.FromStorage(result.Error, "")
	}
	return result.RowsAffected, nil
}
