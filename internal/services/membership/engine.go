// Package membership decides and applies room membership transitions.
//
// A transition runs inside one database transaction: the target row is
// loaded under a lock, the duplicate-transition gate is consulted (public
// path only), the validator decides, and the row is overwritten. Nothing is
// visible to other requests until the transaction commits.
package membership

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/models"
	"github.com/ruma-go/homeserver/pkg/logger"
	"gorm.io/gorm"
)

// Publisher receives every committed transition.
type Publisher interface {
	PublishMembership(m models.RoomMembership)
}

type Engine struct {
	db     *gorm.DB
	store  *Store
	guard  *Guard
	policy *Policy
	events Publisher
	now    func() time.Time
}

func NewEngine(db *gorm.DB, store *Store, guard *Guard, policy *Policy, events Publisher) *Engine {
	return &Engine{
		db:     db,
		store:  store,
		guard:  guard,
		policy: policy,
		events: events,
		now:    time.Now,
	}
}

// Store exposes the membership store for read-side callers.
func (e *Engine) Store() *Store {
	return e.store
}

// Create applies a user-initiated transition. An identical transition
// repeated right after it was applied fails with RateLimited.
func (e *Engine) Create(ctx context.Context, opts models.RoomMembershipOptions) (*models.RoomMembership, error) {
	return e.run(ctx, opts, true)
}

// Update applies a system-initiated transition. It is authorized like
// Create but never rate limited.
func (e *Engine) Update(ctx context.Context, opts models.RoomMembershipOptions) (*models.RoomMembership, error) {
	return e.run(ctx, opts, false)
}

// UpdateTx is Update inside a transaction owned by the caller, who must
// pass the committed rows to Notify. changed is false when the stored row
// was left as it was, in which case there is nothing to publish.
func (e *Engine) UpdateTx(tx *gorm.DB, opts models.RoomMembershipOptions) (stored *models.RoomMembership, changed bool, err error) {
	return e.apply(tx, opts, false)
}

// Notify publishes committed rows.
func (e *Engine) Notify(rows ...models.RoomMembership) {
	if e.events == nil {
		return
	}
	for _, row := range rows {
		e.events.PublishMembership(row)
	}
}

func (e *Engine) run(ctx context.Context, opts models.RoomMembershipOptions, public bool) (*models.RoomMembership, error) {
	var stored *models.RoomMembership
	var changed bool
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		stored, changed, err = e.apply(tx, opts, public)
		return err
	})
	if err != nil {
		err = apperr.FromStorage(err, "")
		switch apperr.KindOf(err) {
		case apperr.KindForbidden, apperr.KindRateLimited, apperr.KindNotFound, apperr.KindInvalidParam:
			logTransition(logger.Debug(), opts, public).Err(err).Msg("membership transition rejected")
		default:
			logTransition(logger.Error(), opts, public).Err(err).Msg("membership transition failed")
		}
		return nil, err
	}

	if !changed {
		logTransition(logger.Debug(), opts, public).Str("kept", string(stored.Membership)).Msg("membership transition left row unchanged")
		return stored, nil
	}
	logTransition(logger.Debug(), opts, public).Msg("membership transition applied")
	e.Notify(*stored)
	return stored, nil
}

func (e *Engine) apply(tx *gorm.DB, opts models.RoomMembershipOptions, public bool) (*models.RoomMembership, bool, error) {
	if opts.RoomID == "" || opts.UserID == "" || opts.Sender == "" {
		return nil, false, apperr.InvalidParam("room_id, user_id and sender are required")
	}

	room, err := e.store.Room(tx, opts.RoomID)
	if err != nil {
		return nil, false, err
	}

	current, err := e.store.Get(tx, opts.RoomID, opts.UserID)
	if err != nil {
		return nil, false, err
	}

	now := e.now()
	fp := Fingerprint{RoomID: opts.RoomID, UserID: opts.UserID, Membership: opts.Membership}
	if public {
		if err := e.guard.Admit(tx, fp, now); err != nil {
			return nil, false, err
		}
	}

	var currentMembership *models.Membership
	if current != nil {
		currentMembership = &current.Membership
	}

	may, err := e.policy.Capability(tx, room, opts.Sender, opts.UserID, currentMembership)
	if err != nil {
		return nil, false, err
	}

	decision := Validate(Transition{
		RoomID:     opts.RoomID,
		Current:    currentMembership,
		Requested:  opts.Membership,
		Sender:     opts.Sender,
		Target:     opts.UserID,
		Visibility: room.Visibility,
	}, may)
	if err := decision.Err(); err != nil {
		return nil, false, err
	}

	// A banned user's leave is accepted but the ban row, including the
	// sender who issued it, stays as stored.
	if current != nil && decision.Membership != opts.Membership && decision.Membership == current.Membership {
		return current, false, nil
	}

	stored, err := e.store.Upsert(tx, models.RoomMembership{
		RoomID:     opts.RoomID,
		UserID:     opts.UserID,
		Sender:     opts.Sender,
		Membership: decision.Membership,
	})
	if err != nil {
		return nil, false, err
	}

	if public {
		err = e.guard.Record(tx, fp, now)
	} else {
		err = e.guard.Observe(tx, opts.RoomID, opts.UserID, stored.Membership)
	}
	if err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

func logTransition(ev *zerolog.Event, opts models.RoomMembershipOptions, public bool) *zerolog.Event {
	return ev.
		Str("room_id", opts.RoomID).
		Str("target", opts.UserID).
		Str("sender", opts.Sender).
		Str("membership", string(opts.Membership)).
		Bool("privileged", !public)
}
