package membership

import (
	"github.com/ruma-go/homeserver/internal/models"
	"gorm.io/gorm"
)

// Policy derives sender capabilities from stored room state: the room
// creator is the only member with standing to ban or kick.
type Policy struct {
	store *Store
}

func NewPolicy(store *Store) *Policy {
	return &Policy{store: store}
}

// Capability loads the sender's relation to room and returns a checker for
// a transition on target, whose current membership the caller already holds.
func (p *Policy) Capability(tx *gorm.DB, room *models.Room, sender, target string, targetCurrent *models.Membership) (Capability, error) {
	c := &roomCapability{
		room:   room,
		sender: sender,
		target: target,
		theirs: targetCurrent,
	}

	if sender == target {
		c.mine = targetCurrent
		return c, nil
	}

	// Only the target row is locked; the sender row is read as-is.
	row, err := p.store.Peek(tx, room.RoomID, sender)
	if err != nil {
		return nil, err
	}
	if row != nil {
		c.mine = &row.Membership
	}
	return c, nil
}

type roomCapability struct {
	room   *models.Room
	sender string
	target string
	mine   *models.Membership
	theirs *models.Membership
}

func (c *roomCapability) SenderMay(action Action, roomID string) bool {
	if c.room == nil || roomID != c.room.RoomID {
		return false
	}

	switch action {
	case ActionInvite:
		return c.sender != c.target && is(c.mine, models.MembershipJoin) &&
			!is(c.theirs, models.MembershipJoin, models.MembershipBan)
	case ActionBan:
		return c.sender != c.target && c.isCreator() && is(c.mine, models.MembershipJoin)
	case ActionKick:
		return c.isCreator() && is(c.mine, models.MembershipJoin) &&
			is(c.theirs, models.MembershipJoin, models.MembershipInvite, models.MembershipKnock)
	case ActionLeave:
		return c.sender == c.target &&
			is(c.theirs, models.MembershipJoin, models.MembershipInvite, models.MembershipKnock)
	case ActionKnock:
		return c.sender == c.target && c.room.Visibility == models.VisibilityPrivate &&
			(c.theirs == nil || is(c.theirs, models.MembershipLeave))
	}
	return false
}

func (c *roomCapability) isCreator() bool {
	return c.sender == c.room.CreatorID
}

func is(m *models.Membership, values ...models.Membership) bool {
	if m == nil {
		return false
	}
	for _, v := range values {
		if *m == v {
			return true
		}
	}
	return false
}
