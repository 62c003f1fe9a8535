package membership

import (
	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/models"
)

// Action is what a sender asks to do to a target in a room.
type Action string

const (
	ActionInvite Action = "invite"
	ActionBan    Action = "ban"
	ActionKick   Action = "kick"
	ActionLeave  Action = "leave"
	ActionKnock  Action = "knock"
)

const (
	BannedMessage       = "You are banned from this room."
	unknownStateMessage = "Unknown membership state."
	inviteDeniedMessage = "You don't have permission to invite that user to this room."
	banDeniedMessage    = "You don't have permission to ban users from this room."
	kickDeniedMessage   = "You don't have permission to kick users from this room."
	leaveDeniedMessage  = "You are not a member of this room."
	knockDeniedMessage  = "You cannot knock on this room."
)

// Capability answers whether the sender of the transition being validated
// may perform action in roomID.
type Capability interface {
	SenderMay(action Action, roomID string) bool
}

// Transition is everything the validator looks at.
type Transition struct {
	RoomID     string
	Current    *models.Membership
	Requested  models.Membership
	Sender     string
	Target     string
	Visibility models.Visibility
}

// Decision is the validator's verdict. When Allowed, Membership is the value
// to store, which differs from the requested one only for a banned user
// leaving.
type Decision struct {
	Allowed    bool
	Reason     string
	Membership models.Membership
}

func allow(m models.Membership) Decision {
	return Decision{Allowed: true, Membership: m}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Err returns nil for an allowed decision and a Forbidden error otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperr.Forbidden(d.Reason)
}

// ActionFor maps a requested membership to the action the sender performs.
// A leave imposed on somebody else is a kick.
func ActionFor(requested models.Membership, sender, target string) Action {
	switch requested {
	case models.MembershipInvite:
		return ActionInvite
	case models.MembershipBan:
		return ActionBan
	case models.MembershipKnock:
		return ActionKnock
	case models.MembershipLeave:
		if sender != target {
			return ActionKick
		}
		return ActionLeave
	}
	return ""
}

// Validate decides a transition. The first matching rule wins.
func Validate(t Transition, may Capability) Decision {
	if !t.Requested.Valid() {
		return deny(unknownStateMessage)
	}

	// A banned user cannot act on their own membership except to leave,
	// and leaving does not lift the ban. Nobody can join them back in.
	if t.Current != nil && *t.Current == models.MembershipBan {
		if t.Sender == t.Target {
			if t.Requested == models.MembershipLeave {
				return allow(models.MembershipBan)
			}
			return deny(BannedMessage)
		}
		if t.Requested == models.MembershipJoin {
			return deny(BannedMessage)
		}
	}

	if t.Requested == models.MembershipJoin {
		switch {
		case t.Visibility == models.VisibilityPublic:
			return allow(models.MembershipJoin)
		case t.Current != nil && *t.Current == models.MembershipInvite && t.Sender == t.Target:
			return allow(models.MembershipJoin)
		case t.Current != nil && *t.Current == models.MembershipJoin && t.Sender == t.Target:
			return allow(models.MembershipJoin)
		}
		return deny(apperr.NotInvitedMessage)
	}

	action := ActionFor(t.Requested, t.Sender, t.Target)
	if may != nil && may.SenderMay(action, t.RoomID) {
		return allow(t.Requested)
	}

	switch action {
	case ActionInvite:
		return deny(inviteDeniedMessage)
	case ActionBan:
		return deny(banDeniedMessage)
	case ActionKick:
		return deny(kickDeniedMessage)
	case ActionLeave:
		return deny(leaveDeniedMessage)
	default:
		return deny(knockDeniedMessage)
	}
}
