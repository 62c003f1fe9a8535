package membership

import (
	"testing"

	"github.com/ruma-go/homeserver/internal/models"
	"github.com/ruma-go/homeserver/internal/testutil"
)

func TestPolicy_SenderMay(t *testing.T) {
	db := testutil.NewDB(t)
	private := testutil.CreateRoom(t, db, "!p:t", "@alice:t", models.VisibilityPrivate)
	public := testutil.CreateRoom(t, db, "!q:t", "@alice:t", models.VisibilityPublic)

	testutil.SetMembership(t, db, "!p:t", "@alice:t", "@alice:t", models.MembershipJoin)
	testutil.SetMembership(t, db, "!p:t", "@carol:t", "@carol:t", models.MembershipJoin)
	testutil.SetMembership(t, db, "!q:t", "@alice:t", "@alice:t", models.MembershipJoin)

	policy := NewPolicy(NewStore())

	tests := []struct {
		name   string
		room   *models.Room
		sender string
		target string
		theirs *models.Membership
		action Action
		want   bool
	}{
		{"member invites outsider", private, "@carol:t", "@bob:t", nil, ActionInvite, true},
		{"member re-invites invitee", private, "@carol:t", "@bob:t", ptr(models.MembershipInvite), ActionInvite, true},
		{"member invites joined user", private, "@carol:t", "@bob:t", ptr(models.MembershipJoin), ActionInvite, false},
		{"member invites banned user", private, "@carol:t", "@bob:t", ptr(models.MembershipBan), ActionInvite, false},
		{"outsider invites", private, "@dave:t", "@bob:t", nil, ActionInvite, false},
		{"creator bans", private, "@alice:t", "@bob:t", ptr(models.MembershipJoin), ActionBan, true},
		{"creator bans outsider", private, "@alice:t", "@bob:t", nil, ActionBan, true},
		{"member bans", private, "@carol:t", "@bob:t", ptr(models.MembershipJoin), ActionBan, false},
		{"creator kicks member", private, "@alice:t", "@carol:t", ptr(models.MembershipJoin), ActionKick, true},
		{"creator kicks absent user", private, "@alice:t", "@bob:t", nil, ActionKick, false},
		{"member kicks", private, "@carol:t", "@bob:t", ptr(models.MembershipJoin), ActionKick, false},
		{"member leaves", private, "@carol:t", "@carol:t", ptr(models.MembershipJoin), ActionLeave, true},
		{"invitee rejects", private, "@bob:t", "@bob:t", ptr(models.MembershipInvite), ActionLeave, true},
		{"outsider leaves", private, "@bob:t", "@bob:t", nil, ActionLeave, false},
		{"leave twice", private, "@bob:t", "@bob:t", ptr(models.MembershipLeave), ActionLeave, false},
		{"knock private", private, "@bob:t", "@bob:t", nil, ActionKnock, true},
		{"knock after leave", private, "@bob:t", "@bob:t", ptr(models.MembershipLeave), ActionKnock, true},
		{"knock while invited", private, "@bob:t", "@bob:t", ptr(models.MembershipInvite), ActionKnock, false},
		{"knock public", public, "@bob:t", "@bob:t", nil, ActionKnock, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			may, err := policy.Capability(db, tt.room, tt.sender, tt.target, tt.theirs)
			if err != nil {
				t.Fatalf("Capability() error = %v", err)
			}
			if got := may.SenderMay(tt.action, tt.room.RoomID); got != tt.want {
				t.Errorf("SenderMay(%s) = %v, expected %v", tt.action, got, tt.want)
			}
		})
	}
}

func TestPolicy_OtherRoom(t *testing.T) {
	db := testutil.NewDB(t)
	room := testutil.CreateRoom(t, db, "!p:t", "@alice:t", models.VisibilityPrivate)
	testutil.SetMembership(t, db, "!p:t", "@alice:t", "@alice:t", models.MembershipJoin)

	may, err := NewPolicy(NewStore()).Capability(db, room, "@alice:t", "@bob:t", nil)
	if err != nil {
		t.Fatalf("Capability() error = %v", err)
	}
	if may.SenderMay(ActionInvite, "!other:t") {
		t.Error("capability must not apply to another room")
	}
}
