package membership

import (
	"testing"

	"github.com/ruma-go/homeserver/internal/apperr"
	"github.com/ruma-go/homeserver/internal/models"
	"github.com/ruma-go/homeserver/internal/testutil"
)

func TestStore_GetMissing(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore()

	m, err := store.Get(db, "!r:t", "@bob:t")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if m != nil {
		t.Errorf("Get() = %+v, expected nil", m)
	}
}

func TestStore_UpsertOverwrites(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore()

	sequence := []struct {
		sender     string
		membership models.Membership
	}{
		{"@alice:t", models.MembershipInvite},
		{"@bob:t", models.MembershipJoin},
		{"@alice:t", models.MembershipBan},
	}

	var firstID uint
	for i, step := range sequence {
		stored, err := store.Upsert(db, models.RoomMembership{
			RoomID:     "!r:t",
			UserID:     "@bob:t",
			Sender:     step.sender,
			Membership: step.membership,
		})
		if err != nil {
			t.Fatalf("Upsert(%s) error = %v", step.membership, err)
		}
		if stored.Membership != step.membership || stored.Sender != step.sender {
			t.Errorf("Upsert(%s) stored %+v", step.membership, stored)
		}
		if i == 0 {
			firstID = stored.ID
		} else if stored.ID != firstID {
			t.Errorf("row id changed from %d to %d", firstID, stored.ID)
		}
	}

	var count int64
	db.Model(&models.RoomMembership{}).Where("room_id = ? AND user_id = ?", "!r:t", "@bob:t").Count(&count)
	if count != 1 {
		t.Errorf("row count = %d, expected 1", count)
	}

	m, err := store.Get(db, "!r:t", "@bob:t")
	if err != nil || m == nil {
		t.Fatalf("Get() = %v, %v", m, err)
	}
	if m.Membership != models.MembershipBan || m.Sender != "@alice:t" {
		t.Errorf("Get() = %+v, expected ban by @alice:t", m)
	}
}

func TestStore_FindByUser(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore()

	testutil.SetMembership(t, db, "!a:t", "@bob:t", "@bob:t", models.MembershipJoin)
	testutil.SetMembership(t, db, "!b:t", "@bob:t", "@alice:t", models.MembershipInvite)
	testutil.SetMembership(t, db, "!c:t", "@bob:t", "@bob:t", models.MembershipJoin)
	testutil.SetMembership(t, db, "!a:t", "@alice:t", "@alice:t", models.MembershipJoin)

	all, err := store.FindByUser(db, "@bob:t")
	if err != nil {
		t.Fatalf("FindByUser() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("FindByUser() returned %d rows, expected 3", len(all))
	}

	joined, err := store.FindJoinedByUser(db, "@bob:t")
	if err != nil {
		t.Fatalf("FindJoinedByUser() error = %v", err)
	}
	if len(joined) != 2 || joined[0].RoomID != "!a:t" || joined[1].RoomID != "!c:t" {
		t.Errorf("FindJoinedByUser() = %+v", joined)
	}

	members, err := store.FindByRoom(db, "!a:t")
	if err != nil {
		t.Fatalf("FindByRoom() error = %v", err)
	}
	if len(members) != 2 || members[0].UserID != "@alice:t" {
		t.Errorf("FindByRoom() = %+v", members)
	}

	none, err := store.FindByUser(db, "@nobody:t")
	if err != nil || len(none) != 0 {
		t.Errorf("FindByUser(unknown) = %v, %v", none, err)
	}
}

func TestStore_RoomNotFound(t *testing.T) {
	db := testutil.NewDB(t)

	_, err := NewStore().Room(db, "!missing:t")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Room() error = %v, expected NotFound", err)
	}
}
