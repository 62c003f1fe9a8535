package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/ruma-go/homeserver/internal/models"
)

func TestProfileHandler_Displayname(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")
	path := "/_matrix/client/r0/profile/" + userID("alice") + "/displayname"

	w := s.do(t, "GET", path, bob, "")
	if w.Code != http.StatusOK || w.Body.String() != `{"displayname":"alice"}` {
		t.Fatalf("GET displayname: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, "PUT", path, bob, `{"displayname":"Mallory"}`)
	body := expectError(t, w, http.StatusForbidden, "M_FORBIDDEN")
	if body.Error != notOwnUserMessage {
		t.Errorf("error = %q", body.Error)
	}

	w = s.do(t, "PUT", path, alice, `{"displayname":"Alice"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT displayname: %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, "GET", path, bob, "")
	if w.Body.String() != `{"displayname":"Alice"}` {
		t.Errorf("GET after PUT: %s", w.Body.String())
	}

	w = s.do(t, "PUT", path, alice, `{"displayname":null}`)
	if w.Code != http.StatusOK {
		t.Fatalf("clear displayname: %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, "GET", path, bob, "")
	if w.Body.String() != `{}` {
		t.Errorf("GET after clear: %s", w.Body.String())
	}
}

func TestProfileHandler_AvatarURLFansOutToJoinedRooms(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")
	roomID := s.createRoom(t, bob, "public")
	if w := s.do(t, "POST", "/_matrix/client/r0/rooms/"+roomID+"/join", alice, ""); w.Code != http.StatusOK {
		t.Fatalf("join: status %d", w.Code)
	}

	events := s.hub.Subscribe("test")
	defer s.hub.Unsubscribe("test")

	path := "/_matrix/client/r0/profile/" + userID("alice") + "/avatar_url"
	w := s.do(t, "PUT", path, alice, `{"avatar_url":"mxc://ruma.test/a"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT avatar_url: %d %s", w.Code, w.Body.String())
	}

	select {
	case ev := <-events:
		if ev.RoomID != roomID || ev.StateKey != userID("alice") || ev.Content.Membership != models.MembershipJoin {
			t.Errorf("unexpected event %+v", ev)
		}
		if ev.Content.AvatarURL == nil || *ev.Content.AvatarURL != "mxc://ruma.test/a" {
			t.Errorf("event should carry the new avatar, got %+v", ev.Content)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a membership event after the avatar change")
	}

	// The refresh is a privileged update, so repeating it is never rate-limited.
	w = s.do(t, "PUT", path, alice, `{"avatar_url":"mxc://ruma.test/a"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("repeat PUT avatar_url: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, "GET", path, bob, "")
	if w.Body.String() != `{"avatar_url":"mxc://ruma.test/a"}` {
		t.Errorf("GET avatar_url: %s", w.Body.String())
	}
}

func TestProfileHandler_GetProfile(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice")

	w := s.do(t, "GET", "/_matrix/client/r0/profile/"+userID("alice"), alice, "")
	if w.Code != http.StatusOK || w.Body.String() != `{"displayname":"alice"}` {
		t.Fatalf("GET profile: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, "GET", "/_matrix/client/r0/profile/"+userID("nobody"), alice, "")
	expectError(t, w, http.StatusNotFound, "M_NOT_FOUND")

	w = s.do(t, "GET", "/_matrix/client/r0/profile/nobody", alice, "")
	expectError(t, w, http.StatusBadRequest, "M_INVALID_PARAM")
}

func TestProfileHandler_Refresh(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")
	path := "/_ruma/profile/" + userID("alice") + "/refresh"

	w := s.do(t, "POST", path, bob, "")
	expectError(t, w, http.StatusForbidden, "M_FORBIDDEN")

	w = s.do(t, "POST", path, alice, "")
	if w.Code != http.StatusOK || w.Body.String() != `{"async":false,"queued":true}` {
		t.Fatalf("refresh: %d %s", w.Code, w.Body.String())
	}

	select {
	case got := <-s.refreshed:
		if got != userID("alice") {
			t.Errorf("refreshed %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("refresh task did not run")
	}
}
