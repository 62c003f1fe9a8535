package handlers

import (
	"net/http"
	"strings"
	"testing"
)

func TestGetVersions(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/_matrix/client/versions", "", "")
	if w.Code != http.StatusOK || w.Body.String() != `{"versions":["r0.2.0"]}` {
		t.Errorf("versions: %d %s", w.Code, w.Body.String())
	}
}

func TestAuthHandler_RegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carl")

	w := s.do(t, "POST", "/_matrix/client/r0/register", "", `{"username":"carl","password":"other"}`)
	expectError(t, w, http.StatusBadRequest, "M_USER_IN_USE")

	w = s.do(t, "POST", "/_matrix/client/r0/register", "", `{"username":"Bad Name!","password":"x"}`)
	expectError(t, w, http.StatusBadRequest, "M_INVALID_PARAM")

	w = s.do(t, "POST", "/_matrix/client/r0/login", "", `{"type":"m.login.password","user":"carl","password":"wrong"}`)
	expectError(t, w, http.StatusForbidden, "M_FORBIDDEN")

	w = s.do(t, "POST", "/_matrix/client/r0/login", "", `{"type":"m.login.password","user":"`+userID("carl")+`","password":"secret123"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		UserID      string `json:"user_id"`
		AccessToken string `json:"access_token"`
		HomeServer  string `json:"home_server"`
	}
	decode(t, w, &resp)
	if resp.UserID != userID("carl") || resp.HomeServer != testDomain || resp.AccessToken == "" {
		t.Errorf("login response %+v", resp)
	}

	w = s.do(t, "GET", "/_matrix/client/r0/joined_rooms", resp.AccessToken, "")
	if w.Code != http.StatusOK {
		t.Errorf("token from login should authenticate, got %d", w.Code)
	}
}

func TestAuthHandler_LoginFlows(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/_matrix/client/r0/login", "", "")
	if w.Body.String() != `{"flows":[{"type":"m.login.password"}]}` {
		t.Errorf("flows: %s", w.Body.String())
	}
}

func TestAccessTokenRequired(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/_matrix/client/r0/joined_rooms", "", "")
	expectError(t, w, http.StatusUnauthorized, "M_MISSING_TOKEN")

	w = s.do(t, "GET", "/_matrix/client/r0/joined_rooms", "garbage", "")
	expectError(t, w, http.StatusUnauthorized, "M_UNKNOWN_TOKEN")
}

func TestNotJSONBody(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice")

	w := httpDo(s, "POST", "/_matrix/client/r0/createRoom", alice, "text/plain", "hello")
	expectError(t, w, http.StatusBadRequest, "M_NOT_JSON")
}

func TestFilterHandler(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")
	base := "/_matrix/client/r0/user/" + userID("alice") + "/filter"

	w := s.do(t, "POST", base, alice, `{ "room": { "timeline": { "limit": 10 } } }`)
	if w.Code != http.StatusOK {
		t.Fatalf("create filter: %d %s", w.Code, w.Body.String())
	}
	var created struct {
		FilterID string `json:"filter_id"`
	}
	decode(t, w, &created)

	w = s.do(t, "GET", base+"/"+created.FilterID, alice, "")
	if w.Code != http.StatusOK || w.Body.String() != `{"room":{"timeline":{"limit":10}}}` {
		t.Errorf("get filter: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, "GET", base+"/"+created.FilterID, bob, "")
	expectError(t, w, http.StatusForbidden, "M_FORBIDDEN")

	w = s.do(t, "GET", base+"/999", alice, "")
	expectError(t, w, http.StatusNotFound, "M_NOT_FOUND")
}

func TestPresenceHandler(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")
	path := "/_matrix/client/r0/presence/" + userID("alice") + "/status"

	w := s.do(t, "PUT", path, bob, `{"presence":"online"}`)
	expectError(t, w, http.StatusForbidden, "M_FORBIDDEN")

	w = s.do(t, "PUT", path, alice, `{"presence":"sleeping"}`)
	expectError(t, w, http.StatusBadRequest, "M_BAD_JSON")

	w = s.do(t, "PUT", path, alice, `{"presence":"unavailable","status_msg":"lunch"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set presence: %d %s", w.Code, w.Body.String())
	}

	w = s.do(t, "GET", path, bob, "")
	var resp struct {
		Presence  string `json:"presence"`
		StatusMsg string `json:"status_msg"`
	}
	decode(t, w, &resp)
	if resp.Presence != "unavailable" || resp.StatusMsg != "lunch" {
		t.Errorf("presence = %+v", resp)
	}
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, "GET", "/health", "", "")
	var resp struct {
		Status     string `json:"status"`
		Components struct {
			QueueMode string `json:"queue_mode"`
		} `json:"components"`
	}
	decode(t, w, &resp)
	if w.Code != http.StatusOK || resp.Status != "healthy" || resp.Components.QueueMode != "sync" {
		t.Errorf("health: %d %s", w.Code, w.Body.String())
	}
}

func TestMetricsHandler(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")
	roomID := s.createRoom(t, alice, "public")
	s.do(t, "POST", "/_matrix/client/r0/rooms/"+roomID+"/join", bob, "")

	w := s.do(t, "GET", "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: status %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"ruma_memberships_join 2\n",
		"ruma_rooms_total 1\n",
		"ruma_users_active 2\n",
		"ruma_membership_guards 1\n",
		"# TYPE ruma_goroutines gauge\n",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
