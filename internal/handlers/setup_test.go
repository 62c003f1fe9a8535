package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ruma-go/homeserver/internal/config"
	"github.com/ruma-go/homeserver/internal/middleware"
	"github.com/ruma-go/homeserver/internal/services"
	"github.com/ruma-go/homeserver/internal/services/membership"
	"github.com/ruma-go/homeserver/internal/testutil"
	"github.com/ruma-go/homeserver/internal/utils"
	"gorm.io/gorm"
)

const testDomain = "ruma.test"

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("handlers-test-secret")
}

type testServer struct {
	router    *gin.Engine
	db        *gorm.DB
	hub       *services.EventHub
	refreshed chan string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewDB(t)
	hub := services.NewEventHub(db)
	store := membership.NewStore()
	engine := membership.NewEngine(db, store, membership.NewGuard(0), membership.NewPolicy(store), hub)

	presenceService := services.NewPresenceService(db)
	profileService := services.NewProfileService(db, engine, presenceService)
	roomService := services.NewRoomService(db, engine, profileService, testDomain)
	authService := services.NewAuthService(db, services.NewLDAPService(&config.LDAPConfig{}),
		&config.JWTConfig{Secret: "handlers-test-secret", ExpireHour: 1}, testDomain)

	refreshed := make(chan string, 4)
	queue := services.NewSyncQueue()
	queue.SetProcessor(func(ctx context.Context, task *services.RefreshTask) error {
		_, err := profileService.UpdateMemberships(ctx, task.UserID)
		refreshed <- task.UserID
		return err
	})

	authH := NewAuthHandler(authService)
	rooms := NewRoomHandler(roomService)
	profiles := NewProfileHandler(profileService, queue)
	filters := NewFilterHandler(services.NewFilterService(db))
	presence := NewPresenceHandler(presenceService)
	events := NewSSEHandler(hub, roomService)

	r := gin.New()
	r.GET("/health", NewHealthHandler(db, queue, hub).CheckHealth)
	r.GET("/metrics", NewMetricsHandler(db, queue, hub).Metrics)
	r.GET("/_matrix/client/versions", GetVersions)

	api := r.Group("/_matrix/client/r0", middleware.JSONBody())
	api.GET("/login", authH.GetLoginFlows)
	api.POST("/login", authH.Login)
	api.POST("/register", authH.Register)

	protected := api.Group("", middleware.AccessToken(authService))
	protected.POST("/createRoom", rooms.CreateRoom)
	protected.GET("/joined_rooms", rooms.JoinedRooms)
	room := protected.Group("/rooms/:room_id", middleware.RoomIDParam())
	room.POST("/join", rooms.Join)
	room.POST("/leave", rooms.Leave)
	room.POST("/knock", rooms.Knock)
	room.POST("/invite", rooms.Invite)
	room.POST("/ban", rooms.Ban)
	room.POST("/kick", rooms.Kick)
	room.GET("/members", rooms.Members)
	profile := protected.Group("/profile/:user_id", middleware.UserIDParam())
	profile.GET("", profiles.GetProfile)
	profile.GET("/displayname", profiles.GetDisplayname)
	profile.PUT("/displayname", profiles.SetDisplayname)
	profile.GET("/avatar_url", profiles.GetAvatarURL)
	profile.PUT("/avatar_url", profiles.SetAvatarURL)
	user := protected.Group("/user/:user_id", middleware.UserIDParam())
	user.POST("/filter", filters.Create)
	user.GET("/filter/:filter_id", filters.Get)
	pres := protected.Group("/presence/:user_id", middleware.UserIDParam())
	pres.GET("/status", presence.GetStatus)
	pres.PUT("/status", presence.SetStatus)
	protected.GET("/events", events.StreamEvents)

	r.POST("/_ruma/profile/:user_id/refresh", middleware.JSONBody(), middleware.AccessToken(authService),
		middleware.UserIDParam(), profiles.Refresh)

	return &testServer{router: r, db: db, hub: hub, refreshed: refreshed}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	contentType := ""
	if body != "" {
		contentType = "application/json"
	}
	return httpDo(s, method, path, token, contentType, body)
}

func httpDo(s *testServer, method, path, token, contentType, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	s.router.ServeHTTP(w, req)
	return w
}

// register creates an account and returns its access token.
func (s *testServer) register(t *testing.T, localpart string) string {
	t.Helper()

	w := s.do(t, "POST", "/_matrix/client/r0/register", "", `{"username":"`+localpart+`","password":"secret123"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("register %s: status %d: %s", localpart, w.Code, w.Body.String())
	}
	var resp services.LoginResponse
	decode(t, w, &resp)
	return resp.AccessToken
}

// createRoom creates a room owned by token's user and returns its id.
func (s *testServer) createRoom(t *testing.T, token, visibility string) string {
	t.Helper()

	w := s.do(t, "POST", "/_matrix/client/r0/createRoom", token, `{"visibility":"`+visibility+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("createRoom: status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		RoomID string `json:"room_id"`
	}
	decode(t, w, &resp)
	return resp.RoomID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

type errorBody struct {
	Errcode string `json:"errcode"`
	Error   string `json:"error"`
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, errcode string) errorBody {
	t.Helper()

	if w.Code != status {
		t.Fatalf("status = %d, expected %d: %s", w.Code, status, w.Body.String())
	}
	var body errorBody
	decode(t, w, &body)
	if body.Errcode != errcode {
		t.Errorf("errcode = %q, expected %q", body.Errcode, errcode)
	}
	return body
}

func userID(localpart string) string {
	return utils.UserID(localpart, testDomain)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
