package handlers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ruma-go/homeserver/internal/middleware"
	"github.com/ruma-go/homeserver/internal/models"
	"github.com/ruma-go/homeserver/internal/services"
	"github.com/ruma-go/homeserver/pkg/logger"
	"github.com/ruma-go/homeserver/pkg/response"
)

// SSEHandler streams membership events over Server-Sent Events
type SSEHandler struct {
	hub   *services.EventHub
	rooms *services.RoomService
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(hub *services.EventHub, rooms *services.RoomService) *SSEHandler {
	return &SSEHandler{hub: hub, rooms: rooms}
}

// StreamEvents sends the membership events of the caller's joined rooms,
// plus every event whose target is the caller.
// GET /_matrix/client/r0/events
func (h *SSEHandler) StreamEvents(c *gin.Context) {
	userID := middleware.GetUserID(c)
	clientID := uuid.New().String()

	// Subscribe first so nothing committed while the room set loads is lost.
	events := h.hub.Subscribe(clientID)
	defer h.hub.Unsubscribe(clientID)

	joined, err := h.rooms.JoinedRooms(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	visible := make(map[string]struct{}, len(joined))
	for _, roomID := range joined {
		visible[roomID] = struct{}{}
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	logger.Info().Str("client_id", clientID).Str("user_id", userID).Int("total", h.hub.ClientCount()).Msg("SSE client connected")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			if !track(visible, userID, event) {
				return true
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			c.Writer.Flush()
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}

// track updates the caller's room set from its own membership events and
// reports whether event should be delivered.
func track(visible map[string]struct{}, userID string, event services.MemberEvent) bool {
	if event.StateKey != userID {
		_, ok := visible[event.RoomID]
		return ok
	}
	if event.Content.Membership == models.MembershipJoin {
		visible[event.RoomID] = struct{}{}
	} else {
		delete(visible, event.RoomID)
	}
	return true
}
