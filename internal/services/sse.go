package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ruma-go/homeserver/internal/models"
	"github.com/ruma-go/homeserver/pkg/logger"
	"gorm.io/gorm"
)

const EventTypeRoomMember = "m.room.member"

// MemberContent is the content of an m.room.member event.
type MemberContent struct {
	Membership  models.Membership `json:"membership"`
	Displayname *string           `json:"displayname,omitempty"`
	AvatarURL   *string           `json:"avatar_url,omitempty"`
}

// MemberEvent is a membership state event as clients see it.
type MemberEvent struct {
	EventID        string        `json:"event_id"`
	Type           string        `json:"type"`
	RoomID         string        `json:"room_id"`
	Sender         string        `json:"sender"`
	StateKey       string        `json:"state_key"`
	Content        MemberContent `json:"content"`
	OriginServerTS int64         `json:"origin_server_ts"`
}

// NewMemberEvent renders a stored membership row with the target's profile.
func NewMemberEvent(m models.RoomMembership, profile *models.Profile) MemberEvent {
	ev := MemberEvent{
		EventID:        "$" + uuid.NewString(),
		Type:           EventTypeRoomMember,
		RoomID:         m.RoomID,
		Sender:         m.Sender,
		StateKey:       m.UserID,
		Content:        MemberContent{Membership: m.Membership},
		OriginServerTS: m.UpdatedAt.UnixMilli(),
	}
	if profile != nil {
		ev.Content.Displayname = profile.Displayname
		ev.Content.AvatarURL = profile.AvatarURL
	}
	return ev
}

// EventHub fans committed membership transitions out to event-stream clients.
type EventHub struct {
	db      *gorm.DB
	clients map[string]chan MemberEvent
	mu      sync.RWMutex
}

// NewEventHub creates a hub. With a database the target's profile is
// attached to every event.
func NewEventHub(db *gorm.DB) *EventHub {
	return &EventHub{
		db:      db,
		clients: make(map[string]chan MemberEvent),
	}
}

// Subscribe registers a new client and returns a channel for receiving events
func (h *EventHub) Subscribe(clientID string) <-chan MemberEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan MemberEvent, 100)
	h.clients[clientID] = ch
	return ch
}

// Unsubscribe removes a client from the hub
func (h *EventHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// PublishMembership is called by the membership engine after commit.
func (h *EventHub) PublishMembership(m models.RoomMembership) {
	var profile *models.Profile
	if h.db != nil {
		var p models.Profile
		err := h.db.Where("user_id = ?", m.UserID).Limit(1).Find(&p).Error
		if err != nil {
			logger.Warn().Err(err).Str("user_id", m.UserID).Msg("event hub: profile lookup failed")
		} else if p.UserID != "" {
			profile = &p
		}
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now()
	}
	h.Publish(NewMemberEvent(m, profile))
}

// Publish broadcasts an event to all connected clients
func (h *EventHub) Publish(event MemberEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.clients {
		// Slow clients lose events rather than block the publisher.
		select {
		case ch <- event:
		default:
			logger.Debug().Str("client_id", id).Msg("event hub: client buffer full, event dropped")
		}
	}
}

// Close disconnects every client. Buffered events are still delivered.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}

// ClientCount returns the number of connected clients
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
