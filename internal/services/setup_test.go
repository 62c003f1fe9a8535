package services

import (
	"sync"
	"testing"

	"github.com/ruma-go/homeserver/internal/config"
	"github.com/ruma-go/homeserver/internal/models"
	"github.com/ruma-go/homeserver/internal/services/membership"
	"github.com/ruma-go/homeserver/internal/testutil"
	"github.com/ruma-go/homeserver/internal/utils"
	"gorm.io/gorm"
)

const testDomain = "ruma.test"

func init() {
	utils.SetJWTSecret("services-test-secret")
}

type publishedRows struct {
	mu   sync.Mutex
	rows []models.RoomMembership
}

func (p *publishedRows) PublishMembership(m models.RoomMembership) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = append(p.rows, m)
}

func (p *publishedRows) snapshot() []models.RoomMembership {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.RoomMembership(nil), p.rows...)
}

func (p *publishedRows) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = nil
}

type fixture struct {
	db       *gorm.DB
	engine   *membership.Engine
	events   *publishedRows
	presence *PresenceService
	profiles *ProfileService
	rooms    *RoomService
	auth     *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	store := membership.NewStore()
	events := &publishedRows{}
	engine := membership.NewEngine(db, store, membership.NewGuard(0), membership.NewPolicy(store), events)
	presence := NewPresenceService(db)
	profiles := NewProfileService(db, engine, presence)

	return &fixture{
		db:       db,
		engine:   engine,
		events:   events,
		presence: presence,
		profiles: profiles,
		rooms:    NewRoomService(db, engine, profiles, testDomain),
		auth: NewAuthService(db, NewLDAPService(&config.LDAPConfig{}),
			&config.JWTConfig{Secret: "services-test-secret", ExpireHour: 1}, testDomain),
	}
}
