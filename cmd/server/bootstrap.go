package main

import (
	"context"
	"time"

	"github.com/ruma-go/homeserver/internal/config"
	"github.com/ruma-go/homeserver/internal/handlers"
	"github.com/ruma-go/homeserver/internal/middleware"
	"github.com/ruma-go/homeserver/internal/models"
	"github.com/ruma-go/homeserver/internal/services"
	"github.com/ruma-go/homeserver/internal/services/membership"
	"github.com/ruma-go/homeserver/internal/utils"
	"github.com/ruma-go/homeserver/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	db          *gorm.DB
	hub         *services.EventHub
	taskQueue   services.TaskQueue
	worker      *services.Worker
	pruner      *services.GuardPruner
	rateLimiter *middleware.RateLimiter

	auth     *services.AuthService
	health   *handlers.HealthHandler
	metrics  *handlers.MetricsHandler
	authH    *handlers.AuthHandler
	rooms    *handlers.RoomHandler
	profiles *handlers.ProfileHandler
	filters  *handlers.FilterHandler
	presence *handlers.PresenceHandler
	events   *handlers.SSEHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	db, err := models.OpenDB(&cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Membership engine
	hub := services.NewEventHub(db)
	store := membership.NewStore()
	guard := membership.NewGuard(time.Duration(cfg.Membership.GuardWindowSeconds) * time.Second)
	engine := membership.NewEngine(db, store, guard, membership.NewPolicy(store), hub)

	presenceService := services.NewPresenceService(db)
	profileService := services.NewProfileService(db, engine, presenceService)
	roomService := services.NewRoomService(db, engine, profileService, cfg.Homeserver.Domain)
	authService := services.NewAuthService(db, services.NewLDAPService(&cfg.LDAP), &cfg.JWT, cfg.Homeserver.Domain)

	refresh := func(ctx context.Context, task *services.RefreshTask) error {
		_, err := profileService.UpdateMemberships(ctx, task.UserID)
		return err
	}

	// Initialize task queue (uses Redis if enabled, otherwise in-process)
	taskQueue := services.NewTaskQueue(&cfg.Redis, refresh)

	// Start async worker if Redis is enabled
	worker := services.NewWorker(&cfg.Redis, refresh)
	if worker != nil {
		if err := worker.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start refresh worker")
			worker = nil
		}
	}

	pruner := services.NewGuardPruner(db, guard, cfg.Membership.GuardPruneSchedule)
	if err := pruner.Start(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start guard pruner")
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	return &appServices{
		db:          db,
		hub:         hub,
		taskQueue:   taskQueue,
		worker:      worker,
		pruner:      pruner,
		rateLimiter: rateLimiter,

		auth:     authService,
		health:   handlers.NewHealthHandler(db, taskQueue, hub),
		metrics:  handlers.NewMetricsHandler(db, taskQueue, hub),
		authH:    handlers.NewAuthHandler(authService),
		rooms:    handlers.NewRoomHandler(roomService),
		profiles: handlers.NewProfileHandler(profileService, taskQueue),
		filters:  handlers.NewFilterHandler(services.NewFilterService(db)),
		presence: handlers.NewPresenceHandler(presenceService),
		events:   handlers.NewSSEHandler(hub, roomService),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.pruner.Stop()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.hub.Close()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
