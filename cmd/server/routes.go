package main

import (
	"github.com/gin-gonic/gin"
	"github.com/ruma-go/homeserver/internal/handlers"
	"github.com/ruma-go/homeserver/internal/middleware"
	"github.com/ruma-go/homeserver/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(), middleware.ServerHeader(version))
	if svc.rateLimiter != nil {
		r.Use(svc.rateLimiter.Middleware())
	}

	// Health check
	r.GET("/health", svc.health.CheckHealth)
	r.GET("/metrics", svc.metrics.Metrics)

	r.GET("/_matrix/client/versions", handlers.GetVersions)

	api := r.Group("/_matrix/client/r0", middleware.JSONBody())
	{
		// Auth routes (public)
		api.GET("/login", svc.authH.GetLoginFlows)
		api.POST("/login", svc.authH.Login)
		api.POST("/register", svc.authH.Register)

		// Protected routes
		protected := api.Group("", middleware.AccessToken(svc.auth))
		{
			protected.POST("/createRoom", svc.rooms.CreateRoom)
			protected.GET("/joined_rooms", svc.rooms.JoinedRooms)

			rooms := protected.Group("/rooms/:room_id", middleware.RoomIDParam())
			{
				rooms.POST("/join", svc.rooms.Join)
				rooms.POST("/leave", svc.rooms.Leave)
				rooms.POST("/knock", svc.rooms.Knock)
				rooms.POST("/invite", svc.rooms.Invite)
				rooms.POST("/ban", svc.rooms.Ban)
				rooms.POST("/kick", svc.rooms.Kick)
				rooms.GET("/members", svc.rooms.Members)
			}

			profile := protected.Group("/profile/:user_id", middleware.UserIDParam())
			{
				profile.GET("", svc.profiles.GetProfile)
				profile.GET("/displayname", svc.profiles.GetDisplayname)
				profile.PUT("/displayname", svc.profiles.SetDisplayname)
				profile.GET("/avatar_url", svc.profiles.GetAvatarURL)
				profile.PUT("/avatar_url", svc.profiles.SetAvatarURL)
			}

			user := protected.Group("/user/:user_id", middleware.UserIDParam())
			{
				user.POST("/filter", svc.filters.Create)
				user.GET("/filter/:filter_id", svc.filters.Get)
			}

			presence := protected.Group("/presence/:user_id", middleware.UserIDParam())
			{
				presence.GET("/status", svc.presence.GetStatus)
				presence.PUT("/status", svc.presence.SetStatus)
			}

			protected.GET("/events", svc.events.StreamEvents)
		}
	}

	// Server-specific extensions
	ruma := r.Group("/_ruma", middleware.JSONBody(), middleware.AccessToken(svc.auth))
	{
		ruma.POST("/profile/:user_id/refresh", middleware.UserIDParam(), svc.profiles.Refresh)
	}
}
