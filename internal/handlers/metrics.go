package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ruma-go/homeserver/internal/models"
	"github.com/ruma-go/homeserver/internal/services"
	"gorm.io/gorm"
)

var startTime = time.Now()

// MetricsHandler exposes Prometheus text-format gauges.
type MetricsHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
	hub   *services.EventHub
}

func NewMetricsHandler(db *gorm.DB, queue services.TaskQueue, hub *services.EventHub) *MetricsHandler {
	return &MetricsHandler{db: db, queue: queue, hub: hub}
}

// Metrics returns Prometheus-compatible text format metrics.
// GET /metrics
func (h *MetricsHandler) Metrics(c *gin.Context) {
	var b strings.Builder

	// -- Runtime metrics --
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "ruma_uptime_seconds", "Time since server start in seconds", time.Since(startTime).Seconds())
	writeGauge(&b, "ruma_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "ruma_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))

	// -- Database metrics --
	if sqlDB, err := h.db.DB(); err == nil {
		stats := sqlDB.Stats()
		writeGauge(&b, "ruma_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
		writeGauge(&b, "ruma_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
		writeGauge(&b, "ruma_db_wait_count_total", "Connections waited for", float64(stats.WaitCount))
	}

	writeGauge(&b, "ruma_sse_active_clients", "Number of active event stream connections", float64(h.hub.ClientCount()))

	queueAsync := 0.0
	if h.queue != nil && h.queue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "ruma_queue_async_enabled", "Whether async queue (Redis) is enabled (1=yes, 0=no)", queueAsync)

	// -- Membership metrics --
	db := h.db.WithContext(c.Request.Context())
	var counts []struct {
		Membership models.Membership
		Count      int64
	}
	db.Model(&models.RoomMembership{}).Select("membership, count(*) as count").Group("membership").Scan(&counts)
	for _, row := range counts {
		writeGauge(&b, "ruma_memberships_"+string(row.Membership), "Membership rows in state "+string(row.Membership), float64(row.Count))
	}

	var rooms, users, guards int64
	db.Model(&models.Room{}).Count(&rooms)
	db.Model(&models.User{}).Where("is_active = ?", true).Count(&users)
	db.Model(&models.MembershipGuard{}).Count(&guards)
	writeGauge(&b, "ruma_rooms_total", "Total number of rooms", float64(rooms))
	writeGauge(&b, "ruma_users_active", "Number of active users", float64(users))
	writeGauge(&b, "ruma_membership_guards", "Stored duplicate-transition gates", float64(guards))

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
