package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"project-chat/internal/telemetry"
)

// RoomStats reports live subscriptions; *ws.Hub satisfies it.
type RoomStats interface {
	RoomSize(roomID string) int
}

// RegisterDebugRoutes wires debug-only endpoints. Nothing is registered unless
// enabled is set.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, rooms RoomStats, enabled bool) {
	if !enabled {
		return
	}
	debug := router.Group("/debug")

	debug.GET("/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), telemetry.LevelInfo, "audit test", requestIDFromContext(c), userIDFromContext(c), c.Query("room_id"))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	debug.GET("/rooms/:room_id", func(c *gin.Context) {
		roomID := c.Param("room_id")
		c.JSON(http.StatusOK, gin.H{"room_id": roomID, "connections": rooms.RoomSize(roomID)})
	})
}
