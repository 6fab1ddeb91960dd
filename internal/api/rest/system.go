package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// GET /api/v1/system/status
func (s *Server) getSystemStatus(c *gin.Context) {
	dbStatus := "ok"
	if err := s.store.Pool().Ping(c.Request.Context()); err != nil {
		dbStatus = "unreachable"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "running",
		"uptime_seconds":    int(time.Since(startTime).Seconds()),
		"database":          dbStatus,
		"websocket_clients": s.wsHub.ClientCount(),
	})
}
