package ops

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/oddbit-project/roadwatch/audit"
	"github.com/oddbit-project/roadwatch/session"
)

// AuditReader exposes the audit queries used by the ops API
type AuditReader interface {
	Recent(clientID string, limit int) ([]audit.Event, error)
}

// RegisterRoutes wires the read-only endpoints onto the server router
func (s *Server) RegisterRoutes(sessions *session.Store, trail AuditReader) {
	s.Router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.Router.Group("/v1")

	v1.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": sessions.ActiveSessions()})
	})

	v1.GET("/sessions/:clientID", func(c *gin.Context) {
		info, err := sessions.Info(c.Param("clientID"))
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	})

	if trail != nil {
		v1.GET("/audit/:clientID", func(c *gin.Context) {
			limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
			events, err := trail.Recent(c.Param("clientID"), limit)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"events": events})
		})
	}
}
