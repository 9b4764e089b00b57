package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetVelocity handles GET /metrics/velocity.
func (s *Server) GetVelocity(c *gin.Context) {
	stats, err := s.calculator.Velocity(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": stats})
}
