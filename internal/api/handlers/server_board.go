package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetBoard handles GET /board.
func (s *Server) GetBoard(c *gin.Context) {
	snapshot, err := s.boardSvc.Snapshot(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
