package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dealpipe.io/dealpipe/internal/pkg/logger"
)

// ReloadPipeline handles POST /admin/pipeline/reload. Re-reads the
// pipeline settings document and swaps the registry snapshot; an invalid
// document leaves the current snapshot serving.
func (s *Server) ReloadPipeline(c *gin.Context) {
	actor := actorFromCtx(c)

	if err := s.registry.Reload(); err != nil {
		logger.Error("pipeline settings reload rejected",
			zap.String("actor", actor),
			zap.Error(err),
		)
		_ = c.Error(err)
		return
	}

	if s.auditor != nil {
		if err := s.auditor.LogPipelineReload(c.Request.Context(), actor); err != nil {
			logger.Warn("pipeline reload audit write failed", zap.Error(err))
		}
	}

	logger.Info("pipeline settings reloaded", zap.String("actor", actor))
	c.JSON(http.StatusOK, gin.H{
		"status": "reloaded",
		"stages": len(s.registry.Snapshot().All()),
	})
}
