package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dealpipe.io/dealpipe/internal/api/middleware"
	apperrors "dealpipe.io/dealpipe/internal/pkg/errors"
)

// ListNotifications handles GET /notifications.
func (s *Server) ListNotifications(c *gin.Context) {
	userID := middleware.GetUserID(c.Request.Context())
	if userID == "" {
		_ = c.Error(apperrors.Unauthorized(apperrors.CodeAuthFailed, "not authenticated"))
		return
	}

	unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread_only", "false"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	items, err := s.notifications.ListByRecipient(c.Request.Context(), userID, unreadOnly, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// MarkNotificationRead handles POST /notifications/:id/read. Scoped to
// the authenticated recipient so users cannot touch each other's inbox.
func (s *Server) MarkNotificationRead(c *gin.Context) {
	userID := middleware.GetUserID(c.Request.Context())
	if userID == "" {
		_ = c.Error(apperrors.Unauthorized(apperrors.CodeAuthFailed, "not authenticated"))
		return
	}

	updated, err := s.notifications.MarkRead(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !updated {
		_ = c.Error(apperrors.NotFound("NOTIFICATION_NOT_FOUND", "notification not found"))
		return
	}

	c.Status(http.StatusNoContent)
}
