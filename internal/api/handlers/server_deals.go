package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dealpipe.io/dealpipe/internal/api/middleware"
	"dealpipe.io/dealpipe/internal/domain"
	apperrors "dealpipe.io/dealpipe/internal/pkg/errors"
	"dealpipe.io/dealpipe/internal/usecase"
)

// transitionRequestBody is the payload for POST /deals/:id/transition.
type transitionRequestBody struct {
	TargetStage string `json:"target_stage" binding:"required"`
	Note        string `json:"note"`
}

// transitionResponse is the committed outcome returned to the caller.
type transitionResponse struct {
	Deal         *domain.Deal `json:"deal"`
	Warnings     []string     `json:"warnings,omitempty"`
	NoOp         bool         `json:"no_op"`
	OverrideUsed bool         `json:"override_used"`
}

// TransitionDeal handles POST /deals/:id/transition.
func (s *Server) TransitionDeal(c *gin.Context) {
	var body transitionRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequestField, "target_stage is required"))
		return
	}

	result, err := s.coordinator.RequestTransition(c.Request.Context(), usecase.TransitionRequest{
		DealID:         c.Param("id"),
		TargetStage:    domain.Stage(body.TargetStage),
		Actor:          actorFromCtx(c),
		Note:           body.Note,
		CanOverrideWIP: middleware.HasPermission(c, middleware.PermissionOverrideWIP),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, transitionResponse{
		Deal:         result.Deal,
		Warnings:     result.Warnings,
		NoOp:         result.NoOp,
		OverrideUsed: result.OverrideUsed,
	})
}

// ListDeals handles GET /deals?stage=<id>.
func (s *Server) ListDeals(c *gin.Context) {
	stageID := c.Query("stage")
	if stageID == "" {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequestField, "stage query parameter is required"))
		return
	}
	if _, err := s.registry.Snapshot().Get(domain.Stage(stageID)); err != nil {
		_ = c.Error(err)
		return
	}

	page, perPage := pagination(c)
	list, err := s.deals.ListByStage(c.Request.Context(), domain.Stage(stageID), perPage, (page-1)*perPage)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       list.Items,
		"total_count": list.TotalCount,
		"page":        page,
		"per_page":    perPage,
	})
}

// GetDealHistory handles GET /deals/:id/history.
func (s *Server) GetDealHistory(c *gin.Context) {
	dealID := c.Param("id")
	if _, err := s.deals.GetByID(c.Request.Context(), dealID); err != nil {
		_ = c.Error(err)
		return
	}

	entries, err := s.history.ListByDeal(c.Request.Context(), dealID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": entries})
}
