package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dealpipe.io/dealpipe/internal/domain"
	"dealpipe.io/dealpipe/internal/pipeline"
)

// stageView is one registry entry with its live active-deal count.
type stageView struct {
	ID                 domain.Stage      `json:"id"`
	DisplayName        string            `json:"display_name"`
	Order              int               `json:"order"`
	Class              domain.StageClass `json:"class"`
	WIPLimit           *int              `json:"wip_limit"`
	ProbabilityDefault int               `json:"probability_default"`
	WarningDays        *int              `json:"warning_days"`
	CriticalDays       *int              `json:"critical_days"`
	Successors         []domain.Stage    `json:"successors"`
	ActiveCount        int               `json:"active_count"`
}

// ListStages handles GET /stages.
func (s *Server) ListStages(c *gin.Context) {
	counts, err := s.deals.CountByStage(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	stages := s.registry.Snapshot().All()
	items := make([]stageView, 0, len(stages))
	for _, cfg := range stages {
		items = append(items, stageToView(cfg, counts[cfg.ID]))
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func stageToView(cfg *pipeline.StageConfig, count int) stageView {
	return stageView{
		ID:                 cfg.ID,
		DisplayName:        cfg.DisplayName,
		Order:              cfg.Order,
		Class:              cfg.Class,
		WIPLimit:           cfg.WIPLimit,
		ProbabilityDefault: cfg.ProbabilityDefault,
		WarningDays:        cfg.WarningDays,
		CriticalDays:       cfg.CriticalDays,
		Successors:         cfg.Successors,
		ActiveCount:        count,
	}
}
